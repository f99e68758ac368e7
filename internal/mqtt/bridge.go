//go:build !no_mqtt

// Package mqtt bridges the color light to an MQTT broker: endpoint state is
// published retained with Home Assistant discovery, and hue/saturation
// commands are accepted on per-endpoint topics.
package mqtt

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"golang.org/x/time/rate"

	"zigbee-color-light/internal/device"
	"zigbee-color-light/internal/store"
	"zigbee-color-light/internal/zcl"
	"zigbee-color-light/internal/zcl/clusters"
)

// minPublishInterval bounds how often an endpoint's state is republished
// while a transition ticks.
const minPublishInterval = 100 * time.Millisecond

// errNoColor is returned for set payloads that carry no color command.
var errNoColor = errors.New("no color command")

// Light is the device surface the bridge drives.
type Light interface {
	Endpoints() []uint8
	Events() *device.EventBus
	Endpoint(ctx context.Context, endpoint uint8) (*device.EndpointState, error)
	Execute(ctx context.Context, endpoint uint8, cmd device.Command, source string) (zcl.Status, error)
	HandleZCL(ctx context.Context, endpoint, commandID uint8, payload []byte, source string) (zcl.Status, error)
}

// Config holds MQTT bridge configuration.
type Config struct {
	Broker      string
	Username    string
	Password    string
	TopicPrefix string
	ClientID    string
	NodeID      string // HA device identifier
	Name        string // HA device name
}

// Bridge connects the color light to MQTT with HA autodiscovery.
type Bridge struct {
	client pahomqtt.Client
	light  Light
	prefix string
	info   deviceInfo
	logger *slog.Logger
	unsub  func()
	ctx    context.Context
	cancel context.CancelFunc
	kick   chan struct{}

	// Spaces state flushes at least minPublishInterval apart.
	limiter *rate.Limiter

	// Per-endpoint Color Control attribute cache, fed by attribute events.
	mu    sync.Mutex
	attrs map[uint8]map[uint16]interface{}
	dirty map[uint8]bool
}

func newBridge(light Light, cfg Config, logger *slog.Logger) *Bridge {
	ctx, cancel := context.WithCancel(context.Background())
	return &Bridge{
		light:  light,
		prefix: cfg.TopicPrefix,
		info: deviceInfo{
			NodeID:       cfg.NodeID,
			Name:         cfg.Name,
			Manufacturer: "zigbee-color-light",
			Model:        "Color Control (hue/saturation)",
		},
		logger:  logger.With("component", "mqtt"),
		ctx:     ctx,
		cancel:  cancel,
		kick:    make(chan struct{}, 1),
		limiter: rate.NewLimiter(rate.Every(minPublishInterval), 1),
		attrs:   make(map[uint8]map[uint16]interface{}),
		dirty:   make(map[uint8]bool),
	}
}

// NewBridge creates and connects an MQTT bridge.
func NewBridge(light Light, cfg Config, logger *slog.Logger) (*Bridge, error) {
	b := newBridge(light, cfg, logger)

	clientID := cfg.ClientID
	if clientID == "" {
		clientID = "zigbee-color-light"
	}
	opts := pahomqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetOrderMatters(false).
		SetWill(b.bridgeStateTopic(), "offline", 1, true).
		SetOnConnectHandler(func(_ pahomqtt.Client) {
			b.logger.Info("MQTT connected")
			b.onConnect()
		}).
		SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
			b.logger.Warn("MQTT connection lost", "err", err)
		})

	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}

	b.client = pahomqtt.NewClient(opts)
	token := b.client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		b.cancel()
		return nil, fmt.Errorf("mqtt connect timeout")
	}
	if err := token.Error(); err != nil {
		b.cancel()
		return nil, fmt.Errorf("mqtt connect: %w", err)
	}
	return b, nil
}

// Start subscribes to device events and begins state publishing.
func (b *Bridge) Start() {
	b.unsub = b.light.Events().OnAll(b.handleEvent)
	go b.publishLoop()
	b.logger.Info("MQTT bridge started", "prefix", b.prefix)
}

// Stop publishes offline state, unsubscribes, and disconnects.
func (b *Bridge) Stop() {
	b.cancel()
	if b.unsub != nil {
		b.unsub()
	}
	b.publishBridgeState("offline")
	b.client.Disconnect(1000)
	b.logger.Info("MQTT bridge stopped")
}

func (b *Bridge) bridgeStateTopic() string {
	return b.prefix + "/bridge/state"
}

// onConnect announces the bridge, subscribes to command topics and seeds the
// attribute cache from the device. It runs on a paho goroutine.
func (b *Bridge) onConnect() {
	b.publishBridgeState("online")
	b.subscribeCommands()

	endpoints := b.light.Endpoints()
	for _, msg := range buildDiscovery(b.info, b.prefix, endpoints) {
		b.publish(msg.Topic, msg.Payload, true)
	}
	b.logger.Info("published HA discovery", "endpoints", len(endpoints))

	for _, ep := range endpoints {
		ctx, cancel := context.WithTimeout(b.ctx, 5*time.Second)
		st, err := b.light.Endpoint(ctx, ep)
		cancel()
		if err != nil {
			b.logger.Warn("read endpoint state", "endpoint", ep, "err", err)
			continue
		}
		for _, a := range st.Attributes {
			if a.ClusterID == clusters.ColorControlID {
				b.updateAttribute(ep, a.ID, a.Value)
			}
		}
		b.markDirty(ep)
	}
}

func (b *Bridge) subscribeCommands() {
	handler := func(_ pahomqtt.Client, msg pahomqtt.Message) {
		b.handleMessage(msg.Topic(), msg.Payload())
	}
	for _, topic := range []string{b.prefix + "/+/set", b.prefix + "/+/zcl"} {
		token := b.client.Subscribe(topic, 1, handler)
		if token.WaitTimeout(5*time.Second) && token.Error() != nil {
			b.logger.Error("MQTT subscribe failed", "topic", topic, "err", token.Error())
		}
	}
}

func (b *Bridge) handleEvent(event device.Event) {
	if event.Type != device.EventAttributeChanged {
		return
	}
	data, ok := event.Data.(map[string]interface{})
	if !ok {
		return
	}
	ep, _ := event.Endpoint()
	clusterID, _ := data["cluster_id"].(uint16)
	attrID, _ := data["attr_id"].(uint16)
	if ep == 0 || clusterID != clusters.ColorControlID {
		return
	}
	b.updateAttribute(ep, attrID, data["value"])
	b.markDirty(ep)
}

func (b *Bridge) updateAttribute(ep uint8, attrID uint16, value interface{}) {
	b.mu.Lock()
	defer b.mu.Unlock()
	m, ok := b.attrs[ep]
	if !ok {
		m = make(map[uint16]interface{})
		b.attrs[ep] = m
	}
	m[attrID] = value
}

// markDirty schedules a state publish for an endpoint. It never blocks, so
// it is safe on the device loop.
func (b *Bridge) markDirty(ep uint8) {
	b.mu.Lock()
	b.dirty[ep] = true
	b.mu.Unlock()
	select {
	case b.kick <- struct{}{}:
	default:
	}
}

func (b *Bridge) publishLoop() {
	for {
		select {
		case <-b.ctx.Done():
			return
		case <-b.kick:
		}
		if err := b.limiter.Wait(b.ctx); err != nil {
			return
		}
		b.flushStates()
	}
}

// flushStates publishes every dirty endpoint's state.
func (b *Bridge) flushStates() {
	type pending struct {
		topic   string
		payload []byte
	}
	var out []pending

	b.mu.Lock()
	for ep := range b.dirty {
		out = append(out, pending{stateTopic(b.prefix, ep), mustJSON(b.stateLocked(ep))})
		delete(b.dirty, ep)
	}
	b.mu.Unlock()

	for _, p := range out {
		b.publish(p.topic, p.payload, true)
	}
}

// stateLocked builds the HA JSON state for an endpoint. b.mu must be held.
func (b *Bridge) stateLocked(ep uint8) map[string]any {
	snap := &store.Endpoint{ID: ep}
	for id, v := range b.attrs[ep] {
		snap.Attributes = append(snap.Attributes, store.Attribute{ClusterID: clusters.ColorControlID, ID: id, Value: v})
	}
	state := device.Properties(snap)
	state["state"] = "ON"
	if _, ok := state["color"]; ok {
		state["color_mode"] = "hs"
	}
	return state
}

// handleMessage runs a command received on <prefix>/<ep>/set or
// <prefix>/<ep>/zcl. It runs on a paho goroutine.
func (b *Bridge) handleMessage(topic string, payload []byte) {
	ep, action, ok := parseCommandTopic(b.prefix, topic)
	if !ok {
		b.logger.Warn("command on unexpected topic", "topic", topic)
		return
	}

	ctx, cancel := context.WithTimeout(b.ctx, 10*time.Second)
	defer cancel()

	var (
		name   string
		status zcl.Status
		err    error
	)
	switch action {
	case "set":
		var cmd device.Command
		cmd, err = parseSetPayload(payload)
		if errors.Is(err, errNoColor) {
			// Plain on/off from HA; the light is always on, so just echo state.
			b.markDirty(ep)
			return
		}
		name = cmd.Command
		if err == nil {
			status, err = b.light.Execute(ctx, ep, cmd, "mqtt")
		}
	case "zcl":
		var (
			id   uint8
			args []byte
		)
		id, args, err = parseZCLFrame(string(payload))
		name = fmt.Sprintf("0x%02X", id)
		if err == nil {
			status, err = b.light.HandleZCL(ctx, ep, id, args, "mqtt")
		}
	}

	resp := map[string]any{"command": name}
	if err != nil {
		b.logger.Warn("MQTT command failed", "endpoint", ep, "command", name, "err", err)
		resp["error"] = err.Error()
	} else {
		resp["status"] = status.String()
	}
	b.publish(stateTopic(b.prefix, ep)+"/response", mustJSON(resp), false)
}

func (b *Bridge) publishBridgeState(state string) {
	b.publish(b.bridgeStateTopic(), []byte(state), true)
}

func (b *Bridge) publish(topic string, payload []byte, retained bool) {
	token := b.client.Publish(topic, 1, retained, payload)
	go func() {
		if !token.WaitTimeout(5 * time.Second) {
			b.logger.Warn("MQTT publish timeout", "topic", topic)
		} else if err := token.Error(); err != nil {
			b.logger.Warn("MQTT publish error", "topic", topic, "err", err)
		}
	}()
}

// parseCommandTopic splits "<prefix>/<ep>/<action>" for the set and zcl
// actions.
func parseCommandTopic(prefix, topic string) (uint8, string, bool) {
	rest, ok := strings.CutPrefix(topic, prefix+"/")
	if !ok {
		return 0, "", false
	}
	parts := strings.Split(rest, "/")
	if len(parts) != 2 || (parts[1] != "set" && parts[1] != "zcl") {
		return 0, "", false
	}
	n, err := strconv.ParseUint(parts[0], 10, 8)
	if err != nil || n == 0 || n > 240 {
		return 0, "", false
	}
	return uint8(n), parts[1], true
}

type setPayload struct {
	device.Command
	State      string   `json:"state"`
	Color      *hsColor `json:"color"`
	Transition *float64 `json:"transition"` // seconds
}

type hsColor struct {
	H *float64 `json:"h"`
	S *float64 `json:"s"`
}

// parseSetPayload accepts either an explicit command object
// ({"command":"move_hue","mode":"up","rate":10}) or the HA JSON light schema
// ({"state":"ON","color":{"h":120,"s":80},"transition":2}).
func parseSetPayload(data []byte) (device.Command, error) {
	var p setPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return device.Command{}, fmt.Errorf("%w: %v", device.ErrInvalidCommand, err)
	}
	if p.Command.Command != "" {
		return p.Command, nil
	}
	if p.Color == nil {
		return device.Command{}, errNoColor
	}
	if p.Color.H == nil || p.Color.S == nil {
		return device.Command{}, fmt.Errorf("%w: color needs h and s", device.ErrInvalidCommand)
	}
	return device.Command{
		Command:        device.CommandMoveToHueAndSaturation,
		Hue:            device.DegreesToHue(*p.Color.H),
		Saturation:     device.PercentToSaturation(*p.Color.S),
		TransitionTime: transitionDeciseconds(p.Transition),
	}, nil
}

// transitionDeciseconds converts an HA transition in seconds to ZCL
// transition time.
func transitionDeciseconds(sec *float64) uint16 {
	if sec == nil || *sec <= 0 {
		return 0
	}
	ds := math.Round(*sec * 10)
	if ds > 0xFFFE {
		return 0xFFFE
	}
	return uint16(ds)
}

// parseZCLFrame decodes a hex command frame: the command ID byte followed by
// the payload. Spaces, colons and a 0x prefix are ignored.
func parseZCLFrame(s string) (uint8, []byte, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	s = strings.NewReplacer(" ", "", ":", "").Replace(s)
	raw, err := hex.DecodeString(s)
	if err != nil {
		return 0, nil, fmt.Errorf("decode frame: %w", err)
	}
	if len(raw) == 0 {
		return 0, nil, fmt.Errorf("empty frame")
	}
	return raw[0], raw[1:], nil
}

func mustJSON(v interface{}) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		return []byte("{}")
	}
	return data
}
