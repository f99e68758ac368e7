// Package device hosts the color light: it owns the attribute store, the
// hue/saturation transition engine and the tick timers, and serializes every
// engine call on a single event loop goroutine.
package device

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync/atomic"

	"zigbee-color-light/internal/colorcontrol"
	"zigbee-color-light/internal/store"
	"zigbee-color-light/internal/zcl"
	"zigbee-color-light/internal/zcl/clusters"
)

var (
	// ErrStopped is returned for calls made while the device loop is not running.
	ErrStopped = errors.New("device stopped")
	// ErrUnknownEndpoint is returned for endpoints the light does not serve.
	ErrUnknownEndpoint = errors.New("unknown endpoint")
)

// EndpointConfig declares one light endpoint and the color it starts with
// when it has no stored state yet.
type EndpointConfig struct {
	ID         uint8
	Hue        uint8
	Saturation uint8
}

// Config holds the light configuration.
type Config struct {
	Endpoints []EndpointConfig
}

// EndpointState is a consistent snapshot of one endpoint.
type EndpointState struct {
	ID         uint8                         `json:"id"`
	Phase      colorcontrol.Phase            `json:"phase"`
	Transition *colorcontrol.TransitionState `json:"transition,omitempty"`
	Properties map[string]any                `json:"properties"`
	Attributes []store.Attribute             `json:"attributes"`
}

// Device is a color light with one or more Color Control endpoints.
type Device struct {
	store     store.Store
	registry  *zcl.Registry
	events    *EventBus
	engine    *colorcontrol.Engine
	sched     *tickScheduler
	logger    *slog.Logger
	endpoints []EndpointConfig

	tasks   chan func()
	ctx     context.Context
	cancel  context.CancelFunc
	done    chan struct{}
	running atomic.Bool
}

// New creates a light device. A nil capability accepts every color.
func New(st store.Store, registry *zcl.Registry, events *EventBus, capability colorcontrol.Capability, cfg Config, logger *slog.Logger) *Device {
	ctx, cancel := context.WithCancel(context.Background())
	eps := append([]EndpointConfig(nil), cfg.Endpoints...)
	sort.Slice(eps, func(i, j int) bool { return eps[i].ID < eps[j].ID })

	d := &Device{
		store:     st,
		registry:  registry,
		events:    events,
		logger:    logger.With("component", "device"),
		endpoints: eps,
		tasks:     make(chan func(), 64),
		ctx:       ctx,
		cancel:    cancel,
		done:      make(chan struct{}),
	}
	d.sched = newTickScheduler(d.post, func(ep uint8) { d.engine.Tick(ep) })
	attrs := &reportingAttributes{store: st, registry: registry, events: events}
	d.engine = colorcontrol.New(attrs, capability, d.sched, logger)
	d.engine.OnTransitionEnd(d.transitionEnded)
	return d
}

// Start initializes endpoint attributes and starts the event loop.
// RemainingTime is reset on every start since no transition survives a
// restart; stored hue and saturation are kept.
func (d *Device) Start(ctx context.Context) error {
	for _, ep := range d.endpoints {
		if err := ctx.Err(); err != nil {
			return err
		}
		initial := map[uint16]interface{}{
			clusters.AttrCurrentHue:        ep.Hue,
			clusters.AttrCurrentSaturation: ep.Saturation,
		}
		if err := d.store.InitEndpoint(ep.ID, clusters.ColorControlID, initial); err != nil {
			return err
		}
		if err := d.store.WriteAttribute(ep.ID, clusters.ColorControlID, clusters.AttrRemainingTime, clusters.RemainingTimeIdle); err != nil {
			return fmt.Errorf("reset remaining time on endpoint %d: %w", ep.ID, err)
		}
	}
	d.pruneEndpoints()

	d.running.Store(true)
	go d.run()

	d.logger.Info("light started", "endpoints", len(d.endpoints))
	d.events.Emit(Event{Type: EventDeviceState, Data: "started"})
	return nil
}

// Stop halts the event loop and all tick timers. Running transitions are
// abandoned.
func (d *Device) Stop() {
	if !d.running.CompareAndSwap(true, false) {
		return
	}
	d.sched.close()
	d.cancel()
	<-d.done
	d.logger.Info("light stopped")
	d.events.Emit(Event{Type: EventDeviceState, Data: "stopped"})
}

func (d *Device) run() {
	defer close(d.done)
	for {
		select {
		case <-d.ctx.Done():
			return
		case fn := <-d.tasks:
			fn()
		}
	}
}

// post queues fn on the event loop without waiting for it.
func (d *Device) post(fn func()) {
	select {
	case d.tasks <- fn:
	case <-d.ctx.Done():
	}
}

// do runs fn on the event loop and waits for it to finish.
func (d *Device) do(ctx context.Context, fn func()) error {
	if !d.running.Load() {
		return ErrStopped
	}
	done := make(chan struct{})
	select {
	case d.tasks <- func() { fn(); close(done) }:
	case <-d.ctx.Done():
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-done:
		return nil
	case <-d.ctx.Done():
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Device) pruneEndpoints() {
	stored, err := d.store.ListEndpoints()
	if err != nil {
		d.logger.Warn("list stored endpoints", "err", err)
		return
	}
	for _, id := range stored {
		if d.hasEndpoint(id) {
			continue
		}
		if err := d.store.DeleteEndpoint(id); err != nil {
			d.logger.Warn("remove stale endpoint", "endpoint", id, "err", err)
			continue
		}
		d.logger.Info("removed stale endpoint", "endpoint", id)
	}
}

func (d *Device) hasEndpoint(id uint8) bool {
	for _, ep := range d.endpoints {
		if ep.ID == id {
			return true
		}
	}
	return false
}

// Endpoints returns the configured endpoint IDs in ascending order.
func (d *Device) Endpoints() []uint8 {
	ids := make([]uint8, len(d.endpoints))
	for i, ep := range d.endpoints {
		ids[i] = ep.ID
	}
	return ids
}

// Events returns the event bus.
func (d *Device) Events() *EventBus {
	return d.events
}

// Registry returns the ZCL registry.
func (d *Device) Registry() *zcl.Registry {
	return d.registry
}

// HandleZCL runs a raw Color Control cluster command on an endpoint and
// returns the status for the default response. source names the ingress
// (api, mqtt, script) in the command event.
func (d *Device) HandleZCL(ctx context.Context, endpoint, commandID uint8, payload []byte, source string) (zcl.Status, error) {
	if !d.hasEndpoint(endpoint) {
		return 0, fmt.Errorf("endpoint %d: %w", endpoint, ErrUnknownEndpoint)
	}
	var status zcl.Status
	err := d.do(ctx, func() {
		status = d.engine.Dispatch(endpoint, commandID, payload)
		name := d.registry.CommandName(clusters.ColorControlID, commandID)
		d.logger.Debug("command", "endpoint", endpoint, "command", name, "source", source, "status", status)
		d.events.Emit(Event{
			Type: EventCommand,
			Data: map[string]interface{}{
				"endpoint":   endpoint,
				"command":    name,
				"command_id": commandID,
				"source":     source,
				"status":     status.String(),
			},
		})
	})
	if err != nil {
		return 0, err
	}
	return status, nil
}

// Execute encodes a JSON command and runs it like HandleZCL.
func (d *Device) Execute(ctx context.Context, endpoint uint8, cmd Command, source string) (zcl.Status, error) {
	id, payload, err := cmd.Frame()
	if err != nil {
		return 0, err
	}
	return d.HandleZCL(ctx, endpoint, id, payload, source)
}

// Endpoint returns a snapshot of an endpoint's attributes and transition.
func (d *Device) Endpoint(ctx context.Context, endpoint uint8) (*EndpointState, error) {
	if !d.hasEndpoint(endpoint) {
		return nil, fmt.Errorf("endpoint %d: %w", endpoint, ErrUnknownEndpoint)
	}
	var (
		state   *EndpointState
		snapErr error
	)
	err := d.do(ctx, func() {
		snap, err := d.store.Endpoint(endpoint)
		if err != nil {
			snapErr = err
			return
		}
		state = &EndpointState{
			ID:         endpoint,
			Phase:      d.engine.Phase(endpoint),
			Properties: Properties(snap),
			Attributes: snap.Attributes,
		}
		if ts := d.engine.State(endpoint); ts.Active {
			state.Transition = &ts
		}
	})
	if err != nil {
		return nil, err
	}
	if snapErr != nil {
		return nil, snapErr
	}
	return state, nil
}

func (d *Device) transitionEnded(end colorcontrol.TransitionEnd) {
	d.logger.Debug("transition done", "endpoint", end.Endpoint, "kind", end.Kind, "reason", end.Reason)
	d.events.Emit(Event{
		Type: EventTransitionDone,
		Data: map[string]interface{}{
			"endpoint": end.Endpoint,
			"kind":     end.Kind.String(),
			"reason":   string(end.Reason),
		},
	})
}
