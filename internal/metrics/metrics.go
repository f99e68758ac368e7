// Package metrics exports Prometheus metrics for the color light. Everything
// is derived from device events, so the collector never calls back into the
// device.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"zigbee-color-light/internal/device"
	"zigbee-color-light/internal/zcl/clusters"
)

const namespace = "color_light"

// Collector counts commands and transitions and tracks the current color of
// every endpoint.
type Collector struct {
	commands    *prometheus.CounterVec
	transitions *prometheus.CounterVec
	hue         *prometheus.GaugeVec
	saturation  *prometheus.GaugeVec
	remaining   *prometheus.GaugeVec
	unsub       func()
}

// New creates a collector and registers its metrics with reg. A nil reg uses
// prometheus.DefaultRegisterer.
func New(reg prometheus.Registerer) (*Collector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	c := &Collector{
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_total",
			Help:      "Color Control commands handled, by command, source and ZCL status.",
		}, []string{"command", "source", "status"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transitions_total",
			Help:      "Transitions that left the running state, by kind and reason.",
		}, []string{"kind", "reason"}),
		hue: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "current_hue",
			Help:      "CurrentHue attribute (0-254).",
		}, []string{"endpoint"}),
		saturation: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "current_saturation",
			Help:      "CurrentSaturation attribute (0-254).",
		}, []string{"endpoint"}),
		remaining: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "remaining_time_seconds",
			Help:      "Time left in the running bounded transition, 0 when idle.",
		}, []string{"endpoint"}),
	}
	for _, m := range []prometheus.Collector{c.commands, c.transitions, c.hue, c.saturation, c.remaining} {
		if err := reg.Register(m); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Attach subscribes the collector to the bus. Handlers only update metric
// values, so they are safe on the device loop.
func (c *Collector) Attach(events *device.EventBus) {
	c.unsub = events.OnAll(c.handleEvent)
}

// Detach stops consuming events.
func (c *Collector) Detach() {
	if c.unsub != nil {
		c.unsub()
		c.unsub = nil
	}
}

func (c *Collector) handleEvent(ev device.Event) {
	data, ok := ev.Data.(map[string]interface{})
	if !ok {
		return
	}
	switch ev.Type {
	case device.EventCommand:
		command, _ := data["command"].(string)
		source, _ := data["source"].(string)
		status, _ := data["status"].(string)
		c.commands.WithLabelValues(command, source, status).Inc()

	case device.EventTransitionDone:
		kind, _ := data["kind"].(string)
		reason, _ := data["reason"].(string)
		c.transitions.WithLabelValues(kind, reason).Inc()

	case device.EventAttributeChanged:
		c.attributeChanged(data)
	}
}

func (c *Collector) attributeChanged(data map[string]interface{}) {
	if cid, _ := data["cluster_id"].(uint16); cid != clusters.ColorControlID {
		return
	}
	ep, ok := data["endpoint"].(uint8)
	if !ok {
		return
	}
	label := strconv.Itoa(int(ep))
	attrID, _ := data["attr_id"].(uint16)

	switch attrID {
	case clusters.AttrCurrentHue:
		if v, ok := data["value"].(uint8); ok {
			c.hue.WithLabelValues(label).Set(float64(v))
		}
	case clusters.AttrCurrentSaturation:
		if v, ok := data["value"].(uint8); ok {
			c.saturation.WithLabelValues(label).Set(float64(v))
		}
	case clusters.AttrRemainingTime:
		if v, ok := data["value"].(uint16); ok {
			secs := float64(v) / 10
			if v == clusters.RemainingTimeIdle {
				secs = 0
			}
			c.remaining.WithLabelValues(label).Set(secs)
		}
	}
}
