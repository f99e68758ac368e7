// Package colorcontrol implements the hue/saturation transition engine of the
// ZCL Color Control cluster.
//
// An Engine is not safe for concurrent use. Command handlers and Tick must be
// called from a single goroutine; the device package runs them on its event
// loop.
package colorcontrol

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"zigbee-color-light/internal/zcl"
	"zigbee-color-light/internal/zcl/clusters"
)

// ErrUnexpectedType is returned when an attribute holds a value of the wrong Go type.
var ErrUnexpectedType = errors.New("unexpected attribute type")

// Attributes is the attribute storage the engine reads and writes.
type Attributes interface {
	ReadAttribute(endpoint uint8, clusterID, attrID uint16) (interface{}, error)
	WriteAttribute(endpoint uint8, clusterID, attrID uint16, value interface{}) error
}

// Capability decides whether the device can render a hue/saturation pair.
type Capability interface {
	IsColorSupported(hue, saturation uint8) bool
}

// CapabilityFunc adapts a function to Capability.
type CapabilityFunc func(hue, saturation uint8) bool

// IsColorSupported calls f.
func (f CapabilityFunc) IsColorSupported(hue, saturation uint8) bool {
	return f(hue, saturation)
}

// AllColors accepts every hue/saturation pair.
var AllColors = CapabilityFunc(func(uint8, uint8) bool { return true })

// Scheduler arms one pending tick per endpoint. Scheduling again replaces the
// pending tick; CancelTick drops it.
type Scheduler interface {
	ScheduleTick(endpoint uint8, delay time.Duration) error
	CancelTick(endpoint uint8)
}

// Engine runs hue/saturation transitions for any number of endpoints.
type Engine struct {
	attrs      Attributes
	capability Capability
	scheduler  Scheduler
	logger     *slog.Logger

	states map[uint8]*TransitionState
	onEnd  func(TransitionEnd)
}

// New creates an engine. A nil capability accepts every color.
func New(attrs Attributes, capability Capability, scheduler Scheduler, logger *slog.Logger) *Engine {
	if capability == nil {
		capability = AllColors
	}
	return &Engine{
		attrs:      attrs,
		capability: capability,
		scheduler:  scheduler,
		logger:     logger.With("component", "colorcontrol"),
		states:     make(map[uint8]*TransitionState),
	}
}

// OnTransitionEnd registers a callback invoked whenever a running transition
// completes, is stopped, or is aborted.
func (e *Engine) OnTransitionEnd(fn func(TransitionEnd)) {
	e.onEnd = fn
}

// State returns a copy of the endpoint's transition state. Idle endpoints
// return the zero value.
func (e *Engine) State(endpoint uint8) TransitionState {
	if st, ok := e.states[endpoint]; ok {
		return *st
	}
	return TransitionState{}
}

// Phase returns the state machine phase of an endpoint.
func (e *Engine) Phase(endpoint uint8) Phase {
	return e.states[endpoint].phase()
}

// Stop cancels any transition on the endpoint. Stopping an idle endpoint is a
// successful no-op.
func (e *Engine) Stop(endpoint uint8) zcl.Status {
	e.scheduler.CancelTick(endpoint)
	st, ok := e.states[endpoint]
	if !ok || !st.Active {
		return zcl.StatusSuccess
	}
	e.finish(endpoint, EndStopped)
	return zcl.StatusSuccess
}

// start arms a transition. steps is the number of unit steps for bounded
// kinds and is ignored for unbounded ones.
func (e *Engine) start(endpoint uint8, plan TransitionState, intervalMs uint32, steps int) zcl.Status {
	plan.Active = true
	plan.TickIntervalMs = intervalMs
	if plan.Kind.bounded() {
		plan.TotalDurationMs = intervalMs * uint32(steps)
	}

	if err := e.scheduler.ScheduleTick(endpoint, msDuration(intervalMs)); err != nil {
		e.logger.Error("schedule tick", "endpoint", endpoint, "err", err)
		return zcl.StatusFailure
	}
	e.states[endpoint] = &plan

	if err := e.writeUint8(endpoint, clusters.AttrColorMode, clusters.ColorModeHueSaturation); err != nil {
		e.logger.Warn("write color mode", "endpoint", endpoint, "err", err)
	}
	remaining := clusters.RemainingTimeIdle
	if plan.Kind.bounded() {
		remaining = plan.RemainingDeciseconds()
	}
	if err := e.writeRemaining(endpoint, remaining); err != nil {
		e.logger.Warn("write remaining time", "endpoint", endpoint, "err", err)
	}

	e.logger.Debug("transition started",
		"endpoint", endpoint,
		"kind", plan.Kind,
		"interval_ms", plan.TickIntervalMs,
		"total_ms", plan.TotalDurationMs,
	)
	return zcl.StatusSuccess
}

// finish clears the endpoint's transition and resets RemainingTime.
func (e *Engine) finish(endpoint uint8, reason EndReason) {
	st := e.states[endpoint]
	delete(e.states, endpoint)
	if err := e.writeRemaining(endpoint, clusters.RemainingTimeIdle); err != nil {
		e.logger.Warn("reset remaining time", "endpoint", endpoint, "err", err)
	}
	var kind CommandKind
	if st != nil {
		kind = st.Kind
	}
	e.logger.Debug("transition ended", "endpoint", endpoint, "kind", kind, "reason", reason)
	if e.onEnd != nil {
		e.onEnd(TransitionEnd{Endpoint: endpoint, Kind: kind, Reason: reason})
	}
}

func (e *Engine) readUint8(endpoint uint8, attrID uint16) (uint8, error) {
	v, err := e.attrs.ReadAttribute(endpoint, clusters.ColorControlID, attrID)
	if err != nil {
		return 0, fmt.Errorf("read attribute 0x%04X: %w", attrID, err)
	}
	u, ok := v.(uint8)
	if !ok {
		return 0, fmt.Errorf("attribute 0x%04X holds %T: %w", attrID, v, ErrUnexpectedType)
	}
	return u, nil
}

func (e *Engine) readHueSat(endpoint uint8) (hue, sat uint8, err error) {
	if hue, err = e.readUint8(endpoint, clusters.AttrCurrentHue); err != nil {
		return 0, 0, err
	}
	if sat, err = e.readUint8(endpoint, clusters.AttrCurrentSaturation); err != nil {
		return 0, 0, err
	}
	return hue, sat, nil
}

func (e *Engine) writeUint8(endpoint uint8, attrID uint16, v uint8) error {
	if err := e.attrs.WriteAttribute(endpoint, clusters.ColorControlID, attrID, v); err != nil {
		return fmt.Errorf("write attribute 0x%04X: %w", attrID, err)
	}
	return nil
}

func (e *Engine) writeRemaining(endpoint uint8, ds uint16) error {
	if err := e.attrs.WriteAttribute(endpoint, clusters.ColorControlID, clusters.AttrRemainingTime, ds); err != nil {
		return fmt.Errorf("write remaining time: %w", err)
	}
	return nil
}

// readFailed logs a command-time read failure and maps it to a status.
func (e *Engine) readFailed(endpoint uint8, cmd string, err error) zcl.Status {
	e.logger.Error("read current color", "endpoint", endpoint, "command", cmd, "err", err)
	return zcl.StatusFailure
}

// transitionInterval spreads a transition time in deciseconds over steps
// ticks. Intervals are at least one millisecond.
func transitionInterval(transitionTime uint16, steps int) uint32 {
	ms := uint32(transitionTime) * 100 / uint32(steps)
	if ms == 0 {
		ms = 1
	}
	return ms
}

func msDuration(ms uint32) time.Duration {
	return time.Duration(ms) * time.Millisecond
}
