package colorcontrol

import (
	"zigbee-color-light/internal/zcl/clusters"
)

// Tick advances the endpoint's transition by one step. It is called by the
// scheduler; failures abort the transition and are only logged.
func (e *Engine) Tick(endpoint uint8) {
	st, ok := e.states[endpoint]
	if !ok || !st.Active {
		return
	}

	var (
		done bool
		err  error
	)
	switch st.Kind {
	case KindMoveToHue, KindMoveHue, KindStepHue:
		done, err = e.tickHue(endpoint, st)
	case KindMoveToSaturation, KindMoveSaturation, KindStepSaturation:
		done, err = e.tickSaturation(endpoint, st)
	case KindMoveToHueAndSaturation:
		done, err = e.tickCoupled(endpoint, st)
	}
	if err != nil {
		e.logger.Warn("transition aborted", "endpoint", endpoint, "kind", st.Kind, "err", err)
		e.finish(endpoint, EndAborted)
		return
	}

	if st.Kind.bounded() {
		st.ElapsedMs += st.TickIntervalMs
		if st.ElapsedMs > st.TotalDurationMs {
			st.ElapsedMs = st.TotalDurationMs
		}
		if done || st.ElapsedMs == st.TotalDurationMs {
			st.ElapsedMs = st.TotalDurationMs
			e.finish(endpoint, EndCompleted)
			return
		}
		if err := e.writeRemaining(endpoint, st.RemainingDeciseconds()); err != nil {
			e.logger.Warn("transition aborted", "endpoint", endpoint, "kind", st.Kind, "err", err)
			e.finish(endpoint, EndAborted)
			return
		}
	}

	if err := e.scheduler.ScheduleTick(endpoint, msDuration(st.TickIntervalMs)); err != nil {
		e.logger.Warn("reschedule tick", "endpoint", endpoint, "err", err)
		e.finish(endpoint, EndAborted)
	}
}

func (e *Engine) tickHue(endpoint uint8, st *TransitionState) (bool, error) {
	hue, err := e.readUint8(endpoint, clusters.AttrCurrentHue)
	if err != nil {
		return false, err
	}
	next := stepRing(hue, st.HueDirection)
	if err := e.writeUint8(endpoint, clusters.AttrCurrentHue, next); err != nil {
		return false, err
	}
	if !st.Kind.bounded() {
		return false, nil
	}
	return next == st.HueTarget, nil
}

func (e *Engine) tickSaturation(endpoint uint8, st *TransitionState) (bool, error) {
	sat, err := e.readUint8(endpoint, clusters.AttrCurrentSaturation)
	if err != nil {
		return false, err
	}
	bounded := st.Kind.bounded()
	if bounded && atBoundary(sat, st.SaturationDirection) {
		return true, nil
	}
	next := stepRing(sat, st.SaturationDirection)
	if err := e.writeUint8(endpoint, clusters.AttrCurrentSaturation, next); err != nil {
		return false, err
	}
	if !bounded {
		return false, nil
	}
	return next == st.SaturationTarget || atBoundary(next, st.SaturationDirection), nil
}

func (e *Engine) tickCoupled(endpoint uint8, st *TransitionState) (bool, error) {
	hue, sat, err := e.readHueSat(endpoint)
	if err != nil {
		return false, err
	}
	nextHue, nextSat, done := coupledStep(st, hue, sat)
	if err := e.writeUint8(endpoint, clusters.AttrCurrentHue, nextHue); err != nil {
		return false, err
	}
	if err := e.writeUint8(endpoint, clusters.AttrCurrentSaturation, nextSat); err != nil {
		return false, err
	}
	return done, nil
}
