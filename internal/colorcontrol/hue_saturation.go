package colorcontrol

import "zigbee-color-light/internal/zcl"

// MoveToHueAndSaturation moves both coordinates to their targets over
// transitionTime deciseconds, each the short way round. The axis with the
// longer distance is accelerated so that both arrive together.
func (e *Engine) MoveToHueAndSaturation(endpoint, hue, sat uint8, transitionTime uint16) zcl.Status {
	currentHue, currentSat, err := e.readHueSat(endpoint)
	if err != nil {
		return e.readFailed(endpoint, "MoveToHueAndSaturation", err)
	}
	if hue > maxValue || sat > maxValue || !e.capability.IsColorSupported(hue, sat) {
		return zcl.StatusInvalidValue
	}

	hueUp := shortestUp(currentHue, hue)
	hueDiff := ringDistance(currentHue, hue, hueUp)
	satUp := shortestUp(currentSat, sat)
	satDiff := ringDistance(currentSat, sat, satUp)

	// A zero distance on either axis would divide by zero below.
	if hueDiff == 0 {
		return e.MoveToSaturation(endpoint, sat, transitionTime)
	}
	if satDiff == 0 {
		return e.MoveToHue(endpoint, hue, DirectionShortest, transitionTime)
	}

	plan := TransitionState{
		Kind:                KindMoveToHueAndSaturation,
		HueDirection:        hueUp,
		SaturationDirection: satUp,
		HueTarget:           hue,
		SaturationTarget:    sat,
	}
	if hueDiff >= satDiff {
		plan.AcceleratedAxis = AxisHue
		plan.AccelerationRate = hueDiff / satDiff
	} else {
		plan.AcceleratedAxis = AxisSaturation
		plan.AccelerationRate = satDiff / hueDiff
	}
	// The accelerated axis usually arrives first, so the transition time is
	// spread over the ticks the stepper will actually run.
	ticks := coupledTicks(&plan, currentHue, currentSat)
	return e.start(endpoint, plan, transitionInterval(transitionTime, ticks), ticks)
}

// coupledTicks counts the ticks a coupled move takes from (hue, sat). The
// slow axis moves every tick, so the count is bounded by its distance.
func coupledTicks(st *TransitionState, hue, sat uint8) int {
	n := 0
	for done := false; !done; n++ {
		hue, sat, done = coupledStep(st, hue, sat)
	}
	return n
}

// coupledStep advances both axes by one tick. The slow axis moves one unit;
// the accelerated axis moves AccelerationRate-1 units when its remaining
// distance per remaining slow-axis unit exceeds the nominal rate, and
// AccelerationRate+1 otherwise. When either axis lands on its target the
// other is snapped to its own target.
func coupledStep(st *TransitionState, hue, sat uint8) (nextHue, nextSat uint8, done bool) {
	remHue := ringDistance(hue, st.HueTarget, st.HueDirection)
	remSat := ringDistance(sat, st.SaturationTarget, st.SaturationDirection)
	if remHue == 0 || remSat == 0 {
		return st.HueTarget, st.SaturationTarget, true
	}

	if st.AcceleratedAxis == AxisHue {
		n := acceleratedStep(remHue, remSat, st.AccelerationRate)
		nextHue = advanceClamped(hue, n, remHue, st.HueDirection)
		nextSat = stepRing(sat, st.SaturationDirection)
	} else {
		n := acceleratedStep(remSat, remHue, st.AccelerationRate)
		nextSat = advanceClamped(sat, n, remSat, st.SaturationDirection)
		nextHue = stepRing(hue, st.HueDirection)
	}

	if nextHue == st.HueTarget || nextSat == st.SaturationTarget {
		return st.HueTarget, st.SaturationTarget, true
	}
	return nextHue, nextSat, false
}

func acceleratedStep(remFast, remSlow, rate int) int {
	if remFast/remSlow > rate {
		return rate - 1
	}
	return rate + 1
}

// advanceClamped moves v by n units but never past the remaining distance.
func advanceClamped(v uint8, n, remaining int, up bool) uint8 {
	if n > remaining {
		n = remaining
	}
	return advanceRing(v, n, up)
}
