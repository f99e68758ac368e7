package colorcontrol

import "zigbee-color-light/internal/zcl"

// MoveToSaturation moves CurrentSaturation to sat over transitionTime
// deciseconds. Saturation has no direction field; it moves toward the target
// without wrapping.
func (e *Engine) MoveToSaturation(endpoint, sat uint8, transitionTime uint16) zcl.Status {
	currentHue, currentSat, err := e.readHueSat(endpoint)
	if err != nil {
		return e.readFailed(endpoint, "MoveToSaturation", err)
	}
	if sat > maxValue || !e.capability.IsColorSupported(currentHue, sat) {
		return zcl.StatusInvalidValue
	}
	if sat == currentSat {
		return zcl.StatusSuccess
	}

	up := sat > currentSat
	steps := ringDistance(currentSat, sat, up)
	plan := TransitionState{
		Kind:                KindMoveToSaturation,
		SaturationDirection: up,
		HueTarget:           currentHue,
		SaturationTarget:    sat,
	}
	return e.start(endpoint, plan, transitionInterval(transitionTime, steps), steps)
}

// MoveSaturation moves CurrentSaturation continuously at rate units per second until stopped.
func (e *Engine) MoveSaturation(endpoint uint8, mode MoveMode, rate uint8) zcl.Status {
	if mode == MoveStop {
		return e.Stop(endpoint)
	}
	if rate == 0 {
		return zcl.StatusInvalidValue
	}
	up, ok := moveUp(mode)
	if !ok {
		return zcl.StatusInvalidField
	}

	currentHue, currentSat, err := e.readHueSat(endpoint)
	if err != nil {
		return e.readFailed(endpoint, "MoveSaturation", err)
	}
	plan := TransitionState{
		Kind:                KindMoveSaturation,
		SaturationDirection: up,
		HueTarget:           currentHue,
		SaturationTarget:    currentSat,
	}
	return e.start(endpoint, plan, 1000/uint32(rate), 0)
}

// StepSaturation moves CurrentSaturation by stepSize units over transitionTime
// deciseconds. Saturation does not wrap: the target stops at 0x00 or 0xFE.
func (e *Engine) StepSaturation(endpoint uint8, mode StepMode, stepSize uint8, transitionTime uint16) zcl.Status {
	if stepSize == 0 {
		return zcl.StatusInvalidValue
	}
	up, ok := stepUp(mode)
	if !ok {
		return zcl.StatusInvalidField
	}

	currentHue, currentSat, err := e.readHueSat(endpoint)
	if err != nil {
		return e.readFailed(endpoint, "StepSaturation", err)
	}
	target := clampedTarget(currentSat, stepSize, up)
	if !e.capability.IsColorSupported(currentHue, target) {
		return zcl.StatusInvalidValue
	}
	steps := int(target) - int(currentSat)
	if !up {
		steps = -steps
	}
	if steps <= 0 {
		return zcl.StatusSuccess
	}

	plan := TransitionState{
		Kind:                KindStepSaturation,
		SaturationDirection: up,
		HueTarget:           currentHue,
		SaturationTarget:    target,
	}
	return e.start(endpoint, plan, transitionInterval(transitionTime, steps), steps)
}
