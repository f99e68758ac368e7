package colorcontrol

import "zigbee-color-light/internal/zcl"

// Direction is the direction field of MoveToHue.
type Direction uint8

const (
	DirectionShortest Direction = 0x00
	DirectionLongest  Direction = 0x01
	DirectionUp       Direction = 0x02
	DirectionDown     Direction = 0x03
)

// MoveMode is the move mode field of MoveHue and MoveSaturation.
type MoveMode uint8

const (
	MoveStop MoveMode = 0x00
	MoveUp   MoveMode = 0x01
	MoveDown MoveMode = 0x03
)

// StepMode is the step mode field of StepHue and StepSaturation.
type StepMode uint8

const (
	StepUp   StepMode = 0x01
	StepDown StepMode = 0x03
)

// MoveToHue moves CurrentHue to hue over transitionTime deciseconds.
func (e *Engine) MoveToHue(endpoint, hue uint8, dir Direction, transitionTime uint16) zcl.Status {
	currentHue, currentSat, err := e.readHueSat(endpoint)
	if err != nil {
		return e.readFailed(endpoint, "MoveToHue", err)
	}
	if hue > maxValue || !e.capability.IsColorSupported(hue, currentSat) {
		return zcl.StatusInvalidValue
	}
	if hue == currentHue {
		return zcl.StatusSuccess
	}

	var up bool
	switch dir {
	case DirectionShortest:
		up = shortestUp(currentHue, hue)
	case DirectionLongest:
		up = longestUp(currentHue, hue)
	case DirectionUp:
		up = true
	case DirectionDown:
		up = false
	default:
		return zcl.StatusInvalidField
	}

	steps := ringDistance(currentHue, hue, up)
	plan := TransitionState{
		Kind:             KindMoveToHue,
		HueDirection:     up,
		HueTarget:        hue,
		SaturationTarget: currentSat,
	}
	return e.start(endpoint, plan, transitionInterval(transitionTime, steps), steps)
}

// MoveHue moves CurrentHue continuously at rate units per second until stopped.
func (e *Engine) MoveHue(endpoint uint8, mode MoveMode, rate uint8) zcl.Status {
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
		return e.readFailed(endpoint, "MoveHue", err)
	}
	plan := TransitionState{
		Kind:             KindMoveHue,
		HueDirection:     up,
		HueTarget:        currentHue,
		SaturationTarget: currentSat,
	}
	return e.start(endpoint, plan, 1000/uint32(rate), 0)
}

// StepHue moves CurrentHue by stepSize units over transitionTime deciseconds.
func (e *Engine) StepHue(endpoint uint8, mode StepMode, stepSize uint8, transitionTime uint16) zcl.Status {
	if stepSize == 0 {
		return zcl.StatusInvalidValue
	}
	up, ok := stepUp(mode)
	if !ok {
		return zcl.StatusInvalidField
	}

	currentHue, currentSat, err := e.readHueSat(endpoint)
	if err != nil {
		return e.readFailed(endpoint, "StepHue", err)
	}
	target := offsetTarget(currentHue, stepSize, up)
	if !e.capability.IsColorSupported(target, currentSat) {
		return zcl.StatusInvalidValue
	}
	steps := ringDistance(currentHue, target, up)
	if steps == 0 {
		return zcl.StatusSuccess
	}

	plan := TransitionState{
		Kind:             KindStepHue,
		HueDirection:     up,
		HueTarget:        target,
		SaturationTarget: currentSat,
	}
	return e.start(endpoint, plan, transitionInterval(transitionTime, steps), steps)
}

func moveUp(mode MoveMode) (up, ok bool) {
	switch mode {
	case MoveUp:
		return true, true
	case MoveDown:
		return false, true
	}
	return false, false
}

func stepUp(mode StepMode) (up, ok bool) {
	switch mode {
	case StepUp:
		return true, true
	case StepDown:
		return false, true
	}
	return false, false
}
