package colorcontrol

import (
	"zigbee-color-light/internal/zcl"
	"zigbee-color-light/internal/zcl/clusters"
)

// Dispatch decodes a cluster-specific Color Control command payload and runs
// the matching handler. The returned status goes into the default response.
// Trailing option fields are accepted and ignored.
func (e *Engine) Dispatch(endpoint, commandID uint8, payload []byte) zcl.Status {
	r := zcl.NewPayloadReader(payload)
	switch commandID {
	case clusters.CmdMoveToHue:
		hue, dir, tt := r.Uint8(), Direction(r.Uint8()), r.Uint16()
		if r.Err() != nil {
			return zcl.StatusMalformedCommand
		}
		return e.MoveToHue(endpoint, hue, dir, tt)

	case clusters.CmdMoveHue:
		mode, rate := MoveMode(r.Uint8()), r.Uint8()
		if r.Err() != nil {
			return zcl.StatusMalformedCommand
		}
		return e.MoveHue(endpoint, mode, rate)

	case clusters.CmdStepHue:
		mode, size, tt := StepMode(r.Uint8()), r.Uint8(), r.Uint8()
		if r.Err() != nil {
			return zcl.StatusMalformedCommand
		}
		return e.StepHue(endpoint, mode, size, uint16(tt))

	case clusters.CmdMoveToSaturation:
		sat, tt := r.Uint8(), r.Uint16()
		if r.Err() != nil {
			return zcl.StatusMalformedCommand
		}
		return e.MoveToSaturation(endpoint, sat, tt)

	case clusters.CmdMoveSaturation:
		mode, rate := MoveMode(r.Uint8()), r.Uint8()
		if r.Err() != nil {
			return zcl.StatusMalformedCommand
		}
		return e.MoveSaturation(endpoint, mode, rate)

	case clusters.CmdStepSaturation:
		mode, size, tt := StepMode(r.Uint8()), r.Uint8(), r.Uint8()
		if r.Err() != nil {
			return zcl.StatusMalformedCommand
		}
		return e.StepSaturation(endpoint, mode, size, uint16(tt))

	case clusters.CmdMoveToHueAndSaturation:
		hue, sat, tt := r.Uint8(), r.Uint8(), r.Uint16()
		if r.Err() != nil {
			return zcl.StatusMalformedCommand
		}
		return e.MoveToHueAndSaturation(endpoint, hue, sat, tt)

	case clusters.CmdStopMoveStep:
		return e.Stop(endpoint)
	}
	return zcl.StatusUnsupportedClusterCommand
}
