package device

import (
	"errors"
	"fmt"
	"strings"

	"zigbee-color-light/internal/colorcontrol"
	"zigbee-color-light/internal/zcl/clusters"
)

// ErrInvalidCommand is returned for commands that cannot be encoded.
var ErrInvalidCommand = errors.New("invalid command")

// Command is the JSON form of a Color Control hue/saturation command, as
// accepted by the HTTP API, MQTT and automation scripts.
type Command struct {
	Command        string `json:"command"`
	Hue            uint8  `json:"hue,omitempty"`
	Saturation     uint8  `json:"saturation,omitempty"`
	Direction      string `json:"direction,omitempty"` // shortest (default), longest, up, down
	Mode           string `json:"mode,omitempty"`      // up, down, stop
	Rate           uint8  `json:"rate,omitempty"`
	StepSize       uint8  `json:"step_size,omitempty"`
	TransitionTime uint16 `json:"transition_time,omitempty"` // deciseconds
}

// Command names
const (
	CommandMoveToHue              = "move_to_hue"
	CommandMoveHue                = "move_hue"
	CommandStepHue                = "step_hue"
	CommandMoveToSaturation       = "move_to_saturation"
	CommandMoveSaturation         = "move_saturation"
	CommandStepSaturation         = "step_saturation"
	CommandMoveToHueAndSaturation = "move_to_hue_and_saturation"
	CommandStop                   = "stop"
)

// Frame encodes the command as a Color Control command ID and payload.
func (c Command) Frame() (uint8, []byte, error) {
	tt := []byte{byte(c.TransitionTime), byte(c.TransitionTime >> 8)}

	switch strings.ToLower(c.Command) {
	case CommandMoveToHue:
		dir, err := parseDirection(c.Direction)
		if err != nil {
			return 0, nil, err
		}
		return clusters.CmdMoveToHue, append([]byte{c.Hue, byte(dir)}, tt...), nil

	case CommandMoveHue:
		mode, err := parseMoveMode(c.Mode)
		if err != nil {
			return 0, nil, err
		}
		return clusters.CmdMoveHue, []byte{byte(mode), c.Rate}, nil

	case CommandStepHue:
		mode, err := parseStepMode(c.Mode)
		if err != nil {
			return 0, nil, err
		}
		if c.TransitionTime > 0xFF {
			return 0, nil, fmt.Errorf("%w: step transition_time %d exceeds 255", ErrInvalidCommand, c.TransitionTime)
		}
		return clusters.CmdStepHue, []byte{byte(mode), c.StepSize, byte(c.TransitionTime)}, nil

	case CommandMoveToSaturation:
		return clusters.CmdMoveToSaturation, append([]byte{c.Saturation}, tt...), nil

	case CommandMoveSaturation:
		mode, err := parseMoveMode(c.Mode)
		if err != nil {
			return 0, nil, err
		}
		return clusters.CmdMoveSaturation, []byte{byte(mode), c.Rate}, nil

	case CommandStepSaturation:
		mode, err := parseStepMode(c.Mode)
		if err != nil {
			return 0, nil, err
		}
		if c.TransitionTime > 0xFF {
			return 0, nil, fmt.Errorf("%w: step transition_time %d exceeds 255", ErrInvalidCommand, c.TransitionTime)
		}
		return clusters.CmdStepSaturation, []byte{byte(mode), c.StepSize, byte(c.TransitionTime)}, nil

	case CommandMoveToHueAndSaturation:
		return clusters.CmdMoveToHueAndSaturation, append([]byte{c.Hue, c.Saturation}, tt...), nil

	case CommandStop:
		return clusters.CmdStopMoveStep, []byte{0x00, 0x00}, nil
	}
	return 0, nil, fmt.Errorf("%w: unknown command %q", ErrInvalidCommand, c.Command)
}

func parseDirection(s string) (colorcontrol.Direction, error) {
	switch strings.ToLower(s) {
	case "", "shortest":
		return colorcontrol.DirectionShortest, nil
	case "longest":
		return colorcontrol.DirectionLongest, nil
	case "up":
		return colorcontrol.DirectionUp, nil
	case "down":
		return colorcontrol.DirectionDown, nil
	}
	return 0, fmt.Errorf("%w: direction %q", ErrInvalidCommand, s)
}

func parseMoveMode(s string) (colorcontrol.MoveMode, error) {
	switch strings.ToLower(s) {
	case "stop":
		return colorcontrol.MoveStop, nil
	case "up":
		return colorcontrol.MoveUp, nil
	case "down":
		return colorcontrol.MoveDown, nil
	}
	return 0, fmt.Errorf("%w: move mode %q", ErrInvalidCommand, s)
}

func parseStepMode(s string) (colorcontrol.StepMode, error) {
	switch strings.ToLower(s) {
	case "up":
		return colorcontrol.StepUp, nil
	case "down":
		return colorcontrol.StepDown, nil
	}
	return 0, fmt.Errorf("%w: step mode %q", ErrInvalidCommand, s)
}
