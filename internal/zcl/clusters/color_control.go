package clusters

import "zigbee-color-light/internal/zcl"

// Color Control cluster identifiers.
const (
	ColorControlID uint16 = 0x0300

	AttrCurrentHue        uint16 = 0x0000
	AttrCurrentSaturation uint16 = 0x0001
	AttrRemainingTime     uint16 = 0x0002
	AttrColorMode         uint16 = 0x0008
	AttrOptions           uint16 = 0x000F
	AttrEnhancedColorMode uint16 = 0x4002
	AttrColorCapabilities uint16 = 0x400A

	CmdMoveToHue              uint8 = 0x00
	CmdMoveHue                uint8 = 0x01
	CmdStepHue                uint8 = 0x02
	CmdMoveToSaturation       uint8 = 0x03
	CmdMoveSaturation         uint8 = 0x04
	CmdStepSaturation         uint8 = 0x05
	CmdMoveToHueAndSaturation uint8 = 0x06
	CmdStopMoveStep           uint8 = 0x47
)

// ColorModeHueSaturation is the ColorMode value for CurrentHue/CurrentSaturation control.
const ColorModeHueSaturation uint8 = 0x00

// RemainingTimeIdle is the RemainingTime value when no transition is running.
const RemainingTimeIdle uint16 = 0xFFFF

// ColorControl is the hue/saturation subset of the Color Control cluster served by a light endpoint.
var ColorControl = zcl.ClusterDef{
	ID:   ColorControlID,
	Name: "Color Control",
	Attributes: []zcl.AttributeDef{
		{ID: AttrCurrentHue, Name: "CurrentHue", Type: zcl.TypeUint8, Access: zcl.AccessRead | zcl.AccessReport, Default: uint8(0x00)},
		{ID: AttrCurrentSaturation, Name: "CurrentSaturation", Type: zcl.TypeUint8, Access: zcl.AccessRead | zcl.AccessReport, Default: uint8(0x00)},
		{ID: AttrRemainingTime, Name: "RemainingTime", Type: zcl.TypeUint16, Access: zcl.AccessRead, Default: RemainingTimeIdle},
		{ID: AttrColorMode, Name: "ColorMode", Type: zcl.TypeEnum8, Access: zcl.AccessRead, Default: ColorModeHueSaturation},
		{ID: AttrOptions, Name: "Options", Type: zcl.TypeBitmap8, Access: zcl.AccessRead | zcl.AccessWrite, Default: uint8(0x00)},
		{ID: AttrEnhancedColorMode, Name: "EnhancedColorMode", Type: zcl.TypeEnum8, Access: zcl.AccessRead, Default: ColorModeHueSaturation},
		{ID: AttrColorCapabilities, Name: "ColorCapabilities", Type: zcl.TypeBitmap16, Access: zcl.AccessRead, Default: uint16(0x0001)}, // hue/saturation only
	},
	Commands: []zcl.CommandDef{
		{ID: CmdMoveToHue, Name: "MoveToHue"},
		{ID: CmdMoveHue, Name: "MoveHue"},
		{ID: CmdStepHue, Name: "StepHue"},
		{ID: CmdMoveToSaturation, Name: "MoveToSaturation"},
		{ID: CmdMoveSaturation, Name: "MoveSaturation"},
		{ID: CmdStepSaturation, Name: "StepSaturation"},
		{ID: CmdMoveToHueAndSaturation, Name: "MoveToHueAndSaturation"},
		{ID: CmdStopMoveStep, Name: "StopMoveStep"},
	},
}
