package device

import (
	"math"

	"zigbee-color-light/internal/store"
	"zigbee-color-light/internal/zcl/clusters"
)

// standardPropertyMap names the attributes exposed as state properties.
var standardPropertyMap = map[uint16]map[uint16]string{
	clusters.ColorControlID: {
		clusters.AttrCurrentHue:        "hue",
		clusters.AttrCurrentSaturation: "saturation",
		clusters.AttrRemainingTime:     "remaining_time",
		clusters.AttrColorMode:         "color_mode",
	},
}

// PropertyName returns the state property name for an attribute, or "".
func PropertyName(clusterID, attrID uint16) string {
	return standardPropertyMap[clusterID][attrID]
}

// Properties builds the flat state map published for an endpoint:
// raw hue and saturation, an HS color in degrees and percent, the color
// mode and the remaining transition time in seconds.
func Properties(ep *store.Endpoint) map[string]any {
	props := make(map[string]any)
	for _, a := range ep.Attributes {
		name := PropertyName(a.ClusterID, a.ID)
		if name == "" || a.Value == nil {
			continue
		}
		props[name] = applyTransform(name, a.Value)
	}

	hue, hok := toNumeric(props["hue"])
	sat, sok := toNumeric(props["saturation"])
	if hok && sok {
		props["color"] = map[string]any{
			"h": HueToDegrees(uint8(hue)),
			"s": SaturationToPercent(uint8(sat)),
		}
	}
	return props
}

// applyTransform converts a raw attribute value for a property.
func applyTransform(name string, value interface{}) interface{} {
	switch name {
	case "remaining_time":
		return remainingSeconds(value)
	case "color_mode":
		return colorModeName(value)
	default:
		return value
	}
}

// remainingSeconds converts RemainingTime deciseconds to seconds. The idle
// marker reads as zero.
func remainingSeconds(value interface{}) interface{} {
	ds, ok := toNumeric(value)
	if !ok {
		return value
	}
	if ds == int64(clusters.RemainingTimeIdle) {
		return 0.0
	}
	return float64(ds) / 10
}

func colorModeName(value interface{}) interface{} {
	mode, ok := toNumeric(value)
	if !ok {
		return value
	}
	switch uint8(mode) {
	case clusters.ColorModeHueSaturation:
		return "hs"
	case 0x01:
		return "xy"
	case 0x02:
		return "color_temp"
	default:
		return value
	}
}

// HueToDegrees maps CurrentHue 0..254 onto 0..360 degrees.
func HueToDegrees(hue uint8) float64 {
	return round2(float64(hue) * 360 / 254)
}

// DegreesToHue maps degrees onto CurrentHue, wrapping at 360.
func DegreesToHue(deg float64) uint8 {
	deg = math.Mod(deg, 360)
	if deg < 0 {
		deg += 360
	}
	h := math.Round(deg * 254 / 360)
	if h > 254 {
		h = 0
	}
	return uint8(h)
}

// SaturationToPercent maps CurrentSaturation 0..254 onto 0..100 percent.
func SaturationToPercent(sat uint8) float64 {
	return round2(float64(sat) * 100 / 254)
}

// PercentToSaturation maps a percentage onto CurrentSaturation, clamped.
func PercentToSaturation(pct float64) uint8 {
	if pct <= 0 {
		return 0
	}
	if pct >= 100 {
		return 254
	}
	return uint8(math.Round(pct * 254 / 100))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// toNumeric converts various numeric types to int64.
func toNumeric(value interface{}) (int64, bool) {
	switch v := value.(type) {
	case int:
		return int64(v), true
	case uint8:
		return int64(v), true
	case uint16:
		return int64(v), true
	case uint32:
		return int64(v), true
	case int64:
		return v, true
	case float64:
		return int64(v), true
	default:
		return 0, false
	}
}
