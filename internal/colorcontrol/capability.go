package colorcontrol

// RangeCapability accepts colors whose hue and saturation fall inside
// inclusive bounds. A hue range with MinHue > MaxHue wraps through 0.
type RangeCapability struct {
	MinHue        uint8
	MaxHue        uint8
	MinSaturation uint8
	MaxSaturation uint8
}

// FullRange accepts every valid hue and saturation.
var FullRange = RangeCapability{MaxHue: maxValue, MaxSaturation: maxValue}

// IsColorSupported reports whether the pair lies within the bounds.
func (r RangeCapability) IsColorSupported(hue, saturation uint8) bool {
	if saturation < r.MinSaturation || saturation > r.MaxSaturation {
		return false
	}
	if r.MinHue <= r.MaxHue {
		return hue >= r.MinHue && hue <= r.MaxHue
	}
	return hue >= r.MinHue || hue <= r.MaxHue
}
