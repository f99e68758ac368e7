package colorcontrol

// Hue and saturation live on a ring of 255 values, 0x00 to 0xFE. 0xFF is
// never a valid coordinate.
const (
	maxValue  uint8 = 0xFE
	ringSize        = 255
	halfRing        = 127
	invalidCV uint8 = 0xFF
)

// stepRing moves v by one unit, wrapping 0xFE -> 0x00 going up and
// 0x00 -> 0xFE going down.
func stepRing(v uint8, up bool) uint8 {
	if up {
		if v >= maxValue {
			return 0x00
		}
		return v + 1
	}
	if v == 0x00 || v == invalidCV {
		return maxValue
	}
	return v - 1
}

// advanceRing moves v by n units on the ring.
func advanceRing(v uint8, n int, up bool) uint8 {
	if !up {
		n = -n
	}
	r := (int(v) + n) % ringSize
	if r < 0 {
		r += ringSize
	}
	return uint8(r)
}

// upDistance is (to - from) mod 255.
func upDistance(from, to uint8) int {
	return ((int(to)-int(from))%ringSize + ringSize) % ringSize
}

// ringDistance is the number of unit steps from one value to another in a direction.
func ringDistance(from, to uint8, up bool) int {
	if up {
		return upDistance(from, to)
	}
	return upDistance(to, from)
}

// shortestUp reports whether going up is the shorter way round.
func shortestUp(from, to uint8) bool {
	return upDistance(from, to) <= halfRing
}

// longestUp reports whether going up is the longer way round.
func longestUp(from, to uint8) bool {
	return upDistance(from, to) >= halfRing
}

// offsetTarget computes current ± size in byte arithmetic. A result of 0xFF
// is pushed one further in the same direction.
func offsetTarget(current, size uint8, up bool) uint8 {
	if up {
		t := current + size
		if t == invalidCV {
			t++
		}
		return t
	}
	t := current - size
	if t == invalidCV {
		t--
	}
	return t
}

// clampedTarget computes current ± size without wrapping, stopping at 0x00
// or maxValue.
func clampedTarget(current, size uint8, up bool) uint8 {
	t := int(current) - int(size)
	if up {
		t = int(current) + int(size)
	}
	switch {
	case t < 0:
		return 0x00
	case t > int(maxValue):
		return maxValue
	}
	return uint8(t)
}

// atBoundary reports whether v sits at the end of the saturation range in direction up.
func atBoundary(v uint8, up bool) bool {
	if up {
		return v >= maxValue
	}
	return v == 0x00
}
