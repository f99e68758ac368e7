package zcl

import (
	"errors"
	"fmt"
)

// ZCL data type IDs carried by the Color Control hue/saturation attributes
// and command fields.
const (
	TypeNoData   uint8 = 0x00
	TypeBitmap8  uint8 = 0x18
	TypeBitmap16 uint8 = 0x19
	TypeUint8    uint8 = 0x20
	TypeUint16   uint8 = 0x21
	TypeEnum8    uint8 = 0x30
)

// ErrUnsupportedType is returned for type IDs the codec does not handle.
var ErrUnsupportedType = errors.New("zcl: unsupported type")

type typeInfo struct {
	name string
	size int
}

// Every supported type is an unsigned little-endian integer of its size.
var typeTable = map[uint8]typeInfo{
	TypeNoData:   {"nodata", 0},
	TypeBitmap8:  {"map8", 1},
	TypeBitmap16: {"map16", 2},
	TypeUint8:    {"uint8", 1},
	TypeUint16:   {"uint16", 2},
	TypeEnum8:    {"enum8", 1},
}

// TypeSize returns the size in bytes of a ZCL type, or -1 if the codec does not handle it.
func TypeSize(typeID uint8) int {
	if t, ok := typeTable[typeID]; ok {
		return t.size
	}
	return -1
}

// TypeName returns a human-readable name for a ZCL type.
func TypeName(typeID uint8) string {
	if t, ok := typeTable[typeID]; ok {
		return t.name
	}
	return fmt.Sprintf("0x%02X", typeID)
}

// DecodeValue decodes a ZCL typed value from raw bytes, returning the Go value
// and the number of bytes consumed. One-byte types decode to uint8, two-byte
// types to uint16.
func DecodeValue(typeID uint8, data []byte) (interface{}, int, error) {
	t, ok := typeTable[typeID]
	if !ok {
		return nil, 0, fmt.Errorf("%w 0x%02X", ErrUnsupportedType, typeID)
	}
	if len(data) < t.size {
		return nil, 0, fmt.Errorf("zcl: %s needs %d bytes, have %d", t.name, t.size, len(data))
	}
	switch t.size {
	case 1:
		return data[0], 1, nil
	case 2:
		return uint16(data[0]) | uint16(data[1])<<8, 2, nil
	}
	return nil, 0, nil
}

// EncodeValue encodes a Go value into ZCL wire format. Integers of any Go
// kind are accepted as long as they fit, including whole JSON numbers.
func EncodeValue(typeID uint8, val interface{}) ([]byte, error) {
	t, ok := typeTable[typeID]
	if !ok || t.size == 0 {
		return nil, fmt.Errorf("%w 0x%02X", ErrUnsupportedType, typeID)
	}
	v, ok := toUint64(val)
	if !ok {
		return nil, fmt.Errorf("zcl: cannot convert %T to %s", val, t.name)
	}
	if limit := uint64(1)<<(8*t.size) - 1; v > limit {
		return nil, fmt.Errorf("zcl: value %d overflows %s (max %d)", v, t.name, limit)
	}
	buf := make([]byte, t.size)
	for i := range buf {
		buf[i] = byte(v >> (8 * i))
	}
	return buf, nil
}

func toUint64(v interface{}) (uint64, bool) {
	switch val := v.(type) {
	case uint8:
		return uint64(val), true
	case uint16:
		return uint64(val), true
	case uint32:
		return uint64(val), true
	case uint64:
		return val, true
	case int:
		if val < 0 {
			return 0, false
		}
		return uint64(val), true
	case int64:
		if val < 0 {
			return 0, false
		}
		return uint64(val), true
	case float64:
		if val < 0 || val != float64(uint64(val)) {
			return 0, false
		}
		return uint64(val), true
	}
	return 0, false
}
