package zcl

import "errors"

// ErrShortPayload is returned when a command payload ends before all fields are read.
var ErrShortPayload = errors.New("zcl: payload too short")

// PayloadReader reads fixed-width fields from a cluster command payload in order.
// The first failed read sticks; later reads return zero values.
type PayloadReader struct {
	data []byte
	off  int
	err  error
}

// NewPayloadReader wraps a command payload.
func NewPayloadReader(data []byte) *PayloadReader {
	return &PayloadReader{data: data}
}

func (r *PayloadReader) read(typeID uint8) interface{} {
	if r.err != nil {
		return nil
	}
	v, n, err := DecodeValue(typeID, r.data[r.off:])
	if err != nil {
		r.err = ErrShortPayload
		return nil
	}
	r.off += n
	return v
}

// Uint8 reads a uint8/enum8/map8 field.
func (r *PayloadReader) Uint8() uint8 {
	v, _ := r.read(TypeUint8).(uint8)
	return v
}

// Uint16 reads a little-endian uint16 field.
func (r *PayloadReader) Uint16() uint16 {
	v, _ := r.read(TypeUint16).(uint16)
	return v
}

// Err reports the first read failure, if any.
func (r *PayloadReader) Err() error {
	return r.err
}

// Remaining returns the number of unread bytes.
func (r *PayloadReader) Remaining() int {
	return len(r.data) - r.off
}
