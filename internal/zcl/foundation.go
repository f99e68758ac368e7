package zcl

import "fmt"

// Foundation ZCL command IDs (global, not cluster-specific).
const (
	FoundationReadAttributes         uint8 = 0x00
	FoundationReadAttributesResponse uint8 = 0x01
	FoundationWriteAttributes        uint8 = 0x02
	FoundationReportAttributes       uint8 = 0x0A
	FoundationDefaultResponse        uint8 = 0x0B
)

// Status is a ZCL status code, as carried in a default response.
type Status uint8

// ZCL status codes
const (
	StatusSuccess                   Status = 0x00
	StatusFailure                   Status = 0x01
	StatusMalformedCommand          Status = 0x80
	StatusUnsupportedClusterCommand Status = 0x81
	StatusInvalidField              Status = 0x85
	StatusUnsupportedAttr           Status = 0x86
	StatusInvalidValue              Status = 0x87
	StatusReadOnly                  Status = 0x88
	StatusNotFound                  Status = 0x8B
	StatusInvalidDataType           Status = 0x8D
	StatusHardwareFailure           Status = 0xC0
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "SUCCESS"
	case StatusFailure:
		return "FAILURE"
	case StatusMalformedCommand:
		return "MALFORMED_COMMAND"
	case StatusUnsupportedClusterCommand:
		return "UNSUP_CLUSTER_COMMAND"
	case StatusInvalidField:
		return "INVALID_FIELD"
	case StatusUnsupportedAttr:
		return "UNSUPPORTED_ATTRIBUTE"
	case StatusInvalidValue:
		return "INVALID_VALUE"
	case StatusReadOnly:
		return "READ_ONLY"
	case StatusNotFound:
		return "NOT_FOUND"
	case StatusInvalidDataType:
		return "INVALID_DATA_TYPE"
	case StatusHardwareFailure:
		return "HARDWARE_FAILURE"
	default:
		return fmt.Sprintf("0x%02X", uint8(s))
	}
}

// DefaultResponse builds the payload of a ZCL default response for a command.
func DefaultResponse(commandID uint8, status Status) []byte {
	return []byte{commandID, uint8(status)}
}
