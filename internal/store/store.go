package store

import "errors"

// ErrNotFound is returned when a requested entity does not exist in the store.
var ErrNotFound = errors.New("not found")

// ErrUnsupportedAttribute is returned for attributes the registry does not define.
var ErrUnsupportedAttribute = errors.New("unsupported attribute")

// Store defines the persistence interface for endpoint attributes.
type Store interface {
	// Attribute operations. Values are Go values matching the attribute's
	// ZCL type (uint8 for uint8/enum8/map8, uint16 for 16-bit kinds).
	ReadAttribute(endpoint uint8, clusterID, attrID uint16) (interface{}, error)
	WriteAttribute(endpoint uint8, clusterID, attrID uint16, value interface{}) error

	// InitEndpoint registers an endpoint serving the given cluster and fills
	// in any attribute that has no stored value, from initial or else from
	// the attribute default. Existing values are kept.
	InitEndpoint(endpoint uint8, clusterID uint16, initial map[uint16]interface{}) error

	// Endpoint returns every stored attribute of an endpoint.
	Endpoint(endpoint uint8) (*Endpoint, error)
	DeleteEndpoint(endpoint uint8) error
	ListEndpoints() ([]uint8, error)

	// Close the store
	Close() error
}
