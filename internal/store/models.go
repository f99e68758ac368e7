package store

import "time"

// Endpoint is a snapshot of one light endpoint's attributes.
type Endpoint struct {
	ID         uint8       `json:"id"`
	Clusters   []uint16    `json:"clusters"`
	Attributes []Attribute `json:"attributes"`
	CreatedAt  time.Time   `json:"created_at"`
}

// Attribute is a decoded attribute value.
type Attribute struct {
	ClusterID uint16      `json:"cluster_id"`
	ID        uint16      `json:"id"`
	Name      string      `json:"name"`
	Type      string      `json:"type"`
	Value     interface{} `json:"value"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// Find returns the attribute with the given cluster and attribute ID, or nil.
func (e *Endpoint) Find(clusterID, attrID uint16) *Attribute {
	for i := range e.Attributes {
		if e.Attributes[i].ClusterID == clusterID && e.Attributes[i].ID == attrID {
			return &e.Attributes[i]
		}
	}
	return nil
}

// endpointRecord is the persisted endpoint metadata.
type endpointRecord struct {
	ID        uint8     `json:"id"`
	Clusters  []uint16  `json:"clusters"`
	CreatedAt time.Time `json:"created_at"`
}

// attributeRecord is the persisted form of one attribute: its ZCL type and
// wire encoding.
type attributeRecord struct {
	Type      uint8     `json:"type"`
	Data      []byte    `json:"data"`
	UpdatedAt time.Time `json:"updated_at"`
}
