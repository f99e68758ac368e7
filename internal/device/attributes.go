package device

import (
	"zigbee-color-light/internal/store"
	"zigbee-color-light/internal/zcl"
)

// reportingAttributes is the attribute table handed to the engine. Writes go
// to the store; a write that changes a value emits attribute_changed.
type reportingAttributes struct {
	store    store.Store
	registry *zcl.Registry
	events   *EventBus
}

func (r *reportingAttributes) ReadAttribute(endpoint uint8, clusterID, attrID uint16) (interface{}, error) {
	return r.store.ReadAttribute(endpoint, clusterID, attrID)
}

func (r *reportingAttributes) WriteAttribute(endpoint uint8, clusterID, attrID uint16, value interface{}) error {
	old, oldErr := r.store.ReadAttribute(endpoint, clusterID, attrID)
	if err := r.store.WriteAttribute(endpoint, clusterID, attrID, value); err != nil {
		return err
	}
	cur, err := r.store.ReadAttribute(endpoint, clusterID, attrID)
	if err != nil || (oldErr == nil && old == cur) {
		return nil
	}

	var name string
	if def := r.registry.Attribute(clusterID, attrID); def != nil {
		name = def.Name
	}
	r.events.Emit(Event{
		Type: EventAttributeChanged,
		Data: map[string]interface{}{
			"endpoint":   endpoint,
			"cluster_id": clusterID,
			"attr_id":    attrID,
			"attr_name":  name,
			"property":   PropertyName(clusterID, attrID),
			"value":      cur,
		},
	})
	return nil
}
