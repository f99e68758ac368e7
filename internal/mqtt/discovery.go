//go:build !no_mqtt

package mqtt

import (
	"fmt"
	"strconv"
)

const discoveryPrefix = "homeassistant"

// discoveryMsg is a Home Assistant MQTT discovery payload.
type discoveryMsg struct {
	Topic   string // e.g. "homeassistant/light/color_light/ep1/config"
	Payload []byte // JSON, empty means delete
}

// haDevice is the "device" block in HA discovery.
type haDevice struct {
	Identifiers  []string `json:"identifiers"`
	Manufacturer string   `json:"manufacturer,omitempty"`
	Model        string   `json:"model,omitempty"`
	Name         string   `json:"name"`
}

// haDiscovery is a generic HA discovery payload.
type haDiscovery struct {
	Name                string   `json:"name"`
	UniqueID            string   `json:"unique_id"`
	StateTopic          string   `json:"state_topic"`
	CommandTopic        string   `json:"command_topic,omitempty"`
	AvailabilityTopic   string   `json:"availability_topic"`
	ValueTemplate       string   `json:"value_template,omitempty"`
	UnitOfMeasurement   string   `json:"unit_of_measurement,omitempty"`
	DeviceClass         string   `json:"device_class,omitempty"`
	StateClass          string   `json:"state_class,omitempty"`
	SupportedColorModes []string `json:"supported_color_modes,omitempty"`
	Schema              string   `json:"schema,omitempty"`
	Device              haDevice `json:"device"`
}

// deviceInfo identifies the light in the HA device registry.
type deviceInfo struct {
	NodeID       string
	Name         string
	Manufacturer string
	Model        string
}

func stateTopic(prefix string, ep uint8) string {
	return prefix + "/" + strconv.Itoa(int(ep))
}

// buildDiscovery generates HA discovery messages: one hs light and one
// remaining-time sensor per endpoint.
func buildDiscovery(info deviceInfo, prefix string, endpoints []uint8) []discoveryMsg {
	avail := prefix + "/bridge/state"
	haDev := haDevice{
		Identifiers:  []string{info.NodeID},
		Manufacturer: info.Manufacturer,
		Model:        info.Model,
		Name:         info.Name,
	}

	msgs := make([]discoveryMsg, 0, 2*len(endpoints))
	for _, ep := range endpoints {
		name := info.Name
		if len(endpoints) > 1 {
			name = fmt.Sprintf("%s %d", info.Name, ep)
		}
		objectID := fmt.Sprintf("ep%d", ep)
		msgs = append(msgs,
			buildLight(info.NodeID, objectID, name, stateTopic(prefix, ep), avail, haDev),
			buildSensor(info.NodeID, objectID+"_remaining_time", name+" Remaining Time", stateTopic(prefix, ep), avail, haDev,
				"duration", "s", "measurement", "{{ value_json.remaining_time }}"),
		)
	}
	return msgs
}

func buildLight(nodeID, objectID, name, stateTopic, avail string, haDev haDevice) discoveryMsg {
	topic := fmt.Sprintf("%s/light/%s/%s/config", discoveryPrefix, nodeID, objectID)
	payload := haDiscovery{
		Name:                name,
		UniqueID:            nodeID + "_" + objectID,
		StateTopic:          stateTopic,
		CommandTopic:        stateTopic + "/set",
		AvailabilityTopic:   avail,
		SupportedColorModes: []string{"hs"},
		Schema:              "json",
		Device:              haDev,
	}
	return discoveryMsg{Topic: topic, Payload: mustJSON(payload)}
}

func buildSensor(nodeID, objectID, name, stateTopic, avail string, haDev haDevice,
	deviceClass, unit, stateClass, valueTmpl string) discoveryMsg {

	topic := fmt.Sprintf("%s/sensor/%s/%s/config", discoveryPrefix, nodeID, objectID)
	payload := haDiscovery{
		Name:              name,
		UniqueID:          nodeID + "_" + objectID,
		StateTopic:        stateTopic,
		AvailabilityTopic: avail,
		ValueTemplate:     valueTmpl,
		UnitOfMeasurement: unit,
		DeviceClass:       deviceClass,
		StateClass:        stateClass,
		Device:            haDev,
	}
	return discoveryMsg{Topic: topic, Payload: mustJSON(payload)}
}
