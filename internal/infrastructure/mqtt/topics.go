package mqtt

import "strings"

// Topic namespace for all Hearth Core MQTT traffic.
const namespace = "hearth"

// Topics builds the topic strings used by the automation ingress. The
// zero value is ready to use:
//
//	mqtt.Topics{}.HouseCommand("house-1")  // "hearth/command/house-1"
type Topics struct{}

// HouseCommand is the topic automations publish device commands to.
// Payloads follow the same shape as client device_command messages.
func (Topics) HouseCommand(houseID string) string {
	return namespace + "/command/" + houseID
}

// AllHouseCommands is the wildcard subscription covering command topics
// for every house.
func (Topics) AllHouseCommands() string {
	return namespace + "/command/+"
}

// HouseEvent is the topic Hearth mirrors command outcomes and state
// changes to, so automations can react to what happened.
func (Topics) HouseEvent(houseID string) string {
	return namespace + "/event/" + houseID
}

// SystemStatus is the retained topic carrying Hearth's online/offline
// status, including the Last Will message on unexpected disconnect.
func (Topics) SystemStatus() string {
	return namespace + "/system/status"
}

// HouseIDFromCommandTopic extracts the house ID from a command topic.
// Returns "" if the topic is not a command topic.
func HouseIDFromCommandTopic(topic string) string {
	prefix := namespace + "/command/"
	if !strings.HasPrefix(topic, prefix) {
		return ""
	}
	houseID := strings.TrimPrefix(topic, prefix)
	if houseID == "" || strings.Contains(houseID, "/") {
		return ""
	}
	return houseID
}
