package mqtt

import "strings"

// DefaultTopicPrefix is used when the configuration leaves the prefix empty.
const DefaultTopicPrefix = "kegmon"

// Topics builds the MQTT topics events are published on. Every topic sits
// under a single configurable prefix:
//
//	kegmon/devices/{id}/state        retained, latest firmware state
//	kegmon/devices/{id}/measurement  one message per stored reading
//	kegmon/devices/{id}/deleted      device removed from the registry
//	kegmon/system/status             retained, online/offline with LWT
type Topics struct {
	Prefix string
}

// NewTopics returns a builder for prefix, trimming stray slashes.
func NewTopics(prefix string) Topics {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		prefix = DefaultTopicPrefix
	}
	return Topics{Prefix: prefix}
}

func (t Topics) root() string {
	if t.Prefix == "" {
		return DefaultTopicPrefix
	}
	return t.Prefix
}

func (t Topics) device(id, leaf string) string {
	return t.root() + "/devices/" + id + "/" + leaf
}

// DeviceState returns the retained state topic for a device.
func (t Topics) DeviceState(deviceID string) string {
	return t.device(deviceID, "state")
}

// DeviceMeasurement returns the topic new readings are published on.
func (t Topics) DeviceMeasurement(deviceID string) string {
	return t.device(deviceID, "measurement")
}

// DeviceDeleted returns the topic a deletion notice is published on.
func (t Topics) DeviceDeleted(deviceID string) string {
	return t.device(deviceID, "deleted")
}

// SystemStatus returns the retained core status topic, also used for the LWT.
func (t Topics) SystemStatus() string {
	return t.root() + "/system/status"
}

// AllDevices matches every device topic.
func (t Topics) AllDevices() string {
	return t.root() + "/devices/#"
}
