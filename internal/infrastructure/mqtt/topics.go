package mqtt

import (
	"fmt"
	"strings"
)

// Topic prefixes for the AVR bridge.
//
// State and object topics carry the dotted state path with dots replaced by
// slashes so brokers can filter per group:
//
//	graylogic/avr/lounge/state/zoneMain/volume
const (
	// TopicPrefix is the root of every Gray Logic topic.
	TopicPrefix = "graylogic"

	// TopicPrefixAVR is the base for AVR bridge instance topics.
	TopicPrefixAVR = "graylogic/avr"
)

// Topics provides builders for the bridge's MQTT topics.
type Topics struct{}

// State returns the retained state topic for one state path.
//
// Example: graylogic/avr/lounge/state/zoneMain/volume
func (Topics) State(instance, path string) string {
	return fmt.Sprintf("%s/%s/state/%s", TopicPrefixAVR, instance, pathToTopic(path))
}

// Object returns the retained object (schema) topic for one state path.
//
// Example: graylogic/avr/lounge/object/zoneMain/volume
func (Topics) Object(instance, path string) string {
	return fmt.Sprintf("%s/%s/object/%s", TopicPrefixAVR, instance, pathToTopic(path))
}

// Set returns the command topic the host publishes state changes on.
//
// Example: graylogic/avr/lounge/set/zoneMain/volume
func (Topics) Set(instance, path string) string {
	return fmt.Sprintf("%s/%s/set/%s", TopicPrefixAVR, instance, pathToTopic(path))
}

// AllSets returns the wildcard subscription for every command topic of an instance.
//
// Pattern: graylogic/avr/lounge/set/#
func (Topics) AllSets(instance string) string {
	return fmt.Sprintf("%s/%s/set/#", TopicPrefixAVR, instance)
}

// BridgeHealth returns the bridge health topic.
//
// Example: graylogic/health/avr
func (Topics) BridgeHealth(protocol string) string {
	return fmt.Sprintf("%s/health/%s", TopicPrefix, protocol)
}

// BridgeStatus returns the online/offline status topic for a client.
//
// Example: graylogic/system/status/graylogic-avr
func (Topics) BridgeStatus(clientID string) string {
	return fmt.Sprintf("%s/system/status/%s", TopicPrefix, clientID)
}

// PathFromSetTopic extracts the dotted state path from a set topic.
// It returns false when the topic does not belong to the instance.
func (Topics) PathFromSetTopic(instance, topic string) (string, bool) {
	prefix := fmt.Sprintf("%s/%s/set/", TopicPrefixAVR, instance)
	if !strings.HasPrefix(topic, prefix) || len(topic) == len(prefix) {
		return "", false
	}
	return strings.ReplaceAll(topic[len(prefix):], "/", "."), true
}

func pathToTopic(path string) string {
	return strings.ReplaceAll(path, ".", "/")
}
