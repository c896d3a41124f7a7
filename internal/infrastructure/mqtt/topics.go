package mqtt

import "fmt"

// Topic prefixes used by the hub.
//
// Announcements flow in on graylogic/discovery/{source}; hub events are
// mirrored out on graylogic/hub/event/{event_type}.
const (
	// TopicPrefix is the root of every Gray Logic topic.
	TopicPrefix = "graylogic"

	// TopicPrefixHub is the base for topics the hub publishes.
	TopicPrefixHub = "graylogic/hub"

	// TopicPrefixDiscovery is the base for inbound device announcements.
	TopicPrefixDiscovery = "graylogic/discovery"

	// TopicPrefixSystem is the base for system topics.
	TopicPrefixSystem = "graylogic/system"
)

// Topics provides builders for hub MQTT topics.
//
//	topics := mqtt.Topics{}
//	topic := topics.HubEvent("platform_discovered")
//	// Returns: "graylogic/hub/event/platform_discovered"
type Topics struct{}

// HubEvent returns the topic a bus event of the given type is mirrored to.
//
// Example: graylogic/hub/event/platform_discovered
func (Topics) HubEvent(eventType string) string {
	return fmt.Sprintf("%s/event/%s", TopicPrefixHub, eventType)
}

// Announcement returns the topic a discovery source publishes to.
//
// Example: graylogic/discovery/zigbee2mqtt
func (Topics) Announcement(source string) string {
	return fmt.Sprintf("%s/%s", TopicPrefixDiscovery, source)
}

// SystemStatus returns the hub's online/offline status topic.
//
// Example: graylogic/system/status
func (Topics) SystemStatus() string {
	return fmt.Sprintf("%s/status", TopicPrefixSystem)
}

// AllHubEvents returns a pattern matching every mirrored hub event.
//
// Pattern: graylogic/hub/event/+
func (Topics) AllHubEvents() string {
	return fmt.Sprintf("%s/event/+", TopicPrefixHub)
}

// AllAnnouncements returns a pattern matching every discovery source.
//
// Pattern: graylogic/discovery/+
func (Topics) AllAnnouncements() string {
	return fmt.Sprintf("%s/+", TopicPrefixDiscovery)
}

// SourceFromTopic extracts the discovery source from an announcement topic.
// It returns false for topics outside graylogic/discovery/.
func (Topics) SourceFromTopic(topic string) (string, bool) {
	prefix := TopicPrefixDiscovery + "/"
	if len(topic) <= len(prefix) || topic[:len(prefix)] != prefix {
		return "", false
	}
	return topic[len(prefix):], true
}
