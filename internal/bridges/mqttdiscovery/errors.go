package mqttdiscovery

import "errors"

var (
	// ErrInvalidAnnouncement is returned for payloads that are not a valid
	// JSON announcement.
	ErrInvalidAnnouncement = errors.New("mqttdiscovery: invalid announcement")

	// ErrUnexpectedTopic is returned for messages outside graylogic/discovery/.
	ErrUnexpectedTopic = errors.New("mqttdiscovery: unexpected topic")
)
