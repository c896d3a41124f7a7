package mqttdiscovery

import (
	"encoding/json"
	"fmt"

	"github.com/nerrad567/gray-logic-hub/internal/discovery"
)

// Announcement is published by a device or external scanner.
// Topic: graylogic/discovery/{source}
//
//	{"service": "roku", "info": {"host": "10.0.0.12", "port": 8060}}
type Announcement struct {
	// Service is the discovery service name the catalog is keyed by.
	Service discovery.Service `json:"service"`

	// Info is the discovery payload handed to the component. Optional.
	Info discovery.Info `json:"info,omitempty"`
}

// ParseAnnouncement decodes and validates an announcement payload.
func ParseAnnouncement(payload []byte) (Announcement, error) {
	var a Announcement
	if err := json.Unmarshal(payload, &a); err != nil {
		return Announcement{}, fmt.Errorf("%w: %w", ErrInvalidAnnouncement, err)
	}
	if a.Service == "" {
		return Announcement{}, fmt.Errorf("%w: service is required", ErrInvalidAnnouncement)
	}
	return a, nil
}
