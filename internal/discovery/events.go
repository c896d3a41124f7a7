package discovery

import (
	"strings"

	"github.com/nerrad567/gray-logic-hub/internal/core/bus"
)

// Bus event types owned by discovery.
const (
	// EventPlatformDiscovered carries both raw discoveries and synthetic
	// platform-load announcements, told apart by the service field.
	EventPlatformDiscovered bus.EventType = "platform_discovered"

	// EventConfigEntryDiscovered hands a discovery to a component's
	// config-entry flow. Data: {domain, discovered}.
	EventConfigEntryDiscovered bus.EventType = "config_entry_discovered"

	// EventComponentLoaded is fired after a component's setup succeeds.
	// Data: {component}.
	EventComponentLoaded bus.EventType = "component_loaded"
)

// Event data keys.
const (
	AttrService    = "service"
	AttrDiscovered = "discovered"
	AttrPlatform   = "platform"
	AttrDomain     = "domain"
	AttrComponent  = "component"
)

// platformServicePrefix prefixes the synthetic service of a platform load.
const platformServicePrefix = "load_platform."

// Info is the free-form payload describing a discovered device. Its shape is
// owned by the scanner that produced it and the platform that consumes it.
type Info map[string]any

// PlatformService returns the synthetic service name announcing platforms
// for component, e.g. "load_platform.sensor".
func PlatformService(component string) Service {
	return Service(platformServicePrefix + component)
}

// IsPlatformService reports whether s is a synthetic platform-load service.
func IsPlatformService(s Service) bool {
	return strings.HasPrefix(string(s), platformServicePrefix)
}

// asInfo converts event payload values back to Info. Payloads that came
// through JSON arrive as map[string]any.
func asInfo(v any) Info {
	switch m := v.(type) {
	case Info:
		return m
	case map[string]any:
		return Info(m)
	default:
		return nil
	}
}
