package discovery

import (
	"fmt"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"
)

// Service identifies a discovery source, e.g. "daikin" or "plex_mediaserver".
type Service string

// Built-in services with a dedicated constant. The full default table is in
// DefaultCatalog.
const (
	ServiceAppleTV        Service = "apple_tv"
	ServiceDaikin         Service = "daikin"
	ServiceDLNADMR        Service = "dlna_dmr"
	ServiceEnigma2        Service = "enigma2"
	ServiceFreebox        Service = "freebox"
	ServiceHassIOSApp     Service = "hass_ios"
	ServiceHassio         Service = "hassio"
	ServiceHeos           Service = "heos"
	ServiceKonnected      Service = "konnected"
	ServiceMobileApp      Service = "hass_mobile_app"
	ServiceNetgear        Service = "netgear_router"
	ServiceOctoprint      Service = "octoprint"
	ServiceRoku           Service = "roku"
	ServiceSabnzbd        Service = "sabnzbd"
	ServiceSamsungPrinter Service = "samsung_printer"
	ServiceTelldusLive    Service = "tellstick"
	ServiceYeelight       Service = "yeelight"
	ServiceWemo           Service = "belkin_wemo"
	ServiceWink           Service = "wink"
	ServiceXiaomiGateway  Service = "xiaomi_gw"
)

// Kind says how a discovered service is handled.
type Kind string

const (
	// KindComponent sets up a component and announces the raw discovery to it.
	KindComponent Kind = "component"

	// KindPlatform loads a vendor platform under an entity domain.
	KindPlatform Kind = "platform"

	// KindConfigEntry hands the discovery to a component's config-entry flow.
	KindConfigEntry Kind = "config_entry"

	// KindOptional behaves like KindPlatform, but only when enabled in config.
	KindOptional Kind = "optional"

	// KindMigrated marks services now discovered by their own integration.
	// They are skipped by the scan component.
	KindMigrated Kind = "migrated"
)

// Handler maps a service to the component (and optionally platform) that handles it.
type Handler struct {
	Kind      Kind   `yaml:"kind" json:"kind"`
	Component string `yaml:"component,omitempty" json:"component,omitempty"`
	Platform  string `yaml:"platform,omitempty" json:"platform,omitempty"`
}

// Validate checks the handler is complete for its kind.
func (h Handler) Validate() error {
	switch h.Kind {
	case KindComponent, KindConfigEntry:
		if h.Component == "" {
			return fmt.Errorf("%w: %s handler needs a component", ErrInvalidHandler, h.Kind)
		}
	case KindPlatform, KindOptional:
		if h.Component == "" || h.Platform == "" {
			return fmt.Errorf("%w: %s handler needs a component and a platform", ErrInvalidHandler, h.Kind)
		}
	case KindMigrated:
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidHandler, h.Kind)
	}
	return nil
}

// Entry is one catalog row.
type Entry struct {
	Service Service `json:"service"`
	Handler
}

// Catalog is the closed set of services the hub knows how to handle.
//
// Services are resolved at startup (default table plus the `services:`
// config overlay). Anything not in the catalog is rejected with
// ErrUnregisteredService.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
type Catalog struct {
	mu       sync.RWMutex
	handlers map[Service]Handler
}

// NewCatalog creates an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{handlers: make(map[Service]Handler)}
}

// DefaultCatalog returns a catalog holding the built-in service table.
func DefaultCatalog() *Catalog {
	c := NewCatalog()
	for s, h := range defaultHandlers() {
		c.handlers[s] = h
	}
	return c
}

// Register adds or replaces the handler for a service.
func (c *Catalog) Register(s Service, h Handler) error {
	if s == "" {
		return ErrInvalidService
	}
	if err := h.Validate(); err != nil {
		return fmt.Errorf("service %s: %w", s, err)
	}

	c.mu.Lock()
	c.handlers[s] = h
	c.mu.Unlock()
	return nil
}

// Lookup returns the handler for a service.
func (c *Catalog) Lookup(s Service) (Handler, error) {
	c.mu.RLock()
	h, ok := c.handlers[s]
	c.mu.RUnlock()
	if !ok {
		return Handler{}, fmt.Errorf("%w: %s", ErrUnregisteredService, s)
	}
	return h, nil
}

// Has reports whether the service is registered.
func (c *Catalog) Has(s Service) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.handlers[s]
	return ok
}

// Services returns all registered services, sorted.
func (c *Catalog) Services() []Service {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]Service, 0, len(c.handlers))
	for s := range c.handlers {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Entries returns every catalog row sorted by service.
func (c *Catalog) Entries() []Entry {
	services := c.Services()

	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]Entry, 0, len(services))
	for _, s := range services {
		out = append(out, Entry{Service: s, Handler: c.handlers[s]})
	}
	return out
}

// Merge registers every handler in overlay. Invalid entries abort the merge
// before anything is applied.
func (c *Catalog) Merge(overlay map[string]Handler) error {
	for name, h := range overlay {
		if name == "" {
			return ErrInvalidService
		}
		if err := h.Validate(); err != nil {
			return fmt.Errorf("service %s: %w", name, err)
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for name, h := range overlay {
		c.handlers[Service(name)] = h
	}
	return nil
}

// LoadOverlay parses a YAML mapping of service name to handler and merges it.
//
//	plex_mediaserver:
//	  kind: platform
//	  component: media_player
//	  platform: plex
func (c *Catalog) LoadOverlay(data []byte) error {
	var overlay map[string]Handler
	if err := yaml.Unmarshal(data, &overlay); err != nil {
		return fmt.Errorf("parsing service overlay: %w", err)
	}
	return c.Merge(overlay)
}

func defaultHandlers() map[Service]Handler {
	component := func(name string) Handler { return Handler{Kind: KindComponent, Component: name} }
	platform := func(comp, plat string) Handler { return Handler{Kind: KindPlatform, Component: comp, Platform: plat} }
	configEntry := func(name string) Handler { return Handler{Kind: KindConfigEntry, Component: name} }
	migrated := Handler{Kind: KindMigrated}

	return map[Service]Handler{
		ServiceMobileApp:      component("mobile_app"),
		ServiceHassIOSApp:     component("ios"),
		ServiceNetgear:        component("device_tracker"),
		ServiceHassio:         component("hassio"),
		ServiceAppleTV:        component("apple_tv"),
		ServiceRoku:           component("roku"),
		ServiceWink:           component("wink"),
		ServiceXiaomiGateway:  component("xiaomi_aqara"),
		ServiceSabnzbd:        component("sabnzbd"),
		ServiceKonnected:      component("konnected"),
		ServiceOctoprint:      component("octoprint"),
		ServiceFreebox:        component("freebox"),
		ServiceYeelight:       component("yeelight"),
		ServiceEnigma2:        platform("media_player", "enigma2"),
		ServiceSamsungPrinter: platform("sensor", "syncthru"),

		"panasonic_viera":  platform("media_player", "panasonic_viera"),
		"plex_mediaserver": platform("media_player", "plex"),
		"yamaha":           platform("media_player", "yamaha"),
		"frontier_silicon": platform("media_player", "frontier_silicon"),
		"openhome":         platform("media_player", "openhome"),
		"harmony":          platform("remote", "harmony"),
		"bose_soundtouch":  platform("media_player", "soundtouch"),
		"bluesound":        platform("media_player", "bluesound"),
		"kodi":             platform("media_player", "kodi"),
		"volumio":          platform("media_player", "volumio"),
		"lg_smart_device":  platform("media_player", "lg_soundbar"),
		"nanoleaf_aurora":  platform("light", "nanoleaf"),

		ServiceDaikin:          configEntry("daikin"),
		ServiceTelldusLive:     configEntry("tellduslive"),
		"logitech_mediaserver": configEntry("squeezebox"),

		ServiceDLNADMR: {Kind: KindOptional, Component: "media_player", Platform: "dlna_dmr"},

		"axis":         migrated,
		"deconz":       migrated,
		"esphome":      migrated,
		"google_cast":  migrated,
		ServiceHeos:    migrated,
		"homekit":      migrated,
		"ikea_tradfri": migrated,
		"philips_hue":  migrated,
		"sonos":        migrated,
		"songpal":      migrated,
		ServiceWemo:    migrated,
	}
}
