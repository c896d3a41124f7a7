package discovery

import (
	"errors"
	"testing"
)

func TestDefaultCatalog_Lookup(t *testing.T) {
	cat := DefaultCatalog()

	tests := []struct {
		service Service
		want    Handler
	}{
		{ServiceAppleTV, Handler{Kind: KindComponent, Component: "apple_tv"}},
		{"plex_mediaserver", Handler{Kind: KindPlatform, Component: "media_player", Platform: "plex"}},
		{ServiceSamsungPrinter, Handler{Kind: KindPlatform, Component: "sensor", Platform: "syncthru"}},
		{ServiceDaikin, Handler{Kind: KindConfigEntry, Component: "daikin"}},
		{ServiceDLNADMR, Handler{Kind: KindOptional, Component: "media_player", Platform: "dlna_dmr"}},
		{ServiceWemo, Handler{Kind: KindMigrated}},
	}

	for _, tt := range tests {
		t.Run(string(tt.service), func(t *testing.T) {
			got, err := cat.Lookup(tt.service)
			if err != nil {
				t.Fatalf("Lookup() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Lookup() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestCatalog_LookupUnregistered(t *testing.T) {
	_, err := DefaultCatalog().Lookup("made_up")
	if !errors.Is(err, ErrUnregisteredService) {
		t.Errorf("Lookup() error = %v, want ErrUnregisteredService", err)
	}
}

func TestDefaultCatalog_HandlersValid(t *testing.T) {
	for _, e := range DefaultCatalog().Entries() {
		if err := e.Validate(); err != nil {
			t.Errorf("%s: %v", e.Service, err)
		}
	}
}

func TestCatalog_Register(t *testing.T) {
	tests := []struct {
		name    string
		service Service
		handler Handler
		wantErr error
	}{
		{"component", "shelly", Handler{Kind: KindComponent, Component: "shelly"}, nil},
		{"platform", "tasmota", Handler{Kind: KindPlatform, Component: "switch", Platform: "tasmota"}, nil},
		{"empty service", "", Handler{Kind: KindComponent, Component: "x"}, ErrInvalidService},
		{"platform without platform", "x", Handler{Kind: KindPlatform, Component: "switch"}, ErrInvalidHandler},
		{"config entry without component", "x", Handler{Kind: KindConfigEntry}, ErrInvalidHandler},
		{"unknown kind", "x", Handler{Kind: "magic", Component: "x"}, ErrInvalidHandler},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cat := NewCatalog()
			err := cat.Register(tt.service, tt.handler)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Register() error = %v, want %v", err, tt.wantErr)
			}
			if tt.wantErr == nil && !cat.Has(tt.service) {
				t.Error("service not registered")
			}
		})
	}
}

func TestCatalog_LoadOverlay(t *testing.T) {
	cat := DefaultCatalog()
	before := len(cat.Services())

	overlay := []byte(`
shelly:
  kind: platform
  component: switch
  platform: shelly
plex_mediaserver:
  kind: migrated
`)
	if err := cat.LoadOverlay(overlay); err != nil {
		t.Fatalf("LoadOverlay() error = %v", err)
	}

	if got := len(cat.Services()); got != before+1 {
		t.Errorf("services = %d, want %d", got, before+1)
	}
	h, _ := cat.Lookup("plex_mediaserver")
	if h.Kind != KindMigrated {
		t.Errorf("plex_mediaserver kind = %s, want migrated", h.Kind)
	}
	h, _ = cat.Lookup("shelly")
	if h.Platform != "shelly" {
		t.Errorf("shelly platform = %q, want shelly", h.Platform)
	}
}

func TestCatalog_LoadOverlayRejectsInvalid(t *testing.T) {
	cat := DefaultCatalog()

	err := cat.LoadOverlay([]byte(`
good:
  kind: component
  component: good
bad:
  kind: platform
  component: light
`))
	if !errors.Is(err, ErrInvalidHandler) {
		t.Fatalf("LoadOverlay() error = %v, want ErrInvalidHandler", err)
	}
	if cat.Has("good") {
		t.Error("partial overlay applied")
	}

	if err := cat.LoadOverlay([]byte("not: [valid")); err == nil {
		t.Error("LoadOverlay() accepted malformed YAML")
	}
}

func TestServices_Sorted(t *testing.T) {
	services := DefaultCatalog().Services()
	for i := 1; i < len(services); i++ {
		if services[i-1] >= services[i] {
			t.Fatalf("services not sorted at %d: %s >= %s", i, services[i-1], services[i])
		}
	}
}

func TestPlatformService(t *testing.T) {
	if got := PlatformService("sensor"); got != "load_platform.sensor" {
		t.Errorf("PlatformService() = %s", got)
	}
	if !IsPlatformService("load_platform.light") || IsPlatformService("daikin") {
		t.Error("IsPlatformService misclassified")
	}
}
