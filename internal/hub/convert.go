package hub

import (
	"github.com/nerrad567/gray-logic-hub/internal/discovery"
	"github.com/nerrad567/gray-logic-hub/internal/discovery/scan"
	"github.com/nerrad567/gray-logic-hub/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-hub/internal/setup"
)

// ServiceOverlay converts the services: config section to catalog handlers.
func ServiceOverlay(services map[string]config.ServiceConfig) map[string]discovery.Handler {
	out := make(map[string]discovery.Handler, len(services))
	for name, s := range services {
		out[name] = discovery.Handler{
			Kind:      discovery.Kind(s.Kind),
			Component: s.Component,
			Platform:  s.Platform,
		}
	}
	return out
}

func componentConfig(components map[string]map[string]any) setup.Config {
	out := make(setup.Config, len(components))
	for name, section := range components {
		out[name] = setup.Section(section)
	}
	return out
}

func scanConfig(cfg *config.Config) scan.Config {
	return scan.Config{
		Interval:     cfg.GetScanInterval(),
		InitialDelay: cfg.GetInitialDelay(),
		Ignore:       services(cfg.Discovery.Ignore),
		Enable:       services(cfg.Discovery.Enable),
		Components:   componentConfig(cfg.Components),
	}
}

func services(names []string) []discovery.Service {
	out := make([]discovery.Service, 0, len(names))
	for _, n := range names {
		out = append(out, discovery.Service(n))
	}
	return out
}

// mdnsTypes returns nil for an empty table so the scanner uses its defaults.
func mdnsTypes(types map[string]string) map[string]discovery.Service {
	if len(types) == 0 {
		return nil
	}
	out := make(map[string]discovery.Service, len(types))
	for t, s := range types {
		out[t] = discovery.Service(s)
	}
	return out
}

