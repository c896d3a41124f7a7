// Package mdns finds services on the local network over mDNS/DNS-SD.
package mdns

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/grandcat/zeroconf"
	"golang.org/x/sync/errgroup"

	"github.com/nerrad567/gray-logic-hub/internal/discovery"
	"github.com/nerrad567/gray-logic-hub/internal/discovery/scan"
)

const (
	// Domain is the mDNS browse domain.
	Domain = "local."

	// DefaultTimeout is how long each service type is browsed per scan.
	DefaultTimeout = 5 * time.Second
)

// DefaultServiceTypes maps DNS-SD service types to discovery services.
func DefaultServiceTypes() map[string]discovery.Service {
	return map[string]discovery.Service{
		"_plexmediasvr._tcp":   "plex_mediaserver",
		"_xbmc-jsonrpc-h._tcp": "kodi",
		"_Volumio._tcp":        "volumio",
		"_soundtouch._tcp":     "bose_soundtouch",
		"_nanoleafapi._tcp":    "nanoleaf_aurora",
		"_octoprint._tcp":      discovery.ServiceOctoprint,
		"_esphomelib._tcp":     "esphome",
		"_googlecast._tcp":     "google_cast",
		"_axis-video._tcp":     "axis",
		"_hap._tcp":            "homekit",
	}
}

// browseFunc streams entries for one service type until ctx is done.
type browseFunc func(ctx context.Context, serviceType string, entries chan<- *zeroconf.ServiceEntry) error

// Scanner browses a set of DNS-SD service types.
type Scanner struct {
	timeout time.Duration
	types   map[string]discovery.Service
	browse  browseFunc
}

// NewScanner creates a scanner for the given service types.
// A nil types map uses DefaultServiceTypes; a zero timeout uses DefaultTimeout.
func NewScanner(types map[string]discovery.Service, timeout time.Duration) *Scanner {
	if types == nil {
		types = DefaultServiceTypes()
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Scanner{timeout: timeout, types: types, browse: zeroconfBrowse}
}

// Name identifies the scanner in logs.
func (s *Scanner) Name() string { return "mdns" }

// Scan browses every service type in parallel for the scanner timeout.
func (s *Scanner) Scan(ctx context.Context) ([]scan.Found, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var (
		mu    sync.Mutex
		found []scan.Found
	)

	var g errgroup.Group
	for serviceType, service := range s.types {
		g.Go(func() error {
			results, err := s.browseType(ctx, serviceType, service)
			if err != nil {
				return err
			}
			mu.Lock()
			found = append(found, results...)
			mu.Unlock()
			return nil
		})
	}

	err := g.Wait()
	return found, err
}

func (s *Scanner) browseType(ctx context.Context, serviceType string, service discovery.Service) ([]scan.Found, error) {
	entries := make(chan *zeroconf.ServiceEntry)
	done := make(chan struct{})
	var found []scan.Found

	go func() {
		defer close(done)
		for {
			select {
			case <-ctx.Done():
				return
			case entry, ok := <-entries:
				if !ok {
					return
				}
				if info := entryInfo(entry); info != nil {
					found = append(found, scan.Found{Service: service, Info: info})
				}
			}
		}
	}()

	if err := s.browse(ctx, serviceType, entries); err != nil {
		return nil, fmt.Errorf("browsing %s: %w", serviceType, err)
	}

	<-ctx.Done()
	<-done
	return found, nil
}

func zeroconfBrowse(ctx context.Context, serviceType string, entries chan<- *zeroconf.ServiceEntry) error {
	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return fmt.Errorf("creating mDNS resolver: %w", err)
	}
	return resolver.Browse(ctx, serviceType, Domain, entries)
}

// entryInfo converts an mDNS entry to discovery info.
// Entries without an address are dropped.
func entryInfo(entry *zeroconf.ServiceEntry) discovery.Info {
	if entry == nil {
		return nil
	}

	var host string
	if len(entry.AddrIPv4) > 0 {
		host = entry.AddrIPv4[0].String()
	} else if len(entry.AddrIPv6) > 0 {
		host = entry.AddrIPv6[0].String()
	}
	if host == "" {
		return nil
	}

	properties := make(map[string]any, len(entry.Text))
	for _, txt := range entry.Text {
		key, value, _ := strings.Cut(txt, "=")
		if key == "" {
			continue
		}
		properties[strings.ToLower(key)] = value
	}

	return discovery.Info{
		"host":       host,
		"port":       entry.Port,
		"hostname":   entry.HostName,
		"name":       entry.Instance,
		"properties": properties,
	}
}
