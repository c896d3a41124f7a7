// Package discovery routes discovered network services to the components
// that handle them.
//
// A low-level scanner (mDNS, MQTT announcement, operator API) reports a
// service. Discover fires a platform_discovered event; listeners registered
// with Listen for that service receive it. A listener typically calls
// LoadPlatform, which sets the owning entity domain up in the background and
// then fires a synthetic "load_platform.<component>" event that the domain
// receives through ListenPlatform.
//
// # Event Data
//
// Raw discovery:
//
//	{"service": "plex_mediaserver", "discovered": {"host": "10.0.0.7", "port": 32400}}
//
// Platform load:
//
//	{"service": "load_platform.media_player", "platform": "plex", "discovered": {...}}
//
// # Catalog
//
// The Catalog is the closed table of known services and how each is
// handled (see Kind). Unknown services are rejected with
// ErrUnregisteredService at registration and at announcement.
//
// # Errors
//
// Component setup failures inside LoadPlatform are logged and swallowed: the
// platform simply never appears, and rediscovery retries the load.
// Deduplication is not done here; see package scan.
package discovery
