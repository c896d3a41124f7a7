// Package domain provides the generic entity domains of the hub.
//
// A domain (sensor, light, media_player, ...) knows nothing about vendors.
// When the loader sets it up it subscribes to "load_platform.<domain>"
// announcements; each announced platform is recorded and, if registered,
// its setup runs off the loop. Platforms nobody registered are recorded as
// unregistered so operators can see them through the API.
package domain
