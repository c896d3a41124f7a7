// Package mqttdiscovery bridges hub discovery and an MQTT broker.
//
// Devices that cannot be found by active scanning (or external scanners such
// as a zigbee2mqtt sidecar) publish announcements to graylogic/discovery/+.
// The bridge feeds them into the scan component, and publishes
// platform_discovered, config_entry_discovered and component_loaded events
// to graylogic/hub/event/{event_type} for dashboards and other consumers.
package mqttdiscovery
