package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names written by the hub.
const (
	MeasurementDiscovery      = "discovery"
	MeasurementComponentSetup = "component_setup"
)

// WriteDiscovery records the outcome of one discovered service.
//
// Each call is one point tagged by service and outcome with a count field
// of 1, so sum() over a window yields sightings per outcome.
//
// Example:
//
//	client.WriteDiscovery("roku", "dispatched")
func (c *Client) WriteDiscovery(service, outcome string) {
	c.WritePoint(MeasurementDiscovery,
		map[string]string{
			"service": service,
			"outcome": outcome,
		},
		map[string]any{"count": 1},
	)
}

// WriteComponentSetup records that a component finished setting up.
func (c *Client) WriteComponentSetup(component string) {
	c.WritePoint(MeasurementComponentSetup,
		map[string]string{"component": component},
		map[string]any{"count": 1},
	)
}

// WritePoint writes a point stamped with the current time.
// Points written while disconnected are dropped.
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]any) {
	c.WritePointWithTime(measurement, tags, fields, time.Now())
}

// WritePointWithTime writes a point with an explicit timestamp.
func (c *Client) WritePointWithTime(measurement string, tags map[string]string, fields map[string]any, timestamp time.Time) {
	if !c.IsConnected() || c.writeAPI == nil {
		return
	}
	c.writeAPI.WritePoint(write.NewPoint(measurement, tags, fields, timestamp))
}
