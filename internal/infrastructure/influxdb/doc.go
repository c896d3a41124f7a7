// Package influxdb records hub activity in InfluxDB.
//
// It wraps the official influxdb-client-go v2 library. The scan component
// writes one "discovery" point per handled service (tagged service and
// outcome) and the hub writes a "component_setup" point each time the
// loader finishes a component.
//
// # Usage
//
//	client, err := influxdb.Connect(ctx, cfg.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	client.WriteDiscovery("roku", "dispatched")
//
// Writes are non-blocking and batched according to batch_size and
// flush_interval. Async failures are delivered to SetOnError.
package influxdb
