// Package hub assembles the Gray Logic hub.
//
// A Hub owns the single event loop and everything confined to it: the
// event bus, the component loader, the service catalog, the discovery
// dispatcher and the periodic scan. New wires them from configuration;
// Run blocks until shutdown.
//
//	h, err := hub.New(cfg, log, hub.Options{Journal: repo, Metrics: influx})
//	if err != nil {
//	    return err
//	}
//	return h.Run(ctx)
package hub
