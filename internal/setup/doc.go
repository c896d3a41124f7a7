// Package setup provides the component loader for the Gray Logic hub.
//
// A component is a named unit of hub functionality (an entity domain such as
// "sensor", or a hub service such as the MQTT discovery bridge) with a setup
// routine. Discovery asks the loader to make sure a component is running
// before it announces a platform for it.
//
// # Guarantees
//
//   - A component's setup routine succeeds at most once per process.
//   - Concurrent requests for one component share a single in-flight setup.
//   - Dependencies are set up first; cycles are rejected.
//   - A failed setup is not remembered, so a later request retries it.
//   - The loaded set is only touched on the hub loop.
//
// # Usage
//
//	loader := setup.NewLoader(hubLoop)
//	loader.Register(setup.Component{
//	    Name:  "sensor",
//	    Setup: sensorDomain.Setup,
//	})
//
//	if !loader.EnsureSetup(ctx, "sensor", hubConfig) {
//	    return // already logged
//	}
//
// The loader does not impose a timeout on setup routines. A caller's context
// bounds how long that caller waits; the shared setup keeps running for the
// other callers.
package setup
