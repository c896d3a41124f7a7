// Package journal keeps a SQLite history of discovery sightings.
//
// Each distinct (service, info) fingerprint gets one row with first and last
// sighting times, a sighting count and the outcome of the latest sighting
// (dispatched, duplicate, ignored, ...). Operators read it through the API
// to answer "why did my device not show up?".
//
// The journal is write-only from the scan component's point of view: the
// in-memory already-discovered set always starts empty on restart so that a
// fresh scan sets every device up again.
package journal
