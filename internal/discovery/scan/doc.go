// Package scan implements the periodic discovery scan.
//
// Every interval (300 seconds by default) the component runs its scanners
// and feeds each reported service through a fixed policy on the loop:
//
//  1. migrated services are skipped
//  2. ignored services are skipped
//  3. sightings whose fingerprint was already dispatched are suppressed
//  4. unknown services are logged
//  5. optional services are skipped unless enabled
//  6. the service is dispatched according to its catalog handler
//
// The fingerprint set grows for the life of the process and is never
// persisted; a removed device leaves a harmless entry behind.
package scan
