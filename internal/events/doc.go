// Package events implements the lifecycle event bus.
//
// The bus:
//   - Maps each event Kind to an ordered list of listeners
//   - Accepts emissions from any goroutine without blocking
//   - Delivers on a single dispatch goroutine, preserving emission order
//   - Recovers listener panics so one observer cannot stall the rest
package events
