// Package async provides bounded concurrent execution for background work
// such as the onboarding reconciler.
//
// Batch fans a slice out over a fixed number of goroutines, gives every call
// its own timeout and converts panics into errors so one bad item cannot take
// the process down.
package async
