// Package trace records tree lifecycle events into SQLite.
//
// A Store is attached to a tree as an observer; every event the run emits
// becomes one row, keyed by run token and logical sequence number. Recorded
// runs can be read back in emission order, which is what the CLI's trace
// command renders.
package trace
