// Package adapters provides reference implementations of the tasking.Adapter
// contract: Timer for deadline-shaped work and Func for arbitrary functions
// running on their own goroutine.
//
// They double as the blueprint for writing adapters around real asynchronous
// APIs: create a fresh value per execution, deliver exactly one terminal
// report, make Stop cancel promptly and tolerate the engine ignoring a late
// report.
package adapters
