// Package tasking implements a declarative task-tree execution engine.
//
// Callers describe work as an immutable tree of Groups whose children are
// asynchronous Tasks (opaque Adapter instances), synchronous Sync nodes,
// nested Groups, nested sub-trees and barrier participants. The tree is
// compiled once and executed by a Tree, which drives adapters, fires
// user callbacks and reports a single success/failure outcome for the root.
//
// ARCHITECTURE:
//
// Single-Writer Run Loop:
// Each running Tree owns exactly one scheduling goroutine. All run-node
// mutations, policy decisions, storage lifetimes and user callbacks happen
// on that goroutine. Adapters may complete from any goroutine; their
// terminal report is enqueued to a FIFO queue and consumed by the loop.
// This ensures:
//   - Deterministic callback ordering within one completion cascade
//   - No locking inside user callbacks
//   - Simple reasoning about cancellation
//
// Execution Flow:
//  1. New() compiles the declarative root Group into a static plan
//  2. Start() builds fresh run-nodes and walks the root synchronously
//     until every branch is either settled or suspended on an adapter
//  3. Adapter completions are enqueued and consumed by the run loop
//  4. Each completion cascades: callbacks fire, group policies decide,
//     further children are admitted, storage instances are torn down
//  5. The root's settlement finishes the run and releases Done()
//
// INVARIANTS:
//   - A task's done/error callback fires at most once, never both
//   - A group's done/error callback fires at most once per run
//   - Child starts are totally ordered by declaration order
//   - A storage instance lives exactly from its group's entry to its exit
//   - After Destroy() returns, no user callback fires
package tasking
