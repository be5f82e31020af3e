// Package arbor is a fine-grained reactive dependency-tracking engine.
//
// Leaves hold mutable state, twigs cache lazily recomputed derived values,
// and branches are reactive procedures that re-run when something they read
// changes. Reads performed inside a twig's or branch's handler are recorded
// automatically as dependencies; the engine diffs the dependency list after
// every run and resubscribes only when it actually changed. Branch re-runs
// are batched by a scheduler that executes them in creation order.
//
// The engine is single-threaded and cooperative: every System must be
// driven from one goroutine.
package arbor
