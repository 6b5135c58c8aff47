// Package dag resolves a requested goal set against a core.Registry into a
// deterministic build plan and carries it out: graph resolution and cycle
// detection, the timestamp/hash freshness oracle and its digest store, the
// parallel executor, and the dry-run printer.
//
// The graph itself (Graph) is fixed once resolved for a given goal set,
// apart from the driver's freshness-policy override
// (Graph.ApplyUseHashOverride), which is applied before a run; runtime
// execution state lives separately in the Executor so the same Graph can,
// in principle, back more than one run.
package dag
