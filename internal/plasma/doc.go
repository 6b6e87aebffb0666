// Package plasma holds the per-shell physical state that the convergence
// loop refines:
//
//   - [State.TRad]: radiation temperature of every shell, in K
//   - [State.W]: dilution factor of every shell
//   - [State.TInner]: temperature of the inner boundary, in K
//
// The number of shells is fixed for the lifetime of a run; [State.Validate]
// checks the invariant.
package plasma
