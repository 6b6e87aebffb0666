// Package convergence implements the damped fixed-point update and the
// convergence verdict used between two transport iterations.
//
// Two strategy kinds are understood:
//
//   - "damped": every quantity moves towards its estimate by its damping
//     constant; no convergence is ever declared.
//   - "specific": same update, plus a verdict based on per-quantity
//     thresholds.
//
// In "specific" mode the threshold of t_rad and w plays two roles: it is the
// per-shell relative tolerance and also the fraction of shells that must be
// within tolerance. Both uses read the same number.
//
// The kind is checked lazily. [New] accepts any string and the error surfaces
// from [Strategy.Next] or [Strategy.Converged]:
//
//	s := convergence.New("specific", tRad, w, tInner)
//	next, converged, err := s.Evaluate(current, estimated)
package convergence
