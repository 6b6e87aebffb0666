// Package transport is the boundary to the Monte Carlo transport solver.
//
// A [Solver] runs one iteration for a plasma state and returns raw
// [Estimators]. The [Invoker] calls it exactly once per controller iteration
// and reports the degenerate case where no packet escaped. Estimators expose
// the derived quantities the controller needs:
//
//   - [Estimators.EmittedLuminosity] and [Estimators.ReabsorbedLuminosity]
//     inside a frequency [Band]
//   - [Estimators.RadiationField]: estimated t_rad and w per shell
//   - [Estimators.Spectra]: binned emitted, reabsorbed and virtual spectra
package transport
