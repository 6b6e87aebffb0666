// Package montecarlo is a grey Monte Carlo radiative transfer solver.
//
// Packets leave the photosphere with a blackbody frequency at the inner
// temperature and propagate through spherical shells with a constant
// extinction coefficient per shell. An interaction either scatters the
// packet or re-emits it at the local radiation temperature. The solver
// accumulates the J and nubar estimators the convergence controller turns
// into a new plasma state, and, on the final run, virtual packet spectra.
//
// Packets are processed in fixed blocks with one random stream per block,
// so results do not depend on the number of threads.
package montecarlo
