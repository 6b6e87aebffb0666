// Package physics provides the cgs constants and closed-form radiation
// helpers shared by the model, the estimators and the reference solver.
//
//   - [BlackBodyIntensity]: Planck B_nu(T)
//   - [LuminosityInner]: 4 pi sigma r^2 T^4
//   - [GeometricDilution]: geometric dilution factor of a shell
//   - [WienShiftedTRad]: initial radiation temperature of a moving shell
//
// All quantities are cgs: erg, s, cm, K, Hz.
package physics
