// Package model provides the spherically symmetric supernova ejecta model
// the convergence controller refines.
//
// The ejecta are split into homologously expanding shells bounded by
// velocities. [Radial1D] owns the plasma state and everything derived from
// it: the inner boundary luminosity, the simulation time that normalizes
// packet energies, and the radiation energy density per shell.
//
// # Example
//
//	geom, _ := model.NewGeometry(1.1e9, 2e9, 20, 13*86400)
//	m, _ := model.NewRadial1D(geom, 1e43, 0)
//	ctrl.Run(ctx, m)
package model
