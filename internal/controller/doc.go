// Package controller drives the convergence loop of a simulation.
//
// Each iteration runs the transport solver once through a
// [transport.Invoker], derives estimated plasma quantities from the
// estimators, applies the damped update of a [convergence.Strategy] to the
// [Model], and lets a [budget.Budget] decide whether to keep iterating,
// hold after convergence, or stop. A final high-fidelity transport run
// follows the loop and its output is recorded on the model.
//
// # Example
//
//	inv := transport.NewInvoker(solver, threads, log)
//	ctrl := controller.New(cfg, inv, strategy)
//	ctrl.SetPersister(store)
//	summary, err := ctrl.Run(ctx, model)
//
// # Thread Safety
//
// A Controller runs iterations strictly one after another and owns the
// model's plasma state for the duration of Run. Do not share a model between
// concurrent runs.
package controller
