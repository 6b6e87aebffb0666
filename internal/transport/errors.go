package transport

import "errors"

var (
	// ErrBadRequest indicates a request the solver boundary rejects.
	ErrBadRequest = errors.New("transport: invalid request")

	// ErrEstimatorShape indicates estimator arrays of inconsistent length.
	ErrEstimatorShape = errors.New("transport: estimator arrays have inconsistent shapes")

	// ErrBins indicates spectrum bin edges that are not strictly increasing.
	ErrBins = errors.New("transport: spectrum bins must be at least two increasing edges")
)
