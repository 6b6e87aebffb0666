package model

import "errors"

var (
	// ErrGeometry indicates shell boundaries that do not describe nested
	// shells.
	ErrGeometry = errors.New("model: invalid shell geometry")

	// ErrLuminosity indicates a non-positive requested luminosity.
	ErrLuminosity = errors.New("model: requested luminosity must be positive")
)
