package plasma

import "errors"

var (
	// ErrShellMismatch indicates TRad and W do not describe the same shells.
	ErrShellMismatch = errors.New("plasma: t_rad and w have different shell counts")

	// ErrEmpty indicates a state without any shell.
	ErrEmpty = errors.New("plasma: state has no shells")

	// ErrInvalidValue indicates a NaN or Inf in the state.
	ErrInvalidValue = errors.New("plasma: invalid value (NaN or Inf detected)")
)
