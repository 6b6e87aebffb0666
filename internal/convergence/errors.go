package convergence

import (
	"errors"
	"fmt"
)

// ErrUnknownKind is matched by every ConfigError.
var ErrUnknownKind = errors.New("convergence: unknown strategy kind")

// ConfigError reports a strategy kind that is neither damped nor specific.
type ConfigError struct {
	Kind string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("convergence strategy type is neither damped nor specific - input is %q", e.Kind)
}

func (e *ConfigError) Unwrap() error {
	return ErrUnknownKind
}
