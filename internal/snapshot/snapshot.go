// Package snapshot defines what the controller hands to persistence and the
// interfaces storage backends implement.
package snapshot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/san-kum/radsim/internal/plasma"
)

// ErrInvalidScope is returned by ParseScope.
var ErrInvalidScope = errors.New("snapshot: mode must be \"full\" or \"input\"")

// ErrNotFound is returned when a run or snapshot does not exist.
var ErrNotFound = errors.New("snapshot: not found")

type Scope string

const (
	ScopeFull  Scope = "full"
	ScopeInput Scope = "input"
)

func ParseScope(s string) (Scope, error) {
	switch Scope(s) {
	case ScopeFull, ScopeInput:
		return Scope(s), nil
	default:
		return "", fmt.Errorf("%w, not %q", ErrInvalidScope, s)
	}
}

// Runner carries the raw transport output of a snapshot. Only full
// snapshots include it.
type Runner struct {
	OutputNu       []float64 `json:"output_nu"`
	OutputEnergy   []float64 `json:"output_energy"`
	JEstimator     []float64 `json:"j_estimator"`
	NuBarEstimator []float64 `json:"nu_bar_estimator"`
}

type Snapshot struct {
	ID        string               `json:"id"`
	RunID     string               `json:"run_id"`
	Label     string               `json:"label"`
	Iteration int                  `json:"iteration"`
	Scope     Scope                `json:"scope"`
	CreatedAt time.Time            `json:"created_at"`
	Converged bool                 `json:"converged"`
	State     plasma.State         `json:"state"`
	Scalars   map[string]float64   `json:"scalars,omitempty"`
	Arrays    map[string][]float64 `json:"arrays,omitempty"`
	Runner    *Runner              `json:"runner,omitempty"`
}

// Trim drops everything an input-scope snapshot must not carry.
func (s Snapshot) Trim() Snapshot {
	if s.Scope == ScopeFull {
		return s
	}
	s.Scalars = nil
	s.Arrays = nil
	s.Runner = nil
	return s
}

// Run is the summary record of one simulation.
type Run struct {
	ID          string             `json:"id"`
	Name        string             `json:"name"`
	Timestamp   time.Time          `json:"timestamp"`
	Shells      int                `json:"shells"`
	Requested   int                `json:"iterations_max_requested"`
	Executed    int                `json:"iterations_executed"`
	Converged   bool               `json:"converged"`
	Packets     int                `json:"packets"`
	Virtual     int                `json:"virtual_packets"`
	Strategy    string             `json:"strategy"`
	ElapsedSec  float64            `json:"elapsed_seconds"`
	Metrics     map[string]float64 `json:"metrics"`
	FinalTInner float64            `json:"final_t_inner"`
}

// Persister stores one snapshot. The controller calls it once per retained
// iteration and treats failure as fatal.
type Persister interface {
	Persist(ctx context.Context, snap Snapshot) error
}

// Store is a full storage backend used by the CLI.
type Store interface {
	Persister
	SaveRun(ctx context.Context, run Run) error
	ListRuns(ctx context.Context) ([]Run, error)
	LoadRun(ctx context.Context, id string) (*Run, error)
	LoadSnapshots(ctx context.Context, runID string) ([]Snapshot, error)
	Close() error
}
