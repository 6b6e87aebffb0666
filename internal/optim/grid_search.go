// Package optim searches convergence settings for the fastest converging
// run.
package optim

import (
	"context"
	"errors"
	"math"
	"sort"

	"github.com/san-kum/radsim/internal/controller"
)

// ErrNoTrial is returned when no grid point produced a summary.
var ErrNoTrial = errors.New("optim: no successful trial")

// Trial runs one simulation with the given parameters.
type Trial func(ctx context.Context, params map[string]float64) (*controller.Summary, error)

// Objective scores a summary; lower is better.
type Objective func(s *controller.Summary) float64

// IterationsToConverge scores by executed iterations. Runs that did not
// converge are charged twice the requested maximum.
func IterationsToConverge(s *controller.Summary) float64 {
	if !s.Converged {
		return float64(2 * s.IterationsMaxRequested)
	}
	return float64(s.IterationsExecuted)
}

// MetricObjective scores by a named summary metric.
func MetricObjective(name string) Objective {
	return func(s *controller.Summary) float64 {
		v, ok := s.Metrics[name]
		if !ok {
			return math.Inf(1)
		}
		return v
	}
}

type Result struct {
	Params  map[string]float64
	Score   float64
	Summary *controller.Summary
	Err     error
}

type GridSearch struct {
	paramNames []string
	ranges     [][]float64
}

func NewGridSearch(params []string, ranges [][]float64) *GridSearch {
	return &GridSearch{paramNames: params, ranges: ranges}
}

// Search evaluates every grid point and returns the best one together with
// all results sorted by score. Failed trials are kept with Err set.
func (g *GridSearch) Search(ctx context.Context, trial Trial, objective Objective) (*Result, []Result, error) {
	var results []Result
	if err := g.searchRecursive(ctx, 0, make(map[string]float64), trial, objective, &results); err != nil {
		return nil, results, err
	}

	sort.SliceStable(results, func(i, j int) bool {
		if (results[i].Err == nil) != (results[j].Err == nil) {
			return results[i].Err == nil
		}
		return results[i].Score < results[j].Score
	})
	if len(results) == 0 || results[0].Err != nil {
		return nil, results, ErrNoTrial
	}
	best := results[0]
	return &best, results, nil
}

func (g *GridSearch) searchRecursive(
	ctx context.Context,
	depth int,
	current map[string]float64,
	trial Trial,
	objective Objective,
	results *[]Result,
) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if depth == len(g.paramNames) {
		params := make(map[string]float64, len(current))
		for k, v := range current {
			params[k] = v
		}

		summary, err := trial(ctx, params)
		r := Result{Params: params, Summary: summary, Err: err, Score: math.Inf(1)}
		if err == nil {
			r.Score = objective(summary)
		}
		*results = append(*results, r)
		return nil
	}

	paramName := g.paramNames[depth]
	for _, val := range g.ranges[depth] {
		current[paramName] = val
		if err := g.searchRecursive(ctx, depth+1, current, trial, objective, results); err != nil {
			return err
		}
	}
	delete(current, paramName)
	return nil
}

// Linspace returns n evenly spaced values in [lo, hi].
func Linspace(lo, hi float64, n int) []float64 {
	if n == 1 {
		return []float64{lo}
	}
	out := make([]float64, n)
	for i := range out {
		out[i] = lo + (hi-lo)*float64(i)/float64(n-1)
	}
	return out
}
