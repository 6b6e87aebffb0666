// Package export writes stored runs as JSON and renders spectra and
// convergence histories with gonum/plot.
package export

import (
	"encoding/json"
	"io"
	"os"

	"github.com/san-kum/radsim/internal/snapshot"
)

type Data struct {
	Run       snapshot.Run        `json:"run"`
	Snapshots []snapshot.Snapshot `json:"snapshots"`
	History   []HistoryPoint      `json:"history"`
}

// HistoryPoint summarizes one stored snapshot.
type HistoryPoint struct {
	Iteration int     `json:"iteration"`
	Label     string  `json:"label"`
	TInner    float64 `json:"t_inner"`
	MeanTRad  float64 `json:"mean_t_rad"`
	MeanW     float64 `json:"mean_w"`
	Converged bool    `json:"converged"`
}

func History(snaps []snapshot.Snapshot) []HistoryPoint {
	out := make([]HistoryPoint, 0, len(snaps))
	for _, s := range snaps {
		out = append(out, HistoryPoint{
			Iteration: s.Iteration,
			Label:     s.Label,
			TInner:    s.State.TInner,
			MeanTRad:  mean(s.State.TRad),
			MeanW:     mean(s.State.W),
			Converged: s.Converged,
		})
	}
	return out
}

func mean(v []float64) float64 {
	if len(v) == 0 {
		return 0
	}
	sum := 0.0
	for _, x := range v {
		sum += x
	}
	return sum / float64(len(v))
}

func WriteJSON(w io.Writer, run snapshot.Run, snaps []snapshot.Snapshot) error {
	data := Data{Run: run, Snapshots: snaps, History: History(snaps)}
	if data.Snapshots == nil {
		data.Snapshots = []snapshot.Snapshot{}
	}
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}

// JSON writes to path, or to stdout when path is "-".
func JSON(path string, run snapshot.Run, snaps []snapshot.Snapshot) error {
	if path == "-" {
		return WriteJSON(os.Stdout, run, snaps)
	}
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()
	return WriteJSON(file, run, snaps)
}
