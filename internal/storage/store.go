package storage

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/pkg/errors"

	"github.com/san-kum/radsim/internal/snapshot"
)

const (
	metadataFile = "metadata.json"
	snapshotFile = "snapshot.json"
	plasmaFile   = "plasma.csv"
)

// DirStore keeps one directory per run and one sub-directory per snapshot
// label.
type DirStore struct {
	baseDir string
}

func New(baseDir string) *DirStore {
	return &DirStore{baseDir: baseDir}
}

func (s *DirStore) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

func (s *DirStore) Close() error { return nil }

func (s *DirStore) Persist(ctx context.Context, snap snapshot.Snapshot) error {
	if snap.RunID == "" || snap.Label == "" {
		return fmt.Errorf("storage: snapshot needs run id and label")
	}
	snap = snap.Trim()

	dir := filepath.Join(s.baseDir, snap.RunID, snap.Label)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.Wrapf(err, "create %s", dir)
	}

	if err := writeJSON(filepath.Join(dir, snapshotFile), snap); err != nil {
		return err
	}
	return writePlasmaCSV(filepath.Join(dir, plasmaFile), snap)
}

func writeJSON(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "create %s", path)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return errors.Wrapf(err, "encode %s", path)
	}
	return nil
}

func writePlasmaCSV(path string, snap snapshot.Snapshot) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "create %s", path)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"shell", "t_rad", "w"}); err != nil {
		return err
	}
	for i := range snap.State.TRad {
		row := []string{
			strconv.Itoa(i),
			strconv.FormatFloat(snap.State.TRad[i], 'g', -1, 64),
			strconv.FormatFloat(snap.State.W[i], 'g', -1, 64),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func (s *DirStore) SaveRun(ctx context.Context, run snapshot.Run) error {
	dir := filepath.Join(s.baseDir, run.ID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.Wrapf(err, "create %s", dir)
	}
	return writeJSON(filepath.Join(dir, metadataFile), run)
}

func (s *DirStore) ListRuns(ctx context.Context) ([]snapshot.Run, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []snapshot.Run{}, nil
		}
		return nil, err
	}

	runs := make([]snapshot.Run, 0)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		data, err := os.ReadFile(filepath.Join(s.baseDir, entry.Name(), metadataFile))
		if err != nil {
			continue
		}

		var run snapshot.Run
		if err := json.Unmarshal(data, &run); err != nil {
			continue
		}
		runs = append(runs, run)
	}

	sort.Slice(runs, func(i, j int) bool { return runs[i].Timestamp.Before(runs[j].Timestamp) })
	return runs, nil
}

func (s *DirStore) LoadRun(ctx context.Context, id string) (*snapshot.Run, error) {
	data, err := os.ReadFile(filepath.Join(s.baseDir, id, metadataFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrapf(snapshot.ErrNotFound, "run %s", id)
		}
		return nil, err
	}

	var run snapshot.Run
	if err := json.Unmarshal(data, &run); err != nil {
		return nil, errors.Wrapf(err, "decode run %s", id)
	}
	return &run, nil
}

// LoadSnapshots returns the snapshots of a run ordered by iteration.
func (s *DirStore) LoadSnapshots(ctx context.Context, runID string) ([]snapshot.Snapshot, error) {
	runDir := filepath.Join(s.baseDir, runID)
	entries, err := os.ReadDir(runDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrapf(snapshot.ErrNotFound, "run %s", runID)
		}
		return nil, err
	}

	snaps := make([]snapshot.Snapshot, 0)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		data, err := os.ReadFile(filepath.Join(runDir, entry.Name(), snapshotFile))
		if err != nil {
			continue
		}
		var snap snapshot.Snapshot
		if err := json.Unmarshal(data, &snap); err != nil {
			return nil, errors.Wrapf(err, "decode snapshot %s", entry.Name())
		}
		snaps = append(snaps, snap)
	}

	sort.Slice(snaps, func(i, j int) bool { return snaps[i].Iteration < snaps[j].Iteration })
	return snaps, nil
}

// LoadPlasma reads the per-shell table written next to a snapshot.
func (s *DirStore) LoadPlasma(runID, label string) (tRad, w []float64, err error) {
	f, err := os.Open(filepath.Join(s.baseDir, runID, label, plasmaFile))
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	records, err := r.ReadAll()
	if err != nil {
		return nil, nil, err
	}

	for i := 1; i < len(records); i++ {
		if len(records[i]) < 3 {
			continue
		}
		t, err := strconv.ParseFloat(records[i][1], 64)
		if err != nil {
			return nil, nil, err
		}
		wv, err := strconv.ParseFloat(records[i][2], 64)
		if err != nil {
			return nil, nil, err
		}
		tRad = append(tRad, t)
		w = append(w, wv)
	}
	return tRad, w, nil
}
