package storage

import (
	"fmt"
	"path/filepath"

	"github.com/san-kum/radsim/internal/snapshot"
)

const (
	BackendDir    = "dir"
	BackendSQLite = "sqlite"
)

// Open returns the backend named by kind rooted at path. For sqlite, path is
// the data directory and the database file lives inside it.
func Open(kind, path string) (snapshot.Store, error) {
	switch kind {
	case BackendDir, "":
		st := New(path)
		if err := st.Init(); err != nil {
			return nil, err
		}
		return st, nil
	case BackendSQLite:
		st := New(path)
		if err := st.Init(); err != nil {
			return nil, err
		}
		return NewSQLiteStore(filepath.Join(path, "radsim.db"))
	default:
		return nil, fmt.Errorf("unknown storage backend: %s", kind)
	}
}
