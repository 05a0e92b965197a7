package persist

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// File stores each document as a JSON file under a data directory. This is
// the desktop deployment's default backend.
type File struct {
	dir string
}

func NewFile(dir string) (*File, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("persist: create data dir: %w", err)
	}
	return &File{dir: dir}, nil
}

func (f *File) path(doc string) string {
	return filepath.Join(f.dir, doc+".json")
}

func (f *File) Load(ctx context.Context) (Snapshot, bool, error) {
	configB, err := readOptional(f.path(docConfig))
	if err != nil {
		return Snapshot{}, false, err
	}
	rosterB, err := readOptional(f.path(docRoster))
	if err != nil {
		return Snapshot{}, false, err
	}
	historyB, err := readOptional(f.path(docHistory))
	if err != nil {
		return Snapshot{}, false, err
	}

	// Any surviving document counts as saved state; a missing config just
	// falls back to the defaults instead of shadowing the other documents.
	if configB == nil && rosterB == nil && historyB == nil {
		return Snapshot{}, false, nil
	}

	s, err := decodeDocs(ctx, rosterB, configB, historyB)
	if err != nil {
		return Snapshot{}, false, err
	}
	return s, true, nil
}

func (f *File) Save(_ context.Context, s Snapshot) error {
	rosterB, configB, historyB, err := encodeDocs(s)
	if err != nil {
		return err
	}

	for doc, b := range map[string][]byte{
		docRoster:  rosterB,
		docConfig:  configB,
		docHistory: historyB,
	} {
		if err := writeAtomic(f.path(doc), b); err != nil {
			return fmt.Errorf("persist: write %s: %w", doc, err)
		}
	}
	return nil
}

func readOptional(path string) ([]byte, error) {
	b, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("persist: read %s: %w", path, err)
	}
	return b, nil
}

// writeAtomic writes to a temp file in the same directory and renames it
// over the target, so a crash mid-write never leaves a torn document.
func writeAtomic(path string, b []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp*")
	if err != nil {
		return err
	}

	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}
