package ingest

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

// Checkpoint records ingestion progress so an interrupted run can resume.
type Checkpoint struct {
	Source    string    `json:"source"`
	Table     string    `json:"table"`
	Total     int       `json:"total"`
	NextIndex int       `json:"next_index"`
	UpdatedAt time.Time `json:"updated_at"`
}

// checkpointFile persists one Checkpoint as JSON. A zero checkpointFile (no dir) is a no-op.
type checkpointFile struct {
	path string
}

func newCheckpointFile(dir, source, table string) (checkpointFile, error) {
	if dir == "" {
		return checkpointFile{}, nil
	}
	if err := os.MkdirAll(filepath.Clean(dir), 0o750); err != nil {
		return checkpointFile{}, fmt.Errorf("create checkpoint dir %s: %w", dir, err)
	}
	abs, err := filepath.Abs(source)
	if err != nil {
		abs = source
	}
	sum := sha256.Sum256([]byte(abs))
	name := fmt.Sprintf("%s-%s.json", table, hex.EncodeToString(sum[:6]))
	return checkpointFile{path: filepath.Join(filepath.Clean(dir), name)}, nil
}

// load returns the stored checkpoint, or ok=false when there is none.
func (c checkpointFile) load() (Checkpoint, bool, error) {
	if c.path == "" {
		return Checkpoint{}, false, nil
	}
	data, err := os.ReadFile(c.path)
	if errors.Is(err, fs.ErrNotExist) {
		return Checkpoint{}, false, nil
	}
	if err != nil {
		return Checkpoint{}, false, fmt.Errorf("read checkpoint %s: %w", c.path, err)
	}
	var cp Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return Checkpoint{}, false, fmt.Errorf("parse checkpoint %s: %w", c.path, err)
	}
	return cp, true, nil
}

// save writes cp atomically (temp file + rename).
func (c checkpointFile) save(cp Checkpoint) error {
	if c.path == "" {
		return nil
	}
	cp.UpdatedAt = time.Now().UTC()
	data, err := json.MarshalIndent(cp, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal checkpoint: %w", err)
	}
	tmp := c.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write checkpoint %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, c.path); err != nil {
		return fmt.Errorf("rename checkpoint %s: %w", c.path, err)
	}
	return nil
}

func (c checkpointFile) remove() error {
	if c.path == "" {
		return nil
	}
	if err := os.Remove(c.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove checkpoint %s: %w", c.path, err)
	}
	return nil
}

// ClearCheckpoints deletes every checkpoint of table under dir and returns how
// many were removed. An empty dir is a no-op.
func ClearCheckpoints(dir, table string) (int, error) {
	if dir == "" {
		return 0, nil
	}
	matches, err := filepath.Glob(filepath.Join(filepath.Clean(dir), table+"-*.json"))
	if err != nil {
		return 0, fmt.Errorf("list checkpoints: %w", err)
	}
	n := 0
	for _, m := range matches {
		if err := os.Remove(m); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return n, fmt.Errorf("remove checkpoint %s: %w", m, err)
		}
		n++
	}
	return n, nil
}
