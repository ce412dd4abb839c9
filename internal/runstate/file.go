package runstate

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	apperrors "github.com/Adithya-Monish-Kumar-K/Content-Generation-Pipeline/pkg/errors"
)

const latestFile = "LATEST"

// FileStore keeps stage documents under <root>/runs/<runID>/<stage>.json.
type FileStore struct {
	root string
}

// NewFileStore creates a FileStore rooted at dataDir.
func NewFileStore(dataDir string) *FileStore {
	return &FileStore{root: filepath.Join(dataDir, "runs")}
}

// Dir returns the directory holding a run's documents and exports.
func (s *FileStore) Dir(runID string) string {
	return filepath.Join(s.root, runID)
}

func (s *FileStore) path(runID string, stage Stage) string {
	return filepath.Join(s.Dir(runID), string(stage)+".json")
}

// Put writes data through a temp file and renames it into place.
func (s *FileStore) Put(ctx context.Context, runID string, stage Stage, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if runID == "" || strings.ContainsAny(runID, `/\`) {
		return fmt.Errorf("invalid run id %q", runID)
	}
	return writeAtomic(s.path(runID, stage), data)
}

func (s *FileStore) Get(ctx context.Context, runID string, stage Stage) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.path(runID, stage))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, missing(runID, stage)
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s output: %w", stage, err)
	}
	return data, nil
}

// SetLatest records runID as the run later commands default to.
func (s *FileStore) SetLatest(ctx context.Context, runID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return writeAtomic(filepath.Join(s.root, latestFile), []byte(runID+"\n"))
}

func (s *FileStore) Latest(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	data, err := os.ReadFile(filepath.Join(s.root, latestFile))
	if errors.Is(err, fs.ErrNotExist) {
		return "", apperrors.New(apperrors.ErrStageMissing, "", "no run has been started")
	}
	if err != nil {
		return "", fmt.Errorf("reading latest run: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

func writeAtomic(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating directory: %w", err)
	}
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("writing %s: %w", filepath.Base(path), err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("syncing %s: %w", filepath.Base(path), err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("closing %s: %w", filepath.Base(path), err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("renaming %s: %w", filepath.Base(path), err)
	}
	return nil
}
