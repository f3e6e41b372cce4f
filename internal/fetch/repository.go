package fetch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/cywf/tle-fetcher/internal/tle"
)

// Repository persists TLE entries across process restarts.
type Repository interface {
	// Get returns the stored entry for id, or nil when none exists.
	Get(ctx context.Context, id string) (*Entry, error)
	// Save stores or replaces the entry for its identifier.
	Save(ctx context.Context, entry Entry) error
}

// FileRepository stores one <id>.tle file per satellite. The file's
// modification time doubles as the fetch timestamp.
type FileRepository struct {
	root string
}

// NewFileRepository creates the repository rooted at dir, creating it on
// demand.
func NewFileRepository(dir string) (*FileRepository, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating repository dir: %w", err)
	}
	return &FileRepository{root: dir}, nil
}

func (r *FileRepository) path(id string) string {
	return filepath.Join(r.root, id+".tle")
}

// Save writes the entry's canonical text form.
func (r *FileRepository) Save(_ context.Context, entry Entry) error {
	path := r.path(entry.Record.ObjectID)
	if err := os.WriteFile(path, []byte(entry.Record.Text(true)), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

// Get reads and re-validates the stored file for id.
func (r *FileRepository) Get(_ context.Context, id string) (*Entry, error) {
	path := r.path(id)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	rec, err := tle.Parse(string(data), id, "local")
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	return &Entry{
		Record:    rec,
		FetchedAt: info.ModTime().UTC(),
		Source:    "local",
	}, nil
}

// Delete removes the stored file for id, if present.
func (r *FileRepository) Delete(id string) error {
	err := os.Remove(r.path(id))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

var _ Repository = (*FileRepository)(nil)
