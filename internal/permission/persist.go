package permission

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"

	"github.com/opencode-ai/mcp-claude-code/internal/event"
	"github.com/opencode-ai/mcp-claude-code/internal/storage"
)

var snapshotKey = []string{"permission", "gate"}

// Store persists gate snapshots so approvals can be granted from another
// process (the approve command) and survive restarts.
type Store struct {
	storage *storage.Storage
	now     func() time.Time
}

// NewStore creates a snapshot store on top of s.
func NewStore(s *storage.Storage) *Store {
	return &Store{storage: s, now: time.Now}
}

// Path returns the snapshot file.
func (s *Store) Path() string {
	return s.storage.FilePath(snapshotKey)
}

// Load reads the stored snapshot. It returns storage.ErrNotFound when
// nothing has been saved yet.
func (s *Store) Load(ctx context.Context) (*Snapshot, error) {
	var snap Snapshot
	if err := s.storage.Get(ctx, snapshotKey, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

// Save writes the gate state. Approvals already on disk are kept when newer
// than the gate's own, and expired ones are dropped.
func (s *Store) Save(ctx context.Context, g *Gate) error {
	current := g.Snapshot()
	var stored Snapshot
	return s.storage.Update(ctx, snapshotKey, &stored, func() error {
		approvals := mergeSnapshotApprovals(stored.ApprovedOperations, current.ApprovedOperations)
		pruneSnapshotApprovals(approvals, g.OperationTimeout(), s.now())
		stored = *current
		stored.ApprovedOperations = approvals
		return nil
	})
}

// Approve records an approval directly in the stored snapshot.
func (s *Store) Approve(ctx context.Context, path, operation string) (string, error) {
	key := approvalKey(path)
	var stored Snapshot
	err := s.storage.Update(ctx, snapshotKey, &stored, func() error {
		if stored.ApprovedOperations == nil {
			stored.ApprovedOperations = make(map[string]map[string]float64)
		}
		if stored.ApprovedOperations[key] == nil {
			stored.ApprovedOperations[key] = make(map[string]float64)
		}
		stored.ApprovedOperations[key][operation] = toUnixSeconds(s.now())
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("record approval: %w", err)
	}
	return key, nil
}

// Restore merges stored approvals into g. A missing snapshot is not an error.
func (s *Store) Restore(ctx context.Context, g *Gate) (int, error) {
	snap, err := s.Load(ctx)
	if errors.Is(err, storage.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return g.MergeApprovals(snap), nil
}

// Watch merges approvals into g whenever the snapshot file changes. It
// blocks until ctx is done.
func (s *Store) Watch(ctx context.Context, g *Gate) error {
	dir := filepath.Dir(s.Path())
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	// Watch the directory: the file is replaced by rename on every save.
	if err := w.Add(dir); err != nil {
		return err
	}
	log.Debug().Str("path", s.Path()).Msg("watching permission snapshot")

	target := filepath.Clean(s.Path())
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target || ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			n, err := s.Restore(ctx, g)
			if err != nil {
				log.Warn().Err(err).Msg("failed to reload permission snapshot")
				continue
			}
			if n > 0 {
				log.Info().Int("imported", n).Msg("approvals reloaded")
				event.Publish(event.Event{
					Type: event.ApprovalsReloaded,
					Data: event.ApprovalsReloadedData{Source: s.Path(), Imported: n},
				})
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			log.Error().Err(err).Msg("permission watcher error")
		}
	}
}
