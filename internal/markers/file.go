package markers

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
	"github.com/gofrs/flock"

	"github.com/quorumdesk/quorumdesk/internal/voting"
)

const (
	// DefaultFileName is the marker file name under the XDG data directory
	DefaultFileName = "quorumdesk/voted.json"

	lockRetryDelay = 50 * time.Millisecond
)

// FileStore keeps markers in a JSON file shared by every process of the workstation.
// Each operation holds an exclusive file lock for its read-modify-write cycle.
type FileStore struct {
	path string
	lock *flock.Flock
}

// NewFileStore creates a file store at path, or under the XDG data directory when path is empty
func NewFileStore(path string) (*FileStore, error) {
	if path == "" {
		p, err := xdg.DataFile(DefaultFileName)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve markers file: %w", err)
		}
		path = p
	}
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return nil, fmt.Errorf("failed to create markers directory: %w", err)
	}
	return &FileStore{
		path: path,
		lock: flock.New(path + ".lock"),
	}, nil
}

// Path returns the marker file location
func (f *FileStore) Path() string {
	return f.path
}

// IsVoted implements voting.MarkerStore
func (f *FileStore) IsVoted(ctx context.Context, votingID string, questionID int64) (bool, error) {
	var voted bool
	err := f.withLock(ctx, func() error {
		marked, err := f.load()
		if err != nil {
			return err
		}
		_, voted = marked[voting.MarkerKey(votingID, questionID)]
		return nil
	})
	return voted, err
}

// MarkVoted implements voting.MarkerStore
func (f *FileStore) MarkVoted(ctx context.Context, votingID string, questionID int64) error {
	return f.withLock(ctx, func() error {
		marked, err := f.load()
		if err != nil {
			return err
		}
		marked[voting.MarkerKey(votingID, questionID)] = time.Now().UTC()
		return f.save(marked)
	})
}

// Unmark implements voting.MarkerStore
func (f *FileStore) Unmark(ctx context.Context, votingID string, questionID int64) error {
	return f.withLock(ctx, func() error {
		marked, err := f.load()
		if err != nil {
			return err
		}
		key := voting.MarkerKey(votingID, questionID)
		if _, ok := marked[key]; !ok {
			return nil
		}
		delete(marked, key)
		return f.save(marked)
	})
}

// Close implements Store
func (f *FileStore) Close() error {
	return f.lock.Close()
}

func (f *FileStore) withLock(ctx context.Context, fn func() error) error {
	locked, err := f.lock.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return fmt.Errorf("failed to lock markers file: %w", err)
	}
	if !locked {
		return fmt.Errorf("failed to lock markers file %s", f.path)
	}
	defer func() { _ = f.lock.Unlock() }()
	return fn()
}

// load reads the marker file. A missing file is an empty set.
func (f *FileStore) load() (map[string]time.Time, error) {
	marked := make(map[string]time.Time)
	// #nosec G304 -- path comes from configuration or the XDG data directory
	data, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return marked, nil
		}
		return nil, fmt.Errorf("failed to read markers file: %w", err)
	}
	if len(data) == 0 {
		return marked, nil
	}
	if err := json.Unmarshal(data, &marked); err != nil {
		return nil, fmt.Errorf("failed to unmarshal markers file: %w", err)
	}
	return marked, nil
}

func (f *FileStore) save(marked map[string]time.Time) error {
	data, err := json.MarshalIndent(marked, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal markers: %w", err)
	}

	// Write to temporary file first for atomic operation
	tempPath := f.path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write temporary markers file: %w", err)
	}
	if err := os.Rename(tempPath, f.path); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("failed to rename markers file: %w", err)
	}
	return nil
}
