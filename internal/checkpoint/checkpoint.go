package checkpoint

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/user/finagent/internal/types"
)

// Store is a JSON-file-backed conversation checkpointer. Each thread is
// stored at threads/<sanitized key>.json; writes are atomic (temp file +
// rename) and serialized per thread, which gives read-after-write
// consistency within a process.
type Store struct {
	root  string
	mu    sync.Mutex
	locks map[types.ThreadKey]*sync.Mutex
}

// NewStore creates a file-backed checkpoint store rooted at the given
// directory.
func NewStore(root string) *Store {
	return &Store{
		root:  root,
		locks: make(map[types.ThreadKey]*sync.Mutex),
	}
}

func (s *Store) getLock(key types.ThreadKey) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()

	if lock, ok := s.locks[key]; ok {
		return lock
	}
	lock := &sync.Mutex{}
	s.locks[key] = lock
	return lock
}

func (s *Store) threadsDir() string {
	return filepath.Join(s.root, "threads")
}

func (s *Store) threadPath(key types.ThreadKey) string {
	return filepath.Join(s.threadsDir(), sanitizeKey(key)+".json")
}

// sanitizeKey maps a thread key onto a safe file name. Thread keys may
// contain ':' separators and user-supplied segments.
func sanitizeKey(key types.ThreadKey) string {
	replacer := strings.NewReplacer(":", "_", "/", "_", "\\", "_", "..", "_")
	return replacer.Replace(string(key))
}

// Load returns the state stored for the key, or an empty state when the
// thread has never been saved.
func (s *Store) Load(_ context.Context, key types.ThreadKey) (*types.ThreadState, error) {
	lock := s.getLock(key)
	lock.Lock()
	defer lock.Unlock()

	data, err := os.ReadFile(s.threadPath(key))
	if err != nil {
		if os.IsNotExist(err) {
			now := time.Now()
			return &types.ThreadState{Key: key, CreatedAt: now, UpdatedAt: now}, nil
		}
		return nil, fmt.Errorf("read thread %s: %w", key, err)
	}

	var state types.ThreadState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("unmarshal thread %s: %w", key, err)
	}
	return &state, nil
}

// Save persists the state for the key atomically.
func (s *Store) Save(_ context.Context, key types.ThreadKey, state *types.ThreadState) error {
	lock := s.getLock(key)
	lock.Lock()
	defer lock.Unlock()

	if err := os.MkdirAll(s.threadsDir(), 0o755); err != nil {
		return fmt.Errorf("create threads dir: %w", err)
	}

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal thread %s: %w", key, err)
	}

	path := s.threadPath(key)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write temp thread file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename temp thread file: %w", err)
	}
	return nil
}

// List returns the state of every stored thread, for the debug API and CLI.
func (s *Store) List(ctx context.Context) ([]*types.ThreadState, error) {
	entries, err := os.ReadDir(s.threadsDir())
	if err != nil {
		if os.IsNotExist(err) {
			return []*types.ThreadState{}, nil
		}
		return nil, fmt.Errorf("read threads dir: %w", err)
	}

	var out []*types.ThreadState
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(s.threadsDir(), entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("read thread file %s: %w", entry.Name(), err)
		}
		var state types.ThreadState
		if err := json.Unmarshal(data, &state); err != nil {
			return nil, fmt.Errorf("unmarshal thread file %s: %w", entry.Name(), err)
		}
		out = append(out, &state)
	}
	return out, nil
}
