package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/user/finagent/internal/types"
)

const maxStoredActions = 50

// FileStore keeps one JSON memory document per user under <root>/memory/.
// Loading a user that has never been seen creates their default document,
// so callers always get a usable memory back.
type FileStore struct {
	root string
	mu   sync.Mutex
}

func NewFileStore(root string) *FileStore {
	return &FileStore{root: root}
}

func (s *FileStore) dir() string {
	return filepath.Join(s.root, "memory")
}

func (s *FileStore) path(userID string) string {
	replacer := strings.NewReplacer("/", "_", "\\", "_", "..", "_")
	return filepath.Join(s.dir(), replacer.Replace(userID)+".json")
}

// Load returns the user's memory, creating and persisting the default
// document on first access.
func (s *FileStore) Load(_ context.Context, userID string) (types.UserMemory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	mem, found, err := s.read(userID)
	if err != nil {
		return types.UserMemory{}, err
	}
	if found {
		return mem, nil
	}

	mem = types.DefaultMemory()
	if err := s.write(userID, mem); err != nil {
		return types.UserMemory{}, err
	}
	return mem, nil
}

// AppendAction records an action summary in the user's history, newest last.
// Only the most recent entries are retained.
func (s *FileStore) AppendAction(_ context.Context, userID, summary string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	mem, found, err := s.read(userID)
	if err != nil {
		return err
	}
	if !found {
		mem = types.DefaultMemory()
	}

	mem.LastActions = append(mem.LastActions, summary)
	if len(mem.LastActions) > maxStoredActions {
		mem.LastActions = mem.LastActions[len(mem.LastActions)-maxStoredActions:]
	}
	return s.write(userID, mem)
}

func (s *FileStore) read(userID string) (types.UserMemory, bool, error) {
	data, err := os.ReadFile(s.path(userID))
	if err != nil {
		if os.IsNotExist(err) {
			return types.UserMemory{}, false, nil
		}
		return types.UserMemory{}, false, fmt.Errorf("read memory for %s: %w", userID, err)
	}
	var mem types.UserMemory
	if err := json.Unmarshal(data, &mem); err != nil {
		return types.UserMemory{}, false, fmt.Errorf("unmarshal memory for %s: %w", userID, err)
	}
	return mem, true, nil
}

func (s *FileStore) write(userID string, mem types.UserMemory) error {
	if err := os.MkdirAll(s.dir(), 0o755); err != nil {
		return fmt.Errorf("create memory dir: %w", err)
	}
	data, err := json.MarshalIndent(mem, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal memory for %s: %w", userID, err)
	}
	path := s.path(userID)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write temp memory file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename temp memory file: %w", err)
	}
	return nil
}
