package ledger

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

// DefaultFrozenMarkers flags regulated actions. Any tool whose name contains
// one of these substrings gets a frozen ledger entry regardless of whether
// the execution itself succeeded; release happens out of band after manual
// review.
var DefaultFrozenMarkers = []string{"alert", "gst"}

// Classifier decides the compliance status of an audit entry from the tool
// name.
type Classifier struct {
	markers []string
}

func NewClassifier(markers []string) *Classifier {
	if len(markers) == 0 {
		markers = DefaultFrozenMarkers
	}
	return &Classifier{markers: markers}
}

// Classify returns StatusFrozen when the tool name matches a marker.
func (c *Classifier) Classify(tool string) types.AuditStatus {
	lower := strings.ToLower(tool)
	for _, marker := range c.markers {
		if strings.Contains(lower, marker) {
			return types.StatusFrozen
		}
	}
	return types.StatusSuccess
}

// FileLedger is an append-only JSONL audit log, one line per entry. Entries
// are never rewritten; the file is the compliance record.
type FileLedger struct {
	path       string
	classifier *Classifier
	mu         sync.Mutex
}

func NewFileLedger(root string, classifier *Classifier) *FileLedger {
	if classifier == nil {
		classifier = NewClassifier(nil)
	}
	return &FileLedger{
		path:       filepath.Join(root, "ledger.jsonl"),
		classifier: classifier,
	}
}

// Record stamps the entry with an ID, timestamp and compliance status, then
// appends it to the log.
func (l *FileLedger) Record(_ context.Context, entry *types.AuditEntry) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.stamp(entry)

	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("create ledger dir: %w", err)
	}
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open ledger: %w", err)
	}
	defer f.Close()

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal ledger entry: %w", err)
	}
	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("append ledger entry: %w", err)
	}
	return nil
}

func (l *FileLedger) stamp(entry *types.AuditEntry) {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}
	if entry.ID == "" {
		entry.ID = fmt.Sprintf("%s_%d", entry.UserID, entry.Timestamp.UnixNano())
	}
	entry.Status = l.classifier.Classify(entry.Tool)
}

// List returns all entries for a user in record order.
func (l *FileLedger) List(_ context.Context, userID string) ([]*types.AuditEntry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	data, err := os.ReadFile(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return []*types.AuditEntry{}, nil
		}
		return nil, fmt.Errorf("read ledger: %w", err)
	}

	var out []*types.AuditEntry
	for _, line := range strings.Split(string(data), "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		var entry types.AuditEntry
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			return nil, fmt.Errorf("unmarshal ledger line: %w", err)
		}
		if entry.UserID == userID {
			out = append(out, &entry)
		}
	}
	return out, nil
}
