// internal/types/interfaces.go
package types

import "context"

// Checkpointer persists thread state. Load returns an empty state (never nil)
// for unknown keys; state saved under a key is exactly what the next Load for
// that key returns within a process.
type Checkpointer interface {
	Load(ctx context.Context, key ThreadKey) (*ThreadState, error)
	Save(ctx context.Context, key ThreadKey, state *ThreadState) error
}

// MemoryStore is the per-user long-term memory adapter. Load creates the
// default record on first access; AppendAction is best-effort and must not
// abort the calling turn on failure.
type MemoryStore interface {
	Load(ctx context.Context, userID string) (UserMemory, error)
	AppendAction(ctx context.Context, userID, summary string) error
}

// Ledger is the append-only audit log. Entries are write-once.
type Ledger interface {
	Record(ctx context.Context, entry *AuditEntry) error
}
