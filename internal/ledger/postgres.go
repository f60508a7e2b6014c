package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/user/finagent/internal/types"
)

// PostgresLedger stores audit entries in an append-only table.
type PostgresLedger struct {
	db         *sql.DB
	classifier *Classifier
}

func NewPostgresLedger(url string, classifier *Classifier) (*PostgresLedger, error) {
	if classifier == nil {
		classifier = NewClassifier(nil)
	}
	db, err := sql.Open("postgres", url)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	l := &PostgresLedger{db: db, classifier: classifier}
	if err := l.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return l, nil
}

// Confidence is stored as text ("92%"), matching the JSON form the file
// backend writes.
const createLedgerTableSQL = `
	CREATE TABLE IF NOT EXISTS audit_ledger (
		id         TEXT PRIMARY KEY,
		user_id    TEXT NOT NULL,
		step       TEXT NOT NULL,
		tool       TEXT NOT NULL,
		input      TEXT NOT NULL,
		output     TEXT NOT NULL,
		confidence TEXT NOT NULL,
		status     TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL
	)`

func (l *PostgresLedger) migrate() error {
	_, err := l.db.Exec(createLedgerTableSQL)
	if err != nil {
		return fmt.Errorf("create audit_ledger table: %w", err)
	}
	_, err = l.db.Exec(`CREATE INDEX IF NOT EXISTS audit_ledger_user_idx ON audit_ledger (user_id, created_at)`)
	if err != nil {
		return fmt.Errorf("create audit_ledger index: %w", err)
	}
	return nil
}

func (l *PostgresLedger) Close() error {
	return l.db.Close()
}

func (l *PostgresLedger) Record(ctx context.Context, entry *types.AuditEntry) error {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}
	if entry.ID == "" {
		entry.ID = fmt.Sprintf("%s_%d", entry.UserID, entry.Timestamp.UnixNano())
	}
	entry.Status = l.classifier.Classify(entry.Tool)

	_, err := l.db.ExecContext(ctx, `
		INSERT INTO audit_ledger (id, user_id, step, tool, input, output, confidence, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		entry.ID, entry.UserID, entry.Step, entry.Tool, string(entry.Input), string(entry.Output),
		entry.Confidence, string(entry.Status), entry.Timestamp)
	if err != nil {
		return fmt.Errorf("insert ledger entry: %w", err)
	}
	return nil
}

func (l *PostgresLedger) List(ctx context.Context, userID string) ([]*types.AuditEntry, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT id, user_id, step, tool, input, output, confidence, status, created_at
		FROM audit_ledger WHERE user_id = $1 ORDER BY created_at`, userID)
	if err != nil {
		return nil, fmt.Errorf("query ledger: %w", err)
	}
	defer rows.Close()

	var out []*types.AuditEntry
	for rows.Next() {
		var entry types.AuditEntry
		var input, output, status string
		if err := rows.Scan(&entry.ID, &entry.UserID, &entry.Step, &entry.Tool,
			&input, &output, &entry.Confidence, &status, &entry.Timestamp); err != nil {
			return nil, fmt.Errorf("scan ledger entry: %w", err)
		}
		entry.Input = []byte(input)
		entry.Output = []byte(output)
		entry.Status = types.AuditStatus(status)
		out = append(out, &entry)
	}
	return out, rows.Err()
}
