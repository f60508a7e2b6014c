package memory

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	_ "github.com/lib/pq"

	"github.com/user/finagent/internal/types"
)

// PostgresStore persists user memory in a single-row-per-user table. It is
// the deployment alternative to FileStore when several engine instances
// share one database.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore opens the database and ensures the schema exists.
func NewPostgresStore(url string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", url)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	s := &PostgresStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *PostgresStore) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS user_memory (
			user_id    TEXT PRIMARY KEY,
			document   JSONB NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`)
	if err != nil {
		return fmt.Errorf("create user_memory table: %w", err)
	}
	return nil
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}

func (s *PostgresStore) Load(ctx context.Context, userID string) (types.UserMemory, error) {
	var raw []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT document FROM user_memory WHERE user_id = $1`, userID).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		mem := types.DefaultMemory()
		if err := s.save(ctx, userID, mem); err != nil {
			return types.UserMemory{}, err
		}
		return mem, nil
	}
	if err != nil {
		return types.UserMemory{}, fmt.Errorf("load memory for %s: %w", userID, err)
	}

	var mem types.UserMemory
	if err := json.Unmarshal(raw, &mem); err != nil {
		return types.UserMemory{}, fmt.Errorf("unmarshal memory for %s: %w", userID, err)
	}
	return mem, nil
}

func (s *PostgresStore) AppendAction(ctx context.Context, userID, summary string) error {
	mem, err := s.Load(ctx, userID)
	if err != nil {
		return err
	}
	mem.LastActions = append(mem.LastActions, summary)
	if len(mem.LastActions) > maxStoredActions {
		mem.LastActions = mem.LastActions[len(mem.LastActions)-maxStoredActions:]
	}
	return s.save(ctx, userID, mem)
}

func (s *PostgresStore) save(ctx context.Context, userID string, mem types.UserMemory) error {
	doc, err := json.Marshal(mem)
	if err != nil {
		return fmt.Errorf("marshal memory for %s: %w", userID, err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO user_memory (user_id, document, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (user_id)
		DO UPDATE SET document = EXCLUDED.document, updated_at = now()`,
		userID, doc)
	if err != nil {
		return fmt.Errorf("save memory for %s: %w", userID, err)
	}
	return nil
}
