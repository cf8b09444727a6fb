package chat

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PostgresRepository struct {
	db *pgxpool.Pool
}

func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) CreateSession(ctx context.Context, id string) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO chat_sessions (id, created_at)
		VALUES ($1, now())
		ON CONFLICT (id) DO NOTHING
	`, id)
	return err
}

func (r *PostgresRepository) SessionExists(ctx context.Context, id string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM chat_sessions WHERE id = $1)
	`, id).Scan(&exists)
	return exists, err
}

func (r *PostgresRepository) AppendMessage(ctx context.Context, sessionID, role, content string) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO chat_messages (session_id, role, content, created_at)
		VALUES ($1, $2, $3, now())
	`, sessionID, role, content)
	return err
}

func (r *PostgresRepository) ListMessages(ctx context.Context, sessionID string) ([]Message, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, session_id, role, content, created_at
		FROM chat_messages
		WHERE session_id = $1
		ORDER BY id
	`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	messages := []Message{}
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.SessionID, &m.Role, &m.Content, &m.CreatedAt); err != nil {
			return nil, err
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

func (r *PostgresRepository) SaveContext(ctx context.Context, sessionID string, doc []byte) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO session_contexts (session_id, context_json, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (session_id) DO UPDATE
		SET context_json = EXCLUDED.context_json,
		    updated_at = now()
	`, sessionID, string(doc))
	return err
}

func (r *PostgresRepository) LoadContext(ctx context.Context, sessionID string) ([]byte, error) {
	var doc string
	err := r.db.QueryRow(ctx, `
		SELECT context_json FROM session_contexts WHERE session_id = $1
	`, sessionID).Scan(&doc)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return []byte(doc), nil
}

func (r *PostgresRepository) MoveContext(ctx context.Context, fromID, toID string) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	// The adopting session may already hold a context; the moved one
	// replaces it wholesale.
	if _, err := tx.Exec(ctx, `
		DELETE FROM session_contexts WHERE session_id = $1
	`, toID); err != nil {
		return err
	}

	_, err = tx.Exec(ctx, `
		UPDATE session_contexts
		SET session_id = $2, updated_at = now()
		WHERE session_id = $1
	`, fromID, toID)
	if err != nil {
		return err
	}

	return tx.Commit(ctx)
}
