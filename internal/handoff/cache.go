package handoff

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresCache keeps the last-packaged context in a single-row slot so it
// survives a restart. Saves are wholesale overwrites.
type PostgresCache struct {
	db *pgxpool.Pool
}

func NewPostgresCache(db *pgxpool.Pool) *PostgresCache {
	return &PostgresCache{db: db}
}

func (c *PostgresCache) Save(ctx context.Context, mc *MenuContext) error {
	doc, err := json.Marshal(mc)
	if err != nil {
		return err
	}

	_, err = c.db.Exec(ctx, `
		INSERT INTO menu_context_slot (id, context_json, updated_at)
		VALUES (1, $1, now())
		ON CONFLICT (id) DO UPDATE
		SET context_json = EXCLUDED.context_json,
		    updated_at = now()
	`, string(doc))
	return err
}

// Load returns the cached context, or nil when nothing was packaged yet.
func (c *PostgresCache) Load(ctx context.Context) (*MenuContext, error) {
	var doc string
	err := c.db.QueryRow(ctx, `
		SELECT context_json FROM menu_context_slot WHERE id = 1
	`).Scan(&doc)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	var mc MenuContext
	if err := json.Unmarshal([]byte(doc), &mc); err != nil {
		return nil, err
	}
	return &mc, nil
}

// MemoryCache backs tests.
type MemoryCache struct {
	mu sync.Mutex
	mc *MenuContext
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{}
}

func (c *MemoryCache) Save(ctx context.Context, mc *MenuContext) error {
	doc, err := json.Marshal(mc)
	if err != nil {
		return err
	}
	var clone MenuContext
	if err := json.Unmarshal(doc, &clone); err != nil {
		return err
	}

	c.mu.Lock()
	c.mc = &clone
	c.mu.Unlock()
	return nil
}

func (c *MemoryCache) Load(ctx context.Context) (*MenuContext, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mc, nil
}
