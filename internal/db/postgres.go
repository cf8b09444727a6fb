package db

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

func ConnectPostgres() *pgxpool.Pool {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		log.Fatal("DATABASE_URL not set")
	}

	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		log.Fatal(err)
	}

	config.MaxConns = 10
	config.MinConns = 2
	config.MaxConnLifetime = time.Hour

	pool, err := pgxpool.NewWithConfig(context.Background(), config)
	if err != nil {
		log.Fatal(err)
	}

	if err := pool.Ping(context.Background()); err != nil {
		log.Fatal("Postgres connection failed:", err)
	}

	log.Println("✅ Connected to PostgreSQL")

	// Initialize schema
	if err := initSchema(pool); err != nil {
		log.Fatal("Failed to initialize schema:", err)
	}

	return pool
}

// initSchema creates or updates the database schema
func initSchema(pool *pgxpool.Pool) error {
	ctx := context.Background()

	// -------------------------------
	// CATALOG PAGES + ITEMS
	// -------------------------------
	catalogSQL := `
		CREATE TABLE IF NOT EXISTS catalog_pages (
			id SERIAL PRIMARY KEY,
			source_id VARCHAR(255) NOT NULL,
			page INT NOT NULL,
			page_width INT NOT NULL DEFAULT 800,
			page_height INT NOT NULL DEFAULT 1200,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			UNIQUE (source_id, page)
		);

		CREATE TABLE IF NOT EXISTS catalog_items (
			id SERIAL PRIMARY KEY,
			page_id INT NOT NULL REFERENCES catalog_pages(id),
			name VARCHAR(500),
			brand VARCHAR(255),
			description TEXT,
			price_value DOUBLE PRECISION NULL,
			price_currency VARCHAR(10) NOT NULL DEFAULT 'MYR',
			size_value TEXT NULL,
			size_unit VARCHAR(50),
			tags_json TEXT,
			section VARCHAR(255),
			additional_context TEXT,
			raw_text TEXT,
			confidence DOUBLE PRECISION NOT NULL DEFAULT 0,
			status VARCHAR(20) NOT NULL DEFAULT 'detected',
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		);

		CREATE INDEX IF NOT EXISTS idx_catalog_items_page ON catalog_items(page_id);
	`
	if _, err := pool.Exec(ctx, catalogSQL); err != nil {
		return err
	}

	// -------------------------------
	// CHAT SESSIONS + MESSAGES
	// -------------------------------
	chatSQL := `
		CREATE TABLE IF NOT EXISTS chat_sessions (
			id VARCHAR(255) PRIMARY KEY,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		);

		CREATE TABLE IF NOT EXISTS chat_messages (
			id SERIAL PRIMARY KEY,
			session_id VARCHAR(255) NOT NULL REFERENCES chat_sessions(id),
			role VARCHAR(20) NOT NULL,
			content TEXT NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		);

		CREATE INDEX IF NOT EXISTS idx_chat_messages_session ON chat_messages(session_id);
	`
	if _, err := pool.Exec(ctx, chatSQL); err != nil {
		return err
	}

	// -------------------------------
	// MENU CONTEXT
	// -------------------------------
	contextSQL := `
		CREATE TABLE IF NOT EXISTS session_contexts (
			session_id VARCHAR(255) PRIMARY KEY,
			context_json TEXT NOT NULL,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		);

		CREATE TABLE IF NOT EXISTS menu_context_slot (
			id INT PRIMARY KEY,
			context_json TEXT NOT NULL,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		);
	`
	if _, err := pool.Exec(ctx, contextSQL); err != nil {
		return err
	}

	log.Println("✅ Schema initialized successfully")
	return nil
}
