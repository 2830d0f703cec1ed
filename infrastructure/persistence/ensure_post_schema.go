package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

const createSocialPostsPG = `CREATE TABLE IF NOT EXISTS social_posts (
	id              TEXT PRIMARY KEY,
	user_id         TEXT NOT NULL,
	content         TEXT NOT NULL,
	platforms       TEXT[] NOT NULL,
	media_urls      TEXT[] NOT NULL DEFAULT '{}',
	scheduled_at    TIMESTAMPTZ NULL,
	status          TEXT NOT NULL,
	results         JSONB NOT NULL DEFAULT '{}'::jsonb,
	idempotency_key TEXT NULL,
	published_at    TIMESTAMPTZ NULL,
	created_at      TIMESTAMPTZ NOT NULL,
	updated_at      TIMESTAMPTZ NOT NULL,
	UNIQUE (user_id, idempotency_key)
)`

// EnsurePostSchema creates the posts table and adds columns introduced after
// the first release. Safe to call at startup.
func EnsurePostSchema(db *sql.DB) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := db.ExecContext(ctx, createSocialPostsPG); err != nil {
		return fmt.Errorf("create social_posts: %w", err)
	}

	checks := []struct {
		table  string
		column string
		ddl    string
	}{
		{"social_posts", "analytics", "ALTER TABLE social_posts ADD COLUMN analytics JSONB NULL"},
	}
	for _, c := range checks {
		exists, err := columnExists(ctx, db, c.table, c.column)
		if err != nil {
			return err
		}
		if !exists {
			if _, err := db.ExecContext(ctx, c.ddl); err != nil {
				return fmt.Errorf("adding column %s.%s failed: %w", c.table, c.column, err)
			}
		}
	}

	indexes := []string{
		`CREATE INDEX IF NOT EXISTS idx_social_posts_due ON social_posts (scheduled_at) WHERE status = 'scheduled'`,
		`CREATE INDEX IF NOT EXISTS idx_social_posts_published ON social_posts (published_at) WHERE status = 'published'`,
	}
	for _, ddl := range indexes {
		if _, err := db.ExecContext(ctx, ddl); err != nil {
			return fmt.Errorf("create index: %w", err)
		}
	}
	return nil
}

func columnExists(ctx context.Context, db *sql.DB, table, column string) (bool, error) {
	row := db.QueryRowContext(ctx, `SELECT 1 FROM information_schema.columns WHERE table_name=$1 AND column_name=$2`, table, column)
	var one int
	if err := row.Scan(&one); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
