package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

const createSocialPostsMSSQL = `IF OBJECT_ID('dbo.social_posts', 'U') IS NULL
BEGIN
  CREATE TABLE dbo.[social_posts] (
    id              NVARCHAR(64)  NOT NULL PRIMARY KEY,
    user_id         NVARCHAR(128) NOT NULL,
    content         NVARCHAR(MAX) NOT NULL,
    platforms       NVARCHAR(MAX) NOT NULL,
    media_urls      NVARCHAR(MAX) NOT NULL DEFAULT '[]',
    scheduled_at    DATETIME2     NULL,
    status          NVARCHAR(32)  NOT NULL,
    results         NVARCHAR(MAX) NOT NULL DEFAULT '{}',
    idempotency_key NVARCHAR(255) NULL,
    published_at    DATETIME2     NULL,
    created_at      DATETIME2     NOT NULL,
    updated_at      DATETIME2     NOT NULL
  );
  CREATE UNIQUE INDEX ux_social_posts_idem ON dbo.[social_posts] (user_id, idempotency_key) WHERE idempotency_key IS NOT NULL;
END`

// EnsurePostSchemaMSSQL is EnsurePostSchema for SQL Server/Azure SQL.
func EnsurePostSchemaMSSQL(db *sql.DB) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := db.ExecContext(ctx, createSocialPostsMSSQL); err != nil {
		return fmt.Errorf("create social_posts: %w", err)
	}

	addIfMissing := func(table, column, ddl string) error {
		q := fmt.Sprintf(`IF COL_LENGTH('%s', '%s') IS NULL BEGIN %s END`, table, column, ddl)
		if _, err := db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("ensure column %s.%s: %w", table, column, err)
		}
		return nil
	}
	return addIfMissing("dbo.social_posts", "analytics", "ALTER TABLE dbo.[social_posts] ADD analytics NVARCHAR(MAX) NULL")
}
