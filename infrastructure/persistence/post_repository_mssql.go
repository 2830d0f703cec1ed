package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"crosspost/domain/model"
	"crosspost/domain/repository"
)

const postColumnsMSSQL = `id, user_id, content, platforms, media_urls, scheduled_at, status, results, analytics, idempotency_key, published_at, created_at, updated_at`

// PostRepositoryMSSQL implements IPost for SQL Server/Azure SQL. Arrays and
// results are stored as JSON text in NVARCHAR(MAX) columns.
type PostRepositoryMSSQL struct {
	db  *sql.DB
	now func() time.Time
}

func NewPostRepositoryMSSQL(db *sql.DB) *PostRepositoryMSSQL {
	return &PostRepositoryMSSQL{db: db, now: func() time.Time { return time.Now().UTC() }}
}

func scanPostMSSQL(row rowScanner) (*model.SocialPost, error) {
	p := &model.SocialPost{}
	var (
		scheduledAt, publishedAt      sql.NullTime
		platforms, mediaURLs, results string
		analytics, idem               sql.NullString
		status                        string
	)
	if err := row.Scan(&p.ID, &p.UserID, &p.Content, &platforms, &mediaURLs, &scheduledAt, &status,
		&results, &analytics, &idem, &publishedAt, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	p.Status = model.PostStatus(status)
	p.IdempotencyKey = idem.String
	if err := json.Unmarshal([]byte(platforms), &p.Platforms); err != nil {
		return nil, fmt.Errorf("decode platforms of post %s: %w", p.ID, err)
	}
	if mediaURLs != "" {
		if err := json.Unmarshal([]byte(mediaURLs), &p.MediaURLs); err != nil {
			return nil, fmt.Errorf("decode media of post %s: %w", p.ID, err)
		}
	}
	if scheduledAt.Valid {
		t := scheduledAt.Time.UTC()
		p.ScheduledAt = &t
	}
	if publishedAt.Valid {
		t := publishedAt.Time.UTC()
		p.PublishedAt = &t
	}
	if err := decodeResults([]byte(results), p); err != nil {
		return nil, err
	}
	if analytics.Valid && analytics.String != "" {
		var e model.Engagement
		if err := json.Unmarshal([]byte(analytics.String), &e); err != nil {
			return nil, fmt.Errorf("decode analytics of post %s: %w", p.ID, err)
		}
		p.Analytics = &e
	}
	return p, nil
}

func jsonText(v interface{}) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (r *PostRepositoryMSSQL) Create(ctx context.Context, post *model.SocialPost) (*model.SocialPost, bool, error) {
	platforms, err := jsonText(post.Platforms)
	if err != nil {
		return nil, false, err
	}
	media := post.MediaURLs
	if media == nil {
		media = []string{}
	}
	mediaURLs, err := jsonText(media)
	if err != nil {
		return nil, false, err
	}
	results, err := jsonText(post.Results)
	if err != nil {
		return nil, false, err
	}
	var analytics sql.NullString
	if post.Analytics != nil {
		s, err := jsonText(post.Analytics)
		if err != nil {
			return nil, false, err
		}
		analytics = sql.NullString{String: s, Valid: true}
	}

	// HOLDLOCK keeps two concurrent creates with one key from both inserting.
	q := `MERGE dbo.[social_posts] WITH (HOLDLOCK) AS target
USING (VALUES (@p2, @p10)) AS src(user_id, idempotency_key)
ON src.idempotency_key IS NOT NULL AND target.user_id = src.user_id AND target.idempotency_key = src.idempotency_key
WHEN NOT MATCHED THEN
  INSERT (` + postColumnsMSSQL + `)
  VALUES (@p1, @p2, @p3, @p4, @p5, @p6, @p7, @p8, @p9, @p10, @p11, @p12, @p13)
OUTPUT inserted.id;`
	var id string
	err = r.db.QueryRowContext(ctx, q, post.ID, post.UserID, post.Content, platforms, mediaURLs,
		nullTime(post.ScheduledAt), string(post.Status), results, analytics, nullString(post.IdempotencyKey),
		nullTime(post.PublishedAt), post.CreatedAt, post.UpdatedAt).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		existing, findErr := r.FindByIdempotencyKey(ctx, post.UserID, post.IdempotencyKey)
		if findErr != nil {
			return nil, false, findErr
		}
		return existing, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	stored, err := r.Get(ctx, id)
	if err != nil {
		return nil, false, err
	}
	return stored, true, nil
}

func (r *PostRepositoryMSSQL) Get(ctx context.Context, id string) (*model.SocialPost, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+postColumnsMSSQL+` FROM dbo.[social_posts] WHERE id=@p1`, id)
	p, err := scanPostMSSQL(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrPostNotFound
	}
	return p, err
}

func (r *PostRepositoryMSSQL) FindByIdempotencyKey(ctx context.Context, userID, key string) (*model.SocialPost, error) {
	row := r.db.QueryRowContext(ctx, `SELECT TOP (1) `+postColumnsMSSQL+` FROM dbo.[social_posts] WHERE user_id=@p1 AND idempotency_key=@p2`, userID, key)
	p, err := scanPostMSSQL(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrPostNotFound
	}
	return p, err
}

func (r *PostRepositoryMSSQL) UpdateContent(ctx context.Context, post *model.SocialPost) (*model.SocialPost, error) {
	platforms, err := jsonText(post.Platforms)
	if err != nil {
		return nil, err
	}
	media := post.MediaURLs
	if media == nil {
		media = []string{}
	}
	mediaURLs, err := jsonText(media)
	if err != nil {
		return nil, err
	}
	results, err := jsonText(post.Results)
	if err != nil {
		return nil, err
	}
	row := r.db.QueryRowContext(ctx, `UPDATE dbo.[social_posts]
SET content=@p2, platforms=@p3, media_urls=@p4, scheduled_at=@p5, status=@p6, results=@p7, updated_at=@p8
OUTPUT `+insertedColumns()+`
WHERE id=@p1 AND status IN ('draft','scheduled')`,
		post.ID, post.Content, platforms, mediaURLs, nullTime(post.ScheduledAt), string(post.Status), results, r.now())
	p, err := scanPostMSSQL(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, r.missingOrConflict(ctx, post.ID)
	}
	return p, err
}

// TransitionStatus locks the row, checks the status and merges the patch in
// one transaction. SQL Server has no JSON merge operator.
func (r *PostRepositoryMSSQL) TransitionStatus(ctx context.Context, id string, from []model.PostStatus, to model.PostStatus, patch map[string]model.PlatformResult) (out *model.SocialPost, err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	row := tx.QueryRowContext(ctx, `SELECT `+postColumnsMSSQL+` FROM dbo.[social_posts] WITH (UPDLOCK, ROWLOCK) WHERE id=@p1`, id)
	current, err := scanPostMSSQL(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrPostNotFound
	}
	if err != nil {
		return nil, err
	}
	if !statusIn(current.Status, from) {
		err = fmt.Errorf("post %s is %s: %w", id, current.Status, repository.ErrStatusConflict)
		return nil, err
	}
	for platform, res := range patch {
		current.Results[platform] = res
	}
	results, err := jsonText(current.Results)
	if err != nil {
		return nil, err
	}
	now := r.now()
	if _, err = tx.ExecContext(ctx, `UPDATE dbo.[social_posts] SET status=@p2, results=@p3, updated_at=@p4 WHERE id=@p1`,
		id, string(to), results, now); err != nil {
		return nil, err
	}
	if err = tx.Commit(); err != nil {
		return nil, err
	}
	current.Status = to
	current.UpdatedAt = now
	return current, nil
}

func (r *PostRepositoryMSSQL) RecordResult(ctx context.Context, id, platform string, result model.PlatformResult) error {
	raw, err := jsonText(result)
	if err != nil {
		return err
	}
	path := fmt.Sprintf(`$."%s"`, platform)
	res, err := r.db.ExecContext(ctx, `UPDATE dbo.[social_posts]
SET results = JSON_MODIFY(results, @p2, JSON_QUERY(@p3)), updated_at=@p4
WHERE id=@p1`, id, path, raw, r.now())
	if err != nil {
		return err
	}
	return expectOneRow(res)
}

func (r *PostRepositoryMSSQL) FinalizeStatus(ctx context.Context, id string, status model.PostStatus, publishedAt *time.Time) (*model.SocialPost, error) {
	row := r.db.QueryRowContext(ctx, `UPDATE dbo.[social_posts]
SET status=@p2, published_at=COALESCE(@p3, published_at), updated_at=@p4
OUTPUT `+insertedColumns()+`
WHERE id=@p1 AND status='publishing'`, id, string(status), nullTime(publishedAt), r.now())
	p, err := scanPostMSSQL(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, r.missingOrConflict(ctx, id)
	}
	return p, err
}

func (r *PostRepositoryMSSQL) ListPublished(ctx context.Context, userID string, from, to time.Time) ([]*model.SocialPost, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+postColumnsMSSQL+` FROM dbo.[social_posts]
WHERE status='published' AND published_at BETWEEN @p1 AND @p2 AND (@p3 = '' OR user_id = @p3)
ORDER BY published_at DESC`, from, to, userID)
	if err != nil {
		return nil, err
	}
	return collectPosts(rows, scanPostMSSQL)
}

func (r *PostRepositoryMSSQL) ListByStatus(ctx context.Context, userID string, status model.PostStatus, limit int) ([]*model.SocialPost, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT TOP (@p3) `+postColumnsMSSQL+` FROM dbo.[social_posts]
WHERE (@p1 = '' OR user_id = @p1) AND ((@p2 = '' AND status <> 'deleted') OR status = @p2)
ORDER BY created_at DESC`, userID, string(status), topLimit(limit))
	if err != nil {
		return nil, err
	}
	return collectPosts(rows, scanPostMSSQL)
}

func (r *PostRepositoryMSSQL) ListDueScheduled(ctx context.Context, now time.Time, limit int) ([]*model.SocialPost, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT TOP (@p2) `+postColumnsMSSQL+` FROM dbo.[social_posts]
WHERE status='scheduled' AND scheduled_at <= @p1
ORDER BY scheduled_at ASC`, now, topLimit(limit))
	if err != nil {
		return nil, err
	}
	return collectPosts(rows, scanPostMSSQL)
}

func (r *PostRepositoryMSSQL) UpdateEngagement(ctx context.Context, id string, engagement model.Engagement) error {
	raw, err := jsonText(engagement)
	if err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx, `UPDATE dbo.[social_posts] SET analytics=@p2, updated_at=@p3 WHERE id=@p1`, id, raw, r.now())
	if err != nil {
		return err
	}
	return expectOneRow(res)
}

func (r *PostRepositoryMSSQL) missingOrConflict(ctx context.Context, id string) error {
	var status string
	err := r.db.QueryRowContext(ctx, `SELECT status FROM dbo.[social_posts] WHERE id=@p1`, id).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return repository.ErrPostNotFound
	}
	if err != nil {
		return err
	}
	return fmt.Errorf("post %s is %s: %w", id, status, repository.ErrStatusConflict)
}

func insertedColumns() string {
	return `inserted.id, inserted.user_id, inserted.content, inserted.platforms, inserted.media_urls, inserted.scheduled_at,
  inserted.status, inserted.results, inserted.analytics, inserted.idempotency_key, inserted.published_at, inserted.created_at, inserted.updated_at`
}

// topLimit turns "no limit" into the largest TOP value SQL Server accepts.
func topLimit(limit int) int64 {
	if limit <= 0 {
		return 2147483647
	}
	return int64(limit)
}

var _ repository.IPost = (*PostRepositoryMSSQL)(nil)
