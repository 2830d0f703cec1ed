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

	"github.com/lib/pq"
)

const postColumns = `id, user_id, content, platforms, media_urls, scheduled_at, status, results, analytics, idempotency_key, published_at, created_at, updated_at`

// PostRepository stores posts in PostgreSQL. Per-platform results live in a
// JSONB column so a single platform can be patched atomically.
type PostRepository struct {
	db  *sql.DB
	now func() time.Time
}

func NewPostRepository(db *sql.DB) *PostRepository {
	return &PostRepository{db: db, now: func() time.Time { return time.Now().UTC() }}
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanPost(row rowScanner) (*model.SocialPost, error) {
	p := &model.SocialPost{}
	var (
		scheduledAt, publishedAt sql.NullTime
		results, analytics       []byte
		idem                     sql.NullString
		status                   string
	)
	if err := row.Scan(&p.ID, &p.UserID, &p.Content, pq.Array(&p.Platforms), pq.Array(&p.MediaURLs),
		&scheduledAt, &status, &results, &analytics, &idem, &publishedAt, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	p.Status = model.PostStatus(status)
	p.IdempotencyKey = idem.String
	if scheduledAt.Valid {
		t := scheduledAt.Time.UTC()
		p.ScheduledAt = &t
	}
	if publishedAt.Valid {
		t := publishedAt.Time.UTC()
		p.PublishedAt = &t
	}
	if err := decodeResults(results, p); err != nil {
		return nil, err
	}
	if len(analytics) > 0 {
		var e model.Engagement
		if err := json.Unmarshal(analytics, &e); err != nil {
			return nil, fmt.Errorf("decode analytics of post %s: %w", p.ID, err)
		}
		p.Analytics = &e
	}
	return p, nil
}

func decodeResults(raw []byte, p *model.SocialPost) error {
	p.Results = make(map[string]model.PlatformResult, len(p.Platforms))
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, &p.Results); err != nil {
		return fmt.Errorf("decode results of post %s: %w", p.ID, err)
	}
	return nil
}

func encodeAnalytics(e *model.Engagement) (interface{}, error) {
	if e == nil {
		return nil, nil
	}
	b, err := json.Marshal(e)
	if err != nil {
		return nil, err
	}
	return b, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func statusStrings(in []model.PostStatus) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = string(s)
	}
	return out
}

func (r *PostRepository) Create(ctx context.Context, post *model.SocialPost) (*model.SocialPost, bool, error) {
	results, err := json.Marshal(post.Results)
	if err != nil {
		return nil, false, err
	}
	analytics, err := encodeAnalytics(post.Analytics)
	if err != nil {
		return nil, false, err
	}
	mediaURLs := post.MediaURLs
	if mediaURLs == nil {
		mediaURLs = []string{}
	}
	q := `INSERT INTO social_posts (` + postColumns + `)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
		ON CONFLICT (user_id, idempotency_key) DO NOTHING
		RETURNING ` + postColumns
	row := r.db.QueryRowContext(ctx, q, post.ID, post.UserID, post.Content, pq.Array(post.Platforms), pq.Array(mediaURLs),
		nullTime(post.ScheduledAt), string(post.Status), results, analytics, nullString(post.IdempotencyKey),
		nullTime(post.PublishedAt), post.CreatedAt, post.UpdatedAt)
	stored, err := scanPost(row)
	if errors.Is(err, sql.ErrNoRows) {
		// lost the race for this idempotency key
		existing, findErr := r.FindByIdempotencyKey(ctx, post.UserID, post.IdempotencyKey)
		if findErr != nil {
			return nil, false, findErr
		}
		return existing, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return stored, true, nil
}

func (r *PostRepository) Get(ctx context.Context, id string) (*model.SocialPost, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+postColumns+` FROM social_posts WHERE id=$1`, id)
	p, err := scanPost(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrPostNotFound
	}
	return p, err
}

func (r *PostRepository) FindByIdempotencyKey(ctx context.Context, userID, key string) (*model.SocialPost, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+postColumns+` FROM social_posts WHERE user_id=$1 AND idempotency_key=$2`, userID, key)
	p, err := scanPost(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrPostNotFound
	}
	return p, err
}

func (r *PostRepository) UpdateContent(ctx context.Context, post *model.SocialPost) (*model.SocialPost, error) {
	results, err := json.Marshal(post.Results)
	if err != nil {
		return nil, err
	}
	mediaURLs := post.MediaURLs
	if mediaURLs == nil {
		mediaURLs = []string{}
	}
	row := r.db.QueryRowContext(ctx, `UPDATE social_posts
		SET content=$2, platforms=$3, media_urls=$4, scheduled_at=$5, status=$6, results=$7, updated_at=$8
		WHERE id=$1 AND status IN ('draft','scheduled')
		RETURNING `+postColumns,
		post.ID, post.Content, pq.Array(post.Platforms), pq.Array(mediaURLs), nullTime(post.ScheduledAt),
		string(post.Status), results, r.now())
	p, err := scanPost(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, r.missingOrConflict(ctx, post.ID)
	}
	return p, err
}

// TransitionStatus is a compare-and-set on status; patch entries replace
// whole per-platform results.
func (r *PostRepository) TransitionStatus(ctx context.Context, id string, from []model.PostStatus, to model.PostStatus, patch map[string]model.PlatformResult) (*model.SocialPost, error) {
	if patch == nil {
		patch = map[string]model.PlatformResult{}
	}
	raw, err := json.Marshal(patch)
	if err != nil {
		return nil, err
	}
	row := r.db.QueryRowContext(ctx, `UPDATE social_posts
		SET status=$2, results = results || $3::jsonb, updated_at=$4
		WHERE id=$1 AND status = ANY($5)
		RETURNING `+postColumns,
		id, string(to), raw, r.now(), pq.Array(statusStrings(from)))
	p, err := scanPost(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, r.missingOrConflict(ctx, id)
	}
	return p, err
}

func (r *PostRepository) RecordResult(ctx context.Context, id, platform string, result model.PlatformResult) error {
	raw, err := json.Marshal(result)
	if err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx, `UPDATE social_posts
		SET results = jsonb_set(results, ARRAY[$2::text], $3::jsonb, true), updated_at=$4
		WHERE id=$1`, id, platform, raw, r.now())
	if err != nil {
		return err
	}
	return expectOneRow(res)
}

func (r *PostRepository) FinalizeStatus(ctx context.Context, id string, status model.PostStatus, publishedAt *time.Time) (*model.SocialPost, error) {
	row := r.db.QueryRowContext(ctx, `UPDATE social_posts
		SET status=$2, published_at=COALESCE($3, published_at), updated_at=$4
		WHERE id=$1 AND status='publishing'
		RETURNING `+postColumns,
		id, string(status), nullTime(publishedAt), r.now())
	p, err := scanPost(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, r.missingOrConflict(ctx, id)
	}
	return p, err
}

func (r *PostRepository) ListPublished(ctx context.Context, userID string, from, to time.Time) ([]*model.SocialPost, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+postColumns+` FROM social_posts
		WHERE status='published' AND published_at BETWEEN $1 AND $2 AND ($3 = '' OR user_id = $3)
		ORDER BY published_at DESC`, from, to, userID)
	if err != nil {
		return nil, err
	}
	return collectPosts(rows, scanPost)
}

func (r *PostRepository) ListByStatus(ctx context.Context, userID string, status model.PostStatus, limit int) ([]*model.SocialPost, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+postColumns+` FROM social_posts
		WHERE ($1 = '' OR user_id = $1) AND (($2 = '' AND status <> 'deleted') OR status = $2)
		ORDER BY created_at DESC LIMIT $3`, userID, string(status), nullLimit(limit))
	if err != nil {
		return nil, err
	}
	return collectPosts(rows, scanPost)
}

func (r *PostRepository) ListDueScheduled(ctx context.Context, now time.Time, limit int) ([]*model.SocialPost, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+postColumns+` FROM social_posts
		WHERE status='scheduled' AND scheduled_at <= $1
		ORDER BY scheduled_at ASC LIMIT $2`, now, nullLimit(limit))
	if err != nil {
		return nil, err
	}
	return collectPosts(rows, scanPost)
}

func (r *PostRepository) UpdateEngagement(ctx context.Context, id string, engagement model.Engagement) error {
	raw, err := json.Marshal(engagement)
	if err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx, `UPDATE social_posts SET analytics=$2, updated_at=$3 WHERE id=$1`, id, raw, r.now())
	if err != nil {
		return err
	}
	return expectOneRow(res)
}

func (r *PostRepository) missingOrConflict(ctx context.Context, id string) error {
	var status string
	err := r.db.QueryRowContext(ctx, `SELECT status FROM social_posts WHERE id=$1`, id).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return repository.ErrPostNotFound
	}
	if err != nil {
		return err
	}
	return fmt.Errorf("post %s is %s: %w", id, status, repository.ErrStatusConflict)
}

func collectPosts(rows *sql.Rows, scan func(rowScanner) (*model.SocialPost, error)) ([]*model.SocialPost, error) {
	defer rows.Close()
	list := make([]*model.SocialPost, 0)
	for rows.Next() {
		p, err := scan(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, p)
	}
	return list, rows.Err()
}

func expectOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return repository.ErrPostNotFound
	}
	return nil
}

// nullLimit maps a non-positive limit to SQL NULL, which means no limit.
func nullLimit(limit int) sql.NullInt64 {
	return sql.NullInt64{Int64: int64(limit), Valid: limit > 0}
}

var _ repository.IPost = (*PostRepository)(nil)
