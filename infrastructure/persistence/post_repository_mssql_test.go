package persistence

import (
	"context"
	"testing"
	"time"

	"crosspost/domain/model"
	"crosspost/domain/repository"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPostRepoMSSQL(t *testing.T) (*PostRepositoryMSSQL, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	repo := NewPostRepositoryMSSQL(db)
	repo.now = func() time.Time { return created }
	return repo, mock
}

func draftRowMSSQL() *sqlmock.Rows {
	return sqlmock.NewRows(postRowColumns).AddRow("post-1", "user-1", "hello", `["x","facebook"]`, `[]`, nil, "draft",
		`{"x":{"state":"failed","reason":"network_error","attempts":1,"updated_at":"2026-03-01T09:00:00Z"}}`, nil, nil, nil, created, created)
}

func TestPostRepositoryMSSQL_TransitionStatus_MergesPatch(t *testing.T) {
	repo, mock := newPostRepoMSSQL(t)
	mock.ExpectBegin()
	mock.ExpectQuery(`FROM dbo.\[social_posts\] WITH \(UPDLOCK, ROWLOCK\) WHERE id=@p1`).WithArgs("post-1").
		WillReturnRows(draftRowMSSQL())
	mock.ExpectExec(`UPDATE dbo.\[social_posts\] SET status=@p2, results=@p3`).
		WithArgs("post-1", "publishing", sqlmock.AnyArg(), created).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	patch := map[string]model.PlatformResult{"facebook": {State: model.ResultPending}}
	p, err := repo.TransitionStatus(context.Background(), "post-1",
		[]model.PostStatus{model.PostStatusDraft, model.PostStatusScheduled}, model.PostStatusPublishing, patch)
	require.NoError(t, err)
	assert.Equal(t, model.PostStatusPublishing, p.Status)
	assert.Equal(t, model.ResultPending, p.Results["facebook"].State)
	assert.Equal(t, model.ReasonNetworkError, p.Results["x"].Reason)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostRepositoryMSSQL_TransitionStatus_ConflictRollsBack(t *testing.T) {
	repo, mock := newPostRepoMSSQL(t)
	mock.ExpectBegin()
	mock.ExpectQuery(`WITH \(UPDLOCK, ROWLOCK\)`).WillReturnRows(draftRowMSSQL())
	mock.ExpectRollback()

	_, err := repo.TransitionStatus(context.Background(), "post-1",
		[]model.PostStatus{model.PostStatusPublishing}, model.PostStatusPublished, nil)
	assert.ErrorIs(t, err, repository.ErrStatusConflict)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostRepositoryMSSQL_Create_NewPost(t *testing.T) {
	repo, mock := newPostRepoMSSQL(t)
	mock.ExpectQuery(`MERGE dbo.\[social_posts\] WITH \(HOLDLOCK\)`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("post-1"))
	mock.ExpectQuery(`FROM dbo.\[social_posts\] WHERE id=@p1`).WithArgs("post-1").
		WillReturnRows(draftRowMSSQL())

	p, isNew, err := repo.Create(context.Background(), &model.SocialPost{
		ID: "post-1", UserID: "user-1", Content: "hello", Platforms: []string{"x", "facebook"},
		Status: model.PostStatusDraft, CreatedAt: created, UpdatedAt: created,
	})
	require.NoError(t, err)
	assert.True(t, isNew)
	assert.Equal(t, []string{"x", "facebook"}, p.Platforms)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostRepositoryMSSQL_RecordResult_UsesQuotedPath(t *testing.T) {
	repo, mock := newPostRepoMSSQL(t)
	mock.ExpectExec(`JSON_MODIFY\(results, @p2, JSON_QUERY\(@p3\)\)`).
		WithArgs("post-1", `$."x"`, sqlmock.AnyArg(), created).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.RecordResult(context.Background(), "post-1", "x", model.PlatformResult{State: model.ResultSucceeded})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}
