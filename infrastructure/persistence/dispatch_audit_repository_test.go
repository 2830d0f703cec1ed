package persistence

import (
	"context"
	"testing"

	"crosspost/domain/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryDispatchAudit(t *testing.T) {
	audit := NewMemoryDispatchAudit()
	ctx := context.Background()
	require.NoError(t, audit.Append(ctx, model.DispatchOutcome{PostID: "p1", Platform: "x", Succeeded: true}))
	require.NoError(t, audit.Append(ctx, model.DispatchOutcome{PostID: "p2", Platform: "x"}))
	require.NoError(t, audit.Append(ctx, model.DispatchOutcome{PostID: "p1", Platform: "facebook", Reason: model.ReasonRateLimited}))

	list, err := audit.ListByPost(ctx, "p1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "x", list[0].Platform)
	assert.Equal(t, model.ReasonRateLimited, list[1].Reason)
	assert.NotEmpty(t, list[0].ID)

	none, err := audit.ListByPost(ctx, "p3")
	require.NoError(t, err)
	assert.Empty(t, none)
}
