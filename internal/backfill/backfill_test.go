package backfill

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/thematic/internal/model"
	"github.com/ppiankov/thematic/internal/store"
	"github.com/ppiankov/thematic/internal/testutil"
	"github.com/ppiankov/thematic/internal/worker"
)

var _ Store = (*store.DB)(nil)

// lengthEmbedder fails on texts containing "fail"
type lengthEmbedder struct{}

func (lengthEmbedder) Embed(_ context.Context, text, _ string) []float32 {
	if strings.Contains(text, "fail") {
		return nil
	}
	return []float32{float32(len(text)), 1}
}

func (lengthEmbedder) Model() string { return "len-v1" }

func seed(t *testing.T, db *store.DB, verbatims ...string) {
	t.Helper()
	for i, v := range verbatims {
		require.NoError(t, db.InsertEvidence(context.Background(), &model.Evidence{
			ID: fmt.Sprintf("e%d", i), AccountID: "acct-1", ProjectID: "proj-1", Verbatim: v,
		}))
	}
}

func TestRun_EmbedsMissingEvidence(t *testing.T) {
	db := testutil.TestStore(t)
	ctx := context.Background()
	seed(t, db, "checkout is slow", "please fail here", "search works", "exports time out")

	b := New(db, lengthEmbedder{}, worker.NewPool(2), nil)
	stats, err := b.Run(ctx, "proj-1", 0)
	require.NoError(t, err)
	assert.Equal(t, Stats{Pending: 4, Embedded: 3, Failed: 1}, stats)

	left, err := db.ListEvidenceMissingEmbeddings(ctx, "proj-1", 0)
	require.NoError(t, err)
	require.Len(t, left, 1)
	assert.Equal(t, "e1", left[0].ID)

	matches, err := db.SearchEvidence(ctx, []float32{16, 1}, model.Scope{AccountID: "acct-1", ProjectID: "proj-1"}, 0.99, 10)
	require.NoError(t, err)
	assert.NotEmpty(t, matches)

	stats, err = b.Run(ctx, "proj-1", 0)
	require.NoError(t, err)
	assert.Equal(t, Stats{Pending: 1, Failed: 1}, stats, "only the failed row is retried")
}

func TestRun_RespectsLimit(t *testing.T) {
	db := testutil.TestStore(t)
	seed(t, db, "a", "b", "c")

	stats, err := New(db, lengthEmbedder{}, nil, nil).Run(context.Background(), "proj-1", 2)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Embedded)
}

func TestRun_NothingPending(t *testing.T) {
	stats, err := New(testutil.TestStore(t), lengthEmbedder{}, nil, nil).Run(context.Background(), "proj-1", 0)
	require.NoError(t, err)
	assert.Zero(t, stats)
}

func TestRun_RequiresProject(t *testing.T) {
	_, err := New(testutil.TestStore(t), lengthEmbedder{}, nil, nil).Run(context.Background(), "", 0)
	assert.Error(t, err)
}
