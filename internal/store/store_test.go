package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/claimcheck/internal/model"
)

func openTemp(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "nested", "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func sampleReport(id string, created time.Time) *model.Report {
	claim := model.Claim{ID: "c1", Text: "Paris is the capital of France."}
	results := []model.ClaimResult{{
		Claim:   claim,
		Verdict: model.Verdict{ClaimID: "c1", Kind: model.VerdictSupported, Confidence: 0.9},
	}}
	return &model.Report{
		ID:        id,
		CreatedAt: created,
		Source:    "inline",
		Claims:    []model.Claim{claim},
		Results:   results,
		Summary:   model.Summarize(results),
		Score:     model.Score{Index: 100, Confidence: "low"},
	}
}

func TestSaveAndGet(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()
	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, s.Save(ctx, sampleReport("r1", created)))

	got, err := s.Get(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, "r1", got.ID)
	assert.True(t, got.CreatedAt.Equal(created))
	require.Len(t, got.Results, 1)
	assert.Equal(t, model.VerdictSupported, got.Results[0].Verdict.Kind)
}

func TestGet_NotFound(t *testing.T) {
	s := openTemp(t)
	_, err := s.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestList_NewestFirst(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, s.Save(ctx, sampleReport("old", base)))
	require.NoError(t, s.Save(ctx, sampleReport("new", base.Add(time.Hour))))
	require.NoError(t, s.Save(ctx, sampleReport("mid", base.Add(time.Minute))))

	all, err := s.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "new", all[0].ID)
	assert.Equal(t, "mid", all[1].ID)
	assert.Equal(t, "old", all[2].ID)
	assert.Equal(t, 1, all[0].Counts.Supported)
	assert.Equal(t, 100, all[0].Index)

	top, err := s.List(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, top, 2)
}

func TestSave_ReplacesSameID(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()
	r := sampleReport("r1", time.Now().UTC())
	require.NoError(t, s.Save(ctx, r))

	r.Source = "https://example.com/article"
	require.NoError(t, s.Save(ctx, r))

	all, err := s.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "https://example.com/article", all[0].Source)
}

func TestSave_RejectsMissingID(t *testing.T) {
	s := openTemp(t)
	assert.Error(t, s.Save(context.Background(), &model.Report{}))
}

func TestDelete(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()
	require.NoError(t, s.Save(ctx, sampleReport("r1", time.Now().UTC())))

	require.NoError(t, s.Delete(ctx, "r1"))
	assert.ErrorIs(t, s.Delete(ctx, "r1"), ErrNotFound)
}
