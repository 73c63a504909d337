package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zgr-ai/sow-cli/internal/model"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func TestSQLite_Upsert_Idempotent(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	id1, err := st.Upsert(ctx, UpsertParams{
		NoticeID:        "N-1000",
		TemplateVersion: "v1.0",
		Payload:         testPayload(300),
		SourceHash:      "hash-a",
	})
	require.NoError(t, err)
	require.NotEmpty(t, id1)

	first, err := st.GetActive(ctx, "N-1000")
	require.NoError(t, err)
	require.NotNil(t, first)

	// Re-analysis of the same notice replaces the payload but keeps the
	// row identity and creation time.
	id2, err := st.Upsert(ctx, UpsertParams{
		NoticeID:        "N-1000",
		TemplateVersion: "v1.0",
		Payload:         testPayload(450),
		SourceHash:      "hash-b",
	})
	require.NoError(t, err)
	assert.Equal(t, id1, id2)

	second, err := st.GetActive(ctx, "N-1000")
	require.NoError(t, err)
	require.NotNil(t, second)
	assert.Equal(t, first.AnalysisID, second.AnalysisID)
	assert.Equal(t, first.CreatedAt, second.CreatedAt)
	assert.Equal(t, "hash-b", second.SourceHash)
	assert.Equal(t, 450, *second.Payload.FunctionSpace.GeneralSession.Capacity)
}

func TestSQLite_GetActive_Missing(t *testing.T) {
	st := newTestSQLiteStore(t)

	rec, err := st.GetActive(context.Background(), "N-nope")
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestSQLite_GetActive_MostRecentWins(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	_, err := st.Upsert(ctx, UpsertParams{
		NoticeID: "N-2000", TemplateVersion: "v1.0", Payload: testPayload(100),
	})
	require.NoError(t, err)
	_, err = st.Upsert(ctx, UpsertParams{
		NoticeID: "N-2000", TemplateVersion: "v2.0", Payload: testPayload(200),
	})
	require.NoError(t, err)

	// Push v1.0 an hour into the past so recency is unambiguous.
	_, err = st.db.Exec(
		`UPDATE sow_analysis SET updated_at = ? WHERE notice_id = ? AND template_version = ?`,
		time.Now().UTC().Add(-time.Hour), "N-2000", "v1.0",
	)
	require.NoError(t, err)

	rec, err := st.GetActive(ctx, "N-2000")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "v2.0", rec.TemplateVersion)
	assert.Equal(t, 200, *rec.Payload.FunctionSpace.GeneralSession.Capacity)
}

func TestSQLite_Deactivate_ExcludesFromActive(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	_, err := st.Upsert(ctx, UpsertParams{
		NoticeID: "N-3000", TemplateVersion: "v1.0", Payload: testPayload(100),
	})
	require.NoError(t, err)

	require.NoError(t, st.Deactivate(ctx, "N-3000", "v1.0"))

	rec, err := st.GetActive(ctx, "N-3000")
	require.NoError(t, err)
	assert.Nil(t, rec)

	// Row still exists for audit, just inactive.
	all, err := st.List(ctx, ListFilter{NoticeID: "N-3000"})
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.False(t, all[0].IsActive)
}

func TestSQLite_Deactivate_NotFound(t *testing.T) {
	st := newTestSQLiteStore(t)

	err := st.Deactivate(context.Background(), "N-gone", "v1.0")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestSQLite_Search_ByCapacityAndBreakouts(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	upsert := func(noticeID string, capacity, breakouts int) {
		t.Helper()
		payload := testPayload(capacity)
		payload.FunctionSpace.BreakoutRooms = &model.BreakoutRooms{Count: intPtr(breakouts)}
		_, err := st.Upsert(ctx, UpsertParams{
			NoticeID: noticeID, TemplateVersion: "v1.0", Payload: payload,
		})
		require.NoError(t, err)
	}

	upsert("N-small", 150, 2)
	upsert("N-mid", 400, 6)
	upsert("N-big", 800, 10)

	recs, err := st.Search(ctx, SearchFilter{MinGeneralSessionCapacity: 300})
	require.NoError(t, err)
	require.Len(t, recs, 2)

	recs, err = st.Search(ctx, SearchFilter{MinGeneralSessionCapacity: 300, MinBreakoutRooms: 8})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "N-big", recs[0].NoticeID)
}

func TestSQLite_Search_SkipsRecordsWithoutField(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	// A payload with no function_space at all must not match a capacity
	// predicate, and must not be treated as capacity zero either.
	_, err := st.Upsert(ctx, UpsertParams{
		NoticeID: "N-bare", TemplateVersion: "v1.0",
		Payload: &model.SOWPayload{SchemaVersion: model.SchemaVersion},
	})
	require.NoError(t, err)

	recs, err := st.Search(ctx, SearchFilter{MinGeneralSessionCapacity: 1})
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestSQLite_Search_PeriodStartPrefix(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	payload := testPayload(100)
	payload.PeriodOfPerformance = &model.DateRange{Start: "2026-03-10", End: "2026-03-14"}
	_, err := st.Upsert(ctx, UpsertParams{
		NoticeID: "N-march", TemplateVersion: "v1.0", Payload: payload,
	})
	require.NoError(t, err)

	recs, err := st.Search(ctx, SearchFilter{PeriodStartPrefix: "2026-03"})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "N-march", recs[0].NoticeID)

	recs, err = st.Search(ctx, SearchFilter{PeriodStartPrefix: "2026-04"})
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestSQLite_Search_InvalidOrderBy(t *testing.T) {
	st := newTestSQLiteStore(t)

	_, err := st.Search(context.Background(), SearchFilter{OrderBy: "nonsense"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid order_by")
}

func TestSQLite_List_FiltersAndPagination(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	for _, n := range []string{"N-a", "N-b", "N-c"} {
		_, err := st.Upsert(ctx, UpsertParams{
			NoticeID: n, TemplateVersion: "v1.0", Payload: testPayload(100),
		})
		require.NoError(t, err)
	}

	all, err := st.List(ctx, ListFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	one, err := st.List(ctx, ListFilter{NoticeID: "N-b"})
	require.NoError(t, err)
	require.Len(t, one, 1)
	assert.Equal(t, "N-b", one[0].NoticeID)

	page, err := st.List(ctx, ListFilter{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, page, 2)

	rest, err := st.List(ctx, ListFilter{Limit: 2, Offset: 2})
	require.NoError(t, err)
	assert.Len(t, rest, 1)
}

func TestSQLite_Upsert_PreservesSourceDocs(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	docs := []model.SourceDocRef{
		{Filename: "sow.pdf", ContentHash: "h1", PageRefs: []int{1, 2}},
		{Filename: "pricing.docx", ContentHash: "h2"},
	}
	_, err := st.Upsert(ctx, UpsertParams{
		NoticeID: "N-docs", TemplateVersion: "v1.0",
		Payload: testPayload(100), SourceDocs: docs, SourceHash: "combined",
	})
	require.NoError(t, err)

	rec, err := st.GetActive(ctx, "N-docs")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, docs, rec.SourceDocs)
	assert.Equal(t, "combined", rec.SourceHash)
}
