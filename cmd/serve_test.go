package main

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zgr-ai/sow-cli/internal/store"
)

func TestSearchFilterFromQuery(t *testing.T) {
	r := httptest.NewRequest("GET",
		"/api/analyses?min_capacity=300&min_breakout_rooms=4&deadline_before=2026-06-01&period_start=2026-07&limit=25&order_by=capacity", nil)

	filter, err := searchFilterFromQuery(r)
	require.NoError(t, err)
	assert.Equal(t, store.SearchFilter{
		MinGeneralSessionCapacity: 300,
		MinBreakoutRooms:          4,
		SetupDeadlineBefore:       "2026-06-01",
		PeriodStartPrefix:         "2026-07",
		ActiveOnly:                true,
		Limit:                     25,
		OrderBy:                   "capacity",
	}, filter)
}

func TestSearchFilterFromQuery_Defaults(t *testing.T) {
	r := httptest.NewRequest("GET", "/api/analyses", nil)

	filter, err := searchFilterFromQuery(r)
	require.NoError(t, err)
	assert.True(t, filter.ActiveOnly)
	assert.Zero(t, filter.Limit)
}

func TestSearchFilterFromQuery_ActiveOnlyOptOut(t *testing.T) {
	r := httptest.NewRequest("GET", "/api/analyses?active_only=false", nil)

	filter, err := searchFilterFromQuery(r)
	require.NoError(t, err)
	assert.False(t, filter.ActiveOnly)
}

func TestSearchFilterFromQuery_RejectsBadInts(t *testing.T) {
	for _, query := range []string{"min_rooms=many", "limit=-1", "offset=1.5"} {
		r := httptest.NewRequest("GET", "/api/analyses?"+query, nil)
		_, err := searchFilterFromQuery(r)
		assert.Error(t, err, query)
	}
}
