package store

import (
	"context"

	"github.com/zgr-ai/sow-cli/internal/model"
)

// UpsertParams carries everything needed to persist one analysis.
// (NoticeID, TemplateVersion) is the idempotency key.
type UpsertParams struct {
	NoticeID        string
	TemplateVersion string
	Payload         *model.SOWPayload
	SourceDocs      []model.SourceDocRef
	SourceHash      string
}

// SearchFilter specifies computed-field predicates over stored payloads.
// Zero values mean "no constraint".
type SearchFilter struct {
	MinGeneralSessionCapacity int    `json:"min_general_session_capacity,omitempty"`
	MinBreakoutRooms          int    `json:"min_breakout_rooms,omitempty"`
	MinRoomsPerNight          int    `json:"min_rooms_per_night,omitempty"`
	SetupDeadlineBefore       string `json:"setup_deadline_before,omitempty"` // ISO date, inclusive
	PeriodStartPrefix         string `json:"period_start_prefix,omitempty"`   // e.g. "2026-03"
	ActiveOnly                bool   `json:"active_only,omitempty"`
	Limit                     int    `json:"limit,omitempty"`
	Offset                    int    `json:"offset,omitempty"`
	OrderBy                   string `json:"order_by,omitempty"` // updated_at | created_at | notice_id
}

// ListFilter specifies criteria for listing analyses by key columns.
type ListFilter struct {
	NoticeID        string `json:"notice_id,omitempty"`
	TemplateVersion string `json:"template_version,omitempty"`
	ActiveOnly      bool   `json:"active_only,omitempty"`
	Limit           int    `json:"limit,omitempty"`
	Offset          int    `json:"offset,omitempty"`
}

// AnalysisStore defines the persistence interface for SOW analyses.
type AnalysisStore interface {
	// Upsert inserts or replaces the analysis for (notice_id,
	// template_version) and returns the row's analysis_id. On replace the
	// original analysis_id and created_at are preserved and only payload,
	// source provenance, is_active and updated_at change.
	Upsert(ctx context.Context, params UpsertParams) (string, error)

	// GetActive returns the most recently updated active analysis for the
	// notice, or (nil, nil) when none exists.
	GetActive(ctx context.Context, noticeID string) (*model.AnalysisRecord, error)

	Search(ctx context.Context, filter SearchFilter) ([]model.AnalysisRecord, error)
	List(ctx context.Context, filter ListFilter) ([]model.AnalysisRecord, error)

	// Deactivate retires one analysis version. Administrative only, the
	// pipeline never calls it.
	Deactivate(ctx context.Context, noticeID, templateVersion string) error

	// Lifecycle
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}
