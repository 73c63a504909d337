package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/zgr-ai/sow-cli/internal/model"
)

// SQLiteStore implements AnalysisStore using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS sow_analysis (
	analysis_id      TEXT PRIMARY KEY,
	notice_id        TEXT NOT NULL,
	template_version TEXT NOT NULL,
	sow_payload      TEXT NOT NULL,
	source_docs      TEXT NOT NULL DEFAULT '[]',
	source_hash      TEXT NOT NULL DEFAULT '',
	is_active        INTEGER NOT NULL DEFAULT 1,
	created_at       DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at       DATETIME NOT NULL DEFAULT (datetime('now')),
	UNIQUE (notice_id, template_version)
);

CREATE INDEX IF NOT EXISTS idx_sow_analysis_notice ON sow_analysis(notice_id);
CREATE INDEX IF NOT EXISTS idx_sow_analysis_updated ON sow_analysis(updated_at);
CREATE INDEX IF NOT EXISTS idx_sow_gs_capacity
	ON sow_analysis (CAST(json_extract(sow_payload, '$.function_space.general_session.capacity') AS INTEGER));
CREATE INDEX IF NOT EXISTS idx_sow_breakout_count
	ON sow_analysis (CAST(json_extract(sow_payload, '$.function_space.breakout_rooms.count') AS INTEGER));
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.db.PingContext(ctx), "sqlite: ping")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Upsert(ctx context.Context, params UpsertParams) (string, error) {
	if params.NoticeID == "" {
		return "", eris.New("sqlite: upsert: notice_id is required")
	}
	if params.TemplateVersion == "" {
		params.TemplateVersion = model.DefaultTemplateVersion
	}

	payloadJSON, err := json.Marshal(params.Payload)
	if err != nil {
		return "", eris.Wrap(err, "sqlite: marshal payload")
	}
	docs := params.SourceDocs
	if docs == nil {
		docs = []model.SourceDocRef{}
	}
	docsJSON, err := json.Marshal(docs)
	if err != nil {
		return "", eris.Wrap(err, "sqlite: marshal source docs")
	}

	now := time.Now().UTC()
	var analysisID string
	err = s.db.QueryRowContext(ctx,
		`INSERT INTO sow_analysis
		 (analysis_id, notice_id, template_version, sow_payload, source_docs, source_hash, is_active, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, 1, ?, ?)
		 ON CONFLICT (notice_id, template_version) DO UPDATE SET
		   sow_payload = excluded.sow_payload,
		   source_docs = excluded.source_docs,
		   source_hash = excluded.source_hash,
		   is_active   = 1,
		   updated_at  = excluded.updated_at
		 RETURNING analysis_id`,
		uuid.New().String(), params.NoticeID, params.TemplateVersion,
		string(payloadJSON), string(docsJSON), params.SourceHash,
		now, now,
	).Scan(&analysisID)
	if err != nil {
		return "", eris.Wrapf(err, "sqlite: upsert analysis for notice %s", params.NoticeID)
	}
	return analysisID, nil
}

func (s *SQLiteStore) GetActive(ctx context.Context, noticeID string) (*model.AnalysisRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+analysisColumns+` FROM sow_analysis
		 WHERE notice_id = ? AND is_active = 1
		 ORDER BY updated_at DESC LIMIT 1`,
		noticeID,
	)
	rec, err := scanSQLiteAnalysis(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get active analysis for notice %s", noticeID)
	}
	return rec, nil
}

func (s *SQLiteStore) Search(ctx context.Context, filter SearchFilter) ([]model.AnalysisRecord, error) {
	query := `SELECT ` + analysisColumns + ` FROM sow_analysis WHERE 1=1`
	var args []any

	if filter.MinGeneralSessionCapacity > 0 {
		query += ` AND CAST(json_extract(sow_payload, '$.function_space.general_session.capacity') AS INTEGER) >= ?`
		args = append(args, filter.MinGeneralSessionCapacity)
	}
	if filter.MinBreakoutRooms > 0 {
		query += ` AND CAST(json_extract(sow_payload, '$.function_space.breakout_rooms.count') AS INTEGER) >= ?`
		args = append(args, filter.MinBreakoutRooms)
	}
	if filter.MinRoomsPerNight > 0 {
		query += ` AND CAST(json_extract(sow_payload, '$.room_block.total_rooms_per_night') AS INTEGER) >= ?`
		args = append(args, filter.MinRoomsPerNight)
	}
	if filter.SetupDeadlineBefore != "" {
		query += ` AND json_extract(sow_payload, '$.setup_deadline') <= ?`
		args = append(args, filter.SetupDeadlineBefore)
	}
	if filter.PeriodStartPrefix != "" {
		query += ` AND json_extract(sow_payload, '$.period_of_performance.start') LIKE ?`
		args = append(args, filter.PeriodStartPrefix+"%")
	}
	if filter.ActiveOnly {
		query += ` AND is_active = 1`
	}

	switch filter.OrderBy {
	case "", "updated_at":
		query += ` ORDER BY updated_at DESC`
	case "created_at":
		query += ` ORDER BY created_at DESC`
	case "notice_id":
		query += ` ORDER BY notice_id ASC`
	default:
		return nil, eris.Errorf("sqlite: search: invalid order_by %q", filter.OrderBy)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: search analyses")
	}
	defer rows.Close()

	return collectSQLiteAnalyses(rows, "sqlite: search analyses iterate")
}

func (s *SQLiteStore) List(ctx context.Context, filter ListFilter) ([]model.AnalysisRecord, error) {
	query := `SELECT ` + analysisColumns + ` FROM sow_analysis WHERE 1=1`
	var args []any

	if filter.NoticeID != "" {
		query += ` AND notice_id = ?`
		args = append(args, filter.NoticeID)
	}
	if filter.TemplateVersion != "" {
		query += ` AND template_version = ?`
		args = append(args, filter.TemplateVersion)
	}
	if filter.ActiveOnly {
		query += ` AND is_active = 1`
	}
	query += ` ORDER BY updated_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list analyses")
	}
	defer rows.Close()

	return collectSQLiteAnalyses(rows, "sqlite: list analyses iterate")
}

func (s *SQLiteStore) Deactivate(ctx context.Context, noticeID, templateVersion string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE sow_analysis SET is_active = 0 WHERE notice_id = ? AND template_version = ?`,
		noticeID, templateVersion,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: deactivate analysis for notice %s", noticeID)
	}
	return checkRowsAffected(res, "analysis", noticeID+"/"+templateVersion)
}

// helpers

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Errorf("%s not found: %s", entity, id)
	}
	return nil
}

func scanSQLiteAnalysis(row rowScanner) (*model.AnalysisRecord, error) {
	var rec model.AnalysisRecord
	var payloadJSON, docsJSON string

	err := row.Scan(&rec.AnalysisID, &rec.NoticeID, &rec.TemplateVersion,
		&payloadJSON, &docsJSON, &rec.SourceHash, &rec.IsActive,
		&rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(payloadJSON), &rec.Payload); err != nil {
		return nil, eris.Wrap(err, "unmarshal sow payload")
	}
	if docsJSON != "" {
		if err := json.Unmarshal([]byte(docsJSON), &rec.SourceDocs); err != nil {
			return nil, eris.Wrap(err, "unmarshal source docs")
		}
	}
	return &rec, nil
}

func collectSQLiteAnalyses(rows *sql.Rows, wrapMsg string) ([]model.AnalysisRecord, error) {
	var out []model.AnalysisRecord
	for rows.Next() {
		rec, err := scanSQLiteAnalysis(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan analysis")
		}
		out = append(out, *rec)
	}
	return out, eris.Wrap(rows.Err(), wrapMsg)
}
