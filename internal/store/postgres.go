package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/zgr-ai/sow-cli/internal/db"
	"github.com/zgr-ai/sow-cli/internal/model"
)

// PostgresStore implements AnalysisStore using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

const analysisColumns = `analysis_id, notice_id, template_version, sow_payload, source_docs, source_hash, is_active, created_at, updated_at`

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the hot store operations.
var preparedStatements = map[string]string{
	"upsert_analysis": `INSERT INTO sow_analysis
		 (analysis_id, notice_id, template_version, sow_payload, source_docs, source_hash, is_active, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, true, $7, $7)
		 ON CONFLICT (notice_id, template_version) DO UPDATE SET
		   sow_payload = EXCLUDED.sow_payload,
		   source_docs = EXCLUDED.source_docs,
		   source_hash = EXCLUDED.source_hash,
		   is_active   = true,
		   updated_at  = EXCLUDED.updated_at
		 RETURNING analysis_id`,
	"get_active_analysis": `SELECT ` + analysisColumns + ` FROM sow_analysis
		 WHERE notice_id = $1 AND is_active
		 ORDER BY updated_at DESC LIMIT 1`,
	"deactivate_analysis": `UPDATE sow_analysis SET is_active = false
		 WHERE notice_id = $1 AND template_version = $2`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	// Apply pool sizing from config with sensible defaults.
	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	// Prepare frequently-used statements on each new connection.
	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// Pool returns the underlying database pool for subsystems that need
// direct query access.
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS sow_analysis (
	analysis_id      TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	notice_id        TEXT NOT NULL,
	template_version TEXT NOT NULL,
	sow_payload      JSONB NOT NULL,
	source_docs      JSONB NOT NULL DEFAULT '[]',
	source_hash      TEXT NOT NULL DEFAULT '',
	is_active        BOOLEAN NOT NULL DEFAULT true,
	created_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (notice_id, template_version)
);

CREATE INDEX IF NOT EXISTS idx_sow_analysis_notice ON sow_analysis(notice_id);
CREATE INDEX IF NOT EXISTS idx_sow_analysis_updated ON sow_analysis(updated_at DESC);
CREATE INDEX IF NOT EXISTS idx_sow_analysis_active ON sow_analysis(notice_id, updated_at DESC) WHERE is_active;

CREATE INDEX IF NOT EXISTS idx_sow_gs_capacity
	ON sow_analysis (((sow_payload #>> '{function_space,general_session,capacity}')::int));
CREATE INDEX IF NOT EXISTS idx_sow_breakout_count
	ON sow_analysis (((sow_payload #>> '{function_space,breakout_rooms,count}')::int));
CREATE INDEX IF NOT EXISTS idx_sow_rooms_per_night
	ON sow_analysis (((sow_payload #>> '{room_block,total_rooms_per_night}')::int));
CREATE INDEX IF NOT EXISTS idx_sow_setup_deadline
	ON sow_analysis ((sow_payload ->> 'setup_deadline'));

CREATE OR REPLACE VIEW vw_active_sow AS
SELECT DISTINCT ON (notice_id)
	analysis_id,
	notice_id,
	template_version,
	sow_payload ->> 'schema_version'                                   AS schema_version,
	sow_payload #>> '{period_of_performance,start}'                    AS period_start,
	sow_payload #>> '{period_of_performance,end}'                      AS period_end,
	sow_payload ->> 'setup_deadline'                                   AS setup_deadline,
	(sow_payload #>> '{room_block,total_rooms_per_night}')::int        AS rooms_per_night,
	(sow_payload #>> '{room_block,total_room_nights}')::int            AS total_room_nights,
	(sow_payload #>> '{function_space,general_session,capacity}')::int AS general_session_capacity,
	(sow_payload #>> '{function_space,breakout_rooms,count}')::int     AS breakout_room_count,
	source_hash,
	updated_at
FROM sow_analysis
WHERE is_active
ORDER BY notice_id, updated_at DESC;
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) Upsert(ctx context.Context, params UpsertParams) (string, error) {
	if params.NoticeID == "" {
		return "", eris.New("postgres: upsert: notice_id is required")
	}
	if params.TemplateVersion == "" {
		params.TemplateVersion = model.DefaultTemplateVersion
	}

	payloadJSON, err := json.Marshal(params.Payload)
	if err != nil {
		return "", eris.Wrap(err, "postgres: marshal payload")
	}
	docs := params.SourceDocs
	if docs == nil {
		docs = []model.SourceDocRef{}
	}
	docsJSON, err := json.Marshal(docs)
	if err != nil {
		return "", eris.Wrap(err, "postgres: marshal source docs")
	}

	var analysisID string
	err = s.pool.QueryRow(ctx,
		`INSERT INTO sow_analysis
		 (analysis_id, notice_id, template_version, sow_payload, source_docs, source_hash, is_active, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, true, $7, $7)
		 ON CONFLICT (notice_id, template_version) DO UPDATE SET
		   sow_payload = EXCLUDED.sow_payload,
		   source_docs = EXCLUDED.source_docs,
		   source_hash = EXCLUDED.source_hash,
		   is_active   = true,
		   updated_at  = EXCLUDED.updated_at
		 RETURNING analysis_id`,
		uuid.New().String(), params.NoticeID, params.TemplateVersion,
		payloadJSON, docsJSON, params.SourceHash, time.Now().UTC(),
	).Scan(&analysisID)
	if err != nil {
		return "", eris.Wrapf(err, "postgres: upsert analysis for notice %s", params.NoticeID)
	}
	return analysisID, nil
}

func (s *PostgresStore) GetActive(ctx context.Context, noticeID string) (*model.AnalysisRecord, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+analysisColumns+` FROM sow_analysis
		 WHERE notice_id = $1 AND is_active
		 ORDER BY updated_at DESC LIMIT 1`,
		noticeID,
	)
	rec, err := scanAnalysis(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "postgres: get active analysis for notice %s", noticeID)
	}
	return rec, nil
}

// searchOrderColumns whitelists ORDER BY targets for Search.
var searchOrderColumns = map[string]string{
	"":           "updated_at DESC",
	"updated_at": "updated_at DESC",
	"created_at": "created_at DESC",
	"notice_id":  "notice_id ASC",
}

func (s *PostgresStore) Search(ctx context.Context, filter SearchFilter) ([]model.AnalysisRecord, error) {
	query := `SELECT ` + analysisColumns + ` FROM sow_analysis WHERE true`
	args := []any{}
	argIdx := 1

	if filter.MinGeneralSessionCapacity > 0 {
		query += fmt.Sprintf(` AND (sow_payload #>> '{function_space,general_session,capacity}')::int >= $%d`, argIdx)
		args = append(args, filter.MinGeneralSessionCapacity)
		argIdx++
	}
	if filter.MinBreakoutRooms > 0 {
		query += fmt.Sprintf(` AND (sow_payload #>> '{function_space,breakout_rooms,count}')::int >= $%d`, argIdx)
		args = append(args, filter.MinBreakoutRooms)
		argIdx++
	}
	if filter.MinRoomsPerNight > 0 {
		query += fmt.Sprintf(` AND (sow_payload #>> '{room_block,total_rooms_per_night}')::int >= $%d`, argIdx)
		args = append(args, filter.MinRoomsPerNight)
		argIdx++
	}
	if filter.SetupDeadlineBefore != "" {
		query += fmt.Sprintf(` AND sow_payload ->> 'setup_deadline' <= $%d`, argIdx)
		args = append(args, filter.SetupDeadlineBefore)
		argIdx++
	}
	if filter.PeriodStartPrefix != "" {
		query += fmt.Sprintf(` AND sow_payload #>> '{period_of_performance,start}' LIKE $%d`, argIdx)
		args = append(args, filter.PeriodStartPrefix+"%")
		argIdx++
	}
	if filter.ActiveOnly {
		query += ` AND is_active`
	}

	order, ok := searchOrderColumns[filter.OrderBy]
	if !ok {
		return nil, eris.Errorf("postgres: search: invalid order_by %q", filter.OrderBy)
	}
	query += ` ORDER BY ` + order

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit)
	argIdx++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
		argIdx++
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: search analyses")
	}
	defer rows.Close()

	return collectAnalyses(rows, "postgres: search analyses iterate")
}

func (s *PostgresStore) List(ctx context.Context, filter ListFilter) ([]model.AnalysisRecord, error) {
	query := `SELECT ` + analysisColumns + ` FROM sow_analysis WHERE true`
	args := []any{}
	argIdx := 1

	if filter.NoticeID != "" {
		query += fmt.Sprintf(` AND notice_id = $%d`, argIdx)
		args = append(args, filter.NoticeID)
		argIdx++
	}
	if filter.TemplateVersion != "" {
		query += fmt.Sprintf(` AND template_version = $%d`, argIdx)
		args = append(args, filter.TemplateVersion)
		argIdx++
	}
	if filter.ActiveOnly {
		query += ` AND is_active`
	}
	query += ` ORDER BY updated_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit)
	argIdx++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
		argIdx++
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list analyses")
	}
	defer rows.Close()

	return collectAnalyses(rows, "postgres: list analyses iterate")
}

func (s *PostgresStore) Deactivate(ctx context.Context, noticeID, templateVersion string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE sow_analysis SET is_active = false WHERE notice_id = $1 AND template_version = $2`,
		noticeID, templateVersion,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: deactivate analysis for notice %s", noticeID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("analysis not found: %s/%s", noticeID, templateVersion)
	}
	return nil
}

// rowScanner covers both pgx.Row and pgx.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanAnalysis(row rowScanner) (*model.AnalysisRecord, error) {
	var rec model.AnalysisRecord
	var payloadJSON, docsJSON []byte

	err := row.Scan(&rec.AnalysisID, &rec.NoticeID, &rec.TemplateVersion,
		&payloadJSON, &docsJSON, &rec.SourceHash, &rec.IsActive,
		&rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(payloadJSON, &rec.Payload); err != nil {
		return nil, eris.Wrap(err, "unmarshal sow payload")
	}
	if len(docsJSON) > 0 {
		if err := json.Unmarshal(docsJSON, &rec.SourceDocs); err != nil {
			return nil, eris.Wrap(err, "unmarshal source docs")
		}
	}
	return &rec, nil
}

func collectAnalyses(rows pgx.Rows, wrapMsg string) ([]model.AnalysisRecord, error) {
	var out []model.AnalysisRecord
	for rows.Next() {
		rec, err := scanAnalysis(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan analysis")
		}
		out = append(out, *rec)
	}
	return out, eris.Wrap(rows.Err(), wrapMsg)
}
