package model

// Stage names the pipeline stages in execution order.
type Stage string

const (
	StageFetchMetadata       Stage = "fetch_metadata"
	StageDownloadDocs        Stage = "download_docs"
	StageExtractText         Stage = "extract_text"
	StageExtractRequirements Stage = "extract_requirements"
	StageSynthesize          Stage = "synthesize_sow"
	StagePersist             Stage = "persist"
)

// RunStatus is the terminal status of a pipeline run.
type RunStatus string

const (
	// RunStatusDone means every stage completed without error.
	RunStatusDone RunStatus = "done"
	// RunStatusPartial means one or more stages failed but the run carried
	// on with best-effort partial output.
	RunStatusPartial RunStatus = "partial"
	// RunStatusFailed means the persist stage failed after a successful
	// synthesis; the computed payload was surfaced via a fallback artifact.
	RunStatusFailed RunStatus = "failed"
)

// StageStatus is the outcome of a single stage.
type StageStatus string

const (
	StageStatusComplete StageStatus = "complete"
	StageStatusDegraded StageStatus = "degraded"
	StageStatusFailed   StageStatus = "failed"
	StageStatusSkipped  StageStatus = "skipped"
)

// StageResult records how one stage went.
type StageResult struct {
	Stage      Stage          `json:"stage"`
	Status     StageStatus    `json:"status"`
	DurationMS int64          `json:"duration_ms"`
	Error      string         `json:"error,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// StageError is one entry of a run's accumulated error list.
type StageError struct {
	Stage Stage  `json:"stage"`
	Err   string `json:"error"`
}

// RunResult is the per-notice run summary: which stages succeeded, which
// degraded, which failed, and the analysis ID if persistence succeeded.
type RunResult struct {
	NoticeID   string         `json:"notice_id"`
	Status     RunStatus      `json:"status"`
	AnalysisID string         `json:"analysis_id,omitempty"`
	Tier       ExtractionTier `json:"extraction_tier,omitempty"`
	Stages     []StageResult  `json:"stages"`
	Errors     []StageError   `json:"errors,omitempty"`
	Cancelled  bool           `json:"cancelled,omitempty"`
	Payload    *SOWPayload    `json:"payload,omitempty"`
}

// RecordError appends a stage failure to the run's error list.
func (r *RunResult) RecordError(stage Stage, err error) {
	if err == nil {
		return
	}
	r.Errors = append(r.Errors, StageError{Stage: stage, Err: err.Error()})
}
