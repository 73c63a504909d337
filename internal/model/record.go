package model

import "time"

// DefaultTemplateVersion is used when the caller does not supply one.
const DefaultTemplateVersion = "v1.0"

// AnalysisRecord is the persisted, versioned unit of work. The pair
// (notice_id, template_version) is unique; analysis_id and created_at are
// assigned at first insert and never change. Soft-deactivation via is_active
// is an administrative action only, never performed by the pipeline.
type AnalysisRecord struct {
	AnalysisID      string         `json:"analysis_id"`
	NoticeID        string         `json:"notice_id"`
	TemplateVersion string         `json:"template_version"`
	Payload         SOWPayload     `json:"sow_payload"`
	SourceDocs      []SourceDocRef `json:"source_docs,omitempty"`
	SourceHash      string         `json:"source_hash,omitempty"`
	IsActive        bool           `json:"is_active"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}
