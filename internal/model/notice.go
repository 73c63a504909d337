package model

// AttachmentRef identifies a downloadable attachment on a notice.
type AttachmentRef struct {
	URL      string `json:"url"`
	Filename string `json:"filename"`
	MimeType string `json:"mime_type,omitempty"`
}

// NoticeMetadata is the opportunity metadata returned by the metadata
// provider for a notice ID.
type NoticeMetadata struct {
	NoticeID         string          `json:"notice_id"`
	Title            string          `json:"title"`
	Agency           string          `json:"agency"`
	NAICSCode        string          `json:"naics_code,omitempty"`
	PostedDate       string          `json:"posted_date,omitempty"`
	ResponseDeadline string          `json:"response_deadline,omitempty"`
	Description      string          `json:"description,omitempty"`
	ContractType     string          `json:"contract_type,omitempty"`
	Attachments      []AttachmentRef `json:"attachments,omitempty"`
	URL              string          `json:"url,omitempty"`
}

// SourceDocument is one ingested attachment. The extracted text is owned by
// the pipeline run that produced it and is never persisted; only the
// SourceDocRef provenance survives the run.
type SourceDocument struct {
	Filename    string
	Path        string
	ContentHash string
	ByteSize    int64
	PageCount   int
	Text        string
}

// Ref returns the persistable provenance record for the document.
func (d SourceDocument) Ref() SourceDocRef {
	ref := SourceDocRef{
		Filename:    d.Filename,
		ContentHash: d.ContentHash,
	}
	if d.PageCount > 0 {
		ref.PageRefs = []int{1, d.PageCount}
	}
	return ref
}

// SourceDocRef is document provenance stored with an analysis record.
// No raw bytes or extracted text, just enough to re-identify the source.
type SourceDocRef struct {
	Filename    string `json:"filename"`
	ContentHash string `json:"content_hash"`
	PageRefs    []int  `json:"page_refs,omitempty"`
}
