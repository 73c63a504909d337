package extract

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
)

// Failure reasons carried by ExtractionError.
const (
	ReasonUnsupportedFormat = "unsupported_format"
	ReasonCorruptFile       = "corrupt_file"
	ReasonEmptyOutput       = "empty_output"
)

// ExtractionError reports why a document yielded no usable text. A
// document that extracts to nothing is always an error, never an empty
// string.
type ExtractionError struct {
	Reason string
	Path   string
	Err    error
}

func (e *ExtractionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("extract: %s: %s: %v", e.Reason, e.Path, e.Err)
	}
	return fmt.Sprintf("extract: %s: %s", e.Reason, e.Path)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// Extraction is the result of pulling text out of one document.
type Extraction struct {
	Text      string
	PageCount int
	Format    string
}

// Extractor converts attachment files into plain text.
type Extractor struct {
	pdfToTextPath string
}

// New creates an Extractor. If pdfToTextPath is empty, "pdftotext" is
// looked up on PATH.
func New(pdfToTextPath string) *Extractor {
	return &Extractor{pdfToTextPath: pdfToTextPath}
}

// Extract reads the file at path and returns its text. Format is chosen
// by extension first, then the MIME hint. Unknown formats fail with
// unsupported_format rather than being guessed at.
func (e *Extractor) Extract(ctx context.Context, path, mimeHint string) (*Extraction, error) {
	format := detectFormat(path, mimeHint)
	switch format {
	case "pdf":
		return e.extractPDF(ctx, path)
	case "docx":
		return extractDOCX(path)
	case "txt":
		return extractTXT(path)
	case "rtf":
		return extractRTF(path)
	case "xlsx":
		return extractXLSX(path)
	default:
		return nil, &ExtractionError{Reason: ReasonUnsupportedFormat, Path: path}
	}
}

var mimeFormats = map[string]string{
	"application/pdf": "pdf",
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": "docx",
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet":       "xlsx",
	"application/msword": "docx",
	"application/rtf":    "rtf",
	"text/rtf":           "rtf",
	"text/plain":         "txt",
}

func detectFormat(path, mimeHint string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return "pdf"
	case ".docx":
		return "docx"
	case ".txt", ".text", ".md":
		return "txt"
	case ".rtf":
		return "rtf"
	case ".xlsx":
		return "xlsx"
	}
	if mimeHint != "" {
		// Hints sometimes carry parameters ("text/plain; charset=utf-8").
		base := strings.TrimSpace(strings.SplitN(mimeHint, ";", 2)[0])
		if f, ok := mimeFormats[strings.ToLower(base)]; ok {
			return f
		}
	}
	return ""
}

// finish applies the empty-output rule shared by every format.
func finish(path, format, text string, pageCount int) (*Extraction, error) {
	if strings.TrimSpace(text) == "" {
		return nil, &ExtractionError{Reason: ReasonEmptyOutput, Path: path}
	}
	return &Extraction{Text: text, PageCount: pageCount, Format: format}, nil
}
