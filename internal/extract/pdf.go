package extract

import (
	"bytes"
	"context"
	"os/exec"
	"strings"

	"github.com/dslipak/pdf"
	"go.uber.org/zap"
)

// extractPDF runs pdftotext -layout first because it preserves the
// column layout of pricing tables. When the binary is unavailable or
// fails, a pure-Go reader takes over.
func (e *Extractor) extractPDF(ctx context.Context, path string) (*Extraction, error) {
	text, pages, err := e.pdfToText(ctx, path)
	if err == nil {
		return finish(path, "pdf", text, pages)
	}
	zap.L().Debug("pdftotext unavailable, using pure-Go reader",
		zap.String("path", path), zap.Error(err))

	text, pages, err = readPDF(path)
	if err != nil {
		return nil, &ExtractionError{Reason: ReasonCorruptFile, Path: path, Err: err}
	}
	return finish(path, "pdf", text, pages)
}

// pdfToText runs pdftotext -layout and returns stdout. Pages come out
// separated by form feeds.
func (e *Extractor) pdfToText(ctx context.Context, path string) (string, int, error) {
	bin := e.pdfToTextPath
	if bin == "" {
		bin = "pdftotext"
	}
	cmd := exec.CommandContext(ctx, bin, "-layout", path, "-")

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", 0, err
	}

	text := stdout.String()
	pages := 0
	if strings.TrimSpace(text) != "" {
		pages = strings.Count(text, "\f")
		if !strings.HasSuffix(text, "\f") {
			pages++
		}
	}
	return text, pages, nil
}

func readPDF(path string) (string, int, error) {
	r, err := pdf.Open(path)
	if err != nil {
		return "", 0, err
	}

	reader, err := r.GetPlainText()
	if err != nil {
		return "", 0, err
	}
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(reader); err != nil {
		return "", 0, err
	}
	return buf.String(), r.NumPage(), nil
}
