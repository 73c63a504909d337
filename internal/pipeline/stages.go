package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/zgr-ai/sow-cli/internal/digest"
	"github.com/zgr-ai/sow-cli/internal/extract"
	"github.com/zgr-ai/sow-cli/internal/model"
)

// downloadedFile pairs a local path with the attachment it came from.
type downloadedFile struct {
	Path string
	Ref  model.AttachmentRef
}

// downloadDocs fetches the notice's attachments. Per-file failures are
// recorded and skipped; the stage only fails outright when attachments
// exist but none could be fetched.
func (p *Pipeline) downloadDocs(ctx context.Context, meta *model.NoticeMetadata) ([]downloadedFile, *model.StageResult, error) {
	attachments := meta.Attachments
	if max := p.cfg.SAM.MaxAttachments; max > 0 && len(attachments) > max {
		zap.L().Warn("attachment list truncated",
			zap.String("notice_id", meta.NoticeID),
			zap.Int("total", len(attachments)),
			zap.Int("limit", max))
		attachments = attachments[:max]
	}
	if len(attachments) == 0 {
		return nil, &model.StageResult{
			Status:   model.StageStatusComplete,
			Metadata: map[string]any{"files": 0},
		}, nil
	}

	dir, err := p.downloadDir(meta.NoticeID)
	if err != nil {
		return nil, nil, err
	}

	var files []downloadedFile
	var failures []string
	for _, ref := range attachments {
		path, err := p.sam.DownloadAttachment(ctx, ref, dir)
		if err != nil {
			failures = append(failures, fmt.Sprintf("%s: %s", ref.URL, err))
			zap.L().Warn("attachment download failed",
				zap.String("notice_id", meta.NoticeID),
				zap.String("url", ref.URL),
				zap.Error(err))
			continue
		}
		files = append(files, downloadedFile{Path: path, Ref: ref})
	}

	sr := &model.StageResult{Metadata: map[string]any{
		"files":  len(files),
		"failed": len(failures),
	}}
	if len(failures) > 0 {
		sr.Metadata["failures"] = failures
	}

	if len(files) == 0 {
		return nil, sr, eris.Errorf("pipeline: all %d attachment downloads failed", len(failures))
	}
	if len(failures) > 0 {
		sr.Status = model.StageStatusDegraded
	}
	return files, sr, nil
}

// extractTexts runs the text extractor over each downloaded file. Failed
// files are excluded from the text pool; the stage fails only when files
// were present and none yielded text.
func (p *Pipeline) extractTexts(ctx context.Context, files []downloadedFile) ([]model.SourceDocument, *model.StageResult, error) {
	if len(files) == 0 {
		return nil, &model.StageResult{
			Status:   model.StageStatusComplete,
			Metadata: map[string]any{"documents": 0},
		}, nil
	}

	var docs []model.SourceDocument
	var failures []string
	for _, f := range files {
		doc, err := p.extractOne(ctx, f)
		if err != nil {
			reason := "error"
			var exErr *extract.ExtractionError
			if errors.As(err, &exErr) {
				reason = exErr.Reason
			}
			failures = append(failures, fmt.Sprintf("%s: %s", filepath.Base(f.Path), reason))
			zap.L().Warn("document extraction failed",
				zap.String("path", f.Path),
				zap.String("reason", reason),
				zap.Error(err))
			continue
		}
		docs = append(docs, doc)
	}

	sr := &model.StageResult{Metadata: map[string]any{
		"documents": len(docs),
		"failed":    len(failures),
	}}
	if len(failures) > 0 {
		sr.Metadata["failures"] = failures
	}

	if len(docs) == 0 {
		return nil, sr, eris.Errorf("pipeline: extraction failed for all %d files", len(files))
	}
	if len(failures) > 0 {
		sr.Status = model.StageStatusDegraded
	}
	return docs, sr, nil
}

func (p *Pipeline) extractOne(ctx context.Context, f downloadedFile) (model.SourceDocument, error) {
	hash, size, err := digest.File(f.Path)
	if err != nil {
		return model.SourceDocument{}, err
	}

	ex, err := p.extractor.Extract(ctx, f.Path, f.Ref.MimeType)
	if err != nil {
		return model.SourceDocument{}, err
	}

	name := f.Ref.Filename
	if name == "" {
		name = filepath.Base(f.Path)
	}
	return model.SourceDocument{
		Filename:    name,
		Path:        f.Path,
		ContentHash: hash,
		ByteSize:    size,
		PageCount:   ex.PageCount,
		Text:        ex.Text,
	}, nil
}

// writeFallbackArtifact dumps the run result (payload included) to a JSON
// file when persistence fails, so the computed work survives the run.
func (p *Pipeline) writeFallbackArtifact(noticeID string, result *model.RunResult) error {
	dir := p.cfg.Pipeline.FallbackArtifactDir
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return eris.Wrapf(err, "pipeline: create artifact dir %s", dir)
	}

	path := filepath.Join(dir, fmt.Sprintf("analysis-%s.json", noticeID))
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return eris.Wrap(err, "pipeline: marshal run result")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return eris.Wrapf(err, "pipeline: write artifact %s", path)
	}

	zap.L().Warn("analysis persisted to fallback artifact",
		zap.String("notice_id", noticeID),
		zap.String("path", path))
	return nil
}
