// Package pipeline orchestrates the per-notice analysis run: metadata
// fetch, document download, text extraction, requirement extraction, SOW
// synthesis, and persistence. Every stage failure before persist is
// recorded and the run continues on best-effort partial input; only a
// persist failure after successful synthesis is fatal.
package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/zgr-ai/sow-cli/internal/config"
	"github.com/zgr-ai/sow-cli/internal/digest"
	"github.com/zgr-ai/sow-cli/internal/extract"
	"github.com/zgr-ai/sow-cli/internal/model"
	"github.com/zgr-ai/sow-cli/internal/requirements"
	"github.com/zgr-ai/sow-cli/internal/sow"
	"github.com/zgr-ai/sow-cli/internal/store"
	"github.com/zgr-ai/sow-cli/pkg/samgov"
)

// Pipeline wires the stages together. It is the only component aware of
// all collaborators; each stage has a narrow input to output contract.
type Pipeline struct {
	cfg       *config.Config
	sam       samgov.Client
	extractor *extract.Extractor
	reqs      *requirements.Extractor
	store     store.AnalysisStore
}

// New creates a Pipeline with all dependencies.
func New(
	cfg *config.Config,
	samClient samgov.Client,
	extractor *extract.Extractor,
	reqs *requirements.Extractor,
	st store.AnalysisStore,
) *Pipeline {
	return &Pipeline{
		cfg:       cfg,
		sam:       samClient,
		extractor: extractor,
		reqs:      reqs,
		store:     st,
	}
}

// Run executes the full analysis for one notice. It always returns a
// result; the result's Status and Errors say how the run went.
func (p *Pipeline) Run(ctx context.Context, noticeID string) *model.RunResult {
	log := zap.L().With(zap.String("notice_id", noticeID))
	log.Info("pipeline: starting analysis run")

	result := &model.RunResult{NoticeID: noticeID}

	trackStage := func(stage model.Stage, fn func() (*model.StageResult, error)) error {
		start := time.Now()
		sr, err := fn()
		duration := time.Since(start).Milliseconds()

		if sr == nil {
			sr = &model.StageResult{}
		}
		sr.Stage = stage
		sr.DurationMS = duration

		if err != nil {
			sr.Status = model.StageStatusFailed
			sr.Error = err.Error()
			result.RecordError(stage, err)
			log.Error("pipeline: stage failed",
				zap.String("stage", string(stage)),
				zap.Int64("duration_ms", duration),
				zap.Error(err))
		} else {
			if sr.Status == "" {
				sr.Status = model.StageStatusComplete
			}
			log.Info("pipeline: stage finished",
				zap.String("stage", string(stage)),
				zap.String("status", string(sr.Status)),
				zap.Int64("duration_ms", duration))
		}

		result.Stages = append(result.Stages, *sr)
		return err
	}

	// Cancellation is cooperative and checked at stage boundaries only.
	cancelled := func() bool {
		if ctx.Err() == nil {
			return false
		}
		if !result.Cancelled {
			result.Cancelled = true
			log.Warn("pipeline: run cancelled")
		}
		return true
	}

	// Stage 1: metadata. On failure the run continues with a bare
	// metadata record so the keyword tier still has the notice ID.
	meta := &model.NoticeMetadata{NoticeID: noticeID}
	trackStage(model.StageFetchMetadata, func() (*model.StageResult, error) {
		m, err := p.sam.GetOpportunity(ctx, noticeID)
		if err != nil {
			return nil, err
		}
		meta = m
		return &model.StageResult{Metadata: map[string]any{
			"title":       m.Title,
			"attachments": len(m.Attachments),
		}}, nil
	})

	// Stage 2: download.
	var paths []downloadedFile
	if !cancelled() {
		trackStage(model.StageDownloadDocs, func() (*model.StageResult, error) {
			files, sr, err := p.downloadDocs(ctx, meta)
			paths = files
			return sr, err
		})
	}

	// Stage 3: extract text. Failed files are excluded from the text
	// pool and the run carries on.
	var docs []model.SourceDocument
	if !cancelled() {
		trackStage(model.StageExtractText, func() (*model.StageResult, error) {
			extracted, sr, err := p.extractTexts(ctx, paths)
			docs = extracted
			return sr, err
		})
	}

	// Stage 4: requirements. The two-tier extractor never fails; a
	// degraded tier is recorded, not errored.
	var bundle *model.Bundle
	if !cancelled() {
		trackStage(model.StageExtractRequirements, func() (*model.StageResult, error) {
			res := p.reqs.Extract(ctx, *meta, docs)
			bundle = res.Bundle
			result.Tier = res.Tier

			sr := &model.StageResult{Metadata: map[string]any{
				"tier": string(res.Tier),
			}}
			if res.DegradedReason != "" {
				sr.Status = model.StageStatusDegraded
				sr.Metadata["degraded_reason"] = res.DegradedReason
			}
			return sr, nil
		})
	}

	// Stage 5: synthesis. Pure mapping, no failure modes.
	var payload *model.SOWPayload
	if bundle != nil && !cancelled() {
		trackStage(model.StageSynthesize, func() (*model.StageResult, error) {
			payload = sow.Synthesize(bundle)
			result.Payload = payload
			return &model.StageResult{Metadata: map[string]any{
				"assumptions": len(payload.Assumptions),
			}}, nil
		})
	}

	// Stage 6: persist. A payload computed before cancellation is still
	// persisted; losing finished work is worse than a late write.
	if payload != nil {
		cancelled()
		persistCtx := context.WithoutCancel(ctx)
		err := trackStage(model.StagePersist, func() (*model.StageResult, error) {
			id, err := p.persist(persistCtx, noticeID, payload, docs)
			if err != nil {
				return nil, err
			}
			result.AnalysisID = id
			return &model.StageResult{Metadata: map[string]any{
				"analysis_id": id,
			}}, nil
		})
		if err != nil {
			// Fatal: surface the computed payload so the work isn't lost.
			result.Status = model.RunStatusFailed
			if artifactErr := p.writeFallbackArtifact(noticeID, result); artifactErr != nil {
				log.Error("pipeline: fallback artifact write failed", zap.Error(artifactErr))
			}
			return result
		}
	}

	switch {
	case result.Cancelled, len(result.Errors) > 0:
		result.Status = model.RunStatusPartial
	default:
		result.Status = model.RunStatusDone
	}

	log.Info("pipeline: run finished",
		zap.String("status", string(result.Status)),
		zap.String("analysis_id", result.AnalysisID),
		zap.Int("stage_errors", len(result.Errors)))
	return result
}

func (p *Pipeline) persist(ctx context.Context, noticeID string, payload *model.SOWPayload, docs []model.SourceDocument) (string, error) {
	refs := make([]model.SourceDocRef, 0, len(docs))
	hashes := make([]string, 0, len(docs))
	for _, d := range docs {
		refs = append(refs, d.Ref())
		hashes = append(hashes, d.ContentHash)
	}

	return p.store.Upsert(ctx, store.UpsertParams{
		NoticeID:        noticeID,
		TemplateVersion: p.cfg.Pipeline.TemplateVersion,
		Payload:         payload,
		SourceDocs:      refs,
		SourceHash:      digest.Combine(hashes),
	})
}

// downloadDir returns the per-notice download directory.
func (p *Pipeline) downloadDir(noticeID string) (string, error) {
	base := p.cfg.SAM.DownloadDir
	if base == "" {
		dir, err := os.MkdirTemp("", "sow-docs-"+noticeID+"-")
		if err != nil {
			return "", eris.Wrap(err, "pipeline: create download dir")
		}
		return dir, nil
	}
	dir := filepath.Join(base, noticeID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", eris.Wrapf(err, "pipeline: create download dir %s", dir)
	}
	return dir, nil
}
