// Package requirements turns notice metadata and extracted document text
// into a structured requirement bundle. Extraction is two-tiered: an LLM
// structured-output attempt first, then a deterministic keyword scan when
// the LLM is unavailable or returns something unparseable. The keyword
// tier always succeeds, so extraction as a whole never fails.
package requirements

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/zgr-ai/sow-cli/internal/config"
	"github.com/zgr-ai/sow-cli/internal/model"
	"github.com/zgr-ai/sow-cli/internal/resilience"
	"github.com/zgr-ai/sow-cli/pkg/anthropic"
)

// Result carries the bundle plus how it was produced. DegradedReason is
// set only when the keyword tier ran because the LLM tier could not.
type Result struct {
	Bundle         *model.Bundle
	Tier           model.ExtractionTier
	DegradedReason string
}

// Extractor runs both tiers. Safe for concurrent use across notices.
type Extractor struct {
	client        anthropic.Client
	model         string
	maxTokens     int64
	maxInputChars int
	rules         []keywordRule
	breaker       *resilience.Breaker
}

// charsPerToken approximates the prompt token count from its byte length.
const charsPerToken = 4

// New builds an Extractor. A nil client disables the LLM tier entirely;
// every notice then goes straight to the keyword tier.
func New(client anthropic.Client, aiCfg config.AnthropicConfig, pipeCfg config.PipelineConfig) (*Extractor, error) {
	rules := defaultRules()
	if pipeCfg.KeywordRulesPath != "" {
		loaded, err := loadRules(pipeCfg.KeywordRulesPath)
		if err != nil {
			return nil, err
		}
		rules = loaded
	}

	maxTokens := aiCfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}
	maxInput := pipeCfg.MaxInputTokens
	if maxInput <= 0 {
		maxInput = 24000
	}

	threshold := pipeCfg.BreakerThreshold
	if threshold <= 0 {
		threshold = 5
	}
	cooldown := time.Duration(pipeCfg.BreakerCooldownSecs) * time.Second
	if cooldown <= 0 {
		cooldown = 5 * time.Minute
	}

	return &Extractor{
		client:        client,
		model:         aiCfg.Model,
		maxTokens:     maxTokens,
		maxInputChars: maxInput * charsPerToken,
		rules:         rules,
		breaker:       resilience.NewBreaker(threshold, cooldown),
	}, nil
}

// Extract runs the LLM tier once and falls through to the keyword tier
// on any failure. The LLM call is never retried; predictable single-pass
// latency matters more here than squeezing out one more success.
func (e *Extractor) Extract(ctx context.Context, meta model.NoticeMetadata, docs []model.SourceDocument) Result {
	if e.client == nil {
		return e.keywordResult(meta, docs, "llm_disabled")
	}
	if err := e.breaker.Allow(); err != nil {
		zap.L().Info("llm tier skipped, circuit open",
			zap.String("notice_id", meta.NoticeID))
		return e.keywordResult(meta, docs, "breaker_open")
	}

	bundle, err := e.LLMTier(ctx, meta, docs)
	e.breaker.Record(err)
	if err != nil {
		zap.L().Warn("llm tier failed, falling back to keyword tier",
			zap.String("notice_id", meta.NoticeID),
			zap.Error(err))
		return e.keywordResult(meta, docs, degradedReason(err))
	}
	return Result{Bundle: bundle, Tier: model.TierLLM}
}

func (e *Extractor) keywordResult(meta model.NoticeMetadata, docs []model.SourceDocument, reason string) Result {
	return Result{
		Bundle:         e.KeywordTier(meta, docs),
		Tier:           model.TierKeyword,
		DegradedReason: reason,
	}
}

func degradedReason(err error) string {
	switch {
	case resilience.RateLimited(err):
		return "llm_rate_limited"
	case resilience.IsTransient(err):
		return "llm_transport_error"
	default:
		return "llm_parse_error"
	}
}
