package requirements

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/zgr-ai/sow-cli/internal/config"
	"github.com/zgr-ai/sow-cli/internal/model"
	"github.com/zgr-ai/sow-cli/internal/resilience"
	"github.com/zgr-ai/sow-cli/pkg/anthropic"
	anthropicmocks "github.com/zgr-ai/sow-cli/pkg/anthropic/mocks"
)

func newTestExtractor(t *testing.T, client anthropic.Client, pipeCfg config.PipelineConfig) *Extractor {
	t.Helper()
	e, err := New(client, config.AnthropicConfig{Model: "claude-haiku-4-5-20251001"}, pipeCfg)
	require.NoError(t, err)
	return e
}

func testMeta() model.NoticeMetadata {
	return model.NoticeMetadata{
		NoticeID:    "FA8773-25-R-0001",
		Title:       "Conference Lodging and Meeting Space",
		Agency:      "Department of the Air Force",
		Description: "Hotel accommodations and conference facilities for annual training event.",
	}
}

func testDocs() []model.SourceDocument {
	return []model.SourceDocument{
		{
			Filename: "sow.pdf",
			Text: "The general session must seat 500 attendees theater style.\n" +
				"Contractor shall provide a projector with at least 3,000 lumens.\n" +
				"All pricing shall be at or below the GSA per diem rate.\n" +
				"Coffee break service is required each morning.",
		},
	}
}

func TestKeywordTier_CapturesContainingSentence(t *testing.T) {
	e := newTestExtractor(t, nil, config.PipelineConfig{})

	b := e.KeywordTier(testMeta(), testDocs())

	assert.Equal(t, "The general session must seat 500 attendees theater style.", b.Conference["attendees"])
	assert.Equal(t, "Contractor shall provide a projector with at least 3,000 lumens.", b.AV["projector"])
	assert.Equal(t, "All pricing shall be at or below the GSA per diem rate.", b.Compliance["per diem"])
	assert.Equal(t, "Coffee break service is required each morning.", b.Catering["coffee break"])
}

func TestKeywordTier_PatternMatch(t *testing.T) {
	e := newTestExtractor(t, nil, config.PipelineConfig{})

	b := e.KeywordTier(testMeta(), testDocs())

	assert.Equal(t, "Contractor shall provide a projector with at least 3,000 lumens.", b.AV["3,000 lumens"])
}

func TestKeywordTier_TitleFlags(t *testing.T) {
	e := newTestExtractor(t, nil, config.PipelineConfig{})

	b := e.KeywordTier(model.NoticeMetadata{Title: "Lodging for Training Event"}, nil)

	assert.Equal(t, true, b.Room["required"])
	assert.Equal(t, true, b.Conference["required"])
}

func TestKeywordTier_MetadataGeneralNote(t *testing.T) {
	e := newTestExtractor(t, nil, config.PipelineConfig{})

	b := e.KeywordTier(testMeta(), nil)

	require.Len(t, b.General, 1)
	assert.Equal(t, "metadata", b.General[0].Source)
	assert.Equal(t, testMeta().Description, b.General[0].Text)
}

func TestKeywordTier_Deterministic(t *testing.T) {
	e := newTestExtractor(t, nil, config.PipelineConfig{})

	first := e.KeywordTier(testMeta(), testDocs())
	second := e.KeywordTier(testMeta(), testDocs())

	assert.Equal(t, first, second)
}

func TestKeywordTier_TotalOnEmptyInput(t *testing.T) {
	e := newTestExtractor(t, nil, config.PipelineConfig{})

	b := e.KeywordTier(model.NoticeMetadata{}, nil)

	require.NotNil(t, b.Room)
	require.NotNil(t, b.Conference)
	require.NotNil(t, b.AV)
	require.NotNil(t, b.Catering)
	require.NotNil(t, b.Compliance)
	require.NotNil(t, b.Pricing)
	assert.True(t, b.Empty())
}

func TestExtract_NilClientUsesKeywordTier(t *testing.T) {
	e := newTestExtractor(t, nil, config.PipelineConfig{})

	res := e.Extract(context.Background(), testMeta(), testDocs())

	assert.Equal(t, model.TierKeyword, res.Tier)
	assert.Equal(t, "llm_disabled", res.DegradedReason)
	assert.False(t, res.Bundle.Empty())
}

func TestExtract_LLMSuccess(t *testing.T) {
	client := anthropicmocks.NewMockClient(t)
	client.On("CreateMessage", mock.Anything, mock.Anything).Return(&anthropic.MessageResponse{
		Content: []anthropic.ContentBlock{{
			Type: "text",
			Text: "```json\n" +
				`{"room_requirements":{"rooms_per_night":50},` +
				`"conference_requirements":{"general_session_capacity":500},` +
				`"av_requirements":{},` +
				`"catering_requirements":{},` +
				`"compliance_requirements":{"tax_exempt":true},` +
				`"pricing_requirements":{},` +
				`"general_requirements":[{"source":"sow.pdf","text":"Contractor provides all labor."}]}` +
				"\n```",
		}},
	}, nil).Once()
	e := newTestExtractor(t, client, config.PipelineConfig{})

	res := e.Extract(context.Background(), testMeta(), testDocs())

	assert.Equal(t, model.TierLLM, res.Tier)
	assert.Empty(t, res.DegradedReason)
	assert.Equal(t, float64(500), res.Bundle.Conference["general_session_capacity"])
	assert.Equal(t, true, res.Bundle.Compliance["tax_exempt"])
	require.Len(t, res.Bundle.General, 1)
	assert.Equal(t, "sow.pdf", res.Bundle.General[0].Source)
	require.NotNil(t, res.Bundle.AV)
	require.NotNil(t, res.Bundle.Pricing)
}

func TestExtract_LLMParseFailureFallsBack(t *testing.T) {
	client := anthropicmocks.NewMockClient(t)
	client.On("CreateMessage", mock.Anything, mock.Anything).Return(&anthropic.MessageResponse{
		Content: []anthropic.ContentBlock{{Type: "text", Text: "I cannot produce JSON for this notice."}},
	}, nil).Once()
	e := newTestExtractor(t, client, config.PipelineConfig{})

	res := e.Extract(context.Background(), testMeta(), testDocs())

	assert.Equal(t, model.TierKeyword, res.Tier)
	assert.Equal(t, "llm_parse_error", res.DegradedReason)
	assert.False(t, res.Bundle.Empty())
}

func TestExtract_TransportErrorNotRetried(t *testing.T) {
	client := anthropicmocks.NewMockClient(t)
	client.On("CreateMessage", mock.Anything, mock.Anything).
		Return(nil, resilience.NewTransientError(errors.New("connection reset"), 0)).Once()
	e := newTestExtractor(t, client, config.PipelineConfig{})

	res := e.Extract(context.Background(), testMeta(), testDocs())

	assert.Equal(t, model.TierKeyword, res.Tier)
	assert.Equal(t, "llm_transport_error", res.DegradedReason)
	client.AssertNumberOfCalls(t, "CreateMessage", 1)
}

func TestExtract_RateLimitReason(t *testing.T) {
	client := anthropicmocks.NewMockClient(t)
	client.On("CreateMessage", mock.Anything, mock.Anything).
		Return(nil, resilience.NewTransientError(errors.New("too many requests"), 429)).Once()
	e := newTestExtractor(t, client, config.PipelineConfig{})

	res := e.Extract(context.Background(), testMeta(), testDocs())

	assert.Equal(t, "llm_rate_limited", res.DegradedReason)
}

func TestExtract_BreakerSkipsLLMWhenOpen(t *testing.T) {
	client := anthropicmocks.NewMockClient(t)
	client.On("CreateMessage", mock.Anything, mock.Anything).
		Return(nil, resilience.NewTransientError(errors.New("upstream down"), 503)).Once()
	e := newTestExtractor(t, client, config.PipelineConfig{BreakerThreshold: 1})

	first := e.Extract(context.Background(), testMeta(), testDocs())
	assert.Equal(t, "llm_transport_error", first.DegradedReason)

	second := e.Extract(context.Background(), testMeta(), testDocs())
	assert.Equal(t, model.TierKeyword, second.Tier)
	assert.Equal(t, "breaker_open", second.DegradedReason)
	client.AssertNumberOfCalls(t, "CreateMessage", 1)
}

func TestLoadRules_OverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
rules:
  - category: av
    terms: ["teleprompter"]
    patterns: ['\d+\s*inch display']
`), 0o644))

	e := newTestExtractor(t, nil, config.PipelineConfig{KeywordRulesPath: path})

	b := e.KeywordTier(model.NoticeMetadata{}, []model.SourceDocument{{
		Filename: "sow.txt",
		Text:     "Provide one teleprompter and a 75 inch display at the podium.",
	}})

	assert.Equal(t, "Provide one teleprompter and a 75 inch display at the podium.", b.AV["teleprompter"])
	assert.Equal(t, "Provide one teleprompter and a 75 inch display at the podium.", b.AV["75 inch display"])
	// custom table replaces the defaults entirely
	b2 := e.KeywordTier(model.NoticeMetadata{}, []model.SourceDocument{{
		Filename: "sow.txt",
		Text:     "Coffee break service is required.",
	}})
	assert.Empty(t, b2.Catering)
}

func TestLoadRules_UnknownCategory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
rules:
  - category: janitorial
    terms: ["mop"]
`), 0o644))

	_, err := New(nil, config.AnthropicConfig{}, config.PipelineConfig{KeywordRulesPath: path})
	assert.Error(t, err)
}

func TestLoadRules_MissingFile(t *testing.T) {
	_, err := New(nil, config.AnthropicConfig{}, config.PipelineConfig{KeywordRulesPath: "/nonexistent/rules.yaml"})
	assert.Error(t, err)
}

func TestExtract_FallbackMatchesKeywordTier(t *testing.T) {
	client := anthropicmocks.NewMockClient(t)
	client.On("CreateMessage", mock.Anything, mock.Anything).
		Return(nil, errors.New("upstream down")).Once()
	e := newTestExtractor(t, client, config.PipelineConfig{})

	res := e.Extract(context.Background(), testMeta(), testDocs())

	require.Equal(t, model.TierKeyword, res.Tier)
	assert.Equal(t, e.KeywordTier(testMeta(), testDocs()), res.Bundle)
}

func TestBuildPrompt_TrimsDescriptionFirst(t *testing.T) {
	e := newTestExtractor(t, nil, config.PipelineConfig{MaxInputTokens: 200})

	meta := testMeta()
	long := make([]byte, 10000)
	for i := range long {
		long[i] = 'x'
	}
	meta.Description = string(long)

	prompt := buildPrompt(meta, testDocs(), e.maxInputChars)

	assert.LessOrEqual(t, len(prompt), e.maxInputChars)
	// document text survives description trimming
	assert.Contains(t, prompt, "general session")
}

func TestBuildPrompt_TruncatesAtRuneBoundary(t *testing.T) {
	meta := testMeta()
	meta.Description = strings.Repeat("facilités de conférence et hôtel à proximité. ", 500)
	docs := []model.SourceDocument{{
		Filename: "sow.txt",
		Text:     strings.Repeat("salle de réunion équipée pour 500 personnes. ", 500),
	}}

	for _, budget := range []int{0, 101, 500, 997, 2000, 4003} {
		prompt := buildPrompt(meta, docs, budget)
		assert.True(t, utf8.ValidString(prompt), "budget %d", budget)
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		in   string
		max  int
		want string
	}{
		{"plain", 10, "plain"},
		{"plain", 3, "pla"},
		{"héllo", 2, "h"},
		{"héllo", 3, "hé"},
		{"日本語", 4, "日"},
		{"abc", 0, ""},
		{"abc", -1, ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, truncate(tt.in, tt.max), "%q max=%d", tt.in, tt.max)
	}
}
