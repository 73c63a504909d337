package requirements

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/rotisserie/eris"

	"github.com/zgr-ai/sow-cli/internal/model"
	"github.com/zgr-ai/sow-cli/pkg/anthropic"
)

const systemText = `You are a government contracting analyst extracting hotel and conference requirements from SAM.gov solicitation documents. Return ONLY a valid JSON object, no prose, matching this shape:
{
  "room_requirements": {},
  "conference_requirements": {},
  "av_requirements": {},
  "catering_requirements": {},
  "compliance_requirements": {},
  "pricing_requirements": {},
  "general_requirements": [{"source": "<filename or metadata>", "text": "<requirement>"}]
}
Populate each category map with key/value pairs for every concrete requirement you find (counts, capacities, dates, equipment specs, FAR clauses, payment terms). Use the exact numbers and wording from the documents. Leave a category as an empty object when the documents say nothing about it.`

const userPromptFormat = `NOTICE ID: %s
TITLE: %s
AGENCY: %s
NAICS: %s
RESPONSE DEADLINE: %s
DESCRIPTION:
%s

DOCUMENTS:
%s

Extract the requirements into the JSON shape given in the system prompt.`

// LLMTier makes a single CreateMessage call and strictly parses the
// response. Any transport or parse failure is returned to the caller,
// which decides the fallback; this function never retries.
func (e *Extractor) LLMTier(ctx context.Context, meta model.NoticeMetadata, docs []model.SourceDocument) (*model.Bundle, error) {
	prompt := buildPrompt(meta, docs, e.maxInputChars)

	resp, err := e.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     e.model,
		MaxTokens: e.maxTokens,
		System:    []anthropic.SystemBlock{{Text: systemText}},
		Messages: []anthropic.Message{
			{Role: "user", Content: prompt},
		},
	})
	if err != nil {
		return nil, eris.Wrap(err, "requirements: llm tier")
	}
	resp.Usage.LogCost(e.model, "extract_requirements")

	bundle := &model.Bundle{}
	cleaned := cleanJSON(resp.Text())
	if err := json.Unmarshal([]byte(cleaned), bundle); err != nil {
		return nil, eris.Wrap(err, "requirements: parse llm response")
	}
	bundle.Normalize()
	return bundle, nil
}

// buildPrompt assembles the user prompt within a character budget.
// Document text is what the requirements actually live in, so when the
// budget is tight the notice description is cut before any document.
func buildPrompt(meta model.NoticeMetadata, docs []model.SourceDocument, budget int) string {
	docsSection := buildDocsSection(docs)
	description := meta.Description

	overhead := len(userPromptFormat) + len(meta.NoticeID) + len(meta.Title) +
		len(meta.Agency) + len(meta.NAICSCode) + len(meta.ResponseDeadline)

	remaining := budget - overhead - len(docsSection)
	if remaining < 0 {
		remaining = 0
	}
	description = truncate(description, remaining)

	// If documents alone blow the budget, trim them from the tail; the
	// description has already been dropped at this point.
	if maxDocs := budget - overhead; maxDocs > 0 {
		docsSection = truncate(docsSection, maxDocs)
	}

	return fmt.Sprintf(userPromptFormat,
		meta.NoticeID, meta.Title, meta.Agency, meta.NAICSCode,
		meta.ResponseDeadline, description, docsSection)
}

// truncate cuts s to at most max bytes without splitting a multi-byte rune.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	if max < 0 {
		max = 0
	}
	for max > 0 && !utf8.RuneStart(s[max]) {
		max--
	}
	return s[:max]
}

func buildDocsSection(docs []model.SourceDocument) string {
	if len(docs) == 0 {
		return "(no documents available)"
	}
	var parts []string
	for _, d := range docs {
		parts = append(parts, fmt.Sprintf("--- %s ---\n%s", d.Filename, d.Text))
	}
	return strings.Join(parts, "\n\n")
}

// cleanJSON extracts a JSON object from text that may contain markdown
// code fences or other wrapping.
func cleanJSON(text string) string {
	text = strings.TrimSpace(text)

	// Strip markdown code fences.
	if strings.HasPrefix(text, "```json") {
		text = strings.TrimPrefix(text, "```json")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	} else if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	}

	// Find first { and last }.
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		text = text[start : end+1]
	}

	return strings.TrimSpace(text)
}
