package requirements

import (
	"os"
	"regexp"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/zgr-ai/sow-cli/internal/model"
)

// keywordRule maps trigger terms and patterns to one of the six
// requirement categories. Rules are applied in order and the scan is
// fully deterministic: same inputs, same bundle, every time.
type keywordRule struct {
	Category string   `yaml:"category"`
	Terms    []string `yaml:"terms"`
	Patterns []string `yaml:"patterns,omitempty"`

	compiled []*regexp.Regexp
}

type rulesFile struct {
	Rules []keywordRule `yaml:"rules"`
}

func defaultRules() []keywordRule {
	rules := []keywordRule{
		{
			Category: "room",
			Terms: []string{
				"lodging", "room block", "sleeping rooms", "accommodation",
				"hotel rooms", "check-in", "check-out", "attrition",
			},
		},
		{
			Category: "conference",
			Terms: []string{
				"general session", "breakout", "meeting space", "conference",
				"training", "attendees", "registration", "seating",
			},
		},
		{
			Category: "av",
			Terms: []string{
				"projector", "lumens", "screen", "audio", "microphone",
				"power strip", "hdmi", "adapter", "a/v",
			},
			Patterns: []string{`\d[\d,]*\s*lumens`},
		},
		{
			Category: "catering",
			Terms: []string{
				"catering", "refreshment", "coffee break", "beverage",
				"lunch", "breakfast", "menu", "per person",
			},
		},
		{
			Category: "compliance",
			Terms: []string{
				"far clause", "per diem", "tax exempt", "tax exemption",
				"certification", "security clearance", "section 508",
				"compliance",
			},
		},
		{
			Category: "pricing",
			Terms: []string{
				"firm fixed price", "unit price", "payment", "invoice",
				"pricing", "quote", "cost breakdown",
			},
		},
	}
	mustCompile(rules)
	return rules
}

// loadRules reads a YAML rules-override file. The file replaces the
// default table entirely so operators control rule order too.
func loadRules(path string) ([]keywordRule, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "requirements: read rules file %s", path)
	}
	var f rulesFile
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, eris.Wrapf(err, "requirements: parse rules file %s", path)
	}
	if len(f.Rules) == 0 {
		return nil, eris.Errorf("requirements: rules file %s has no rules", path)
	}
	for _, r := range f.Rules {
		if categoryMap(model.NewBundle(), r.Category) == nil {
			return nil, eris.Errorf("requirements: rules file %s: unknown category %q", path, r.Category)
		}
	}
	rules := f.Rules
	for i := range rules {
		for _, p := range rules[i].Patterns {
			re, err := regexp.Compile("(?i)" + p)
			if err != nil {
				return nil, eris.Wrapf(err, "requirements: rules file %s: pattern %q", path, p)
			}
			rules[i].compiled = append(rules[i].compiled, re)
		}
	}
	return rules, nil
}

func mustCompile(rules []keywordRule) {
	for i := range rules {
		for _, p := range rules[i].Patterns {
			rules[i].compiled = append(rules[i].compiled, regexp.MustCompile("(?i)"+p))
		}
	}
}

// KeywordTier scans metadata and document text for trigger terms. Each
// hit records the containing sentence under the matched term. It cannot
// fail; a notice with no matches yields an empty (but total) bundle.
func (e *Extractor) KeywordTier(meta model.NoticeMetadata, docs []model.SourceDocument) *model.Bundle {
	bundle := model.NewBundle()

	scan := func(text string) {
		for _, sentence := range sentences(text) {
			lower := strings.ToLower(sentence)
			for _, rule := range e.rules {
				target := categoryMap(bundle, rule.Category)
				if target == nil {
					continue
				}
				for _, term := range rule.Terms {
					if !strings.Contains(lower, strings.ToLower(term)) {
						continue
					}
					if _, seen := target[term]; !seen {
						target[term] = sentence
					}
				}
				for _, re := range rule.compiled {
					match := re.FindString(sentence)
					if match == "" {
						continue
					}
					key := strings.ToLower(match)
					if _, seen := target[key]; !seen {
						target[key] = sentence
					}
				}
			}
		}
	}

	scan(meta.Title)
	scan(meta.Description)
	for _, d := range docs {
		scan(d.Text)
	}

	title := strings.ToLower(meta.Title)
	if containsAny(title, "room", "lodging", "accommodation") {
		bundle.Room["required"] = true
	}
	if containsAny(title, "conference", "meeting", "training") {
		bundle.Conference["required"] = true
	}

	if meta.Description != "" {
		bundle.General = append(bundle.General, model.GeneralNote{
			Source: "metadata",
			Text:   meta.Description,
		})
	}
	return bundle
}

func containsAny(s string, terms ...string) bool {
	for _, t := range terms {
		if strings.Contains(s, t) {
			return true
		}
	}
	return false
}

func categoryMap(b *model.Bundle, category string) map[string]any {
	switch category {
	case "room":
		return b.Room
	case "conference":
		return b.Conference
	case "av":
		return b.AV
	case "catering":
		return b.Catering
	case "compliance":
		return b.Compliance
	case "pricing":
		return b.Pricing
	default:
		return nil
	}
}

// sentences splits text into scan units: newline first, then sentence
// boundaries within each line. Units are trimmed and empties dropped.
func sentences(text string) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		for _, s := range splitSentence(line) {
			s = strings.TrimSpace(s)
			if s != "" {
				out = append(out, s)
			}
		}
	}
	return out
}

func splitSentence(line string) []string {
	var parts []string
	start := 0
	for i := 0; i < len(line); i++ {
		switch line[i] {
		case '.', '!', '?':
			// A period only ends a sentence when followed by whitespace,
			// so "6:00 A.M." and "3.5" stay intact.
			if i+1 < len(line) && line[i+1] != ' ' && line[i+1] != '\t' {
				continue
			}
			parts = append(parts, line[start:i+1])
			start = i + 1
		}
	}
	if start < len(line) {
		parts = append(parts, line[start:])
	}
	return parts
}
