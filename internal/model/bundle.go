package model

// ExtractionTier identifies which strategy produced a requirement bundle.
type ExtractionTier string

const (
	TierLLM     ExtractionTier = "llm"
	TierKeyword ExtractionTier = "keyword"
)

// GeneralNote is a requirement that doesn't fit one of the six categories.
type GeneralNote struct {
	Source string `json:"source"`
	Text   string `json:"text"`
}

// Bundle is the structured output of requirement extraction. It is total
// over the six categories: every category map is always non-nil, possibly
// empty. A missing category is not a valid state.
type Bundle struct {
	Room       map[string]any `json:"room_requirements"`
	Conference map[string]any `json:"conference_requirements"`
	AV         map[string]any `json:"av_requirements"`
	Catering   map[string]any `json:"catering_requirements"`
	Compliance map[string]any `json:"compliance_requirements"`
	Pricing    map[string]any `json:"pricing_requirements"`
	General    []GeneralNote  `json:"general_requirements"`
}

// NewBundle returns a bundle with all six category maps initialized.
func NewBundle() *Bundle {
	return &Bundle{
		Room:       map[string]any{},
		Conference: map[string]any{},
		AV:         map[string]any{},
		Catering:   map[string]any{},
		Compliance: map[string]any{},
		Pricing:    map[string]any{},
	}
}

// Normalize fills any nil category map so the bundle satisfies the totality
// invariant. JSON decoding of a partial LLM response can leave categories
// nil; Normalize is always called before the bundle is handed downstream.
func (b *Bundle) Normalize() {
	if b.Room == nil {
		b.Room = map[string]any{}
	}
	if b.Conference == nil {
		b.Conference = map[string]any{}
	}
	if b.AV == nil {
		b.AV = map[string]any{}
	}
	if b.Catering == nil {
		b.Catering = map[string]any{}
	}
	if b.Compliance == nil {
		b.Compliance = map[string]any{}
	}
	if b.Pricing == nil {
		b.Pricing = map[string]any{}
	}
}

// Empty reports whether no category has any entries.
func (b *Bundle) Empty() bool {
	return len(b.Room) == 0 && len(b.Conference) == 0 && len(b.AV) == 0 &&
		len(b.Catering) == 0 && len(b.Compliance) == 0 && len(b.Pricing) == 0 &&
		len(b.General) == 0
}
