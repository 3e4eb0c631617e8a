// Package domain contains the pure data model for the benchmark core:
// sources, questions, resolution series, and forecast records. It has no
// infrastructure dependencies so every other layer can depend on it.
package domain

// Source identifies a question source. Sources come in two closed classes:
// market sources (the question and a community probability exist on an
// external platform) and dataset sources (questions are synthesized from
// templates over a public time series).
type Source string

const (
	// Market sources
	SourceManifold   Source = "manifold"
	SourceMetaculus  Source = "metaculus"
	SourcePolymarket Source = "polymarket"
	SourceRFI        Source = "rfi"

	// Numeric dataset sources
	SourceFRED     Source = "fred"
	SourceYFinance Source = "yfinance"

	// Event-count dataset source
	SourceACLED Source = "acled"

	// Encyclopedic-table dataset source
	SourceWikipedia Source = "wikipedia"
)

// QuestionClass partitions sources by resolution semantics.
type QuestionClass int

const (
	ClassMarket QuestionClass = iota
	ClassNumeric
	ClassEventCount
	ClassEncyclopedic
)

// String returns a human-readable class name for logging.
func (c QuestionClass) String() string {
	switch c {
	case ClassMarket:
		return "market"
	case ClassNumeric:
		return "numeric"
	case ClassEventCount:
		return "event_count"
	case ClassEncyclopedic:
		return "encyclopedic"
	default:
		return "unknown"
	}
}

// sourceClasses is the closed source -> class table. A source absent from
// this table is unknown and must be rejected at validation boundaries.
var sourceClasses = map[Source]QuestionClass{
	SourceManifold:   ClassMarket,
	SourceMetaculus:  ClassMarket,
	SourcePolymarket: ClassMarket,
	SourceRFI:        ClassMarket,
	SourceFRED:       ClassNumeric,
	SourceYFinance:   ClassNumeric,
	SourceACLED:      ClassEventCount,
	SourceWikipedia:  ClassEncyclopedic,
}

// CanonicalSource maps an incoming source string to its canonical Source.
// Historical forecast submissions used "infer" for the RFI platform; the
// alias is folded here so downstream code only sees canonical names.
func CanonicalSource(s string) (Source, bool) {
	if s == "infer" {
		return SourceRFI, true
	}
	src := Source(s)
	_, ok := sourceClasses[src]
	return src, ok
}

// Class returns the resolution class of the source. Unknown sources map to
// ClassMarket; callers must have validated the source first.
func (s Source) Class() QuestionClass {
	return sourceClasses[s]
}

// IsMarket reports whether the source is a prediction-market platform.
func (s Source) IsMarket() bool {
	return sourceClasses[s] == ClassMarket
}

// IsDataset reports whether questions for this source are synthesized from
// a public dataset.
func (s Source) IsDataset() bool {
	c, ok := sourceClasses[s]
	return ok && c != ClassMarket
}

// Known reports whether the source belongs to one of the closed classes.
func (s Source) Known() bool {
	_, ok := sourceClasses[s]
	return ok
}

// MarketSources returns the market sources in stable order.
func MarketSources() []Source {
	return []Source{SourceManifold, SourceMetaculus, SourcePolymarket, SourceRFI}
}

// DatasetSources returns the dataset sources in stable order.
func DatasetSources() []Source {
	return []Source{SourceACLED, SourceFRED, SourceWikipedia, SourceYFinance}
}

// AllSources returns every known source, market sources first.
func AllSources() []Source {
	return append(MarketSources(), DatasetSources()...)
}

// Categories is the closed set of topical tags a question can carry.
// "Other" is a valid stored category but is filtered out during curation.
var Categories = []string{
	"Science & Tech",
	"Healthcare & Biology",
	"Economics & Business",
	"Environment & Energy & Climate",
	"Politics & Governance",
	"Arts & Recreation",
	"Security & Defense",
	"Sports",
	"Other",
}

// CategoryOther is the catch-all category excluded from curated sets.
const CategoryOther = "Other"

// ValidCategory reports whether c is one of the closed category tags.
func ValidCategory(c string) bool {
	for _, cat := range Categories {
		if c == cat {
			return true
		}
	}
	return false
}
