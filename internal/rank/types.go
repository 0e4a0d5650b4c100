// Package rank implements the hybrid retrieval pipeline: keyword
// scoring, semantic similarity over cached embeddings, and their blended
// combination with an explicit fallback chain. One pipeline serves all
// modes; the Mode enum replaces separate per-mode search functions.
package rank

import (
	"github.com/feedwise/feedwise/internal/feed"
)

// Mode selects which signals the blender uses.
type Mode int

const (
	// ModeHybrid blends keyword and semantic scores.
	ModeHybrid Mode = iota

	// ModeKeywordOnly ranks by the keyword scorer alone, no network.
	ModeKeywordOnly

	// ModeSemanticOnly ranks by semantic similarity, with a term-overlap
	// fallback when results run thin.
	ModeSemanticOnly
)

func (m Mode) String() string {
	switch m {
	case ModeHybrid:
		return "hybrid"
	case ModeKeywordOnly:
		return "keyword"
	case ModeSemanticOnly:
		return "semantic"
	default:
		return "unknown"
	}
}

// Signal names which scorer decided a candidate's final rank, reported
// in the per-result breakdown.
type Signal string

const (
	SignalKeyword   Signal = "keyword"
	SignalSemantic  Signal = "semantic"
	SignalHybrid    Signal = "hybrid"
	SignalOverlap   Signal = "overlap"
	SignalRelevance Signal = "relevance"
)

// Candidate is one scored item. Keyword is normalized to [0,1] relative
// to the candidate pool's maximum; Semantic is cosine similarity clamped
// to [0,1]; Blended is the weighted combination. Candidates are
// transient per query and never persisted.
type Candidate struct {
	Item     *feed.Item
	Keyword  float64
	Semantic float64
	Blended  float64
	Signal   Signal
}

// FallbackCause identifies which degradation path answered a query, for
// telemetry. Empty means the requested mode ran at full strength.
type FallbackCause string

const (
	// FallbackNone means no fallback fired.
	FallbackNone FallbackCause = ""

	// FallbackProviderDown means the embedding backend was unavailable
	// or produced no usable vectors, so ranking fell back to keyword
	// order (hybrid) or term overlap (semantic-only).
	FallbackProviderDown FallbackCause = "provider_down"

	// FallbackTimeout means embedding exceeded the per-request deadline.
	FallbackTimeout FallbackCause = "timeout"

	// FallbackThinResults means the semantic result set was topped up
	// from term overlap.
	FallbackThinResults FallbackCause = "thin_results"
)

// Outcome is a completed search: the ranked candidates plus which
// fallback, if any, produced them.
type Outcome struct {
	Candidates []Candidate
	Degraded   FallbackCause
}

// Options tunes one search call.
type Options struct {
	// Mode selects the signal policy. Zero value is ModeHybrid.
	Mode Mode

	// Weight is the semantic weight w in blended = semantic*w +
	// keyword*(1-w). Negative means "use the configured default".
	Weight float64

	// Limit bounds the result count. Non-positive means the configured
	// maximum.
	Limit int
}

// DefaultOptions returns hybrid mode with the configured weight.
func DefaultOptions() Options {
	return Options{Mode: ModeHybrid, Weight: -1}
}
