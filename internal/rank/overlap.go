package rank

import (
	"strings"

	"github.com/feedwise/feedwise/internal/feed"
)

// overlapMinTermLen drops short terms in overlap mode; single characters
// and stop-word fragments match everything and rank nothing.
const overlapMinTermLen = 3

// OverlapScorer ranks items by the fraction of distinct query terms that
// appear in the item's text. It is deliberately simpler than the
// frequency-weighted scorer: when semantic search returns a thin result
// set over a small corpus, completeness beats precision, and plain term
// overlap surfaces anything remotely on-topic.
type OverlapScorer struct{}

// Score returns items sharing at least one term with the query, ranked
// by overlap fraction descending, item ID ascending on ties.
func (OverlapScorer) Score(query string, items []*feed.Item) []Candidate {
	terms := overlapTerms(query)
	if len(terms) == 0 {
		return []Candidate{}
	}

	candidates := make([]Candidate, 0, len(items))
	for _, it := range items {
		text := strings.ToLower(it.Title + " " + it.Text())
		matched := 0
		for term := range terms {
			if strings.Contains(text, term) {
				matched++
			}
		}
		if matched == 0 {
			continue
		}
		candidates = append(candidates, Candidate{
			Item:    it,
			Keyword: float64(matched) / float64(len(terms)),
			Signal:  SignalOverlap,
		})
	}

	sortCandidates(candidates, func(c Candidate) float64 { return c.Keyword })
	return candidates
}

func overlapTerms(query string) map[string]struct{} {
	terms := make(map[string]struct{})
	for _, f := range strings.Fields(strings.ToLower(query)) {
		if len([]rune(f)) < overlapMinTermLen {
			continue
		}
		terms[f] = struct{}{}
	}
	return terms
}
