package rank

import (
	"sort"
	"strings"
	"unicode"

	"github.com/feedwise/feedwise/internal/config"
	"github.com/feedwise/feedwise/internal/feed"
)

// exactPhraseBonus is the flat score credit for the full query appearing
// verbatim in a title.
const exactPhraseBonus = 10.0

// KeywordScorer scores items against a query with term-frequency
// heuristics: an exact-phrase title bonus, title terms weighted over
// body terms, and a per-field cap on repeated-term credit so long
// documents cannot inflate their score. Matching is token-based, so
// "go" matches the word and not a fragment of "category". It makes no
// network calls and is the always-available floor of the fallback chain.
type KeywordScorer struct {
	titleWeight float64
	termCap     int
	minTermLen  int
}

// NewKeywordScorer builds a scorer from config, applying defaults for
// unset fields.
func NewKeywordScorer(cfg config.SearchConfig) *KeywordScorer {
	s := &KeywordScorer{
		titleWeight: cfg.TitleWeight,
		termCap:     cfg.TermCap,
		minTermLen:  cfg.MinTermLength,
	}
	if s.titleWeight <= 0 {
		s.titleWeight = 3
	}
	if s.termCap <= 0 {
		s.termCap = 10
	}
	return s
}

// Terms tokenizes a query for per-term frequency scoring: lowercase,
// punctuation-trimmed, terms shorter than the configured minimum
// dropped. The minimum applies only here; the exact-phrase check in
// Score keeps every token, so short queries like "go" still match.
func (s *KeywordScorer) Terms(query string) []string {
	tokens := tokenize(query)
	terms := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		if len([]rune(tok)) < s.minTermLen {
			continue
		}
		terms = append(terms, tok)
	}
	return terms
}

// Score ranks items against query, highest first, ties broken by item ID
// ascending. Items that match nothing are omitted. A blank query returns
// an empty slice, not an error.
func (s *KeywordScorer) Score(query string, items []*feed.Item) []Candidate {
	phrase := tokenize(query)
	if len(phrase) == 0 {
		return []Candidate{}
	}
	terms := s.Terms(query)

	candidates := make([]Candidate, 0, len(items))
	for _, it := range items {
		score := s.scoreItem(phrase, terms, it)
		if score <= 0 {
			continue
		}
		candidates = append(candidates, Candidate{
			Item:    it,
			Keyword: score,
			Signal:  SignalKeyword,
		})
	}

	sortCandidates(candidates, func(c Candidate) float64 { return c.Keyword })
	return candidates
}

func (s *KeywordScorer) scoreItem(phrase, terms []string, it *feed.Item) float64 {
	title := tokenize(it.Title)
	body := tokenize(it.Text())

	var score float64
	if containsSequence(title, phrase) {
		score += exactPhraseBonus
	}
	for _, term := range terms {
		score += s.titleWeight * float64(cappedCount(title, term, s.termCap))
		score += float64(cappedCount(body, term, s.termCap))
	}
	return score
}

// tokenize lowercases text, splits on whitespace, and trims leading and
// trailing punctuation from each token.
func tokenize(text string) []string {
	fields := strings.Fields(strings.ToLower(text))
	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.TrimFunc(f, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r)
		})
		if f != "" {
			tokens = append(tokens, f)
		}
	}
	return tokens
}

// containsSequence reports whether tokens contains phrase as a
// contiguous run.
func containsSequence(tokens, phrase []string) bool {
	if len(phrase) == 0 {
		return false
	}
	for i := 0; i+len(phrase) <= len(tokens); i++ {
		match := true
		for j, p := range phrase {
			if tokens[i+j] != p {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}

// cappedCount counts tokens equal to term, capped at limit.
func cappedCount(tokens []string, term string, limit int) int {
	n := 0
	for _, tok := range tokens {
		if tok == term {
			n++
			if n == limit {
				break
			}
		}
	}
	return n
}

// sortCandidates orders by key descending, item ID ascending on ties.
func sortCandidates(cs []Candidate, key func(Candidate) float64) {
	sort.SliceStable(cs, func(i, j int) bool {
		ki, kj := key(cs[i]), key(cs[j])
		if ki != kj {
			return ki > kj
		}
		return cs[i].Item.ID < cs[j].Item.ID
	})
}
