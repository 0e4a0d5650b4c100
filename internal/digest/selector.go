package digest

import (
	"github.com/feedwise/feedwise/internal/rank"
	"github.com/feedwise/feedwise/internal/store"
)

// Selection is the outcome of one diversity-constrained walk.
type Selection struct {
	Selected []rank.Candidate
	Rejected []store.Rejection
}

// SelectorConfig tunes the diversity walk.
type SelectorConfig struct {
	// TargetSize is how many items to select. Non-positive means 10.
	TargetSize int

	// PerSourceCap bounds selected items per source. Non-positive
	// means 3.
	PerSourceCap int

	// MinScore rejects candidates with a blended score below it. Zero
	// admits everything.
	MinScore float64
}

// Selector walks a ranked pool in order and emits a bounded final set,
// skipping normalized-URL duplicates and items whose source already hit
// the per-source cap. The walk is greedy, single-pass, and
// order-preserving: it never backfills by loosening a constraint
// mid-walk, trading global optimality for determinism and O(n) cost.
type Selector struct {
	config SelectorConfig
}

// NewSelector builds a selector, applying defaults for unset fields.
func NewSelector(cfg SelectorConfig) *Selector {
	if cfg.TargetSize <= 0 {
		cfg.TargetSize = 10
	}
	if cfg.PerSourceCap <= 0 {
		cfg.PerSourceCap = 3
	}
	return &Selector{config: cfg}
}

// Select walks pool in rank order until the target size is filled or the
// pool is exhausted. A short result from an exhausted pool is a normal
// outcome, not an error. Every skipped item is recorded with a reason.
func (s *Selector) Select(pool []rank.Candidate) Selection {
	sel := Selection{
		Selected: make([]rank.Candidate, 0, s.config.TargetSize),
		Rejected: []store.Rejection{},
	}

	seenURLs := make(map[string]struct{}, s.config.TargetSize)
	perSource := make(map[string]int)

	for _, c := range pool {
		if len(sel.Selected) == s.config.TargetSize {
			break
		}

		if s.config.MinScore > 0 && c.Blended < s.config.MinScore {
			sel.Rejected = append(sel.Rejected, store.Rejection{
				ItemID: c.Item.ID, Reason: store.ReasonBelowThreshold,
			})
			continue
		}

		key := DedupKey(c.Item.URL)
		if _, dup := seenURLs[key]; dup && key != "" {
			sel.Rejected = append(sel.Rejected, store.Rejection{
				ItemID: c.Item.ID, Reason: store.ReasonDuplicateURL,
			})
			continue
		}

		if perSource[c.Item.Source] >= s.config.PerSourceCap {
			sel.Rejected = append(sel.Rejected, store.Rejection{
				ItemID: c.Item.ID, Reason: store.ReasonSourceCapExceeded,
			})
			continue
		}

		seenURLs[key] = struct{}{}
		perSource[c.Item.Source]++
		sel.Selected = append(sel.Selected, c)
	}

	return sel
}

// Record converts a selection into its persistable form.
func (sel Selection) Record(context string) *store.SelectionRecord {
	ids := make([]string, len(sel.Selected))
	for i, c := range sel.Selected {
		ids[i] = c.Item.ID
	}
	return &store.SelectionRecord{
		Context:  context,
		Selected: ids,
		Rejected: sel.Rejected,
	}
}
