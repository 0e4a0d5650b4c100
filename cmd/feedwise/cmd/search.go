package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/feedwise/feedwise/internal/config"
	ferrors "github.com/feedwise/feedwise/internal/errors"
	"github.com/feedwise/feedwise/internal/feed"
	"github.com/feedwise/feedwise/internal/rank"
	"github.com/feedwise/feedwise/internal/store"
)

// searchOptions holds CLI flags for search.
type searchOptions struct {
	limit    int
	mode     string // "hybrid", "keyword", "semantic"
	format   string // "text", "json"
	since    time.Duration
	category string
}

func newSearchCmd() *cobra.Command {
	var opts searchOptions

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search stored items",
		Long: `Search stored items with hybrid ranking.

Keyword scores and embedding similarity are blended into one ranked
list. When the embedding backend is down the command degrades to
keyword-only ordering instead of failing.

Examples:
  feedwise search "vector databases"
  feedwise search "go generics" --mode keyword --limit 5
  feedwise search "llm evaluation" --since 48h --format json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")
			return runSearch(cmd.Context(), cmd, query, opts)
		},
	}

	cmd.Flags().IntVarP(&opts.limit, "limit", "n", 10, "Maximum number of results")
	cmd.Flags().StringVarP(&opts.mode, "mode", "m", "hybrid", "Ranking mode: hybrid, keyword, semantic")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "text", "Output format: text, json")
	cmd.Flags().DurationVar(&opts.since, "since", 7*24*time.Hour, "Only items newer than this")
	cmd.Flags().StringVarP(&opts.category, "category", "c", "", "Filter by category")

	return cmd
}

func runSearch(ctx context.Context, cmd *cobra.Command, query string, opts searchOptions) error {
	mode, err := parseMode(opts.mode)
	if err != nil {
		return err
	}

	p, err := openPipeline()
	if err != nil {
		return err
	}
	defer p.Close()

	items, err := p.store.Items(ctx, feed.Window{
		Since:    time.Now().Add(-opts.since),
		Category: opts.category,
	})
	if err != nil {
		return err
	}

	// The indexed backend narrows the pool through the prebuilt
	// full-text index before ranking; the heuristic scorer needs no
	// pre-filter.
	if p.config.Search.KeywordBackend == "bleve" && mode != rank.ModeSemanticOnly {
		items, err = bleveFilter(ctx, p.config, query, items)
		if err != nil {
			return err
		}
	}

	slog.Info("search started",
		slog.String("query", query),
		slog.String("mode", mode.String()),
		slog.Int("pool", len(items)))

	results, err := p.ranker.SearchWithOptions(ctx, query, items,
		rank.Options{Mode: mode, Weight: -1, Limit: opts.limit})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if opts.format == "json" {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	}

	if len(results) == 0 {
		fmt.Fprintln(out, "No results.")
		return nil
	}
	for i, res := range results {
		fmt.Fprintf(out, "%2d. [%.3f] %s\n    %s · %s (%s)\n",
			i+1, res.Score, res.Item.Title, res.Item.Source, res.Item.URL, res.Signal)
	}
	return nil
}

// bleveFilter intersects the window items with the prebuilt full-text
// index's hits for the query, preserving window and category filtering.
func bleveFilter(ctx context.Context, cfg *config.Config, query string, items []*feed.Item) ([]*feed.Item, error) {
	idx, err := store.NewBleveIndex(store.BleveIndexPath(cfg.Store.Path))
	if err != nil {
		return nil, err
	}
	defer func() { _ = idx.Close() }()

	hits, err := idx.Search(ctx, query, cfg.Search.SemanticBudget)
	if err != nil {
		return nil, err
	}

	matched := make(map[string]struct{}, len(hits))
	for _, h := range hits {
		matched[h.ItemID] = struct{}{}
	}
	filtered := make([]*feed.Item, 0, len(hits))
	for _, it := range items {
		if _, ok := matched[it.ID]; ok {
			filtered = append(filtered, it)
		}
	}
	return filtered, nil
}

func parseMode(s string) (rank.Mode, error) {
	switch strings.ToLower(s) {
	case "hybrid", "":
		return rank.ModeHybrid, nil
	case "keyword":
		return rank.ModeKeywordOnly, nil
	case "semantic":
		return rank.ModeSemanticOnly, nil
	default:
		return 0, ferrors.ValidationError("unknown mode: "+s+" (want hybrid, keyword, or semantic)", nil)
	}
}
