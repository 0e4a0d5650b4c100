package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/feedwise/feedwise/internal/feed"
)

// digestOptions holds CLI flags for digest.
type digestOptions struct {
	window   time.Duration
	category string
	topic    string
	size     int
	cap      int
	format   string
}

func newDigestCmd() *cobra.Command {
	var opts digestOptions

	cmd := &cobra.Command{
		Use:   "digest",
		Short: "Build a diversity-constrained digest",
		Long: `Build a digest from the stored items in a time window.

Items rank by the upstream relevance signal with an optional semantic
nudge toward a topic; the final set honors a per-source cap and
collapses syndication mirrors by normalized URL. Every skipped item is
reported with its reason.

Examples:
  feedwise digest
  feedwise digest --window 48h --size 15
  feedwise digest --topic "machine learning" --category tech`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDigest(cmd.Context(), cmd, opts)
		},
	}

	cmd.Flags().DurationVarP(&opts.window, "window", "w", 24*time.Hour, "Item window size")
	cmd.Flags().StringVarP(&opts.category, "category", "c", "", "Filter by category")
	cmd.Flags().StringVarP(&opts.topic, "topic", "t", "", "Topic for the semantic nudge")
	cmd.Flags().IntVarP(&opts.size, "size", "n", 0, "Digest size (0 = configured default)")
	cmd.Flags().IntVar(&opts.cap, "source-cap", 0, "Per-source cap (0 = configured default)")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "text", "Output format: text, json")

	return cmd
}

func runDigest(ctx context.Context, cmd *cobra.Command, opts digestOptions) error {
	p, err := openPipeline()
	if err != nil {
		return err
	}
	defer p.Close()

	if opts.size > 0 {
		p.config.Digest.TargetSize = opts.size
	}
	if opts.cap > 0 {
		p.config.Digest.PerSourceCap = opts.cap
	}
	builder := p.digestBuilder()

	now := time.Now()
	sel, err := builder.Build(ctx, feed.Window{
		Since:    now.Add(-opts.window),
		Until:    now,
		Category: opts.category,
	}, opts.topic)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if opts.format == "json" {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(struct {
			Selected any `json:"selected"`
			Rejected any `json:"rejected"`
		}{sel.Selected, sel.Rejected})
	}

	if len(sel.Selected) == 0 {
		fmt.Fprintln(out, "No items in window.")
		return nil
	}
	for i, c := range sel.Selected {
		fmt.Fprintf(out, "%2d. [%.3f] %s\n    %s · %s\n",
			i+1, c.Blended, c.Item.Title, c.Item.Source, c.Item.URL)
	}
	if len(sel.Rejected) > 0 {
		fmt.Fprintf(out, "\nSkipped %d:\n", len(sel.Rejected))
		for _, r := range sel.Rejected {
			fmt.Fprintf(out, "  %s (%s)\n", r.ItemID, r.Reason)
		}
	}
	return nil
}
