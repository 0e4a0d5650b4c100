package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/feedwise/feedwise/internal/feed"
	"github.com/feedwise/feedwise/internal/store"
)

func newEmbedCmd() *cobra.Command {
	var window time.Duration
	var all bool

	cmd := &cobra.Command{
		Use:   "embed",
		Short: "Backfill embeddings for stored items",
		Long: `Generate embeddings for items that do not have a cached vector yet.

Generation runs in bounded-parallel batches; items the provider fails on
receive deterministic fallback vectors so the backfill always completes.
Cache writes are idempotent, so an interrupted backfill can simply be
re-run.

Examples:
  feedwise embed
  feedwise embed --window 720h
  feedwise embed --all`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runEmbed(cmd.Context(), cmd, window, all)
		},
	}

	cmd.Flags().DurationVarP(&window, "window", "w", 30*24*time.Hour, "Only backfill items newer than this")
	cmd.Flags().BoolVar(&all, "all", false, "Backfill every stored item regardless of age")

	return cmd
}

func runEmbed(ctx context.Context, cmd *cobra.Command, window time.Duration, all bool) error {
	p, err := openPipeline()
	if err != nil {
		return err
	}
	defer p.Close()

	w := feed.Window{}
	if !all {
		w.Since = time.Now().Add(-window)
	}
	items, err := p.store.Items(ctx, w)
	if err != nil {
		return err
	}

	ids := make([]string, len(items))
	for i, it := range items {
		ids[i] = it.ID
	}
	cached, err := p.store.Get(ctx, ids)
	if err != nil {
		return err
	}

	var missing []*feed.Item
	for _, it := range items {
		if _, ok := cached[it.ID]; !ok {
			missing = append(missing, it)
		}
	}

	out := cmd.OutOrStdout()
	if len(missing) == 0 {
		fmt.Fprintf(out, "All %d items already embedded.\n", len(items))
		return nil
	}

	slog.Info("embedding backfill started",
		slog.Int("items", len(items)),
		slog.Int("missing", len(missing)),
		slog.String("model", p.embedder.ModelName()))

	texts := make([]string, len(missing))
	for i, it := range missing {
		texts[i] = it.EmbeddingText()
	}
	vectors, err := p.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return err
	}

	entries := make([]store.VectorEntry, len(missing))
	for i, it := range missing {
		entries[i] = store.VectorEntry{
			ID:     it.ID,
			Vector: vectors[i],
			Model:  p.embedder.ModelName(),
		}
	}
	if err := p.store.PutBatch(ctx, entries); err != nil {
		return err
	}

	fmt.Fprintf(out, "Embedded %d of %d items (%d already cached).\n",
		len(missing), len(items), len(items)-len(missing))
	return nil
}
