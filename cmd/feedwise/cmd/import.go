package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	ferrors "github.com/feedwise/feedwise/internal/errors"
	"github.com/feedwise/feedwise/internal/feed"
	"github.com/feedwise/feedwise/internal/store"
)

func newImportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import <file.json>",
		Short: "Import items from an ingestion export",
		Long: `Import items from a JSON file produced by the ingestion side.

The file holds an array of items: id, title, source, url, published_at,
and optional summary, body, category, relevance. Existing items with the
same id are replaced.

Example:
  feedwise import items.json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(cmd.Context(), cmd, args[0])
		},
	}
	return cmd
}

// importItem is the wire form of one item in an ingestion export.
type importItem struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Source      string  `json:"source"`
	URL         string  `json:"url"`
	PublishedAt string  `json:"published_at"`
	Summary     string  `json:"summary,omitempty"`
	Body        string  `json:"body,omitempty"`
	Category    string  `json:"category,omitempty"`
	Relevance   float64 `json:"relevance,omitempty"`
}

func (r importItem) toItem() (*feed.Item, error) {
	if r.ID == "" {
		return nil, fmt.Errorf("missing id")
	}
	if r.Title == "" {
		return nil, fmt.Errorf("missing title")
	}
	publishedAt, err := time.Parse(time.RFC3339, r.PublishedAt)
	if err != nil {
		return nil, fmt.Errorf("published_at: %w", err)
	}
	return &feed.Item{
		ID:          r.ID,
		Title:       r.Title,
		Source:      r.Source,
		URL:         r.URL,
		PublishedAt: publishedAt,
		Summary:     r.Summary,
		Body:        r.Body,
		Category:    r.Category,
		Relevance:   r.Relevance,
	}, nil
}

func runImport(ctx context.Context, cmd *cobra.Command, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var raw []importItem
	if err := json.Unmarshal(data, &raw); err != nil {
		return ferrors.ValidationError("import file is not a JSON item array", err)
	}

	items := make([]*feed.Item, 0, len(raw))
	for i, r := range raw {
		it, err := r.toItem()
		if err != nil {
			return ferrors.ValidationError(fmt.Sprintf("item %d: %v", i, err), err)
		}
		items = append(items, it)
	}

	p, err := openPipeline()
	if err != nil {
		return err
	}
	defer p.Close()

	if err := p.store.SaveItems(ctx, items); err != nil {
		return err
	}

	// The indexed keyword backend is maintained at ingest time so
	// queries hit a prebuilt index.
	if p.config.Search.KeywordBackend == "bleve" {
		idx, err := store.NewBleveIndex(store.BleveIndexPath(p.config.Store.Path))
		if err != nil {
			return err
		}
		defer func() { _ = idx.Close() }()
		if err := idx.Index(ctx, items); err != nil {
			return err
		}
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Imported %d items.\n", len(items))
	return nil
}
