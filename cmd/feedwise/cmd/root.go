// Package cmd provides the CLI commands for feedwise.
package cmd

import (
	"context"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/feedwise/feedwise/internal/config"
	"github.com/feedwise/feedwise/internal/digest"
	"github.com/feedwise/feedwise/internal/embed"
	"github.com/feedwise/feedwise/internal/logging"
	"github.com/feedwise/feedwise/internal/rank"
	"github.com/feedwise/feedwise/internal/store"
	"github.com/feedwise/feedwise/pkg/ranker"
	"github.com/feedwise/feedwise/pkg/version"
)

var (
	cfgPath        string
	debugMode      bool
	loggingCleanup func()
)

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().ExecuteContext(context.Background())
}

// NewRootCmd creates the root command for the feedwise CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "feedwise",
		Short: "Hybrid retrieval and ranking for syndicated content",
		Long: `Feedwise ranks syndicated content items with hybrid search:
keyword scoring blended with embedding similarity, degrading gracefully
to keyword-only ranking when the embedding backend is unavailable.

Items are ingested by an upstream collaborator; feedwise reads them from
its store, ranks them for a query or a digest, and applies per-source
and duplicate-URL diversity constraints to the final set.`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.SetVersionTemplate("feedwise version {{.Version}}\n")

	cmd.PersistentFlags().StringVar(&cfgPath, "config", "", "Path to config file")
	cmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging")

	cmd.PersistentPreRunE = setupLogging
	cmd.PersistentPostRun = teardownLogging

	cmd.AddCommand(newSearchCmd())
	cmd.AddCommand(newDigestCmd())
	cmd.AddCommand(newEmbedCmd())
	cmd.AddCommand(newImportCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

func setupLogging(_ *cobra.Command, _ []string) error {
	logCfg := logging.DefaultConfig()
	logCfg.WriteToStderr = false
	if debugMode {
		logCfg.Level = "debug"
	}

	logger, cleanup, err := logging.Setup(logCfg)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)
	loggingCleanup = cleanup
	return nil
}

func teardownLogging(_ *cobra.Command, _ []string) {
	if loggingCleanup != nil {
		loggingCleanup()
		loggingCleanup = nil
	}
}

// pipeline bundles the constructed components a command needs. Close
// releases the store and the embedder.
type pipeline struct {
	config   *config.Config
	store    *store.SQLite
	embedder embed.Embedder
	ranker   *ranker.Ranker
}

func openPipeline() (*pipeline, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}

	st, err := store.OpenSQLite(cfg.Store.Path, cfg.Embeddings.Dimensions)
	if err != nil {
		return nil, err
	}

	embedder, err := embed.NewFromConfig(cfg.Embeddings)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	cache := store.NewDegradingCache(st)

	return &pipeline{
		config:   cfg,
		store:    st,
		embedder: embedder,
		ranker:   ranker.New(cache, embedder, cfg.Search, cfg.Embeddings.Timeout),
	}, nil
}

// digestBuilder constructs the digest builder from the current config,
// after any flag overrides have been applied.
func (p *pipeline) digestBuilder() *digest.Builder {
	blender := rank.NewBlender(store.NewDegradingCache(p.store), p.embedder,
		p.config.Search, p.config.Embeddings.Timeout)
	return digest.NewBuilder(p.store, blender, p.store, p.config.Digest)
}

func (p *pipeline) Close() {
	if err := p.embedder.Close(); err != nil {
		slog.Warn("embedder close failed", slog.String("error", err.Error()))
	}
	if err := p.store.Close(); err != nil {
		slog.Warn("store close failed", slog.String("error", err.Error()))
	}
}
