// Package servecmder provides the serve command that runs the drift server.
package servecmder

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/papercomputeco/drift/api"
	"github.com/papercomputeco/drift/api/mcp"
	"github.com/papercomputeco/drift/pkg/config"
	"github.com/papercomputeco/drift/pkg/credentials"
	"github.com/papercomputeco/drift/pkg/dotdir"
	embeddingutils "github.com/papercomputeco/drift/pkg/embeddings/utils"
	"github.com/papercomputeco/drift/pkg/eventstream"
	eventstreamutils "github.com/papercomputeco/drift/pkg/eventstream/utils"
	"github.com/papercomputeco/drift/pkg/llm/provider"
	"github.com/papercomputeco/drift/pkg/logger"
	"github.com/papercomputeco/drift/pkg/metrics"
	"github.com/papercomputeco/drift/tracker"
	"github.com/papercomputeco/drift/tracker/worker"
)

const journalFile = "journal.db"

// flagKeys are the registry flags "drift serve" accepts.
var flagKeys = []string{
	config.FlagListen,
	config.FlagProvider,
	config.FlagUpstream,
	config.FlagModel,
	config.FlagAPIKey,
	config.FlagEmbeddingProv,
	config.FlagEmbeddingTgt,
	config.FlagEmbeddingModel,
	config.FlagEmbeddingCache,
	config.FlagStrictFloor,
	config.FlagDecayRate,
	config.FlagJournalProvider,
	config.FlagJournalTarget,
	config.FlagJournalTopic,
	config.FlagJournalSQLite,
}

type serveCommander struct {
	configDir string
	debug     bool
	cfg       *config.Config

	// flag destinations; values are read back through viper
	listen, providerType, upstream, model, apiKey string
	embeddingProvider, embeddingTarget, embeddingModel string
	embeddingCacheSize                                 int
	strictFloor, decayRate                             float64
	journalProvider, journalTarget, journalTopic       string
	journalSQLite                                      string

	logger *zap.Logger
}

const serveLongDesc string = `Run the drift server.

The server answers intents through the configured completion provider,
scores every answer for drift against the conversation anchor and the
previous answer, and exposes:

  POST /generate   stream an answer as NDJSON, ending with its drift record
  POST /decision   accept, realign or reject the conversation
  POST /reset      start over
  GET  /history    the anchor, iteration and recorded turns
  GET  /metrics    Prometheus metrics
  /mcp             the same operations as MCP tools

Flags override DRIFT_* environment variables, which override config.toml.

Examples:
  drift serve
  drift serve --provider openai --upstream https://api.openai.com --model gpt-3.5-turbo-instruct
  drift serve --journal-provider kafka --journal-target localhost:9092`

const serveShortDesc string = "Run the drift server"

func NewServeCmd() *cobra.Command {
	cmder := &serveCommander{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: serveShortDesc,
		Long:  serveLongDesc,
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			cmder.configDir, _ = cmd.Flags().GetString("config-dir")

			v, err := config.InitViper(cmder.configDir)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			config.BindRegisteredFlags(v, cmd, config.Flags, flagKeys)
			cmder.cfg = config.FromViper(v)
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %w", err)
			}
			return cmder.run()
		},
	}

	config.AddStringFlag(cmd, config.Flags, config.FlagListen, &cmder.listen)
	config.AddStringFlag(cmd, config.Flags, config.FlagProvider, &cmder.providerType)
	config.AddStringFlag(cmd, config.Flags, config.FlagUpstream, &cmder.upstream)
	config.AddStringFlag(cmd, config.Flags, config.FlagModel, &cmder.model)
	config.AddStringFlag(cmd, config.Flags, config.FlagAPIKey, &cmder.apiKey)
	config.AddStringFlag(cmd, config.Flags, config.FlagEmbeddingProv, &cmder.embeddingProvider)
	config.AddStringFlag(cmd, config.Flags, config.FlagEmbeddingTgt, &cmder.embeddingTarget)
	config.AddStringFlag(cmd, config.Flags, config.FlagEmbeddingModel, &cmder.embeddingModel)
	config.AddIntFlag(cmd, config.Flags, config.FlagEmbeddingCache, &cmder.embeddingCacheSize)
	config.AddFloatFlag(cmd, config.Flags, config.FlagStrictFloor, &cmder.strictFloor)
	config.AddFloatFlag(cmd, config.Flags, config.FlagDecayRate, &cmder.decayRate)
	config.AddStringFlag(cmd, config.Flags, config.FlagJournalProvider, &cmder.journalProvider)
	config.AddStringFlag(cmd, config.Flags, config.FlagJournalTarget, &cmder.journalTarget)
	config.AddStringFlag(cmd, config.Flags, config.FlagJournalTopic, &cmder.journalTopic)
	config.AddStringFlag(cmd, config.Flags, config.FlagJournalSQLite, &cmder.journalSQLite)

	return cmd
}

func (c *serveCommander) run() error {
	c.logger = logger.NewLogger(c.debug)
	defer func() { _ = c.logger.Sync() }()

	cfg := c.cfg
	m := metrics.New()

	apiKey, err := c.resolveAPIKey()
	if err != nil {
		return err
	}

	completer, err := provider.New(provider.Config{
		ProviderType: cfg.Completion.Provider,
		TargetURL:    cfg.Completion.Target,
		Model:        cfg.Completion.Model,
		APIKey:       apiKey,
	})
	if err != nil {
		return fmt.Errorf("creating completer: %w", err)
	}

	embedder, err := embeddingutils.NewEmbedder(&embeddingutils.NewEmbedderOpts{
		ProviderType: cfg.Embedding.Provider,
		TargetURL:    cfg.Embedding.Target,
		Model:        cfg.Embedding.Model,
		CacheSize:    cfg.Embedding.CacheSize,
	})
	if err != nil {
		return fmt.Errorf("creating embedder: %w", err)
	}
	defer embedder.Close()

	trackerConfig := tracker.Config{
		Completer: completer,
		Embedder:  embedder,
		Weights:   cfg.Weights(),
		Model:     cfg.Completion.Model,
		Metrics:   m,
		Logger:    c.logger,
	}

	publisher, err := c.newPublisher()
	if err != nil {
		return err
	}
	if publisher != nil {
		defer publisher.Close()

		pool, err := worker.NewPool(&worker.Config{
			Publisher: publisher,
			Logger:    c.logger,
		})
		if err != nil {
			return fmt.Errorf("creating journal pool: %w", err)
		}
		// Close the pool before the publisher so queued events drain.
		defer pool.Close()
		trackerConfig.Journal = pool
	}

	t, err := tracker.New(trackerConfig)
	if err != nil {
		return fmt.Errorf("creating tracker: %w", err)
	}

	mcpServer, err := mcp.NewServer(mcp.Config{
		Tracker: t,
		Logger:  c.logger,
	})
	if err != nil {
		return fmt.Errorf("creating MCP server: %w", err)
	}

	server := api.NewServer(api.Config{
		ListenAddr: cfg.Server.Listen,
		Metrics:    m,
		MCPHandler: mcpServer.Handler(),
	}, t, c.logger)

	c.logger.Info("drift configured",
		zap.String("completion_provider", completer.Name()),
		zap.String("completion_model", cfg.Completion.Model),
		zap.String("embedding_provider", cfg.Embedding.Provider),
		zap.String("embedding_model", cfg.Embedding.Model),
		zap.Int("embedding_cache_size", cfg.Embedding.CacheSize),
		zap.Float64("strict_floor", cfg.Drift.StrictFloor),
		zap.Float64("decay_rate", cfg.Drift.DecayRate),
		zap.String("journal", cfg.Journal.Provider),
	)

	errChan := make(chan error, 1)
	go func() {
		if err := server.Run(); err != nil {
			errChan <- fmt.Errorf("API server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return err
	case sig := <-sigChan:
		c.logger.Info("received signal, shutting down", zap.String("signal", sig.String()))
		return server.Shutdown()
	}
}

// resolveAPIKey falls back from completion.api_key to the provider's
// environment variable and then to credentials.toml.
func (c *serveCommander) resolveAPIKey() (string, error) {
	mgr, err := credentials.NewManager(c.configDir)
	if err != nil {
		return "", fmt.Errorf("loading credentials: %w", err)
	}

	key, err := mgr.ResolveKey(c.cfg.Completion.Provider, c.cfg.Completion.APIKey)
	if err != nil {
		return "", fmt.Errorf("loading credentials: %w", err)
	}
	return key, nil
}

// newPublisher returns nil when journaling is disabled.
func (c *serveCommander) newPublisher() (eventstream.Publisher, error) {
	j := c.cfg.Journal
	if j.Provider == "" || j.Provider == eventstreamutils.ProviderNone {
		return nil, nil
	}

	path := j.SQLitePath
	if j.Provider == eventstreamutils.ProviderSQLite && path == "" {
		dir, err := dotdir.NewManager().Target(c.configDir)
		if err != nil {
			return nil, fmt.Errorf("resolving journal directory: %w", err)
		}
		path = filepath.Join(dir, journalFile)
	}

	publisher, err := eventstreamutils.NewPublisher(&eventstreamutils.NewPublisherOpts{
		ProviderType: j.Provider,
		Target:       j.Target,
		Topic:        j.Topic,
		SQLitePath:   path,
	})
	if err != nil {
		return nil, fmt.Errorf("creating journal: %w", err)
	}

	c.logger.Info("journaling events",
		zap.String("provider", j.Provider),
		zap.String("target", j.Target),
		zap.String("sqlite_path", path),
	)
	return publisher, nil
}
