package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kailas-cloud/kongrag/internal/config"
	logpkg "github.com/kailas-cloud/kongrag/internal/logger"
	"github.com/kailas-cloud/kongrag/internal/metrics"
)

// cli carries the global flags and the state loaded before a subcommand runs.
type cli struct {
	env        string
	configPath string

	cfg    config.Config
	logger *zap.Logger
}

// Execute runs the command tree with SIGINT/SIGTERM cancelling the context.
func Execute(ctx context.Context, args []string) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	root := newRootCmd()
	root.SetArgs(args)
	return root.ExecuteContext(ctx)
}

func newRootCmd() *cobra.Command {
	c := &cli{}

	root := &cobra.Command{
		Use:   "kongrag",
		Short: "Ask questions about 《孔乙己》 with retrieval-augmented generation",
		Long: `kongrag chunks a document, embeds every chunk through an OpenAI-compatible
API and stores the vectors in SQLite, Redis or Valkey. Questions are answered
from the nearest chunks.`,
		PersistentPreRunE:  c.load,
		PersistentPostRunE: c.sync,
		SilenceUsage:       true,
		SilenceErrors:      true,
	}
	root.PersistentFlags().StringVar(&c.env, "env", config.GetEnv(), "environment: selects config/<env>.yaml and the log format")
	root.PersistentFlags().StringVar(&c.configPath, "config", "", "explicit config file (overrides --env lookup)")

	root.AddCommand(
		newIngestCmd(c),
		newRetrieveCmd(c),
		newAskCmd(c),
		newChatCmd(c),
		newToolsCmd(c),
		newServeCmd(c),
		newResetCmd(c),
		newVersionCmd(),
	)
	return root
}

// load reads config, builds the logger and registers metrics.
func (c *cli) load(cmd *cobra.Command, _ []string) error {
	if cmd.Name() == "version" || cmd.Name() == "help" {
		return nil
	}

	var err error
	if c.configPath != "" {
		c.cfg, err = config.LoadFile(c.configPath)
	} else {
		c.cfg, err = config.Load(c.env)
	}
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logEnv := c.env
	if logEnv == "" {
		logEnv = "local"
	}
	c.logger, err = logpkg.NewLogger(logEnv, c.cfg.Logging.Level)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}

	metrics.RegisterAll()
	return nil
}

func (c *cli) sync(*cobra.Command, []string) error {
	if c.logger != nil {
		_ = c.logger.Sync()
	}
	return nil
}
