package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/phrazzld/scry-vocab/internal/config"
	"github.com/phrazzld/scry-vocab/internal/platform/logger"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// rootOptions carries state shared by every subcommand.
type rootOptions struct {
	configFile string
	v          *viper.Viper
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{v: viper.New()}

	cmd := &cobra.Command{
		Use:   "vocab",
		Short: "Review vocabulary flashcards with spaced repetition",
		Long: `vocab keeps a catalog of vocabulary cards and schedules each one for review
with an SM-2 style algorithm. Cards you mark as mastered come back after growing
intervals; cards you are still learning come back the next day.

Configuration is read from config.yaml in the working directory (or --config),
then from VOCAB_* environment variables, then from flags.`,
		SilenceUsage: true,
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.configFile, "config", "", "path to a YAML config file")
	flags.String("log-level", "", "log level (debug, info, warn, error)")
	flags.String("database-driver", "", "storage backend (sqlite, postgres)")
	flags.String("database-url", "", "SQLite DSN or PostgreSQL URL")
	_ = opts.v.BindPFlag("log_level", flags.Lookup("log-level"))
	_ = opts.v.BindPFlag("database.driver", flags.Lookup("database-driver"))
	_ = opts.v.BindPFlag("database.url", flags.Lookup("database-url"))

	cmd.AddCommand(
		newMigrateCmd(opts),
		newImportCmd(opts),
		newCandidatesCmd(opts),
		newReviewCmd(opts),
	)
	return cmd
}

// setup loads the configuration and installs the logger. Logs go to the
// command's error stream so that stdout carries only command output.
func (o *rootOptions) setup(cmd *cobra.Command) (*config.Config, *slog.Logger, error) {
	cfg, err := config.LoadFrom(o.v, o.configFile)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	l, err := logger.Setup(logger.LoggerConfig{
		Level: cfg.LogLevel,
		Out:   cmd.ErrOrStderr(),
		CI:    logger.DetectCI(os.Getenv),
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to set up logger: %w", err)
	}

	l.Debug("configuration loaded",
		"log_level", cfg.LogLevel,
		"database_driver", cfg.Database.Driver,
		"queue_size", cfg.Persistence.QueueSize,
		"workers", cfg.Persistence.Workers)
	return cfg, l, nil
}
