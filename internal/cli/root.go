// Package cli implements coursectl, a terminal client for the course backend.
package cli

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cuongbtq/coursehub/internal/backend"
	"github.com/cuongbtq/coursehub/internal/guard"
	"github.com/cuongbtq/coursehub/internal/mapping"
	"github.com/cuongbtq/coursehub/internal/poller"
	"github.com/cuongbtq/coursehub/internal/workflow"
	"github.com/cuongbtq/coursehub/shared/logger"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable read by coursectl
const EnvPrefix = "COURSECTL"

// app carries the clients shared by every subcommand
type app struct {
	v       *viper.Viper
	logger  *logger.Logger
	client  *backend.Client
	service *workflow.Service
	poller  *poller.Poller
}

// NewRootCommand builds the coursectl command tree. Flags fall back to
// COURSECTL_* environment variables, then to an optional config file.
func NewRootCommand() *cobra.Command {
	a := &app{v: viper.New()}

	cmd := &cobra.Command{
		Use:           "coursectl",
		Short:         "Drive bulk course inference, course management and search from a terminal",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup()
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if a.logger != nil {
				return a.logger.Close()
			}
			return nil
		},
	}
	cmd.PersistentFlags().SortFlags = false

	flags := cmd.PersistentFlags()
	flags.String("config", "", "optional YAML file with flag defaults")
	flags.String("base-url", "http://localhost:8000", "course backend base URL")
	flags.String("files-url", "", "URL serving /api/upload and /api/download (defaults to base-url)")
	flags.Duration("timeout", 30*time.Second, "HTTP request timeout")
	flags.Duration("interval", poller.DefaultInterval, "task status poll interval")
	flags.Int("max-attempts", poller.DefaultMaxAttempts, "maximum task status requests per wait")
	flags.String("header-split", string(mapping.SplitNaive), "header split strategy: naive or csv")
	flags.String("format", "table", "output format: table, markdown, csv or json")
	flags.String("log-level", "warn", "log level: debug, info, warn or error")

	a.v.SetEnvPrefix(EnvPrefix)
	a.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	a.v.AutomaticEnv()
	a.v.AllowEmptyEnv(false)
	cobra.CheckErr(a.v.BindPFlags(flags))

	cmd.AddCommand(
		a.newPreviewCommand(),
		a.newBulkCommand(),
		a.newManageCommand(),
		a.newStatusCommand(),
		a.newDownloadCommand(),
		a.newSearchCommand(),
	)

	return cmd
}

// setup reads the merged settings and builds the clients
func (a *app) setup() error {
	if path := a.v.GetString("config"); path != "" {
		a.v.SetConfigFile(path)
		if err := a.v.ReadInConfig(); err != nil {
			return fmt.Errorf("failed to read config file: %w", err)
		}
	}

	split := mapping.SplitStrategy(a.v.GetString("header-split"))
	if split != mapping.SplitNaive && split != mapping.SplitCSV {
		return fmt.Errorf("unknown header split %q", split)
	}
	if _, ok := renderers[a.v.GetString("format")]; !ok {
		return fmt.Errorf("unknown output format %q", a.v.GetString("format"))
	}

	appLogger, err := logger.New(&logger.Config{
		Level:      a.v.GetString("log-level"),
		Format:     "console",
		Output:     "stderr",
		TimeFormat: time.Kitchen,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	a.logger = appLogger

	client, err := backend.NewClient(&backend.Config{
		BaseURL:  a.v.GetString("base-url"),
		FilesURL: a.v.GetString("files-url"),
		Timeout:  a.v.GetDuration("timeout"),
	}, appLogger.Component("backend"))
	if err != nil {
		return err
	}
	a.client = client

	a.service = workflow.NewService(client, client, guard.NewMemoryGuard(), workflow.Config{
		HeaderSplit: split,
	}, appLogger.Component("workflow"))

	a.poller = poller.New(client, poller.Config{
		Interval:    a.v.GetDuration("interval"),
		MaxAttempts: a.v.GetInt("max-attempts"),
	}, appLogger.Component("poller"))

	a.logger.Debug("coursectl settings",
		slog.String("base_url", a.v.GetString("base-url")),
		slog.String("files_url", a.v.GetString("files-url")),
		slog.String("format", a.v.GetString("format")),
	)

	return nil
}

func (a *app) split() mapping.SplitStrategy {
	return mapping.SplitStrategy(a.v.GetString("header-split"))
}

func (a *app) format() string {
	return a.v.GetString("format")
}
