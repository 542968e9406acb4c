package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/automaxprocs/maxprocs"

	"github.com/coreybb/quire/config"
)

type commandContext struct {
	configFlag string
	cfg        *config.Config
}

func newRootCommand() *cobra.Command {
	cc := &commandContext{}

	rootCmd := &cobra.Command{
		Use:           "quire",
		Short:         "Assemble blog posts into PDF and EPUB books",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(strings.TrimSpace(cc.configFlag))
			if err != nil {
				return err
			}
			cc.cfg = cfg
			setupLogger(cfg)

			// Worker counts derive from GOMAXPROCS, so respect container CPU quotas first.
			_, _ = maxprocs.Set(maxprocs.Logger(func(format string, args ...any) {
				slog.Debug(fmt.Sprintf(format, args...))
			}))
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&cc.configFlag, "config", "c", "", "Configuration file path (.toml or .yaml)")

	rootCmd.AddCommand(newServeCommand(cc))
	rootCmd.AddCommand(newMigrateCommand(cc))
	rootCmd.AddCommand(newGenerateCommand(cc))
	rootCmd.AddCommand(newStatusCommand(cc))
	rootCmd.AddCommand(newReclaimCommand(cc))

	return rootCmd
}

func setupLogger(cfg *config.Config) {
	level, _ := cfg.LogLevel()
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Logging.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))
}
