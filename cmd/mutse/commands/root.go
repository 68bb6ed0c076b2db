package commands

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"mutse/internal/app"
)

const (
	Version = "0.1.0"
	appName = "mutse"
)

var (
	configPath string
	logLevel   string
	workers    int

	cfg *app.Config
)

func Execute() error {
	return NewRootCmd().Execute()
}

// NewRootCmd builds the command tree with fresh flag state.
func NewRootCmd() *cobra.Command {
	configPath, logLevel, workers, cfg = "", "", 0, nil

	root := &cobra.Command{
		Use:           appName,
		Short:         "MUT-III software analysis toolkit",
		Long:          "Decrypt .exdf data files, decompile .NET assemblies and mirror MUT-III install trees for offline analysis.",
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			loaded, path, err := app.Load(configPath)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("log-level") {
				loaded.LogLevel = logLevel
			}
			if cmd.Flags().Changed("workers") {
				loaded.Workers = workers
			}
			if err := loaded.Validate(); err != nil {
				return err
			}

			logger, err := app.NewLogger(cmd.ErrOrStderr(), loaded.LogLevel)
			if err != nil {
				return err
			}
			slog.SetDefault(logger)
			if path != "" {
				logger.Debug("loaded config", "path", path)
			}
			cfg = loaded
			return nil
		},
	}

	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (default: $MUTSE_CONFIG, ./mutse.yaml, ~/.config/mutse/config.yaml)")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	root.PersistentFlags().IntVarP(&workers, "workers", "w", 0, "files processed concurrently (0 = one per CPU)")

	root.AddCommand(
		decryptCmd(),
		encryptCmd(),
		decompileCmd(),
		watchCmd(),
		inspectCmd(),
		verifyCmd(),
		versionCmd(),
	)
	return root
}

// buildWire applies per-command overrides to the loaded config and wires the app.
func buildWire(mutate func(c *app.Config)) (*app.Wire, error) {
	if cfg == nil {
		return nil, fmt.Errorf("configuration not loaded")
	}
	c := *cfg
	if mutate != nil {
		mutate(&c)
	}
	return app.NewWire(&c, slog.Default())
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s version %s\n", appName, Version)
		},
	}
}
