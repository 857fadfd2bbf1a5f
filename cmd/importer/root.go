package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/JonMunkholm/empenhos/internal/config"
	"github.com/JonMunkholm/empenhos/internal/logging"
)

// app is the state shared by every subcommand.
type app struct {
	envFile string
	cfg     *config.Config
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "importer",
		Short: "Import commitment spreadsheets into a relational database",
		Long: `importer writes every row of a spreadsheet across several tables,
in the order a mapping document declares, inside one transaction per row.
Records with a natural key are looked up first and reused.

Configuration comes from the environment, optionally from a .env file.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&a.envFile, "env-file", ".env", "environment file to load (overrides the process environment)")

	root.AddCommand(newRunCmd(a))
	root.AddCommand(newValidateCmd(a))
	root.AddCommand(newReportCmd(a))
	root.AddCommand(newServeCmd(a))
	return root
}

// exec loads configuration, applies the command's flag overrides, sets up
// logging and runs fn. Logging is torn down when fn returns.
func (a *app) exec(cmd *cobra.Command, override func(*config.Config), fn func(ctx context.Context) error) error {
	if err := a.loadEnv(); err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	if override != nil {
		override(cfg)
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("load configuration: %w", err)
		}
	}
	a.cfg = cfg

	teardown, err := logging.Setup(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.File)
	if err != nil {
		return err
	}
	defer func() {
		if err := teardown(); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "close log: %v\n", err)
		}
	}()

	slog.Debug("configuration loaded", "command", cmd.Name(), "config", cfg.String())
	return fn(cmd.Context())
}

// loadEnv applies the environment file when it exists.
func (a *app) loadEnv() error {
	if a.envFile == "" {
		return nil
	}
	err := godotenv.Overload(a.envFile)
	if err == nil || errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return fmt.Errorf("load %s: %w", a.envFile, err)
}
