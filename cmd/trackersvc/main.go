package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/mkrupp/practice-tracker/internal/app"
	"github.com/mkrupp/practice-tracker/internal/infra/config"
	"github.com/mkrupp/practice-tracker/internal/infra/logging"
	"github.com/mkrupp/practice-tracker/internal/infra/telemetry"
)

const (
	appName = "practice"
	svcName = "tracker"

	defaultEnvFile = ".env"
)

// Set via ldflags at build time.
var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	err := newRootCmd().ExecuteContext(ctx)

	stop()

	if err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "trackersvc",
		Short:        "Practice tracker service",
		Version:      version,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().String("env-file", defaultEnvFile, "Load environment variables from this file when present")

	cmd.AddCommand(newServeCmd(), newMigrateCmd(), newSeedCmd())

	return cmd
}

// loadConfig reads the env file, parses the configuration and sets up logging.
func loadConfig(cmd *cobra.Command) (app.Config, error) {
	var (
		cfg app.Config
		ctx = cmd.Context()

		configPrefix = strings.ToUpper(strings.Join([]string{appName, svcName}, "_"))
		loggerName   = strings.ToLower(strings.Join([]string{appName, svcName}, "."))
	)

	envFile, _ := cmd.Flags().GetString("env-file")
	if err := godotenv.Load(envFile); err != nil {
		if !errors.Is(err, fs.ErrNotExist) || cmd.Flags().Changed("env-file") {
			return cfg, fmt.Errorf("load env file: %w", err)
		}
	}

	if err := config.Parse(ctx, &cfg, configPrefix); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}

	logging.Configure(ctx, cfg.Log, loggerName)

	return cfg, nil
}

// withApp runs fn against a wired application and tears it down afterwards.
func withApp(cmd *cobra.Command, name string, fn func(context.Context, app.Config, *app.App) error) (err error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	log := logging.GetLogger("cmd.trackersvc." + name)

	defer func() {
		if err != nil {
			log.ErrorContext(ctx, "error", "err", err)
		} else {
			log.InfoContext(ctx, "shutdown")
		}
	}()

	shutdown, err := telemetry.Setup(ctx, cfg.Telemetry)
	if err != nil {
		return fmt.Errorf("setup telemetry: %w", err)
	}

	defer func() {
		err = errors.Join(err, shutdown(context.WithoutCancel(ctx)))
	}()

	a, err := app.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("new app: %w", err)
	}

	defer func() {
		err = errors.Join(err, a.Close())
	}()

	return fn(ctx, cfg, a)
}
