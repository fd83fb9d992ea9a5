// Package cli wires configuration, storage and services into the
// envelopes commands.
package cli

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"envelopes/internal/config"
	"envelopes/internal/log"
)

// SetupLogger builds a logger from LOG_LEVEL and LOG_FORMAT writing to out
// and installs it as the default.
func SetupLogger(component string, out io.Writer) *log.Logger {
	cfg := log.ConfigFromEnv(component)
	if out != nil {
		cfg.Output = out
	}
	logger := log.New(cfg)
	log.SetDefault(logger)
	return logger
}

// LoadEnvFile loads path for local development. A missing file is not an
// error since production sets the environment directly.
func LoadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// LoadConfig reads the environment, applies flag overrides and validates
// the result.
func LoadConfig(opts *RootOptions) (*config.Config, error) {
	cfg := config.Load()
	if opts != nil {
		if opts.Backend != "" {
			cfg.DataBackend = opts.Backend
		}
		if opts.DBPath != "" {
			cfg.SQLiteDBPath = opts.DBPath
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ShutdownContext returns a context cancelled on SIGINT or SIGTERM.
func ShutdownContext(parent context.Context, logger *log.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigChan)
		select {
		case sig := <-sigChan:
			logger.Info("Shutdown signal received", "signal", sig.String())
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}
