// Package main is the kotae CLI entry point.
package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hyperjump/kotae/internal/config"
	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/pkg/utils"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/kotae/config.yaml"

// app carries what every subcommand needs once flags are parsed.
type app struct {
	configPath string
	debug      bool
	cfg        *config.Config
	logger     *zap.Logger
}

// loadConfig loads config from path. For the default path, config.yaml in the
// current directory wins when present, and a missing default file falls back to
// environment variables and defaults.
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, err := os.Getwd(); err == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, err := os.Stat(fallback); err == nil {
				cfg, err := config.Load(fallback)
				return cfg, fallback, err
			}
		}
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			cfg, err := config.Load("")
			return cfg, "", err
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func (a *app) setup(cmd *cobra.Command, args []string) error {
	if err := config.LoadDotEnv(".env"); err != nil {
		return err
	}
	cfg, resolved, err := loadConfig(a.configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	debug := cfg.Debug || a.debug
	logger, err := utils.NewLogger(debug)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	logger.Debug("config loaded",
		zap.String("config_path", resolved),
		zap.String("backend", cfg.Storage.Backend),
		zap.Bool("debug", debug),
	)
	a.cfg = cfg
	a.logger = logger
	return nil
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "kotae",
		Short:         "Answer questions from your documents",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", defaultConfigPath, "config file path")
	root.PersistentFlags().BoolVar(&a.debug, "debug", false, "enable debug logging")

	root.AddCommand(
		serverCMD(a),
		indexCMD(a),
		askCMD(a),
		watchCMD(a),
		statusCMD(a),
		versionCMD(),
	)
	return root
}

func main() {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(exitCode(err))
	}
}

// exitCode distinguishes bad input (2) from everything else (1).
func exitCode(err error) int {
	if errors.Is(err, models.ErrInvalidRequest) {
		return 2
	}
	return 1
}

// joinQuery joins positional arguments into one question.
func joinQuery(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}
