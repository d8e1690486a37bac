package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/dselans/unlzw/config"
	"github.com/dselans/unlzw/extractor"
)

func main() {
	cfg, err := config.NewConfig()
	if err != nil {
		fmt.Println("ERROR: ", err)
		os.Exit(1)
	}

	logrus.SetLevel(cfg.LogLevel())

	if cfg.CLI.Debug {
		logrus.Info("debug mode enabled")
	}

	if !cfg.CLI.Quiet {
		displayConfig(cfg)
	}

	e, err := extractor.New(cfg)
	if err != nil {
		logrus.Errorf("unable to create extractor: %s", err)
		os.Exit(1)
	}

	shutdownCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := e.Run(shutdownCtx); err != nil {
		logrus.Errorf("error during extractor run: %s", err)
		os.Exit(1)
	}
}

func displayConfig(cfg *config.Config) {
	if cfg == nil {
		return
	}

	logrus.Info("unlzw settings:")
	logrus.Info("  [CLI]")
	logrus.Infof("  version: %s", config.VERSION)
	logrus.Infof("  debug: %v", cfg.CLI.Debug)
	logrus.Infof("  config file: %s", cfg.CLI.ConfigFile)
	logrus.Infof("  dry run: %v", cfg.CLI.DryRun)
	logrus.Infof("  disable resume: %v", cfg.CLI.DisableResume)
	logrus.Info("")
	logrus.Info("  [CONFIG]")
	logrus.Infof("  config.log_level: %s", cfg.TOML.Config.LogLevel)
	logrus.Infof("  config.num_workers: %d", cfg.TOML.Config.NumWorkers)
	logrus.Infof("  config.buffer_size: %d", cfg.TOML.Config.BufferSize)
	logrus.Infof("  config.checkpoint_file: %s", cfg.TOML.Config.CheckpointFile)
	logrus.Infof("  config.checkpoint_interval: %s", cfg.TOML.Config.CheckpointInterval)
	logrus.Infof("  config.disable_checkpointing: %v", cfg.TOML.Config.DisableCheckpointing)
	logrus.Info("")
	logrus.Info("  [SOURCE]")
	logrus.Infof("  source.files: %v", cfg.TOML.Source.Files)
	logrus.Infof("  source.file_type: %s", cfg.TOML.Source.FileType)
	logrus.Infof("  source.order: %s", cfg.Order())
	logrus.Infof("  source.lit_width: %d", cfg.TOML.Source.LitWidth)
	logrus.Info("")
	logrus.Info("  [DESTINATION]")
	logrus.Infof("  destination.dir: %s", cfg.TOML.Destination.Dir)
	logrus.Infof("  destination.strip_suffix: %s", cfg.TOML.Destination.StripSuffix)
	logrus.Infof("  destination.suffix: %s", cfg.TOML.Destination.Suffix)
	logrus.Infof("  destination.overwrite: %v", cfg.TOML.Destination.Overwrite)
}
