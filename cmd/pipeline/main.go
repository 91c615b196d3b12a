package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/qbic-pipeline/registration-pipeline/internal/app"
	"github.com/qbic-pipeline/registration-pipeline/internal/config"
	"github.com/qbic-pipeline/registration-pipeline/internal/logging"
	"github.com/qbic-pipeline/registration-pipeline/internal/utils"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// newRootCmd builds the pipeline's single command. Unlike the teacher's
// flag-based main, there is no setup wizard: a missing or invalid
// config.ini is a startup error, not an interactive prompt, since this
// tool is meant to run unattended under a process supervisor.
func newRootCmd() *cobra.Command {
	root, err := utils.ExeDir()
	if err != nil {
		root, _ = os.Getwd()
	}
	defaultConfigPath := filepath.Join(root, "config", "pipeline.ini")
	defaultLogDir := filepath.Join(root, "logs")

	var (
		configPath string
		logDir     string
		noLogs     bool
		debug      bool
		dryRun     bool
	)

	cmd := &cobra.Command{
		Use:   "pipeline",
		Short: "Runs the dataset registration pipeline",
		Long: "pipeline scans user drop folders, registers, processes, and evaluates\n" +
			"incoming datasets, and hands completed ones off to downstream inboxes.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(configPath, logging.Settings{NoLogs: noLogs, LogDir: logDir, Debug: debug}, dryRun)
		},
	}

	cmd.Flags().StringVar(&configPath, "config", defaultConfigPath, "path to pipeline.ini")
	cmd.Flags().StringVar(&logDir, "log-dir", defaultLogDir, "directory for log files (defaults next to the binary)")
	cmd.Flags().BoolVar(&noLogs, "no-logs", false, "disable file logging and write to stdout instead")
	cmd.Flags().BoolVar(&debug, "debug", false, "enable debug-level logging")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "scan and log what would be registered without touching any working directory")

	return cmd
}

func run(configPath string, logSettings logging.Settings, dryRun bool) error {
	log, err := logging.New(logSettings)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Errorf("load config %s: %v", configPath, err)
		return err
	}

	if !logSettings.NoLogs {
		if err := logging.PruneOldLogs(logSettings.LogDir, cfg.LogRetentionDays); err != nil {
			log.Warnf("prune old logs: %v", err)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Infof("received %s, stopping workers (finishing in-flight tasks)", sig)
		cancel()
	}()

	if err := app.Run(ctx, cfg, log, app.Options{DryRun: dryRun}); err != nil {
		log.Errorf("pipeline exited with error: %v", err)
		return err
	}

	log.Info("pipeline stopped cleanly")
	return nil
}
