// Package app wires the scanner, registration queue, and the three stage
// worker pools into a running pipeline: a single Run() entry point that
// takes already-loaded configuration and a logger, validates preconditions,
// and starts the long-running workers, returning only once they have all
// stopped.
package app

import (
	"context"
	"fmt"
	"regexp"
	"sync"

	"github.com/gofrs/flock"

	"github.com/qbic-pipeline/registration-pipeline/internal/activeset"
	"github.com/qbic-pipeline/registration-pipeline/internal/config"
	"github.com/qbic-pipeline/registration-pipeline/internal/evaluation"
	"github.com/qbic-pipeline/registration-pipeline/internal/janitor"
	"github.com/qbic-pipeline/registration-pipeline/internal/logging"
	"github.com/qbic-pipeline/registration-pipeline/internal/processing"
	"github.com/qbic-pipeline/registration-pipeline/internal/queue"
	"github.com/qbic-pipeline/registration-pipeline/internal/registration"
	"github.com/qbic-pipeline/registration-pipeline/internal/roundrobin"
	"github.com/qbic-pipeline/registration-pipeline/internal/scanner"
)

// lockFileName is the process-exclusivity lock guarding the scanner root,
// so two pipeline instances are never pointed at the same drop-folder tree
// concurrently (see SPEC_FULL.md §11).
const lockFileName = ".pipeline.lock"

// Options carries the run-time switches that don't belong in the INI config
// because they only make sense per invocation.
type Options struct {
	// DryRun runs only the scanner, logging what it detects. The requests it
	// produces are discarded instead of registered, and neither the janitor
	// sweep nor any stage touches a working directory.
	DryRun bool
}

// Run validates cfg, acquires the process-exclusivity lock, sweeps orphaned
// task directories left by a prior crash, then starts the scanner and every
// stage's worker pool. It blocks until ctx is canceled and every worker has
// finished its in-flight task.
func Run(ctx context.Context, cfg *config.Config, log *logging.Logger, opts Options) error {
	lock := flock.New(cfg.ScannerDirectory + "/" + lockFileName)
	locked, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire pipeline lock: %w", err)
	}
	if !locked {
		return fmt.Errorf("another pipeline instance holds the lock in %s", cfg.ScannerDirectory)
	}
	defer lock.Unlock()

	q := queue.New(cfg.RegistrationThreads * 4)

	s := scanner.New(cfg.ScannerDirectory, cfg.UserRegistrationDirName, cfg.ScannerInterval, cfg.MetadataFileSuffix, q, log.With("component", "scanner"))

	if opts.DryRun {
		log.Info("dry-run mode: scanning only, no registration/processing/evaluation")
		go func() {
			for {
				if _, ok := q.Dequeue(); !ok {
					return
				}
			}
		}()
		defer q.Close()
		return s.Run(ctx)
	}

	active := activeset.New()

	if err := sweepOrphans(cfg, active, log); err != nil {
		return fmt.Errorf("startup janitor sweep: %w", err)
	}

	measurementRe, err := regexp.Compile(cfg.MeasurementIDPattern)
	if err != nil {
		return fmt.Errorf("compile evaluation measurement-id pattern: %w", err)
	}

	regPool := &registration.Pool{
		Threads:        cfg.RegistrationThreads,
		Queue:          q,
		WorkingDir:     cfg.RegistrationWorkingDir,
		TargetDir:      cfg.RegistrationTargetDir,
		MetadataSuffix: cfg.MetadataFileSuffix,
		ErrorDirName:   cfg.UserErrorDirName,
		Log:            log.With("component", "registration"),
	}

	procPool := &processing.Pool{
		Threads:    cfg.ProcessingThreads,
		WorkingDir: cfg.ProcessingWorkingDir,
		TargetDir:  cfg.ProcessingTargetDir,
		ActiveSet:  active,
		Log:        log.With("component", "processing"),
	}

	evalPool := &evaluation.Pool{
		Threads:         cfg.EvaluationThreads,
		WorkingDir:      cfg.EvaluationWorkingDir,
		ErrorDirName:    cfg.UserErrorDirName,
		MeasurementIDRe: measurementRe,
		Inboxes:         roundrobin.New(cfg.EvaluationTargetDirs),
		ActiveSet:       active,
		Log:             log.With("component", "evaluation"),
		Counters:        &evaluation.Counters{},
	}

	var wg sync.WaitGroup
	wg.Add(4)

	var scanErr error
	go func() {
		defer wg.Done()
		defer q.Close()
		scanErr = s.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		regPool.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		procPool.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		evalPool.Run(ctx)
	}()

	wg.Wait()
	return scanErr
}

// sweepOrphans runs the startup janitor pass over every stage's working
// directory before any worker pool starts.
func sweepOrphans(cfg *config.Config, active *activeset.Set, log *logging.Logger) error {
	dirs := []string{cfg.RegistrationWorkingDir, cfg.ProcessingWorkingDir, cfg.EvaluationWorkingDir}
	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		if err := janitor.Sweep(dir, cfg.JanitorGracePeriod, active, log.With("component", "janitor")); err != nil {
			return err
		}
	}
	return nil
}
