// Package janitor implements the startup sweep that answers the spec's open
// question about orphan task directories left behind by a crash mid
// registration (SPEC_FULL.md §12.1): anything sitting in a stage working
// directory, not currently claimed by any worker, older than a grace
// period, is parked to that stage's intervention directory for a human to
// look at.
package janitor

import (
	"os"
	"path/filepath"
	"time"

	"github.com/qbic-pipeline/registration-pipeline/internal/activeset"
	"github.com/qbic-pipeline/registration-pipeline/internal/logging"
	"github.com/qbic-pipeline/registration-pipeline/internal/pipeline"
)

// Sweep walks workingDir once and parks every orphaned task directory it
// finds into workingDir/interventions. It is meant to run once at process
// startup, before the scanner or any worker pool starts, so there is no
// concurrent claimant to race against other than the active set itself
// (which will be empty at that point). Sweep still checks the set, so a task
// directory that a processing or evaluation worker holds at the moment of
// the check is skipped; registration workers do not claim through the set.
func Sweep(workingDir string, gracePeriod time.Duration, active *activeset.Set, log *logging.Logger) error {
	entries, err := os.ReadDir(workingDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	cutoff := time.Now().Add(-gracePeriod)
	interventions := filepath.Join(workingDir, pipeline.InterventionsDirName)

	for _, e := range entries {
		if !e.IsDir() || e.Name() == pipeline.InterventionsDirName {
			continue
		}

		taskPath := filepath.Join(workingDir, e.Name())
		if active.Holds(taskPath) {
			continue
		}

		info, err := e.Info()
		if err != nil {
			log.Errorf("janitor: stat %s: %v", taskPath, err)
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}

		task := pipeline.TaskDir{Path: taskPath}
		reason := "orphaned at startup, age exceeds grace period"
		if err := pipeline.ParkToIntervention(task, interventions, reason); err != nil {
			log.Errorf("janitor: failed to park orphan %s: %v", taskPath, err)
			continue
		}
		log.Warnf("janitor: parked orphaned task %s to intervention", task.ID())
	}

	return nil
}
