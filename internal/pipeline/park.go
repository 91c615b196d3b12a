package pipeline

import (
	"os"
	"path/filepath"

	"github.com/qbic-pipeline/registration-pipeline/internal/fsutil"
)

// ParkToUser writes reason into the task's error.txt and moves the whole
// task directory into userPath/errorDirName/<taskId>/, creating that
// directory on demand. This is the outcome for validation failures: ones
// the submitting user can act on.
func ParkToUser(task TaskDir, userPath, errorDirName, reason string) error {
	if err := task.WriteError(reason); err != nil {
		return err
	}

	userErrorDir := filepath.Join(userPath, errorDirName)
	if err := os.MkdirAll(userErrorDir, 0o755); err != nil {
		return err
	}

	_, err := fsutil.MoveInto(task.Path, userErrorDir)
	return err
}

// ParkToIntervention writes reason into the task's error.txt and moves the
// whole task directory into the stage-local interventions directory,
// creating it on demand. This is the outcome for failures the user cannot
// act on: missing/unreadable provenance, I/O faults, anything unexpected.
func ParkToIntervention(task TaskDir, interventionsDir, reason string) error {
	if err := task.WriteError(reason); err != nil {
		return err
	}

	if err := os.MkdirAll(interventionsDir, 0o755); err != nil {
		return err
	}

	_, err := fsutil.MoveInto(task.Path, interventionsDir)
	return err
}
