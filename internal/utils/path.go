// Package utils holds small filesystem helpers shared by cmd/pipeline that
// don't belong to any single pipeline stage.
package utils

import (
	"os"
	"path/filepath"
)

// ExeDir returns the directory containing the currently running
// executable, resolving symlinks so it reflects the binary's real on-disk
// location. Used to default config/log directories next to the binary so
// the pipeline behaves predictably when launched from an arbitrary working
// directory (systemd units, process supervisors).
func ExeDir() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", err
	}

	exe, err = filepath.EvalSymlinks(exe)
	if err != nil {
		return "", err
	}

	return filepath.Dir(exe), nil
}
