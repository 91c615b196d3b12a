package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// isOlderThan reports whether info's modification time is strictly before
// now minus days. Mirrors the file-staleness check the registration and
// processing stages would otherwise have to reimplement for log pruning.
func isOlderThan(info os.FileInfo, days int) bool {
	cutoff := time.Now().AddDate(0, 0, -days)
	return info.ModTime().Before(cutoff)
}

// PruneOldLogs deletes top-level files under logDir whose modification
// time is older than retentionDays. It never recurses and is best-effort
// per file: a file that can't be removed (locked, permission denied) is
// skipped rather than failing the whole pass. Only filesystem-level setup
// errors (logDir not a directory, unreadable) are returned.
//
// Meant to run once at pipeline startup, after the logger itself has been
// constructed, so a daily-rolling JSON log directory doesn't grow without
// bound across long-running deployments.
func PruneOldLogs(logDir string, retentionDays int) error {
	info, err := os.Stat(logDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("stat log directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("log path is not a directory: %s", logDir)
	}

	entries, err := os.ReadDir(logDir)
	if err != nil {
		return fmt.Errorf("read log directory: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		fi, err := entry.Info()
		if err != nil {
			continue
		}

		if isOlderThan(fi, retentionDays) {
			_ = os.Remove(filepath.Join(logDir, entry.Name()))
		}
	}

	return nil
}
