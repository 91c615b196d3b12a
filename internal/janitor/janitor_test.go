package janitor

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/qbic-pipeline/registration-pipeline/internal/activeset"
	"github.com/qbic-pipeline/registration-pipeline/internal/logging"
	"github.com/qbic-pipeline/registration-pipeline/internal/pipeline"
)

func newTestLogger(t *testing.T) *logging.Logger {
	t.Helper()
	log, err := logging.New(logging.Settings{NoLogs: true})
	require.NoError(t, err)
	return log
}

func newAgedTask(t *testing.T, workingDir string, age time.Duration) pipeline.TaskDir {
	t.Helper()
	task, err := pipeline.Create(workingDir)
	require.NoError(t, err)
	require.NoError(t, os.Mkdir(filepath.Join(task.Path, "dataset1"), 0o755))

	old := time.Now().Add(-age)
	require.NoError(t, os.Chtimes(task.Path, old, old))
	return task
}

func TestSweep_ParksOrphanOlderThanGracePeriod(t *testing.T) {
	workingDir := t.TempDir()
	task := newAgedTask(t, workingDir, 2*time.Hour)

	require.NoError(t, Sweep(workingDir, time.Hour, activeset.New(), newTestLogger(t)))

	_, err := os.Stat(filepath.Join(workingDir, pipeline.InterventionsDirName, task.ID()))
	require.NoError(t, err)
	_, err = os.Stat(task.Path)
	require.True(t, os.IsNotExist(err))
}

func TestSweep_LeavesRecentTaskAlone(t *testing.T) {
	workingDir := t.TempDir()
	task, err := pipeline.Create(workingDir)
	require.NoError(t, err)
	require.NoError(t, os.Mkdir(filepath.Join(task.Path, "dataset1"), 0o755))

	require.NoError(t, Sweep(workingDir, time.Hour, activeset.New(), newTestLogger(t)))

	_, err = os.Stat(task.Path)
	require.NoError(t, err)
}

func TestSweep_SkipsTaskHeldByActiveSet(t *testing.T) {
	workingDir := t.TempDir()
	task := newAgedTask(t, workingDir, 2*time.Hour)

	active := activeset.New()
	require.True(t, active.TryClaim(task.Path))

	require.NoError(t, Sweep(workingDir, time.Hour, active, newTestLogger(t)))

	_, err := os.Stat(task.Path)
	require.NoError(t, err)
}

func TestSweep_MissingWorkingDirIsNotAnError(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "does-not-exist")
	require.NoError(t, Sweep(dir, time.Hour, activeset.New(), newTestLogger(t)))
}
