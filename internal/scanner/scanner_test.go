package scanner

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/qbic-pipeline/registration-pipeline/internal/logging"
	"github.com/qbic-pipeline/registration-pipeline/internal/queue"
)

const testMetadataSuffix = ".metadata.tsv"

func newTestLogger(t *testing.T) *logging.Logger {
	t.Helper()
	log, err := logging.New(logging.Settings{NoLogs: true})
	require.NoError(t, err)
	return log
}

func TestTick_EnqueuesNewEntriesOnce(t *testing.T) {
	root := t.TempDir()
	dropFolder := filepath.Join(root, "alice", "registration")
	require.NoError(t, os.MkdirAll(dropFolder, 0o755))
	require.NoError(t, os.Mkdir(filepath.Join(dropFolder, "dataset1"), 0o755))

	q := queue.New(10)
	s := New(root, "registration", time.Second, testMetadataSuffix, q, newTestLogger(t))

	s.tick()
	req, ok := q.Dequeue()
	require.True(t, ok)
	require.Equal(t, filepath.Join(dropFolder, "dataset1"), req.TargetPath)
	require.Equal(t, filepath.Join(root, "alice"), req.UserPath)

	// A second tick over the same, unchanged drop folder must not re-enqueue.
	s.tick()
	select {
	case <-qDrain(q):
		t.Fatal("expected no second request for an already-submitted entry")
	default:
	}
}

func TestTick_SkipsDotfiles(t *testing.T) {
	root := t.TempDir()
	dropFolder := filepath.Join(root, "alice", "registration")
	require.NoError(t, os.MkdirAll(dropFolder, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dropFolder, ".DS_Store"), []byte("x"), 0o644))

	q := queue.New(10)
	s := New(root, "registration", time.Second, testMetadataSuffix, q, newTestLogger(t))
	s.tick()

	select {
	case req := <-qDrain(q):
		t.Fatalf("expected dotfile to be skipped, got %v", req)
	default:
	}
}

func TestTick_SkipsMetadataSidecarFiles(t *testing.T) {
	root := t.TempDir()
	dropFolder := filepath.Join(root, "alice", "registration")
	require.NoError(t, os.MkdirAll(dropFolder, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dropFolder, "sample.txt"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dropFolder, "sample.txt"+testMetadataSuffix), []byte("measurementId\tQABCD001AB\n"), 0o644))

	q := queue.New(10)
	s := New(root, "registration", time.Second, testMetadataSuffix, q, newTestLogger(t))
	s.tick()

	req, ok := q.Dequeue()
	require.True(t, ok)
	require.Equal(t, filepath.Join(dropFolder, "sample.txt"), req.TargetPath)

	select {
	case got := <-qDrain(q):
		t.Fatalf("expected the metadata sidecar to be skipped, got %v", got)
	default:
	}
}

func TestTick_IgnoresUsersWithoutADropFolder(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "bob"), 0o755))

	q := queue.New(10)
	s := New(root, "registration", time.Second, testMetadataSuffix, q, newTestLogger(t))
	s.tick()

	select {
	case <-qDrain(q):
		t.Fatal("expected no requests when no drop folder exists")
	default:
	}
}

func TestRun_FailsFastWhenRootMissing(t *testing.T) {
	root := filepath.Join(t.TempDir(), "does-not-exist")
	q := queue.New(1)
	s := New(root, "registration", time.Millisecond, testMetadataSuffix, q, newTestLogger(t))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := s.Run(ctx)
	require.Error(t, err)
}

// qDrain lets tests select on a non-blocking read of the queue without a
// dedicated consumer goroutine.
func qDrain(q *queue.RegistrationQueue) <-chan any {
	ch := make(chan any)
	go func() {
		if req, ok := q.Dequeue(); ok {
			ch <- req
		}
	}()
	return ch
}
