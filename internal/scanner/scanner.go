// Package scanner implements the single periodic poller that discovers new
// datasets in user drop folders and enqueues registration requests for the
// registration worker pool to pick up.
//
// Concurrency model: one dedicated long-running goroutine. Its in-memory
// state (the submitted set and known drop folders) is touched only by that
// goroutine, so it needs no locking — the same "single-threaded state,
// no mutex needed" reasoning the teacher applies to its own folder-walk
// bookkeeping.
package scanner

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/qbic-pipeline/registration-pipeline/internal/logging"
	"github.com/qbic-pipeline/registration-pipeline/internal/pipeline"
	"github.com/qbic-pipeline/registration-pipeline/internal/queue"
)

// Scanner walks Root's immediate subdirectories looking for each user's
// drop folder and enqueues a RegistrationRequest for every entry it finds
// there that it has not already submitted this process lifetime.
type Scanner struct {
	Root                string
	RegistrationDirName string
	Interval            time.Duration
	// MetadataSuffix is the registration stage's metadata side-file suffix.
	// A plain-file entry carrying this suffix is a sidecar for some other
	// file payload in the same drop folder (see SPEC_FULL.md §12.2), not a
	// dataset of its own, and must never be enqueued as one.
	MetadataSuffix string
	Queue          *queue.RegistrationQueue
	Log            *logging.Logger

	knownDropFolders map[string]struct{}
	submitted        map[pipeline.RequestKey]struct{}
}

// New constructs a Scanner. Interval must be > 0; callers should validate
// configuration before calling New (see internal/config.Config.Validate).
func New(root, registrationDirName string, interval time.Duration, metadataSuffix string, q *queue.RegistrationQueue, log *logging.Logger) *Scanner {
	return &Scanner{
		Root:                root,
		RegistrationDirName: registrationDirName,
		Interval:            interval,
		MetadataSuffix:      metadataSuffix,
		Queue:               q,
		Log:                 log,
		knownDropFolders:    make(map[string]struct{}),
		submitted:           make(map[pipeline.RequestKey]struct{}),
	}
}

// Run loops on the configured interval until ctx is canceled. It fails fast
// if Root does not exist at startup; listing errors encountered mid-run are
// logged and that iteration is skipped, the loop continues.
func (s *Scanner) Run(ctx context.Context) error {
	if _, err := os.Stat(s.Root); err != nil {
		return fmt.Errorf("scanner root %s: %w", s.Root, err)
	}

	for {
		s.tick()

		select {
		case <-ctx.Done():
			s.Log.Info("scanner stopping: shutdown signal received")
			return nil
		case <-time.After(s.Interval):
		}
	}
}

// tick runs a single scan iteration: refresh known drop folders, enqueue
// unseen requests, prune drop folders that disappeared.
func (s *Scanner) tick() {
	userDirs, err := os.ReadDir(s.Root)
	if err != nil {
		s.Log.Errorf("list scanner root %s: %v", s.Root, err)
		return
	}

	seenThisTick := make(map[string]struct{})

	for _, userDir := range userDirs {
		if !userDir.IsDir() {
			continue
		}

		userPath := filepath.Join(s.Root, userDir.Name())
		dropFolder := filepath.Join(userPath, s.RegistrationDirName)

		info, err := os.Stat(dropFolder)
		if err != nil || !info.IsDir() {
			continue
		}

		seenThisTick[dropFolder] = struct{}{}
		s.knownDropFolders[dropFolder] = struct{}{}

		s.scanDropFolder(userPath, dropFolder)
	}

	for known := range s.knownDropFolders {
		if _, stillThere := seenThisTick[known]; !stillThere {
			delete(s.knownDropFolders, known)
		}
	}
}

// scanDropFolder lists one drop folder's direct, non-hidden entries and
// enqueues a RegistrationRequest for every one not already in the submitted
// set.
func (s *Scanner) scanDropFolder(userPath, dropFolder string) {
	entries, err := os.ReadDir(dropFolder)
	if err != nil {
		s.Log.Errorf("list drop folder %s: %v", dropFolder, err)
		return
	}

	for _, entry := range entries {
		if strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		if !entry.IsDir() && s.MetadataSuffix != "" && strings.HasSuffix(entry.Name(), s.MetadataSuffix) {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			s.Log.Errorf("stat %s: %v", entry.Name(), err)
			continue
		}

		req := pipeline.RegistrationRequest{
			DetectedAt:   time.Now(),
			LastModified: info.ModTime(),
			UserPath:     userPath,
			OriginPath:   dropFolder,
			TargetPath:   filepath.Join(dropFolder, entry.Name()),
		}

		key := req.Key()
		if _, already := s.submitted[key]; already {
			continue
		}

		if !s.Queue.Enqueue(req, nil) {
			continue
		}
		s.submitted[key] = struct{}{}
		s.Log.Infof("enqueued registration request: %s", req.TargetPath)
	}
}
