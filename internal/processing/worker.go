// Package processing implements the processing stage: it polls its working
// directory for task directories committed by registration, normalises
// each one so its payload is always a directory, appends to provenance
// history, and commits the task into the evaluation stage's working
// directory.
package processing

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/qbic-pipeline/registration-pipeline/internal/activeset"
	"github.com/qbic-pipeline/registration-pipeline/internal/fsutil"
	"github.com/qbic-pipeline/registration-pipeline/internal/logging"
	"github.com/qbic-pipeline/registration-pipeline/internal/pipeline"
)

// PollInterval is the idle-pass sleep between listings of WorkingDir when
// no unclaimed task is found, matching the ~100ms cadence specified for
// this stage.
const PollInterval = 100 * time.Millisecond

// Pool is the processing stage's worker pool. Unlike the registration
// stage, there is no in-memory queue here: each worker independently polls
// WorkingDir and claims whatever task directories it finds through the
// shared ActiveSet, which is what keeps two workers from racing on the
// same directory inside one poll tick.
type Pool struct {
	Threads    int
	WorkingDir string
	TargetDir  string
	ActiveSet  *activeset.Set
	Log        *logging.Logger
}

// Run starts Threads workers and blocks until ctx is canceled and every
// worker has finished its in-flight task, if any.
func (p *Pool) Run(ctx context.Context) {
	interventions := filepath.Join(p.WorkingDir, pipeline.InterventionsDirName)
	_ = os.MkdirAll(interventions, 0o755)

	var wg sync.WaitGroup
	for i := 0; i < p.Threads; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			p.worker(ctx, id)
		}(i)
	}
	wg.Wait()
}

func (p *Pool) worker(ctx context.Context, id int) {
	log := p.Log.With("stage", "processing", "worker", id)

	for {
		select {
		case <-ctx.Done():
			log.Info("shutting down")
			return
		default:
		}

		claimed := p.pollOnce(log)
		if claimed {
			continue
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(PollInterval):
		}
	}
}

// pollOnce lists WorkingDir once, claims the first unclaimed task
// directory it finds, processes it, and returns whether it claimed
// anything (so the worker can skip its idle sleep and immediately look for
// more work).
func (p *Pool) pollOnce(log *logging.Logger) bool {
	entries, err := os.ReadDir(p.WorkingDir)
	if err != nil {
		log.Errorf("list working dir %s: %v", p.WorkingDir, err)
		return false
	}

	for _, e := range entries {
		if !e.IsDir() || e.Name() == pipeline.InterventionsDirName {
			continue
		}

		taskPath := filepath.Join(p.WorkingDir, e.Name())
		if !p.ActiveSet.TryClaim(taskPath) {
			continue
		}

		p.process(pipeline.TaskDir{Path: taskPath}, log)
		p.ActiveSet.Release(taskPath)
		return true
	}

	return false
}

// process implements the per-task transaction: normalise payload to a
// directory, append history, commit to evaluation. Any failure parks the
// task to this stage's intervention directory.
func (p *Pool) process(task pipeline.TaskDir, log *logging.Logger) {
	log = log.With("taskId", task.ID())

	if err := p.run(task, log); err != nil {
		log.Errorf("parking to intervention: %v", err)
		if parkErr := pipeline.ParkToIntervention(task, filepath.Join(p.WorkingDir, pipeline.InterventionsDirName), err.Error()); parkErr != nil {
			log.Errorf("failed to park task %s: %v", task.ID(), parkErr)
		}
	}
}

func (p *Pool) run(task pipeline.TaskDir, log *logging.Logger) error {
	payload, isDir, err := task.Payload()
	if err != nil {
		return fmt.Errorf("locate payload: %w", err)
	}

	if !isDir {
		if err := wrapFileInDataset(payload); err != nil {
			return fmt.Errorf("wrap file payload: %w", err)
		}
	}

	prov, err := pipeline.LoadProvenance(task.ProvenancePath())
	if err != nil {
		return fmt.Errorf("load provenance: %w", err)
	}

	prov.AppendHistory(p.WorkingDir)
	if err := prov.MarshalFile(task.ProvenancePath()); err != nil {
		return fmt.Errorf("rewrite provenance: %w", err)
	}

	if _, err := fsutil.MoveInto(task.Path, p.TargetDir); err != nil {
		return fmt.Errorf("commit task to evaluation stage: %w", err)
	}

	log.Infof("processed task %s", task.ID())
	return nil
}

// wrapFileInDataset moves a plain-file payload into a sibling directory
// named "<file>_dataset", so the task's payload is always a directory
// after this stage, per the spec's file-wrapping invariant.
func wrapFileInDataset(filePath string) error {
	datasetDir := filePath + "_dataset"
	if err := os.MkdirAll(datasetDir, 0o755); err != nil {
		return err
	}
	_, err := fsutil.MoveInto(filePath, datasetDir)
	return err
}
