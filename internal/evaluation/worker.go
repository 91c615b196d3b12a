// Package evaluation implements the evaluation stage: the final gate before
// handoff. It validates the domain measurement id carried in provenance
// and, on success, copies the task to a round-robin-selected downstream
// inbox and writes a completion marker; on failure it routes the task back
// to the submitting user.
package evaluation

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sync"
	"sync/atomic"
	"time"

	"github.com/qbic-pipeline/registration-pipeline/internal/activeset"
	"github.com/qbic-pipeline/registration-pipeline/internal/fsutil"
	"github.com/qbic-pipeline/registration-pipeline/internal/logging"
	"github.com/qbic-pipeline/registration-pipeline/internal/pipeline"
	"github.com/qbic-pipeline/registration-pipeline/internal/roundrobin"
)

// PollInterval mirrors the processing stage's idle-pass cadence.
const PollInterval = 100 * time.Millisecond

// markerPrefix is the fixed prefix of the completion marker file the
// downstream ETL system watches for, per inbox, per delivered task.
const markerPrefix = ".MARKER_is_finished_"

// Counters tracks process-lifetime completion totals, logged at shutdown —
// the evaluation-stage analogue of the teacher's per-folder deletion
// counters (see SPEC_FULL.md §12.3).
type Counters struct {
	Delivered          atomic.Uint64
	ParkedUser         atomic.Uint64
	ParkedIntervention atomic.Uint64
}

// Pool is the evaluation stage's worker pool.
type Pool struct {
	Threads         int
	WorkingDir      string
	ErrorDirName    string
	MeasurementIDRe *regexp.Regexp
	Inboxes         *roundrobin.Picker
	ActiveSet       *activeset.Set
	Log             *logging.Logger
	Counters        *Counters
}

// Run starts Threads workers and blocks until ctx is canceled and every
// worker's in-flight task, if any, has been fully resolved.
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

	p.logSummary()
}

func (p *Pool) worker(ctx context.Context, id int) {
	log := p.Log.With("stage", "evaluation", "worker", id)

	for {
		select {
		case <-ctx.Done():
			log.Info("shutting down")
			return
		default:
		}

		if p.pollOnce(log) {
			continue
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(PollInterval):
		}
	}
}

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

func (p *Pool) process(task pipeline.TaskDir, log *logging.Logger) {
	log = log.With("taskId", task.ID())

	prov, err := pipeline.LoadProvenance(task.ProvenancePath())
	if err != nil {
		log.Errorf("parking to intervention, bad provenance: %v", err)
		p.parkIntervention(task, fmt.Sprintf("missing or malformed provenance: %v", err))
		return
	}

	if !prov.HasMeasurementID() || !p.MeasurementIDRe.MatchString(*prov.MeasurementID) {
		reason := "Missing QBiC measurement ID"
		if prov.HasMeasurementID() {
			reason = fmt.Sprintf("measurement ID %q does not match configured pattern", *prov.MeasurementID)
		}
		log.Warnf("parking to user error dir: %s", reason)
		if err := pipeline.ParkToUser(task, prov.User, p.ErrorDirName, reason); err != nil {
			log.Errorf("failed to park task %s to user error dir: %v", task.ID(), err)
			return
		}
		p.Counters.ParkedUser.Add(1)
		return
	}

	if err := p.deliver(task, prov, log); err != nil {
		log.Errorf("parking to intervention: %v", err)
		p.parkIntervention(task, err.Error())
		return
	}
}

// deliver appends history, copies the task into a round-robin-selected
// inbox, writes the completion marker only after the copy has fully
// completed, and removes the source task directory.
func (p *Pool) deliver(task pipeline.TaskDir, prov *pipeline.Provenance, log *logging.Logger) error {
	prov.AppendHistory(p.WorkingDir)
	if err := prov.MarshalFile(task.ProvenancePath()); err != nil {
		return fmt.Errorf("rewrite provenance: %w", err)
	}

	inbox := p.Inboxes.Next()
	dst := filepath.Join(inbox, task.ID())

	if err := fsutil.CopyTree(task.Path, dst); err != nil {
		return fmt.Errorf("copy task to inbox %s: %w", inbox, err)
	}

	markerPath := filepath.Join(inbox, markerPrefix+task.ID())
	if err := os.WriteFile(markerPath, nil, 0o644); err != nil {
		return fmt.Errorf("write completion marker: %w", err)
	}

	if err := os.RemoveAll(task.Path); err != nil {
		return fmt.Errorf("remove source task directory: %w", err)
	}

	p.Counters.Delivered.Add(1)
	log.Infof("delivered task %s to inbox %s", task.ID(), inbox)
	return nil
}

func (p *Pool) parkIntervention(task pipeline.TaskDir, reason string) {
	interventions := filepath.Join(p.WorkingDir, pipeline.InterventionsDirName)
	if err := pipeline.ParkToIntervention(task, interventions, reason); err != nil {
		p.Log.Errorf("failed to park task %s to intervention: %v", task.ID(), err)
		return
	}
	p.Counters.ParkedIntervention.Add(1)
}

func (p *Pool) logSummary() {
	p.Log.Infof("evaluation summary: delivered=%d parked-user=%d parked-intervention=%d",
		p.Counters.Delivered.Load(), p.Counters.ParkedUser.Load(), p.Counters.ParkedIntervention.Load())
}
