package registration

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/qbic-pipeline/registration-pipeline/internal/fsutil"
	"github.com/qbic-pipeline/registration-pipeline/internal/logging"
	"github.com/qbic-pipeline/registration-pipeline/internal/pipeline"
	"github.com/qbic-pipeline/registration-pipeline/internal/queue"
)

// Pool is the registration stage's worker pool: N goroutines, each looping
// forever on queue.Dequeue(), each transforming one RegistrationRequest
// into a task directory committed to TargetDir.
//
// Shutdown contract: a worker mid-task finishes that task (including the
// final atomic move) before observing cancellation; an idle worker
// blocked in Dequeue exits as soon as the queue is closed. This mirrors the
// teacher's "finish in-flight work, then stop" worker shutdown discipline.
type Pool struct {
	Threads        int
	Queue          *queue.RegistrationQueue
	WorkingDir     string
	TargetDir      string
	MetadataSuffix string
	ErrorDirName   string
	Log            *logging.Logger
}

// Run starts Threads workers and blocks until all of them exit. A worker
// exits once the queue is closed and drained, or, after ctx is canceled, as
// soon as it has finished the request it is handling; requests still
// buffered in the queue are then left there.
func (p *Pool) Run(ctx context.Context) {
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
	log := p.Log.With("stage", "registration", "worker", id)

	for {
		req, ok := p.Queue.Dequeue()
		if !ok {
			log.Info("queue closed, worker exiting")
			return
		}

		if err := p.handle(req, log); err != nil {
			log.Errorf("unrecoverable failure handling %s: %v", req.TargetPath, err)
		}

		select {
		case <-ctx.Done():
			return
		default:
		}
	}
}

// handle implements the registration stage's per-request transaction: parse
// and validate metadata, create a task directory, move the payload in,
// write provenance, and commit to the processing stage. Every exit path is
// one of {advanced, parked-to-user, parked-to-intervention}; handle never
// leaves a task half-moved. An I/O failure before the payload has been moved
// parks the new task directory with its error.txt and leaves the payload in
// the drop folder. Only a failure to create a task directory, or a failed
// park, is returned as an error.
func (p *Pool) handle(req pipeline.RegistrationRequest, log *logging.Logger) error {
	log = log.With("path", req.TargetPath)

	md, valErr := p.readMetadata(req)
	if valErr != nil {
		return p.reject(req, valErr, log)
	}

	task, err := pipeline.Create(p.WorkingDir)
	if err != nil {
		return fmt.Errorf("create task directory: %w", err)
	}

	intervene := func(cause error) error {
		log.Errorf("intervention required: %v", cause)
		return pipeline.ParkToIntervention(task, interventionsDir(p.WorkingDir), cause.Error())
	}

	datasetFiles, err := p.collectDatasetFileNames(req)
	if err != nil {
		return intervene(fmt.Errorf("enumerate dataset files: %w", err))
	}

	if _, err := fsutil.MoveInto(req.TargetPath, task.Path); err != nil {
		return intervene(fmt.Errorf("move payload into task directory: %w", err))
	}

	prov := &pipeline.Provenance{
		Origin:       req.OriginPath,
		User:         req.UserPath,
		TaskID:       task.ID(),
		DatasetFiles: datasetFiles,
		History:      []string{p.WorkingDir},
	}
	if md.measurementID != "" {
		id := md.measurementID
		prov.MeasurementID = &id
	}

	if err := prov.MarshalFile(task.ProvenancePath()); err != nil {
		return intervene(fmt.Errorf("write provenance: %w", err))
	}

	if _, err := fsutil.MoveInto(task.Path, p.TargetDir); err != nil {
		return intervene(fmt.Errorf("commit task to processing stage: %w", err))
	}

	log.Infof("registered task %s", task.ID())
	return nil
}

// readMetadata locates and parses the request's metadata side-file and
// validates every file reference it names. For a directory payload that is
// the side-file inside the directory; for a file payload it is an optional
// sidecar named <payload><MetadataSuffix> next to the payload in
// req.OriginPath, carrying at most a measurement id (see SPEC_FULL.md
// §12.2). A file payload with no sidecar is accepted as-is, no measurement
// id.
func (p *Pool) readMetadata(req pipeline.RegistrationRequest) (metadata, error) {
	info, err := statTarget(req.TargetPath)
	if err != nil {
		return metadata{}, err
	}
	if !info.IsDir() {
		return p.readFileSidecarMetadata(req)
	}

	metaPath, err := findMetadataFile(req.TargetPath, p.MetadataSuffix)
	if err != nil {
		return metadata{}, err
	}

	md, err := parseMetadata(metaPath)
	if err != nil {
		return metadata{}, err
	}

	if err := validateFileRefs(req.TargetPath, md.fileRefs); err != nil {
		return metadata{}, err
	}

	return md, nil
}

// readFileSidecarMetadata looks for a file payload's optional sidecar and,
// if present, parses it for a measurement id. A malformed sidecar is a
// validation error, same as a malformed directory-payload side-file.
func (p *Pool) readFileSidecarMetadata(req pipeline.RegistrationRequest) (metadata, error) {
	payloadName := filepath.Base(req.TargetPath)

	metaPath, ok, err := findSidecarMetadataFile(req.OriginPath, payloadName, p.MetadataSuffix)
	if err != nil {
		return metadata{}, err
	}
	if !ok {
		return metadata{}, nil
	}

	md, err := parseMetadata(metaPath)
	if err != nil {
		return metadata{}, err
	}

	return metadata{measurementID: md.measurementID}, nil
}

// collectDatasetFileNames returns the basenames of the files making up
// req's payload: a single-element list for a file payload, or the
// non-recursive list of a directory payload's contained file names,
// excluding its metadata side-file (see SPEC_FULL.md §3, §6).
func (p *Pool) collectDatasetFileNames(req pipeline.RegistrationRequest) ([]string, error) {
	info, err := statTarget(req.TargetPath)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return []string{filepath.Base(req.TargetPath)}, nil
	}
	return listFileBasenames(req.TargetPath, p.MetadataSuffix)
}

// reject parks a failed request: a validation error goes to the user's
// error directory (the user can fix and resubmit), anything else is an
// intervention.
func (p *Pool) reject(req pipeline.RegistrationRequest, cause error, log *logging.Logger) error {
	task, createErr := pipeline.Create(p.WorkingDir)
	if createErr != nil {
		return fmt.Errorf("create task directory for rejected request: %w", createErr)
	}

	if _, err := fsutil.MoveInto(req.TargetPath, task.Path); err != nil {
		return fmt.Errorf("move rejected payload into task directory: %w", err)
	}

	if isValidationErr(cause) {
		log.Warnf("validation failure, parking to user error dir: %v", cause)
		return pipeline.ParkToUser(task, req.UserPath, p.ErrorDirName, cause.Error())
	}

	log.Errorf("intervention required: %v", cause)
	return pipeline.ParkToIntervention(task, interventionsDir(p.WorkingDir), cause.Error())
}
