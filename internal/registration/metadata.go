// Package registration implements the registration stage: it turns an
// enqueued RegistrationRequest into a well-formed task directory with a
// provenance.json and commits it into the processing stage's working
// directory.
package registration

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"github.com/qbic-pipeline/registration-pipeline/internal/pipeline"
)

// measurementIDMetadataKey is the reserved key inside the metadata
// side-file that, if present, supplies the measurement id at registration
// time (see SPEC_FULL.md §12.2).
const measurementIDMetadataKey = "measurementId"

// metadata is the parsed form of a request's tab-separated side-file: one
// fileRef/label pair per data line, plus an optional measurement id pulled
// out of the reserved key.
type metadata struct {
	fileRefs      []string
	measurementID string
}

// findMetadataFile locates the file inside dir whose name ends with suffix.
// Absence is a validation error: the caller parks the task to the user's
// error directory.
func findMetadataFile(dir, suffix string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", errors.Wrapf(pipeline.ErrIntervention, "read %s: %v", dir, err)
	}

	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), suffix) {
			return filepath.Join(dir, e.Name()), nil
		}
	}

	return "", errors.Wrapf(pipeline.ErrValidation, "metadata file not found (suffix %q) in %s", suffix, dir)
}

// parseMetadata parses a tab-separated metadata file: one record per line,
// fields <fileRef>\t<label>. A line with no tab is a validation error
// ("incomplete metadata"). The reserved measurementId key is pulled out of
// the record list rather than treated as a file reference.
func parseMetadata(path string) (metadata, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return metadata{}, errors.Wrapf(pipeline.ErrIntervention, "read metadata file %s: %v", path, err)
	}

	var md metadata

	lines := strings.Split(string(raw), "\n")
	for i, line := range lines {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}

		fields := strings.SplitN(line, "\t", 2)
		if len(fields) != 2 {
			return metadata{}, errors.Wrapf(pipeline.ErrValidation,
				"incomplete metadata at line %d in %s: missing tab separator", i+1, path)
		}

		key := strings.TrimSpace(fields[0])
		value := strings.TrimSpace(fields[1])

		if key == measurementIDMetadataKey {
			md.measurementID = value
			continue
		}

		md.fileRefs = append(md.fileRefs, key)
	}

	return md, nil
}

// validateFileRefs confirms that every fileRef, joined to targetDir as a
// relative path, resolves to an existing entry. An unresolvable reference
// is a validation error.
func validateFileRefs(targetDir string, refs []string) error {
	for _, ref := range refs {
		full := filepath.Join(targetDir, ref)
		if _, err := os.Stat(full); err != nil {
			return errors.Wrapf(pipeline.ErrValidation, "unknown file reference %q under %s", ref, targetDir)
		}
	}
	return nil
}

// findSidecarMetadataFile looks for a file payload's optional sidecar
// metadata file: <payloadName><suffix>, alongside the payload in originDir.
// Absence is not an error (ok is false, err is nil) — a bare file with no
// sidecar is still a valid request, it just carries no measurement id.
func findSidecarMetadataFile(originDir, payloadName, suffix string) (path string, ok bool, err error) {
	candidate := filepath.Join(originDir, payloadName+suffix)
	if _, statErr := os.Stat(candidate); statErr != nil {
		if os.IsNotExist(statErr) {
			return "", false, nil
		}
		return "", false, errors.Wrapf(pipeline.ErrIntervention, "stat sidecar metadata file %s: %v", candidate, statErr)
	}
	return candidate, true, nil
}

// listFileBasenames returns the sorted basenames of dir's direct,
// non-hidden entries, excluding any entry that is itself a metadata
// side-file (identified by suffix). Only direct children are listed; the
// contents of subdirectories are not.
func listFileBasenames(dir, suffix string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrapf(pipeline.ErrIntervention, "list %s: %v", dir, err)
	}

	var names []string
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".") {
			continue
		}
		if suffix != "" && strings.HasSuffix(e.Name(), suffix) {
			continue
		}
		names = append(names, e.Name())
	}
	return names, nil
}
