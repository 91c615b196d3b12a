// Package pipeline holds the data model shared by every stage of the
// registration pipeline: registration requests, task directories, and the
// provenance record that travels with a task from drop folder to inbox.
package pipeline

import (
	"encoding/json"

	"github.com/natefinch/atomic"
)

// ProvenanceFileName is the name of the metadata file carried inside every
// task directory.
const ProvenanceFileName = "provenance.json"

// ErrorFileName is the name of the plaintext reason file written into a task
// directory before it is parked to a user error folder or a stage
// intervention directory.
const ErrorFileName = "error.txt"

// Provenance is the persisted metadata record for a task. It is the stable,
// downstream-visible compatibility surface described in the provenance.json
// schema: unknown fields on read are ignored, and fields default to their
// zero value when absent.
type Provenance struct {
	Origin        string   `json:"origin"`
	User          string   `json:"user"`
	MeasurementID *string  `json:"measurementId"`
	TaskID        string   `json:"taskId"`
	DatasetFiles  []string `json:"datasetFiles"`
	History       []string `json:"history"`
}

// HasMeasurementID reports whether a non-blank measurement id has been set.
func (p *Provenance) HasMeasurementID() bool {
	return p.MeasurementID != nil && *p.MeasurementID != ""
}

// AppendHistory appends a stage working-directory path to the history list.
// History is append-only and strictly ordered oldest-first; callers must
// never truncate or reorder it.
func (p *Provenance) AppendHistory(stageDir string) {
	p.History = append(p.History, stageDir)
}

// MarshalFile renders p as indented JSON and writes it to path atomically:
// the write lands in a temporary file on the same volume and is then
// renamed over the destination, so a reader never observes a half-written
// provenance.json. This generalizes the write-temp-then-rename pattern used
// for payload copies to single-file metadata writes.
func (p *Provenance) MarshalFile(path string) error {
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return err
	}
	return atomic.WriteFile(path, jsonReader(data))
}

// LoadProvenance reads and parses a provenance.json file. Unknown fields are
// silently ignored by encoding/json's default behavior.
func LoadProvenance(path string) (*Provenance, error) {
	data, err := readFile(path)
	if err != nil {
		return nil, err
	}

	var p Provenance
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, err
	}
	return &p, nil
}
