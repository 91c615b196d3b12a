package pipeline

import "errors"

// ErrValidation marks a failure the submitting user can act on: bad or
// missing metadata, an unresolvable file reference, a missing measurement
// id. Tasks failing with ErrValidation are parked to the user's error
// directory.
var ErrValidation = errors.New("validation error")

// ErrIntervention marks a failure the user cannot act on: missing or
// unreadable provenance, an I/O fault during a stage transition, or any
// other unexpected condition. Tasks failing with ErrIntervention are
// parked to the stage's intervention directory.
var ErrIntervention = errors.New("intervention required")
