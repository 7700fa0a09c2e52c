package models

import (
	"time"

	"github.com/google/uuid"
)

// JobStatus represents the lifecycle state of a lookup job.
type JobStatus string

const (
	JobStatusRunning   JobStatus = "RUNNING"
	JobStatusCompleted JobStatus = "COMPLETED"
)

// Job is the coordinator-owned state of one uploaded fingerprint file.
// batches_completed counts distinct processed work units; a job is terminal
// once batches_completed reaches batches_expected.
type Job struct {
	JobID            uuid.UUID `json:"jobId"`
	CreatedAt        time.Time `json:"createdAt"`
	Status           JobStatus `json:"status"`
	TotalHashes      int       `json:"totalHashes"`
	BatchesExpected  int       `json:"batchesExpected"`
	BatchesCompleted int       `json:"batchesCompleted"`
	FoundCount       int       `json:"foundCount"`
}

// IsComplete reports whether the job has reached its terminal state.
func (j *Job) IsComplete() bool {
	return j.Status == JobStatusCompleted
}

// ResultRow is one line of the downloadable results artifact: a requested
// fingerprint and its resolved preimage, or NotFoundPlaceholder when the
// mapping had no entry.
type ResultRow struct {
	HashHex string
	Phone   string
}

// NotFoundPlaceholder fills the preimage column for unresolved fingerprints.
const NotFoundPlaceholder = "NOT FOUND"
