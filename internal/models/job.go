package models

import "time"

// JobKind identifies the workflow a job ran.
type JobKind string

const (
	// JobBuild is a build of an instance.
	JobBuild JobKind = "build"
	// JobRestore is a restore of an instance from a backup.
	JobRestore JobKind = "restore"
)

// JobStatus represents the status of a job.
type JobStatus string

const (
	// StatusPending indicates the job is waiting to start.
	StatusPending JobStatus = "pending"
	// StatusRunning indicates the job is currently running.
	StatusRunning JobStatus = "running"
	// StatusSuccess indicates the job completed successfully.
	StatusSuccess JobStatus = "success"
	// StatusFailed indicates the job failed.
	StatusFailed JobStatus = "failed"
)

// Finished reports whether the status is terminal.
func (s JobStatus) Finished() bool {
	return s == StatusSuccess || s == StatusFailed
}

// JobResult is what the worker reports back after running a job: the
// '&&'-joined commands it ran and the captured log.
type JobResult struct {
	Commands string `json:"commands"`
	Output   string `json:"output"`
}

// Job is the stored record of one build or restore run.
type Job struct {
	CreatedAt  time.Time  `json:"created_at"`
	ExitCode   *int       `json:"exit_code"`
	StartedAt  *time.Time `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at"`
	ID         string     `json:"id"`
	Instance   string     `json:"instance"`
	Kind       JobKind    `json:"kind"`
	Status     JobStatus  `json:"status"`
	Commands   string     `json:"commands"`
	Output     string     `json:"output"`
}

// Result returns the part of the job reported to the caller that triggered it.
func (j *Job) Result() *JobResult {
	return &JobResult{Commands: j.Commands, Output: j.Output}
}
