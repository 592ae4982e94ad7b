package types

import "time"

// JobState is the state of a long-running generation job.
type JobState string

const (
	JobSubmitted JobState = "submitted"
	JobPolling   JobState = "polling"
	JobSucceeded JobState = "succeeded"
	JobFailed    JobState = "failed"
)

// DefaultPollInterval is the fixed wait between two polls of a job.
const DefaultPollInterval = 10 * time.Second

// Job tracks an asynchronous generation task.
type Job struct {
	// Name is the opaque remote operation name.
	Name          string        `json:"name"`
	State         JobState      `json:"state"`
	PollInterval  time.Duration `json:"poll_interval"`
	ResultLocator string        `json:"result_locator,omitempty"`
	ResultMIME    string        `json:"result_mime,omitempty"`
	Err           error         `json:"-"`
	Polls         int           `json:"polls"`
}

// Terminal reports whether the job reached Succeeded or Failed.
func (j *Job) Terminal() bool {
	return j != nil && (j.State == JobSucceeded || j.State == JobFailed)
}
