package domain

import "time"

// JobState enumerates the lifecycle of one upscale workflow.
type JobState string

const (
	JobStateUploading JobState = "uploading"
	JobStateQueued    JobState = "queued"
	JobStatePolling   JobState = "polling"
	JobStateCompleted JobState = "completed"
	JobStateTimedOut  JobState = "timed_out"
	JobStateFailed    JobState = "failed"
)

// WorkflowJob is the opaque job identifier assigned by the workflow engine on submission.
type WorkflowJob struct {
	ID          string    `json:"prompt_id"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// OutputImage identifies one image produced by a workflow job.
type OutputImage struct {
	Filename  string `json:"filename"`
	Subfolder string `json:"subfolder"`
	Type      string `json:"type"`
}
