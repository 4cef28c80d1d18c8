package domain

import "time"

// JobKind enumerates supported pipeline job categories.
type JobKind string

const (
	JobKindStory JobKind = "story"
	JobKindShort JobKind = "short"
)

// JobStatus enumerates pipeline job lifecycle states.
type JobStatus string

const (
	JobStatusPending  JobStatus = "pending"
	JobStatusRunning  JobStatus = "running"
	JobStatusPartial  JobStatus = "partial"
	JobStatusComplete JobStatus = "complete"
	JobStatusFailed   JobStatus = "failed"
)

// Terminal reports whether the status is final.
func (s JobStatus) Terminal() bool {
	return s == JobStatusPartial || s == JobStatusComplete || s == JobStatusFailed
}

// StageStatus enumerates per-stage lifecycle states.
type StageStatus string

const (
	StageStatusPending   StageStatus = "pending"
	StageStatusRunning   StageStatus = "running"
	StageStatusSucceeded StageStatus = "succeeded"
	StageStatusFailed    StageStatus = "failed"
)

// StageResult records the outcome of one pipeline stage within a job. Output
// holds an opaque artifact reference on success; Reason carries the
// machine-readable failure kind and Error the human-readable message.
type StageResult struct {
	Name        string      `json:"name"`
	Status      StageStatus `json:"status"`
	Optional    bool        `json:"optional,omitempty"`
	Output      string      `json:"output,omitempty"`
	Reason      string      `json:"reason,omitempty"`
	Error       string      `json:"error,omitempty"`
	AttemptedAt *time.Time  `json:"attempted_at,omitempty"`
}

// StoryScene is one scene of a story job. Image/video fields are filled in
// place as the corresponding stage succeeds and frozen once the job reaches
// a terminal state.
type StoryScene struct {
	Index       int         `json:"index"`
	Narrative   string      `json:"narrative"`
	ImagePrompt string      `json:"image_prompt,omitempty"`
	ImageURL    string      `json:"image_url,omitempty"`
	VideoURL    string      `json:"video_url,omitempty"`
	ImageStatus StageStatus `json:"image_status,omitempty"`
	VideoStatus StageStatus `json:"video_status,omitempty"`
	ImageError  string      `json:"image_error,omitempty"`
	VideoError  string      `json:"video_error,omitempty"`
}

// PipelineJob is one end-to-end orchestrated generation request. The job and
// its scenes are owned exclusively by the orchestrator run that claimed it.
type PipelineJob struct {
	ID           string        `json:"id"`
	IdentityID   string        `json:"-"`
	IdentityKind IdentityKind  `json:"-"`
	Kind         JobKind       `json:"kind"`
	Status       JobStatus     `json:"status"`
	Topic        string        `json:"topic"`
	Locale       string        `json:"locale,omitempty"`
	SceneCount   int           `json:"scene_count"`
	RenderVideos bool          `json:"render_videos,omitempty"`
	Stages       []StageResult `json:"stages"`
	Scenes       []StoryScene  `json:"scenes,omitempty"`
	Error        string        `json:"error,omitempty"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
}

// Identity reconstructs the metering identity that owns the job.
func (j *PipelineJob) Identity() Identity {
	return Identity{ID: j.IdentityID, Kind: j.IdentityKind}
}

// Stage returns the stage result with the given name, or nil.
func (j *PipelineJob) Stage(name string) *StageResult {
	for i := range j.Stages {
		if j.Stages[i].Name == name {
			return &j.Stages[i]
		}
	}
	return nil
}
