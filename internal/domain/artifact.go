package domain

import "time"

// ArtifactType enumerates persisted artifact categories.
type ArtifactType string

const (
	ArtifactTypeImage ArtifactType = "image"
	ArtifactTypeVideo ArtifactType = "video"
	ArtifactTypeAudio ArtifactType = "audio"
	ArtifactTypeText  ArtifactType = "text"
)

// Artifact is the durable metadata record for a generated asset. The bytes
// themselves live behind ContentURL (vendor CDN or local storage key); only
// the metadata is owned here.
type Artifact struct {
	ID          string         `json:"id"`
	JobID       string         `json:"job_id,omitempty"`
	IdentityID  string         `json:"user_id,omitempty"`
	ContentType ArtifactType   `json:"content_type"`
	ContentURL  string         `json:"content_url"`
	Prompt      string         `json:"prompt,omitempty"`
	IsPublic    bool           `json:"is_public"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
}
