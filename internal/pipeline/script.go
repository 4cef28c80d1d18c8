package pipeline

import (
	"context"
	"fmt"
	"strings"

	"storyforge/internal/domain"
)

// StageScript is the scene-breakdown stage shared by story and short jobs.
const StageScript = "script"

// ScriptRequest asks the writing model for a scene breakdown of a topic.
type ScriptRequest struct {
	Topic      string
	Locale     string
	SceneCount int
}

// ScriptScene is one scene of a generated script.
type ScriptScene struct {
	Narrative   string `json:"narrative"`
	ImagePrompt string `json:"image_prompt"`
}

// Script is the writing model's scene breakdown.
type Script struct {
	Title  string        `json:"title"`
	Scenes []ScriptScene `json:"scenes"`
}

// ScriptWriter generates a script from a topic. Implemented by the Gemini
// client adapter.
type ScriptWriter interface {
	WriteScript(ctx context.Context, req ScriptRequest) (*Script, error)
}

// ScriptStage turns the job topic into ordered story scenes. Not billable.
type ScriptStage struct {
	writer ScriptWriter
}

// NewScriptStage creates the script stage over the given writer.
func NewScriptStage(writer ScriptWriter) *ScriptStage {
	return &ScriptStage{writer: writer}
}

func (s *ScriptStage) Name() string                     { return StageScript }
func (s *ScriptStage) Optional() bool                   { return false }
func (s *ScriptStage) Bill() (domain.ContentKind, bool) { return "", false }

// Execute fills job.Scenes from the writer's breakdown.
func (s *ScriptStage) Execute(ctx context.Context, job *domain.PipelineJob) (string, error) {
	topic := strings.TrimSpace(job.Topic)
	if topic == "" {
		return "", WithStage(StageScript, Invalid("topic is required"))
	}
	sceneCount := job.SceneCount
	if sceneCount <= 0 {
		sceneCount = 3
	}

	script, err := s.writer.WriteScript(ctx, ScriptRequest{
		Topic:      topic,
		Locale:     job.Locale,
		SceneCount: sceneCount,
	})
	if err != nil {
		return "", WithStage(StageScript, err)
	}
	if script == nil || len(script.Scenes) == 0 {
		return "", WithStage(StageScript, Rejected(0, "script writer returned no scenes"))
	}

	scenes := script.Scenes
	if len(scenes) > sceneCount {
		scenes = scenes[:sceneCount]
	}
	job.Scenes = make([]domain.StoryScene, len(scenes))
	for i, scene := range scenes {
		job.Scenes[i] = domain.StoryScene{
			Index:       i,
			Narrative:   strings.TrimSpace(scene.Narrative),
			ImagePrompt: strings.TrimSpace(scene.ImagePrompt),
			ImageStatus: domain.StageStatusPending,
			VideoStatus: domain.StageStatusPending,
		}
	}
	return fmt.Sprintf("scenes:%d", len(job.Scenes)), nil
}

var _ Stage = (*ScriptStage)(nil)
