package pipeline

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"storyforge/internal/domain"
)

// StagePromptify derives a visual prompt for every scene that lacks one.
const StagePromptify = "promptify"

// PromptDeriver turns a narrative line into an image search/generation
// prompt. Implemented by the Gemini client adapter.
type PromptDeriver interface {
	DeriveImagePrompt(ctx context.Context, narrative, locale string) (string, error)
}

// PromptifyStage fills scene image prompts ahead of the image fetch. Not
// billable.
type PromptifyStage struct {
	deriver PromptDeriver
}

// NewPromptifyStage creates the prompt derivation stage.
func NewPromptifyStage(deriver PromptDeriver) *PromptifyStage {
	return &PromptifyStage{deriver: deriver}
}

func (p *PromptifyStage) Name() string                     { return StagePromptify }
func (p *PromptifyStage) Optional() bool                   { return false }
func (p *PromptifyStage) Bill() (domain.ContentKind, bool) { return "", false }

// Execute derives an image prompt for each scene missing one, tagging every
// prompt with the title-cased topic for visual consistency across scenes.
func (p *PromptifyStage) Execute(ctx context.Context, job *domain.PipelineJob) (string, error) {
	if len(job.Scenes) == 0 {
		return "", WithStage(StagePromptify, MissingDependency("no scenes to derive prompts for"))
	}

	styleTag := cases.Title(language.Und).String(strings.TrimSpace(job.Topic))
	derived := 0
	for i := range job.Scenes {
		scene := &job.Scenes[i]
		if scene.ImagePrompt != "" {
			continue
		}
		prompt, err := p.deriver.DeriveImagePrompt(ctx, scene.Narrative, job.Locale)
		if err != nil {
			return "", WithStage(StagePromptify, err)
		}
		prompt = strings.TrimSpace(prompt)
		if prompt == "" {
			return "", WithStage(StagePromptify, Rejected(0, fmt.Sprintf("empty prompt for scene %d", scene.Index)))
		}
		if styleTag != "" && !strings.Contains(strings.ToLower(prompt), strings.ToLower(styleTag)) {
			prompt = prompt + ", " + styleTag
		}
		scene.ImagePrompt = prompt
		derived++
	}
	return fmt.Sprintf("prompts:%d", derived), nil
}

var _ Stage = (*PromptifyStage)(nil)
