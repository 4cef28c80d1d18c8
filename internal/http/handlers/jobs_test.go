package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"storyforge/internal/adapter/repo"
	"storyforge/internal/domain"
	"storyforge/internal/infra"
	"storyforge/internal/orchestrator"
)

func newJobsApp(t *testing.T) (*App, *repo.MemoryPipelineJobRepository) {
	t.Helper()
	jobs := repo.NewMemoryPipelineJobRepository()
	return &App{Logger: infra.Logger(zerolog.Nop()), Jobs: jobs}, jobs
}

func TestCreateStory(t *testing.T) {
	app, jobs := newJobsApp(t)
	identity := domain.AnonymousIdentity("s-1")
	rec := httptest.NewRecorder()
	app.CreateStory(rec, identityRequest(http.MethodPost, "/v1/stories", `{"topic":"a lighthouse keeper","scene_count":3,"render_videos":true}`, identity))

	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var job domain.PipelineJob
	if err := json.Unmarshal(rec.Body.Bytes(), &job); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if job.Kind != domain.JobKindStory {
		t.Fatalf("kind = %s", job.Kind)
	}
	if job.Status != domain.JobStatusPending {
		t.Fatalf("status = %s", job.Status)
	}
	if !job.RenderVideos {
		t.Fatal("render_videos dropped")
	}
	if len(job.Stages) != 3 {
		t.Fatalf("stages = %d, want script + images + videos", len(job.Stages))
	}
	stored, err := jobs.GetByID(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("stored job: %v", err)
	}
	if stored.IdentityID != identity.ID {
		t.Fatalf("stored identity = %q", stored.IdentityID)
	}
}

func TestCreateStoryValidation(t *testing.T) {
	app, _ := newJobsApp(t)
	cases := []struct {
		name string
		body string
	}{
		{"missing topic", `{"scene_count":3}`},
		{"blank topic", `{"topic":"  ","scene_count":3}`},
		{"too many scenes", `{"topic":"t","scene_count":11}`},
		{"negative scenes", `{"topic":"t","scene_count":-1}`},
		{"bad json", `{`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			app.CreateStory(rec, identityRequest(http.MethodPost, "/v1/stories", tc.body, domain.AnonymousIdentity("s-2")))
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", rec.Code)
			}
		})
	}
}

func TestCreateShort(t *testing.T) {
	app, _ := newJobsApp(t)
	rec := httptest.NewRecorder()
	app.CreateShort(rec, identityRequest(http.MethodPost, "/v1/shorts", `{"topic":"five facts about octopuses","scene_count":5}`, domain.AnonymousIdentity("s-3")))

	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var job domain.PipelineJob
	if err := json.Unmarshal(rec.Body.Bytes(), &job); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if job.Kind != domain.JobKindShort {
		t.Fatalf("kind = %s", job.Kind)
	}
	if len(job.Stages) != 6 {
		t.Fatalf("stages = %d", len(job.Stages))
	}
}

func TestCreateJobWithoutIdentity(t *testing.T) {
	app, _ := newJobsApp(t)
	rec := httptest.NewRecorder()
	app.CreateStory(rec, identityRequest(http.MethodPost, "/v1/stories", `{"topic":"t","scene_count":1}`, domain.Identity{}))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d", rec.Code)
	}
}

func getJobVia(app *App, jobID string, identity domain.Identity) *httptest.ResponseRecorder {
	router := chi.NewRouter()
	router.Get("/v1/jobs/{jobID}", app.GetJob)
	r := identityRequest(http.MethodGet, "/v1/jobs/"+jobID, "", identity)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, r)
	return rec
}

func TestGetJob(t *testing.T) {
	app, jobs := newJobsApp(t)
	identity := domain.AnonymousIdentity("s-4")
	job := orchestrator.NewStoryJob(identity, "a night market", "en", 2, false)
	if err := jobs.Create(context.Background(), job); err != nil {
		t.Fatalf("create: %v", err)
	}

	rec := getJobVia(app, job.ID, identity)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var got domain.PipelineJob
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.ID != job.ID {
		t.Fatalf("id = %q", got.ID)
	}
}

func TestGetJobHidesOtherOwners(t *testing.T) {
	app, jobs := newJobsApp(t)
	owner := domain.AnonymousIdentity("s-5")
	job := orchestrator.NewStoryJob(owner, "a mountain rescue", "en", 2, false)
	if err := jobs.Create(context.Background(), job); err != nil {
		t.Fatalf("create: %v", err)
	}

	rec := getJobVia(app, job.ID, domain.AnonymousIdentity("someone-else"))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404 for foreign job", rec.Code)
	}
}

func TestGetJobHidesSameIDDifferentKind(t *testing.T) {
	app, jobs := newJobsApp(t)
	owner := domain.UserIdentity("u-5")
	job := orchestrator.NewStoryJob(owner, "a mountain rescue", "en", 2, false)
	if err := jobs.Create(context.Background(), job); err != nil {
		t.Fatalf("create: %v", err)
	}

	// A session id equal to the owning user id is a different principal.
	rec := getJobVia(app, job.ID, domain.AnonymousIdentity("u-5"))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404 for a session claiming a user id", rec.Code)
	}

	rec = getJobVia(app, job.ID, owner)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 for the owner", rec.Code)
	}
}

func TestGetJobNotFound(t *testing.T) {
	app, _ := newJobsApp(t)
	rec := getJobVia(app, "missing-id", domain.AnonymousIdentity("s-6"))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rec.Code)
	}
}
