package handlers

import (
	archivezip "archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"storyforge/internal/adapter/repo"
	"storyforge/internal/domain"
	"storyforge/internal/infra"
	"storyforge/internal/orchestrator"
	"storyforge/internal/storage"
)

func newGalleryApp(t *testing.T) (*App, *repo.MemoryArtifactRepository, *repo.MemoryPipelineJobRepository) {
	t.Helper()
	artifacts := repo.NewMemoryArtifactRepository()
	jobs := repo.NewMemoryPipelineJobRepository()
	blobs, err := storage.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("file store: %v", err)
	}
	return &App{
		Logger:    infra.Logger(zerolog.Nop()),
		Jobs:      jobs,
		Artifacts: artifacts,
		Blobs:     blobs,
	}, artifacts, jobs
}

func saveArtifact(t *testing.T, artifacts *repo.MemoryArtifactRepository, a domain.Artifact) {
	t.Helper()
	if err := artifacts.Save(context.Background(), &a); err != nil {
		t.Fatalf("save artifact: %v", err)
	}
}

func decodeArtifacts(t *testing.T, rec *httptest.ResponseRecorder) []domain.Artifact {
	t.Helper()
	var body struct {
		Artifacts []domain.Artifact `json:"artifacts"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return body.Artifacts
}

func TestGalleryListsPublicOnly(t *testing.T) {
	app, artifacts, _ := newGalleryApp(t)
	saveArtifact(t, artifacts, domain.Artifact{ID: "a-1", ContentType: domain.ArtifactTypeImage, ContentURL: "https://cdn.example.com/1.png", IsPublic: true})
	saveArtifact(t, artifacts, domain.Artifact{ID: "a-2", ContentType: domain.ArtifactTypeImage, ContentURL: "https://cdn.example.com/2.png"})

	rec := httptest.NewRecorder()
	app.Gallery(rec, httptest.NewRequest(http.MethodGet, "/v1/gallery", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	got := decodeArtifacts(t, rec)
	if len(got) != 1 || got[0].ID != "a-1" {
		t.Fatalf("artifacts = %+v, want only the public one", got)
	}
}

func TestGalleryPagination(t *testing.T) {
	app, artifacts, _ := newGalleryApp(t)
	for _, id := range []string{"a-1", "a-2", "a-3"} {
		saveArtifact(t, artifacts, domain.Artifact{ID: id, ContentType: domain.ArtifactTypeImage, ContentURL: "https://cdn.example.com/" + id, IsPublic: true})
	}

	rec := httptest.NewRecorder()
	app.Gallery(rec, httptest.NewRequest(http.MethodGet, "/v1/gallery?limit=2&offset=1", nil))

	got := decodeArtifacts(t, rec)
	if len(got) != 2 {
		t.Fatalf("artifacts = %d, want 2", len(got))
	}
	if got[0].ID != "a-2" {
		t.Fatalf("first = %q", got[0].ID)
	}
}

func TestHistoryListsOwnArtifacts(t *testing.T) {
	app, artifacts, _ := newGalleryApp(t)
	saveArtifact(t, artifacts, domain.Artifact{ID: "a-1", IdentityID: domain.AnonymousIdentity("me").Key(), ContentType: domain.ArtifactTypeImage, ContentURL: "u"})
	saveArtifact(t, artifacts, domain.Artifact{ID: "a-2", IdentityID: domain.AnonymousIdentity("them").Key(), ContentType: domain.ArtifactTypeImage, ContentURL: "u"})
	saveArtifact(t, artifacts, domain.Artifact{ID: "a-3", IdentityID: domain.UserIdentity("me").Key(), ContentType: domain.ArtifactTypeImage, ContentURL: "u"})

	rec := httptest.NewRecorder()
	app.History(rec, identityRequest(http.MethodGet, "/v1/history", "", domain.AnonymousIdentity("me")))

	got := decodeArtifacts(t, rec)
	if len(got) != 1 || got[0].ID != "a-1" {
		t.Fatalf("artifacts = %+v, want only the session's own artifact", got)
	}
}

func TestHistoryWithoutIdentity(t *testing.T) {
	app, _, _ := newGalleryApp(t)
	rec := httptest.NewRecorder()
	app.History(rec, identityRequest(http.MethodGet, "/v1/history", "", domain.Identity{}))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d", rec.Code)
	}
}

func bundleVia(app *App, jobID string, identity domain.Identity) *httptest.ResponseRecorder {
	router := chi.NewRouter()
	router.Get("/v1/jobs/{jobID}/bundle", app.JobBundle)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, identityRequest(http.MethodGet, "/v1/jobs/"+jobID+"/bundle", "", identity))
	return rec
}

func TestJobBundle(t *testing.T) {
	app, artifacts, jobs := newGalleryApp(t)
	identity := domain.AnonymousIdentity("me")
	job := orchestrator.NewShortJob(identity, "how glass is made", "en", 3)
	if err := jobs.Create(context.Background(), job); err != nil {
		t.Fatalf("create job: %v", err)
	}
	key, err := app.Blobs.Write(context.Background(), job.ID+"/narration.mp3", []byte("mp3-bytes"))
	if err != nil {
		t.Fatalf("write blob: %v", err)
	}
	saveArtifact(t, artifacts, domain.Artifact{ID: "a-1", JobID: job.ID, IdentityID: identity.Key(), ContentType: domain.ArtifactTypeAudio, ContentURL: key})
	saveArtifact(t, artifacts, domain.Artifact{ID: "a-2", JobID: job.ID, IdentityID: identity.Key(), ContentType: domain.ArtifactTypeImage, ContentURL: "https://cdn.example.com/scene-1.png"})

	rec := bundleVia(app, job.ID, identity)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/zip" {
		t.Fatalf("content type = %q", ct)
	}
	if cd := rec.Header().Get("Content-Disposition"); !strings.Contains(cd, job.ID+".zip") {
		t.Fatalf("content disposition = %q", cd)
	}

	reader, err := archivezip.NewReader(bytes.NewReader(rec.Body.Bytes()), int64(rec.Body.Len()))
	if err != nil {
		t.Fatalf("open archive: %v", err)
	}
	names := make(map[string]bool, len(reader.File))
	for _, f := range reader.File {
		names[f.Name] = true
	}
	if !names["narration.mp3"] {
		t.Fatalf("archive names = %v, want narration.mp3", names)
	}
	if !names["remote-urls.txt"] {
		t.Fatalf("archive names = %v, want remote-urls.txt", names)
	}
}

func TestJobBundleForeignJob(t *testing.T) {
	app, artifacts, jobs := newGalleryApp(t)
	owner := domain.AnonymousIdentity("owner")
	job := orchestrator.NewShortJob(owner, "t", "en", 1)
	if err := jobs.Create(context.Background(), job); err != nil {
		t.Fatalf("create job: %v", err)
	}
	saveArtifact(t, artifacts, domain.Artifact{ID: "a-1", JobID: job.ID, IdentityID: owner.Key(), ContentType: domain.ArtifactTypeImage, ContentURL: "https://cdn.example.com/x.png"})

	rec := bundleVia(app, job.ID, domain.AnonymousIdentity("stranger"))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestJobBundleNoArtifacts(t *testing.T) {
	app, _, jobs := newGalleryApp(t)
	identity := domain.AnonymousIdentity("me")
	job := orchestrator.NewShortJob(identity, "t", "en", 1)
	if err := jobs.Create(context.Background(), job); err != nil {
		t.Fatalf("create job: %v", err)
	}

	rec := bundleVia(app, job.ID, identity)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rec.Code)
	}
}
