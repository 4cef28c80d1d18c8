package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"storyforge/internal/domain"
	"storyforge/internal/middleware"
	"storyforge/internal/orchestrator"
)

const maxSceneCount = 10

type createStoryRequest struct {
	Topic        string `json:"topic"`
	SceneCount   int    `json:"scene_count"`
	RenderVideos bool   `json:"render_videos"`
}

type createShortRequest struct {
	Topic      string `json:"topic"`
	SceneCount int    `json:"scene_count"`
}

// CreateStory enqueues a story job; the worker picks it up.
func (a *App) CreateStory(w http.ResponseWriter, r *http.Request) {
	identity := a.currentIdentity(r)
	if !identity.Valid() {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing identity")
		return
	}
	var req createStoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	topic := strings.TrimSpace(req.Topic)
	if topic == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "topic required")
		return
	}
	if req.SceneCount < 0 || req.SceneCount > maxSceneCount {
		a.error(w, http.StatusBadRequest, "bad_request", "scene_count out of range")
		return
	}

	locale := middleware.LocaleFromContext(r.Context())
	job := orchestrator.NewStoryJob(identity, topic, locale, req.SceneCount, req.RenderVideos)
	if err := a.Jobs.Create(r.Context(), job); err != nil {
		a.Logger.Error().Err(err).Str("identity_id", identity.ID).Msg("enqueue story failed")
		a.error(w, http.StatusServiceUnavailable, "storage_unavailable", "job store unreachable")
		return
	}
	a.json(w, http.StatusAccepted, job)
}

// CreateShort enqueues a short job.
func (a *App) CreateShort(w http.ResponseWriter, r *http.Request) {
	identity := a.currentIdentity(r)
	if !identity.Valid() {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing identity")
		return
	}
	var req createShortRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	topic := strings.TrimSpace(req.Topic)
	if topic == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "topic required")
		return
	}
	if req.SceneCount < 0 || req.SceneCount > maxSceneCount {
		a.error(w, http.StatusBadRequest, "bad_request", "scene_count out of range")
		return
	}

	locale := middleware.LocaleFromContext(r.Context())
	job := orchestrator.NewShortJob(identity, topic, locale, req.SceneCount)
	if err := a.Jobs.Create(r.Context(), job); err != nil {
		a.Logger.Error().Err(err).Str("identity_id", identity.ID).Msg("enqueue short failed")
		a.error(w, http.StatusServiceUnavailable, "storage_unavailable", "job store unreachable")
		return
	}
	a.json(w, http.StatusAccepted, job)
}

// GetJob returns the job with its stage results and scenes. Only the
// owning identity may read it.
func (a *App) GetJob(w http.ResponseWriter, r *http.Request) {
	identity := a.currentIdentity(r)
	if !identity.Valid() {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing identity")
		return
	}
	jobID := chi.URLParam(r, "jobID")
	job, err := a.Jobs.GetByID(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			a.error(w, http.StatusNotFound, "not_found", "job not found")
			return
		}
		a.Logger.Error().Err(err).Str("job_id", jobID).Msg("get job failed")
		a.error(w, http.StatusServiceUnavailable, "storage_unavailable", "job store unreachable")
		return
	}
	if !identity.Owns(job.IdentityID, job.IdentityKind) {
		a.error(w, http.StatusNotFound, "not_found", "job not found")
		return
	}
	a.json(w, http.StatusOK, job)
}
