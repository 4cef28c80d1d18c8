package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"path"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"storyforge/internal/domain"
	"storyforge/pkg/zip"
)

const (
	defaultPageSize = 24
	maxPageSize     = 100
)

// Gallery lists public artifacts, newest first.
func (a *App) Gallery(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r)
	artifacts, err := a.Artifacts.ListPublic(r.Context(), limit, offset)
	if err != nil {
		a.Logger.Error().Err(err).Msg("list gallery failed")
		a.error(w, http.StatusServiceUnavailable, "storage_unavailable", "artifact store unreachable")
		return
	}
	a.json(w, http.StatusOK, map[string]any{"artifacts": artifacts})
}

// History lists the caller's own artifacts.
func (a *App) History(w http.ResponseWriter, r *http.Request) {
	identity := a.currentIdentity(r)
	if !identity.Valid() {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing identity")
		return
	}
	limit, offset := pagination(r)
	artifacts, err := a.Artifacts.ListByIdentity(r.Context(), identity.Key(), limit, offset)
	if err != nil {
		a.Logger.Error().Err(err).Str("identity_id", identity.ID).Msg("list history failed")
		a.error(w, http.StatusServiceUnavailable, "storage_unavailable", "artifact store unreachable")
		return
	}
	a.json(w, http.StatusOK, map[string]any{"artifacts": artifacts})
}

// JobBundle streams a zip of the job's artifacts. Locally stored payloads
// are included as files; remote vendor URLs are listed in a manifest.
func (a *App) JobBundle(w http.ResponseWriter, r *http.Request) {
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
		a.error(w, http.StatusServiceUnavailable, "storage_unavailable", "job store unreachable")
		return
	}
	if !identity.Owns(job.IdentityID, job.IdentityKind) {
		a.error(w, http.StatusNotFound, "not_found", "job not found")
		return
	}
	artifacts, err := a.Artifacts.ListByJob(r.Context(), jobID)
	if err != nil {
		a.error(w, http.StatusServiceUnavailable, "storage_unavailable", "artifact store unreachable")
		return
	}
	if len(artifacts) == 0 {
		a.error(w, http.StatusNotFound, "not_found", "job has no artifacts")
		return
	}

	assets := make([]zip.Asset, 0, len(artifacts)+1)
	var remote strings.Builder
	for i, artifact := range artifacts {
		if isRemote(artifact.ContentURL) {
			fmt.Fprintf(&remote, "%s\t%s\n", artifact.ContentType, artifact.ContentURL)
			continue
		}
		data, err := a.Blobs.Read(r.Context(), artifact.ContentURL)
		if err != nil {
			a.Logger.Warn().Err(err).Str("artifact_id", artifact.ID).Msg("bundle: read blob failed")
			continue
		}
		name := path.Base(artifact.ContentURL)
		if name == "." || name == "/" {
			name = fmt.Sprintf("artifact-%02d", i+1)
		}
		assets = append(assets, zip.Asset{Filename: name, Data: data})
	}
	if remote.Len() > 0 {
		assets = append(assets, zip.Asset{Filename: "remote-urls.txt", Data: []byte(remote.String())})
	}

	archive, err := zip.ArchiveAssets(assets)
	if err != nil {
		a.Logger.Error().Err(err).Str("job_id", jobID).Msg("bundle: build archive failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to build archive")
		return
	}
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", jobID+".zip"))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(archive)
}

func isRemote(url string) bool {
	return strings.HasPrefix(url, "http://") || strings.HasPrefix(url, "https://")
}

func pagination(r *http.Request) (limit, offset int) {
	limit = defaultPageSize
	if v, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && v > 0 {
		limit = v
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	if v, err := strconv.Atoi(r.URL.Query().Get("offset")); err == nil && v > 0 {
		offset = v
	}
	return limit, offset
}
