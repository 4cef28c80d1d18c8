// Package handlers carries the HTTP surface: credits, job enqueueing,
// gallery reads and the vendor proxy endpoints.
package handlers

import (
	"encoding/json"
	"net/http"

	"storyforge/internal/credits"
	"storyforge/internal/domain"
	"storyforge/internal/infra"
	"storyforge/internal/ledger"
	"storyforge/internal/middleware"
	"storyforge/internal/storage"
)

type App struct {
	Logger    infra.Logger
	SQL       infra.SQLExecutor
	Ledger    *ledger.Ledger
	Purchaser credits.Purchaser
	Jobs      domain.PipelineJobRepository
	Artifacts domain.ArtifactRepository
	Blobs     *storage.FileStore
	Proxy     ProxyConfig
	AdminKey  string
}

type errorEnvelope struct {
	Error      string `json:"error"`
	StatusCode int    `json:"statusCode,omitempty"`
	Message    string `json:"message,omitempty"`
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, code int, errCode, message string) {
	a.json(w, code, errorEnvelope{Error: errCode, StatusCode: code, Message: message})
}

// currentIdentity returns the caller identity resolved by the middleware,
// zero when the route was mounted without it.
func (a *App) currentIdentity(r *http.Request) domain.Identity {
	return middleware.IdentityFromContext(r.Context())
}
