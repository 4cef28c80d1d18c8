package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"storyforge/internal/credits"
	"storyforge/internal/domain"
)

// Credits returns the caller's remaining image and video counts.
func (a *App) Credits(w http.ResponseWriter, r *http.Request) {
	identity := a.currentIdentity(r)
	if !identity.Valid() {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing identity")
		return
	}
	remaining, err := a.Ledger.RemainingCounts(r.Context(), identity)
	if err != nil {
		a.Logger.Error().Err(err).Str("identity_id", identity.ID).Msg("remaining counts failed")
		a.error(w, http.StatusServiceUnavailable, "storage_unavailable", "usage store unreachable")
		return
	}
	a.json(w, http.StatusOK, remaining)
}

// CreditsCatalog lists the purchasable packages.
func (a *App) CreditsCatalog(w http.ResponseWriter, r *http.Request) {
	a.json(w, http.StatusOK, map[string]any{"packages": credits.Catalog()})
}

type purchaseRequest struct {
	PackageID string `json:"package_id"`
}

// CreditsPurchase settles a simulated purchase and applies it as a limit
// increase.
func (a *App) CreditsPurchase(w http.ResponseWriter, r *http.Request) {
	identity := a.currentIdentity(r)
	if !identity.Valid() {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing identity")
		return
	}
	var req purchaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	if req.PackageID == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "package_id required")
		return
	}
	receipt, err := a.Purchaser.Purchase(r.Context(), identity, req.PackageID)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		a.error(w, http.StatusNotFound, "not_found", "unknown package")
		return
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		a.error(w, http.StatusRequestTimeout, "canceled", "purchase canceled")
		return
	case err != nil:
		a.Logger.Error().Err(err).Str("identity_id", identity.ID).Msg("purchase failed")
		a.error(w, http.StatusServiceUnavailable, "storage_unavailable", "usage store unreachable")
		return
	}
	a.json(w, http.StatusOK, receipt)
}

type setLimitsRequest struct {
	IdentityID string `json:"identity_id"`
	ImageLimit int    `json:"image_limit"`
	VideoLimit int    `json:"video_limit"`
}

// CreditsSetLimits is the privileged limit override. Guarded by a static
// admin key rather than user identity.
func (a *App) CreditsSetLimits(w http.ResponseWriter, r *http.Request) {
	if a.AdminKey == "" || r.Header.Get("X-Admin-Key") != a.AdminKey {
		a.error(w, http.StatusForbidden, "forbidden", "admin key required")
		return
	}
	var req setLimitsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	identity := domain.UserIdentity(req.IdentityID)
	if err := a.Ledger.SetLimits(r.Context(), identity, req.ImageLimit, req.VideoLimit); err != nil {
		if errors.Is(err, domain.ErrInvalidInput) {
			a.error(w, http.StatusBadRequest, "bad_request", "limits must be positive")
			return
		}
		a.Logger.Error().Err(err).Str("identity_id", req.IdentityID).Msg("set limits failed")
		a.error(w, http.StatusServiceUnavailable, "storage_unavailable", "usage store unreachable")
		return
	}
	remaining, err := a.Ledger.RemainingCounts(r.Context(), identity)
	if err != nil {
		a.error(w, http.StatusServiceUnavailable, "storage_unavailable", "usage store unreachable")
		return
	}
	a.json(w, http.StatusOK, remaining)
}
