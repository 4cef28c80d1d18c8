package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"storyforge/internal/adapter/repo"
	"storyforge/internal/credits"
	"storyforge/internal/domain"
	"storyforge/internal/infra"
	"storyforge/internal/ledger"
	"storyforge/internal/middleware"
)

func newCreditsApp(t *testing.T) (*App, *repo.MemoryUsageRepository) {
	t.Helper()
	usage := repo.NewMemoryUsageRepository()
	led := ledger.New(usage, zerolog.Nop())
	return &App{
		Logger:    infra.Logger(zerolog.Nop()),
		Ledger:    led,
		Purchaser: credits.NewSimulator(led, 0, zerolog.Nop()),
		AdminKey:  "admin-secret",
	}, usage
}

func identityRequest(method, target string, body string, identity domain.Identity) *http.Request {
	var r *http.Request
	if body == "" {
		r = httptest.NewRequest(method, target, nil)
	} else {
		r = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	if identity.Valid() {
		r = r.WithContext(middleware.ContextWithIdentity(r.Context(), identity))
	}
	return r
}

func TestCreditsReturnsRemaining(t *testing.T) {
	app, _ := newCreditsApp(t)
	rec := httptest.NewRecorder()
	app.Credits(rec, identityRequest(http.MethodGet, "/v1/credits", "", domain.AnonymousIdentity("s-1")))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var remaining domain.RemainingCounts
	if err := json.Unmarshal(rec.Body.Bytes(), &remaining); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if remaining.Images != domain.DefaultImageLimit || remaining.Videos != domain.DefaultVideoLimit {
		t.Fatalf("remaining = %+v", remaining)
	}
}

func TestCreditsWithoutIdentity(t *testing.T) {
	app, _ := newCreditsApp(t)
	rec := httptest.NewRecorder()
	app.Credits(rec, identityRequest(http.MethodGet, "/v1/credits", "", domain.Identity{}))

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d", rec.Code)
	}
	var envelope errorEnvelope
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if envelope.Error != "unauthorized" {
		t.Fatalf("error = %q", envelope.Error)
	}
}

func TestCreditsCatalog(t *testing.T) {
	app, _ := newCreditsApp(t)
	rec := httptest.NewRecorder()
	app.CreditsCatalog(rec, httptest.NewRequest(http.MethodGet, "/v1/credits/catalog", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body struct {
		Packages []credits.Package `json:"packages"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Packages) != 3 {
		t.Fatalf("packages = %d", len(body.Packages))
	}
}

func TestCreditsPurchase(t *testing.T) {
	app, _ := newCreditsApp(t)
	identity := domain.AnonymousIdentity("s-2")
	rec := httptest.NewRecorder()
	app.CreditsPurchase(rec, identityRequest(http.MethodPost, "/v1/credits/purchase", `{"package_id":"starter"}`, identity))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var receipt credits.Receipt
	if err := json.Unmarshal(rec.Body.Bytes(), &receipt); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if receipt.PackageID != "starter" {
		t.Fatalf("package = %q", receipt.PackageID)
	}
	if receipt.Remaining.Images != domain.DefaultImageLimit+25 {
		t.Fatalf("remaining images = %d", receipt.Remaining.Images)
	}
}

func TestCreditsPurchaseUnknownPackage(t *testing.T) {
	app, _ := newCreditsApp(t)
	rec := httptest.NewRecorder()
	app.CreditsPurchase(rec, identityRequest(http.MethodPost, "/v1/credits/purchase", `{"package_id":"enterprise"}`, domain.AnonymousIdentity("s-3")))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestCreditsPurchaseMissingPackage(t *testing.T) {
	app, _ := newCreditsApp(t)
	rec := httptest.NewRecorder()
	app.CreditsPurchase(rec, identityRequest(http.MethodPost, "/v1/credits/purchase", `{}`, domain.AnonymousIdentity("s-4")))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestCreditsPurchaseCancelled(t *testing.T) {
	app, _ := newCreditsApp(t)
	identity := domain.AnonymousIdentity("s-5")
	r := identityRequest(http.MethodPost, "/v1/credits/purchase", `{"package_id":"starter"}`, identity)
	ctx, cancel := context.WithCancel(r.Context())
	cancel()
	rec := httptest.NewRecorder()
	app.CreditsPurchase(rec, r.WithContext(ctx))

	if rec.Code != http.StatusRequestTimeout {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestCreditsSetLimits(t *testing.T) {
	app, _ := newCreditsApp(t)
	r := identityRequest(http.MethodPost, "/v1/credits/limits", `{"identity_id":"u-1","image_limit":50,"video_limit":10}`, domain.Identity{})
	r.Header.Set("X-Admin-Key", "admin-secret")
	rec := httptest.NewRecorder()
	app.CreditsSetLimits(rec, r)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var remaining domain.RemainingCounts
	if err := json.Unmarshal(rec.Body.Bytes(), &remaining); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if remaining.Images != 50 || remaining.Videos != 10 {
		t.Fatalf("remaining = %+v", remaining)
	}
}

func TestCreditsSetLimitsWrongKey(t *testing.T) {
	app, _ := newCreditsApp(t)
	r := identityRequest(http.MethodPost, "/v1/credits/limits", `{"identity_id":"u-1","image_limit":50,"video_limit":10}`, domain.Identity{})
	r.Header.Set("X-Admin-Key", "wrong")
	rec := httptest.NewRecorder()
	app.CreditsSetLimits(rec, r)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestCreditsSetLimitsRejectsNonPositive(t *testing.T) {
	app, _ := newCreditsApp(t)
	r := identityRequest(http.MethodPost, "/v1/credits/limits", `{"identity_id":"u-1","image_limit":0,"video_limit":10}`, domain.Identity{})
	r.Header.Set("X-Admin-Key", "admin-secret")
	rec := httptest.NewRecorder()
	app.CreditsSetLimits(rec, r)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
}
