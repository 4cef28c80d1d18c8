package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"storyforge/internal/infra"
)

func newProxyApp(vendors map[string]ProxyVendor, client *http.Client) http.Handler {
	app := &App{
		Logger: infra.Logger(zerolog.Nop()),
		Proxy:  ProxyConfig{Vendors: vendors, Client: client},
	}
	router := chi.NewRouter()
	router.Post("/v1/proxy/{vendor}", app.ProxyVendorCall)
	return router
}

func TestProxyForwardsPostWithServerKey(t *testing.T) {
	var gotMethod, gotPath, gotAuth, gotBody string
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		data, _ := io.ReadAll(r.Body)
		gotBody = string(data)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"images":[{"url":"https://cdn.fal.ai/x.png"}]}`))
	}))
	defer upstream.Close()

	handler := newProxyApp(map[string]ProxyVendor{
		"falai": {BaseURL: upstream.URL, APIKey: "server-key", AuthStyle: "key"},
	}, upstream.Client())

	body := `{"endpoint":"fal-ai/flux/schnell","input":{"prompt":"a red door"}}`
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/proxy/falai", strings.NewReader(body)))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if gotMethod != http.MethodPost {
		t.Fatalf("upstream method = %s", gotMethod)
	}
	if gotPath != "/fal-ai/flux/schnell" {
		t.Fatalf("upstream path = %s", gotPath)
	}
	if gotAuth != "Key server-key" {
		t.Fatalf("upstream auth = %q", gotAuth)
	}
	if gotBody != `{"prompt":"a red door"}` {
		t.Fatalf("upstream body = %s", gotBody)
	}
	if !strings.Contains(rec.Body.String(), "cdn.fal.ai/x.png") {
		t.Fatalf("response body = %s", rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("content type = %q", ct)
	}
}

func TestProxyUsesGetWhenNoInput(t *testing.T) {
	var gotMethod string
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		w.Write([]byte(`{"status":"COMPLETED"}`))
	}))
	defer upstream.Close()

	handler := newProxyApp(map[string]ProxyVendor{
		"falai": {BaseURL: upstream.URL, APIKey: "k", AuthStyle: "key"},
	}, upstream.Client())

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/proxy/falai", strings.NewReader(`{"endpoint":"requests/abc/status"}`)))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if gotMethod != http.MethodGet {
		t.Fatalf("upstream method = %s, want GET", gotMethod)
	}
}

func TestProxyCallerKeyOverridesServerKey(t *testing.T) {
	var gotAuth string
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte(`{}`))
	}))
	defer upstream.Close()

	handler := newProxyApp(map[string]ProxyVendor{
		"falai": {BaseURL: upstream.URL, APIKey: "server-key", AuthStyle: "key"},
	}, upstream.Client())

	r := httptest.NewRequest(http.MethodPost, "/v1/proxy/falai", strings.NewReader(`{"endpoint":"e","input":{}}`))
	r.Header.Set("Authorization", "Key caller-key")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, r)

	if gotAuth != "Key caller-key" {
		t.Fatalf("upstream auth = %q, want caller key", gotAuth)
	}
}

func TestProxyQueryAuthStyle(t *testing.T) {
	var gotKey string
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.URL.Query().Get("key")
		w.Write([]byte(`{}`))
	}))
	defer upstream.Close()

	handler := newProxyApp(map[string]ProxyVendor{
		"gemini": {BaseURL: upstream.URL, APIKey: "g-key", AuthStyle: "query"},
	}, upstream.Client())

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/proxy/gemini", strings.NewReader(`{"endpoint":"models/gemini-2.5-flash:generateContent","input":{}}`)))

	if gotKey != "g-key" {
		t.Fatalf("query key = %q", gotKey)
	}
}

func TestProxyMirrorsVendorError(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		w.Write([]byte(`{"detail":"prompt violates content policy"}`))
	}))
	defer upstream.Close()

	handler := newProxyApp(map[string]ProxyVendor{
		"falai": {BaseURL: upstream.URL, APIKey: "k", AuthStyle: "key"},
	}, upstream.Client())

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/proxy/falai", strings.NewReader(`{"endpoint":"e","input":{}}`)))

	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want vendor status mirrored", rec.Code)
	}
	var envelope errorEnvelope
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if envelope.Error != "vendor_rejected" {
		t.Fatalf("error = %q", envelope.Error)
	}
	if envelope.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("statusCode = %d", envelope.StatusCode)
	}
	if envelope.Message != "prompt violates content policy" {
		t.Fatalf("message = %q", envelope.Message)
	}
}

func TestProxyUnknownVendor(t *testing.T) {
	handler := newProxyApp(map[string]ProxyVendor{}, nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/proxy/midjourney", strings.NewReader(`{"endpoint":"e"}`)))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestProxyRejectsMissingEndpoint(t *testing.T) {
	handler := newProxyApp(map[string]ProxyVendor{
		"falai": {BaseURL: "https://fal.run", APIKey: "k"},
	}, nil)
	for _, body := range []string{`{}`, `{"endpoint":"../secrets"}`} {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/proxy/falai", strings.NewReader(body)))
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("body %s: status = %d, want 400", body, rec.Code)
		}
	}
}

func TestProxyUpstreamUnreachable(t *testing.T) {
	upstream := httptest.NewServer(http.NotFoundHandler())
	client := upstream.Client()
	url := upstream.URL
	upstream.Close()

	handler := newProxyApp(map[string]ProxyVendor{
		"falai": {BaseURL: url, APIKey: "k", AuthStyle: "key"},
	}, client)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/proxy/falai", strings.NewReader(`{"endpoint":"e","input":{}}`)))

	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", rec.Code)
	}
	var envelope errorEnvelope
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if envelope.Error != "vendor_unavailable" {
		t.Fatalf("error = %q", envelope.Error)
	}
}
