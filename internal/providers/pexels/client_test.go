package pexels

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"storyforge/internal/pipeline"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewClient(Options{APIKey: "px-key", BaseURL: server.URL, HTTPClient: server.Client()})
}

func TestSearchPhotos(t *testing.T) {
	var gotAuth, gotQuery, gotPerPage string
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotQuery = r.URL.Query().Get("query")
		gotPerPage = r.URL.Query().Get("per_page")
		json.NewEncoder(w).Encode(map[string]any{
			"photos": []map[string]any{
				{
					"width":        5000,
					"height":       3000,
					"photographer": "Ana",
					"src":          map[string]string{"large2x": "https://images.pexels.com/1/large2x.jpg", "large": "https://images.pexels.com/1/large.jpg"},
				},
				{
					"width":        4000,
					"height":       2500,
					"photographer": "Ben",
					"src":          map[string]string{"large": "https://images.pexels.com/2/large.jpg"},
				},
			},
		})
	}))

	photos, err := client.SearchPhotos(context.Background(), "coral reef", 2)
	if err != nil {
		t.Fatalf("SearchPhotos: %v", err)
	}
	if gotAuth != "px-key" {
		t.Fatalf("auth = %q", gotAuth)
	}
	if gotQuery != "coral reef" {
		t.Fatalf("query = %q", gotQuery)
	}
	if gotPerPage != "2" {
		t.Fatalf("per_page = %q", gotPerPage)
	}
	if len(photos) != 2 {
		t.Fatalf("photos = %d", len(photos))
	}
	if photos[0].URL != "https://images.pexels.com/1/large2x.jpg" {
		t.Fatalf("photo 1 url = %q, want large2x preferred", photos[0].URL)
	}
	if photos[1].URL != "https://images.pexels.com/2/large.jpg" {
		t.Fatalf("photo 2 url = %q", photos[1].URL)
	}
	if photos[0].Photographer != "Ana" {
		t.Fatalf("photographer = %q", photos[0].Photographer)
	}
}

func TestSearchPhotosClampsCount(t *testing.T) {
	var gotPerPage string
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPerPage = r.URL.Query().Get("per_page")
		json.NewEncoder(w).Encode(map[string]any{"photos": []any{}})
	}))

	if _, err := client.SearchPhotos(context.Background(), "sky", 500); err != nil {
		t.Fatalf("SearchPhotos: %v", err)
	}
	if gotPerPage != "80" {
		t.Fatalf("per_page = %q, want 80", gotPerPage)
	}
}

func TestSearchPhotosEmptyQuery(t *testing.T) {
	client := NewClient(Options{APIKey: "k"})
	_, err := client.SearchPhotos(context.Background(), "  ", 5)
	var stageErr *pipeline.Error
	if !errors.As(err, &stageErr) || stageErr.Kind != pipeline.FailureInvalidInput {
		t.Fatalf("err = %v, want invalid_input", err)
	}
}

func TestSearchPhotosVendorError(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]string{"error": "Access to this API has been disallowed"})
	}))

	_, err := client.SearchPhotos(context.Background(), "sky", 5)
	var stageErr *pipeline.Error
	if !errors.As(err, &stageErr) {
		t.Fatalf("err = %v", err)
	}
	if stageErr.Kind != pipeline.FailureVendorRejected {
		t.Fatalf("kind = %s", stageErr.Kind)
	}
	if stageErr.Status != http.StatusUnauthorized {
		t.Fatalf("status = %d", stageErr.Status)
	}
}

func TestSearchPhotosSkipsPhotosWithoutSources(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"photos": []map[string]any{
				{"photographer": "Cy", "src": map[string]string{}},
				{"photographer": "Di", "src": map[string]string{"original": "https://images.pexels.com/3/original.jpg"}},
			},
		})
	}))

	photos, err := client.SearchPhotos(context.Background(), "fog", 5)
	if err != nil {
		t.Fatalf("SearchPhotos: %v", err)
	}
	if len(photos) != 1 {
		t.Fatalf("photos = %d, want sourceless entry skipped", len(photos))
	}
	if photos[0].URL != "https://images.pexels.com/3/original.jpg" {
		t.Fatalf("url = %q", photos[0].URL)
	}
}
