package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
)

// ProxyVendor describes one proxied upstream: where it lives and how the
// server-held key is attached. Callers may instead send their own key via
// the Authorization header, which takes precedence.
type ProxyVendor struct {
	BaseURL string
	APIKey  string
	// AuthStyle is one of "bearer", "key", "plain", "query", "subscription".
	AuthStyle string
}

// ProxyConfig maps vendor route names to upstreams.
type ProxyConfig struct {
	Vendors map[string]ProxyVendor
	Client  *http.Client
}

type proxyRequest struct {
	Endpoint string          `json:"endpoint"`
	Input    json.RawMessage `json:"input"`
}

// ProxyVendorCall forwards one vendor call. The request body names the
// vendor endpoint and carries the raw vendor payload; the response is the
// vendor's JSON verbatim on success, the error envelope mirroring the
// vendor status on failure.
func (a *App) ProxyVendorCall(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "vendor")
	vendor, ok := a.Proxy.Vendors[name]
	if !ok {
		a.error(w, http.StatusNotFound, "not_found", "unknown vendor "+name)
		return
	}

	var req proxyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	endpoint := strings.TrimSpace(req.Endpoint)
	if endpoint == "" || strings.Contains(endpoint, "..") {
		a.error(w, http.StatusBadRequest, "bad_request", "endpoint required")
		return
	}

	target := strings.TrimRight(vendor.BaseURL, "/") + "/" + strings.TrimLeft(endpoint, "/")
	method := http.MethodPost
	var body io.Reader
	if len(req.Input) == 0 || string(req.Input) == "null" {
		method = http.MethodGet
	} else {
		body = bytes.NewReader(req.Input)
	}

	upstream, err := http.NewRequestWithContext(r.Context(), method, target, body)
	if err != nil {
		a.error(w, http.StatusInternalServerError, "internal", "build upstream request failed")
		return
	}
	if body != nil {
		upstream.Header.Set("Content-Type", "application/json")
	}

	key := vendor.APIKey
	if caller := strings.TrimSpace(r.Header.Get("Authorization")); caller != "" {
		key = strings.TrimPrefix(caller, "Bearer ")
		key = strings.TrimPrefix(key, "Key ")
	}
	applyVendorAuth(upstream, vendor.AuthStyle, key)

	client := a.Proxy.Client
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	resp, err := client.Do(upstream)
	if err != nil {
		a.Logger.Warn().Err(err).Str("vendor", name).Msg("proxy: upstream unreachable")
		a.error(w, http.StatusBadGateway, "vendor_unavailable", "vendor unreachable")
		return
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		a.error(w, http.StatusBadGateway, "vendor_unavailable", "read vendor response failed")
		return
	}

	if resp.StatusCode >= http.StatusBadRequest {
		a.json(w, resp.StatusCode, errorEnvelope{
			Error:      "vendor_rejected",
			StatusCode: resp.StatusCode,
			Message:    vendorMessage(payload, resp.StatusCode),
		})
		return
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/json"
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(resp.StatusCode)
	_, _ = w.Write(payload)
}

func applyVendorAuth(req *http.Request, style, key string) {
	if key == "" {
		return
	}
	switch style {
	case "key":
		req.Header.Set("Authorization", "Key "+key)
	case "bearer":
		req.Header.Set("Authorization", "Bearer "+key)
	case "query":
		q := req.URL.Query()
		q.Set("key", key)
		req.URL.RawQuery = q.Encode()
	case "subscription":
		req.Header.Set("Ocp-Apim-Subscription-Key", key)
	default:
		req.Header.Set("Authorization", key)
	}
}

func vendorMessage(payload []byte, status int) string {
	var probe map[string]any
	if err := json.Unmarshal(payload, &probe); err == nil {
		for _, field := range []string{"message", "error", "detail"} {
			if v, ok := probe[field].(string); ok && v != "" {
				return v
			}
		}
	}
	if trimmed := strings.TrimSpace(string(payload)); trimmed != "" && len(trimmed) < 512 {
		return trimmed
	}
	return "vendor returned status " + strconv.Itoa(status)
}
