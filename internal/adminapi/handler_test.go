package adminapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/relaygate/relaygate/internal/proxy"
)

func newTestHandler(t *testing.T) (*Handler, string) {
	t.Helper()
	const secret = "s3cr3t"
	hash, err := HashSecret(secret)
	if err != nil {
		t.Fatalf("HashSecret: %v", err)
	}
	srv := proxy.NewServer(&proxy.Options{Target: proxy.TargetFromString("http://upstream.example")}, nil)
	h := New(srv, NewAuthenticator(hash), nil, nil, nil)
	return h, secret
}

func doRequest(t *testing.T, h *Handler, method, path, secret string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if secret != "" {
		req.Header.Set("Authorization", "Bearer "+secret)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHandlerRejectsMissingAuth(t *testing.T) {
	h, _ := newTestHandler(t)
	rec := doRequest(t, h, http.MethodGet, "/passes/web", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestHandlerRejectsWrongSecret(t *testing.T) {
	h, _ := newTestHandler(t)
	rec := doRequest(t, h, http.MethodGet, "/passes/web", "not-the-secret", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestHandlerListsPasses(t *testing.T) {
	h, secret := newTestHandler(t)
	rec := doRequest(t, h, http.MethodGet, "/passes/web", secret, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body=%s", rec.Code, rec.Body.String())
	}
	var got struct {
		Kind   string   `json:"kind"`
		Passes []string `json:"passes"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(got.Passes) == 0 {
		t.Fatal("expected at least one default pass")
	}
}

func TestHandlerInsertAndRemovePass(t *testing.T) {
	h, secret := newTestHandler(t)

	insert := insertSpec{
		Name:     "adminBlock",
		Position: "before",
		Anchor:   "stream",
		Block:    &blockParams{Status: http.StatusTeapot, Body: "no"},
	}
	rec := doRequest(t, h, http.MethodPost, "/passes/web/insert", secret, insert)
	if rec.Code != http.StatusCreated {
		t.Fatalf("insert status = %d, want 201, body=%s", rec.Code, rec.Body.String())
	}

	rec = doRequest(t, h, http.MethodGet, "/passes/web", secret, nil)
	var got struct {
		Passes []string `json:"passes"`
	}
	_ = json.Unmarshal(rec.Body.Bytes(), &got)
	found := false
	for _, name := range got.Passes {
		if name == "adminBlock" {
			found = true
		}
	}
	if !found {
		t.Fatalf("adminBlock not in pass list: %v", got.Passes)
	}

	rec = doRequest(t, h, http.MethodPost, "/passes/web/remove/adminBlock", secret, nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("remove status = %d, want 204", rec.Code)
	}

	rec = doRequest(t, h, http.MethodGet, "/passes/web", secret, nil)
	got.Passes = nil
	_ = json.Unmarshal(rec.Body.Bytes(), &got)
	for _, name := range got.Passes {
		if name == "adminBlock" {
			t.Fatalf("adminBlock still present after remove: %v", got.Passes)
		}
	}
}

func TestHandlerInsertRejectsUnknownAnchor(t *testing.T) {
	h, secret := newTestHandler(t)
	insert := insertSpec{
		Name:     "x",
		Position: "after",
		Anchor:   "doesNotExist",
		SetHeader: &setHeaderParams{Header: "X-Test", Value: "1"},
	}
	rec := doRequest(t, h, http.MethodPost, "/passes/web/insert", secret, insert)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestHandlerRecentLogWithoutStoreReturns404(t *testing.T) {
	h, secret := newTestHandler(t)
	rec := doRequest(t, h, http.MethodGet, "/log/recent", secret, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestHandlerDumpConfigWithoutSnapshotReturns404(t *testing.T) {
	h, secret := newTestHandler(t)
	rec := doRequest(t, h, http.MethodGet, "/config", secret, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestHandlerDumpConfigRendersYAML(t *testing.T) {
	hash, err := HashSecret("s3cr3t")
	if err != nil {
		t.Fatalf("HashSecret: %v", err)
	}
	srv := proxy.NewServer(&proxy.Options{Target: proxy.TargetFromString("http://upstream.example")}, nil)
	cfg := map[string]any{"server": map[string]any{"listen_addr": "127.0.0.1:8080"}}
	h := New(srv, NewAuthenticator(hash), nil, cfg, nil)

	rec := doRequest(t, h, http.MethodGet, "/config", "s3cr3t", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body=%s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/yaml" {
		t.Errorf("Content-Type = %q, want application/yaml", ct)
	}
	if !strings.Contains(rec.Body.String(), "listen_addr: 127.0.0.1:8080") {
		t.Fatalf("body missing expected field: %s", rec.Body.String())
	}
}
