package adminapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/relaygate/relaygate/internal/accesslog"
	"github.com/relaygate/relaygate/internal/proxy"
)

var errNoAccessLog = errors.New("adminapi: no access-log store configured")
var errNoConfig = errors.New("adminapi: no config snapshot configured")

// Handler is an http.Handler exposing read/mutate operations over a
// running Server's pass lists, gated by a single shared-secret
// Authenticator. It supplements the in-process Before/After/Remove calls
// with an equivalent operational surface for deployments where the
// Server is embedded in a standalone relaygate process rather than
// another Go program.
type Handler struct {
	srv    *proxy.Server
	auth   *Authenticator
	store  *accesslog.Store // optional, may be nil
	config any              // optional, the effective config snapshot; may be nil
	logger *slog.Logger
	mux    *http.ServeMux
}

// New builds a Handler. store may be nil if no access-log sink is
// configured. cfg, if non-nil, is exposed read-only via GET /config for
// operational inspection of the running server's effective settings.
func New(srv *proxy.Server, auth *Authenticator, store *accesslog.Store, cfg any, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handler{srv: srv, auth: auth, store: store, config: cfg, logger: logger}
	h.mux = http.NewServeMux()
	h.mux.HandleFunc("GET /passes/{kind}", h.handleListPasses)
	h.mux.HandleFunc("POST /passes/{kind}/insert", h.handleInsertPass)
	h.mux.HandleFunc("POST /passes/{kind}/remove/{name}", h.handleRemovePass)
	h.mux.HandleFunc("GET /log/recent", h.handleRecentLog)
	h.mux.HandleFunc("GET /config", h.handleDumpConfig)
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !h.authorize(r) {
		w.Header().Set("WWW-Authenticate", `Bearer realm="relaygate-admin"`)
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	h.mux.ServeHTTP(w, r)
}

func (h *Handler) authorize(r *http.Request) bool {
	token := bearerToken(r.Header.Get("Authorization"))
	if token == "" {
		return false
	}
	if err := h.auth.Check(token); err != nil {
		h.logger.Warn("adminapi: rejected request", "path", r.URL.Path, "error", err)
		return false
	}
	return true
}

func bearerToken(header string) string {
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return ""
	}
	return strings.TrimPrefix(header, prefix)
}

func (h *Handler) handleListPasses(w http.ResponseWriter, r *http.Request) {
	kind := r.PathValue("kind")
	names, err := h.srv.Passes(kind)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"kind": kind, "passes": names})
}

func (h *Handler) handleRemovePass(w http.ResponseWriter, r *http.Request) {
	kind := r.PathValue("kind")
	name := r.PathValue("name")
	if err := h.srv.Remove(kind, name); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	h.logger.Info("adminapi: removed pass", "kind", kind, "name", name)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleRecentLog(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		writeError(w, http.StatusNotFound, errNoAccessLog)
		return
	}
	limit := 50
	rows, err := h.store.Recent(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

// handleDumpConfig renders the server's effective configuration as YAML,
// for operators comparing the running process against the file on disk.
func (h *Handler) handleDumpConfig(w http.ResponseWriter, r *http.Request) {
	if h.config == nil {
		writeError(w, http.StatusNotFound, errNoConfig)
		return
	}
	out, err := yaml.Marshal(h.config)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.Header().Set("Content-Type", "application/yaml")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(out)
}

func decodeJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
