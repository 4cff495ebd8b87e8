package proxy

import (
	"context"
	"crypto/tls"
	"log/slog"
	"net"
	"net/http"
	"strings"
)

// Server owns the web and ws pass lists, the event emitter, and the base
// options every call is merged against. It mounts directly as an
// http.Handler into a caller's http.Server, or binds its own listener
// (with TLS when given a tls.Config) through Listen.
type Server struct {
	*Emitter

	base *Options
	web  *PassList
	ws   *PassList

	logger *slog.Logger
}

// NewServer builds a Server with the fixed default pass lists and opts as
// the base options merged into every call.
func NewServer(opts *Options, logger *slog.Logger) *Server {
	if opts == nil {
		opts = &Options{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		Emitter: NewEmitter(),
		base:    opts,
		web:     NewPassList("web", WebPasses()...),
		ws:      NewPassList("ws", WSPasses()...),
		logger:  logger,
	}
	// Logging is the server's own observability, not a substitute for a
	// caller-supplied errorCb — it's registered unconditionally so an
	// EventError always has at least one listener, regardless of
	// HandleErrors.
	s.On(EventError, s.logError)
	if opts.HandleErrors {
		s.On(EventError, defaultErrorResponder)
	}
	return s
}

// defaultErrorResponder is the default error listener installed when
// HandleErrors is set: on error, write a 502 if headers have not been
// sent yet, else destroy the writer.
func defaultErrorResponder(ev Event) {
	if ev.Req == nil {
		return
	}
	w := ev.Req.Writer
	if w.IsHTTP() {
		w.HTTP.Header().Set("Content-Type", "text/plain")
		w.HTTP.WriteHeader(http.StatusBadGateway)
		_, _ = w.HTTP.Write([]byte("Bad Gateway"))
		return
	}
	w.Destroy()
}

// Listen binds addr and serves both web and (if enabled) ws requests
// through this Server until ctx is canceled or an unrecoverable listener
// error occurs.
func (s *Server) Listen(ctx context.Context, addr string, tlsConfig *tls.Config) error {
	httpSrv := &http.Server{
		Addr:        addr,
		Handler:     s,
		ConnContext: ConnContextHook(),
	}
	if tlsConfig != nil {
		httpSrv.TLSConfig = tlsConfig
	}

	errCh := make(chan error, 1)
	go func() {
		var err error
		if tlsConfig != nil {
			err = httpSrv.ListenAndServeTLS("", "")
		} else {
			err = httpSrv.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			errCh <- err
		} else {
			errCh <- nil
		}
	}()

	select {
	case <-ctx.Done():
		return httpSrv.Shutdown(context.Background())
	case err := <-errCh:
		return err
	}
}

// Before inserts stage immediately before the pass named anchor in the
// list identified by kind ("web" or "ws").
func (s *Server) Before(kind, anchor string, stage Pass) error {
	list, err := s.listFor(kind)
	if err != nil {
		return err
	}
	return list.Before(anchor, stage)
}

// After inserts stage immediately after the pass named anchor.
func (s *Server) After(kind, anchor string, stage Pass) error {
	list, err := s.listFor(kind)
	if err != nil {
		return err
	}
	return list.After(anchor, stage)
}

// Passes returns the current ordered pass names for the pipeline
// identified by kind ("web" or "ws"), for operational inspection.
func (s *Server) Passes(kind string) ([]string, error) {
	list, err := s.listFor(kind)
	if err != nil {
		return nil, err
	}
	snapshot := list.Snapshot()
	names := make([]string, len(snapshot))
	for i, p := range snapshot {
		names[i] = p.Name
	}
	return names, nil
}

// Remove deletes the pass named name from the list identified by kind.
// A no-op if no such pass exists.
func (s *Server) Remove(kind, name string) error {
	list, err := s.listFor(kind)
	if err != nil {
		return err
	}
	list.Remove(name)
	return nil
}

func (s *Server) listFor(kind string) (*PassList, error) {
	switch kind {
	case "web":
		return s.web, nil
	case "ws":
		return s.ws, nil
	default:
		return nil, ErrInvalidPassListKind
	}
}

// Instrument applies wrap to every pass in both pipelines, in place. Call
// once after NewServer and before serving traffic.
func (s *Server) Instrument(wrap func(kind, name string, stage Stage) Stage) {
	s.web.WrapAll(wrap)
	s.ws.WrapAll(wrap)
}

// Web runs the web pipeline for one request/response pair, optionally
// overriding the server's base options for this call. No per-call
// errorCb is passed, so a failing pass falls through to the Emitter —
// the logError listener always observes it, and, when HandleErrors is
// set, defaultErrorResponder completes the response; either way the
// pipeline's own error classification still destroys the writer when
// nothing else will.
func (s *Server) Web(w http.ResponseWriter, r *http.Request, override *Options) {
	s.emitStart(r)
	Run(s.web, r, NewHTTPWriter(w), nil, s.base, override, s.Emitter, nil)
}

// WS runs the ws pipeline for an upgrade request. head is any bytes
// already buffered off the socket by the HTTP layer before the handler
// was invoked.
func (s *Server) WS(w http.ResponseWriter, r *http.Request, head []byte, override *Options) {
	s.emitStart(r)
	Run(s.ws, r, NewHTTPWriter(w), head, s.base, override, s.Emitter, nil)
}

func (s *Server) emitStart(r *http.Request) {
	if s.HasListeners(EventStart) {
		s.Emit(Event{Kind: EventStart})
	}
	s.logger.Debug("proxy dispatch", "method", r.Method, "path", r.URL.Path)
}

// logError is the server's own observability hook, registered on every
// Server regardless of HandleErrors so an EventError always has at
// least one listener.
func (s *Server) logError(ev Event) {
	if ev.Err == nil {
		return
	}
	var path string
	if ev.Req != nil && ev.Req.Req != nil {
		path = ev.Req.Req.URL.Path
	}
	s.logger.Error("proxy error", "kind", string(ev.Err.Kind), "path", path, "error", ev.Err.Err)
}

// ServeHTTP lets a Server mount directly as an http.Handler, dispatching
// to WS when the request carries a WebSocket Upgrade header and the
// server's base options enable WS, else to Web.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if s.base.WS && isUpgradeRequest(r) {
		s.WS(w, r, nil, nil)
		return
	}
	s.Web(w, r, nil)
}

func isUpgradeRequest(r *http.Request) bool {
	return r.Method == http.MethodGet && strings.EqualFold(r.Header.Get("Upgrade"), "websocket")
}

// ConnContextHook returns the http.Server.ConnContext function that makes
// the raw inbound connection reachable from a pass via connFromRequest.
func ConnContextHook() func(ctx context.Context, c net.Conn) context.Context {
	return func(ctx context.Context, c net.Conn) context.Context {
		return WithConn(ctx, c)
	}
}
