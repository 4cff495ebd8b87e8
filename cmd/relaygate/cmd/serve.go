package cmd

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"

	"github.com/relaygate/relaygate/internal/accesslog"
	"github.com/relaygate/relaygate/internal/adminapi"
	"github.com/relaygate/relaygate/internal/config"
	"github.com/relaygate/relaygate/internal/metrics"
	"github.com/relaygate/relaygate/internal/proxy"
	"github.com/relaygate/relaygate/internal/tracing"
)

var devMode bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the proxy server",
	Long: `Start the relaygate proxy server.

Examples:
  # Start with config file settings
  relaygate serve

  # Start with a specific config file
  relaygate --config /path/to/relaygate.yaml serve`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().BoolVar(&devMode, "dev", false, "enable development mode (verbose logging, permissive defaults)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfigRaw()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if devMode {
		cfg.DevMode = true
	}
	cfg.SetDevDefaults()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.Server.LogLevel),
	}))
	if configFile := config.ConfigFileUsed(); configFile != "" {
		logger.Info("loaded config", "file", configFile)
	}

	return run(ctx, cfg, logger)
}

// run wires every configured component into a proxy.Server and blocks
// until ctx is canceled.
func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	opts, err := buildProxyOptions(cfg)
	if err != nil {
		return fmt.Errorf("failed to build proxy options: %w", err)
	}

	srv := proxy.NewServer(opts, logger)

	for _, t := range cfg.Targets {
		if err := registerTarget(srv, t, cfg.Server.WS); err != nil {
			return fmt.Errorf("registering target %q: %w", t.Name, err)
		}
	}

	var wrap func(kind, name string, stage proxy.Stage) proxy.Stage

	if cfg.Metrics.Enabled {
		registry := prometheus.NewRegistry()
		m := metrics.NewMetrics(registry)
		wrap = chainWrap(wrap, m.WrapStage)
		srv.On(proxy.EventError, func(ev proxy.Event) {
			if ev.Err != nil {
				m.ObserveError(string(ev.Err.Kind))
			}
		})

		metricsMux := http.NewServeMux()
		metricsMux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
		go serveAux(ctx, logger, "metrics", cfg.Metrics.ListenAddr, metricsMux)
	}

	if cfg.Tracing.Enabled {
		tp, shutdown, err := buildTracerProvider()
		if err != nil {
			return fmt.Errorf("setting up tracing: %w", err)
		}
		defer shutdown(context.Background())
		tr := tracing.NewTracer(tp)
		wrap = chainWrap(wrap, tr.WrapStage)
		logger.Info("tracing enabled", "otlp_endpoint", cfg.Tracing.OTLPEndpoint)
	}

	if wrap != nil {
		srv.Instrument(wrap)
	}

	var accessStore *accesslog.Store
	if cfg.AccessLog.Enabled {
		accessStore, err = accesslog.Open(cfg.AccessLog.Path, logger)
		if err != nil {
			return fmt.Errorf("opening access log: %w", err)
		}
		defer accessStore.Close()

		listener := accessStore.Listener(pipelineLabel(cfg))
		for _, kind := range proxy.AllEventKinds {
			srv.On(kind, listener)
		}
		logger.Info("access log enabled", "path", cfg.AccessLog.Path)
	}

	if cfg.Admin.Enabled {
		auth := adminapi.NewAuthenticator(cfg.Admin.SecretHash)
		handler := adminapi.New(srv, auth, accessStore, cfg, logger)
		go serveAux(ctx, logger, "admin", cfg.Admin.ListenAddr, handler)
		logger.Info("admin API enabled", "addr", cfg.Admin.ListenAddr)
	}

	logger.Info("relaygate starting",
		"version", Version,
		"dev_mode", cfg.DevMode,
		"listen_addr", cfg.Server.ListenAddr,
		"ws", cfg.Server.WS,
		"targets", len(cfg.Targets),
	)

	tc, err := buildTLSConfig(cfg)
	if err != nil {
		return fmt.Errorf("loading TLS material: %w", err)
	}

	if err := srv.Listen(ctx, cfg.Server.ListenAddr, tc); err != nil {
		return fmt.Errorf("server exited: %w", err)
	}
	logger.Info("relaygate stopped")
	return nil
}

// buildTLSConfig loads a server certificate/key pair if both are
// configured, for terminating TLS directly in front of the proxy.
func buildTLSConfig(cfg *config.Config) (*tls.Config, error) {
	if cfg.Server.TLSCert == "" || cfg.Server.TLSKey == "" {
		return nil, nil
	}
	cert, err := tls.LoadX509KeyPair(cfg.Server.TLSCert, cfg.Server.TLSKey)
	if err != nil {
		return nil, fmt.Errorf("loading TLS key pair: %w", err)
	}
	return &tls.Config{Certificates: []tls.Certificate{cert}}, nil
}

// chainWrap composes two pass-wrapping functions so metrics and tracing
// can both instrument every pass without either depending on the other.
func chainWrap(existing, next func(kind, name string, stage proxy.Stage) proxy.Stage) func(kind, name string, stage proxy.Stage) proxy.Stage {
	if existing == nil {
		return next
	}
	return func(kind, name string, stage proxy.Stage) proxy.Stage {
		return existing(kind, name, next(kind, name, stage))
	}
}

func pipelineLabel(cfg *config.Config) string {
	if cfg.Server.WS {
		return "ws"
	}
	return "web"
}

// buildProxyOptions translates the static ProxyConfig into proxy.Options.
func buildProxyOptions(cfg *config.Config) (*proxy.Options, error) {
	opts := &proxy.Options{
		WS:           cfg.Server.WS,
		XFwd:         cfg.Proxy.XFwd,
		Secure:       cfg.Proxy.Secure,
		PrependPath:  cfg.Proxy.PrependPath,
		IgnorePath:   cfg.Proxy.IgnorePath,
		ChangeOrigin: cfg.Proxy.ChangeOrigin,
		HandleErrors: cfg.Proxy.HandleErrors,
	}

	if cfg.Proxy.Target != "" {
		opts.Target = proxy.TargetFromString(cfg.Proxy.Target)
	}

	if len(cfg.Proxy.Headers) > 0 {
		opts.Headers = make(http.Header, len(cfg.Proxy.Headers))
		for k, v := range cfg.Proxy.Headers {
			opts.Headers.Set(k, v)
		}
	}

	if cfg.Proxy.Timeout != "" {
		d, err := time.ParseDuration(cfg.Proxy.Timeout)
		if err != nil {
			return nil, fmt.Errorf("invalid proxy.timeout %q: %w", cfg.Proxy.Timeout, err)
		}
		opts.Timeout = d
	}

	return opts, nil
}

// registerTarget installs a TargetConfig as an early pass on the
// pipeline matching ws, so path-prefix routing and the target's own
// when-guard run before the fixed built-in passes see the request.
func registerTarget(srv *proxy.Server, t config.TargetConfig, ws bool) error {
	var guard *proxy.Predicate
	if t.When != "" {
		g, err := proxy.CompilePredicate(t.When)
		if err != nil {
			return err
		}
		guard = g
	}

	target, err := proxy.ParseTarget(t.Upstream)
	if err != nil {
		return err
	}

	headers := make(http.Header, len(t.Headers))
	for k, v := range t.Headers {
		headers.Set(k, v)
	}

	pass := proxy.Pass{
		Name:  "route:" + t.Name,
		Guard: guard,
		Run: func(ctx *proxy.Context) bool {
			if t.PathPrefix != "" && !strings.HasPrefix(ctx.Req.URL.Path, t.PathPrefix) {
				return false
			}
			if t.StripPrefix {
				ctx.Req.URL.Path = strings.TrimPrefix(ctx.Req.URL.Path, t.PathPrefix)
			}
			ctx.Options.Target = proxy.TargetFromValue(target)
			ctx.Options.ChangeOrigin = t.ChangeOrigin || ctx.Options.ChangeOrigin
			for k, v := range headers {
				ctx.Options.Headers = cloneAndSetHeader(ctx.Options.Headers, k, v[0])
			}
			return false
		},
	}

	kind, anchor := "web", "deleteLength"
	if ws {
		kind, anchor = "ws", "checkMethodAndHeader"
	}
	return srv.Before(kind, anchor, pass)
}

func cloneAndSetHeader(h http.Header, key, value string) http.Header {
	out := h.Clone()
	if out == nil {
		out = make(http.Header)
	}
	out.Set(key, value)
	return out
}

// buildTracerProvider creates an OTel TracerProvider exporting spans to
// stdout. A production deployment would point an OTLP exporter at
// cfg.Tracing.OTLPEndpoint; only the stdout exporter is in this module's
// dependency set (see DESIGN.md).
func buildTracerProvider() (*sdktrace.TracerProvider, func(context.Context) error, error) {
	exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, nil, err
	}
	tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exporter))
	return tp, tp.Shutdown, nil
}

func serveAux(ctx context.Context, logger *slog.Logger, name, addr string, handler http.Handler) {
	srv := &http.Server{Addr: addr, Handler: handler}
	go func() {
		<-ctx.Done()
		_ = srv.Close()
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error(name+" server failed", "error", err)
	}
}

// parseLogLevel converts a string log level to slog.Level, defaulting to
// info for unrecognized values.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
