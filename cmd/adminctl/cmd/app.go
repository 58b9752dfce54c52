package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/pilab-dev/shadow-admin/cache"
	"github.com/pilab-dev/shadow-admin/cache/bolt"
	redisstore "github.com/pilab-dev/shadow-admin/cache/redis"
	"github.com/pilab-dev/shadow-admin/client"
	"github.com/pilab-dev/shadow-admin/config"
	"github.com/pilab-dev/shadow-admin/internal/audit"
	"github.com/pilab-dev/shadow-admin/internal/metrics"
	"github.com/pilab-dev/shadow-admin/log"
	"github.com/pilab-dev/shadow-admin/policy"
	"github.com/pilab-dev/shadow-admin/session"
	"github.com/pilab-dev/shadow-admin/tracing"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"
)

// AppName is the binary name.
const AppName = "adminctl"

// app holds everything a command needs. It is built in the root
// pre-run hook and torn down in the post-run hook.
type app struct {
	cfgFile string
	flags   overrides

	in  io.Reader
	out io.Writer
	err io.Writer

	cfg      *config.Config
	logger   log.Logger
	store    cache.TokenStore
	client   *client.Client
	session  *session.Manager
	policy   policy.Policy
	routes   policy.Routes
	registry *prometheus.Registry

	closers []func(context.Context) error
	reader  *bufio.Reader
}

// overrides are global flags that win over config.
type overrides struct {
	apiURL     string
	tokenStore string
	boltPath   string
	logLevel   string
}

func newApp(in io.Reader, out, errOut io.Writer) *app {
	return &app{
		in:     in,
		out:    out,
		err:    errOut,
		logger: log.NewNopLogger(),
		policy: policy.Default(),
		routes: policy.DefaultRoutes(),
	}
}

func (a *app) applyOverrides() {
	if a.flags.apiURL != "" {
		a.cfg.APIBaseURL = a.flags.apiURL
	}
	if a.flags.tokenStore != "" {
		a.cfg.TokenStore = config.StoreType(strings.ToLower(a.flags.tokenStore))
	}
	if a.flags.boltPath != "" {
		a.cfg.BoltPath = os.ExpandEnv(a.flags.boltPath)
	}
	if a.flags.logLevel != "" {
		a.cfg.LogLevel = a.flags.logLevel
	}
}

// setup loads config and wires the stack. It does not touch the backend.
func (a *app) setup(ctx context.Context) error {
	cfg, err := config.Load(a.cfgFile)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.applyOverrides()
	if err := a.cfg.Validate(); err != nil {
		return err
	}

	a.logger = log.NewZerologAdapterTo(a.err, log.ParseLevel(a.cfg.LogLevel), a.cfg.LogPretty)
	a.policy = policy.Policy{LoginPath: a.cfg.LoginPath, FallbackPath: a.cfg.FallbackPath}

	if a.cfg.TraceStdout {
		tp, err := tracing.InitTracerProvider(AppName, a.err)
		if err != nil {
			return fmt.Errorf("failed to initialize tracing: %w", err)
		}
		a.onClose(func(ctx context.Context) error { return shutdownTracer(ctx, tp) })
	}

	a.registry = prometheus.NewRegistry()
	sm, err := metrics.NewSessionMetrics(a.registry)
	if err != nil {
		return fmt.Errorf("failed to register metrics: %w", err)
	}
	if a.cfg.MetricsAddr != "" {
		if err := a.serveMetrics(ctx); err != nil {
			return err
		}
	}

	origin, err := cache.Origin(a.cfg.APIBaseURL)
	if err != nil {
		return err
	}
	store, err := a.openStore(origin)
	if err != nil {
		return err
	}
	a.store = store

	a.client = client.New(a.cfg.APIBaseURL,
		client.WithTokenStore(store),
		client.WithTimeout(a.cfg.HTTPTimeout),
		client.WithLogger(a.logger),
	)
	a.session = session.NewManager(store, a.client,
		session.WithLogger(a.logger),
		session.WithMetrics(sm),
	)
	a.session.Subscribe(func(ev session.Event) {
		a.logger.Debug(ctx, "Session transition", log.Fields{
			"from": ev.From.String(), "to": ev.To.String(), "reason": string(ev.Reason),
		})
	})

	if a.cfg.AuditLog != "" {
		auditLog, closer, err := audit.Open(a.cfg.AuditLog, AppName, origin)
		if err != nil {
			return err
		}
		a.onClose(func(context.Context) error { return closer.Close() })
		a.session.Subscribe(auditLog.SessionObserver())
	}
	return nil
}

func (a *app) openStore(origin string) (cache.TokenStore, error) {
	switch a.cfg.TokenStore {
	case config.StoreMemory:
		return cache.NewMemoryTokenStore(a.cfg.MemoryTokenTTL), nil
	case config.StoreBolt:
		s, err := bolt.Open(a.cfg.BoltPath, origin)
		if err != nil {
			return nil, err
		}
		a.onClose(func(context.Context) error { return s.Close() })
		return s, nil
	case config.StoreRedis:
		rdb := redis.NewClient(&redis.Options{
			Addr:     a.cfg.RedisAddr,
			Password: a.cfg.RedisPassword,
			DB:       a.cfg.RedisDB,
		})
		a.onClose(func(context.Context) error { return rdb.Close() })
		return redisstore.NewTokenStore(rdb, a.cfg.RedisPrefix, origin), nil
	default:
		return nil, fmt.Errorf("unknown token_store %q", a.cfg.TokenStore)
	}
}

func (a *app) serveMetrics(ctx context.Context) error {
	ln, err := net.Listen("tcp", a.cfg.MetricsAddr)
	if err != nil {
		return fmt.Errorf("failed to listen on metrics address %s: %w", a.cfg.MetricsAddr, err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{}))
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error(ctx, "Metrics server stopped", err)
		}
	}()
	a.logger.Debug(ctx, "Serving metrics", log.Fields{"addr": ln.Addr().String()})
	a.onClose(srv.Shutdown)
	return nil
}

func shutdownTracer(ctx context.Context, tp *sdktrace.TracerProvider) error {
	if err := tp.ForceFlush(ctx); err != nil {
		return err
	}
	return tp.Shutdown(ctx)
}

func (a *app) onClose(fn func(context.Context) error) {
	a.closers = append(a.closers, fn)
}

// close runs the closers in reverse order.
func (a *app) close(ctx context.Context) {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			a.logger.Warn(ctx, "Shutdown step failed", log.Fields{"error": err.Error()})
		}
	}
	a.closers = nil
}

// authorize restores the session and checks it against view.
func (a *app) authorize(ctx context.Context, view string) error {
	if err := a.session.Initialize(ctx); err != nil {
		a.logger.Warn(ctx, "Session could not be restored", log.Fields{"error": err.Error()})
	}
	if view == "" {
		return nil
	}

	d := a.policy.Navigate(a.routes, a.session.Snapshot(), view)
	if d.Allow {
		return nil
	}
	a.logger.Debug(ctx, "Access denied", log.Fields{"view": view, "redirect": d.RedirectTo})
	return newAccessDenied(a.policy, view, d)
}

func newAccessDenied(p policy.Policy, view string, d policy.Decision) *accessDeniedError {
	return &accessDeniedError{view: view, decision: d, loginPath: p.LoginTarget()}
}

type accessDeniedError struct {
	view      string
	decision  policy.Decision
	loginPath string
}

func (e *accessDeniedError) Error() string {
	if e.decision.RedirectTo == e.loginPath {
		return fmt.Sprintf("%s requires login: run '%s auth login'", e.view, AppName)
	}
	return fmt.Sprintf("%s requires admin rights (redirected to %s)", e.view, e.decision.RedirectTo)
}

func (a *app) printf(format string, args ...any) {
	fmt.Fprintf(a.out, format, args...)
}

func (a *app) printYAML(v any) error {
	out, err := yaml.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to render output: %w", err)
	}
	_, err = a.out.Write(out)
	return err
}

func (a *app) line() *bufio.Reader {
	if a.reader == nil {
		a.reader = bufio.NewReader(a.in)
	}
	return a.reader
}

// prompt reads one line after printing label.
func (a *app) prompt(label string) (string, error) {
	fmt.Fprint(a.err, label)
	s, err := a.line().ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && s != "") {
		return "", fmt.Errorf("failed to read %s: %w", strings.TrimSuffix(strings.TrimSpace(label), ":"), err)
	}
	return strings.TrimSpace(s), nil
}

// promptSecret reads without echo on a terminal and falls back to a plain
// line read otherwise.
func (a *app) promptSecret(label string) (string, error) {
	f, ok := a.in.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return a.prompt(label)
	}
	fmt.Fprint(a.err, label)
	b, err := term.ReadPassword(int(f.Fd()))
	fmt.Fprintln(a.err)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return string(b), nil
}

// valueOrPrompt returns v, or asks for it when empty.
func (a *app) valueOrPrompt(v, label string, secret bool) (string, error) {
	if v != "" {
		return v, nil
	}
	if secret {
		return a.promptSecret(label)
	}
	return a.prompt(label)
}
