package gateway

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/flemzord/pulse/internal/core"
	"github.com/flemzord/pulse/internal/scheduler"
	"github.com/flemzord/pulse/internal/security"
	"github.com/flemzord/pulse/internal/snapshot"
	"github.com/flemzord/pulse/internal/watch"
	"gopkg.in/yaml.v3"
)

func init() {
	core.RegisterModule(&Gateway{})
}

// jobLister is satisfied by *scheduler.Scheduler.
type jobLister interface {
	Jobs() []scheduler.JobStatus
}

// tickReporter is satisfied by *watch.StatusRecorder.
type tickReporter interface {
	Last() []watch.TickResult
}

// tickStreamer is satisfied by *watch.StatusRecorder.
type tickStreamer interface {
	Subscribe(buffer int) (<-chan watch.TickResult, func())
}

// Gateway is the HTTP gateway module. It exposes health, metrics, status and
// snapshot inspection endpoints. It is a leaf module; nothing imports it.
type Gateway struct {
	config    Config
	appCtx    *core.AppContext
	logger    *slog.Logger
	server    *http.Server
	startedAt time.Time
	done      chan struct{}

	// Resolved lazily at Start() via service registry.
	jobs       jobLister
	ticks      tickReporter
	stream     tickStreamer
	snapshots  snapshot.Store
	lister     snapshot.Lister
	audit      *security.AuditLogger
	configPath string
}

// ModuleInfo implements core.Module.
func (g *Gateway) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  "gateway.http",
		New: func() core.Module { return &Gateway{} },
	}
}

// Configure implements core.Configurable.
func (g *Gateway) Configure(node *yaml.Node) error {
	if err := node.Decode(&g.config); err != nil {
		return err
	}
	g.config.defaults()
	return nil
}

// Provision implements core.Provisioner.
func (g *Gateway) Provision(ctx *core.AppContext) error {
	g.appCtx = ctx
	g.logger = ctx.Logger
	g.config.defaults()

	if g.config.Auth.BearerToken != "" {
		registerSecret(ctx, "gateway.bearer_token", g.config.Auth.BearerToken)
	}
	if g.config.Auth.BasicPass != "" {
		registerSecret(ctx, "gateway.basic_pass", g.config.Auth.BasicPass)
	}
	return nil
}

// Validate implements core.Validator.
func (g *Gateway) Validate() error {
	if _, err := net.ResolveTCPAddr("tcp", g.config.Bind); err != nil {
		return errors.New("gateway: invalid bind address: " + g.config.Bind)
	}
	return nil
}

// Start implements core.Starter. It resolves dependencies from the service
// registry (lazy binding) and starts the HTTP server.
func (g *Gateway) Start() error {
	g.resolveServices()
	g.startedAt = time.Now()
	g.done = make(chan struct{})

	g.server = &http.Server{
		Addr:         g.config.Bind,
		Handler:      instrument(g.buildRouter()),
		ReadTimeout:  g.config.ReadTimeout,
		WriteTimeout: g.config.WriteTimeout,
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(context.Background(), "tcp", g.config.Bind)
	if err != nil {
		return errors.New("gateway: listen failed: " + err.Error())
	}

	go func() {
		g.logger.Info("gateway listening", "addr", ln.Addr().String())
		if err := g.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			g.logger.Error("gateway serve error", "error", err)
		}
	}()

	return nil
}

// Stop implements core.Stopper. Graceful shutdown with configured timeout.
func (g *Gateway) Stop(ctx context.Context) error {
	if g.server == nil {
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, g.config.ShutdownTimeout)
	defer cancel()

	g.logger.Info("gateway shutting down")
	// Hijacked stream connections are not tracked by Shutdown.
	close(g.done)
	return g.server.Shutdown(shutdownCtx)
}

// resolveServices binds optional collaborators. Missing ones degrade the
// matching endpoints instead of failing startup.
func (g *Gateway) resolveServices() {
	if s, ok := core.ServiceAs[jobLister](g.appCtx, "scheduler"); ok {
		g.jobs = s
	}
	if r, ok := core.ServiceAs[tickReporter](g.appCtx, "watch.status"); ok {
		g.ticks = r
	}
	if s, ok := core.ServiceAs[tickStreamer](g.appCtx, "watch.status"); ok {
		g.stream = s
	}
	if st, ok := core.ServiceAs[snapshot.Store](g.appCtx, "snapshot.store"); ok {
		g.snapshots = st
		if l, ok := st.(snapshot.Lister); ok {
			g.lister = l
		}
	}
	if a, ok := core.ServiceAs[*security.AuditLogger](g.appCtx, "security.audit"); ok {
		g.audit = a
	}
	if p, ok := core.ServiceAs[string](g.appCtx, "config.path"); ok {
		g.configPath = p
	}
}

// registerSecret adds value to the shared credential store so the log
// redactor masks it.
func registerSecret(ctx *core.AppContext, name, value string) {
	if creds, ok := core.ServiceAs[*security.CredentialStore](ctx, "security.credentials"); ok {
		creds.Set(name, value)
	}
	if r, ok := core.ServiceAs[*security.Redactor](ctx, "security.redactor"); ok {
		r.AddLiteral(value)
	}
}
