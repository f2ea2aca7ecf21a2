// Package app provides the shared entry point for the pulse binary.
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/flemzord/pulse/internal/config"
	"github.com/flemzord/pulse/internal/core"
	"github.com/flemzord/pulse/internal/reload"
	"github.com/flemzord/pulse/internal/scheduler"
	"github.com/flemzord/pulse/internal/security"
	"github.com/flemzord/pulse/internal/telemetry"
)

// Log output formats.
const (
	LogFormatText = "text"
	LogFormatJSON = "json"
)

const auditFileName = "audit.jsonl"

// RunParams configures the main application loop.
type RunParams struct {
	// ConfigPath is an explicit path to the YAML configuration file.
	// If empty, ResolveConfigPath is called automatically.
	ConfigPath string

	// Version, Commit, and Date are injected at build time via ldflags.
	Version string
	Commit  string
	Date    string

	// DataDir overrides the default persistent data directory.
	DataDir string

	// LogLevel sets the minimum log level. Defaults to slog.LevelInfo.
	LogLevel slog.Level

	// LogFormat is "text" (default) or "json".
	LogFormat string

	// LogOutput defaults to os.Stderr.
	LogOutput io.Writer
}

// Run loads configuration, starts all modules and blocks until ctx is
// cancelled. SIGHUP or a change of the configuration file rebuilds the whole
// runtime; a configuration that fails to load keeps the current one running.
func Run(ctx context.Context, params RunParams) error {
	rt, err := Build(params)
	if err != nil {
		return err
	}
	if err := rt.Start(); err != nil {
		rt.abort()
		return err
	}

	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	watcher := reload.NewWatcher(reload.WatcherConfig{ConfigPath: rt.ConfigPath})
	watcher.Start(ctx)
	defer watcher.Stop()

	for {
		select {
		case <-ctx.Done():
			rt.Logger.Info("shutdown signal received")
			rt.Stop()
			rt.Logger.Info("shutdown complete")
			return nil
		case <-hup:
			rt.Logger.Info("SIGHUP received, reloading configuration")
		case evt := <-watcher.Events():
			rt.Logger.Info("config file changed, reloading", "path", evt.ConfigPath)
		}

		next, err := Reload(rt, params)
		if err != nil {
			return err
		}
		rt = next
	}
}

// Reload builds a runtime from the current configuration and swaps it in.
// When the new configuration cannot be built, rt keeps running and is
// returned. An error means the new runtime failed to start after rt was
// stopped; nothing is running then.
func Reload(rt *Runtime, params RunParams) (*Runtime, error) {
	params.ConfigPath = rt.ConfigPath

	next, err := Build(params)
	if err != nil {
		rt.Logger.Error("reload rejected, keeping current configuration", "error", err)
		rt.audit.Log(security.AuditEvent{
			Type:   security.EventConfigChange,
			Detail: "rejected: " + err.Error(),
		})
		return rt, nil
	}

	rt.Stop()
	if err := next.Start(); err != nil {
		next.abort()
		return nil, fmt.Errorf("app: start after reload: %w", err)
	}

	next.Logger.Info("configuration reloaded", "modules", len(next.ModuleIDs))
	next.audit.Log(security.AuditEvent{
		Type:     security.EventConfigChange,
		Detail:   "applied",
		Metadata: map[string]string{"modules": strings.Join(next.ModuleIDs, ",")},
	})
	return next, nil
}

// Runtime is a loaded, not yet started application.
type Runtime struct {
	Logger     *slog.Logger
	App        *core.App
	AppContext *core.AppContext
	Scheduler  *scheduler.Scheduler
	ConfigPath string
	ModuleIDs  []string

	credentials *security.CredentialStore
	redactor    *security.Redactor
	audit       *security.AuditLogger
	telemetry   *telemetry.Provider
	auditFile   io.Closer
}

// Build loads and validates the configuration, sets up logging, security,
// telemetry and the scheduler, then provisions every configured module.
func Build(params RunParams) (*Runtime, error) {
	cfgPath := params.ConfigPath
	if cfgPath == "" {
		resolved, err := ResolveConfigPath()
		if err != nil {
			return nil, err
		}
		cfgPath = resolved
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}

	dataDir := params.DataDir
	if dataDir == "" {
		dataDir = DefaultDataDir()
	}
	if err := os.MkdirAll(dataDir, 0o700); err != nil {
		return nil, fmt.Errorf("app: create data directory %s: %w", dataDir, err)
	}

	credStore := security.NewCredentialStore()
	redactor := security.NewRedactor()

	logger, err := NewLogger(params.LogOutput, params.LogFormat, params.LogLevel, redactor)
	if err != nil {
		return nil, err
	}

	rt := &Runtime{
		Logger:      logger,
		ConfigPath:  cfgPath,
		credentials: credStore,
		redactor:    redactor,
	}

	auditFile, err := os.OpenFile(filepath.Join(dataDir, auditFileName), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, fmt.Errorf("app: open audit log: %w", err)
	}
	rt.auditFile = auditFile
	auditLogger := security.NewAuditLogger(security.AuditLoggerConfig{
		Writer:   auditFile,
		Redactor: redactor,
	})
	rt.audit = auditLogger

	tp, err := telemetry.Setup(context.Background(), cfg.Telemetry, params.Version)
	if err != nil {
		rt.Close()
		return nil, err
	}
	rt.telemetry = tp

	appCtx := core.NewAppContext(logger, dataDir)
	appCtx = appCtx.WithModuleConfigs(cfg.Modules)
	rt.AppContext = appCtx

	// Register security services for cross-module discovery.
	appCtx.RegisterService("security.credentials", credStore)
	appCtx.RegisterService("security.redactor", redactor)
	appCtx.RegisterService("security.audit", auditLogger)
	appCtx.RegisterService("config.path", cfgPath)

	rt.Scheduler = scheduler.New(logger.With("component", "scheduler"),
		scheduler.WithTracer(tp.Tracer("github.com/flemzord/pulse/scheduler")))
	appCtx.RegisterService("scheduler", rt.Scheduler)

	rt.App = core.NewApp(appCtx)
	rt.ModuleIDs = config.Resolve(cfg)
	if err := rt.App.LoadModules(rt.ModuleIDs); err != nil {
		rt.Close()
		return nil, err
	}

	// Appended last so it stops first: no tick runs against a closed store
	// or sink.
	rt.App.AppendModule("scheduler", &schedulerModule{scheduler: rt.Scheduler})

	// Modules registered their secrets during Provision.
	redactor.SyncCredentials(credStore)

	logger.Info("pulse loaded",
		"version", params.Version,
		"config", cfgPath,
		"data_dir", dataDir,
		"modules", len(rt.ModuleIDs),
		"credentials", credStore.Names(),
	)
	return rt, nil
}

// Start installs the runtime's tracer provider and starts every module.
func (rt *Runtime) Start() error {
	rt.telemetry.Install()
	if err := rt.App.Start(); err != nil {
		return err
	}
	rt.redactor.SyncCredentials(rt.credentials)
	return nil
}

// Stop stops every module and releases the runtime.
func (rt *Runtime) Stop() {
	rt.App.Stop()
	rt.Close()
}

// abort undoes a failed Start. The scheduler is stopped explicitly because
// App.Start does not stop modules that never started.
func (rt *Runtime) abort() {
	_ = rt.Scheduler.Stop(context.Background())
	rt.Close()
}

// Close releases resources owned by the runtime itself. Modules must be
// stopped first.
func (rt *Runtime) Close() {
	if rt.telemetry != nil {
		if err := rt.telemetry.Shutdown(context.Background()); err != nil {
			rt.Logger.Warn("telemetry shutdown failed", "error", err)
		}
		rt.telemetry = nil
	}
	if rt.auditFile != nil {
		_ = rt.auditFile.Close()
		rt.auditFile = nil
	}
}

// NewLogger builds the process logger. All output goes through a
// RedactingHandler.
func NewLogger(w io.Writer, format string, level slog.Level, redactor *security.Redactor) (*slog.Logger, error) {
	if w == nil {
		w = os.Stderr
	}
	opts := &slog.HandlerOptions{Level: level}

	var inner slog.Handler
	switch strings.ToLower(format) {
	case "", LogFormatText:
		inner = slog.NewTextHandler(w, opts)
	case LogFormatJSON:
		inner = slog.NewJSONHandler(w, opts)
	default:
		return nil, fmt.Errorf("app: unknown log format %q (supported: text, json)", format)
	}
	if redactor == nil {
		redactor = security.NewRedactor()
	}
	return slog.New(security.NewRedactingHandler(inner, redactor)), nil
}

// ParseLogLevel maps debug, info, warn and error to slog levels.
func ParseLogLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo, fmt.Errorf("app: invalid log level %q", s)
	}
	return l, nil
}

// ResolveConfigPath searches for a config file in standard locations.
// Search order: $XDG_CONFIG_HOME/pulse/pulse.yaml → ~/.config/pulse/pulse.yaml → ./pulse.yaml
func ResolveConfigPath() (string, error) {
	var candidates []string

	if xdg, ok := os.LookupEnv("XDG_CONFIG_HOME"); ok {
		candidates = append(candidates, filepath.Join(xdg, "pulse", "pulse.yaml"))
	} else if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, ".config", "pulse", "pulse.yaml"))
	}

	candidates = append(candidates, "pulse.yaml")

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}

	return "", fmt.Errorf("no configuration file found (searched: %v)", candidates)
}

// DefaultConfigPath is where `pulse init` writes a new configuration.
func DefaultConfigPath() string {
	if xdg, ok := os.LookupEnv("XDG_CONFIG_HOME"); ok {
		return filepath.Join(xdg, "pulse", "pulse.yaml")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "pulse", "pulse.yaml")
}

// DefaultDataDir returns the default persistent data directory.
// Uses $XDG_DATA_HOME/pulse if set, otherwise ~/.local/share/pulse.
func DefaultDataDir() string {
	if dir, ok := os.LookupEnv("XDG_DATA_HOME"); ok {
		return filepath.Join(dir, "pulse")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".local", "share", "pulse")
}
