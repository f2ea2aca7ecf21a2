package app

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/flemzord/pulse/internal/security"
	"github.com/flemzord/pulse/internal/snapshot"
	"go.opentelemetry.io/otel"

	_ "github.com/flemzord/pulse/modules/snapshot/store"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pulse.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	return path
}

const snapshotOnlyConfig = `version: "1"
modules:
  snapshot.store:
    backend: file
`

func TestResolveConfigPath_XDGConfigHome(t *testing.T) {
	dir := t.TempDir()
	cfgDir := filepath.Join(dir, "pulse")
	if err := os.MkdirAll(cfgDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	cfgPath := filepath.Join(cfgDir, "pulse.yaml")
	if err := os.WriteFile(cfgPath, []byte("version: \"1\""), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	t.Setenv("XDG_CONFIG_HOME", dir)

	got, err := ResolveConfigPath()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != cfgPath {
		t.Errorf("got %q, want %q", got, cfgPath)
	}
}

func TestResolveConfigPath_NotFound(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/nonexistent/path")
	t.Chdir(t.TempDir())

	_, err := ResolveConfigPath()
	if err == nil {
		t.Error("expected error when no config file found")
	}
}

func TestDefaultConfigPath(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/custom/config")
	if got := DefaultConfigPath(); got != "/custom/config/pulse/pulse.yaml" {
		t.Errorf("got %q", got)
	}
}

func TestDefaultDataDir_XDGDataHome(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", "/custom/data")
	got := DefaultDataDir()
	want := "/custom/data/pulse"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestDefaultDataDir_Fallback(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", "")
	_ = os.Unsetenv("XDG_DATA_HOME")

	got := DefaultDataDir()
	home, _ := os.UserHomeDir()
	want := filepath.Join(home, ".local", "share", "pulse")
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestNewLogger_Formats(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger, err := NewLogger(&buf, LogFormatJSON, slog.LevelInfo, nil)
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	logger.Info("hello", "k", "v")
	if !strings.HasPrefix(buf.String(), "{") || !strings.Contains(buf.String(), `"msg":"hello"`) {
		t.Errorf("json output = %q", buf.String())
	}

	if _, err := NewLogger(&buf, "xml", slog.LevelInfo, nil); err == nil {
		t.Error("expected error for unknown format")
	}
}

func TestNewLogger_Redacts(t *testing.T) {
	t.Parallel()

	redactor := security.NewRedactor()
	redactor.AddLiteral("hunter2")

	var buf bytes.Buffer
	logger, err := NewLogger(&buf, LogFormatText, slog.LevelDebug, redactor)
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	logger.Debug("connecting", "dsn", "pulse:hunter2@tcp(db:3306)/dragonite")

	if strings.Contains(buf.String(), "hunter2") {
		t.Errorf("secret leaked: %q", buf.String())
	}
}

func TestParseLogLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{"debug", slog.LevelDebug, false},
		{"INFO", slog.LevelInfo, false},
		{"warn", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"loud", slog.LevelInfo, true},
	}
	for _, tt := range tests {
		got, err := ParseLogLevel(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseLogLevel(%q) error = %v", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("ParseLogLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestBuild_InvalidConfigPath(t *testing.T) {
	_, err := Build(RunParams{ConfigPath: "/nonexistent/config.yaml"})
	if err == nil {
		t.Error("expected error for invalid config path")
	}
}

func TestBuild_InvalidConfigContent(t *testing.T) {
	path := writeConfig(t, "not: valid: yaml: [")

	_, err := Build(RunParams{ConfigPath: path, DataDir: t.TempDir()})
	if err == nil {
		t.Error("expected error for invalid YAML")
	}
}

func TestBuild_ValidationFailure(t *testing.T) {
	path := writeConfig(t, "modules:\n  foo: {}")

	_, err := Build(RunParams{ConfigPath: path, DataDir: t.TempDir()})
	if err == nil {
		t.Error("expected validation error")
	}
}

func TestBuild_RegistersServices(t *testing.T) {
	path := writeConfig(t, snapshotOnlyConfig)
	dataDir := t.TempDir()

	var logs bytes.Buffer
	rt, err := Build(RunParams{ConfigPath: path, DataDir: dataDir, LogOutput: &logs})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if err := rt.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(rt.Stop)

	for _, name := range []string{
		"security.credentials", "security.redactor", "security.audit",
		"config.path", "scheduler", "snapshot.store",
	} {
		if _, ok := rt.AppContext.GetService(name); !ok {
			t.Errorf("service %q not registered", name)
		}
	}
	if _, ok := rt.App.Module("scheduler"); !ok {
		t.Error("scheduler module not appended")
	}
	if _, err := os.Stat(filepath.Join(dataDir, auditFileName)); err != nil {
		t.Errorf("audit log not created: %v", err)
	}
	if !strings.Contains(logs.String(), "pulse loaded") {
		t.Errorf("logs = %q", logs.String())
	}
}

func TestRun_StopsWhenContextDone(t *testing.T) {
	path := writeConfig(t, snapshotOnlyConfig)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var logs bytes.Buffer
	if err := Run(ctx, RunParams{ConfigPath: path, DataDir: t.TempDir(), LogOutput: &logs}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !strings.Contains(logs.String(), "shutdown complete") {
		t.Errorf("logs = %q", logs.String())
	}
}

func TestOpenSnapshots(t *testing.T) {
	path := writeConfig(t, snapshotOnlyConfig)
	dataDir := t.TempDir()

	r, err := OpenSnapshots(RunParams{ConfigPath: path, DataDir: dataDir, LogOutput: &bytes.Buffer{}})
	if err != nil {
		t.Fatalf("OpenSnapshots: %v", err)
	}
	t.Cleanup(func() { _ = r.Close() })

	ctx := context.Background()
	if err := r.Store.Save(ctx, "banned_seen_nk", snapshot.NewSet("bob", "alice")); err != nil {
		t.Fatalf("Save: %v", err)
	}

	members, err := r.Members(ctx, "banned_seen_nk")
	if err != nil {
		t.Fatalf("Members: %v", err)
	}
	if strings.Join(members, ",") != "alice,bob" {
		t.Errorf("members = %v", members)
	}

	keys, err := r.Keys(ctx)
	if err != nil {
		t.Fatalf("Keys: %v", err)
	}
	if len(keys) != 1 || keys[0] != "banned_seen_nk" {
		t.Errorf("keys = %v", keys)
	}

	if _, err := r.Members(ctx, "../etc/passwd"); err == nil {
		t.Error("expected invalid key error")
	}
}

func TestOpenSnapshots_NotConfigured(t *testing.T) {
	path := writeConfig(t, "version: \"1\"\nmodules:\n  watch: {}\n")

	if _, err := OpenSnapshots(RunParams{ConfigPath: path, DataDir: t.TempDir()}); err == nil {
		t.Error("expected error when snapshot.store is missing")
	}
}

func TestReload(t *testing.T) {
	path := writeConfig(t, snapshotOnlyConfig)
	dataDir := t.TempDir()
	params := RunParams{ConfigPath: path, DataDir: dataDir, LogOutput: &bytes.Buffer{}}

	rt, err := Build(params)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if err := rt.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	// A broken file keeps the running instance.
	if err := os.WriteFile(path, []byte("version: \"7\"\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	same, err := Reload(rt, params)
	if err != nil {
		t.Fatalf("Reload: %v", err)
	}
	if same != rt {
		t.Fatal("rejected reload should keep the current runtime")
	}

	if err := os.WriteFile(path, []byte(snapshotOnlyConfig+"  # edited\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	next, err := Reload(rt, params)
	if err != nil {
		t.Fatalf("Reload: %v", err)
	}
	t.Cleanup(next.Stop)
	if next == rt {
		t.Fatal("valid reload should return a new runtime")
	}

	audit, err := os.ReadFile(filepath.Join(dataDir, auditFileName))
	if err != nil {
		t.Fatal(err)
	}
	if n := strings.Count(string(audit), `"type":"config_change"`); n != 2 {
		t.Errorf("config_change events = %d, want 2\n%s", n, audit)
	}
	if !strings.Contains(string(audit), `"detail":"applied"`) {
		t.Errorf("audit log = %s", audit)
	}
}

func TestReload_RejectedBuildKeepsTracerProvider(t *testing.T) {
	path := writeConfig(t, snapshotOnlyConfig)
	params := RunParams{ConfigPath: path, DataDir: t.TempDir(), LogOutput: &bytes.Buffer{}}

	rt, err := Build(params)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if err := rt.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(rt.Stop)
	installed := otel.GetTracerProvider()

	// Telemetry is set up before the module fails to load.
	broken := `version: "1"
telemetry:
  otlp_endpoint: 127.0.0.1:4318
  insecure: true
modules:
  snapshot.store:
    backend: bogus
`
	if err := os.WriteFile(path, []byte(broken), 0o600); err != nil {
		t.Fatal(err)
	}
	same, err := Reload(rt, params)
	if err != nil {
		t.Fatalf("Reload: %v", err)
	}
	if same != rt {
		t.Fatal("rejected reload should keep the current runtime")
	}
	if otel.GetTracerProvider() != installed {
		t.Error("rejected reload replaced the global tracer provider")
	}
}
