package dragonite

import (
	"context"
	"io"
	"log/slog"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/flemzord/pulse/internal/core"
	"github.com/flemzord/pulse/internal/security"
	"github.com/flemzord/pulse/internal/watch"
	"github.com/go-sql-driver/mysql"
	"gopkg.in/yaml.v3"
)

func mustNode(t *testing.T, s string) *yaml.Node {
	t.Helper()
	var doc yaml.Node
	if err := yaml.Unmarshal([]byte(s), &doc); err != nil {
		t.Fatalf("yaml: %v", err)
	}
	return doc.Content[0]
}

func TestModuleInfo(t *testing.T) {
	t.Parallel()

	info := (&Module{}).ModuleInfo()
	if info.ID != "source.dragonite" {
		t.Errorf("ID = %q", info.ID)
	}
	if _, ok := info.New().(*Module); !ok {
		t.Error("New() should return *Module")
	}
}

func TestConfigDefaults(t *testing.T) {
	t.Parallel()

	var c Config
	c.defaults()
	if c.Port != 3306 || c.Database != "dragonite" {
		t.Errorf("port/database = %d/%q", c.Port, c.Database)
	}
	if c.EncounterLimit != defaultEncounterLimit || c.GMOLimit != defaultGMOLimit {
		t.Errorf("limits = %d/%d", c.EncounterLimit, c.GMOLimit)
	}
	if c.QueryTimeout != 30*time.Second {
		t.Errorf("QueryTimeout = %v", c.QueryTimeout)
	}
}

func TestConfigValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{"fields", Config{Host: "db", User: "pulse", Port: 3306}, ""},
		{"dsn", Config{DSN: "pulse:pw@tcp(db:3306)/dragonite"}, ""},
		{"bad dsn", Config{DSN: "pulse:pw@tcp(db:3306"}, "invalid dsn"},
		{"no host", Config{User: "pulse", Port: 3306}, "host or dsn"},
		{"no user", Config{Host: "db", Port: 3306}, "user is required"},
		{"bad port", Config{Host: "db", User: "u", Port: 70000}, "port"},
		{"negative limit", Config{Host: "db", User: "u", Port: 1, GMOLimit: -1}, "non-negative"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.cfg.validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestConfigDSN(t *testing.T) {
	t.Parallel()

	c := Config{Host: "db.local", User: "pulse", Password: "p@ss:w/rd", Database: "dragonite", Port: 3307}
	c.defaults()

	mc, err := mysql.ParseDSN(c.dsn())
	if err != nil {
		t.Fatalf("ParseDSN(%q): %v", c.dsn(), err)
	}
	if mc.Addr != "db.local:3307" || mc.User != "pulse" || mc.Passwd != "p@ss:w/rd" || mc.DBName != "dragonite" {
		t.Errorf("parsed = %+v", mc)
	}
	if !mc.ParseTime {
		t.Error("ParseTime should be enabled")
	}
}

func TestConfigPassword(t *testing.T) {
	t.Parallel()

	if got := (&Config{Password: "a"}).password(); got != "a" {
		t.Errorf("fields password = %q", got)
	}
	if got := (&Config{DSN: "u:fromdsn@tcp(h:1)/d"}).password(); got != "fromdsn" {
		t.Errorf("dsn password = %q", got)
	}
}

func TestProvision_RegistersSourceAndSecret(t *testing.T) {
	t.Parallel()

	appCtx := core.NewAppContext(slog.New(slog.NewTextHandler(io.Discard, nil)), t.TempDir())
	creds := security.NewCredentialStore()
	appCtx.RegisterService("security.credentials", creds)

	m := &Module{}
	if err := m.Configure(mustNode(t, "{host: db, user: pulse, password: hunter2}")); err != nil {
		t.Fatalf("Configure: %v", err)
	}
	if err := m.Provision(appCtx); err != nil {
		t.Fatalf("Provision: %v", err)
	}
	t.Cleanup(func() { _ = m.Stop(context.Background()) })

	if _, ok := core.ServiceAs[watch.BannedSource](appCtx, ServiceName); !ok {
		t.Error("dragonite.source not registered as BannedSource")
	}
	if _, ok := core.ServiceAs[watch.DisabledSource](appCtx, ServiceName); !ok {
		t.Error("dragonite.source not registered as DisabledSource")
	}
	if !slices.Equal(creds.Names(), []string{"dragonite.password"}) || !slices.Equal(creds.Values(), []string{"hunter2"}) {
		t.Errorf("credentials = %v", creds.Names())
	}
}

func TestProvision_InvalidConfig(t *testing.T) {
	t.Parallel()

	m := &Module{}
	if err := m.Configure(mustNode(t, "{user: pulse}")); err != nil {
		t.Fatalf("Configure: %v", err)
	}
	appCtx := core.NewAppContext(slog.New(slog.NewTextHandler(io.Discard, nil)), t.TempDir())
	if err := m.Provision(appCtx); err == nil {
		t.Fatal("expected error without host")
	}
}
