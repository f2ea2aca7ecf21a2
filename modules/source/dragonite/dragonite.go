// Package dragonite implements the source.dragonite module: banned accounts
// and disabled sessions read from the Dragonite MySQL database.
package dragonite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/flemzord/pulse/internal/core"
	"github.com/flemzord/pulse/internal/security"
	"gopkg.in/yaml.v3"
)

func init() {
	core.RegisterModule(&Module{})
}

// ServiceName is the service registry key of the Source.
const ServiceName = "dragonite.source"

const pingTimeout = 5 * time.Second

// Compile-time interface guards.
var (
	_ core.Configurable = (*Module)(nil)
	_ core.Provisioner  = (*Module)(nil)
	_ core.Validator    = (*Module)(nil)
	_ core.Starter      = (*Module)(nil)
	_ core.Stopper      = (*Module)(nil)
)

// Module owns the database handle.
type Module struct {
	config Config
	logger *slog.Logger
	db     *sql.DB
	source *Source
}

// ModuleInfo implements core.Module.
func (m *Module) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  "source.dragonite",
		New: func() core.Module { return &Module{} },
	}
}

// Configure implements core.Configurable.
func (m *Module) Configure(node *yaml.Node) error {
	if err := node.Decode(&m.config); err != nil {
		return fmt.Errorf("dragonite: decode config: %w", err)
	}
	m.config.defaults()
	return nil
}

// Provision implements core.Provisioner. sql.Open does not dial; the
// connection is checked in Start.
func (m *Module) Provision(ctx *core.AppContext) error {
	m.config.defaults()
	m.logger = ctx.Logger

	if err := m.config.validate(); err != nil {
		return err
	}

	if pw := m.config.password(); pw != "" {
		if creds, ok := core.ServiceAs[*security.CredentialStore](ctx, "security.credentials"); ok {
			creds.Set("dragonite.password", pw)
		}
	}

	db, err := sql.Open("mysql", m.config.dsn())
	if err != nil {
		return fmt.Errorf("dragonite: open: %w", err)
	}
	db.SetMaxOpenConns(m.config.MaxOpenConns)
	db.SetMaxIdleConns(m.config.MaxOpenConns)
	db.SetConnMaxLifetime(m.config.ConnMaxLifetime)

	m.db = db
	m.source = NewSource(db, SourceOptions{
		EncounterLimit: m.config.EncounterLimit,
		GMOLimit:       m.config.GMOLimit,
		QueryTimeout:   m.config.QueryTimeout,
	}, m.logger)

	ctx.RegisterService(ServiceName, m.source)
	return nil
}

// Validate implements core.Validator.
func (m *Module) Validate() error {
	return m.config.validate()
}

// Start implements core.Starter. An unreachable database is logged; the
// watchers report fetch failures on every tick until it comes back.
func (m *Module) Start() error {
	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()

	if err := m.db.PingContext(ctx); err != nil {
		m.logger.Warn("dragonite: database not reachable", "error", err)
		return nil
	}
	m.logger.Info("dragonite: database connected", "database", m.config.Database)
	return nil
}

// Stop implements core.Stopper.
func (m *Module) Stop(_ context.Context) error {
	if m.db == nil {
		return nil
	}
	return m.db.Close()
}

// Source returns the provisioned source.
func (m *Module) Source() *Source {
	return m.source
}
