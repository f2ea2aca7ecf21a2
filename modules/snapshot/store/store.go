// Package store provides the snapshot.store module. It opens the configured
// snapshot backend and publishes it as service "snapshot.store".
package store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/flemzord/pulse/internal/core"
	"github.com/flemzord/pulse/internal/security"
	"github.com/flemzord/pulse/internal/snapshot"
	"gopkg.in/yaml.v3"
)

func init() {
	core.RegisterModule(&Module{})
}

// ServiceName is the service registry key of the provisioned store.
const ServiceName = "snapshot.store"

const redisDialTimeout = 5 * time.Second

// Compile-time interface guards.
var (
	_ core.Configurable = (*Module)(nil)
	_ core.Provisioner  = (*Module)(nil)
	_ core.Validator    = (*Module)(nil)
	_ core.Stopper      = (*Module)(nil)
	_ snapshot.Store    = (*auditedStore)(nil)
	_ snapshot.Lister   = (*auditedStore)(nil)
)

// backend is what every snapshot implementation offers.
type backend interface {
	snapshot.Store
	snapshot.Lister
}

// Module owns the snapshot backend for the lifetime of the process.
type Module struct {
	config  Config
	logger  *slog.Logger
	backend backend
	store   *auditedStore
}

// ModuleInfo implements core.Module.
func (m *Module) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  "snapshot.store",
		New: func() core.Module { return &Module{} },
	}
}

// Configure implements core.Configurable.
func (m *Module) Configure(node *yaml.Node) error {
	if err := node.Decode(&m.config); err != nil {
		return fmt.Errorf("snapshot.store: decode config: %w", err)
	}
	m.config.defaults()
	return nil
}

// Provision implements core.Provisioner.
func (m *Module) Provision(ctx *core.AppContext) error {
	m.config.defaults()
	m.logger = ctx.Logger

	if err := m.config.validate(); err != nil {
		return err
	}

	b, where, err := m.open(ctx)
	if err != nil {
		return err
	}
	m.backend = b

	audit, _ := core.ServiceAs[*security.AuditLogger](ctx, "security.audit")
	m.store = &auditedStore{backend: b, audit: audit}

	ctx.RegisterService(ServiceName, m.store)

	m.logger.Info("snapshot store provisioned", "backend", m.config.Backend, "location", where)
	return nil
}

func (m *Module) open(ctx *core.AppContext) (backend, string, error) {
	switch m.config.Backend {
	case BackendSQLite:
		path := m.config.Path
		if path == "" {
			path = filepath.Join(ctx.DataDir, defaultDBFile)
		}
		s, err := snapshot.OpenSQLite(path, m.config.BusyTimeout, m.logger)
		if err != nil {
			return nil, "", err
		}
		return s, path, nil

	case BackendRedis:
		if m.config.Redis.Password != "" {
			if creds, ok := core.ServiceAs[*security.CredentialStore](ctx, "security.credentials"); ok {
				creds.Set("snapshot.redis_password", m.config.Redis.Password)
			}
		}
		dialCtx, cancel := context.WithTimeout(context.Background(), redisDialTimeout)
		defer cancel()
		s, err := snapshot.OpenRedis(dialCtx, snapshot.RedisOptions{
			Addr:     m.config.Redis.Addr,
			Password: m.config.Redis.Password,
			DB:       m.config.Redis.DB,
			Prefix:   m.config.Redis.Prefix,
		}, m.logger)
		if err != nil {
			return nil, "", err
		}
		return s, m.config.Redis.Addr, nil

	default:
		dir := m.config.Dir
		if dir == "" {
			dir = filepath.Join(ctx.DataDir, defaultDir)
		}
		s, err := snapshot.NewFileStore(dir, m.logger)
		if err != nil {
			return nil, "", err
		}
		return s, dir, nil
	}
}

// Validate implements core.Validator.
func (m *Module) Validate() error {
	if m.backend == nil {
		return errors.New("snapshot.store: backend not opened")
	}
	return nil
}

// Stop implements core.Stopper.
func (m *Module) Stop(_ context.Context) error {
	if c, ok := m.backend.(io.Closer); ok {
		m.logger.Info("snapshot store closing")
		return c.Close()
	}
	return nil
}

// Store returns the provisioned store.
func (m *Module) Store() snapshot.Store {
	return m.store
}

// auditedStore records every successful Save in the audit log.
type auditedStore struct {
	backend
	audit *security.AuditLogger
}

// Save implements snapshot.Store.
func (s *auditedStore) Save(ctx context.Context, key string, set snapshot.Set) error {
	if err := s.backend.Save(ctx, key, set); err != nil {
		return err
	}
	s.audit.Log(security.AuditEvent{
		Type:   security.EventSnapshotWrite,
		Key:    key,
		Detail: fmt.Sprintf("%d members", set.Len()),
	})
	return nil
}
