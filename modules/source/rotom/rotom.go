// Package rotom implements the source.rotom module: device activity read
// from the Rotom controller HTTP API.
package rotom

import (
	"fmt"
	"log/slog"

	"github.com/flemzord/pulse/internal/core"
	"github.com/flemzord/pulse/internal/security"
	"gopkg.in/yaml.v3"
)

func init() {
	core.RegisterModule(&Module{})
}

// ServiceName is the service registry key of the Source.
const ServiceName = "rotom.source"

// Compile-time interface guards.
var (
	_ core.Configurable = (*Module)(nil)
	_ core.Provisioner  = (*Module)(nil)
	_ core.Validator    = (*Module)(nil)
)

// Module exposes a Source to the watchers.
type Module struct {
	config Config
	logger *slog.Logger
	source *Source
}

// ModuleInfo implements core.Module.
func (m *Module) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  "source.rotom",
		New: func() core.Module { return &Module{} },
	}
}

// Configure implements core.Configurable.
func (m *Module) Configure(node *yaml.Node) error {
	if err := node.Decode(&m.config); err != nil {
		return fmt.Errorf("rotom: decode config: %w", err)
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

	if creds, ok := core.ServiceAs[*security.CredentialStore](ctx, "security.credentials"); ok {
		for name, v := range map[string]string{
			"rotom.bearer":   m.config.Bearer,
			"rotom.api_key":  m.config.APIKey,
			"rotom.password": m.config.Password,
		} {
			if v != "" {
				creds.Set(name, v)
			}
		}
	}

	src, err := NewSource(m.config, m.logger)
	if err != nil {
		return err
	}
	m.source = src
	ctx.RegisterService(ServiceName, src)

	m.logger.Info("rotom: source ready", "base_url", src.BaseURL())
	return nil
}

// Validate implements core.Validator.
func (m *Module) Validate() error {
	return m.config.validate()
}

// Source returns the provisioned source.
func (m *Module) Source() *Source {
	return m.source
}
