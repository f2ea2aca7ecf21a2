// Package gateway provides an HTTP server for administration and monitoring.
// It binds to loopback by default and follows the module system pattern.
package gateway

import (
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"

	"github.com/flemzord/pulse/internal/config"
	"github.com/flemzord/pulse/internal/core"
	"github.com/flemzord/pulse/internal/security"
	"github.com/flemzord/pulse/internal/snapshot"
	"github.com/go-chi/chi/v5"
)

// snapshotJSON is the body of GET /api/snapshots/{key}.
type snapshotJSON struct {
	Key     string   `json:"key"`
	Count   int      `json:"count"`
	Members []string `json:"members"`
}

// handleListSnapshots lists every stored snapshot key.
func (g *Gateway) handleListSnapshots() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if g.lister == nil {
			http.Error(w, "snapshot store not available", http.StatusServiceUnavailable)
			return
		}

		keys, err := g.lister.Keys(r.Context())
		if err != nil {
			g.logger.Error("listing snapshots failed", "error", err)
			http.Error(w, "failed to list snapshots", http.StatusInternalServerError)
			return
		}
		if keys == nil {
			keys = []string{}
		}

		writeJSON(w, http.StatusOK, keys)
	}
}

// handleGetSnapshot returns the sorted members stored under a key.
func (g *Gateway) handleGetSnapshot() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if g.snapshots == nil {
			http.Error(w, "snapshot store not available", http.StatusServiceUnavailable)
			return
		}

		key := chi.URLParam(r, "key")
		if err := snapshot.ValidateKey(key); err != nil {
			http.Error(w, "invalid snapshot key", http.StatusBadRequest)
			return
		}

		members := g.snapshots.Load(r.Context(), key).Sorted()

		g.audit.Log(security.AuditEvent{
			Type:   security.EventSnapshotRead,
			Key:    key,
			Remote: r.RemoteAddr,
		})

		writeJSON(w, http.StatusOK, snapshotJSON{
			Key:     key,
			Count:   len(members),
			Members: members,
		})
	}
}

// moduleJSON is a serializable module info snapshot.
type moduleJSON struct {
	ID        string `json:"id"`
	Namespace string `json:"namespace"`
	Name      string `json:"name"`
}

// handleGetAllModules lists all compiled modules (for /api/modules).
func (g *Gateway) handleGetAllModules() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		mods := core.GetModules()
		out := make([]moduleJSON, 0, len(mods))
		for _, m := range mods {
			out = append(out, moduleJSON{
				ID:        string(m.ID),
				Namespace: m.ID.Namespace(),
				Name:      m.ID.Name(),
			})
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// secretPattern matches YAML keys that likely contain secrets.
var secretPattern = regexp.MustCompile(`(?i)(secret|token|password|pass|key|dsn)`)

// handleGetConfig returns the current config with secrets redacted.
func (g *Gateway) handleGetConfig() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		if g.configPath == "" {
			http.Error(w, "config path not set", http.StatusServiceUnavailable)
			return
		}

		cfg, err := config.Load(g.configPath)
		if err != nil {
			http.Error(w, "failed to load config", http.StatusInternalServerError)
			return
		}

		generic, err := configToMap(cfg)
		if err != nil {
			http.Error(w, "failed to parse config", http.StatusInternalServerError)
			return
		}

		redactSecrets(generic)
		writeJSON(w, http.StatusOK, generic)
	}
}

// configToMap decodes every module node into plain maps so the result can be
// walked and serialized as JSON.
func configToMap(cfg *config.Config) (map[string]any, error) {
	modules := make(map[string]any, len(cfg.Modules))
	for id, node := range cfg.Modules {
		var v any
		if err := node.Decode(&v); err != nil {
			return nil, fmt.Errorf("gateway: decode module %s: %w", id, err)
		}
		modules[id] = v
	}

	out := map[string]any{
		"version": cfg.Version,
		"modules": modules,
	}
	if cfg.Telemetry.Enabled() {
		out["telemetry"] = map[string]any{
			"otlp_endpoint": cfg.Telemetry.OTLPEndpoint,
			"service_name":  cfg.Telemetry.ServiceName,
		}
	}
	return out, nil
}

// redactSecrets walks a map and replaces values whose keys match the secret pattern.
func redactSecrets(m map[string]any) {
	for k, v := range m {
		if secretPattern.MatchString(k) {
			if s, ok := v.(string); ok && s != "" {
				m[k] = security.RedactPlaceholder
			}
			continue
		}
		switch val := v.(type) {
		case map[string]any:
			redactSecrets(val)
		case []any:
			for _, item := range val {
				if sub, ok := item.(map[string]any); ok {
					redactSecrets(sub)
				}
			}
		}
	}
}

// writeJSON encodes v as JSON with the given status code.
func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
