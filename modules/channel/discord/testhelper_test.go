package discord

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"testing"

	"github.com/flemzord/pulse/internal/core"
	"gopkg.in/yaml.v3"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeJSON(t *testing.T, w http.ResponseWriter, code int, v any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		t.Errorf("encode response: %v", err)
	}
}

// newModule configures and provisions a Discord module from YAML.
func newModule(t *testing.T, cfg string, appCtx *core.AppContext) *Discord {
	t.Helper()

	var doc yaml.Node
	if err := yaml.Unmarshal([]byte(cfg), &doc); err != nil {
		t.Fatalf("yaml: %v", err)
	}
	if appCtx == nil {
		appCtx = core.NewAppContext(discardLogger(), t.TempDir())
	}

	d := &Discord{}
	if err := d.Configure(doc.Content[0]); err != nil {
		t.Fatalf("Configure: %v", err)
	}
	if err := d.Provision(appCtx); err != nil {
		t.Fatalf("Provision: %v", err)
	}
	if err := d.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	return d
}
