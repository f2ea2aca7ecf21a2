package app

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/flemzord/pulse/internal/config"
	"github.com/flemzord/pulse/internal/core"
	"github.com/flemzord/pulse/internal/security"
	"github.com/flemzord/pulse/internal/snapshot"
)

const snapshotModuleID = "snapshot.store"

// SnapshotReader gives offline access to the configured snapshot store.
type SnapshotReader struct {
	Store  snapshot.Store
	Lister snapshot.Lister

	module core.Module
}

// OpenSnapshots provisions only the snapshot.store module of the
// configuration at params.ConfigPath. Nothing is started.
func OpenSnapshots(params RunParams) (*SnapshotReader, error) {
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
	if _, ok := cfg.Modules[snapshotModuleID]; !ok {
		return nil, fmt.Errorf("app: module %s is not configured in %s", snapshotModuleID, cfgPath)
	}

	dataDir := params.DataDir
	if dataDir == "" {
		dataDir = DefaultDataDir()
	}

	logger, err := NewLogger(params.LogOutput, params.LogFormat, params.LogLevel, nil)
	if err != nil {
		return nil, err
	}
	appCtx := core.NewAppContext(logger, dataDir).WithModuleConfigs(cfg.Modules)
	appCtx.RegisterService("security.credentials", security.NewCredentialStore())

	mod, err := appCtx.LoadModule(snapshotModuleID)
	if err != nil {
		return nil, err
	}

	store, ok := core.ServiceAs[snapshot.Store](appCtx, snapshotModuleID)
	if !ok {
		return nil, errors.New("app: snapshot.store did not register a store")
	}
	r := &SnapshotReader{Store: store, module: mod}
	r.Lister, _ = store.(snapshot.Lister)
	return r, nil
}

// Keys lists the stored keys, or an error when the backend cannot enumerate.
func (r *SnapshotReader) Keys(ctx context.Context) ([]string, error) {
	if r.Lister == nil {
		return nil, errors.New("app: snapshot backend cannot list keys")
	}
	return r.Lister.Keys(ctx)
}

// Members returns the sorted members stored under key.
func (r *SnapshotReader) Members(ctx context.Context, key string) ([]string, error) {
	if err := snapshot.ValidateKey(key); err != nil {
		return nil, err
	}
	return r.Store.Load(ctx, key).Sorted(), nil
}

// Close releases the backend.
func (r *SnapshotReader) Close() error {
	if s, ok := r.module.(core.Stopper); ok {
		return s.Stop(context.Background())
	}
	if c, ok := r.Store.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
