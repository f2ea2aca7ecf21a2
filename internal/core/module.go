package core

import "strings"

// ModuleID identifies a module using a dotted namespace
// (e.g. "channel.discord", "source.rotom", "snapshot.store").
type ModuleID string

// ModuleInfo describes a registered module.
type ModuleInfo struct {
	// ID is the unique, namespaced module identifier.
	ID ModuleID

	// New returns a fresh, unconfigured instance of the module.
	New func() Module
}

// Module is the minimal interface every pulse module implements.
// Optional lifecycle behaviour is discovered through the interfaces
// declared in lifecycle.go.
type Module interface {
	ModuleInfo() ModuleInfo
}

// Namespace returns everything before the last dot ("channel" for
// "channel.discord"), or "" for an ID without a dot.
func (id ModuleID) Namespace() string {
	s := string(id)
	if i := strings.LastIndexByte(s, '.'); i >= 0 {
		return s[:i]
	}
	return ""
}

// Name returns the segment after the last dot.
func (id ModuleID) Name() string {
	s := string(id)
	return s[strings.LastIndexByte(s, '.')+1:]
}
