package orchestrator

import (
	"context"

	"github.com/grycap/oscard/internal/filesystem"
)

// detectFilesystemBinding scans a resolved env-var map for a complete
// STORAGE_AUTH_ONEDATA_<pid>_{HOST,TOKEN,SPACE} triple and returns the
// binding for a provider id that has all three; when several provider ids
// are complete, which one is returned is not defined. The core treats
// object-store and filesystem bindings uniformly at the env-var layer; this
// is the filesystem side of that convention.
func detectFilesystemBinding(env map[string]string) (filesystem.Binding, bool) {
	type partial struct{ host, token, space string }
	byPID := map[string]*partial{}

	for key, val := range env {
		if kindOf(key) != "ONEDATA" {
			continue
		}
		pid, ok := ExtractProviderID(key)
		if !ok {
			continue
		}
		p := byPID[pid]
		if p == nil {
			p = &partial{}
			byPID[pid] = p
		}
		switch fieldOf(key) {
		case "HOST":
			p.host = val
		case "TOKEN":
			p.token = val
		case "SPACE":
			p.space = val
		}
	}

	for pid, p := range byPID {
		if p.host != "" && p.token != "" && p.space != "" {
			return filesystem.Binding{
				ProviderID:   pid,
				Host:         p.host,
				Token:        p.token,
				Space:        p.space,
				OutputBucket: env["OUTPUT_BUCKET"],
			}, true
		}
	}
	return filesystem.Binding{}, false
}

// storageBinding is the four-method input/output lifecycle set
// {createInput, createOutput, deleteInput, deleteOutput}; objectstore.Binding
// implements it and wires its own notifications as part of CreateInput.
// Notification wiring is not a method of the interface, filesystem.Binding
// does not implement it, and the init/rm paths in orchestrator.go call the
// object-store and filesystem clients directly rather than through it.
type storageBinding interface {
	CreateInput(ctx context.Context, name string) error
	CreateOutput(ctx context.Context, name string) error
	DeleteInput(ctx context.Context, name string) error
	DeleteOutput(ctx context.Context, name string) error
}
