package config

import (
	"fmt"
	"sync/atomic"
)

// Holder provides safe concurrent access to a Config that can be reloaded
// at runtime. A failed reload preserves the previous config.
type Holder struct {
	current  atomic.Pointer[Config]
	yamlPath string
}

// NewHolder wraps cfg for concurrent access and remembers the YAML path
// used for reloads.
func NewHolder(cfg *Config, yamlPath string) *Holder {
	h := &Holder{yamlPath: yamlPath}
	h.current.Store(cfg)
	return h
}

// Get returns the current config snapshot.
func (h *Holder) Get() *Config {
	return h.current.Load()
}

// Reload re-runs the full load hierarchy (defaults < YAML < ENV) from the
// remembered path. On error the previously loaded config stays active.
func (h *Holder) Reload() error {
	cfg, err := LoadFrom(h.yamlPath)
	if err != nil {
		return fmt.Errorf("config reload: %w", err)
	}
	h.current.Store(cfg)
	return nil
}
