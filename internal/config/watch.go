package config

import (
	"log/slog"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// Runtime holds the settings that may change while the server runs. Readers
// take a snapshot; the watcher swaps it on config file changes.
type Runtime struct {
	mu      sync.RWMutex
	listing ListingConfig
	export  ExportConfig
}

// NewRuntime seeds the live settings from cfg.
func NewRuntime(cfg *Config) *Runtime {
	return &Runtime{listing: cfg.Listing, export: cfg.Export}
}

func (r *Runtime) Listing() ListingConfig {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.listing
}

func (r *Runtime) Export() ExportConfig {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.export
}

// Apply swaps in the reloadable sections of cfg. Invalid sections are ignored
// and the previous values stay in place.
func (r *Runtime) Apply(cfg *Config) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := cfg.Listing.Validate(); err != nil {
		slog.Warn("ignoring reloaded listing settings", "error", err)
	} else {
		r.listing = cfg.Listing
	}
	if err := cfg.Export.Validate(); err != nil {
		slog.Warn("ignoring reloaded export settings", "error", err)
	} else {
		r.export = cfg.Export
	}
}

// Watch re-reads the config file on change and applies the listing and export
// sections to rt. onChange, if set, runs after every successful reload.
// Without a config file there is nothing to watch and Watch returns false.
func Watch(configPath string, rt *Runtime, onChange func(*Config)) (bool, error) {
	v, err := newViper(configPath)
	if err != nil {
		return false, err
	}
	if v.ConfigFileUsed() == "" {
		return false, nil
	}
	v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		var cfg Config
		if err := v.Unmarshal(&cfg); err != nil {
			slog.Error("failed to reload config", "file", e.Name, "error", err)
			return
		}
		rt.Apply(&cfg)
		slog.Info("config reloaded", "file", e.Name)
		if onChange != nil {
			onChange(&cfg)
		}
	})
	v.WatchConfig()
	return true, nil
}
