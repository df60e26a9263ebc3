// Package config loads and validates the deployment-tunable settings
// that sit above the safety-critical guard/coordinator wiring (recipe
// targets and portioning, coordinator timing, the hydroponic light
// schedule) and optionally hot-reloads them from disk. Grounded on a
// unified business-config pattern — one struct composing each
// subsystem's policy, a Validate pass, and ApplyDefaults — reshaped from
// in-process composition into a YAML document (gopkg.in/yaml.v3)
// watched by fsnotify, since this config is edited by an operator
// rather than assembled programmatically.
package config

import (
	"fmt"
	"os"
	"sync"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"hydrocore/coordinator"
	"hydrocore/hydroponic"
	"hydrocore/recipe"
)

// Tunables is the full set of non-safety-critical settings a deployment
// can change without recompiling. Guard wiring (which pins, which
// sensors, fault policy) stays in Go code; this is the part an operator
// is expected to edit.
type Tunables struct {
	Recipe      recipe.Config           `yaml:"recipe"`
	Timing      coordinator.Timing      `yaml:"timing"`
	LevelPolicy coordinator.LevelPolicy `yaml:"level_policy"`
	Hydroponic  hydroponic.Config       `yaml:"hydroponic"`
	Version     string                  `yaml:"version"`
}

// ApplyDefaults replaces an all-zero Hydroponic block with
// hydroponic.DefaultConfig() and an empty Version with "1.0.0"; Recipe,
// Timing and LevelPolicy are left as loaded.
func (t *Tunables) ApplyDefaults() {
	if t.Hydroponic == (hydroponic.Config{}) {
		t.Hydroponic = hydroponic.DefaultConfig()
	}
	if t.Version == "" {
		t.Version = "1.0.0"
	}
}

// Validate rejects a few self-evidently broken configurations; most
// tunables are range-free by design (operators are expected to tune
// these per installation).
func (t *Tunables) Validate() error {
	if t.Recipe.PortionMinPerMille > t.Recipe.PortionMaxPerMille {
		return fmt.Errorf("config: recipe.portion_min_per_mille (%d) exceeds portion_max_per_mille (%d)",
			t.Recipe.PortionMinPerMille, t.Recipe.PortionMaxPerMille)
	}
	if t.Hydroponic.LightOnHour < 0 || t.Hydroponic.LightOnHour > 23 {
		return fmt.Errorf("config: hydroponic.light_on_hour out of range: %d", t.Hydroponic.LightOnHour)
	}
	if t.Hydroponic.LightOffHour < 0 || t.Hydroponic.LightOffHour > 23 {
		return fmt.Errorf("config: hydroponic.light_off_hour out of range: %d", t.Hydroponic.LightOffHour)
	}
	return nil
}

// Load reads and validates a Tunables document from path.
func Load(path string) (*Tunables, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	var t Tunables
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	t.ApplyDefaults()
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return &t, nil
}

// Marshal renders t back to YAML, for writing a starter file or
// persisting an operator's in-memory edits.
func (t *Tunables) Marshal() ([]byte, error) { return yaml.Marshal(t) }

// Watcher reloads Tunables from disk whenever the file changes, serving
// each valid revision through Current. An invalid revision is reported to the
// onErr callback and not applied; the previous good Tunables keeps being
// served.
type Watcher struct {
	path string
	mu   sync.RWMutex
	cur  *Tunables

	fsw     *fsnotify.Watcher
	onErr   func(error)
	stopped chan struct{}
}

// NewWatcher loads path once and starts watching it for changes.
// onErr, if non-nil, receives every reload error (the watcher keeps
// running and keeps serving the last good Tunables).
func NewWatcher(path string, onErr func(error)) (*Watcher, error) {
	t, err := Load(path)
	if err != nil {
		return nil, err
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("config: create watcher: %w", err)
	}
	if err := fsw.Add(path); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("config: watch %s: %w", path, err)
	}
	w := &Watcher{path: path, cur: t, fsw: fsw, onErr: onErr, stopped: make(chan struct{})}
	go w.run()
	return w, nil
}

func (w *Watcher) run() {
	for {
		select {
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			t, err := Load(w.path)
			if err != nil {
				if w.onErr != nil {
					w.onErr(err)
				}
				continue
			}
			w.mu.Lock()
			w.cur = t
			w.mu.Unlock()
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			if w.onErr != nil {
				w.onErr(err)
			}
		case <-w.stopped:
			return
		}
	}
}

// Current returns the last successfully loaded Tunables.
func (w *Watcher) Current() *Tunables {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.cur
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	close(w.stopped)
	return w.fsw.Close()
}
