// Package settings persists per-avatar live parameters between runs.
package settings

import (
	"fmt"
	"sync"

	"github.com/quasilyte/gdata/v2"
	"gopkg.in/yaml.v3"

	"github.com/taigrr/podium/pkg/avatar"
)

const (
	settingsObject   = "settings"
	settingsProperty = "avatars"
)

// Params are the live parameters stored for one model.
type Params struct {
	Scale   float64 `yaml:"scale"`
	YOffset float64 `yaml:"y_offset"`
}

// Store keeps Params keyed by model path. A Store without a gdata manager
// works in memory only and Save is a no-op.
type Store struct {
	mu     sync.Mutex
	mgr    *gdata.Manager
	params map[string]Params
}

// Open creates a persistent store in the per-user data directory of
// appName and loads what was saved there.
func Open(appName string) (*Store, error) {
	mgr, err := gdata.Open(gdata.Config{AppName: appName})
	if err != nil {
		return nil, fmt.Errorf("open settings storage: %w", err)
	}
	s := New(mgr)
	if err := s.Load(); err != nil {
		return s, err
	}
	return s, nil
}

// New wraps mgr, which may be nil for an in-memory store.
func New(mgr *gdata.Manager) *Store {
	return &Store{mgr: mgr, params: make(map[string]Params)}
}

// Load replaces the in-memory params with the saved ones. A missing file
// leaves the store empty.
func (s *Store) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.params = make(map[string]Params)
	if s.mgr == nil || !s.mgr.ObjectPropExists(settingsObject, settingsProperty) {
		return nil
	}
	data, err := s.mgr.LoadObjectProp(settingsObject, settingsProperty)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}
	if err := yaml.Unmarshal(data, &s.params); err != nil {
		s.params = make(map[string]Params)
		return fmt.Errorf("decode settings: %w", err)
	}
	return nil
}

// Save writes the in-memory params.
func (s *Store) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.mgr == nil {
		return nil
	}
	data, err := yaml.Marshal(s.params)
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	if err := s.mgr.SaveObjectProp(settingsObject, settingsProperty, data); err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	return nil
}

// Get returns the params stored for model.
func (s *Store) Get(model string) (Params, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.params[model]
	return p, ok
}

// Set stores p for model in memory.
func (s *Store) Set(model string, p Params) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.params[model] = p
}

// Len returns the number of models with stored params.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.params)
}

// Apply pushes stored params into a, loaded or not, and reports whether
// there were any.
func (s *Store) Apply(a *avatar.Avatar) bool {
	p, ok := s.Get(a.Spec().ModelPath)
	if !ok {
		return false
	}
	a.SetScale(p.Scale)
	a.SetYOffset(p.YOffset)
	return true
}

// Capture records the current live params of every avatar.
func (s *Store) Capture(avatars ...*avatar.Avatar) {
	for _, a := range avatars {
		s.Set(a.Spec().ModelPath, Params{Scale: a.ScaleMultiplier(), YOffset: a.YOffset()})
	}
}
