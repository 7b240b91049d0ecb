package common

import (
	"errors"
	"strings"
	"sync"
)

var ErrModulePaused = errors.New("module paused")

type PauseView interface {
	IsPaused(module string) bool
}

func Guard(p PauseView, module string) error {
	if p == nil || module == "" {
		return nil
	}
	if p.IsPaused(module) {
		return ErrModulePaused
	}
	return nil
}

// PauseSet is a concurrency-safe PauseView toggled at runtime by operators.
type PauseSet struct {
	mu     sync.RWMutex
	paused map[string]struct{}
}

// NewPauseSet returns a PauseSet with the supplied modules paused.
func NewPauseSet(modules ...string) *PauseSet {
	set := &PauseSet{paused: make(map[string]struct{})}
	for _, module := range modules {
		set.Set(module, true)
	}
	return set
}

// Set pauses or resumes a module.
func (s *PauseSet) Set(module string, paused bool) {
	normalized := strings.ToLower(strings.TrimSpace(module))
	if normalized == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if paused {
		s.paused[normalized] = struct{}{}
		return
	}
	delete(s.paused, normalized)
}

func (s *PauseSet) IsPaused(module string) bool {
	if s == nil {
		return false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.paused[strings.ToLower(strings.TrimSpace(module))]
	return ok
}
