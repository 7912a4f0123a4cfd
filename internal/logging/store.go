// internal/logging/store.go
package logging

import (
	"fmt"
	"sort"
	"sync"
)

// Store holds the canonical logger for each name. A logger that is
// deleted, cleared or replaced by a different logger is closed, releasing
// its sink connections and goroutines.
type Store struct {
	mu      sync.RWMutex
	loggers map[string]*Logger

	// closeErr, when set, receives errors from closing dropped loggers.
	closeErr func(name string, err error)
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{loggers: make(map[string]*Logger)}
}

// Get returns the logger stored under name.
func (s *Store) Get(name string) (*Logger, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	l, ok := s.loggers[name]
	return l, ok
}

// Create stores l under name, replacing any logger already there. It
// always succeeds.
func (s *Store) Create(name string, l *Logger) bool {
	s.mu.Lock()
	old := s.loggers[name]
	s.loggers[name] = l
	s.mu.Unlock()

	s.release(name, old, l)
	return true
}

// Update replaces the logger stored under name.
func (s *Store) Update(name string, l *Logger) error {
	s.mu.Lock()
	old, ok := s.loggers[name]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrLoggerNotFound, name)
	}
	s.loggers[name] = l
	s.mu.Unlock()

	s.release(name, old, l)
	return nil
}

// Delete removes name and reports whether it was present.
func (s *Store) Delete(name string) bool {
	s.mu.Lock()
	old, ok := s.loggers[name]
	delete(s.loggers, name)
	s.mu.Unlock()

	s.release(name, old, nil)
	return ok
}

func (s *Store) Exists(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.loggers[name]
	return ok
}

// Keys returns the stored names in sorted order.
func (s *Store) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.loggers))
	for k := range s.loggers {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// All returns the stored loggers ordered by name.
func (s *Store) All() []*Logger {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.loggers))
	for k := range s.loggers {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]*Logger, 0, len(keys))
	for _, k := range keys {
		out = append(out, s.loggers[k])
	}
	return out
}

func (s *Store) Clear() {
	for name, l := range s.drain() {
		s.release(name, l, nil)
	}
}

// drain empties the store and returns what it held.
func (s *Store) drain() map[string]*Logger {
	s.mu.Lock()
	defer s.mu.Unlock()
	old := s.loggers
	s.loggers = make(map[string]*Logger)
	return old
}

// release closes old unless it shares its sinks with replacement. It runs
// outside the lock since closing waits for queued deliveries.
func (s *Store) release(name string, old, replacement *Logger) {
	if old == nil || (replacement != nil && old.res == replacement.res) {
		return
	}
	if err := old.Close(); err != nil && s.closeErr != nil {
		s.closeErr(name, err)
	}
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.loggers)
}
