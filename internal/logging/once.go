package logging

import (
	"log/slog"
	"sync"
)

// OnceSet remembers which values have already been reported so a decoder can
// log an unknown tag type or symbol a single time per owner. The zero value is
// ready to use.
type OnceSet struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

// First reports whether key is seen for the first time and records it.
func (s *OnceSet) First(key string) bool {
	if s == nil {
		return true
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.seen == nil {
		s.seen = make(map[string]struct{})
	}
	if _, ok := s.seen[key]; ok {
		return false
	}
	s.seen[key] = struct{}{}
	return true
}

// Len returns the number of distinct keys recorded.
func (s *OnceSet) Len() int {
	if s == nil {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.seen)
}

// Reset forgets every recorded key.
func (s *OnceSet) Reset() {
	if s == nil {
		return
	}
	s.mu.Lock()
	s.seen = nil
	s.mu.Unlock()
}

// Warn logs msg at warn level the first time key is seen.
func (s *OnceSet) Warn(logger *slog.Logger, key, msg string, attrs ...Attr) {
	if logger == nil || !s.First(key) {
		return
	}
	logger.Warn(msg, Args(attrs...)...)
}
