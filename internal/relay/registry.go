package relay

import (
	"log/slog"
	"sort"
	"sync"
	"time"
)

// Registry is the authoritative username -> session mapping. Every method
// is a single critical section; no lock is ever held across network I/O.
// Iteration for fan-out goes through Snapshot.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*session
	logger   *slog.Logger
}

func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		sessions: make(map[string]*session),
		logger:   logger,
	}
}

// Register atomically checks and inserts. The Registry only enforces
// uniqueness; name validation happens in the dispatcher before the call.
func (r *Registry) Register(name string, conn Conn) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sessions[name]; exists {
		return ErrUsernameTaken
	}
	r.sessions[name] = &session{name: name, conn: conn, lastActive: time.Now()}
	connectedSessions.Set(float64(len(r.sessions)))

	r.logger.Info("user registered", "username", name)
	return nil
}

// Touch refreshes the activity timestamp. A missing name is ignored: the
// session may have been removed concurrently by the reaper.
func (r *Registry) Touch(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.sessions[name]; ok {
		s.lastActive = time.Now()
	}
}

// Remove deletes the session and reports whether it was present. Calling
// it twice for the same name is safe; the loser is a no-op.
func (r *Registry) Remove(name string) (Peer, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[name]
	if !ok {
		return Peer{}, false
	}
	delete(r.sessions, name)
	connectedSessions.Set(float64(len(r.sessions)))

	r.logger.Info("user removed", "username", name)
	return s.peer(), true
}

// Lookup returns a copy of the named session.
func (r *Registry) Lookup(name string) (Peer, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.sessions[name]
	if !ok {
		return Peer{}, false
	}
	return s.peer(), true
}

// Snapshot returns a point-in-time copy of every session, safe to iterate
// after the lock has been released.
func (r *Registry) Snapshot() []Peer {
	r.mu.RLock()
	defer r.mu.RUnlock()

	peers := make([]Peer, 0, len(r.sessions))
	for _, s := range r.sessions {
		peers = append(peers, s.peer())
	}
	return peers
}

// Names returns the registered usernames in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.sessions))
	for name := range r.sessions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
