package registry

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/example/ride-dispatch/internal/models"
)

// ErrClosed is returned by Session.Send after the connection went away.
var ErrClosed = errors.New("session closed")

// wsConn is the subset of *websocket.Conn the registry needs; tests plug in
// fakes.
type wsConn interface {
	WriteJSON(v interface{}) error
	Close() error
}

// Session is one live client connection. Writes are serialized through the
// session mutex because gorilla/websocket allows only one concurrent writer.
type Session struct {
	mu       sync.Mutex
	conn     wsConn
	role     models.Role
	identity string
	closed   bool
}

func (s *Session) Send(v any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	return s.conn.WriteJSON(v)
}

func (s *Session) Role() models.Role {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.role
}

func (s *Session) Identity() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.identity
}

// Open reports whether the session can still be written to.
func (s *Session) Open() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.closed
}

func (s *Session) bind(role models.Role, identity string) {
	s.mu.Lock()
	s.role = role
	s.identity = identity
	s.mu.Unlock()
}

func (s *Session) close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	conn := s.conn
	s.mu.Unlock()
	_ = conn.Close()
}

type sessionKey struct {
	role     models.Role
	identity string
}

// CloseHook observes a bound session going away. Hooks run synchronously
// from Drop, outside the registry lock.
type CloseHook func(role models.Role, identity string)

// Registry binds live connections to a (role, identity) pair. Registration
// is the only way a driver becomes dispatch-eligible.
type Registry struct {
	mu       sync.RWMutex
	sessions map[sessionKey]*Session
	hooks    []CloseHook
	log      *slog.Logger
}

func New(log *slog.Logger) *Registry {
	return &Registry{sessions: make(map[sessionKey]*Session), log: log}
}

// NewSession wraps a fresh connection. The session stays unassigned (and
// invisible to Lookup) until Register binds it.
func (r *Registry) NewSession(conn wsConn) *Session {
	return &Session{conn: conn, role: models.RoleUnassigned}
}

// OnClose registers a hook fired when a bound session disconnects or is
// dropped. Must be called before connections start arriving.
func (r *Registry) OnClose(fn CloseHook) {
	r.mu.Lock()
	r.hooks = append(r.hooks, fn)
	r.mu.Unlock()
}

// Register binds role and identity to a session. Calling it again rebinds:
// last write wins. An existing session already holding the same key is
// superseded and closed without firing close hooks, since the identity
// remains reachable.
func (r *Registry) Register(s *Session, role models.Role, identity string) {
	key := sessionKey{role, identity}

	r.mu.Lock()
	var superseded *Session
	if prevRole, prevID := s.Role(), s.Identity(); prevRole != models.RoleUnassigned {
		if r.sessions[sessionKey{prevRole, prevID}] == s {
			delete(r.sessions, sessionKey{prevRole, prevID})
		}
	}
	if old := r.sessions[key]; old != nil && old != s {
		superseded = old
	}
	s.bind(role, identity)
	r.sessions[key] = s
	r.mu.Unlock()

	if superseded != nil {
		superseded.close()
		r.log.Info("ws_session_superseded", "role", string(role), "identity", identity)
	}
}

func (r *Registry) Lookup(role models.Role, identity string) (*Session, bool) {
	r.mu.RLock()
	s, ok := r.sessions[sessionKey{role, identity}]
	r.mu.RUnlock()
	if !ok || !s.Open() {
		return nil, false
	}
	return s, true
}

// IsOpen answers "is this identity currently reachable?".
func (r *Registry) IsOpen(role models.Role, identity string) bool {
	_, ok := r.Lookup(role, identity)
	return ok
}

// ForEachOfRole visits every open session of a role. Iteration order is
// unspecified.
func (r *Registry) ForEachOfRole(role models.Role, fn func(identity string, s *Session)) {
	r.mu.RLock()
	snapshot := make(map[string]*Session)
	for k, s := range r.sessions {
		if k.role == role && s.Open() {
			snapshot[k.identity] = s
		}
	}
	r.mu.RUnlock()
	for id, s := range snapshot {
		fn(id, s)
	}
}

// Drop closes a session and, if it is still the bound one for its identity,
// unbinds it and fires the close hooks. Safe to call more than once.
func (r *Registry) Drop(s *Session) {
	role, identity := s.Role(), s.Identity()
	s.close()

	if role == models.RoleUnassigned {
		return
	}

	key := sessionKey{role, identity}
	r.mu.Lock()
	current := r.sessions[key] == s
	if current {
		delete(r.sessions, key)
	}
	hooks := r.hooks
	r.mu.Unlock()

	if !current {
		return
	}
	r.log.Info("ws_session_closed", "role", string(role), "identity", identity)
	for _, fn := range hooks {
		fn(role, identity)
	}
}

// CountOfRole reports how many open sessions a role currently has.
func (r *Registry) CountOfRole(role models.Role) int {
	n := 0
	r.mu.RLock()
	for k, s := range r.sessions {
		if k.role == role && s.Open() {
			n++
		}
	}
	r.mu.RUnlock()
	return n
}
