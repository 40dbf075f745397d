package lobby

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"jianghu-lite/content"
	"jianghu-lite/engine"
	"jianghu-lite/savegame"
)

// ErrSessionOpen rejects a resume of a session that is attached elsewhere.
var ErrSessionOpen = errors.New("session already open")

// Session is one connection-scoped playthrough.
type Session struct {
	ID      string
	Engine  *engine.Engine
	Created time.Time
}

// Lobby hands out sessions. Each session saves under its own key prefix in
// the shared store.
type Lobby struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	opening  map[string]bool

	catalog *content.Catalog
	store   savegame.Store
	cfg     engine.Config
}

func New(catalog *content.Catalog, store savegame.Store, cfg engine.Config) *Lobby {
	return &Lobby{
		sessions: make(map[string]*Session),
		opening:  make(map[string]bool),
		catalog:  catalog,
		store:    store,
		cfg:      cfg,
	}
}

func sessionPrefix(id string) string { return "session:" + id }

// Open creates a session. A non-empty resumeID reattaches to the save stored
// under that id; it fails when no usable save exists or while that session is
// still open.
func (l *Lobby) Open(resumeID string) (*Session, error) {
	id := resumeID
	if id == "" {
		id = uuid.NewString()
	} else if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("invalid session id %q", id)
	}
	if err := l.reserve(id); err != nil {
		return nil, err
	}
	s, err := l.open(id, resumeID != "")

	l.mu.Lock()
	delete(l.opening, id)
	if err == nil {
		l.sessions[id] = s
	}
	l.mu.Unlock()
	if err != nil {
		return nil, err
	}

	log.Printf("[Lobby] Session %s opened (resume=%v)", id, resumeID != "")
	return s, nil
}

func (l *Lobby) reserve(id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.sessions[id]; ok || l.opening[id] {
		return fmt.Errorf("%w: %s", ErrSessionOpen, id)
	}
	l.opening[id] = true
	return nil
}

func (l *Lobby) open(id string, resume bool) (*Session, error) {
	var st savegame.Store
	if l.store != nil {
		st = savegame.Prefixed(l.store, sessionPrefix(id))
	}
	e, err := engine.New(l.catalog, st, l.cfg)
	if err != nil {
		return nil, err
	}
	if resume {
		if !e.LoadGame() {
			return nil, fmt.Errorf("no saved game for session %s", id)
		}
	} else if !e.StartNewGame() {
		return nil, fmt.Errorf("failed to start session %s", id)
	}
	return &Session{ID: id, Engine: e, Created: time.Now()}, nil
}

// Close drops the session from the lobby. Its save stays in the store.
func (l *Lobby) Close(id string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.sessions[id]; ok {
		delete(l.sessions, id)
		log.Printf("[Lobby] Session %s closed", id)
	}
}

func (l *Lobby) Get(id string) *Session {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.sessions[id]
}

func (l *Lobby) Count() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.sessions)
}

// ListSessions returns the open session ids.
func (l *Lobby) ListSessions() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	ids := make([]string, 0, len(l.sessions))
	for id := range l.sessions {
		ids = append(ids, id)
	}
	return ids
}
