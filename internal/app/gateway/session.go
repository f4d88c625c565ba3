package gateway

import (
	"sync"

	"github.com/dkeye/hearth/internal/core"
	"github.com/dkeye/hearth/internal/domain"
	"github.com/dkeye/hearth/internal/events"
)

// Session is the in-memory record of one live connection.
type Session struct {
	ID          core.ConnectionID
	UserID      domain.UserID
	Username    string
	DisplayName string

	conn core.SignalConnection

	// life gates writes made into shared state on behalf of this session.
	// Unregister takes it exclusively to retire the session.
	life    sync.RWMutex
	retired bool

	mu       sync.RWMutex
	voice    domain.ChannelID
	status   domain.Status
	activity *domain.Activity
}

// SessionInfo is what the transport knows about an authenticated connection.
type SessionInfo struct {
	UserID      domain.UserID
	Username    string
	DisplayName string
	Status      domain.Status
}

func (s *Session) Caller() events.Caller {
	return events.Caller{Conn: s.ID, UserID: s.UserID, Username: s.Username}
}

// Name is the label shown in rosters and typing indicators.
func (s *Session) Name() string {
	if s.DisplayName != "" {
		return s.DisplayName
	}
	return s.Username
}

// whileAlive runs fn unless the session is retired. Unregister waits for
// running calls before tearing down, so nothing fn writes outlives it.
func (s *Session) whileAlive(fn func()) bool {
	s.life.RLock()
	defer s.life.RUnlock()
	if s.retired {
		return false
	}
	fn()
	return true
}

func (s *Session) retire() {
	s.life.Lock()
	s.retired = true
	s.life.Unlock()
}

func (s *Session) VoiceChannel() domain.ChannelID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.voice
}

func (s *Session) Status() domain.Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

func (s *Session) Activity() *domain.Activity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.activity
}

func (s *Session) setVoice(ch domain.ChannelID) {
	s.mu.Lock()
	s.voice = ch
	s.mu.Unlock()
}

// clearVoice resets the voice field only if it still points at ch.
func (s *Session) clearVoice(ch domain.ChannelID) {
	s.mu.Lock()
	if s.voice == ch {
		s.voice = ""
	}
	s.mu.Unlock()
}

func (s *Session) setStatus(st domain.Status) {
	s.mu.Lock()
	s.status = st
	s.mu.Unlock()
}

func (s *Session) setActivity(a *domain.Activity) {
	s.mu.Lock()
	s.activity = a
	s.mu.Unlock()
}

type sessionTable struct {
	mu     sync.RWMutex
	byID   map[core.ConnectionID]*Session
	byUser map[domain.UserID]map[core.ConnectionID]*Session
}

func newSessionTable() *sessionTable {
	return &sessionTable{
		byID:   make(map[core.ConnectionID]*Session),
		byUser: make(map[domain.UserID]map[core.ConnectionID]*Session),
	}
}

// add reports whether s is the user's only session.
func (t *sessionTable) add(s *Session) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.byID[s.ID] = s
	conns, ok := t.byUser[s.UserID]
	if !ok {
		conns = make(map[core.ConnectionID]*Session)
		t.byUser[s.UserID] = conns
	}
	conns[s.ID] = s
	return len(conns) == 1
}

// remove reports the removed session and whether it was the user's last one.
func (t *sessionTable) remove(id core.ConnectionID) (*Session, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.byID[id]
	if !ok {
		return nil, false
	}
	delete(t.byID, id)
	conns := t.byUser[s.UserID]
	delete(conns, id)
	if len(conns) == 0 {
		delete(t.byUser, s.UserID)
		return s, true
	}
	return s, false
}

func (t *sessionTable) get(id core.ConnectionID) (*Session, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	s, ok := t.byID[id]
	return s, ok
}

func (t *sessionTable) ofUser(user domain.UserID) []*Session {
	t.mu.RLock()
	defer t.mu.RUnlock()
	conns := t.byUser[user]
	out := make([]*Session, 0, len(conns))
	for _, s := range conns {
		out = append(out, s)
	}
	return out
}

func (t *sessionTable) lookup(ids []core.ConnectionID) []*Session {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]*Session, 0, len(ids))
	for _, id := range ids {
		if s, ok := t.byID[id]; ok {
			out = append(out, s)
		}
	}
	return out
}

func (t *sessionTable) all() []*Session {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]*Session, 0, len(t.byID))
	for _, s := range t.byID {
		out = append(out, s)
	}
	return out
}

func (t *sessionTable) online(user domain.UserID) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.byUser[user]) > 0
}

func (t *sessionTable) count() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.byID)
}
