package gateway

import (
	"sync"

	"github.com/dkeye/hearth/internal/domain"
)

// presenceBook holds the last status written by any of a user's sessions.
type presenceBook struct {
	mu     sync.RWMutex
	status map[domain.UserID]domain.Status
}

func newPresenceBook() *presenceBook {
	return &presenceBook{status: make(map[domain.UserID]domain.Status)}
}

func (p *presenceBook) set(user domain.UserID, st domain.Status) {
	p.mu.Lock()
	p.status[user] = st
	p.mu.Unlock()
}

func (p *presenceBook) get(user domain.UserID) (domain.Status, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	st, ok := p.status[user]
	return st, ok
}

// forget drops user's status unless online reports a live session, checked
// under the lock so a reconnect racing the last disconnect keeps its entry.
func (p *presenceBook) forget(user domain.UserID, online func(domain.UserID) bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !online(user) {
		delete(p.status, user)
	}
}

func (p *presenceBook) snapshot() map[domain.UserID]domain.Status {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make(map[domain.UserID]domain.Status, len(p.status))
	for u, st := range p.status {
		out[u] = st
	}
	return out
}

type activityBook struct {
	mu   sync.RWMutex
	acts map[domain.UserID]domain.Activity
}

func newActivityBook() *activityBook {
	return &activityBook{acts: make(map[domain.UserID]domain.Activity)}
}

// set with a nil activity clears it.
func (a *activityBook) set(user domain.UserID, act *domain.Activity) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if act == nil {
		delete(a.acts, user)
		return
	}
	a.acts[user] = *act
}

func (a *activityBook) forget(user domain.UserID, online func(domain.UserID) bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !online(user) {
		delete(a.acts, user)
	}
}

func (a *activityBook) snapshot() map[domain.UserID]domain.Activity {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make(map[domain.UserID]domain.Activity, len(a.acts))
	for u, act := range a.acts {
		out[u] = act
	}
	return out
}
