package gateway

import (
	"sort"
	"sync"

	"github.com/dkeye/hearth/internal/core"
	"github.com/dkeye/hearth/internal/domain"
	"github.com/dkeye/hearth/internal/events"
)

type voiceEntry struct {
	user        domain.UserID
	conn        core.ConnectionID
	displayName string
	drinks      int
	seq         uint64
}

// voiceRoster tracks who is in which voice channel. A user is in at most one
// channel at a time, whichever connection put them there.
type voiceRoster struct {
	mu     sync.RWMutex
	rooms  map[domain.ChannelID]map[domain.UserID]*voiceEntry
	byUser map[domain.UserID]domain.ChannelID
	seq    uint64
}

func newVoiceRoster() *voiceRoster {
	return &voiceRoster{
		rooms:  make(map[domain.ChannelID]map[domain.UserID]*voiceEntry),
		byUser: make(map[domain.UserID]domain.ChannelID),
	}
}

// VoiceMove describes a roster change.
type VoiceMove struct {
	// Left is the channel the user was removed from, empty if none.
	Left domain.ChannelID
	// LeftConn is the connection that owned the removed entry.
	LeftConn core.ConnectionID
	// LeftEmpty reports whether Left has nobody left in it.
	LeftEmpty bool
	// Joined is the channel the user was added to, empty on leave.
	Joined domain.ChannelID
	// JoinedWasEmpty reports whether Joined had nobody in it before.
	JoinedWasEmpty bool
}

func (r *voiceRoster) join(user domain.UserID, conn core.ConnectionID, name string, ch domain.ChannelID) VoiceMove {
	r.mu.Lock()
	defer r.mu.Unlock()

	var mv VoiceMove
	if prev, ok := r.byUser[user]; ok {
		old := r.rooms[prev][user]
		if prev == ch {
			// Same channel: the entry moves to conn and keeps its place, with
			// the counter reset like any join.
			if old.conn != conn {
				mv.LeftConn = old.conn
			}
			old.conn = conn
			old.displayName = name
			old.drinks = 0
			mv.Joined = ch
			return mv
		}
		r.removeLocked(user, prev)
		mv.Left = prev
		mv.LeftConn = old.conn
		mv.LeftEmpty = len(r.rooms[prev]) == 0
	}

	room, ok := r.rooms[ch]
	if !ok {
		room = make(map[domain.UserID]*voiceEntry)
		r.rooms[ch] = room
	}
	mv.JoinedWasEmpty = len(room) == 0
	r.seq++
	room[user] = &voiceEntry{user: user, conn: conn, displayName: name, seq: r.seq}
	r.byUser[user] = ch
	mv.Joined = ch
	return mv
}

// leave removes user's entry if conn owns it.
func (r *voiceRoster) leave(user domain.UserID, conn core.ConnectionID) VoiceMove {
	r.mu.Lock()
	defer r.mu.Unlock()

	ch, ok := r.byUser[user]
	if !ok {
		return VoiceMove{}
	}
	entry := r.rooms[ch][user]
	if entry == nil || entry.conn != conn {
		return VoiceMove{}
	}
	r.removeLocked(user, ch)
	return VoiceMove{Left: ch, LeftConn: conn, LeftEmpty: len(r.rooms[ch]) == 0}
}

func (r *voiceRoster) removeLocked(user domain.UserID, ch domain.ChannelID) {
	delete(r.byUser, user)
	room := r.rooms[ch]
	delete(room, user)
	if len(room) == 0 {
		delete(r.rooms, ch)
	}
}

// dropRoom empties a channel and returns the entries it held.
func (r *voiceRoster) dropRoom(ch domain.ChannelID) []voiceEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	room := r.rooms[ch]
	out := make([]voiceEntry, 0, len(room))
	for user, e := range room {
		out = append(out, *e)
		delete(r.byUser, user)
	}
	delete(r.rooms, ch)
	return out
}

func (r *voiceRoster) setDrinks(user domain.UserID, ch domain.ChannelID, n int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.rooms[ch][user]
	if !ok {
		return false
	}
	e.drinks = n
	return true
}

func (r *voiceRoster) channelOf(user domain.UserID) (domain.ChannelID, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ch, ok := r.byUser[user]
	return ch, ok
}

func (r *voiceRoster) isEmpty(ch domain.ChannelID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms[ch]) == 0
}

// participants returns the roster of ch in join order.
func (r *voiceRoster) participants(ch domain.ChannelID) []events.VoiceParticipant {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return snapshotLocked(r.rooms[ch])
}

func (r *voiceRoster) all() []events.VoiceState {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]events.VoiceState, 0, len(r.rooms))
	for ch, room := range r.rooms {
		out = append(out, events.VoiceState{ChannelID: ch, Participants: snapshotLocked(room)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ChannelID < out[j].ChannelID })
	return out
}

func snapshotLocked(room map[domain.UserID]*voiceEntry) []events.VoiceParticipant {
	entries := make([]*voiceEntry, 0, len(room))
	for _, e := range room {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].seq < entries[j].seq })
	out := make([]events.VoiceParticipant, 0, len(entries))
	for _, e := range entries {
		out = append(out, events.VoiceParticipant{UserID: e.user, DisplayName: e.displayName, DrinkCount: e.drinks})
	}
	return out
}
