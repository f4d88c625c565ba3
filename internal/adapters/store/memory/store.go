// Package memory is an in-process store implementing every store port. It
// backs the "memory" driver and the handler tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dkeye/hearth/internal/core"
	"github.com/dkeye/hearth/internal/domain"
)

type reactionKey struct {
	msg   domain.MessageID
	user  domain.UserID
	emoji string
}

type memberKey struct {
	server domain.ServerID
	user   domain.UserID
}

type dmPair struct{ a, b domain.UserID }

type Store struct {
	mu sync.RWMutex

	users       map[domain.UserID]domain.User
	tokens      map[string]domain.UserID
	servers     map[domain.ServerID]domain.Server
	members     map[memberKey]domain.Role
	channels    map[domain.ChannelID]domain.Channel
	messages    map[domain.MessageID]domain.Message
	attachments map[domain.AttachmentID]domain.Attachment
	reactions   map[reactionKey]struct{}
	dms         map[domain.DMChannelID]domain.DMChannel
	dmByPair    map[dmPair]domain.DMChannelID
	dmMessages  map[domain.DMChannelID][]domain.DMMessage
	keys        map[memberKey]domain.ServerKey
	index       map[domain.MessageID]domain.Message
}

var _ core.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		users:       make(map[domain.UserID]domain.User),
		tokens:      make(map[string]domain.UserID),
		servers:     make(map[domain.ServerID]domain.Server),
		members:     make(map[memberKey]domain.Role),
		channels:    make(map[domain.ChannelID]domain.Channel),
		messages:    make(map[domain.MessageID]domain.Message),
		attachments: make(map[domain.AttachmentID]domain.Attachment),
		reactions:   make(map[reactionKey]struct{}),
		dms:         make(map[domain.DMChannelID]domain.DMChannel),
		dmByPair:    make(map[dmPair]domain.DMChannelID),
		dmMessages:  make(map[domain.DMChannelID][]domain.DMMessage),
		keys:        make(map[memberKey]domain.ServerKey),
		index:       make(map[domain.MessageID]domain.Message),
	}
}

func (s *Store) Close() error { return nil }

func notFound(kind string, id any) error {
	return fmt.Errorf("%s %v: %w", kind, id, domain.ErrNotFound)
}

// Accounts

func (s *Store) CreateUser(_ context.Context, u domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.users {
		if existing.Username == u.Username {
			return fmt.Errorf("create user %s: username taken", u.Username)
		}
	}
	if u.Status == "" {
		u.Status = domain.StatusOnline
	}
	s.users[u.ID] = u
	return nil
}

func (s *Store) IssueToken(_ context.Context, user domain.UserID, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[token] = user
	return nil
}

func (s *Store) GetUser(_ context.Context, id domain.UserID) (domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return domain.User{}, notFound("user", id)
	}
	return u, nil
}

func (s *Store) UserForToken(_ context.Context, token string) (domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[s.tokens[token]]
	if !ok {
		return domain.User{}, notFound("user for token", "***")
	}
	return u, nil
}

func (s *Store) SetUserStatus(_ context.Context, id domain.UserID, st domain.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return notFound("user", id)
	}
	u.Status = st
	s.users[id] = u
	return nil
}

func (s *Store) CreateServer(_ context.Context, srv domain.Server) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.servers[srv.ID] = srv
	s.members[memberKey{srv.ID, srv.OwnerID}] = domain.RoleOwner
	return nil
}

func (s *Store) AddMember(_ context.Context, m domain.Member) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.members[memberKey{m.ServerID, m.UserID}] = m.Role
	return nil
}

func (s *Store) GetServer(_ context.Context, id domain.ServerID) (domain.Server, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	srv, ok := s.servers[id]
	if !ok {
		return domain.Server{}, notFound("server", id)
	}
	return srv, nil
}

func (s *Store) RenameServer(_ context.Context, id domain.ServerID, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	srv, ok := s.servers[id]
	if !ok {
		return notFound("server", id)
	}
	srv.Name = name
	s.servers[id] = srv
	return nil
}

func (s *Store) MemberRole(_ context.Context, server domain.ServerID, user domain.UserID) (domain.Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	role, ok := s.members[memberKey{server, user}]
	if !ok {
		return "", notFound("member", user)
	}
	return role, nil
}

func (s *Store) ListModerators(_ context.Context, server domain.ServerID) ([]domain.UserID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.UserID
	for k, role := range s.members {
		if k.server == server && role.CanModerate() {
			out = append(out, k.user)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

func (s *Store) PutServerKey(_ context.Context, k domain.ServerKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys[memberKey{k.ServerID, k.UserID}] = k
	return nil
}

func (s *Store) GetServerKey(_ context.Context, server domain.ServerID, user domain.UserID) (domain.ServerKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	k, ok := s.keys[memberKey{server, user}]
	if !ok {
		return domain.ServerKey{}, notFound("server key", server)
	}
	return k, nil
}

// Channels

func (s *Store) GetChannel(_ context.Context, id domain.ChannelID) (domain.Channel, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ch, ok := s.channels[id]
	if !ok {
		return domain.Channel{}, notFound("channel", id)
	}
	return ch, nil
}

func (s *Store) CreateChannel(_ context.Context, ch domain.Channel) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, dup := s.channels[ch.ID]; dup {
		return fmt.Errorf("create channel %s: already exists", ch.ID)
	}
	s.channels[ch.ID] = ch
	return nil
}

func (s *Store) UpdateChannel(_ context.Context, ch domain.Channel) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.channels[ch.ID]
	if !ok {
		return notFound("channel", ch.ID)
	}
	cur.Name = ch.Name
	cur.Locked = ch.Locked
	s.channels[ch.ID] = cur
	return nil
}

func (s *Store) DeleteChannel(_ context.Context, id domain.ChannelID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.channels[id]; !ok {
		return notFound("channel", id)
	}
	delete(s.channels, id)
	for mid, m := range s.messages {
		if m.ChannelID == id {
			s.deleteMessageLocked(mid)
		}
	}
	return nil
}

func (s *Store) IsEphemeralRoom(_ context.Context, id domain.ChannelID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ch, ok := s.channels[id]
	return ok && ch.IsEphemeralRoom(), nil
}

func (s *Store) ListEphemeralRooms(_ context.Context) ([]domain.ChannelID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.ChannelID
	for id, ch := range s.channels {
		if ch.IsEphemeralRoom() {
			out = append(out, id)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

// Messages

func (s *Store) InsertMessage(_ context.Context, m domain.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, dup := s.messages[m.ID]; dup {
		return fmt.Errorf("insert message %s: already exists", m.ID)
	}
	m.Attachments = nil
	s.messages[m.ID] = m
	return nil
}

func (s *Store) GetMessage(_ context.Context, id domain.MessageID) (domain.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.messages[id]
	if !ok {
		return domain.Message{}, notFound("message", id)
	}
	m.Attachments = s.attachmentsOfLocked(id)
	return m, nil
}

func (s *Store) UpdateMessageContent(_ context.Context, id domain.MessageID, content string, editedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.messages[id]
	if !ok {
		return notFound("message", id)
	}
	m.Content = content
	m.EditedAt = &editedAt
	s.messages[id] = m
	return nil
}

func (s *Store) DeleteMessage(_ context.Context, id domain.MessageID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.messages[id]; !ok {
		return notFound("message", id)
	}
	s.deleteMessageLocked(id)
	return nil
}

func (s *Store) deleteMessageLocked(id domain.MessageID) {
	delete(s.messages, id)
	delete(s.index, id)
	for k := range s.reactions {
		if k.msg == id {
			delete(s.reactions, k)
		}
	}
	for aid, a := range s.attachments {
		if a.MessageID == id {
			delete(s.attachments, aid)
		}
	}
}

// Messages returns the stored messages of ch, oldest first.
func (s *Store) Messages(ch domain.ChannelID) []domain.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Message
	for _, m := range s.messages {
		if m.ChannelID == ch {
			m.Attachments = s.attachmentsOfLocked(m.ID)
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func (s *Store) AddAttachment(_ context.Context, a domain.Attachment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attachments[a.ID] = a
	return nil
}

func (s *Store) LinkAttachments(_ context.Context, msg domain.MessageID, uploader domain.UserID, ids []domain.AttachmentID) ([]domain.Attachment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		a, ok := s.attachments[id]
		if !ok || a.UploaderID != uploader || a.MessageID != "" {
			continue
		}
		a.MessageID = msg
		s.attachments[id] = a
	}
	return s.attachmentsOfLocked(msg), nil
}

func (s *Store) UnlinkedAttachments(_ context.Context, uploader domain.UserID, ids []domain.AttachmentID) ([]domain.Attachment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []domain.Attachment{}
	for _, id := range ids {
		a, ok := s.attachments[id]
		if ok && a.UploaderID == uploader && a.MessageID == "" {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *Store) attachmentsOfLocked(msg domain.MessageID) []domain.Attachment {
	out := []domain.Attachment{}
	for _, a := range s.attachments {
		if a.MessageID == msg {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *Store) AddReaction(_ context.Context, r domain.Reaction) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := reactionKey{r.MessageID, r.UserID, r.Emoji}
	if _, dup := s.reactions[k]; dup {
		return false, nil
	}
	s.reactions[k] = struct{}{}
	return true, nil
}

func (s *Store) RemoveReaction(_ context.Context, r domain.Reaction) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := reactionKey{r.MessageID, r.UserID, r.Emoji}
	if _, ok := s.reactions[k]; !ok {
		return false, nil
	}
	delete(s.reactions, k)
	return true, nil
}

func (s *Store) CountReactions(_ context.Context, r domain.Reaction) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.reactions[reactionKey{r.MessageID, r.UserID, r.Emoji}]; ok {
		return 1, nil
	}
	return 0, nil
}

// Search

func (s *Store) IndexMessage(_ context.Context, m domain.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.index[m.ID] = m
	return nil
}

func (s *Store) RemoveMessage(_ context.Context, id domain.MessageID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.index, id)
	return nil
}

// Indexed reports whether id has a search entry.
func (s *Store) Indexed(id domain.MessageID) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.index[id]
	return ok
}

func (s *Store) SearchMessages(_ context.Context, ch domain.ChannelID, q string, limit int) ([]domain.Message, error) {
	q = strings.ToLower(strings.TrimSpace(q))
	out := []domain.Message{}
	if q == "" {
		return out, nil
	}
	if limit <= 0 {
		limit = 50
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for id, m := range s.index {
		if m.ChannelID != ch || !strings.Contains(strings.ToLower(m.Content), q) {
			continue
		}
		if stored, ok := s.messages[id]; ok {
			stored.Attachments = s.attachmentsOfLocked(id)
			out = append(out, stored)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// DMs

func (s *Store) GetDMChannel(_ context.Context, id domain.DMChannelID) (domain.DMChannel, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	dm, ok := s.dms[id]
	if !ok {
		return domain.DMChannel{}, notFound("dm channel", id)
	}
	return dm, nil
}

func (s *Store) OpenDMChannel(_ context.Context, a, b domain.UserID) (domain.DMChannel, bool, error) {
	if b < a {
		a, b = b, a
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := s.dmByPair[dmPair{a, b}]; ok {
		return s.dms[id], false, nil
	}
	dm := domain.DMChannel{ID: domain.DMChannelID(uuid.NewString()), UserA: a, UserB: b}
	s.dms[dm.ID] = dm
	s.dmByPair[dmPair{a, b}] = dm.ID
	return dm, true, nil
}

func (s *Store) InsertDMMessage(_ context.Context, m domain.DMMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dmMessages[m.DMChannelID] = append(s.dmMessages[m.DMChannelID], m)
	return nil
}

func (s *Store) CountDMMessages(_ context.Context, id domain.DMChannelID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.dmMessages[id]), nil
}
