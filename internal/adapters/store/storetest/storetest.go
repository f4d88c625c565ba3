// Package storetest is the behaviour suite shared by every store driver.
package storetest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkeye/hearth/internal/core"
	"github.com/dkeye/hearth/internal/domain"
)

// Store is core.Store plus the account and inspection calls the CLI and
// tests rely on.
type Store interface {
	core.Store
	CreateUser(ctx context.Context, u domain.User) error
	IssueToken(ctx context.Context, user domain.UserID, token string) error
	CreateServer(ctx context.Context, srv domain.Server) error
	AddMember(ctx context.Context, m domain.Member) error
	GetServerKey(ctx context.Context, server domain.ServerID, user domain.UserID) (domain.ServerKey, error)
	AddAttachment(ctx context.Context, a domain.Attachment) error
	CountReactions(ctx context.Context, r domain.Reaction) (int, error)
	CountDMMessages(ctx context.Context, id domain.DMChannelID) (int, error)
}

var epoch = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

// Run exercises a fresh store from open for each subtest.
func Run(t *testing.T, open func(t *testing.T) Store) {
	t.Run("accounts", func(t *testing.T) { testAccounts(t, open(t)) })
	t.Run("servers", func(t *testing.T) { testServers(t, open(t)) })
	t.Run("channels", func(t *testing.T) { testChannels(t, open(t)) })
	t.Run("messages", func(t *testing.T) { testMessages(t, open(t)) })
	t.Run("attachments", func(t *testing.T) { testAttachments(t, open(t)) })
	t.Run("reactions", func(t *testing.T) { testReactions(t, open(t)) })
	t.Run("cascade", func(t *testing.T) { testCascade(t, open(t)) })
	t.Run("dms", func(t *testing.T) { testDMs(t, open(t)) })
	t.Run("keys", func(t *testing.T) { testKeys(t, open(t)) })
	t.Run("search", func(t *testing.T) { testSearch(t, open(t)) })
}

func testAccounts(t *testing.T, s Store) {
	ctx := context.Background()
	require.NoError(t, s.CreateUser(ctx, domain.User{ID: "u1", Username: "ann", DisplayName: "Ann"}))
	assert.Error(t, s.CreateUser(ctx, domain.User{ID: "u2", Username: "ann"}), "usernames are unique")

	u, err := s.GetUser(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "Ann", u.DisplayName)
	assert.Equal(t, domain.StatusOnline, u.Status)

	require.NoError(t, s.IssueToken(ctx, "u1", "secret"))
	u, err = s.UserForToken(ctx, "secret")
	require.NoError(t, err)
	assert.Equal(t, domain.UserID("u1"), u.ID)
	_, err = s.UserForToken(ctx, "guess")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	require.NoError(t, s.SetUserStatus(ctx, "u1", domain.StatusDND))
	u, _ = s.GetUser(ctx, "u1")
	assert.Equal(t, domain.StatusDND, u.Status)
	assert.ErrorIs(t, s.SetUserStatus(ctx, "nobody", domain.StatusIdle), domain.ErrNotFound)

	_, err = s.GetUser(ctx, "nobody")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func testServers(t *testing.T, s Store) {
	ctx := context.Background()
	require.NoError(t, s.CreateServer(ctx, domain.Server{ID: "s1", Name: "Hearth", OwnerID: "owner"}))
	require.NoError(t, s.AddMember(ctx, domain.Member{ServerID: "s1", UserID: "admin", Role: domain.RoleAdmin}))
	require.NoError(t, s.AddMember(ctx, domain.Member{ServerID: "s1", UserID: "pleb", Role: domain.RoleMember}))

	role, err := s.MemberRole(ctx, "s1", "owner")
	require.NoError(t, err)
	assert.Equal(t, domain.RoleOwner, role)
	_, err = s.MemberRole(ctx, "s1", "stranger")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	mods, err := s.ListModerators(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, []domain.UserID{"admin", "owner"}, mods)

	require.NoError(t, s.RenameServer(ctx, "s1", "Fireplace"))
	srv, err := s.GetServer(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "Fireplace", srv.Name)
	assert.ErrorIs(t, s.RenameServer(ctx, "s9", "x"), domain.ErrNotFound)
}

func channel(id domain.ChannelID, kind domain.ChannelKind, persistent bool, at time.Time) domain.Channel {
	return domain.Channel{ID: id, ServerID: "s1", Name: string(id), Kind: kind, Persistent: persistent, CreatedAt: at}
}

func testChannels(t *testing.T, s Store) {
	ctx := context.Background()
	require.NoError(t, s.CreateChannel(ctx, channel("text", domain.ChannelText, true, epoch)))
	require.NoError(t, s.CreateChannel(ctx, channel("hall", domain.ChannelVoice, true, epoch)))
	require.NoError(t, s.CreateChannel(ctx, channel("room-a", domain.ChannelVoice, false, epoch.Add(time.Second))))
	require.NoError(t, s.CreateChannel(ctx, channel("room-b", domain.ChannelVoice, false, epoch.Add(2*time.Second))))
	assert.Error(t, s.CreateChannel(ctx, channel("text", domain.ChannelText, true, epoch)))

	ch, err := s.GetChannel(ctx, "room-a")
	require.NoError(t, err)
	assert.True(t, ch.IsEphemeralRoom())
	assert.True(t, ch.CreatedAt.Equal(epoch.Add(time.Second)))

	for id, want := range map[domain.ChannelID]bool{"text": false, "hall": false, "room-a": true, "missing": false} {
		got, err := s.IsEphemeralRoom(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, want, got, id)
	}
	rooms, err := s.ListEphemeralRooms(ctx)
	require.NoError(t, err)
	assert.Equal(t, []domain.ChannelID{"room-a", "room-b"}, rooms)

	ch.Name = "renamed"
	ch.Locked = true
	require.NoError(t, s.UpdateChannel(ctx, ch))
	ch, _ = s.GetChannel(ctx, "room-a")
	assert.Equal(t, "renamed", ch.Name)
	assert.True(t, ch.Locked)
	assert.ErrorIs(t, s.UpdateChannel(ctx, channel("missing", domain.ChannelText, true, epoch)), domain.ErrNotFound)

	require.NoError(t, s.DeleteChannel(ctx, "room-a"))
	assert.ErrorIs(t, s.DeleteChannel(ctx, "room-a"), domain.ErrNotFound)
	_, err = s.GetChannel(ctx, "room-a")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func message(id domain.MessageID, ch domain.ChannelID, content string, at time.Time) domain.Message {
	return domain.Message{ID: id, ChannelID: ch, SenderID: "u1", SenderName: "Ann", Content: content, CreatedAt: at}
}

func testMessages(t *testing.T, s Store) {
	ctx := context.Background()
	require.NoError(t, s.InsertMessage(ctx, message("m1", "c1", "hello", epoch)))
	assert.Error(t, s.InsertMessage(ctx, message("m1", "c1", "again", epoch)))

	m, err := s.GetMessage(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, "hello", m.Content)
	assert.Nil(t, m.EditedAt)
	assert.NotNil(t, m.Attachments)
	assert.True(t, m.CreatedAt.Equal(epoch))

	edited := epoch.Add(time.Minute)
	require.NoError(t, s.UpdateMessageContent(ctx, "m1", "hello!", edited))
	m, _ = s.GetMessage(ctx, "m1")
	assert.Equal(t, "hello!", m.Content)
	require.NotNil(t, m.EditedAt)
	assert.True(t, m.EditedAt.Equal(edited))
	assert.ErrorIs(t, s.UpdateMessageContent(ctx, "m9", "x", edited), domain.ErrNotFound)

	require.NoError(t, s.DeleteMessage(ctx, "m1"))
	assert.ErrorIs(t, s.DeleteMessage(ctx, "m1"), domain.ErrNotFound)
	_, err = s.GetMessage(ctx, "m1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func testAttachments(t *testing.T, s Store) {
	ctx := context.Background()
	require.NoError(t, s.InsertMessage(ctx, message("m1", "c1", "", epoch)))
	require.NoError(t, s.InsertMessage(ctx, message("m2", "c1", "", epoch)))
	require.NoError(t, s.AddAttachment(ctx, domain.Attachment{ID: "a1", UploaderID: "u1", Filename: "a.png", URL: "/f/a.png"}))
	require.NoError(t, s.AddAttachment(ctx, domain.Attachment{ID: "a2", UploaderID: "u2", Filename: "b.png", URL: "/f/b.png"}))

	pending, err := s.UnlinkedAttachments(ctx, "u1", []domain.AttachmentID{"a1", "a2", "nope"})
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, domain.AttachmentID("a1"), pending[0].ID)

	linked, err := s.LinkAttachments(ctx, "m1", "u1", []domain.AttachmentID{"a1", "a2", "nope"})
	require.NoError(t, err)
	require.Len(t, linked, 1, "only the uploader's own files link")
	assert.Equal(t, domain.AttachmentID("a1"), linked[0].ID)

	linked, err = s.LinkAttachments(ctx, "m2", "u1", []domain.AttachmentID{"a1"})
	require.NoError(t, err)
	assert.Empty(t, linked, "an attachment links to one message only")
	pending, err = s.UnlinkedAttachments(ctx, "u1", []domain.AttachmentID{"a1"})
	require.NoError(t, err)
	assert.Empty(t, pending)

	m, err := s.GetMessage(ctx, "m1")
	require.NoError(t, err)
	require.Len(t, m.Attachments, 1)
	assert.Equal(t, "a.png", m.Attachments[0].Filename)
}

func testReactions(t *testing.T, s Store) {
	ctx := context.Background()
	r := domain.Reaction{MessageID: "m1", UserID: "u1", Emoji: "👍"}

	added, err := s.AddReaction(ctx, r)
	require.NoError(t, err)
	assert.True(t, added)
	added, err = s.AddReaction(ctx, r)
	require.NoError(t, err)
	assert.False(t, added)
	n, err := s.CountReactions(ctx, r)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	other := r
	other.Emoji = "👎"
	added, _ = s.AddReaction(ctx, other)
	assert.True(t, added, "different emoji is a different reaction")

	removed, err := s.RemoveReaction(ctx, r)
	require.NoError(t, err)
	assert.True(t, removed)
	removed, err = s.RemoveReaction(ctx, r)
	require.NoError(t, err)
	assert.False(t, removed)
	n, _ = s.CountReactions(ctx, r)
	assert.Zero(t, n)
}

func testCascade(t *testing.T, s Store) {
	ctx := context.Background()
	require.NoError(t, s.CreateChannel(ctx, channel("doomed", domain.ChannelVoice, false, epoch)))
	msg := message("m1", "doomed", "bye", epoch)
	require.NoError(t, s.InsertMessage(ctx, msg))
	require.NoError(t, s.IndexMessage(ctx, msg))
	r := domain.Reaction{MessageID: "m1", UserID: "u1", Emoji: "👋"}
	_, err := s.AddReaction(ctx, r)
	require.NoError(t, err)

	require.NoError(t, s.DeleteChannel(ctx, "doomed"))
	_, err = s.GetMessage(ctx, "m1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	n, _ := s.CountReactions(ctx, r)
	assert.Zero(t, n)
	found, err := s.SearchMessages(ctx, "doomed", "bye", 10)
	require.NoError(t, err)
	assert.Empty(t, found)
}

func testDMs(t *testing.T, s Store) {
	ctx := context.Background()
	dm, created, err := s.OpenDMChannel(ctx, "zed", "amy")
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, domain.UserID("amy"), dm.UserA, "pair is stored sorted")
	assert.Equal(t, domain.UserID("zed"), dm.UserB)

	again, created, err := s.OpenDMChannel(ctx, "amy", "zed")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, dm.ID, again.ID)

	got, err := s.GetDMChannel(ctx, dm.ID)
	require.NoError(t, err)
	assert.Equal(t, dm, got)
	_, err = s.GetDMChannel(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	require.NoError(t, s.InsertDMMessage(ctx, domain.DMMessage{ID: "d1", DMChannelID: dm.ID, SenderID: "amy", Content: "hi", CreatedAt: epoch}))
	n, err := s.CountDMMessages(ctx, dm.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func testKeys(t *testing.T, s Store) {
	ctx := context.Background()
	k := domain.ServerKey{ServerID: "s1", UserID: "u2", EncryptedKey: "v1", SharedBy: "u1", UpdatedAt: epoch}
	require.NoError(t, s.PutServerKey(ctx, k))
	k.EncryptedKey = "v2"
	k.SharedBy = "u3"
	require.NoError(t, s.PutServerKey(ctx, k))

	got, err := s.GetServerKey(ctx, "s1", "u2")
	require.NoError(t, err)
	assert.Equal(t, "v2", got.EncryptedKey)
	assert.Equal(t, domain.UserID("u3"), got.SharedBy)
	_, err = s.GetServerKey(ctx, "s1", "u9")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func testSearch(t *testing.T, s Store) {
	ctx := context.Background()
	for i, m := range []domain.Message{
		message("m1", "c1", "the quick brown fox", epoch),
		message("m2", "c1", "a lazy dog", epoch.Add(time.Second)),
		message("m3", "c1", "another fox appears", epoch.Add(2*time.Second)),
		message("m4", "c2", "fox in another channel", epoch.Add(3*time.Second)),
	} {
		require.NoError(t, s.InsertMessage(ctx, m), i)
		require.NoError(t, s.IndexMessage(ctx, m), i)
	}

	found, err := s.SearchMessages(ctx, "c1", "fox", 10)
	require.NoError(t, err)
	require.Len(t, found, 2)
	assert.Equal(t, domain.MessageID("m3"), found[0].ID, "newest first")
	assert.Equal(t, domain.MessageID("m1"), found[1].ID)

	found, _ = s.SearchMessages(ctx, "c1", "fox", 1)
	assert.Len(t, found, 1)

	edited := message("m2", "c1", "a lazy fox", epoch.Add(time.Second))
	require.NoError(t, s.UpdateMessageContent(ctx, "m2", edited.Content, epoch.Add(time.Hour)))
	require.NoError(t, s.IndexMessage(ctx, edited))
	found, _ = s.SearchMessages(ctx, "c1", "fox", 10)
	assert.Len(t, found, 3, "reindexing replaces the entry")

	require.NoError(t, s.RemoveMessage(ctx, "m1"))
	found, _ = s.SearchMessages(ctx, "c1", "fox", 10)
	assert.Len(t, found, 2)

	found, err = s.SearchMessages(ctx, "c1", "   ", 10)
	require.NoError(t, err)
	assert.Empty(t, found)

	found, err = s.SearchMessages(ctx, "c1", `fox" OR "dog`, 10)
	require.NoError(t, err, "operators are matched literally")
	assert.Empty(t, found)
}
