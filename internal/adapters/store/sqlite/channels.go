package sqlite

import (
	"context"
	"fmt"

	"zombiezen.com/go/sqlite"

	"github.com/dkeye/hearth/internal/domain"
)

const channelColumns = `id, server_id, name, kind, persistent, locked, creator_id, created_at`

func scanChannel(stmt *sqlite.Stmt) domain.Channel {
	return domain.Channel{
		ID:         domain.ChannelID(stmt.ColumnText(0)),
		ServerID:   domain.ServerID(stmt.ColumnText(1)),
		Name:       stmt.ColumnText(2),
		Kind:       domain.ChannelKind(stmt.ColumnText(3)),
		Persistent: stmt.ColumnInt64(4) != 0,
		Locked:     stmt.ColumnInt64(5) != 0,
		CreatorID:  domain.UserID(stmt.ColumnText(6)),
		CreatedAt:  fromNanos(stmt.ColumnInt64(7)),
	}
}

func (s *Store) GetChannel(ctx context.Context, id domain.ChannelID) (domain.Channel, error) {
	var (
		ch    domain.Channel
		found bool
	)
	err := s.with(ctx, func(conn *sqlite.Conn) error {
		return query(conn, `SELECT `+channelColumns+` FROM channels WHERE id = ?`, func(stmt *sqlite.Stmt) error {
			ch = scanChannel(stmt)
			found = true
			return nil
		}, string(id))
	})
	if err != nil {
		return domain.Channel{}, fmt.Errorf("get channel %s: %w", id, err)
	}
	if !found {
		return domain.Channel{}, fmt.Errorf("channel %s: %w", id, domain.ErrNotFound)
	}
	return ch, nil
}

func (s *Store) CreateChannel(ctx context.Context, ch domain.Channel) error {
	return s.with(ctx, func(conn *sqlite.Conn) error {
		err := exec(conn, `INSERT INTO channels (`+channelColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			string(ch.ID), string(ch.ServerID), ch.Name, string(ch.Kind), boolInt(ch.Persistent), boolInt(ch.Locked),
			string(ch.CreatorID), ch.CreatedAt.UnixNano())
		if err != nil {
			return fmt.Errorf("create channel %s: %w", ch.ID, err)
		}
		return nil
	})
}

func (s *Store) UpdateChannel(ctx context.Context, ch domain.Channel) error {
	return s.with(ctx, func(conn *sqlite.Conn) error {
		if err := exec(conn, `UPDATE channels SET name = ?, locked = ? WHERE id = ?`, ch.Name, boolInt(ch.Locked), string(ch.ID)); err != nil {
			return fmt.Errorf("update channel %s: %w", ch.ID, err)
		}
		if conn.Changes() == 0 {
			return fmt.Errorf("channel %s: %w", ch.ID, domain.ErrNotFound)
		}
		return nil
	})
}

// DeleteChannel removes the channel with its messages, reactions,
// attachments and search entries.
func (s *Store) DeleteChannel(ctx context.Context, id domain.ChannelID) error {
	return s.tx(ctx, func(conn *sqlite.Conn) error {
		if err := exec(conn, `DELETE FROM channels WHERE id = ?`, string(id)); err != nil {
			return fmt.Errorf("delete channel %s: %w", id, err)
		}
		if conn.Changes() == 0 {
			return fmt.Errorf("channel %s: %w", id, domain.ErrNotFound)
		}
		for _, q := range []string{
			`DELETE FROM reactions WHERE message_id IN (SELECT id FROM messages WHERE channel_id = ?)`,
			`DELETE FROM attachments WHERE message_id IN (SELECT id FROM messages WHERE channel_id = ?)`,
			`DELETE FROM messages_fts WHERE channel_id = ?`,
			`DELETE FROM messages WHERE channel_id = ?`,
		} {
			if err := exec(conn, q, string(id)); err != nil {
				return fmt.Errorf("delete channel %s: %w", id, err)
			}
		}
		return nil
	})
}

func (s *Store) IsEphemeralRoom(ctx context.Context, id domain.ChannelID) (bool, error) {
	var ephemeral bool
	err := s.with(ctx, func(conn *sqlite.Conn) error {
		return query(conn, `SELECT 1 FROM channels WHERE id = ? AND kind = ? AND persistent = 0`, func(*sqlite.Stmt) error {
			ephemeral = true
			return nil
		}, string(id), string(domain.ChannelVoice))
	})
	if err != nil {
		return false, fmt.Errorf("is ephemeral %s: %w", id, err)
	}
	return ephemeral, nil
}

func (s *Store) ListEphemeralRooms(ctx context.Context) ([]domain.ChannelID, error) {
	var out []domain.ChannelID
	err := s.with(ctx, func(conn *sqlite.Conn) error {
		return query(conn, `SELECT id FROM channels WHERE kind = ? AND persistent = 0 ORDER BY created_at`, func(stmt *sqlite.Stmt) error {
			out = append(out, domain.ChannelID(stmt.ColumnText(0)))
			return nil
		}, string(domain.ChannelVoice))
	})
	if err != nil {
		return nil, fmt.Errorf("list ephemeral rooms: %w", err)
	}
	return out, nil
}
