package sqlite

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"zombiezen.com/go/sqlite"

	"github.com/dkeye/hearth/internal/domain"
)

func (s *Store) GetDMChannel(ctx context.Context, id domain.DMChannelID) (domain.DMChannel, error) {
	var (
		dm    domain.DMChannel
		found bool
	)
	err := s.with(ctx, func(conn *sqlite.Conn) error {
		return query(conn, `SELECT id, user_a, user_b FROM dm_channels WHERE id = ?`, func(stmt *sqlite.Stmt) error {
			dm = scanDM(stmt)
			found = true
			return nil
		}, string(id))
	})
	if err != nil {
		return domain.DMChannel{}, fmt.Errorf("get dm channel %s: %w", id, err)
	}
	if !found {
		return domain.DMChannel{}, fmt.Errorf("dm channel %s: %w", id, domain.ErrNotFound)
	}
	return dm, nil
}

func scanDM(stmt *sqlite.Stmt) domain.DMChannel {
	return domain.DMChannel{
		ID:    domain.DMChannelID(stmt.ColumnText(0)),
		UserA: domain.UserID(stmt.ColumnText(1)),
		UserB: domain.UserID(stmt.ColumnText(2)),
	}
}

// OpenDMChannel stores the pair in sorted order so (a, b) and (b, a) share
// one row.
func (s *Store) OpenDMChannel(ctx context.Context, a, b domain.UserID) (domain.DMChannel, bool, error) {
	if b < a {
		a, b = b, a
	}
	var (
		dm      domain.DMChannel
		found   bool
		created bool
	)
	err := s.tx(ctx, func(conn *sqlite.Conn) error {
		err := query(conn, `SELECT id, user_a, user_b FROM dm_channels WHERE user_a = ? AND user_b = ?`, func(stmt *sqlite.Stmt) error {
			dm = scanDM(stmt)
			found = true
			return nil
		}, string(a), string(b))
		if err != nil || found {
			return err
		}
		dm = domain.DMChannel{ID: domain.DMChannelID(uuid.NewString()), UserA: a, UserB: b}
		created = true
		return exec(conn, `INSERT INTO dm_channels (id, user_a, user_b) VALUES (?, ?, ?)`, string(dm.ID), string(a), string(b))
	})
	if err != nil {
		return domain.DMChannel{}, false, fmt.Errorf("open dm channel: %w", err)
	}
	return dm, created, nil
}

func (s *Store) InsertDMMessage(ctx context.Context, m domain.DMMessage) error {
	return s.with(ctx, func(conn *sqlite.Conn) error {
		err := exec(conn, `INSERT INTO dm_messages (id, dm_channel_id, sender_id, sender_name, content, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
			string(m.ID), string(m.DMChannelID), string(m.SenderID), m.SenderName, m.Content, m.CreatedAt.UnixNano())
		if err != nil {
			return fmt.Errorf("insert dm message %s: %w", m.ID, err)
		}
		return nil
	})
}

// CountDMMessages counts the stored messages of one conversation.
func (s *Store) CountDMMessages(ctx context.Context, id domain.DMChannelID) (int, error) {
	var n int
	err := s.with(ctx, func(conn *sqlite.Conn) error {
		return query(conn, `SELECT count(*) FROM dm_messages WHERE dm_channel_id = ?`, func(stmt *sqlite.Stmt) error {
			n = stmt.ColumnInt(0)
			return nil
		}, string(id))
	})
	return n, err
}
