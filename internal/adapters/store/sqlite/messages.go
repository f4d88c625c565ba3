package sqlite

import (
	"context"
	"fmt"
	"strings"
	"time"

	"zombiezen.com/go/sqlite"

	"github.com/dkeye/hearth/internal/domain"
)

const messageColumns = `id, channel_id, sender_id, sender_name, content, reply_to_id, created_at, edited_at`

func scanMessage(stmt *sqlite.Stmt) domain.Message {
	m := domain.Message{
		ID:          domain.MessageID(stmt.ColumnText(0)),
		ChannelID:   domain.ChannelID(stmt.ColumnText(1)),
		SenderID:    domain.UserID(stmt.ColumnText(2)),
		SenderName:  stmt.ColumnText(3),
		Content:     stmt.ColumnText(4),
		ReplyToID:   domain.MessageID(stmt.ColumnText(5)),
		CreatedAt:   fromNanos(stmt.ColumnInt64(6)),
		Attachments: []domain.Attachment{},
	}
	if edited := stmt.ColumnInt64(7); edited != 0 {
		t := fromNanos(edited)
		m.EditedAt = &t
	}
	return m
}

func fromNanos(n int64) time.Time {
	return time.Unix(0, n).UTC()
}

func (s *Store) InsertMessage(ctx context.Context, m domain.Message) error {
	var edited int64
	if m.EditedAt != nil {
		edited = m.EditedAt.UnixNano()
	}
	return s.with(ctx, func(conn *sqlite.Conn) error {
		err := exec(conn, `INSERT INTO messages (`+messageColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			string(m.ID), string(m.ChannelID), string(m.SenderID), m.SenderName, m.Content,
			string(m.ReplyToID), m.CreatedAt.UnixNano(), edited)
		if err != nil {
			return fmt.Errorf("insert message %s: %w", m.ID, err)
		}
		return nil
	})
}

func (s *Store) GetMessage(ctx context.Context, id domain.MessageID) (domain.Message, error) {
	var (
		msg   domain.Message
		found bool
	)
	err := s.with(ctx, func(conn *sqlite.Conn) error {
		err := query(conn, `SELECT `+messageColumns+` FROM messages WHERE id = ?`, func(stmt *sqlite.Stmt) error {
			msg = scanMessage(stmt)
			found = true
			return nil
		}, string(id))
		if err != nil || !found {
			return err
		}
		msg.Attachments, err = attachmentsOf(conn, id)
		return err
	})
	if err != nil {
		return domain.Message{}, fmt.Errorf("get message %s: %w", id, err)
	}
	if !found {
		return domain.Message{}, fmt.Errorf("message %s: %w", id, domain.ErrNotFound)
	}
	return msg, nil
}

func (s *Store) UpdateMessageContent(ctx context.Context, id domain.MessageID, content string, editedAt time.Time) error {
	return s.with(ctx, func(conn *sqlite.Conn) error {
		if err := exec(conn, `UPDATE messages SET content = ?, edited_at = ? WHERE id = ?`, content, editedAt.UnixNano(), string(id)); err != nil {
			return fmt.Errorf("update message %s: %w", id, err)
		}
		if conn.Changes() == 0 {
			return fmt.Errorf("message %s: %w", id, domain.ErrNotFound)
		}
		return nil
	})
}

func (s *Store) DeleteMessage(ctx context.Context, id domain.MessageID) error {
	return s.tx(ctx, func(conn *sqlite.Conn) error {
		if err := exec(conn, `DELETE FROM messages WHERE id = ?`, string(id)); err != nil {
			return fmt.Errorf("delete message %s: %w", id, err)
		}
		if conn.Changes() == 0 {
			return fmt.Errorf("message %s: %w", id, domain.ErrNotFound)
		}
		if err := exec(conn, `DELETE FROM reactions WHERE message_id = ?`, string(id)); err != nil {
			return err
		}
		return exec(conn, `DELETE FROM attachments WHERE message_id = ?`, string(id))
	})
}

func (s *Store) LinkAttachments(ctx context.Context, msg domain.MessageID, uploader domain.UserID, ids []domain.AttachmentID) ([]domain.Attachment, error) {
	var linked []domain.Attachment
	err := s.tx(ctx, func(conn *sqlite.Conn) error {
		for _, id := range ids {
			err := exec(conn, `UPDATE attachments SET message_id = ? WHERE id = ? AND uploader_id = ? AND message_id = ''`,
				string(msg), string(id), string(uploader))
			if err != nil {
				return fmt.Errorf("link attachment %s: %w", id, err)
			}
		}
		var err error
		linked, err = attachmentsOf(conn, msg)
		return err
	})
	if err != nil {
		return nil, err
	}
	return linked, nil
}

func (s *Store) UnlinkedAttachments(ctx context.Context, uploader domain.UserID, ids []domain.AttachmentID) ([]domain.Attachment, error) {
	out := []domain.Attachment{}
	err := s.with(ctx, func(conn *sqlite.Conn) error {
		for _, id := range ids {
			err := query(conn, `SELECT id, uploader_id, filename, url, content_type, size FROM attachments WHERE id = ? AND uploader_id = ? AND message_id = ''`,
				func(stmt *sqlite.Stmt) error {
					out = append(out, domain.Attachment{
						ID:          domain.AttachmentID(stmt.ColumnText(0)),
						UploaderID:  domain.UserID(stmt.ColumnText(1)),
						Filename:    stmt.ColumnText(2),
						URL:         stmt.ColumnText(3),
						ContentType: stmt.ColumnText(4),
						Size:        stmt.ColumnInt64(5),
					})
					return nil
				}, string(id), string(uploader))
			if err != nil {
				return fmt.Errorf("unlinked attachment %s: %w", id, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// AddAttachment records an upload that is not linked to a message yet.
func (s *Store) AddAttachment(ctx context.Context, a domain.Attachment) error {
	return s.with(ctx, func(conn *sqlite.Conn) error {
		return exec(conn, `INSERT INTO attachments (id, message_id, uploader_id, filename, url, content_type, size) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			string(a.ID), string(a.MessageID), string(a.UploaderID), a.Filename, a.URL, a.ContentType, a.Size)
	})
}

func attachmentsOf(conn *sqlite.Conn, msg domain.MessageID) ([]domain.Attachment, error) {
	out := []domain.Attachment{}
	err := query(conn, `SELECT id, message_id, uploader_id, filename, url, content_type, size FROM attachments WHERE message_id = ? ORDER BY rowid`,
		func(stmt *sqlite.Stmt) error {
			out = append(out, domain.Attachment{
				ID:          domain.AttachmentID(stmt.ColumnText(0)),
				MessageID:   domain.MessageID(stmt.ColumnText(1)),
				UploaderID:  domain.UserID(stmt.ColumnText(2)),
				Filename:    stmt.ColumnText(3),
				URL:         stmt.ColumnText(4),
				ContentType: stmt.ColumnText(5),
				Size:        stmt.ColumnInt64(6),
			})
			return nil
		}, string(msg))
	if err != nil {
		return nil, fmt.Errorf("attachments of %s: %w", msg, err)
	}
	return out, nil
}

func (s *Store) AddReaction(ctx context.Context, r domain.Reaction) (bool, error) {
	var added bool
	err := s.with(ctx, func(conn *sqlite.Conn) error {
		if err := exec(conn, `INSERT OR IGNORE INTO reactions (message_id, user_id, emoji) VALUES (?, ?, ?)`,
			string(r.MessageID), string(r.UserID), r.Emoji); err != nil {
			return fmt.Errorf("add reaction: %w", err)
		}
		added = conn.Changes() > 0
		return nil
	})
	return added, err
}

func (s *Store) RemoveReaction(ctx context.Context, r domain.Reaction) (bool, error) {
	var removed bool
	err := s.with(ctx, func(conn *sqlite.Conn) error {
		if err := exec(conn, `DELETE FROM reactions WHERE message_id = ? AND user_id = ? AND emoji = ?`,
			string(r.MessageID), string(r.UserID), r.Emoji); err != nil {
			return fmt.Errorf("remove reaction: %w", err)
		}
		removed = conn.Changes() > 0
		return nil
	})
	return removed, err
}

// CountReactions counts the stored rows for one reaction key.
func (s *Store) CountReactions(ctx context.Context, r domain.Reaction) (int, error) {
	var n int
	err := s.with(ctx, func(conn *sqlite.Conn) error {
		return query(conn, `SELECT count(*) FROM reactions WHERE message_id = ? AND user_id = ? AND emoji = ?`,
			func(stmt *sqlite.Stmt) error {
				n = stmt.ColumnInt(0)
				return nil
			}, string(r.MessageID), string(r.UserID), r.Emoji)
	})
	return n, err
}

func (s *Store) IndexMessage(ctx context.Context, m domain.Message) error {
	return s.tx(ctx, func(conn *sqlite.Conn) error {
		if err := exec(conn, `DELETE FROM messages_fts WHERE message_id = ?`, string(m.ID)); err != nil {
			return fmt.Errorf("index message %s: %w", m.ID, err)
		}
		if err := exec(conn, `INSERT INTO messages_fts (message_id, channel_id, content) VALUES (?, ?, ?)`,
			string(m.ID), string(m.ChannelID), m.Content); err != nil {
			return fmt.Errorf("index message %s: %w", m.ID, err)
		}
		return nil
	})
}

func (s *Store) RemoveMessage(ctx context.Context, id domain.MessageID) error {
	return s.with(ctx, func(conn *sqlite.Conn) error {
		return exec(conn, `DELETE FROM messages_fts WHERE message_id = ?`, string(id))
	})
}

func (s *Store) SearchMessages(ctx context.Context, ch domain.ChannelID, q string, limit int) ([]domain.Message, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return []domain.Message{}, nil
	}
	if limit <= 0 {
		limit = 50
	}
	out := []domain.Message{}
	err := s.with(ctx, func(conn *sqlite.Conn) error {
		err := query(conn, `
			SELECT m.id, m.channel_id, m.sender_id, m.sender_name, m.content, m.reply_to_id, m.created_at, m.edited_at
			FROM messages_fts JOIN messages m ON m.id = messages_fts.message_id
			WHERE messages_fts MATCH ? AND messages_fts.channel_id = ?
			ORDER BY m.created_at DESC
			LIMIT ?`,
			func(stmt *sqlite.Stmt) error {
				out = append(out, scanMessage(stmt))
				return nil
			}, phrase(q), string(ch), limit)
		if err != nil {
			return fmt.Errorf("search %s: %w", ch, err)
		}
		for i := range out {
			if out[i].Attachments, err = attachmentsOf(conn, out[i].ID); err != nil {
				return err
			}
		}
		return nil
	})
	return out, err
}

// phrase quotes user input as a single FTS5 phrase so operators in it are
// matched literally.
func phrase(q string) string {
	return `"` + strings.ReplaceAll(q, `"`, `""`) + `"`
}
