package sqlite

import (
	"context"
	"fmt"

	"zombiezen.com/go/sqlite"

	"github.com/dkeye/hearth/internal/domain"
)

func (s *Store) CreateUser(ctx context.Context, u domain.User) error {
	status := u.Status
	if status == "" {
		status = domain.StatusOnline
	}
	return s.with(ctx, func(conn *sqlite.Conn) error {
		if err := exec(conn, `INSERT INTO users (id, username, display_name, status) VALUES (?, ?, ?, ?)`,
			string(u.ID), u.Username, u.DisplayName, string(status)); err != nil {
			return fmt.Errorf("create user %s: %w", u.Username, err)
		}
		return nil
	})
}

// IssueToken binds an opaque bearer token to a user.
func (s *Store) IssueToken(ctx context.Context, user domain.UserID, token string) error {
	return s.with(ctx, func(conn *sqlite.Conn) error {
		return exec(conn, `INSERT OR REPLACE INTO auth_tokens (token, user_id) VALUES (?, ?)`, token, string(user))
	})
}

func (s *Store) GetUser(ctx context.Context, id domain.UserID) (domain.User, error) {
	return s.userWhere(ctx, `SELECT id, username, display_name, status FROM users WHERE id = ?`, string(id))
}

func (s *Store) UserForToken(ctx context.Context, token string) (domain.User, error) {
	return s.userWhere(ctx, `
		SELECT u.id, u.username, u.display_name, u.status
		FROM auth_tokens t JOIN users u ON u.id = t.user_id
		WHERE t.token = ?`, token)
}

func (s *Store) userWhere(ctx context.Context, q string, arg string) (domain.User, error) {
	var (
		u     domain.User
		found bool
	)
	err := s.with(ctx, func(conn *sqlite.Conn) error {
		return query(conn, q, func(stmt *sqlite.Stmt) error {
			u = domain.User{
				ID:          domain.UserID(stmt.ColumnText(0)),
				Username:    stmt.ColumnText(1),
				DisplayName: stmt.ColumnText(2),
				Status:      domain.Status(stmt.ColumnText(3)),
			}
			found = true
			return nil
		}, arg)
	})
	if err != nil {
		return domain.User{}, fmt.Errorf("get user: %w", err)
	}
	if !found {
		return domain.User{}, fmt.Errorf("user: %w", domain.ErrNotFound)
	}
	return u, nil
}

func (s *Store) SetUserStatus(ctx context.Context, id domain.UserID, status domain.Status) error {
	return s.with(ctx, func(conn *sqlite.Conn) error {
		if err := exec(conn, `UPDATE users SET status = ? WHERE id = ?`, string(status), string(id)); err != nil {
			return fmt.Errorf("set status %s: %w", id, err)
		}
		if conn.Changes() == 0 {
			return fmt.Errorf("user %s: %w", id, domain.ErrNotFound)
		}
		return nil
	})
}

// CreateServer inserts the server and makes its owner a member.
func (s *Store) CreateServer(ctx context.Context, srv domain.Server) error {
	return s.tx(ctx, func(conn *sqlite.Conn) error {
		if err := exec(conn, `INSERT INTO servers (id, name, owner_id) VALUES (?, ?, ?)`, string(srv.ID), srv.Name, string(srv.OwnerID)); err != nil {
			return fmt.Errorf("create server %s: %w", srv.ID, err)
		}
		return exec(conn, `INSERT OR REPLACE INTO server_members (server_id, user_id, role) VALUES (?, ?, ?)`,
			string(srv.ID), string(srv.OwnerID), string(domain.RoleOwner))
	})
}

func (s *Store) AddMember(ctx context.Context, m domain.Member) error {
	return s.with(ctx, func(conn *sqlite.Conn) error {
		return exec(conn, `INSERT OR REPLACE INTO server_members (server_id, user_id, role) VALUES (?, ?, ?)`,
			string(m.ServerID), string(m.UserID), string(m.Role))
	})
}

func (s *Store) GetServer(ctx context.Context, id domain.ServerID) (domain.Server, error) {
	var (
		srv   domain.Server
		found bool
	)
	err := s.with(ctx, func(conn *sqlite.Conn) error {
		return query(conn, `SELECT id, name, owner_id FROM servers WHERE id = ?`, func(stmt *sqlite.Stmt) error {
			srv = domain.Server{
				ID:      domain.ServerID(stmt.ColumnText(0)),
				Name:    stmt.ColumnText(1),
				OwnerID: domain.UserID(stmt.ColumnText(2)),
			}
			found = true
			return nil
		}, string(id))
	})
	if err != nil {
		return domain.Server{}, fmt.Errorf("get server %s: %w", id, err)
	}
	if !found {
		return domain.Server{}, fmt.Errorf("server %s: %w", id, domain.ErrNotFound)
	}
	return srv, nil
}

func (s *Store) RenameServer(ctx context.Context, id domain.ServerID, name string) error {
	return s.with(ctx, func(conn *sqlite.Conn) error {
		if err := exec(conn, `UPDATE servers SET name = ? WHERE id = ?`, name, string(id)); err != nil {
			return fmt.Errorf("rename server %s: %w", id, err)
		}
		if conn.Changes() == 0 {
			return fmt.Errorf("server %s: %w", id, domain.ErrNotFound)
		}
		return nil
	})
}

func (s *Store) MemberRole(ctx context.Context, server domain.ServerID, user domain.UserID) (domain.Role, error) {
	var role domain.Role
	err := s.with(ctx, func(conn *sqlite.Conn) error {
		return query(conn, `SELECT role FROM server_members WHERE server_id = ? AND user_id = ?`, func(stmt *sqlite.Stmt) error {
			role = domain.Role(stmt.ColumnText(0))
			return nil
		}, string(server), string(user))
	})
	if err != nil {
		return "", fmt.Errorf("member role: %w", err)
	}
	if role == "" {
		return "", fmt.Errorf("member %s of %s: %w", user, server, domain.ErrNotFound)
	}
	return role, nil
}

func (s *Store) ListModerators(ctx context.Context, server domain.ServerID) ([]domain.UserID, error) {
	var out []domain.UserID
	err := s.with(ctx, func(conn *sqlite.Conn) error {
		return query(conn, `SELECT user_id FROM server_members WHERE server_id = ? AND role IN (?, ?) ORDER BY user_id`,
			func(stmt *sqlite.Stmt) error {
				out = append(out, domain.UserID(stmt.ColumnText(0)))
				return nil
			}, string(server), string(domain.RoleOwner), string(domain.RoleAdmin))
	})
	if err != nil {
		return nil, fmt.Errorf("list moderators %s: %w", server, err)
	}
	return out, nil
}

func (s *Store) PutServerKey(ctx context.Context, k domain.ServerKey) error {
	return s.with(ctx, func(conn *sqlite.Conn) error {
		err := exec(conn, `
			INSERT INTO server_keys (server_id, user_id, encrypted_key, shared_by, updated_at) VALUES (?, ?, ?, ?, ?)
			ON CONFLICT (server_id, user_id) DO UPDATE SET
				encrypted_key = excluded.encrypted_key,
				shared_by = excluded.shared_by,
				updated_at = excluded.updated_at`,
			string(k.ServerID), string(k.UserID), k.EncryptedKey, string(k.SharedBy), k.UpdatedAt.UnixNano())
		if err != nil {
			return fmt.Errorf("put server key: %w", err)
		}
		return nil
	})
}

func (s *Store) GetServerKey(ctx context.Context, server domain.ServerID, user domain.UserID) (domain.ServerKey, error) {
	var (
		k     domain.ServerKey
		found bool
	)
	err := s.with(ctx, func(conn *sqlite.Conn) error {
		return query(conn, `SELECT server_id, user_id, encrypted_key, shared_by, updated_at FROM server_keys WHERE server_id = ? AND user_id = ?`,
			func(stmt *sqlite.Stmt) error {
				k = domain.ServerKey{
					ServerID:     domain.ServerID(stmt.ColumnText(0)),
					UserID:       domain.UserID(stmt.ColumnText(1)),
					EncryptedKey: stmt.ColumnText(2),
					SharedBy:     domain.UserID(stmt.ColumnText(3)),
					UpdatedAt:    fromNanos(stmt.ColumnInt64(4)),
				}
				found = true
				return nil
			}, string(server), string(user))
	})
	if err != nil {
		return domain.ServerKey{}, fmt.Errorf("get server key: %w", err)
	}
	if !found {
		return domain.ServerKey{}, fmt.Errorf("server key: %w", domain.ErrNotFound)
	}
	return k, nil
}
