package domain

type ServerID string

type Server struct {
	ID      ServerID `json:"id"`
	Name    string   `json:"name"`
	OwnerID UserID   `json:"ownerId"`
}

type Role string

const (
	RoleOwner  Role = "owner"
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
)

// Member represents user's participation meta for a server.
type Member struct {
	ServerID ServerID `json:"serverId"`
	UserID   UserID   `json:"userId"`
	Role     Role     `json:"role"`
}

// CanModerate reports whether the role may manage channels and rooms.
func (r Role) CanModerate() bool {
	return r == RoleOwner || r == RoleAdmin
}
