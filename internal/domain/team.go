package domain

import "time"

// TeamRole defines a member's permission level within a team.
type TeamRole string

const (
	RoleOwner  TeamRole = "owner"
	RoleAdmin  TeamRole = "admin"
	RoleMember TeamRole = "member"
	RoleViewer TeamRole = "viewer"
)

// roleRanks orders roles from weakest to strongest.
var roleRanks = map[TeamRole]int{
	RoleViewer: 1,
	RoleMember: 2,
	RoleAdmin:  3,
	RoleOwner:  4,
}

// Valid reports whether the role is a known value.
func (r TeamRole) Valid() bool {
	_, ok := roleRanks[r]
	return ok
}

// AtLeast reports whether the role grants at least the required role's rank.
func (r TeamRole) AtLeast(required TeamRole) bool {
	return roleRanks[r] >= roleRanks[required]
}

// Team represents a collaborative workspace and tenant boundary.
type Team struct {
	ID                  string
	Name                string
	Slug                string
	Description         string
	OwnerID             string
	DefaultTaskPriority TaskPriority
	IsActive            bool
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// TeamMembership links a user to a team with a role and invitation lifecycle.
//
// A membership is pending until the invitee accepts (JoinedAt set) and is
// soft deleted on removal (DeletedAt set) so history survives.
type TeamMembership struct {
	ID        string
	TeamID    string
	UserID    string
	Role      TeamRole
	InvitedAt time.Time
	JoinedAt  *time.Time
	InvitedBy string
	DeletedAt *time.Time
}

// IsPending reports whether the invitation has not been accepted yet.
func (m TeamMembership) IsPending() bool {
	return m.JoinedAt == nil && m.DeletedAt == nil
}

// IsActive reports whether the member has joined and was not removed.
func (m TeamMembership) IsActive() bool {
	return m.JoinedAt != nil && m.DeletedAt == nil
}
