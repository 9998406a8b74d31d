package team

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"
	"unicode"

	"log/slog"

	"github.com/google/uuid"

	"github.com/rafa761/task-management-api/internal/domain"
	"github.com/rafa761/task-management-api/internal/repository"
	"github.com/rafa761/task-management-api/internal/service/activity"
)

// Service handles team and membership workflows.
type Service struct {
	teams    repository.TeamRepository
	members  repository.MembershipRepository
	users    repository.UserRepository
	activity activity.Service
	logger   *slog.Logger
}

// New constructs a Service.
func New(teams repository.TeamRepository, members repository.MembershipRepository, users repository.UserRepository, activitySvc activity.Service, logger *slog.Logger) Service {
	return Service{teams: teams, members: members, users: users, activity: activitySvc, logger: logger}
}

var (
	errNameRequired = errors.New("team name is required")
	errInvalidRole  = errors.New("invalid team role")

	// ErrLastOwner is returned when an operation would leave a team with no
	// active owner.
	ErrLastOwner = errors.New("team must retain at least one owner")
	// ErrNotInvited is returned when accepting a membership that does not exist
	// or is not pending.
	ErrNotInvited = errors.New("no pending invitation for this team")
)

// CreateInput captures team creation attributes.
type CreateInput struct {
	Name                string
	Slug                string
	Description         string
	DefaultTaskPriority domain.TaskPriority
}

// UpdateInput carries optional team mutations; nil fields are left untouched.
type UpdateInput struct {
	Name                *string
	Description         *string
	DefaultTaskPriority *domain.TaskPriority
}

// Member pairs a membership with the member's profile attributes.
type Member struct {
	Membership domain.TeamMembership
	Email      string
	FullName   string
}

// Create registers a team and makes the creator its active owner.
func (s Service) Create(ctx context.Context, ownerID string, input CreateInput) (*domain.Team, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, errNameRequired
	}
	priority := input.DefaultTaskPriority
	if priority == "" {
		priority = domain.PriorityMedium
	}
	if !priority.Valid() {
		return nil, errors.New("invalid default task priority")
	}
	slug := slugify(input.Slug)
	if slug == "" {
		slug = slugify(name)
	}
	now := time.Now().UTC()
	team := &domain.Team{
		ID:                  uuid.NewString(),
		Name:                name,
		Slug:                slug,
		Description:         strings.TrimSpace(input.Description),
		OwnerID:             ownerID,
		DefaultTaskPriority: priority,
		IsActive:            true,
		CreatedAt:           now,
	}
	if err := s.teams.CreateTeam(ctx, team); err != nil {
		return nil, err
	}
	membership := &domain.TeamMembership{
		ID:        uuid.NewString(),
		TeamID:    team.ID,
		UserID:    ownerID,
		Role:      domain.RoleOwner,
		InvitedAt: now,
		JoinedAt:  &now,
		InvitedBy: ownerID,
	}
	if err := s.members.CreateMembership(ctx, membership); err != nil {
		return nil, err
	}
	s.logger.Info("team created", "team_id", team.ID, "owner_id", ownerID)
	return team, nil
}

// List returns the teams where the user holds an active membership.
func (s Service) List(ctx context.Context, userID string) ([]domain.Team, error) {
	return s.teams.ListTeamsByUser(ctx, userID)
}

// Get returns a team visible to the caller.
func (s Service) Get(ctx context.Context, teamID, callerID string) (*domain.Team, error) {
	if _, err := s.requireRole(ctx, teamID, callerID, domain.RoleViewer); err != nil {
		return nil, err
	}
	return s.teams.GetTeamByID(ctx, teamID)
}

// Update applies team changes. Requires admin or above.
func (s Service) Update(ctx context.Context, teamID, callerID string, input UpdateInput) (*domain.Team, error) {
	if _, err := s.requireRole(ctx, teamID, callerID, domain.RoleAdmin); err != nil {
		return nil, err
	}
	team, err := s.teams.GetTeamByID(ctx, teamID)
	if err != nil {
		return nil, err
	}
	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return nil, errNameRequired
		}
		team.Name = name
		team.Slug = slugify(name)
	}
	if input.Description != nil {
		team.Description = strings.TrimSpace(*input.Description)
	}
	if input.DefaultTaskPriority != nil {
		if !input.DefaultTaskPriority.Valid() {
			return nil, errors.New("invalid default task priority")
		}
		team.DefaultTaskPriority = *input.DefaultTaskPriority
	}
	if err := s.teams.UpdateTeam(ctx, team); err != nil {
		return nil, err
	}
	return team, nil
}

// Delete removes a team. Owner only.
func (s Service) Delete(ctx context.Context, teamID, callerID string) error {
	if _, err := s.requireRole(ctx, teamID, callerID, domain.RoleOwner); err != nil {
		return err
	}
	if err := s.teams.DeleteTeam(ctx, teamID); err != nil {
		return err
	}
	s.logger.Info("team deleted", "team_id", teamID, "actor_id", callerID)
	return nil
}

// ListMembers returns the team roster with profile data. Requires an active
// membership.
func (s Service) ListMembers(ctx context.Context, teamID, callerID string) ([]Member, error) {
	if _, err := s.requireRole(ctx, teamID, callerID, domain.RoleViewer); err != nil {
		return nil, err
	}
	memberships, err := s.members.ListMembers(ctx, teamID)
	if err != nil {
		return nil, err
	}
	members := make([]Member, 0, len(memberships))
	for _, m := range memberships {
		member := Member{Membership: m}
		if u, err := s.users.GetUserByID(ctx, m.UserID); err == nil {
			member.Email = u.Email
			member.FullName = u.DisplayName()
		}
		members = append(members, member)
	}
	return members, nil
}

// Invite creates a pending membership for the user with the given email.
// Requires admin or above; granting owner requires owner.
func (s Service) Invite(ctx context.Context, teamID, callerID, email string, role domain.TeamRole) (*domain.TeamMembership, error) {
	if role == "" {
		role = domain.RoleMember
	}
	if !role.Valid() {
		return nil, errInvalidRole
	}
	minimum := domain.RoleAdmin
	if role == domain.RoleOwner {
		minimum = domain.RoleOwner
	}
	if _, err := s.requireRole(ctx, teamID, callerID, minimum); err != nil {
		return nil, err
	}
	invitee, err := s.users.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	existing, err := s.members.GetMembership(ctx, teamID, invitee.ID)
	switch {
	case err == nil && existing.DeletedAt == nil:
		return nil, repository.ErrConflict
	case err == nil:
		// Re-invite a previously removed member on the same row.
		existing.Role = role
		existing.InvitedAt = now
		existing.JoinedAt = nil
		existing.InvitedBy = callerID
		existing.DeletedAt = nil
		if err := s.members.UpdateMembership(ctx, existing); err != nil {
			return nil, err
		}
		return existing, nil
	case !errors.Is(err, repository.ErrNotFound):
		return nil, err
	}
	membership := &domain.TeamMembership{
		ID:        uuid.NewString(),
		TeamID:    teamID,
		UserID:    invitee.ID,
		Role:      role,
		InvitedAt: now,
		InvitedBy: callerID,
	}
	if err := s.members.CreateMembership(ctx, membership); err != nil {
		return nil, err
	}
	s.logger.Info("member invited", "team_id", teamID, "user_id", invitee.ID, "role", role)
	return membership, nil
}

// Accept marks the caller's pending invitation as joined.
func (s Service) Accept(ctx context.Context, teamID, callerID string) (*domain.TeamMembership, error) {
	membership, err := s.members.GetMembership(ctx, teamID, callerID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotInvited
		}
		return nil, err
	}
	if membership.DeletedAt != nil || !membership.IsPending() {
		return nil, ErrNotInvited
	}
	now := time.Now().UTC()
	membership.JoinedAt = &now
	if err := s.members.UpdateMembership(ctx, membership); err != nil {
		return nil, err
	}
	s.recordEvent(ctx, teamID, callerID, domain.EventTeamMemberAdded, callerID, map[string]any{"role": membership.Role})
	return membership, nil
}

// ChangeRole updates a member's role. Requires admin or above; changes that
// touch the owner role require owner. Demoting the last owner is refused.
func (s Service) ChangeRole(ctx context.Context, teamID, callerID, memberID string, role domain.TeamRole) (*domain.TeamMembership, error) {
	if !role.Valid() {
		return nil, errInvalidRole
	}
	membership, err := s.members.GetMembership(ctx, teamID, memberID)
	if err != nil {
		return nil, err
	}
	if membership.DeletedAt != nil {
		return nil, repository.ErrNotFound
	}
	minimum := domain.RoleAdmin
	if role == domain.RoleOwner || membership.Role == domain.RoleOwner {
		minimum = domain.RoleOwner
	}
	if _, err := s.requireRole(ctx, teamID, callerID, minimum); err != nil {
		return nil, err
	}
	if membership.Role == domain.RoleOwner && role != domain.RoleOwner {
		owners, err := s.members.CountActiveOwners(ctx, teamID)
		if err != nil {
			return nil, err
		}
		if owners <= 1 {
			return nil, ErrLastOwner
		}
	}
	previous := membership.Role
	membership.Role = role
	if err := s.members.UpdateMembership(ctx, membership); err != nil {
		return nil, err
	}
	s.recordEvent(ctx, teamID, callerID, domain.EventTeamMemberRoleChanged, memberID, map[string]any{
		"from": previous,
		"to":   role,
	})
	return membership, nil
}

// RemoveMember soft-deletes a membership. Members may leave on their own;
// removing others requires admin or above, and removing an owner requires
// owner. The last owner cannot be removed.
func (s Service) RemoveMember(ctx context.Context, teamID, callerID, memberID string) error {
	membership, err := s.members.GetMembership(ctx, teamID, memberID)
	if err != nil {
		return err
	}
	if membership.DeletedAt != nil {
		return repository.ErrNotFound
	}
	if callerID != memberID {
		minimum := domain.RoleAdmin
		if membership.Role == domain.RoleOwner {
			minimum = domain.RoleOwner
		}
		if _, err := s.requireRole(ctx, teamID, callerID, minimum); err != nil {
			return err
		}
	}
	if membership.Role == domain.RoleOwner {
		owners, err := s.members.CountActiveOwners(ctx, teamID)
		if err != nil {
			return err
		}
		if owners <= 1 {
			return ErrLastOwner
		}
	}
	now := time.Now().UTC()
	membership.DeletedAt = &now
	if err := s.members.UpdateMembership(ctx, membership); err != nil {
		return err
	}
	s.recordEvent(ctx, teamID, callerID, domain.EventTeamMemberRemoved, memberID, nil)
	return nil
}

// Authorize verifies the caller holds an active membership of at least the
// given role and returns that membership.
func (s Service) Authorize(ctx context.Context, teamID, callerID string, minimum domain.TeamRole) (*domain.TeamMembership, error) {
	return s.requireRole(ctx, teamID, callerID, minimum)
}

func (s Service) requireRole(ctx context.Context, teamID, callerID string, minimum domain.TeamRole) (*domain.TeamMembership, error) {
	membership, err := s.members.GetMembership(ctx, teamID, callerID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, domain.ErrNotMember
		}
		return nil, err
	}
	if !membership.IsActive() {
		return nil, domain.ErrNotMember
	}
	if !membership.Role.AtLeast(minimum) {
		return nil, domain.ErrForbidden
	}
	return membership, nil
}

func (s Service) recordEvent(ctx context.Context, teamID, actorID string, eventType domain.EventType, subjectID string, payload map[string]any) {
	var raw json.RawMessage
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			s.logger.Warn("failed to marshal event payload", "error", err)
		} else {
			raw = data
		}
	}
	s.activity.Record(ctx, domain.ActivityEvent{
		TeamID:    teamID,
		ActorID:   actorID,
		EventType: eventType,
		SubjectID: subjectID,
		Payload:   raw,
	})
}

// slugify lowercases the name and collapses non-alphanumerics to hyphens.
func slugify(name string) string {
	var b strings.Builder
	lastHyphen := true
	for _, r := range strings.ToLower(name) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			lastHyphen = false
		case !lastHyphen:
			b.WriteByte('-')
			lastHyphen = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}
