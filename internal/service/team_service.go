package service

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/yakoovad/finflow/internal/db"
	"github.com/yakoovad/finflow/internal/events"
	"github.com/yakoovad/finflow/internal/model"
	"github.com/yakoovad/finflow/internal/notify"
	"github.com/yakoovad/finflow/internal/repository"
	"github.com/yakoovad/finflow/pkg/logger"
	"go.uber.org/zap"
)

type TeamService struct {
	tx db.Transactor

	users   repository.UserRepository
	teams   repository.TeamRepository
	invites repository.InviteRepository
	emitter events.Emitter
}

func NewTeamService(tx db.Transactor) *TeamService {
	return &TeamService{
		tx: tx,
	}
}

func (t *TeamService) Current(ctx context.Context, teamID string) (*model.Team, *Error) {
	l := logger.FromContext(ctx)

	team, err := t.teams.Get(ctx, teamID)
	if errors.Is(err, repository.ErrNotFound) {
		l.Warn("team not found", zap.String("team_id", teamID))
		return nil, NewError(ErrorCodeNotFound, "team not found")
	}
	if err != nil {
		l.Error("failed to get team", zap.String("team_id", teamID), zap.Error(err))
		return nil, NewError(ErrorCodeUnspecified, "failed to get team")
	}

	return toModelTeam(team), nil
}

func (t *TeamService) Update(ctx context.Context, teamID string, upd *model.TeamUpdate) (*model.Team, *Error) {
	l := logger.FromContext(ctx)
	l.Info("updating team", zap.String("team_id", teamID))

	team, err := t.teams.Patch(ctx, &repository.TeamPatch{
		ID:           teamID,
		Name:         upd.Name,
		Email:        upd.Email,
		BaseCurrency: upd.BaseCurrency,
	})
	if errors.Is(err, repository.ErrNotFound) {
		return nil, NewError(ErrorCodeNotFound, "team not found")
	}
	if err != nil {
		l.Error("failed to update team", zap.String("team_id", teamID), zap.Error(err))
		return nil, NewError(ErrorCodeUnspecified, "failed to update team")
	}

	return toModelTeam(team), nil
}

func (t *TeamService) Members(ctx context.Context, teamID string) ([]*model.TeamMember, *Error) {
	members, err := t.teams.GetTeamMembers(ctx, teamID)
	if err != nil {
		logger.FromContext(ctx).Error("failed to get team members", zap.String("team_id", teamID), zap.Error(err))
		return nil, NewError(ErrorCodeUnspecified, "failed to get team members")
	}

	res := make([]*model.TeamMember, 0, len(members))
	for _, m := range members {
		res = append(res, &model.TeamMember{
			UserID:   m.UserID,
			FullName: m.FullName,
			Email:    m.Email,
			Role:     m.Role,
		})
	}
	return res, nil
}

// UpdateMember changes the role of a member. Only owners may do it, and the last owner
// cannot demote themselves.
func (t *TeamService) UpdateMember(ctx context.Context, teamID, callerID, userID string, role model.TeamRole) *Error {
	l := logger.FromContext(ctx).With(zap.String("team_id", teamID), zap.String("user_id", userID))
	l.Info("updating member role", zap.String("role", string(role)))

	err := t.tx.WithinTransaction(ctx, func(txCtx context.Context) error {
		if err := t.requireOwner(txCtx, teamID, callerID); err != nil {
			return err
		}

		target, err := t.member(txCtx, teamID, userID)
		if err != nil {
			return err
		}
		if target.Role == model.TeamRoleOwner && role != model.TeamRoleOwner {
			if err = t.ensureAnotherOwner(txCtx, teamID); err != nil {
				return err
			}
		}

		if err = t.teams.UpdateMemberRole(txCtx, teamID, userID, role); err != nil {
			l.Error("failed to update member role", zap.Error(err))
			return NewError(ErrorCodeUnspecified, "failed to update member")
		}
		return nil
	})

	return asError(err, "failed to update member")
}

func (t *TeamService) DeleteMember(ctx context.Context, teamID, callerID, userID string) *Error {
	l := logger.FromContext(ctx).With(zap.String("team_id", teamID), zap.String("user_id", userID))
	l.Info("removing member")

	err := t.tx.WithinTransaction(ctx, func(txCtx context.Context) error {
		if err := t.requireOwner(txCtx, teamID, callerID); err != nil {
			return err
		}
		return t.removeMember(txCtx, teamID, userID)
	})

	return asError(err, "failed to remove member")
}

// Leave removes the caller from the team and clears their current team.
func (t *TeamService) Leave(ctx context.Context, teamID, userID string) *Error {
	logger.FromContext(ctx).Info("leaving team", zap.String("team_id", teamID), zap.String("user_id", userID))

	err := t.tx.WithinTransaction(ctx, func(txCtx context.Context) error {
		return t.removeMember(txCtx, teamID, userID)
	})

	return asError(err, "failed to leave team")
}

func (t *TeamService) removeMember(ctx context.Context, teamID, userID string) error {
	l := logger.FromContext(ctx)

	target, err := t.member(ctx, teamID, userID)
	if err != nil {
		return err
	}
	if target.Role == model.TeamRoleOwner {
		if err = t.ensureAnotherOwner(ctx, teamID); err != nil {
			return err
		}
	}

	if err = t.teams.RemoveMember(ctx, teamID, userID); err != nil {
		l.Error("failed to remove member", zap.String("user_id", userID), zap.Error(err))
		return NewError(ErrorCodeUnspecified, "failed to remove member")
	}

	user, err := t.users.Get(ctx, userID)
	if err != nil {
		l.Error("failed to get user", zap.String("user_id", userID), zap.Error(err))
		return NewError(ErrorCodeUnspecified, "failed to remove member")
	}
	if user.TeamID == teamID {
		if err = t.users.SetTeam(ctx, userID, ""); err != nil {
			l.Error("failed to clear current team", zap.String("user_id", userID), zap.Error(err))
			return NewError(ErrorCodeUnspecified, "failed to remove member")
		}
	}
	return nil
}

// Invite upserts one invite per email and mails each invitee their code. Only owners may invite.
func (t *TeamService) Invite(ctx context.Context, teamID, callerID string, reqs []*model.InviteRequest) ([]*model.Invite, *Error) {
	l := logger.FromContext(ctx).With(zap.String("team_id", teamID))
	l.Info("inviting members", zap.Int("count", len(reqs)))

	if err := t.requireOwner(ctx, teamID, callerID); err != nil {
		return nil, asError(err, "failed to invite members")
	}

	team, err := t.teams.Get(ctx, teamID)
	if err != nil {
		l.Error("failed to get team", zap.Error(err))
		return nil, NewError(ErrorCodeUnspecified, "failed to invite members")
	}
	inviter, err := t.users.Get(ctx, callerID)
	if err != nil {
		l.Error("failed to get inviter", zap.String("user_id", callerID), zap.Error(err))
		return nil, NewError(ErrorCodeUnspecified, "failed to invite members")
	}

	var stored []*repository.Invite
	err = t.tx.WithinTransaction(ctx, func(txCtx context.Context) error {
		for _, r := range reqs {
			inv := &repository.Invite{
				TeamID:    teamID,
				Email:     strings.ToLower(r.Email),
				Role:      r.Role,
				Code:      inviteCode(),
				InvitedBy: callerID,
			}
			if err := t.invites.Upsert(txCtx, inv); err != nil {
				l.Error("failed to upsert invite", zap.String("email", r.Email), zap.Error(err))
				return NewError(ErrorCodeUnspecified, "failed to invite members")
			}
			stored = append(stored, inv)
		}
		return nil
	})
	if err != nil {
		return nil, asError(err, "failed to invite members")
	}

	res := make([]*model.Invite, 0, len(stored))
	for _, inv := range stored {
		html, err := notify.InviteEmail(notify.InviteData{
			InvitedBy: inviter.FullName,
			TeamName:  team.Name,
			Code:      inv.Code,
		})
		if err != nil {
			l.Error("failed to render invite email", zap.Error(err))
			return nil, NewError(ErrorCodeUnspecified, "failed to invite members")
		}

		// the invite is stored, a lost email can be resent by inviting again
		if err = t.emitter.Emit(ctx, events.SendEmail, events.SendEmailPayload{
			To:      inv.Email,
			Subject: inviter.FullName + " invited you to " + team.Name,
			HTML:    html,
		}); err != nil {
			l.Error("failed to emit invite email", zap.String("email", inv.Email), zap.Error(err))
		}

		res = append(res, toModelInvite(inv))
	}

	return res, nil
}

func (t *TeamService) Invites(ctx context.Context, teamID string) ([]*model.Invite, *Error) {
	invites, err := t.invites.List(ctx, teamID)
	if err != nil {
		logger.FromContext(ctx).Error("failed to list invites", zap.String("team_id", teamID), zap.Error(err))
		return nil, NewError(ErrorCodeUnspecified, "failed to list invites")
	}

	res := make([]*model.Invite, 0, len(invites))
	for _, inv := range invites {
		res = append(res, toModelInvite(inv))
	}
	return res, nil
}

func (t *TeamService) DeleteInvite(ctx context.Context, teamID, inviteID string) *Error {
	err := t.invites.Delete(ctx, teamID, inviteID)
	if errors.Is(err, repository.ErrNotFound) {
		return NewError(ErrorCodeNotFound, "invite not found")
	}
	if err != nil {
		logger.FromContext(ctx).Error("failed to delete invite", zap.String("invite_id", inviteID), zap.Error(err))
		return NewError(ErrorCodeUnspecified, "failed to delete invite")
	}
	return nil
}

// AcceptInvite turns an invite code into a membership and switches the user to that team.
func (t *TeamService) AcceptInvite(ctx context.Context, userID, code string) (*model.Team, *Error) {
	l := logger.FromContext(ctx).With(zap.String("user_id", userID))
	l.Info("accepting invite")

	var teamID string
	err := t.tx.WithinTransaction(ctx, func(txCtx context.Context) error {
		inv, err := t.invites.GetByCode(txCtx, code)
		if errors.Is(err, repository.ErrNotFound) {
			return NewError(ErrorCodeNotFound, "invite not found")
		}
		if err != nil {
			l.Error("failed to get invite", zap.Error(err))
			return NewError(ErrorCodeUnspecified, "failed to accept invite")
		}

		user, err := t.users.Get(txCtx, userID)
		if errors.Is(err, repository.ErrNotFound) {
			return NewError(ErrorCodeNotFound, "user not found")
		}
		if err != nil {
			l.Error("failed to get user", zap.Error(err))
			return NewError(ErrorCodeUnspecified, "failed to accept invite")
		}
		if !strings.EqualFold(user.Email, inv.Email) {
			l.Warn("invite addressed to another email", zap.String("invite_id", inv.ID))
			return NewError(ErrorCodeForbidden, "invite belongs to another user")
		}

		_, err = t.teams.GetMember(txCtx, inv.TeamID, userID)
		if err == nil {
			return NewError(ErrorCodeAlreadyExists, "already a member of this team")
		}
		if !errors.Is(err, repository.ErrNotFound) {
			l.Error("failed to get membership", zap.Error(err))
			return NewError(ErrorCodeUnspecified, "failed to accept invite")
		}

		err = t.teams.AddMember(txCtx, inv.TeamID, userID, inv.Role)
		if errors.Is(err, repository.ErrAlreadyExists) {
			return NewError(ErrorCodeAlreadyExists, "already a member of this team")
		}
		if err != nil {
			l.Error("failed to add member", zap.Error(err))
			return NewError(ErrorCodeUnspecified, "failed to accept invite")
		}
		if err = t.invites.Delete(txCtx, inv.TeamID, inv.ID); err != nil {
			l.Error("failed to delete invite", zap.Error(err))
			return NewError(ErrorCodeUnspecified, "failed to accept invite")
		}
		if err = t.users.SetTeam(txCtx, userID, inv.TeamID); err != nil {
			l.Error("failed to switch team", zap.Error(err))
			return NewError(ErrorCodeUnspecified, "failed to accept invite")
		}

		teamID = inv.TeamID
		return nil
	})
	if err != nil {
		return nil, asError(err, "failed to accept invite")
	}

	return t.Current(ctx, teamID)
}

// Member returns the caller's membership of the team, or NOT_FOUND when there is none.
func (t *TeamService) Member(ctx context.Context, teamID, userID string) (*model.TeamMember, *Error) {
	m, err := t.member(ctx, teamID, userID)
	if err != nil {
		return nil, asError(err, "failed to get member")
	}
	return &model.TeamMember{
		UserID:   m.UserID,
		FullName: m.FullName,
		Email:    m.Email,
		Role:     m.Role,
	}, nil
}

func (t *TeamService) member(ctx context.Context, teamID, userID string) (*repository.Member, error) {
	m, err := t.teams.GetMember(ctx, teamID, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, NewError(ErrorCodeNotFound, "member not found")
	}
	if err != nil {
		logger.FromContext(ctx).Error("failed to get member", zap.String("user_id", userID), zap.Error(err))
		return nil, NewError(ErrorCodeUnspecified, "failed to get member")
	}
	return m, nil
}

func (t *TeamService) requireOwner(ctx context.Context, teamID, userID string) error {
	m, err := t.member(ctx, teamID, userID)
	var serr *Error
	if errors.As(err, &serr) && serr.Code == ErrorCodeNotFound {
		return NewError(ErrorCodeForbidden, "not a member of this team")
	}
	if err != nil {
		return err
	}
	if m.Role != model.TeamRoleOwner {
		return NewError(ErrorCodeForbidden, "only owners can manage members")
	}
	return nil
}

func (t *TeamService) ensureAnotherOwner(ctx context.Context, teamID string) error {
	owners, err := t.teams.CountOwners(ctx, teamID)
	if err != nil {
		logger.FromContext(ctx).Error("failed to count owners", zap.String("team_id", teamID), zap.Error(err))
		return NewError(ErrorCodeUnspecified, "failed to count owners")
	}
	if owners <= 1 {
		return NewError(ErrorCodeLastOwner, "team must keep at least one owner")
	}
	return nil
}

func inviteCode() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:16]
}

func toModelTeam(t *repository.Team) *model.Team {
	return &model.Team{
		ID:           t.ID,
		Name:         t.Name,
		Slug:         t.Slug,
		Email:        t.Email,
		LogoURL:      t.LogoURL,
		BaseCurrency: t.BaseCurrency,
		CreatedAt:    t.CreatedAt,
	}
}

func toModelInvite(inv *repository.Invite) *model.Invite {
	return &model.Invite{
		ID:        inv.ID,
		Email:     inv.Email,
		Role:      inv.Role,
		InvitedBy: inv.InvitedBy,
		CreatedAt: inv.CreatedAt,
	}
}

func (t *TeamService) WithUserRepo(r repository.UserRepository) *TeamService {
	t.users = r
	return t
}

func (t *TeamService) WithTeamRepo(r repository.TeamRepository) *TeamService {
	t.teams = r
	return t
}

func (t *TeamService) WithInviteRepo(r repository.InviteRepository) *TeamService {
	t.invites = r
	return t
}

func (t *TeamService) WithEmitter(e events.Emitter) *TeamService {
	t.emitter = e
	return t
}
