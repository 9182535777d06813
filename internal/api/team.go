package api

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/yakoovad/finflow/internal/auth"
	"github.com/yakoovad/finflow/internal/model"
	"github.com/yakoovad/finflow/internal/service"
	"github.com/yakoovad/finflow/pkg/logger"
	"go.uber.org/zap"
)

type memberRequest struct {
	UserID string         `json:"user_id" validate:"required,uuid"`
	Role   model.TeamRole `json:"role" validate:"omitempty,oneof=OWNER MEMBER"`
}

type inviteRequest struct {
	Invites []*model.InviteRequest `json:"invites" validate:"required,min=1,max=50,dive"`
}

type idRequest struct {
	ID string `json:"id" validate:"required,uuid"`
}

type acceptInviteRequest struct {
	Code string `json:"code" validate:"required,alphanum,max=64"`
}

type acceptInviteResponse struct {
	Team  *model.Team `json:"team"`
	Token string      `json:"token"`
}

func (h *Handler) CurrentTeam(e echo.Context) error {
	team, err := h.team.Current(e.Request().Context(), identity(e).TeamID)
	if err != nil {
		return transportError(e, err)
	}
	return e.JSON(http.StatusOK, team)
}

func (h *Handler) UpdateTeam(e echo.Context) error {
	var req model.TeamUpdate
	if err := h.decodeRequest(e, &req); err != nil {
		return transportError(e, err)
	}

	team, err := h.team.Update(e.Request().Context(), identity(e).TeamID, &req)
	if err != nil {
		return transportError(e, err)
	}
	return e.JSON(http.StatusOK, team)
}

func (h *Handler) TeamMembers(e echo.Context) error {
	members, err := h.team.Members(e.Request().Context(), identity(e).TeamID)
	if err != nil {
		return transportError(e, err)
	}
	return e.JSON(http.StatusOK, members)
}

func (h *Handler) UpdateMember(e echo.Context) error {
	var req memberRequest
	if err := h.decodeRequest(e, &req); err != nil {
		return transportError(e, err)
	}
	if req.Role == "" {
		return transportError(e, service.NewError(service.ErrorCodeInvalidBody, "role is required"))
	}

	id := identity(e)
	if err := h.team.UpdateMember(e.Request().Context(), id.TeamID, id.UserID, req.UserID, req.Role); err != nil {
		return transportError(e, err)
	}
	return e.NoContent(http.StatusNoContent)
}

func (h *Handler) DeleteMember(e echo.Context) error {
	var req memberRequest
	if err := h.decodeRequest(e, &req); err != nil {
		return transportError(e, err)
	}

	id := identity(e)
	if err := h.team.DeleteMember(e.Request().Context(), id.TeamID, id.UserID, req.UserID); err != nil {
		return transportError(e, err)
	}
	return e.NoContent(http.StatusNoContent)
}

func (h *Handler) LeaveTeam(e echo.Context) error {
	id := identity(e)
	if err := h.team.Leave(e.Request().Context(), id.TeamID, id.UserID); err != nil {
		return transportError(e, err)
	}
	return e.NoContent(http.StatusNoContent)
}

func (h *Handler) Invite(e echo.Context) error {
	l := logger.FromContext(e.Request().Context())

	var req inviteRequest
	if err := h.decodeRequest(e, &req); err != nil {
		l.Warn("invalid request", zap.Any("error", err))
		return transportError(e, err)
	}

	id := identity(e)
	invites, err := h.team.Invite(e.Request().Context(), id.TeamID, id.UserID, req.Invites)
	if err != nil {
		return transportError(e, err)
	}
	return e.JSON(http.StatusCreated, invites)
}

func (h *Handler) Invites(e echo.Context) error {
	invites, err := h.team.Invites(e.Request().Context(), identity(e).TeamID)
	if err != nil {
		return transportError(e, err)
	}
	return e.JSON(http.StatusOK, invites)
}

func (h *Handler) DeleteInvite(e echo.Context) error {
	var req idRequest
	if err := h.decodeRequest(e, &req); err != nil {
		return transportError(e, err)
	}

	if err := h.team.DeleteInvite(e.Request().Context(), identity(e).TeamID, req.ID); err != nil {
		return transportError(e, err)
	}
	return e.NoContent(http.StatusNoContent)
}

// AcceptInvite answers with a fresh token scoped to the joined team.
func (h *Handler) AcceptInvite(e echo.Context) error {
	l := logger.FromContext(e.Request().Context())

	var req acceptInviteRequest
	if err := h.decodeRequest(e, &req); err != nil {
		return transportError(e, err)
	}

	userID := identity(e).UserID
	team, serr := h.team.AcceptInvite(e.Request().Context(), userID, req.Code)
	if serr != nil {
		return transportError(e, serr)
	}

	token, err := auth.GenerateToken(userID, team.ID, auth.DefaultTTL)
	if err != nil {
		l.Error("failed to issue token", zap.Error(err))
		return transportError(e, service.NewError(service.ErrorCodeUnspecified, "failed to issue token"))
	}

	return e.JSON(http.StatusOK, acceptInviteResponse{Team: team, Token: token})
}
