package api

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/yakoovad/finflow/internal/model"
)

type syncConnectionRequest struct {
	ConnectionID string `json:"connection_id" validate:"required,uuid"`
}

func (h *Handler) ListBankConnections(e echo.Context) error {
	conns, err := h.bank.Connections(e.Request().Context(), identity(e).TeamID)
	if err != nil {
		return transportError(e, err)
	}
	return e.JSON(http.StatusOK, conns)
}

func (h *Handler) SyncBankConnection(e echo.Context) error {
	var req syncConnectionRequest
	if err := h.decodeRequest(e, &req); err != nil {
		return transportError(e, err)
	}

	if err := h.bank.Sync(e.Request().Context(), identity(e).TeamID, req.ConnectionID); err != nil {
		return transportError(e, err)
	}
	return e.NoContent(http.StatusAccepted)
}

func (h *Handler) ListNotifications(e echo.Context) error {
	id := identity(e)
	res, err := h.notifications.List(e.Request().Context(), id.TeamID, id.UserID)
	if err != nil {
		return transportError(e, err)
	}
	return e.JSON(http.StatusOK, res)
}

func (h *Handler) MarkNotificationsRead(e echo.Context) error {
	var req idsRequest
	if err := h.decodeRequest(e, &req); err != nil {
		return transportError(e, err)
	}

	id := identity(e)
	n, err := h.notifications.MarkRead(e.Request().Context(), id.TeamID, id.UserID, req.IDs)
	if err != nil {
		return transportError(e, err)
	}
	return e.JSON(http.StatusOK, map[string]int64{"updated": n})
}

func (h *Handler) Me(e echo.Context) error {
	user, err := h.user.Me(e.Request().Context(), identity(e).UserID)
	if err != nil {
		return transportError(e, err)
	}
	return e.JSON(http.StatusOK, user)
}

func (h *Handler) UpdateUser(e echo.Context) error {
	var req model.UserUpdate
	if err := h.decodeRequest(e, &req); err != nil {
		return transportError(e, err)
	}

	user, err := h.user.Update(e.Request().Context(), identity(e).UserID, &req)
	if err != nil {
		return transportError(e, err)
	}
	return e.JSON(http.StatusOK, user)
}
