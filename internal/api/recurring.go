package api

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/yakoovad/finflow/internal/model"
)

type listRecurringRequest struct {
	Status string `query:"status" validate:"omitempty,oneof=ACTIVE PAUSED"`
}

type updateRecurringRequest struct {
	ID string `json:"id" validate:"required,uuid"`
	model.RecurringUpdate
}

func (h *Handler) ListRecurring(e echo.Context) error {
	var req listRecurringRequest
	if err := h.decodeRequest(e, &req); err != nil {
		return transportError(e, err)
	}

	res, err := h.recurring.List(e.Request().Context(), identity(e).TeamID, model.RecurringStatus(req.Status))
	if err != nil {
		return transportError(e, err)
	}
	return e.JSON(http.StatusOK, res)
}

func (h *Handler) GetRecurring(e echo.Context) error {
	var req idQuery
	if err := h.decodeRequest(e, &req); err != nil {
		return transportError(e, err)
	}

	res, err := h.recurring.Get(e.Request().Context(), identity(e).TeamID, req.ID)
	if err != nil {
		return transportError(e, err)
	}
	return e.JSON(http.StatusOK, res)
}

func (h *Handler) UpdateRecurring(e echo.Context) error {
	var req updateRecurringRequest
	if err := h.decodeRequest(e, &req); err != nil {
		return transportError(e, err)
	}

	res, err := h.recurring.Update(e.Request().Context(), identity(e).TeamID, req.ID, &req.RecurringUpdate)
	if err != nil {
		return transportError(e, err)
	}
	return e.JSON(http.StatusOK, res)
}

func (h *Handler) DeleteRecurring(e echo.Context) error {
	var req idRequest
	if err := h.decodeRequest(e, &req); err != nil {
		return transportError(e, err)
	}

	if err := h.recurring.Delete(e.Request().Context(), identity(e).TeamID, req.ID); err != nil {
		return transportError(e, err)
	}
	return e.NoContent(http.StatusNoContent)
}
