package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/yakoovad/finflow/internal/model"
	"github.com/yakoovad/finflow/pkg/logger"
	"go.uber.org/zap"
)

type listTransactionsRequest struct {
	From      string `query:"from" validate:"omitempty,datetime=2006-01-02"`
	To        string `query:"to" validate:"omitempty,datetime=2006-01-02"`
	Status    string `query:"status" validate:"omitempty,transaction_status"`
	Category  string `query:"category" validate:"omitempty,transaction_category"`
	Search    string `query:"search" validate:"omitempty,max=128"`
	Recurring string `query:"recurring" validate:"omitempty,boolean"`
	Cursor    int    `query:"cursor" validate:"gte=0"`
	PageSize  int    `query:"page_size" validate:"gte=0,lte=500"`
}

func (r *listTransactionsRequest) filter() model.TransactionFilter {
	f := model.TransactionFilter{
		Status:   model.TransactionStatus(r.Status),
		Category: model.TransactionCategory(r.Category),
		Search:   r.Search,
		Cursor:   r.Cursor,
		PageSize: r.PageSize,
	}
	// formats were checked by the validator
	if t, err := time.Parse(time.DateOnly, r.From); err == nil {
		f.From = &t
	}
	if t, err := time.Parse(time.DateOnly, r.To); err == nil {
		f.To = &t
	}
	if b, err := strconv.ParseBool(r.Recurring); err == nil {
		f.Recurring = &b
	}
	return f
}

type idQuery struct {
	ID string `query:"id" validate:"required,uuid"`
}

type updateTransactionRequest struct {
	ID string `json:"id" validate:"required,uuid"`
	model.TransactionPatch
}

type updateTransactionsRequest struct {
	IDs []string `json:"ids" validate:"required,min=1,max=500,dive,uuid"`
	model.TransactionPatch
}

type idsRequest struct {
	IDs []string `json:"ids" validate:"required,min=1,max=500,dive,uuid"`
}

func (h *Handler) ListTransactions(e echo.Context) error {
	var req listTransactionsRequest
	if err := h.decodeRequest(e, &req); err != nil {
		return transportError(e, err)
	}

	page, err := h.transactions.List(e.Request().Context(), identity(e).TeamID, req.filter())
	if err != nil {
		return transportError(e, err)
	}

	return e.JSON(http.StatusOK, page)
}

func (h *Handler) GetTransaction(e echo.Context) error {
	var req idQuery
	if err := h.decodeRequest(e, &req); err != nil {
		return transportError(e, err)
	}

	t, err := h.transactions.Get(e.Request().Context(), identity(e).TeamID, req.ID)
	if err != nil {
		return transportError(e, err)
	}

	return e.JSON(http.StatusOK, t)
}

func (h *Handler) UpdateTransaction(e echo.Context) error {
	l := logger.FromContext(e.Request().Context())

	var req updateTransactionRequest
	if err := h.decodeRequest(e, &req); err != nil {
		l.Warn("invalid request", zap.Any("error", err))
		return transportError(e, err)
	}

	l.Info("updating transaction", zap.String("transaction_id", req.ID))

	t, err := h.transactions.Update(e.Request().Context(), identity(e).TeamID, req.ID, req.TransactionPatch)
	if err != nil {
		return transportError(e, err)
	}

	return e.JSON(http.StatusOK, t)
}

func (h *Handler) UpdateTransactions(e echo.Context) error {
	l := logger.FromContext(e.Request().Context())

	var req updateTransactionsRequest
	if err := h.decodeRequest(e, &req); err != nil {
		l.Warn("invalid request", zap.Any("error", err))
		return transportError(e, err)
	}

	l.Info("updating transactions", zap.Int("count", len(req.IDs)))

	ts, err := h.transactions.UpdateMany(e.Request().Context(), identity(e).TeamID, req.IDs, req.TransactionPatch)
	if err != nil {
		return transportError(e, err)
	}

	return e.JSON(http.StatusOK, ts)
}

func (h *Handler) CreateTransaction(e echo.Context) error {
	l := logger.FromContext(e.Request().Context())

	var req model.TransactionCreate
	if err := h.decodeRequest(e, &req); err != nil {
		l.Warn("invalid request", zap.Any("error", err))
		return transportError(e, err)
	}

	t, err := h.transactions.Create(e.Request().Context(), identity(e).TeamID, &req)
	if err != nil {
		return transportError(e, err)
	}

	return e.JSON(http.StatusCreated, t)
}

func (h *Handler) DeleteTransactions(e echo.Context) error {
	var req idsRequest
	if err := h.decodeRequest(e, &req); err != nil {
		return transportError(e, err)
	}

	n, err := h.transactions.DeleteMany(e.Request().Context(), identity(e).TeamID, req.IDs)
	if err != nil {
		return transportError(e, err)
	}

	return e.JSON(http.StatusOK, map[string]int64{"deleted": n})
}
