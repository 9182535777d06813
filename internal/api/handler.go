package api

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/yakoovad/finflow/internal/jobs"
	"github.com/yakoovad/finflow/internal/service"
	"github.com/yakoovad/finflow/pkg/logger"
	"go.uber.org/zap"
)

type Handler struct {
	transactions  *service.TransactionService
	team          *service.TeamService
	recurring     *service.RecurringService
	bank          *service.BankService
	notifications *service.NotificationService
	user          *service.UserService

	schedules     []jobs.Schedule
	healthChecker HealthChecker

	now    func() time.Time
	logger *zap.Logger
}

func NewHandler(logger *zap.Logger) *Handler {
	return &Handler{
		schedules: jobs.DefaultSchedules,
		now:       time.Now,
		logger:    logger,
	}
}

func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.Validator = NewValidator()
	e.Use(middleware.RequestID())
	e.Use(ZapLoggerMiddleware(h.logger))
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	e.GET("/health", h.healthChecker.HealthCheck())

	authed := e.Group("", AuthMiddleware())

	authed.GET("/user/me", h.Me)
	authed.POST("/user/update", h.UpdateUser)
	authed.POST("/team/acceptInvite", h.AcceptInvite)
	authed.GET("/jobs/schedules", h.Schedules)

	team := authed.Group("", RequireTeam(h.team))

	team.GET("/transactions/list", h.ListTransactions)
	team.GET("/transactions/get", h.GetTransaction)
	team.POST("/transactions/update", h.UpdateTransaction)
	team.POST("/transactions/updateMany", h.UpdateTransactions)
	team.POST("/transactions/create", h.CreateTransaction)
	team.POST("/transactions/deleteMany", h.DeleteTransactions)

	team.GET("/team/current", h.CurrentTeam)
	team.POST("/team/update", h.UpdateTeam)
	team.GET("/team/members", h.TeamMembers)
	team.POST("/team/updateMember", h.UpdateMember)
	team.POST("/team/deleteMember", h.DeleteMember)
	team.POST("/team/leave", h.LeaveTeam)
	team.POST("/team/invite", h.Invite)
	team.GET("/team/invites", h.Invites)
	team.POST("/team/deleteInvite", h.DeleteInvite)

	team.GET("/recurringTransactions/list", h.ListRecurring)
	team.GET("/recurringTransactions/get", h.GetRecurring)
	team.POST("/recurringTransactions/update", h.UpdateRecurring)
	team.POST("/recurringTransactions/delete", h.DeleteRecurring)

	team.GET("/bankConnections/list", h.ListBankConnections)
	team.POST("/bankConnections/sync", h.SyncBankConnection)

	team.GET("/notifications/list", h.ListNotifications)
	team.POST("/notifications/markRead", h.MarkNotificationsRead)
}

// Schedules lists every cron job with its next fire time.
func (h *Handler) Schedules(e echo.Context) error {
	runs, err := jobs.Upcoming(h.schedules, h.now())
	if err != nil {
		logger.FromContext(e.Request().Context()).Error("failed to compute schedules", zap.Error(err))
		return transportError(e, service.NewError(service.ErrorCodeUnspecified, "failed to compute schedules"))
	}
	return e.JSON(http.StatusOK, runs)
}

func (h *Handler) decodeRequest(e echo.Context, req any) *service.Error {
	if err := ProcessRequest(e, &req, bindStep, validateStep); err != nil {
		return service.NewError(service.ErrorCodeInvalidBody, err.Error())
	}
	return nil
}

func transportError(e echo.Context, err *service.Error) error {
	response := struct {
		Error *service.Error `json:"error"`
	}{Error: err}

	switch err.Code {
	case service.ErrorCodeNotFound:
		return e.JSON(http.StatusNotFound, response)
	case service.ErrorCodeInvalidBody:
		return e.JSON(http.StatusBadRequest, response)
	case service.ErrorCodeUnauthorized:
		return e.JSON(http.StatusUnauthorized, response)
	case service.ErrorCodeForbidden, service.ErrorCodeNoTeam:
		return e.JSON(http.StatusForbidden, response)
	case service.ErrorCodeAlreadyExists, service.ErrorCodeLastOwner:
		return e.JSON(http.StatusConflict, response)
	default:
		return e.JSON(http.StatusInternalServerError, response)
	}
}

func (h *Handler) WithHealthChecker(c HealthChecker) *Handler {
	h.healthChecker = c
	return h
}

func (h *Handler) WithTransactionService(s *service.TransactionService) *Handler {
	h.transactions = s
	return h
}

func (h *Handler) WithTeamService(s *service.TeamService) *Handler {
	h.team = s
	return h
}

func (h *Handler) WithRecurringService(s *service.RecurringService) *Handler {
	h.recurring = s
	return h
}

func (h *Handler) WithBankService(s *service.BankService) *Handler {
	h.bank = s
	return h
}

func (h *Handler) WithNotificationService(s *service.NotificationService) *Handler {
	h.notifications = s
	return h
}

func (h *Handler) WithUserService(s *service.UserService) *Handler {
	h.user = s
	return h
}

func (h *Handler) WithSchedules(s []jobs.Schedule) *Handler {
	h.schedules = s
	return h
}

func (h *Handler) WithClock(now func() time.Time) *Handler {
	h.now = now
	return h
}
