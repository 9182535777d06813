package api_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"time"

	"github.com/labstack/echo/v4"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"

	"github.com/yakoovad/finflow/internal/api"
	"github.com/yakoovad/finflow/internal/auth"
	"github.com/yakoovad/finflow/internal/cache"
	"github.com/yakoovad/finflow/internal/events"
	"github.com/yakoovad/finflow/internal/mocks"
	"github.com/yakoovad/finflow/internal/model"
	"github.com/yakoovad/finflow/internal/repository"
	"github.com/yakoovad/finflow/internal/service"
)

const (
	userID = "8d0a6a43-53c4-4f5e-9d38-1e1f4f0f6c01"
	teamID = "4b7d4c35-1c4e-4d52-8d0e-6f5c8a9e2a10"
	txA    = "0f3c3c1e-6b1f-4f7e-9f7a-3a1c2b4d5e01"
	txB    = "0f3c3c1e-6b1f-4f7e-9f7a-3a1c2b4d5e02"
	connID = "a1b2c3d4-e5f6-4a7b-8c9d-0e1f2a3b4c5d"
	recID  = "c0ffee00-1234-4abc-8def-0123456789ab"
)

var _ = Describe("Handler", func() {
	var (
		e            *echo.Echo
		transactions *mocks.MockTransactionRepository
		teams        *mocks.MockTeamRepository
		users        *mocks.MockUserRepository
		invites      *mocks.MockInviteRepository
		recurring    *mocks.MockRecurringTransactionRepository
		connections  *mocks.MockBankConnectionRepository
		emitter      *mocks.MockEmitter
		token        string
	)

	do := func(method, target string, body any, bearer string) *httptest.ResponseRecorder {
		var buf bytes.Buffer
		if body != nil {
			Expect(json.NewEncoder(&buf).Encode(body)).To(Succeed())
		}
		req := httptest.NewRequest(method, target, &buf)
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		if bearer != "" {
			req.Header.Set(echo.HeaderAuthorization, "Bearer "+bearer)
		}
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		return rec
	}

	errorCode := func(rec *httptest.ResponseRecorder) service.ErrorCode {
		var resp struct {
			Error service.Error `json:"error"`
		}
		Expect(json.Unmarshal(rec.Body.Bytes(), &resp)).To(Succeed())
		return resp.Error.Code
	}

	BeforeEach(func() {
		auth.TokenSecretKey = "handler-test-secret"

		transactions = new(mocks.MockTransactionRepository)
		teams = new(mocks.MockTeamRepository)
		users = new(mocks.MockUserRepository)
		invites = new(mocks.MockInviteRepository)
		recurring = new(mocks.MockRecurringTransactionRepository)
		connections = new(mocks.MockBankConnectionRepository)
		emitter = &mocks.MockEmitter{}

		txCache := cache.NewTransactions(32, time.Minute)

		tx := new(mocks.MockTransactor)
		h := api.NewHandler(zap.NewNop()).
			WithHealthChecker(api.MustNewHealthChecker("test")).
			WithTransactionService(service.NewTransactionService(tx).WithTransactionRepo(transactions).WithCache(txCache)).
			WithTeamService(service.NewTeamService(tx).WithTeamRepo(teams).WithUserRepo(users).WithInviteRepo(invites).WithEmitter(emitter)).
			WithRecurringService(service.NewRecurringService(tx).WithRecurringRepo(recurring).WithTransactionRepo(transactions).WithCache(txCache)).
			WithBankService(service.NewBankService().WithConnectionRepo(connections).WithEmitter(emitter)).
			WithUserService(service.NewUserService().WithUserRepo(users)).
			WithClock(func() time.Time { return time.Date(2024, 6, 1, 9, 10, 0, 0, time.UTC) })

		e = echo.New()
		h.RegisterRoutes(e)

		var err error
		token, err = auth.GenerateToken(userID, teamID, time.Hour)
		Expect(err).NotTo(HaveOccurred())

		teams.On("GetMember", mock.Anything, teamID, userID).Return(&repository.Member{UserID: userID, Role: model.TeamRoleOwner}, nil).Maybe()
	})

	Describe("authentication", func() {
		It("serves health without a token", func() {
			rec := do(http.MethodGet, "/health", nil, "")
			Expect(rec.Code).To(Equal(http.StatusOK))
		})

		It("rejects a missing token", func() {
			rec := do(http.MethodGet, "/team/current", nil, "")
			Expect(rec.Code).To(Equal(http.StatusUnauthorized))
			Expect(errorCode(rec)).To(Equal(service.ErrorCodeUnauthorized))
		})

		It("rejects a forged token", func() {
			rec := do(http.MethodGet, "/team/current", nil, token+"x")
			Expect(rec.Code).To(Equal(http.StatusUnauthorized))
		})

		It("requires a team for team scoped routes", func() {
			teamless, err := auth.GenerateToken(userID, "", time.Hour)
			Expect(err).NotTo(HaveOccurred())

			rec := do(http.MethodGet, "/team/current", nil, teamless)
			Expect(rec.Code).To(Equal(http.StatusForbidden))
			Expect(errorCode(rec)).To(Equal(service.ErrorCodeNoTeam))

			users.On("Get", mock.Anything, userID).Return(&repository.User{ID: userID, FullName: "Ada"}, nil)
			rec = do(http.MethodGet, "/user/me", nil, teamless)
			Expect(rec.Code).To(Equal(http.StatusOK))
		})

		It("rejects a token for a team the user does not belong to", func() {
			other := "5c5c5c5c-1111-4222-8333-444455556666"
			teams.On("GetMember", mock.Anything, other, userID).Return(nil, repository.ErrNotFound)
			foreign, err := auth.GenerateToken(userID, other, time.Hour)
			Expect(err).NotTo(HaveOccurred())

			rec := do(http.MethodGet, "/transactions/list", nil, foreign)
			Expect(rec.Code).To(Equal(http.StatusForbidden))
			Expect(errorCode(rec)).To(Equal(service.ErrorCodeNoTeam))
			transactions.AssertNotCalled(GinkgoT(), "List", mock.Anything, mock.Anything, mock.Anything)
		})

		It("fails closed when the membership lookup errors", func() {
			other := "5c5c5c5c-1111-4222-8333-444455556667"
			teams.On("GetMember", mock.Anything, other, userID).Return(nil, errors.New("db down"))
			foreign, err := auth.GenerateToken(userID, other, time.Hour)
			Expect(err).NotTo(HaveOccurred())

			rec := do(http.MethodGet, "/team/current", nil, foreign)
			Expect(rec.Code).To(Equal(http.StatusInternalServerError))
		})
	})

	Describe("transactions", func() {
		rows := func() []*repository.Transaction {
			return []*repository.Transaction{
				{ID: txA, TeamID: teamID, Name: "Uber", Status: model.TransactionStatusPosted, Category: model.CategoryUncategorized},
				{ID: txB, TeamID: teamID, Name: "AWS", Status: model.TransactionStatusPosted, Category: model.CategorySoftware},
			}
		}

		It("lists with the filter taken from the query", func() {
			transactions.On("List", mock.Anything, teamID, mock.MatchedBy(func(f model.TransactionFilter) bool {
				return f.Status == model.TransactionStatusPosted && f.Search == "uber" &&
					f.From != nil && f.From.Format(time.DateOnly) == "2024-05-01" &&
					f.Recurring != nil && !*f.Recurring && f.PageSize == 21
			})).Return(rows(), nil).Once()

			rec := do(http.MethodGet, "/transactions/list?status=POSTED&search=uber&from=2024-05-01&recurring=false&page_size=20", nil, token)

			Expect(rec.Code).To(Equal(http.StatusOK))
			var page model.TransactionPage
			Expect(json.Unmarshal(rec.Body.Bytes(), &page)).To(Succeed())
			Expect(page.Data).To(HaveLen(2))
			Expect(page.NextCursor).To(BeNil())
		})

		It("rejects an unknown status", func() {
			rec := do(http.MethodGet, "/transactions/list?status=LOST", nil, token)
			Expect(rec.Code).To(Equal(http.StatusBadRequest))
			Expect(errorCode(rec)).To(Equal(service.ErrorCodeInvalidBody))
		})

		It("rejects an unknown category on update", func() {
			rec := do(http.MethodPost, "/transactions/update", map[string]any{"id": txA, "category": "GROCERIES"}, token)
			Expect(rec.Code).To(Equal(http.StatusBadRequest))
			transactions.AssertNotCalled(GinkgoT(), "Patch", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		})

		It("reflects an update in the cached list", func() {
			transactions.On("List", mock.Anything, teamID, mock.Anything).Return(rows(), nil).Once()
			Expect(do(http.MethodGet, "/transactions/list", nil, token).Code).To(Equal(http.StatusOK))

			stored := rows()[0]
			stored.Category = model.CategoryTravel
			transactions.On("Patch", mock.Anything, teamID, []string{txA}, mock.Anything).Return([]*repository.Transaction{stored}, nil).Once()

			rec := do(http.MethodPost, "/transactions/update", map[string]any{"id": txA, "category": "TRAVEL"}, token)
			Expect(rec.Code).To(Equal(http.StatusOK))

			rec = do(http.MethodGet, "/transactions/list", nil, token)
			var page model.TransactionPage
			Expect(json.Unmarshal(rec.Body.Bytes(), &page)).To(Succeed())
			Expect(page.Data[0].Category).To(Equal(model.CategoryTravel))
			transactions.AssertNumberOfCalls(GinkgoT(), "List", 1)
		})

		It("reverts the cached list when the update fails", func() {
			transactions.On("List", mock.Anything, teamID, mock.Anything).Return(rows(), nil).Once()
			Expect(do(http.MethodGet, "/transactions/list", nil, token).Code).To(Equal(http.StatusOK))

			transactions.On("Patch", mock.Anything, teamID, []string{txA, txB}, mock.Anything).Return(nil, errors.New("db down")).Once()

			rec := do(http.MethodPost, "/transactions/updateMany", map[string]any{"ids": []string{txA, txB}, "category": "TRAVEL"}, token)
			Expect(rec.Code).To(Equal(http.StatusInternalServerError))

			rec = do(http.MethodGet, "/transactions/list", nil, token)
			var page model.TransactionPage
			Expect(json.Unmarshal(rec.Body.Bytes(), &page)).To(Succeed())
			Expect(page.Data[0].Category).To(Equal(model.CategoryUncategorized))
			Expect(page.Data[1].Category).To(Equal(model.CategorySoftware))
		})

		It("creates a manual transaction from a date-only body", func() {
			transactions.On("Create", mock.Anything, mock.MatchedBy(func(r *repository.Transaction) bool {
				return r.Manual && r.Date.Equal(time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC))
			})).Run(func(args mock.Arguments) {
				args.Get(1).(*repository.Transaction).ID = txA
			}).Return(nil).Once()

			rec := do(http.MethodPost, "/transactions/create", map[string]any{
				"name": "Cash lunch", "amount": "-12.00", "currency": "USD", "date": "2024-05-01",
			}, token)

			Expect(rec.Code).To(Equal(http.StatusCreated))
			var created model.Transaction
			Expect(json.Unmarshal(rec.Body.Bytes(), &created)).To(Succeed())
			Expect(created.ID).To(Equal(txA))
			Expect(created.Date.Format(time.DateOnly)).To(Equal("2024-05-01"))
		})

		It("rejects a malformed date", func() {
			rec := do(http.MethodPost, "/transactions/create", map[string]any{
				"name": "Cash lunch", "amount": "-12.00", "currency": "USD", "date": "01/05/2024",
			}, token)

			Expect(rec.Code).To(Equal(http.StatusBadRequest))
			transactions.AssertNotCalled(GinkgoT(), "Create", mock.Anything, mock.Anything)
		})

		It("returns 404 for a transaction of another team", func() {
			transactions.On("Get", mock.Anything, teamID, txA).Return(nil, repository.ErrNotFound)

			rec := do(http.MethodGet, "/transactions/get?id="+txA, nil, token)
			Expect(rec.Code).To(Equal(http.StatusNotFound))
		})
	})

	Describe("team", func() {
		It("refuses to let the last owner leave", func() {
			teams.On("CountOwners", mock.Anything, teamID).Return(1, nil)

			rec := do(http.MethodPost, "/team/leave", nil, token)
			Expect(rec.Code).To(Equal(http.StatusConflict))
			Expect(errorCode(rec)).To(Equal(service.ErrorCodeLastOwner))
		})

		It("validates invite emails", func() {
			rec := do(http.MethodPost, "/team/invite", map[string]any{
				"invites": []map[string]string{{"email": "not-an-email", "role": "MEMBER"}},
			}, token)
			Expect(rec.Code).To(Equal(http.StatusBadRequest))
		})

		It("issues a token for the joined team", func() {
			joined := "7e57e57e-0000-4000-8000-000000000001"
			invites.On("GetByCode", mock.Anything, "abc123").Return(&repository.Invite{ID: "inv", TeamID: joined, Email: "ada@acme.io", Role: model.TeamRoleMember}, nil)
			users.On("Get", mock.Anything, userID).Return(&repository.User{ID: userID, Email: "ada@acme.io"}, nil)
			teams.On("GetMember", mock.Anything, joined, userID).Return(nil, repository.ErrNotFound)
			teams.On("AddMember", mock.Anything, joined, userID, model.TeamRoleMember).Return(nil)
			invites.On("Delete", mock.Anything, joined, "inv").Return(nil)
			users.On("SetTeam", mock.Anything, userID, joined).Return(nil)
			teams.On("Get", mock.Anything, joined).Return(&repository.Team{ID: joined, Name: "Beta"}, nil)

			rec := do(http.MethodPost, "/team/acceptInvite", map[string]string{"code": "abc123"}, token)
			Expect(rec.Code).To(Equal(http.StatusOK))

			var resp struct {
				Team  model.Team `json:"team"`
				Token string     `json:"token"`
			}
			Expect(json.Unmarshal(rec.Body.Bytes(), &resp)).To(Succeed())
			claims, err := auth.VerifyToken(resp.Token)
			Expect(err).NotTo(HaveOccurred())
			Expect(claims.TeamID).To(Equal(joined))
		})
	})

	Describe("recurring transactions", func() {
		It("deletes a series", func() {
			transactions.On("ClearRecurring", mock.Anything, teamID, recID).Return(nil)
			recurring.On("Delete", mock.Anything, teamID, recID).Return(nil)

			rec := do(http.MethodPost, "/recurringTransactions/delete", map[string]string{"id": recID}, token)
			Expect(rec.Code).To(Equal(http.StatusNoContent))
		})

		It("rejects an unknown status filter", func() {
			rec := do(http.MethodGet, "/recurringTransactions/list?status=GONE", nil, token)
			Expect(rec.Code).To(Equal(http.StatusBadRequest))
		})
	})

	Describe("bank connections", func() {
		It("queues a manual sync", func() {
			connections.On("Get", mock.Anything, connID).Return(&repository.BankConnection{ID: connID, TeamID: teamID}, nil)

			rec := do(http.MethodPost, "/bankConnections/sync", map[string]string{"connection_id": connID}, token)
			Expect(rec.Code).To(Equal(http.StatusAccepted))
			Expect(emitter.Names()).To(Equal([]string{events.SyncConnection}))
		})
	})

	Describe("jobs", func() {
		It("lists schedules with their next run", func() {
			rec := do(http.MethodGet, "/jobs/schedules", nil, token)
			Expect(rec.Code).To(Equal(http.StatusOK))

			var runs []struct {
				Name string    `json:"name"`
				Cron string    `json:"cron"`
				Next time.Time `json:"next"`
			}
			Expect(json.Unmarshal(rec.Body.Bytes(), &runs)).To(Succeed())
			Expect(runs).To(HaveLen(3))
			Expect(runs[2].Name).To(Equal("transaction-categorizer"))
			Expect(runs[2].Next).To(BeTemporally("==", time.Date(2024, 6, 1, 9, 30, 0, 0, time.UTC)))
		})
	})
})
