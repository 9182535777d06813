package service

import (
	"context"

	"github.com/pkg/errors"
	"github.com/yakoovad/finflow/internal/events"
	"github.com/yakoovad/finflow/internal/model"
	"github.com/yakoovad/finflow/internal/repository"
	"github.com/yakoovad/finflow/pkg/logger"
	"go.uber.org/zap"
)

type BankService struct {
	connections repository.BankConnectionRepository
	accounts    repository.BankAccountRepository
	emitter     events.Emitter
}

func NewBankService() *BankService {
	return &BankService{}
}

// Connections lists the team's bank connections with their accounts.
func (s *BankService) Connections(ctx context.Context, teamID string) ([]*model.BankConnection, *Error) {
	l := logger.FromContext(ctx).With(zap.String("team_id", teamID))

	conns, err := s.connections.ListByTeam(ctx, teamID)
	if err != nil {
		l.Error("failed to list bank connections", zap.Error(err))
		return nil, NewError(ErrorCodeUnspecified, "failed to list bank connections")
	}

	accounts, err := s.accounts.ListByTeam(ctx, teamID)
	if err != nil {
		l.Error("failed to list bank accounts", zap.Error(err))
		return nil, NewError(ErrorCodeUnspecified, "failed to list bank connections")
	}

	byConn := make(map[string][]*model.BankAccount)
	for _, a := range accounts {
		byConn[a.BankConnectionID] = append(byConn[a.BankConnectionID], &model.BankAccount{
			ID:       a.ID,
			Name:     a.Name,
			Currency: a.Currency,
			Balance:  a.Balance,
			Type:     a.Type,
			Enabled:  a.Enabled,
		})
	}

	res := make([]*model.BankConnection, 0, len(conns))
	for _, c := range conns {
		accs := byConn[c.ID]
		if accs == nil {
			accs = []*model.BankAccount{}
		}
		res = append(res, &model.BankConnection{
			ID:            c.ID,
			InstitutionID: c.InstitutionID,
			Name:          c.Name,
			Provider:      c.Provider,
			Status:        c.Status,
			ErrorMessage:  c.ErrorMessage,
			LastSyncedAt:  c.LastSyncedAt,
			Accounts:      accs,
		})
	}
	return res, nil
}

// Sync queues a manual sync of one connection.
func (s *BankService) Sync(ctx context.Context, teamID, connectionID string) *Error {
	l := logger.FromContext(ctx).With(zap.String("connection_id", connectionID))

	conn, err := s.connections.Get(ctx, connectionID)
	if errors.Is(err, repository.ErrNotFound) || (err == nil && conn.TeamID != teamID) {
		return NewError(ErrorCodeNotFound, "bank connection not found")
	}
	if err != nil {
		l.Error("failed to get bank connection", zap.Error(err))
		return NewError(ErrorCodeUnspecified, "failed to sync bank connection")
	}

	if err = s.emitter.Emit(ctx, events.SyncConnection, events.SyncConnectionPayload{
		ConnectionID: conn.ID,
		ManualSync:   true,
	}); err != nil {
		l.Error("failed to emit sync", zap.Error(err))
		return NewError(ErrorCodeUnspecified, "failed to sync bank connection")
	}

	l.Info("manual sync queued")
	return nil
}

func (s *BankService) WithConnectionRepo(r repository.BankConnectionRepository) *BankService {
	s.connections = r
	return s
}

func (s *BankService) WithAccountRepo(r repository.BankAccountRepository) *BankService {
	s.accounts = r
	return s
}

func (s *BankService) WithEmitter(e events.Emitter) *BankService {
	s.emitter = e
	return s
}
