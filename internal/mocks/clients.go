package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/yakoovad/finflow/internal/bank"
	"github.com/yakoovad/finflow/internal/events"
	"github.com/yakoovad/finflow/internal/notify"
)

// EmittedEvent records one Emit call on MockEmitter.
type EmittedEvent struct {
	Name    string
	Payload any
	Delay   time.Duration
}

// MockEmitter records emitted events. Set Err to make every Emit fail.
type MockEmitter struct {
	Emitted []EmittedEvent
	Err     error
}

func (m *MockEmitter) Emit(_ context.Context, name string, payload any, opts ...events.EmitOption) error {
	if m.Err != nil {
		return m.Err
	}
	m.Emitted = append(m.Emitted, EmittedEvent{Name: name, Payload: payload, Delay: events.DelayOf(opts...)})
	return nil
}

func (m *MockEmitter) Names() []string {
	names := make([]string, 0, len(m.Emitted))
	for _, e := range m.Emitted {
		names = append(names, e.Name)
	}
	return names
}

// MockInvalidator records the teams whose cached pages were dropped.
type MockInvalidator struct {
	Teams []string
	Err   error
}

func (m *MockInvalidator) Invalidate(_ context.Context, teamID string) error {
	if m.Err != nil {
		return m.Err
	}
	m.Teams = append(m.Teams, teamID)
	return nil
}

type MockProvider struct {
	mock.Mock
}

func (m *MockProvider) ItemStatus(ctx context.Context, accessToken string) error {
	args := m.Called(ctx, accessToken)
	return args.Error(0)
}

func (m *MockProvider) Accounts(ctx context.Context, accessToken string) ([]bank.Account, error) {
	args := m.Called(ctx, accessToken)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]bank.Account), args.Error(1)
}

func (m *MockProvider) Transactions(ctx context.Context, accessToken, accountID string, from, to time.Time) ([]bank.Transaction, error) {
	args := m.Called(ctx, accessToken, accountID, from, to)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]bank.Transaction), args.Error(1)
}

type MockSender struct {
	mock.Mock
}

func (m *MockSender) Send(ctx context.Context, email notify.Email) error {
	args := m.Called(ctx, email)
	return args.Error(0)
}
