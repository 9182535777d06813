package bank

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type Account struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Currency string          `json:"currency"`
	Type     string          `json:"type"`
	Balance  decimal.Decimal `json:"balance"`
}

// Transaction is a provider transaction. Amount is negative for money leaving the account.
type Transaction struct {
	InternalID   string          `json:"internal_id"`
	AccountID    string          `json:"account_id"`
	Name         string          `json:"name"`
	MerchantName string          `json:"merchant_name,omitempty"`
	Amount       decimal.Decimal `json:"amount"`
	Currency     string          `json:"currency"`
	Date         time.Time       `json:"date"`
	Pending      bool            `json:"pending"`
	Method       string          `json:"method"`
}

// Provider is the bank aggregator used to check and sync connections.
type Provider interface {
	// ItemStatus returns a *ProviderError when the aggregator reports a problem with the item.
	ItemStatus(ctx context.Context, accessToken string) error
	Accounts(ctx context.Context, accessToken string) ([]Account, error)
	Transactions(ctx context.Context, accessToken, accountID string, from, to time.Time) ([]Transaction, error)
}

type ProviderError struct {
	Code    string
	Message string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}
