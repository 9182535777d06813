package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type BankConnectionStatus string

const (
	BankConnectionStatusConnected      BankConnectionStatus = "CONNECTED"
	BankConnectionStatusRequiresReauth BankConnectionStatus = "REQUIRES_REAUTH"
	BankConnectionStatusError          BankConnectionStatus = "ERROR"
	BankConnectionStatusDisconnected   BankConnectionStatus = "DISCONNECTED"
)

type BankConnection struct {
	ID            string               `json:"id"`
	InstitutionID string               `json:"institution_id"`
	Name          string               `json:"name"`
	Provider      string               `json:"provider"`
	Status        BankConnectionStatus `json:"status"`
	ErrorMessage  string               `json:"error_message,omitempty"`
	LastSyncedAt  *time.Time           `json:"last_synced_at,omitempty"`
	Accounts      []*BankAccount       `json:"accounts"`
}

type BankAccount struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Currency string          `json:"currency"`
	Balance  decimal.Decimal `json:"balance"`
	Type     string          `json:"type,omitempty"`
	Enabled  bool            `json:"enabled"`
}
