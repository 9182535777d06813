package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type RecurringStatus string

const (
	RecurringStatusActive RecurringStatus = "ACTIVE"
	RecurringStatusPaused RecurringStatus = "PAUSED"
	// RecurringStatusDismissed marks a series the user deleted. Detection keeps
	// the row so the same series is not created again.
	RecurringStatusDismissed RecurringStatus = "DISMISSED"
)

type RecurringTransaction struct {
	ID               string               `json:"id"`
	Name             string               `json:"name"`
	Amount           decimal.Decimal      `json:"amount"`
	Currency         string               `json:"currency"`
	Frequency        TransactionFrequency `json:"frequency"`
	Status           RecurringStatus      `json:"status"`
	LastDate         time.Time            `json:"last_date"`
	NextDate         time.Time            `json:"next_date"`
	TransactionCount int                  `json:"transaction_count"`
	Transactions     []*Transaction       `json:"transactions,omitempty"`
}

type RecurringUpdate struct {
	Name      *string               `json:"name,omitempty" validate:"omitempty,min=1,max=128"`
	Status    *RecurringStatus      `json:"status,omitempty" validate:"omitempty,oneof=ACTIVE PAUSED"`
	Frequency *TransactionFrequency `json:"frequency,omitempty" validate:"omitempty,oneof=WEEKLY BIWEEKLY MONTHLY IRREGULAR"`
}
