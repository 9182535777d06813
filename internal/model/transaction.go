package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type TransactionStatus string

const (
	TransactionStatusPosted    TransactionStatus = "POSTED"
	TransactionStatusPending   TransactionStatus = "PENDING"
	TransactionStatusExcluded  TransactionStatus = "EXCLUDED"
	TransactionStatusCompleted TransactionStatus = "COMPLETED"
	TransactionStatusArchived  TransactionStatus = "ARCHIVED"
)

type TransactionCategory string

const (
	CategoryIncome               TransactionCategory = "INCOME"
	CategoryTravel               TransactionCategory = "TRAVEL"
	CategoryOfficeSupplies       TransactionCategory = "OFFICE_SUPPLIES"
	CategoryMeals                TransactionCategory = "MEALS"
	CategorySoftware             TransactionCategory = "SOFTWARE"
	CategoryRent                 TransactionCategory = "RENT"
	CategoryEquipment            TransactionCategory = "EQUIPMENT"
	CategoryInternetAndTelephone TransactionCategory = "INTERNET_AND_TELEPHONE"
	CategoryFacilitiesExpenses   TransactionCategory = "FACILITIES_EXPENSES"
	CategoryActivity             TransactionCategory = "ACTIVITY"
	CategoryTransfer             TransactionCategory = "TRANSFER"
	CategoryTaxes                TransactionCategory = "TAXES"
	CategorySalary               TransactionCategory = "SALARY"
	CategoryOther                TransactionCategory = "OTHER"
	CategoryUncategorized        TransactionCategory = "UNCATEGORIZED"
)

type TransactionFrequency string

const (
	FrequencyWeekly    TransactionFrequency = "WEEKLY"
	FrequencyBiweekly  TransactionFrequency = "BIWEEKLY"
	FrequencyMonthly   TransactionFrequency = "MONTHLY"
	FrequencyIrregular TransactionFrequency = "IRREGULAR"
)

type Transaction struct {
	ID            string                `json:"id"`
	BankAccountID string                `json:"bank_account_id,omitempty"`
	Name          string                `json:"name"`
	Description   string                `json:"description,omitempty"`
	MerchantName  string                `json:"merchant_name,omitempty"`
	Amount        decimal.Decimal       `json:"amount"`
	Currency      string                `json:"currency"`
	Date          time.Time             `json:"date"`
	Status        TransactionStatus     `json:"status"`
	Category      TransactionCategory   `json:"category"`
	CategorySlug  string                `json:"category_slug,omitempty"`
	Method        string                `json:"method"`
	Note          string                `json:"note,omitempty"`
	TagID         string                `json:"tag_id,omitempty"`
	AssignedID    string                `json:"assigned_id,omitempty"`
	Recurring     bool                  `json:"recurring"`
	Frequency     *TransactionFrequency `json:"frequency,omitempty"`
	RecurringID   string                `json:"recurring_id,omitempty"`
	Manual        bool                  `json:"manual"`
}

// TransactionFilter drives transactions/list.
type TransactionFilter struct {
	From      *time.Time
	To        *time.Time
	Status    TransactionStatus
	Category  TransactionCategory
	Search    string
	Recurring *bool
	Cursor    int
	PageSize  int
}

type TransactionPage struct {
	Data       []*Transaction `json:"data"`
	NextCursor *int           `json:"next_cursor,omitempty"`
}

// TransactionPatch holds the mutable fields of a transaction; nil means unchanged.
type TransactionPatch struct {
	Category     *TransactionCategory `json:"category,omitempty" validate:"omitempty,transaction_category"`
	CategorySlug *string              `json:"category_slug,omitempty"`
	Status       *TransactionStatus   `json:"status,omitempty" validate:"omitempty,transaction_status"`
	Note         *string              `json:"note,omitempty"`
	AssignedID   *string              `json:"assigned_id,omitempty"`
	TagID        *string              `json:"tag_id,omitempty"`
}

// Apply writes the non-nil fields of p onto t.
func (p TransactionPatch) Apply(t *Transaction) {
	if p.Category != nil {
		t.Category = *p.Category
	}
	if p.CategorySlug != nil {
		t.CategorySlug = *p.CategorySlug
	}
	if p.Status != nil {
		t.Status = *p.Status
	}
	if p.Note != nil {
		t.Note = *p.Note
	}
	if p.AssignedID != nil {
		t.AssignedID = *p.AssignedID
	}
	if p.TagID != nil {
		t.TagID = *p.TagID
	}
}

func (p TransactionPatch) IsEmpty() bool {
	return p.Category == nil && p.CategorySlug == nil && p.Status == nil &&
		p.Note == nil && p.AssignedID == nil && p.TagID == nil
}

func ValidCategory(c TransactionCategory) bool {
	switch c {
	case CategoryIncome, CategoryTravel, CategoryOfficeSupplies, CategoryMeals, CategorySoftware,
		CategoryRent, CategoryEquipment, CategoryInternetAndTelephone, CategoryFacilitiesExpenses,
		CategoryActivity, CategoryTransfer, CategoryTaxes, CategorySalary, CategoryOther,
		CategoryUncategorized:
		return true
	}
	return false
}

func ValidStatus(s TransactionStatus) bool {
	switch s {
	case TransactionStatusPosted, TransactionStatusPending, TransactionStatusExcluded,
		TransactionStatusCompleted, TransactionStatusArchived:
		return true
	}
	return false
}

// TransactionCreate is a manually entered transaction.
type TransactionCreate struct {
	BankAccountID string               `json:"bank_account_id,omitempty" validate:"omitempty,uuid"`
	Name          string               `json:"name" validate:"required,max=256"`
	Description   string               `json:"description,omitempty"`
	Amount        decimal.Decimal      `json:"amount"`
	Currency      string               `json:"currency" validate:"required,iso4217"`
	Date          Date                 `json:"date"`
	Category      *TransactionCategory `json:"category,omitempty" validate:"omitempty,transaction_category"`
	Method        string               `json:"method,omitempty"`
}
