package events

import (
	"encoding/json"
	"strconv"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/yakoovad/finflow/internal/bank"
)

const (
	CheckConnectionHealth    = "check-connection-health"
	BankSyncScheduler        = "bank-sync-scheduler"
	InitialSetup             = "initial-setup"
	SyncConnection           = "sync-connection"
	SyncAccount              = "sync-account"
	UpsertTransactions       = "upsert-transactions"
	CategorizeTransactions   = "categorize-transactions"
	TransactionsNotification = "transactions-notification"
	SendEmail                = "send-email"
)

// Event is one message on the bus.
type Event struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Payload   json.RawMessage `json:"payload"`
	Attempt   int             `json:"attempt"`
	LastError string          `json:"last_error,omitempty"`

	// StreamID is the redis entry id; empty until the event is read back.
	StreamID string `json:"-"`
}

// Decode unmarshals the payload into v.
func (e Event) Decode(v any) error {
	if len(e.Payload) == 0 {
		return nil
	}
	return errors.Wrapf(json.Unmarshal(e.Payload, v), "decoding %s payload", e.Name)
}

func (e Event) values() map[string]any {
	values := map[string]any{
		"id":      e.ID,
		"name":    e.Name,
		"payload": string(e.Payload),
		"attempt": e.Attempt,
	}
	if e.LastError != "" {
		values["last_error"] = e.LastError
	}
	return values
}

func parseMessage(msg redis.XMessage) (Event, error) {
	ev := Event{StreamID: msg.ID, Attempt: 1}

	name, ok := msg.Values["name"].(string)
	if !ok || name == "" {
		return Event{}, errors.New("missing name")
	}
	ev.Name = name

	if v, ok := msg.Values["id"].(string); ok {
		ev.ID = v
	}
	if v, ok := msg.Values["payload"].(string); ok && v != "" {
		ev.Payload = json.RawMessage(v)
	}
	if v, ok := msg.Values["last_error"].(string); ok {
		ev.LastError = v
	}
	if v, ok := msg.Values["attempt"].(string); ok && v != "" {
		attempt, err := strconv.Atoi(v)
		if err != nil {
			return Event{}, errors.Wrap(err, "parsing attempt")
		}
		if attempt > 0 {
			ev.Attempt = attempt
		}
	}

	return ev, nil
}

type InitialSetupPayload struct {
	TeamID       string `json:"team_id"`
	ConnectionID string `json:"connection_id"`
}

type SyncConnectionPayload struct {
	ConnectionID string `json:"connection_id"`
	ManualSync   bool   `json:"manual_sync"`
}

type SyncAccountPayload struct {
	AccountID  string `json:"account_id"`
	ManualSync bool   `json:"manual_sync"`
}

type UpsertTransactionsPayload struct {
	TeamID        string             `json:"team_id"`
	BankAccountID string             `json:"bank_account_id"`
	Transactions  []bank.Transaction `json:"transactions"`
}

type TransactionsNotificationPayload struct {
	TeamID         string   `json:"team_id"`
	TransactionIDs []string `json:"transaction_ids"`
}

type SendEmailPayload struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	HTML    string `json:"html"`
}
