package model

import "time"

type NotificationType string

const (
	NotificationTypeTransactions NotificationType = "transactions"
	NotificationTypeInvite       NotificationType = "invite"
)

type Notification struct {
	ID        string           `json:"id"`
	Type      NotificationType `json:"type"`
	Title     string           `json:"title"`
	Body      string           `json:"body"`
	ReadAt    *time.Time       `json:"read_at,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
}
