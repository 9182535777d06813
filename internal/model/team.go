package model

import "time"

type TeamRole string

const (
	TeamRoleOwner  TeamRole = "OWNER"
	TeamRoleMember TeamRole = "MEMBER"
)

type Team struct {
	ID           string    `json:"id"`
	Name         string    `json:"name" validate:"required"`
	Slug         string    `json:"slug"`
	Email        string    `json:"email,omitempty"`
	LogoURL      string    `json:"logo_url,omitempty"`
	BaseCurrency string    `json:"base_currency"`
	CreatedAt    time.Time `json:"created_at"`
}

type TeamMember struct {
	UserID   string   `json:"user_id"`
	FullName string   `json:"full_name"`
	Email    string   `json:"email"`
	Role     TeamRole `json:"role"`
}

type Invite struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Role      TeamRole  `json:"role"`
	InvitedBy string    `json:"invited_by,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type TeamUpdate struct {
	Name         *string `json:"name,omitempty" validate:"omitempty,min=2,max=64"`
	Email        *string `json:"email,omitempty" validate:"omitempty,email"`
	BaseCurrency *string `json:"base_currency,omitempty" validate:"omitempty,iso4217"`
}

type InviteRequest struct {
	Email string   `json:"email" validate:"required,email"`
	Role  TeamRole `json:"role" validate:"required,oneof=OWNER MEMBER"`
}
