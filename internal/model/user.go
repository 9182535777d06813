package model

type User struct {
	ID        string `json:"id"`
	FullName  string `json:"full_name"`
	Email     string `json:"email"`
	AvatarURL string `json:"avatar_url,omitempty"`
	TeamID    string `json:"team_id,omitempty"`
	Locale    string `json:"locale"`
}

type UserUpdate struct {
	FullName  *string `json:"full_name,omitempty" validate:"omitempty,min=1,max=128"`
	AvatarURL *string `json:"avatar_url,omitempty" validate:"omitempty,url"`
	Locale    *string `json:"locale,omitempty" validate:"omitempty,bcp47_language_tag"`
}
