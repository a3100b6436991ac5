package model

import "time"

type Account struct {
	ID           string
	Username     string
	Email        string
	PasswordHash string
	RefreshToken *string
	Confirmed    bool
	Avatar       *string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// AccountSummary is the public view of an Account. It never carries the
// password hash or the stored refresh token.
type AccountSummary struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	Avatar    *string   `json:"avatar"`
	Confirmed bool      `json:"confirmed"`
	CreatedAt time.Time `json:"created_at"`
}

func (a Account) Summary() AccountSummary {
	return AccountSummary{
		ID:        a.ID,
		Username:  a.Username,
		Email:     a.Email,
		Avatar:    a.Avatar,
		Confirmed: a.Confirmed,
		CreatedAt: a.CreatedAt,
	}
}

// HasRefreshToken reports whether token is the refresh token currently stored
// for the account.
func (a Account) HasRefreshToken(token string) bool {
	return a.RefreshToken != nil && *a.RefreshToken != "" && *a.RefreshToken == token
}

const TokenTypeBearer = "bearer"

type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
}

type SignupResult struct {
	User   AccountSummary `json:"user"`
	Detail string         `json:"detail"`
}

type MessageResult struct {
	Message string `json:"message"`
}
