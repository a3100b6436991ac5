package model

import "time"

const (
	AuditActionSignup       = "signup"
	AuditActionLogin        = "login"
	AuditActionRefresh      = "refresh_token"
	AuditActionRefreshReuse = "refresh_token_reuse"
	AuditActionConfirmEmail = "confirm_email"
	AuditActionRequestEmail = "request_email"
	AuditActionLogout       = "logout"

	AuditStatusSuccess = "success"
	AuditStatusFailure = "failure"
)

// AuditActor describes who triggered an authentication event.
type AuditActor struct {
	IP string `json:"ip,omitempty"`
}

type AuditEntry struct {
	ID         int64     `json:"id"`
	Action     string    `json:"action"`
	AccountID  *string   `json:"account_id,omitempty"`
	Email      string    `json:"email,omitempty"`
	Status     string    `json:"status"`
	Detail     string    `json:"detail,omitempty"`
	ClientIP   string    `json:"client_ip,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

type AuditListData struct {
	Items []AuditEntry `json:"items"`
}
