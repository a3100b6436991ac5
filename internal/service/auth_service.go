package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"go-contacts-api/internal/auth"
	"go-contacts-api/internal/model"
	"go-contacts-api/pkg/apierror"
)

const (
	signupNotice        = "User successfully created. Check your email for confirmation."
	confirmationNotice  = "Check your email for confirmation."
	emailConfirmed      = "Email confirmed"
	emailAlreadyConfirm = "Your email is already confirmed"
	loggedOut           = "Successfully logged out"

	confirmationPath = "/api/auth/confirmed_email/"
)

type accountStore interface {
	FindByEmail(ctx context.Context, email string) (model.Account, error)
	Create(ctx context.Context, account model.Account) (model.Account, error)
	SetRefreshToken(ctx context.Context, accountID string, token *string) error
	ReplaceRefreshToken(ctx context.Context, accountID string, current string, next string) (bool, error)
	MarkConfirmed(ctx context.Context, email string) (bool, error)
}

type passwordHasher interface {
	Hash(plaintext string) (string, error)
	Verify(plaintext string, digest string) bool
}

type tokenIssuer interface {
	IssueAccess(subject string) (string, error)
	IssueRefresh(subject string) (string, error)
	IssueVerification(subject string) (string, error)
	Decode(token string, expectedScope auth.Scope) (string, error)
}

type confirmationMailer interface {
	SendConfirmationEmail(address string, displayName string, link string)
}

type auditRecorder interface {
	Record(ctx context.Context, entry model.AuditEntry)
	ListForAccount(ctx context.Context, accountID string, limit int, offset int) ([]model.AuditEntry, model.Meta, error)
}

// AuthService drives the account lifecycle: signup, email confirmation,
// login and refresh-token rotation.
type AuthService struct {
	accounts accountStore
	hasher   passwordHasher
	tokens   tokenIssuer
	mailer   confirmationMailer
	audit    auditRecorder
	baseURL  string
	log      *slog.Logger
}

func NewAuthService(accounts accountStore, hasher passwordHasher, tokens tokenIssuer, mailer confirmationMailer, audit auditRecorder, baseURL string) *AuthService {
	return &AuthService{
		accounts: accounts,
		hasher:   hasher,
		tokens:   tokens,
		mailer:   mailer,
		audit:    audit,
		baseURL:  strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		log:      slog.With("component", "auth"),
	}
}

func (s *AuthService) Signup(ctx context.Context, request model.SignupRequest, actor model.AuditActor) (model.SignupResult, error) {
	request.Username = strings.TrimSpace(request.Username)
	request.Email = strings.TrimSpace(request.Email)

	if err := validateStruct(request); err != nil {
		return model.SignupResult{}, err
	}

	if _, err := s.accounts.FindByEmail(ctx, request.Email); err == nil {
		s.record(ctx, model.AuditActionSignup, model.AuditStatusFailure, nil, request.Email, actor, "account exists")
		return model.SignupResult{}, apierror.Conflict("Account already exists", "")
	} else if !errors.Is(err, model.ErrAccountNotFound) {
		return model.SignupResult{}, fmt.Errorf("signup: %w", err)
	}

	digest, err := s.hasher.Hash(request.Password)
	if err != nil {
		return model.SignupResult{}, err
	}

	account, err := s.accounts.Create(ctx, model.Account{
		Username:     request.Username,
		Email:        request.Email,
		PasswordHash: digest,
	})
	if errors.Is(err, model.ErrAccountExists) {
		s.record(ctx, model.AuditActionSignup, model.AuditStatusFailure, nil, request.Email, actor, "account exists")
		return model.SignupResult{}, apierror.Conflict("Account already exists", "")
	}
	if err != nil {
		return model.SignupResult{}, fmt.Errorf("signup: %w", err)
	}

	s.sendConfirmation(account)
	s.record(ctx, model.AuditActionSignup, model.AuditStatusSuccess, &account, account.Email, actor, "")

	return model.SignupResult{User: account.Summary(), Detail: signupNotice}, nil
}

// Login checks, in order: the account exists, its email is confirmed, the
// password matches. The new refresh token replaces any stored one.
func (s *AuthService) Login(ctx context.Context, request model.LoginRequest, actor model.AuditActor) (model.TokenPair, error) {
	email := strings.TrimSpace(request.Email)

	account, err := s.accounts.FindByEmail(ctx, email)
	if errors.Is(err, model.ErrAccountNotFound) {
		s.record(ctx, model.AuditActionLogin, model.AuditStatusFailure, nil, email, actor, "invalid email")
		return model.TokenPair{}, apierror.Unauthorized("invalid email")
	}
	if err != nil {
		return model.TokenPair{}, fmt.Errorf("login: %w", err)
	}

	if !account.Confirmed {
		s.record(ctx, model.AuditActionLogin, model.AuditStatusFailure, &account, email, actor, "email not confirmed")
		return model.TokenPair{}, apierror.Unauthorized("email not confirmed")
	}

	if !s.hasher.Verify(request.Password, account.PasswordHash) {
		s.record(ctx, model.AuditActionLogin, model.AuditStatusFailure, &account, email, actor, "invalid password")
		return model.TokenPair{}, apierror.Unauthorized("invalid password")
	}

	pair, err := s.issuePair(account.Email)
	if err != nil {
		return model.TokenPair{}, err
	}

	if err := s.accounts.SetRefreshToken(ctx, account.ID, &pair.RefreshToken); err != nil {
		return model.TokenPair{}, fmt.Errorf("login: %w", err)
	}

	s.record(ctx, model.AuditActionLogin, model.AuditStatusSuccess, &account, email, actor, "")
	return pair, nil
}

// Refresh rotates the refresh token. Presenting a validly signed token that is
// no longer the stored one is treated as reuse: the stored token is cleared,
// which ends every session of the account.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string, actor model.AuditActor) (model.TokenPair, error) {
	email, err := s.tokens.Decode(refreshToken, auth.ScopeRefresh)
	if err != nil {
		s.record(ctx, model.AuditActionRefresh, model.AuditStatusFailure, nil, "", actor, err.Error())
		return model.TokenPair{}, tokenFailure(err)
	}

	account, err := s.accounts.FindByEmail(ctx, email)
	if errors.Is(err, model.ErrAccountNotFound) {
		s.record(ctx, model.AuditActionRefresh, model.AuditStatusFailure, nil, email, actor, "unknown subject")
		return model.TokenPair{}, apierror.Unauthorized("could not validate credentials")
	}
	if err != nil {
		return model.TokenPair{}, fmt.Errorf("refresh token: %w", err)
	}

	if !account.HasRefreshToken(refreshToken) {
		s.revokeSessions(ctx, account, actor, "stored refresh token mismatch")
		return model.TokenPair{}, apierror.Unauthorized("invalid refresh token")
	}

	pair, err := s.issuePair(account.Email)
	if err != nil {
		return model.TokenPair{}, err
	}

	rotated, err := s.accounts.ReplaceRefreshToken(ctx, account.ID, refreshToken, pair.RefreshToken)
	if err != nil {
		return model.TokenPair{}, fmt.Errorf("refresh token: %w", err)
	}
	if !rotated {
		s.revokeSessions(ctx, account, actor, "refresh token rotated concurrently")
		return model.TokenPair{}, apierror.Unauthorized("invalid refresh token")
	}

	s.record(ctx, model.AuditActionRefresh, model.AuditStatusSuccess, &account, account.Email, actor, "")
	return pair, nil
}

func (s *AuthService) revokeSessions(ctx context.Context, account model.Account, actor model.AuditActor, reason string) {
	if err := s.accounts.SetRefreshToken(ctx, account.ID, nil); err != nil {
		s.log.Error("clear refresh token", "account_id", account.ID, "error", err)
	}

	s.log.Warn("refresh token reuse detected", "account_id", account.ID, "ip", actor.IP, "reason", reason)
	s.record(ctx, model.AuditActionRefreshReuse, model.AuditStatusFailure, &account, account.Email, actor, reason)
}

// ConfirmEmail is idempotent: confirming twice reports the account as already
// confirmed and changes nothing.
func (s *AuthService) ConfirmEmail(ctx context.Context, token string, actor model.AuditActor) (model.MessageResult, error) {
	email, err := s.tokens.Decode(token, auth.ScopeEmailVerification)
	if err != nil {
		s.record(ctx, model.AuditActionConfirmEmail, model.AuditStatusFailure, nil, "", actor, err.Error())
		return model.MessageResult{}, apierror.BadRequest("verification error", "")
	}

	account, err := s.accounts.FindByEmail(ctx, email)
	if errors.Is(err, model.ErrAccountNotFound) {
		s.record(ctx, model.AuditActionConfirmEmail, model.AuditStatusFailure, nil, email, actor, "unknown subject")
		return model.MessageResult{}, apierror.BadRequest("verification error", "")
	}
	if err != nil {
		return model.MessageResult{}, fmt.Errorf("confirm email: %w", err)
	}

	if account.Confirmed {
		return model.MessageResult{Message: emailAlreadyConfirm}, nil
	}

	changed, err := s.accounts.MarkConfirmed(ctx, email)
	if err != nil {
		return model.MessageResult{}, fmt.Errorf("confirm email: %w", err)
	}
	if !changed {
		return model.MessageResult{Message: emailAlreadyConfirm}, nil
	}

	s.record(ctx, model.AuditActionConfirmEmail, model.AuditStatusSuccess, &account, email, actor, "")
	return model.MessageResult{Message: emailConfirmed}, nil
}

// RequestEmail sends a fresh confirmation link. Unknown addresses get the same
// answer as pending ones.
func (s *AuthService) RequestEmail(ctx context.Context, request model.RequestEmail, actor model.AuditActor) (model.MessageResult, error) {
	request.Email = strings.TrimSpace(request.Email)
	if err := validateStruct(request); err != nil {
		return model.MessageResult{}, err
	}

	account, err := s.accounts.FindByEmail(ctx, request.Email)
	if errors.Is(err, model.ErrAccountNotFound) {
		s.record(ctx, model.AuditActionRequestEmail, model.AuditStatusFailure, nil, request.Email, actor, "unknown email")
		return model.MessageResult{Message: confirmationNotice}, nil
	}
	if err != nil {
		return model.MessageResult{}, fmt.Errorf("request email: %w", err)
	}

	if account.Confirmed {
		return model.MessageResult{Message: emailAlreadyConfirm}, nil
	}

	s.sendConfirmation(account)
	s.record(ctx, model.AuditActionRequestEmail, model.AuditStatusSuccess, &account, account.Email, actor, "")
	return model.MessageResult{Message: confirmationNotice}, nil
}

func (s *AuthService) Logout(ctx context.Context, account model.Account, actor model.AuditActor) (model.MessageResult, error) {
	if err := s.accounts.SetRefreshToken(ctx, account.ID, nil); err != nil {
		return model.MessageResult{}, fmt.Errorf("logout: %w", err)
	}

	s.record(ctx, model.AuditActionLogout, model.AuditStatusSuccess, &account, account.Email, actor, "")
	return model.MessageResult{Message: loggedOut}, nil
}

// CurrentAccount resolves a bearer access token to its account.
func (s *AuthService) CurrentAccount(ctx context.Context, accessToken string) (model.Account, error) {
	email, err := s.tokens.Decode(accessToken, auth.ScopeAccess)
	if err != nil {
		return model.Account{}, tokenFailure(err)
	}

	account, err := s.accounts.FindByEmail(ctx, email)
	if errors.Is(err, model.ErrAccountNotFound) {
		return model.Account{}, apierror.Unauthorized("could not validate credentials")
	}
	if err != nil {
		return model.Account{}, fmt.Errorf("resolve current account: %w", err)
	}

	return account, nil
}

// Activity lists the caller's audit entries. Without an audit trail the list
// is empty.
func (s *AuthService) Activity(ctx context.Context, account model.Account, limit int, offset int) ([]model.AuditEntry, model.Meta, error) {
	if s.audit == nil {
		return []model.AuditEntry{}, model.Meta{Limit: limit, Offset: offset}, nil
	}
	return s.audit.ListForAccount(ctx, account.ID, limit, offset)
}

func (s *AuthService) issuePair(subject string) (model.TokenPair, error) {
	access, err := s.tokens.IssueAccess(subject)
	if err != nil {
		return model.TokenPair{}, err
	}

	refresh, err := s.tokens.IssueRefresh(subject)
	if err != nil {
		return model.TokenPair{}, err
	}

	return model.TokenPair{AccessToken: access, RefreshToken: refresh, TokenType: model.TokenTypeBearer}, nil
}

func (s *AuthService) sendConfirmation(account model.Account) {
	token, err := s.tokens.IssueVerification(account.Email)
	if err != nil {
		s.log.Error("issue verification token", "account_id", account.ID, "error", err)
		return
	}

	s.mailer.SendConfirmationEmail(account.Email, account.Username, s.baseURL+confirmationPath+token)
}

func (s *AuthService) record(ctx context.Context, action string, status string, account *model.Account, email string, actor model.AuditActor, detail string) {
	if s.audit == nil {
		return
	}

	entry := model.AuditEntry{
		Action:   action,
		Email:    email,
		Status:   status,
		Detail:   detail,
		ClientIP: actor.IP,
	}
	if account != nil {
		id := account.ID
		entry.AccountID = &id
	}

	s.audit.Record(ctx, entry)
}

func tokenFailure(err error) error {
	if errors.Is(err, auth.ErrExpiredToken) {
		return apierror.Unauthorized("token expired")
	}
	return apierror.Unauthorized("could not validate credentials")
}
