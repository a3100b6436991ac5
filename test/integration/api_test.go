//go:build integration

package integration

import (
	"net/http"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-contacts-api/internal/model"
)

func TestAuthLifecycle(t *testing.T) {
	server := newTestServer(t, newTestDB(t))

	status, env := server.call(t, http.MethodPost, "/api/auth/signup", model.SignupRequest{Username: "ann", Email: "ann@example.com", Password: "secret123"}, "")
	require.Equal(t, http.StatusCreated, status)
	assert.False(t, decode[model.SignupResult](t, env).User.Confirmed)

	status, env = server.call(t, http.MethodPost, "/api/auth/login", model.LoginRequest{Email: "ann@example.com", Password: "secret123"}, "")
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "email not confirmed", env.Error.Message)

	confirmPath := server.links.path(t, "ann@example.com")
	status, env = server.call(t, http.MethodGet, confirmPath, nil, "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Email confirmed", decode[model.MessageResult](t, env).Message)

	status, env = server.call(t, http.MethodGet, confirmPath, nil, "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Your email is already confirmed", decode[model.MessageResult](t, env).Message)

	status, env = server.call(t, http.MethodPost, "/api/auth/login", model.LoginRequest{Email: "ann@example.com", Password: "secret123"}, "")
	require.Equal(t, http.StatusOK, status)
	pair := decode[model.TokenPair](t, env)

	status, env = server.call(t, http.MethodGet, "/api/auth/refresh_token", nil, pair.RefreshToken)
	require.Equal(t, http.StatusOK, status)
	rotated := decode[model.TokenPair](t, env)

	status, _ = server.call(t, http.MethodGet, "/api/auth/refresh_token", nil, pair.RefreshToken)
	assert.Equal(t, http.StatusUnauthorized, status)
	status, _ = server.call(t, http.MethodGet, "/api/auth/refresh_token", nil, rotated.RefreshToken)
	assert.Equal(t, http.StatusUnauthorized, status)

	status, env = server.call(t, http.MethodGet, "/api/auth/activity", nil, rotated.AccessToken)
	require.Equal(t, http.StatusOK, status)
	items := decode[model.AuditListData](t, env).Items
	require.NotEmpty(t, items)
	assert.Equal(t, model.AuditActionRefreshReuse, items[0].Action)

	status, _ = server.call(t, http.MethodGet, "/api/healthchecker", nil, "")
	assert.Equal(t, http.StatusOK, status)
}

func TestContactsAreOwnerScoped(t *testing.T) {
	server := newTestServer(t, newTestDB(t))
	ann := server.register(t, "ann@example.com")
	eve := server.register(t, "eve@example.com")

	status, env := server.call(t, http.MethodPost, "/api/contacts", model.ContactInput{FirstName: "Bob", LastName: "Ray", Email: "bob@example.com"}, ann.AccessToken)
	require.Equal(t, http.StatusCreated, status)
	contact := decode[model.Contact](t, env)
	path := "/api/contacts/" + strconv.FormatInt(contact.ID, 10)

	status, _ = server.call(t, http.MethodGet, path, nil, eve.AccessToken)
	assert.Equal(t, http.StatusNotFound, status)
	status, _ = server.call(t, http.MethodPut, path, model.ContactInput{FirstName: "X", LastName: "Y", Email: "x@example.com"}, eve.AccessToken)
	assert.Equal(t, http.StatusNotFound, status)
	status, _ = server.call(t, http.MethodDelete, path, nil, eve.AccessToken)
	assert.Equal(t, http.StatusNotFound, status)

	status, env = server.call(t, http.MethodGet, "/api/contacts", nil, eve.AccessToken)
	require.Equal(t, http.StatusOK, status)
	assert.Zero(t, env.Meta.Total)

	status, env = server.call(t, http.MethodGet, "/api/contacts/search?query=bob", nil, ann.AccessToken)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, decode[model.ContactListData](t, env).Contacts, 1)

	status, _ = server.call(t, http.MethodDelete, path, nil, ann.AccessToken)
	assert.Equal(t, http.StatusNoContent, status)
	status, _ = server.call(t, http.MethodGet, path, nil, ann.AccessToken)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestLoginWithLongestAcceptedEmail(t *testing.T) {
	server := newTestServer(t, newTestDB(t))

	email := strings.Repeat("a", 63) + "@" +
		strings.Repeat("b", 60) + "." + strings.Repeat("c", 60) + "." + strings.Repeat("d", 60) + ".com"
	require.Len(t, email, 250)

	pair := server.register(t, email)
	assert.Greater(t, len(pair.RefreshToken), 512)

	status, env := server.call(t, http.MethodGet, "/api/auth/refresh_token", nil, pair.RefreshToken)
	require.Equal(t, http.StatusOK, status)
	assert.NotEmpty(t, decode[model.TokenPair](t, env).RefreshToken)
}
