//go:build integration

package integration

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-contacts-api/internal/model"
	"go-contacts-api/internal/repository"
)

func TestAccountRepository(t *testing.T) {
	db := newTestDB(t)
	repo := repository.NewAccountRepository(db.Pool)
	ctx := context.Background()

	created, err := repo.Create(ctx, model.Account{Username: "ann", Email: "ann@example.com", PasswordHash: "digest"})
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.False(t, created.Confirmed)

	_, err = repo.Create(ctx, model.Account{Username: "dup", Email: "ann@example.com", PasswordHash: "digest"})
	assert.ErrorIs(t, err, model.ErrAccountExists)

	byID, err := repo.FindByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "ann@example.com", byID.Email)

	_, err = repo.FindByID(ctx, "not-a-uuid")
	assert.ErrorIs(t, err, model.ErrAccountNotFound)
	_, err = repo.FindByEmail(ctx, "ghost@example.com")
	assert.ErrorIs(t, err, model.ErrAccountNotFound)

	changed, err := repo.MarkConfirmed(ctx, "ann@example.com")
	require.NoError(t, err)
	assert.True(t, changed)
	changed, err = repo.MarkConfirmed(ctx, "ann@example.com")
	require.NoError(t, err)
	assert.False(t, changed)

	first := "refresh-1"
	require.NoError(t, repo.SetRefreshToken(ctx, created.ID, &first))

	rotated, err := repo.ReplaceRefreshToken(ctx, created.ID, "refresh-1", "refresh-2")
	require.NoError(t, err)
	assert.True(t, rotated)

	rotated, err = repo.ReplaceRefreshToken(ctx, created.ID, "refresh-1", "refresh-3")
	require.NoError(t, err)
	assert.False(t, rotated)

	stored, err := repo.FindByEmail(ctx, "ann@example.com")
	require.NoError(t, err)
	assert.True(t, stored.HasRefreshToken("refresh-2"))

	require.NoError(t, repo.SetRefreshToken(ctx, created.ID, nil))
	stored, err = repo.FindByEmail(ctx, "ann@example.com")
	require.NoError(t, err)
	assert.Nil(t, stored.RefreshToken)
}

func TestContactRepository(t *testing.T) {
	db := newTestDB(t)
	accounts := repository.NewAccountRepository(db.Pool)
	repo := repository.NewContactRepository(db.Pool)
	ctx := context.Background()

	owner, err := accounts.Create(ctx, model.Account{Username: "ann", Email: "ann@example.com", PasswordHash: "x"})
	require.NoError(t, err)
	stranger, err := accounts.Create(ctx, model.Account{Username: "eve", Email: "eve@example.com", PasswordHash: "x"})
	require.NoError(t, err)

	birthday := model.NewDate(1990, time.March, 14)
	created, err := repo.Create(ctx, model.Contact{FirstName: "Bob", LastName: "Ray", Email: "bob@example.com", Birthday: &birthday, OwnerID: owner.ID})
	require.NoError(t, err)
	require.NotNil(t, created.Birthday)
	assert.Equal(t, "1990-03-14", created.Birthday.String())

	_, err = repo.Create(ctx, model.Contact{FirstName: "100%", LastName: "Pure_", Email: "pure@example.com", OwnerID: owner.ID})
	require.NoError(t, err)

	_, err = repo.FindByID(ctx, stranger.ID, created.ID)
	assert.ErrorIs(t, err, model.ErrContactNotFound)

	created.FirstName = "Robert"
	created.OwnerID = stranger.ID
	_, err = repo.Update(ctx, created)
	assert.ErrorIs(t, err, model.ErrContactNotFound)

	created.OwnerID = owner.ID
	updated, err := repo.Update(ctx, created)
	require.NoError(t, err)
	assert.Equal(t, "Robert", updated.FirstName)

	list, total, err := repo.List(ctx, owner.ID, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Len(t, list, 2)

	found, err := repo.Search(ctx, owner.ID, "%")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "100%", found[0].FirstName)

	found, err = repo.Search(ctx, owner.ID, "ROB")
	require.NoError(t, err)
	require.Len(t, found, 1)

	byBirthday, err := repo.ListByBirthdayKeys(ctx, owner.ID, []string{"03-14", "03-15"})
	require.NoError(t, err)
	require.Len(t, byBirthday, 1)
	assert.Equal(t, updated.ID, byBirthday[0].ID)

	_, err = repo.Delete(ctx, stranger.ID, created.ID)
	assert.ErrorIs(t, err, model.ErrContactNotFound)
	_, err = repo.Delete(ctx, owner.ID, created.ID)
	require.NoError(t, err)
	_, err = repo.FindByID(ctx, owner.ID, created.ID)
	assert.ErrorIs(t, err, model.ErrContactNotFound)
}

func TestAuditRepository(t *testing.T) {
	db := newTestDB(t)
	accounts := repository.NewAccountRepository(db.Pool)
	repo := repository.NewAuditRepository(db.Pool)
	ctx := context.Background()

	account, err := accounts.Create(ctx, model.Account{Username: "ann", Email: "ann@example.com", PasswordHash: "x"})
	require.NoError(t, err)

	for _, action := range []string{model.AuditActionSignup, model.AuditActionLogin, model.AuditActionLogout} {
		require.NoError(t, repo.Log(ctx, model.AuditEntry{
			Action:    action,
			AccountID: &account.ID,
			Email:     account.Email,
			Status:    model.AuditStatusSuccess,
			ClientIP:  "203.0.113.1",
		}))
	}
	require.NoError(t, repo.Log(ctx, model.AuditEntry{Action: model.AuditActionLogin, Email: "ghost@example.com", Status: model.AuditStatusFailure}))

	entries, meta, err := repo.ListByAccount(ctx, account.ID, 2, 0)
	require.NoError(t, err)
	assert.Equal(t, 3, meta.Total)
	require.Len(t, entries, 2)
	assert.Equal(t, model.AuditActionLogout, entries[0].Action)
	assert.Equal(t, model.AuditActionLogin, entries[1].Action)
}
