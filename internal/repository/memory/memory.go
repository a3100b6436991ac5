// Package memory holds map-backed stores with the same observable behaviour as
// the PostgreSQL repositories. Tests use them in place of a database.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"go-contacts-api/internal/model"
)

type AccountStore struct {
	mu       sync.RWMutex
	byID     map[string]model.Account
	byEmail  map[string]string
	Writes   int
	Confirms int
}

func NewAccountStore() *AccountStore {
	return &AccountStore{
		byID:    map[string]model.Account{},
		byEmail: map[string]string{},
	}
}

func (s *AccountStore) FindByEmail(_ context.Context, email string) (model.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byEmail[strings.TrimSpace(email)]
	if !ok {
		return model.Account{}, model.ErrAccountNotFound
	}
	return s.byID[id], nil
}

func (s *AccountStore) FindByID(_ context.Context, id string) (model.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.byID[id]
	if !ok {
		return model.Account{}, model.ErrAccountNotFound
	}
	return a, nil
}

func (s *AccountStore) Create(_ context.Context, a model.Account) (model.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byEmail[a.Email]; exists {
		return model.Account{}, model.ErrAccountExists
	}

	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	a.Confirmed = false
	a.RefreshToken = nil
	a.CreatedAt = now
	a.UpdatedAt = now

	s.byID[a.ID] = a
	s.byEmail[a.Email] = a.ID
	s.Writes++
	return a, nil
}

func (s *AccountStore) SetRefreshToken(_ context.Context, accountID string, token *string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.byID[accountID]
	if !ok {
		return model.ErrAccountNotFound
	}
	if token != nil {
		copied := *token
		token = &copied
	}
	a.RefreshToken = token
	a.UpdatedAt = time.Now().UTC()
	s.byID[accountID] = a
	s.Writes++
	return nil
}

func (s *AccountStore) ReplaceRefreshToken(_ context.Context, accountID string, current string, next string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.byID[accountID]
	if !ok || !a.HasRefreshToken(current) {
		return false, nil
	}
	a.RefreshToken = &next
	a.UpdatedAt = time.Now().UTC()
	s.byID[accountID] = a
	s.Writes++
	return true, nil
}

func (s *AccountStore) MarkConfirmed(_ context.Context, email string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.byEmail[strings.TrimSpace(email)]
	if !ok {
		return false, nil
	}
	a := s.byID[id]
	if a.Confirmed {
		return false, nil
	}
	a.Confirmed = true
	a.UpdatedAt = time.Now().UTC()
	s.byID[id] = a
	s.Writes++
	s.Confirms++
	return true, nil
}

// Count reports how many accounts are stored.
func (s *AccountStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}

type ContactStore struct {
	mu     sync.RWMutex
	nextID int64
	rows   map[int64]model.Contact
	// FailCreate makes Create return this error, standing in for a rejected insert.
	FailCreate error
}

func NewContactStore() *ContactStore {
	return &ContactStore{rows: map[int64]model.Contact{}}
}

func (s *ContactStore) owned(ownerID string) []model.Contact {
	out := make([]model.Contact, 0)
	for _, c := range s.rows {
		if c.OwnerID == ownerID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *ContactStore) List(_ context.Context, ownerID string, limit int, offset int) ([]model.Contact, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := s.owned(ownerID)
	total := len(all)
	if offset > total {
		offset = total
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return append([]model.Contact(nil), all[offset:end]...), total, nil
}

func (s *ContactStore) FindByID(_ context.Context, ownerID string, id int64) (model.Contact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.rows[id]
	if !ok || c.OwnerID != ownerID {
		return model.Contact{}, model.ErrContactNotFound
	}
	return c, nil
}

func (s *ContactStore) Create(_ context.Context, c model.Contact) (model.Contact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.FailCreate != nil {
		return model.Contact{}, s.FailCreate
	}

	s.nextID++
	now := time.Now().UTC()
	c.ID = s.nextID
	c.CreatedAt = now
	c.UpdatedAt = now
	s.rows[c.ID] = c
	return c, nil
}

func (s *ContactStore) Update(_ context.Context, c model.Contact) (model.Contact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.rows[c.ID]
	if !ok || existing.OwnerID != c.OwnerID {
		return model.Contact{}, model.ErrContactNotFound
	}
	c.CreatedAt = existing.CreatedAt
	c.UpdatedAt = time.Now().UTC()
	s.rows[c.ID] = c
	return c, nil
}

func (s *ContactStore) Delete(_ context.Context, ownerID string, id int64) (model.Contact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.rows[id]
	if !ok || c.OwnerID != ownerID {
		return model.Contact{}, model.ErrContactNotFound
	}
	delete(s.rows, id)
	return c, nil
}

func (s *ContactStore) Search(_ context.Context, ownerID string, query string) ([]model.Contact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	needle := strings.ToLower(strings.TrimSpace(query))
	out := make([]model.Contact, 0)
	for _, c := range s.owned(ownerID) {
		if strings.Contains(strings.ToLower(c.FirstName), needle) ||
			strings.Contains(strings.ToLower(c.LastName), needle) ||
			strings.Contains(strings.ToLower(c.Email), needle) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *ContactStore) ListByBirthdayKeys(_ context.Context, ownerID string, keys []string) ([]model.Contact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	wanted := make(map[string]struct{}, len(keys))
	for _, key := range keys {
		wanted[key] = struct{}{}
	}

	out := make([]model.Contact, 0)
	for _, c := range s.owned(ownerID) {
		if c.Birthday == nil {
			continue
		}
		if _, ok := wanted[c.Birthday.Format("01-02")]; ok {
			out = append(out, c)
		}
	}
	return out, nil
}

type AuditStore struct {
	mu      sync.RWMutex
	nextID  int64
	entries []model.AuditEntry
}

func NewAuditStore() *AuditStore {
	return &AuditStore{}
}

func (s *AuditStore) Log(_ context.Context, entry model.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	entry.ID = s.nextID
	if entry.OccurredAt.IsZero() {
		entry.OccurredAt = time.Now().UTC()
	}
	s.entries = append(s.entries, entry)
	return nil
}

func (s *AuditStore) ListByAccount(_ context.Context, accountID string, limit int, offset int) ([]model.AuditEntry, model.Meta, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := make([]model.AuditEntry, 0)
	for i := len(s.entries) - 1; i >= 0; i-- {
		e := s.entries[i]
		if e.AccountID != nil && *e.AccountID == accountID {
			matched = append(matched, e)
		}
	}

	total := len(matched)
	if offset > total {
		offset = total
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return matched[offset:end], model.Meta{Limit: limit, Offset: offset, Total: total}, nil
}

// Actions lists recorded actions in insertion order.
func (s *AuditStore) Actions() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]string, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, e.Action)
	}
	return out
}
