package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"go-contacts-api/internal/model"
	"go-contacts-api/pkg/apierror"
)

const contactDeleted = "Contact deleted successfully"

type contactStore interface {
	List(ctx context.Context, ownerID string, limit int, offset int) ([]model.Contact, int, error)
	FindByID(ctx context.Context, ownerID string, id int64) (model.Contact, error)
	Create(ctx context.Context, contact model.Contact) (model.Contact, error)
	Update(ctx context.Context, contact model.Contact) (model.Contact, error)
	Delete(ctx context.Context, ownerID string, id int64) (model.Contact, error)
	Search(ctx context.Context, ownerID string, query string) ([]model.Contact, error)
	ListByBirthdayKeys(ctx context.Context, ownerID string, keys []string) ([]model.Contact, error)
}

// ContactService scopes every operation to the owner passed in. A contact
// owned by someone else is reported exactly like a missing one.
type ContactService struct {
	store      contactStore
	windowDays int
	now        func() time.Time
	log        *slog.Logger
}

func NewContactService(store contactStore, birthdayWindowDays int) *ContactService {
	if birthdayWindowDays < 0 {
		birthdayWindowDays = 0
	}

	return &ContactService{
		store:      store,
		windowDays: birthdayWindowDays,
		now:        time.Now,
		log:        slog.With("component", "contacts"),
	}
}

func (s *ContactService) List(ctx context.Context, ownerID string, limit int, offset int) ([]model.Contact, model.Meta, error) {
	if offset < 0 {
		offset = 0
	}

	contacts, total, err := s.store.List(ctx, ownerID, limit, offset)
	if err != nil {
		return nil, model.Meta{}, fmt.Errorf("list contacts: %w", err)
	}

	return contacts, model.Meta{Limit: limit, Offset: offset, Total: total}, nil
}

func (s *ContactService) Get(ctx context.Context, ownerID string, id int64) (model.Contact, error) {
	contact, err := s.store.FindByID(ctx, ownerID, id)
	if err != nil {
		return model.Contact{}, contactError("get contact", err)
	}
	return contact, nil
}

func (s *ContactService) Create(ctx context.Context, ownerID string, input model.ContactInput) (model.Contact, error) {
	if err := validateStruct(input); err != nil {
		return model.Contact{}, err
	}

	contact, err := s.store.Create(ctx, applyContactInput(model.Contact{OwnerID: ownerID}, input))
	if err != nil {
		s.log.Error("create contact", "owner_id", ownerID, "error", err)
		return model.Contact{}, apierror.Validation("failed to create contact", "")
	}

	return contact, nil
}

// Update replaces every editable field of the contact with input.
func (s *ContactService) Update(ctx context.Context, ownerID string, id int64, input model.ContactInput) (model.Contact, error) {
	if err := validateStruct(input); err != nil {
		return model.Contact{}, err
	}

	contact, err := s.store.Update(ctx, applyContactInput(model.Contact{ID: id, OwnerID: ownerID}, input))
	if err != nil {
		return model.Contact{}, contactError("update contact", err)
	}

	return contact, nil
}

func (s *ContactService) Delete(ctx context.Context, ownerID string, id int64) (model.MessageResult, error) {
	if _, err := s.store.Delete(ctx, ownerID, id); err != nil {
		return model.MessageResult{}, contactError("delete contact", err)
	}
	return model.MessageResult{Message: contactDeleted}, nil
}

// Search matches query case-insensitively as a substring of first name, last
// name or email.
func (s *ContactService) Search(ctx context.Context, ownerID string, query string) ([]model.Contact, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, apierror.BadRequest("query must not be empty", "query")
	}

	contacts, err := s.store.Search(ctx, ownerID, query)
	if err != nil {
		return nil, fmt.Errorf("search contacts: %w", err)
	}
	return contacts, nil
}

// UpcomingBirthdays returns contacts whose birthday falls within the
// configured window starting today, soonest first.
func (s *ContactService) UpcomingBirthdays(ctx context.Context, ownerID string) ([]model.Contact, error) {
	today := startOfDay(s.now())

	contacts, err := s.store.ListByBirthdayKeys(ctx, ownerID, birthdayKeys(today, s.windowDays))
	if err != nil {
		return nil, fmt.Errorf("list upcoming birthdays: %w", err)
	}

	upcoming := make([]model.Contact, 0, len(contacts))
	days := make(map[int64]int, len(contacts))
	for _, c := range contacts {
		if c.Birthday == nil {
			continue
		}
		d := daysUntilBirthday(*c.Birthday, today)
		if d > s.windowDays {
			continue
		}
		days[c.ID] = d
		upcoming = append(upcoming, c)
	}

	sort.SliceStable(upcoming, func(i, j int) bool {
		if days[upcoming[i].ID] != days[upcoming[j].ID] {
			return days[upcoming[i].ID] < days[upcoming[j].ID]
		}
		return upcoming[i].ID < upcoming[j].ID
	})

	return upcoming, nil
}

func applyContactInput(contact model.Contact, input model.ContactInput) model.Contact {
	contact.FirstName = strings.TrimSpace(input.FirstName)
	contact.LastName = strings.TrimSpace(input.LastName)
	contact.Email = strings.TrimSpace(input.Email)
	contact.PhoneNumber = strings.TrimSpace(input.PhoneNumber)
	contact.Birthday = input.Birthday
	contact.AdditionalData = input.AdditionalData
	return contact
}

func contactError(op string, err error) error {
	if errors.Is(err, model.ErrContactNotFound) {
		return apierror.NotFound("Contact not found", "")
	}
	return fmt.Errorf("%s: %w", op, err)
}
