package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"go-contacts-api/internal/model"
)

const contactColumns = `id, first_name, last_name, email, phone_number, birthday, additional_data, owner_id::text, created_at, updated_at`

type ContactRepository struct {
	pool *pgxpool.Pool
}

func NewContactRepository(pool *pgxpool.Pool) *ContactRepository {
	return &ContactRepository{pool: pool}
}

func scanContact(row pgx.Row) (model.Contact, error) {
	var (
		c        model.Contact
		birthday pgtype.Date
		ownerID  *string
	)

	if err := row.Scan(&c.ID, &c.FirstName, &c.LastName, &c.Email, &c.PhoneNumber,
		&birthday, &c.AdditionalData, &ownerID, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return model.Contact{}, err
	}

	if birthday.Valid {
		d := model.DateOf(birthday.Time)
		c.Birthday = &d
	}
	if ownerID != nil {
		c.OwnerID = *ownerID
	}

	return c, nil
}

func collectContacts(rows pgx.Rows) ([]model.Contact, error) {
	defer rows.Close()

	contacts := make([]model.Contact, 0)
	for rows.Next() {
		c, err := scanContact(rows)
		if err != nil {
			return nil, fmt.Errorf("scan contact: %w", err)
		}
		contacts = append(contacts, c)
	}
	return contacts, rows.Err()
}

func dateParam(d *model.Date) pgtype.Date {
	if d == nil {
		return pgtype.Date{}
	}
	return pgtype.Date{Time: d.Time, Valid: true}
}

func (r *ContactRepository) List(ctx context.Context, ownerID string, limit int, offset int) ([]model.Contact, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM contacts WHERE owner_id = $1`, ownerID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count contacts: %w", err)
	}

	rows, err := r.pool.Query(ctx,
		`SELECT `+contactColumns+` FROM contacts
		 WHERE owner_id = $1
		 ORDER BY id
		 LIMIT $2 OFFSET $3`, ownerID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list contacts: %w", err)
	}

	contacts, err := collectContacts(rows)
	if err != nil {
		return nil, 0, err
	}
	return contacts, total, nil
}

func (r *ContactRepository) FindByID(ctx context.Context, ownerID string, id int64) (model.Contact, error) {
	c, err := scanContact(r.pool.QueryRow(ctx,
		`SELECT `+contactColumns+` FROM contacts WHERE id = $1 AND owner_id = $2`, id, ownerID))

	if errors.Is(err, pgx.ErrNoRows) {
		return model.Contact{}, model.ErrContactNotFound
	}
	if err != nil {
		return model.Contact{}, fmt.Errorf("find contact: %w", err)
	}
	return c, nil
}

func (r *ContactRepository) Create(ctx context.Context, c model.Contact) (model.Contact, error) {
	now := time.Now().UTC()

	created, err := scanContact(r.pool.QueryRow(ctx,
		`INSERT INTO contacts (first_name, last_name, email, phone_number, birthday, additional_data, owner_id, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)
		 RETURNING `+contactColumns,
		c.FirstName, c.LastName, c.Email, c.PhoneNumber, dateParam(c.Birthday), c.AdditionalData, c.OwnerID, now))
	if err != nil {
		return model.Contact{}, fmt.Errorf("create contact: %w", err)
	}
	return created, nil
}

// Update overwrites every mutable column of an owned contact in one statement.
func (r *ContactRepository) Update(ctx context.Context, c model.Contact) (model.Contact, error) {
	updated, err := scanContact(r.pool.QueryRow(ctx,
		`UPDATE contacts
		 SET first_name = $3, last_name = $4, email = $5, phone_number = $6,
		     birthday = $7, additional_data = $8, updated_at = $9
		 WHERE id = $1 AND owner_id = $2
		 RETURNING `+contactColumns,
		c.ID, c.OwnerID, c.FirstName, c.LastName, c.Email, c.PhoneNumber,
		dateParam(c.Birthday), c.AdditionalData, time.Now().UTC()))

	if errors.Is(err, pgx.ErrNoRows) {
		return model.Contact{}, model.ErrContactNotFound
	}
	if err != nil {
		return model.Contact{}, fmt.Errorf("update contact: %w", err)
	}
	return updated, nil
}

func (r *ContactRepository) Delete(ctx context.Context, ownerID string, id int64) (model.Contact, error) {
	deleted, err := scanContact(r.pool.QueryRow(ctx,
		`DELETE FROM contacts WHERE id = $1 AND owner_id = $2 RETURNING `+contactColumns, id, ownerID))

	if errors.Is(err, pgx.ErrNoRows) {
		return model.Contact{}, model.ErrContactNotFound
	}
	if err != nil {
		return model.Contact{}, fmt.Errorf("delete contact: %w", err)
	}
	return deleted, nil
}

func (r *ContactRepository) Search(ctx context.Context, ownerID string, query string) ([]model.Contact, error) {
	pattern := "%" + escapeLike(strings.TrimSpace(query)) + "%"

	rows, err := r.pool.Query(ctx,
		`SELECT `+contactColumns+` FROM contacts
		 WHERE owner_id = $1
		   AND (first_name ILIKE $2 OR last_name ILIKE $2 OR email ILIKE $2)
		 ORDER BY id`, ownerID, pattern)
	if err != nil {
		return nil, fmt.Errorf("search contacts: %w", err)
	}
	return collectContacts(rows)
}

// ListByBirthdayKeys returns owned contacts whose birthday month and day, as
// MM-DD, is one of keys.
func (r *ContactRepository) ListByBirthdayKeys(ctx context.Context, ownerID string, keys []string) ([]model.Contact, error) {
	if len(keys) == 0 {
		return []model.Contact{}, nil
	}

	rows, err := r.pool.Query(ctx,
		`SELECT `+contactColumns+` FROM contacts
		 WHERE owner_id = $1
		   AND birthday IS NOT NULL
		   AND to_char(birthday, 'MM-DD') = ANY($2)`, ownerID, keys)
	if err != nil {
		return nil, fmt.Errorf("list contacts by birthday: %w", err)
	}
	return collectContacts(rows)
}

func escapeLike(raw string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return replacer.Replace(raw)
}
