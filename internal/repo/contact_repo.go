package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/contactvault/server/internal/model"
)

// SearchFilters holds optional case-insensitive substring filters for contact search.
// Empty fields are ignored; supplied fields are AND-combined.
type SearchFilters struct {
	Name    string
	Surname string
	Email   string
}

// ContactRepo defines ownership-scoped persistence and querying of contacts.
// Every operation filters by the owning user; a contact is never visible to a non-owner.
type ContactRepo interface {
	List(ctx context.Context, userID uuid.UUID, offset, limit int) ([]model.Contact, error)
	Get(ctx context.Context, id, userID uuid.UUID) (model.Contact, error)
	Search(ctx context.Context, userID uuid.UUID, filters SearchFilters, offset, limit int) ([]model.Contact, error)
	UpcomingBirthdays(ctx context.Context, userID uuid.UUID, days int) ([]model.Contact, error)
	Create(ctx context.Context, userID uuid.UUID, fields model.ContactFields) (model.Contact, error)
	Update(ctx context.Context, id, userID uuid.UUID, fields model.ContactFields) (model.Contact, error)
	Delete(ctx context.Context, id, userID uuid.UUID) error
}

type contactRepo struct {
	db *sql.DB
}

// NewContactRepo creates a new ContactRepo instance
func NewContactRepo(db *sql.DB) ContactRepo {
	return &contactRepo{db: db}
}

const contactColumns = `id, name, surname, email, phone, birthday, user_id, created_at, updated_at`

func scanContact(scanner interface{ Scan(...any) error }) (model.Contact, error) {
	var c model.Contact
	var idStr, userIDStr string
	err := scanner.Scan(
		&idStr,
		&c.Name,
		&c.Surname,
		&c.Email,
		&c.Phone,
		&c.Birthday,
		&userIDStr,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		return model.Contact{}, err
	}
	c.ID, err = uuid.Parse(idStr)
	if err != nil {
		return model.Contact{}, fmt.Errorf("failed to parse contact ID: %w", err)
	}
	c.UserID, err = uuid.Parse(userIDStr)
	if err != nil {
		return model.Contact{}, fmt.Errorf("failed to parse owner ID: %w", err)
	}
	return c, nil
}

func collectContacts(rows *sql.Rows) ([]model.Contact, error) {
	defer rows.Close()
	contacts := make([]model.Contact, 0)
	for rows.Next() {
		c, err := scanContact(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan contact: %w", err)
		}
		contacts = append(contacts, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate contacts: %w", err)
	}
	return contacts, nil
}

// List returns a page of contacts owned by the user in insertion order
func (r *contactRepo) List(ctx context.Context, userID uuid.UUID, offset, limit int) ([]model.Contact, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+contactColumns+`
		FROM contacts
		WHERE user_id = $1
		ORDER BY created_at, id
		OFFSET $2 LIMIT $3
	`, userID, offset, limit)
	if err != nil {
		return nil, fmt.Errorf("list contacts: %w", err)
	}
	return collectContacts(rows)
}

// Get returns a single contact if it exists and is owned by the user
func (r *contactRepo) Get(ctx context.Context, id, userID uuid.UUID) (model.Contact, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+contactColumns+`
		FROM contacts
		WHERE id = $1 AND user_id = $2
	`, id, userID)
	c, err := scanContact(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Contact{}, ErrNotFound
		}
		return model.Contact{}, fmt.Errorf("get contact: %w", err)
	}
	return c, nil
}

// Search returns contacts matching the supplied filters, AND-combined with
// case-insensitive substring semantics. No filters behaves like List.
func (r *contactRepo) Search(ctx context.Context, userID uuid.UUID, filters SearchFilters, offset, limit int) ([]model.Contact, error) {
	query := `SELECT ` + contactColumns + ` FROM contacts WHERE user_id = $1`
	args := []any{userID}

	if filters.Name != "" {
		args = append(args, "%"+filters.Name+"%")
		query += ` AND name ILIKE $` + strconv.Itoa(len(args))
	}
	if filters.Surname != "" {
		args = append(args, "%"+filters.Surname+"%")
		query += ` AND surname ILIKE $` + strconv.Itoa(len(args))
	}
	if filters.Email != "" {
		args = append(args, "%"+filters.Email+"%")
		query += ` AND email ILIKE $` + strconv.Itoa(len(args))
	}

	args = append(args, offset)
	query += ` ORDER BY created_at, id OFFSET $` + strconv.Itoa(len(args))
	args = append(args, limit)
	query += ` LIMIT $` + strconv.Itoa(len(args))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("search contacts: %w", err)
	}
	return collectContacts(rows)
}

// birthdayWindow returns the MM-DD bounds of the rolling window [today, today+days]
// and whether the window wraps across the year boundary.
func birthdayWindow(today time.Time, days int) (start, end string, wraps bool) {
	endDay := today.AddDate(0, 0, days)
	start = today.Format("01-02")
	end = endDay.Format("01-02")
	return start, end, end < start
}

// UpcomingBirthdays returns contacts whose birthday month-day falls within
// [today, today+days], ignoring year. The window wraps across Dec 31: a 7-day
// window starting Dec 30 includes early-January birthdays.
func (r *contactRepo) UpcomingBirthdays(ctx context.Context, userID uuid.UUID, days int) ([]model.Contact, error) {
	// A span of a year or more covers every month-day; the MM-DD bounds would
	// collapse to a 1-2 day window otherwise.
	if days >= 365 {
		rows, err := r.db.QueryContext(ctx, `
			SELECT `+contactColumns+`
			FROM contacts
			WHERE user_id = $1
			ORDER BY to_char(birthday, 'MM-DD')
		`, userID)
		if err != nil {
			return nil, fmt.Errorf("upcoming birthdays: %w", err)
		}
		return collectContacts(rows)
	}

	start, end, wraps := birthdayWindow(time.Now(), days)

	predicate := `to_char(birthday, 'MM-DD') BETWEEN $2 AND $3`
	if wraps {
		predicate = `(to_char(birthday, 'MM-DD') >= $2 OR to_char(birthday, 'MM-DD') <= $3)`
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT `+contactColumns+`
		FROM contacts
		WHERE user_id = $1 AND `+predicate+`
		ORDER BY to_char(birthday, 'MM-DD')
	`, userID, start, end)
	if err != nil {
		return nil, fmt.Errorf("upcoming birthdays: %w", err)
	}
	return collectContacts(rows)
}

// Create persists a new contact owned by the user.
// Returns ErrDuplicateEmail on an email uniqueness violation.
func (r *contactRepo) Create(ctx context.Context, userID uuid.UUID, fields model.ContactFields) (model.Contact, error) {
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO contacts (name, surname, email, phone, birthday, user_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+contactColumns,
		fields.Name, fields.Surname, fields.Email, fields.Phone, fields.Birthday, userID)
	c, err := scanContact(row)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return model.Contact{}, ErrDuplicateEmail
		}
		return model.Contact{}, fmt.Errorf("insert contact: %w", err)
	}
	return c, nil
}

// Update replaces all writable fields of a contact if it exists and is owned by the user
func (r *contactRepo) Update(ctx context.Context, id, userID uuid.UUID, fields model.ContactFields) (model.Contact, error) {
	row := r.db.QueryRowContext(ctx, `
		UPDATE contacts
		SET name = $3, surname = $4, email = $5, phone = $6, birthday = $7, updated_at = now()
		WHERE id = $1 AND user_id = $2
		RETURNING `+contactColumns,
		id, userID, fields.Name, fields.Surname, fields.Email, fields.Phone, fields.Birthday)
	c, err := scanContact(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Contact{}, ErrNotFound
		}
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return model.Contact{}, ErrDuplicateEmail
		}
		return model.Contact{}, fmt.Errorf("update contact: %w", err)
	}
	return c, nil
}

// Delete removes a contact if it exists and is owned by the user
func (r *contactRepo) Delete(ctx context.Context, id, userID uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `
		DELETE FROM contacts WHERE id = $1 AND user_id = $2
	`, id, userID)
	if err != nil {
		return fmt.Errorf("delete contact: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
