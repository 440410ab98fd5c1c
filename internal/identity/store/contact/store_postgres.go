package contact

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"contactlink/internal/identity/models"
	"contactlink/pkg/platform/sentinel"
)

// pgUniqueViolation is the Postgres error code raised when an insert hits the
// partial unique index over primary fingerprints.
const pgUniqueViolation = "23505"

// Postgres persists contacts in PostgreSQL. Uniqueness of one primary per
// fingerprint is enforced by the contacts_primary_fingerprint_idx partial
// index (see db/migrations), not by application reads, so concurrent service
// instances converge on a single primary.
type Postgres struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed contact store.
func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

const contactColumns = `id, fingerprint, email, phone_number, link_precedence, linked_id, created_at, updated_at`

func (s *Postgres) FindOneByFingerprint(ctx context.Context, fingerprint string) (*models.Contact, error) {
	query := `
		SELECT ` + contactColumns + `
		FROM contacts
		WHERE fingerprint = $1 AND link_precedence = 'primary'
	`
	row := s.db.QueryRowContext(ctx, query, fingerprint)
	c, err := scanContact(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find contact by fingerprint: %w", err)
	}
	return c, nil
}

func (s *Postgres) FindSecondariesByPrimary(ctx context.Context, primaryID models.ContactID) ([]*models.Contact, error) {
	query := `
		SELECT ` + contactColumns + `
		FROM contacts
		WHERE linked_id = $1 AND link_precedence = 'secondary'
		ORDER BY created_at, id
	`
	rows, err := s.db.QueryContext(ctx, query, primaryID.String())
	if err != nil {
		return nil, fmt.Errorf("find secondaries: %w", err)
	}
	defer rows.Close()

	var secondaries []*models.Contact
	for rows.Next() {
		c, err := scanContact(rows)
		if err != nil {
			return nil, fmt.Errorf("scan secondary: %w", err)
		}
		secondaries = append(secondaries, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate secondaries: %w", err)
	}
	return secondaries, nil
}

func (s *Postgres) InsertPrimary(ctx context.Context, c *models.Contact) error {
	if !c.IsPrimary() {
		return fmt.Errorf("insert primary: contact %s is not primary", c.ID)
	}
	err := s.insert(ctx, c)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == pgUniqueViolation {
			return sentinel.ErrAlreadyUsed
		}
		return fmt.Errorf("insert primary contact: %w", err)
	}
	return nil
}

func (s *Postgres) InsertSecondary(ctx context.Context, c *models.Contact) error {
	if c.LinkPrecedence != models.LinkPrecedenceSecondary || c.LinkedID == nil {
		return fmt.Errorf("insert secondary: contact %s is not a linked secondary", c.ID)
	}
	if err := s.insert(ctx, c); err != nil {
		return fmt.Errorf("insert secondary contact: %w", err)
	}
	return nil
}

func (s *Postgres) insert(ctx context.Context, c *models.Contact) error {
	query := `
		INSERT INTO contacts (id, fingerprint, email, phone_number, link_precedence, linked_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	var linkedID sql.NullString
	if c.LinkedID != nil {
		linkedID = sql.NullString{String: c.LinkedID.String(), Valid: true}
	}
	_, err := s.db.ExecContext(ctx, query,
		c.ID.String(),
		c.Fingerprint,
		nullableString(c.Email),
		nullableString(c.PhoneNumber),
		string(c.LinkPrecedence),
		linkedID,
		c.CreatedAt,
		c.UpdatedAt,
	)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanContact(row rowScanner) (*models.Contact, error) {
	var (
		id          uuid.UUID
		c           models.Contact
		email       sql.NullString
		phoneNumber sql.NullString
		precedence  string
		linkedID    sql.NullString
	)
	err := row.Scan(&id, &c.Fingerprint, &email, &phoneNumber, &precedence, &linkedID, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	c.ID = models.ContactID(id)
	c.Email = email.String
	c.PhoneNumber = phoneNumber.String
	c.LinkPrecedence = models.LinkPrecedence(precedence)
	if linkedID.Valid {
		parsed, err := models.ParseContactID(linkedID.String)
		if err != nil {
			return nil, fmt.Errorf("linked id: %w", err)
		}
		c.LinkedID = &parsed
	}
	return &c, nil
}

func nullableString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
