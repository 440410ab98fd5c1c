package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	dErrors "contactlink/pkg/domain-errors"
)

// ContactID is a typed UUID so contact identifiers cannot be confused with
// other string values at compile time.
type ContactID uuid.UUID

// NewContactID returns a freshly generated contact identifier.
func NewContactID() ContactID {
	return ContactID(uuid.New())
}

// ParseContactID validates and returns a ContactID. Empty strings, malformed
// UUIDs, and the nil UUID are rejected.
func ParseContactID(s string) (ContactID, error) {
	parsed, err := uuid.Parse(s)
	if err != nil {
		return ContactID{}, dErrors.New(dErrors.CodeBadRequest, fmt.Sprintf("invalid contact id: %q", s))
	}
	if parsed == uuid.Nil {
		return ContactID{}, dErrors.New(dErrors.CodeBadRequest, "contact id must not be nil")
	}
	return ContactID(parsed), nil
}

// String returns the canonical UUID string form.
func (id ContactID) String() string {
	return uuid.UUID(id).String()
}

// IsNil reports whether the ID is the zero UUID.
func (id ContactID) IsNil() bool {
	return uuid.UUID(id) == uuid.Nil
}

// LinkPrecedence marks a contact as the authoritative record of its cluster
// or as a later observation linked to one.
type LinkPrecedence string

const (
	LinkPrecedencePrimary   LinkPrecedence = "primary"
	LinkPrecedenceSecondary LinkPrecedence = "secondary"
)

// Contact is the sole persisted entity. Records are append-only: once written
// they are never updated or deleted, and a contact never changes precedence.
type Contact struct {
	ID          ContactID
	Fingerprint string
	Email       string
	PhoneNumber string
	// LinkPrecedence is primary for the cluster's authoritative record,
	// secondary for every later observation against the same fingerprint.
	LinkPrecedence LinkPrecedence
	// LinkedID references the cluster's primary. Non-nil iff secondary.
	LinkedID  *ContactID
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewPrimaryContact constructs the authoritative record for a fingerprint
// observed for the first time. Email and phone are stored as submitted.
func NewPrimaryContact(fingerprint, email, phoneNumber string, now time.Time) (*Contact, error) {
	if fingerprint == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "fingerprint is required")
	}
	return &Contact{
		ID:             NewContactID(),
		Fingerprint:    fingerprint,
		Email:          email,
		PhoneNumber:    phoneNumber,
		LinkPrecedence: LinkPrecedencePrimary,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

// NewSecondaryContact constructs an observation linked to an existing primary.
// The primary's identity is captured by linkedID; the fingerprint is carried
// for traceability and always equals the primary's.
func NewSecondaryContact(linkedID ContactID, fingerprint, email, phoneNumber string, now time.Time) (*Contact, error) {
	if fingerprint == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "fingerprint is required")
	}
	if linkedID.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "secondary contact requires a primary to link to")
	}
	linked := linkedID
	return &Contact{
		ID:             NewContactID(),
		Fingerprint:    fingerprint,
		Email:          email,
		PhoneNumber:    phoneNumber,
		LinkPrecedence: LinkPrecedenceSecondary,
		LinkedID:       &linked,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

// IsPrimary reports whether the contact is its cluster's authoritative record.
func (c *Contact) IsPrimary() bool {
	return c.LinkPrecedence == LinkPrecedencePrimary
}

// Clone returns a deep copy so store implementations never hand out aliased
// records.
func (c *Contact) Clone() *Contact {
	clone := *c
	if c.LinkedID != nil {
		linked := *c.LinkedID
		clone.LinkedID = &linked
	}
	return &clone
}
