package contact

import (
	"context"
	"fmt"
	"sync"

	"contactlink/internal/identity/models"
	"contactlink/pkg/platform/sentinel"
)

// InMemory keeps contacts in process memory. It mirrors the Postgres store's
// contract exactly, including the uniqueness guarantee over primary
// fingerprints, so services and tests can swap implementations freely.
type InMemory struct {
	mu       sync.RWMutex
	contacts map[models.ContactID]*models.Contact
	// order preserves insertion order; secondaries are listed in the order
	// they were created, matching the Postgres created_at ordering.
	order                []models.ContactID
	primaryByFingerprint map[string]models.ContactID
}

// NewInMemory constructs an empty in-memory contact store.
func NewInMemory() *InMemory {
	return &InMemory{
		contacts:             make(map[models.ContactID]*models.Contact),
		primaryByFingerprint: make(map[string]models.ContactID),
	}
}

// FindOneByFingerprint returns the primary contact holding the fingerprint.
// The primary is the deterministic candidate: matching it keeps every new
// secondary linked directly to the cluster head.
func (s *InMemory) FindOneByFingerprint(_ context.Context, fingerprint string) (*models.Contact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.primaryByFingerprint[fingerprint]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return s.contacts[id].Clone(), nil
}

// FindSecondariesByPrimary returns all secondaries linked to the primary, in
// creation order.
func (s *InMemory) FindSecondariesByPrimary(_ context.Context, primaryID models.ContactID) ([]*models.Contact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var secondaries []*models.Contact
	for _, id := range s.order {
		c := s.contacts[id]
		if c.LinkPrecedence == models.LinkPrecedenceSecondary && c.LinkedID != nil && *c.LinkedID == primaryID {
			secondaries = append(secondaries, c.Clone())
		}
	}
	return secondaries, nil
}

// InsertPrimary stores a new primary iff no primary holds the fingerprint
// yet. A losing concurrent insert gets sentinel.ErrAlreadyUsed, the same
// signal the Postgres store derives from its partial unique index.
func (s *InMemory) InsertPrimary(_ context.Context, c *models.Contact) error {
	if !c.IsPrimary() {
		return fmt.Errorf("insert primary: contact %s is not primary", c.ID)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.primaryByFingerprint[c.Fingerprint]; exists {
		return sentinel.ErrAlreadyUsed
	}
	s.put(c)
	s.primaryByFingerprint[c.Fingerprint] = c.ID
	return nil
}

// InsertSecondary stores a new secondary. The referenced primary must exist
// and be primary; the store rejects dangling or chained linkage outright.
func (s *InMemory) InsertSecondary(_ context.Context, c *models.Contact) error {
	if c.LinkPrecedence != models.LinkPrecedenceSecondary || c.LinkedID == nil {
		return fmt.Errorf("insert secondary: contact %s is not a linked secondary", c.ID)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	linked, ok := s.contacts[*c.LinkedID]
	if !ok {
		return fmt.Errorf("insert secondary: linked contact %s: %w", c.LinkedID, sentinel.ErrNotFound)
	}
	if !linked.IsPrimary() {
		return fmt.Errorf("insert secondary: linked contact %s is not primary", c.LinkedID)
	}
	s.put(c)
	return nil
}

func (s *InMemory) put(c *models.Contact) {
	s.contacts[c.ID] = c.Clone()
	s.order = append(s.order, c.ID)
}
