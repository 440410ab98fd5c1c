package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"contactlink/internal/audit"
	"contactlink/internal/fingerprint"
	"contactlink/internal/identity/models"
	contactstore "contactlink/internal/identity/store/contact"
	dErrors "contactlink/pkg/domain-errors"
	"contactlink/pkg/platform/sentinel"
	"contactlink/pkg/requestcontext"
)

// =============================================================================
// Identity Service Test Suite
// =============================================================================
// Justification for unit tests: the create-or-link decision, race recovery,
// and view assembly ordering are easiest to pin down against the in-memory
// store, where every interleaving can be constructed directly.

type IdentityServiceSuite struct {
	suite.Suite
	store    *contactstore.InMemory
	provider *stubProvider
	audit    *recordingPublisher
	service  *Service
}

func TestIdentityServiceSuite(t *testing.T) {
	suite.Run(t, new(IdentityServiceSuite))
}

func (s *IdentityServiceSuite) SetupTest() {
	s.store = contactstore.NewInMemory()
	s.provider = &stubProvider{visitorID: "visitor-1"}
	s.audit = &recordingPublisher{}
	s.service = New(s.store, s.provider, WithAuditPublisher(s.audit))
}

func (s *IdentityServiceSuite) ctxAt(t time.Time) context.Context {
	return requestcontext.WithTime(context.Background(), t)
}

// stubProvider returns a fixed visitor ID, or an error when set.
type stubProvider struct {
	visitorID string
	err       error
	calls     atomic.Int32
}

func (p *stubProvider) Resolve(_ context.Context, _ fingerprint.Signals) (string, error) {
	p.calls.Add(1)
	if p.err != nil {
		return "", p.err
	}
	return p.visitorID, nil
}

// recordingPublisher captures emitted audit events.
type recordingPublisher struct {
	mu     sync.Mutex
	events []audit.Event
}

func (p *recordingPublisher) Emit(_ context.Context, event audit.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
}

func (p *recordingPublisher) Events() []audit.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]audit.Event(nil), p.events...)
}

// =============================================================================
// First Contact Tests
// =============================================================================

func (s *IdentityServiceSuite) TestIdentifyCreatesPrimary() {
	ctx := s.ctxAt(time.Date(2023, 4, 1, 0, 0, 0, 0, time.UTC))

	view, err := s.service.Identify(ctx, models.IdentifyRequest{
		Email:       "lorraine@hillvalley.edu",
		PhoneNumber: "123456",
	})
	s.Require().NoError(err)

	s.Equal([]string{"lorraine@hillvalley.edu"}, view.Emails)
	s.Equal([]string{"123456"}, view.PhoneNumbers)
	s.Empty(view.SecondaryContactIDs)

	stored, err := s.store.FindOneByFingerprint(ctx, "visitor-1")
	s.Require().NoError(err)
	s.Equal(view.PrimaryContactID, stored.ID)
	s.True(stored.IsPrimary())

	events := s.audit.Events()
	s.Require().Len(events, 1)
	s.Equal(audit.ActionIdentityCreated, events[0].Action)
	s.Equal(stored.ID.String(), events[0].PrimaryContactID)
	s.Equal(audit.HashFingerprint("visitor-1"), events[0].FingerprintHash)
}

func (s *IdentityServiceSuite) TestIdentifySingleFieldRequests() {
	ctx := s.ctxAt(time.Now().UTC())

	s.Run("email only", func() {
		s.provider.visitorID = "visitor-email-only"
		view, err := s.service.Identify(ctx, models.IdentifyRequest{Email: "doc@hillvalley.edu"})
		s.Require().NoError(err)
		s.Equal([]string{"doc@hillvalley.edu"}, view.Emails)
		s.Empty(view.PhoneNumbers)
	})

	s.Run("phone only", func() {
		s.provider.visitorID = "visitor-phone-only"
		view, err := s.service.Identify(ctx, models.IdentifyRequest{PhoneNumber: "555000"})
		s.Require().NoError(err)
		s.Empty(view.Emails)
		s.Equal([]string{"555000"}, view.PhoneNumbers)
	})
}

// =============================================================================
// Validation and Provider Failure Tests
// =============================================================================

func (s *IdentityServiceSuite) TestIdentifyValidation() {
	ctx := s.ctxAt(time.Now().UTC())

	_, err := s.service.Identify(ctx, models.IdentifyRequest{})
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))

	// Validation failures never reach the provider or the store.
	s.Equal(int32(0), s.provider.calls.Load())
	_, err = s.store.FindOneByFingerprint(ctx, "visitor-1")
	s.ErrorIs(err, sentinel.ErrNotFound)
	s.Empty(s.audit.Events())
}

func (s *IdentityServiceSuite) TestIdentifyProviderUnavailable() {
	ctx := s.ctxAt(time.Now().UTC())
	s.provider.err = sentinel.ErrUnavailable

	_, err := s.service.Identify(ctx, models.IdentifyRequest{Email: "doc@hillvalley.edu"})
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeUnavailable))

	// Nothing is written when resolution fails.
	_, err = s.store.FindOneByFingerprint(ctx, "visitor-1")
	s.ErrorIs(err, sentinel.ErrNotFound)
	s.Empty(s.audit.Events())
}

// =============================================================================
// Linking Tests
// =============================================================================

func (s *IdentityServiceSuite) TestIdentifySecondCallLinksSecondary() {
	ctx := s.ctxAt(time.Date(2023, 4, 1, 0, 0, 0, 0, time.UTC))

	first, err := s.service.Identify(ctx, models.IdentifyRequest{
		Email:       "lorraine@hillvalley.edu",
		PhoneNumber: "123456",
	})
	s.Require().NoError(err)

	second, err := s.service.Identify(s.ctxAt(time.Date(2023, 4, 1, 0, 1, 0, 0, time.UTC)), models.IdentifyRequest{
		Email:       "mcfly@hillvalley.edu",
		PhoneNumber: "123456",
	})
	s.Require().NoError(err)

	s.Equal(first.PrimaryContactID, second.PrimaryContactID)
	s.Equal([]string{"lorraine@hillvalley.edu", "mcfly@hillvalley.edu"}, second.Emails)
	// Duplicate phone numbers are preserved, primary's first.
	s.Equal([]string{"123456", "123456"}, second.PhoneNumbers)
	s.Require().Len(second.SecondaryContactIDs, 1)
	s.NotEqual(second.PrimaryContactID, second.SecondaryContactIDs[0])

	events := s.audit.Events()
	s.Require().Len(events, 2)
	s.Equal(audit.ActionIdentityLinked, events[1].Action)
	s.Equal(second.SecondaryContactIDs[0].String(), events[1].ContactID)
	s.Equal(first.PrimaryContactID.String(), events[1].PrimaryContactID)
}

func (s *IdentityServiceSuite) TestIdentifyNewSecondaryListedFirst() {
	base := time.Date(2023, 4, 1, 0, 0, 0, 0, time.UTC)

	_, err := s.service.Identify(s.ctxAt(base), models.IdentifyRequest{Email: "first@hillvalley.edu"})
	s.Require().NoError(err)

	older, err := s.service.Identify(s.ctxAt(base.Add(time.Minute)), models.IdentifyRequest{Email: "second@hillvalley.edu"})
	s.Require().NoError(err)
	oldestSecondary := older.SecondaryContactIDs[0]

	older, err = s.service.Identify(s.ctxAt(base.Add(2*time.Minute)), models.IdentifyRequest{Email: "third@hillvalley.edu"})
	s.Require().NoError(err)

	view, err := s.service.Identify(s.ctxAt(base.Add(3*time.Minute)), models.IdentifyRequest{Email: "fourth@hillvalley.edu"})
	s.Require().NoError(err)

	s.Require().Len(view.SecondaryContactIDs, 3)
	// The just-created secondary leads; the rest follow in creation order.
	s.Equal([]string{"first@hillvalley.edu", "fourth@hillvalley.edu", "second@hillvalley.edu", "third@hillvalley.edu"}, view.Emails)
	s.Equal(oldestSecondary, view.SecondaryContactIDs[1])
}

func (s *IdentityServiceSuite) TestIdentifyDistinctFingerprintsNeverMerge() {
	ctx := s.ctxAt(time.Now().UTC())

	s.provider.visitorID = "visitor-a"
	a, err := s.service.Identify(ctx, models.IdentifyRequest{Email: "shared@hillvalley.edu"})
	s.Require().NoError(err)

	s.provider.visitorID = "visitor-b"
	b, err := s.service.Identify(ctx, models.IdentifyRequest{Email: "shared@hillvalley.edu"})
	s.Require().NoError(err)

	// Shared contact values do not merge clusters; only the fingerprint does.
	s.NotEqual(a.PrimaryContactID, b.PrimaryContactID)
	s.Empty(a.SecondaryContactIDs)
	s.Empty(b.SecondaryContactIDs)
}

// =============================================================================
// Race Recovery Tests
// =============================================================================

// racingStore injects a competing primary between the service's initial read
// and its insert, forcing the lost-race path.
type racingStore struct {
	*contactstore.InMemory
	once       sync.Once
	competitor *models.Contact
}

func (r *racingStore) InsertPrimary(ctx context.Context, c *models.Contact) error {
	var injectErr error
	r.once.Do(func() {
		injectErr = r.InMemory.InsertPrimary(ctx, r.competitor)
	})
	if injectErr != nil {
		return injectErr
	}
	return r.InMemory.InsertPrimary(ctx, c)
}

func (s *IdentityServiceSuite) TestIdentifyLostPrimaryRaceLinksSecondary() {
	ctx := s.ctxAt(time.Date(2023, 4, 1, 0, 0, 0, 0, time.UTC))

	competitor, err := models.NewPrimaryContact("visitor-1", "winner@hillvalley.edu", "", time.Date(2023, 3, 31, 23, 59, 0, 0, time.UTC))
	s.Require().NoError(err)

	store := &racingStore{InMemory: s.store, competitor: competitor}
	svc := New(store, s.provider, WithAuditPublisher(s.audit))

	view, err := svc.Identify(ctx, models.IdentifyRequest{Email: "loser@hillvalley.edu"})
	s.Require().NoError(err)

	// The caller sees an ordinary secondary link to the race winner.
	s.Equal(competitor.ID, view.PrimaryContactID)
	s.Equal([]string{"winner@hillvalley.edu", "loser@hillvalley.edu"}, view.Emails)
	s.Require().Len(view.SecondaryContactIDs, 1)

	events := s.audit.Events()
	s.Require().Len(events, 1)
	s.Equal(audit.ActionIdentityLinked, events[0].Action)
}

func (s *IdentityServiceSuite) TestIdentifyConcurrentSameFingerprint() {
	const goroutines = 20
	ctx := s.ctxAt(time.Now().UTC())

	var wg sync.WaitGroup
	var errCount atomic.Int32

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.service.Identify(ctx, models.IdentifyRequest{Email: "concurrent@hillvalley.edu"}); err != nil {
				errCount.Add(1)
			}
		}()
	}
	wg.Wait()

	s.Equal(int32(0), errCount.Load(), "every caller should get a cluster view")

	primary, err := s.store.FindOneByFingerprint(ctx, "visitor-1")
	s.Require().NoError(err)
	s.True(primary.IsPrimary())

	secondaries, err := s.store.FindSecondariesByPrimary(ctx, primary.ID)
	s.Require().NoError(err)
	s.Len(secondaries, goroutines-1, "exactly one caller creates the primary")
	for _, sec := range secondaries {
		s.Require().NotNil(sec.LinkedID)
		s.Equal(primary.ID, *sec.LinkedID)
	}
}

// =============================================================================
// Store Failure Tests
// =============================================================================

type failingStore struct {
	*contactstore.InMemory
	findErr error
}

func (f *failingStore) FindOneByFingerprint(ctx context.Context, fingerprint string) (*models.Contact, error) {
	if f.findErr != nil {
		return nil, f.findErr
	}
	return f.InMemory.FindOneByFingerprint(ctx, fingerprint)
}

func (s *IdentityServiceSuite) TestIdentifyStoreFailure() {
	ctx := s.ctxAt(time.Now().UTC())

	store := &failingStore{InMemory: s.store, findErr: errors.New("connection refused")}
	svc := New(store, s.provider)

	_, err := svc.Identify(ctx, models.IdentifyRequest{Email: "doc@hillvalley.edu"})
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeInternal))
}
