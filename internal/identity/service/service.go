// Package service implements the identity linking engine: the create-or-link
// decision for incoming identity signals and the assembly of merged cluster
// views.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"contactlink/internal/audit"
	"contactlink/internal/fingerprint"
	identitymetrics "contactlink/internal/identity/metrics"
	"contactlink/internal/identity/models"
	dErrors "contactlink/pkg/domain-errors"
	"contactlink/pkg/platform/sentinel"
	"contactlink/pkg/requestcontext"
)

// ContactStore is the persistence boundary for contacts. The uniqueness of
// one primary per fingerprint is the store's guarantee: InsertPrimary must
// return sentinel.ErrAlreadyUsed when another primary already holds the
// fingerprint, regardless of what earlier reads observed.
type ContactStore interface {
	FindOneByFingerprint(ctx context.Context, fingerprint string) (*models.Contact, error)
	FindSecondariesByPrimary(ctx context.Context, primaryID models.ContactID) ([]*models.Contact, error)
	InsertPrimary(ctx context.Context, contact *models.Contact) error
	InsertSecondary(ctx context.Context, contact *models.Contact) error
}

// AuditPublisher receives identity lifecycle events. Emission must never fail
// the identify path.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event)
}

// Service orchestrates identify calls. It holds no cluster state between
// requests; every call reconstructs what it needs from the store.
type Service struct {
	contacts ContactStore
	provider fingerprint.Provider
	logger   *slog.Logger
	audit    AuditPublisher
	metrics  *identitymetrics.Metrics
	tracer   trace.Tracer
}

// Option configures a Service.
type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) {
		s.audit = publisher
	}
}

func WithMetrics(m *identitymetrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// New constructs a Service.
func New(contacts ContactStore, provider fingerprint.Provider, opts ...Option) *Service {
	s := &Service{
		contacts: contacts,
		provider: provider,
		logger:   slog.Default(),
		tracer:   otel.Tracer("contactlink/identity"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Identify resolves the request's signals to a fingerprint, creates or links
// a contact, and returns the merged cluster view.
//
// For a fingerprint seen for the first time a primary is created; every later
// call against the same fingerprint appends a secondary carrying that call's
// email/phone, with no value-level deduplication. The primary insert is a
// conditional write: losing the creation race to a concurrent request is
// recovered internally by re-reading the winner and linking a secondary to
// it, so the one-primary-per-fingerprint invariant holds without any
// in-process locking.
func (s *Service) Identify(ctx context.Context, req models.IdentifyRequest) (models.ClusterView, error) {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "identity.Identify")
	defer span.End()

	if err := req.Validate(); err != nil {
		return models.ClusterView{}, err
	}

	visitorID, err := s.provider.Resolve(ctx, fingerprint.Signals{
		Email:       req.Email,
		PhoneNumber: req.PhoneNumber,
		ClientIP:    requestcontext.ClientIP(ctx),
		UserAgent:   requestcontext.UserAgent(ctx),
	})
	if err != nil {
		s.incrementFingerprintFailures()
		s.logger.ErrorContext(ctx, "fingerprint resolution failed",
			"request_id", requestcontext.RequestID(ctx),
			"error", err.Error(),
		)
		return models.ClusterView{}, dErrors.Wrap(err, dErrors.CodeUnavailable, "fingerprint provider unavailable")
	}

	primary, err := s.contacts.FindOneByFingerprint(ctx, visitorID)
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		view, raced, err := s.createPrimary(ctx, visitorID, req)
		if err != nil {
			return models.ClusterView{}, err
		}
		if !raced {
			s.observeIdentify(start)
			span.SetAttributes(attribute.String("identity.link_precedence", "primary"))
			return view, nil
		}
		// A concurrent request won the creation race; its primary is now
		// visible. Re-read it and link this observation as a secondary.
		primary, err = s.contacts.FindOneByFingerprint(ctx, visitorID)
		if err != nil {
			return models.ClusterView{}, dErrors.Wrap(err, dErrors.CodeInternal, "contact store unavailable")
		}
	case err != nil:
		return models.ClusterView{}, dErrors.Wrap(err, dErrors.CodeInternal, "contact store unavailable")
	}

	view, err := s.linkSecondary(ctx, primary, visitorID, req)
	if err != nil {
		return models.ClusterView{}, err
	}
	s.observeIdentify(start)
	span.SetAttributes(
		attribute.String("identity.link_precedence", "secondary"),
		attribute.Int("identity.cluster_size", len(view.SecondaryContactIDs)+1),
	)
	return view, nil
}

// createPrimary attempts the conditional primary insert. raced reports that
// the store's uniqueness guarantee rejected the insert because another
// request created the primary first; the caller retries as a secondary.
func (s *Service) createPrimary(ctx context.Context, visitorID string, req models.IdentifyRequest) (view models.ClusterView, raced bool, err error) {
	contact, err := models.NewPrimaryContact(visitorID, req.Email, req.PhoneNumber, requestcontext.Now(ctx))
	if err != nil {
		return models.ClusterView{}, false, err
	}

	if err := s.contacts.InsertPrimary(ctx, contact); err != nil {
		if errors.Is(err, sentinel.ErrAlreadyUsed) {
			s.incrementPrimaryRaceRetries()
			s.logger.InfoContext(ctx, "lost primary creation race, linking as secondary",
				"request_id", requestcontext.RequestID(ctx),
				"contact_id", contact.ID.String(),
			)
			return models.ClusterView{}, true, nil
		}
		return models.ClusterView{}, false, dErrors.Wrap(err, dErrors.CodeInternal, "contact store unavailable")
	}

	s.incrementPrimariesCreated()
	s.emit(ctx, audit.Event{
		Action:           audit.ActionIdentityCreated,
		ContactID:        contact.ID.String(),
		PrimaryContactID: contact.ID.String(),
		FingerprintHash:  audit.HashFingerprint(visitorID),
	})
	return models.BuildClusterView(contact, nil, nil), false, nil
}

// linkSecondary appends the current observation to an existing cluster and
// assembles the merged view.
func (s *Service) linkSecondary(ctx context.Context, primary *models.Contact, visitorID string, req models.IdentifyRequest) (models.ClusterView, error) {
	secondary, err := models.NewSecondaryContact(primary.ID, visitorID, req.Email, req.PhoneNumber, requestcontext.Now(ctx))
	if err != nil {
		return models.ClusterView{}, err
	}
	if err := s.contacts.InsertSecondary(ctx, secondary); err != nil {
		return models.ClusterView{}, dErrors.Wrap(err, dErrors.CodeInternal, "contact store unavailable")
	}

	secondaries, err := s.contacts.FindSecondariesByPrimary(ctx, primary.ID)
	if err != nil {
		return models.ClusterView{}, dErrors.Wrap(err, dErrors.CodeInternal, "contact store unavailable")
	}

	s.incrementSecondariesCreated()
	s.emit(ctx, audit.Event{
		Action:           audit.ActionIdentityLinked,
		ContactID:        secondary.ID.String(),
		PrimaryContactID: primary.ID.String(),
		FingerprintHash:  audit.HashFingerprint(visitorID),
	})
	return models.BuildClusterView(primary, secondary, secondaries), nil
}

func (s *Service) emit(ctx context.Context, event audit.Event) {
	if s.audit != nil {
		s.audit.Emit(ctx, event)
	}
}

func (s *Service) incrementPrimariesCreated() {
	if s.metrics != nil {
		s.metrics.IncrementPrimariesCreated()
	}
}

func (s *Service) incrementSecondariesCreated() {
	if s.metrics != nil {
		s.metrics.IncrementSecondariesCreated()
	}
}

func (s *Service) incrementPrimaryRaceRetries() {
	if s.metrics != nil {
		s.metrics.IncrementPrimaryRaceRetries()
	}
}

func (s *Service) incrementFingerprintFailures() {
	if s.metrics != nil {
		s.metrics.IncrementFingerprintFailures()
	}
}

func (s *Service) observeIdentify(start time.Time) {
	if s.metrics != nil {
		s.metrics.ObserveIdentify(start)
	}
}
