package audit

import (
	"bytes"
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"contactlink/pkg/requestcontext"
)

type PublisherSuite struct {
	suite.Suite
	logger *slog.Logger
}

func TestPublisherSuite(t *testing.T) {
	suite.Run(t, new(PublisherSuite))
}

func (s *PublisherSuite) SetupTest() {
	s.logger = slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
}

func (s *PublisherSuite) TestEmitStampsContextMetadata() {
	now := time.Date(2023, 4, 1, 12, 0, 0, 0, time.UTC)
	ctx := requestcontext.WithRequestID(requestcontext.WithTime(context.Background(), now), "req-42")

	publisher := NewPublisher(4, s.logger)
	publisher.Emit(ctx, Event{
		Action:           ActionIdentityCreated,
		ContactID:        "c1",
		PrimaryContactID: "c1",
	})

	event := <-publisher.Inbox()
	s.Equal(now, event.Timestamp)
	s.Equal("req-42", event.RequestID)
}

func (s *PublisherSuite) TestEmitKeepsExistingMetadata() {
	stamped := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	ctx := requestcontext.WithRequestID(context.Background(), "req-other")

	publisher := NewPublisher(4, s.logger)
	publisher.Emit(ctx, Event{
		Action:    ActionIdentityLinked,
		Timestamp: stamped,
		RequestID: "req-original",
	})

	event := <-publisher.Inbox()
	s.Equal(stamped, event.Timestamp)
	s.Equal("req-original", event.RequestID)
}

// TestEmitNeverBlocks verifies a full inbox drops events instead of stalling
// the caller.
func (s *PublisherSuite) TestEmitNeverBlocks() {
	publisher := NewPublisher(2, s.logger)
	ctx := context.Background()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 10; i++ {
			publisher.Emit(ctx, Event{Action: ActionIdentityCreated})
		}
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		s.Fail("Emit blocked on a full inbox")
	}
	s.Len(publisher.Inbox(), 2, "overflow events are dropped, not queued")
}

func (s *PublisherSuite) TestWorkerPersistsEvents() {
	publisher := NewPublisher(8, s.logger)
	store := NewInMemoryStore()
	worker := NewWorker(store, publisher.Inbox(), s.logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = worker.Run(ctx) }()

	publisher.Emit(ctx, Event{Action: ActionIdentityCreated, ContactID: "c1", PrimaryContactID: "c1"})
	publisher.Emit(ctx, Event{Action: ActionIdentityLinked, ContactID: "c2", PrimaryContactID: "c1"})

	s.Require().Eventually(func() bool {
		return len(store.Events()) == 2
	}, 2*time.Second, 10*time.Millisecond)

	events := store.Events()
	s.Equal(ActionIdentityCreated, events[0].Action)
	s.Equal(ActionIdentityLinked, events[1].Action)
	s.Equal("c1", events[1].PrimaryContactID)
}

// failingStore rejects every append.
type failingStore struct{}

func (failingStore) Append(context.Context, Event) error {
	return context.DeadlineExceeded
}

func (s *PublisherSuite) TestWorkerSurvivesStoreFailures() {
	publisher := NewPublisher(8, s.logger)
	worker := NewWorker(failingStore{}, publisher.Inbox(), s.logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = worker.Run(ctx) }()

	for i := 0; i < 5; i++ {
		publisher.Emit(ctx, Event{Action: ActionIdentityCreated})
	}

	// The worker keeps draining despite append failures.
	s.Require().Eventually(func() bool {
		return len(publisher.Inbox()) == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func (s *PublisherSuite) TestHashFingerprint() {
	s.Equal(HashFingerprint("visitor-1"), HashFingerprint("visitor-1"))
	s.NotEqual(HashFingerprint("visitor-1"), HashFingerprint("visitor-2"))
	s.NotContains(HashFingerprint("visitor-1"), "visitor")
	s.Len(HashFingerprint("visitor-1"), 64)
}
