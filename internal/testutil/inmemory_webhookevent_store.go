package testutil

import (
	"context"
	"sync"

	"github.com/stackbill/stackbill/internal/domain/webhookevent"
	ierr "github.com/stackbill/stackbill/internal/errors"
	"github.com/stackbill/stackbill/internal/types"
)

// InMemoryWebhookEventStore implements webhookevent.Repository with the
// (gateway, event_id) unique constraint the dedup logic relies on.
type InMemoryWebhookEventStore struct {
	*InMemoryStore[*webhookevent.WebhookEvent]
	mu sync.Mutex
}

func NewInMemoryWebhookEventStore() *InMemoryWebhookEventStore {
	return &InMemoryWebhookEventStore{
		InMemoryStore: NewInMemoryStore[*webhookevent.WebhookEvent](),
	}
}

func (s *InMemoryWebhookEventStore) Insert(ctx context.Context, event *webhookevent.WebhookEvent) error {
	if event == nil {
		return ierr.NewError("webhook event cannot be nil").
			WithHint("Webhook event cannot be nil").
			Mark(ierr.ErrValidation)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, _ := s.InMemoryStore.List(ctx, nil, func(_ context.Context, other *webhookevent.WebhookEvent, _ interface{}) bool {
		return other.Gateway == event.Gateway && other.EventID == event.EventID
	}, nil)
	if len(existing) > 0 {
		return ierr.NewError("webhook event already recorded").
			WithHint("An event with this ID was already received").
			Mark(ierr.ErrAlreadyExists)
	}

	return s.InMemoryStore.Create(ctx, event.ID, copyWebhookEvent(event))
}

func (s *InMemoryWebhookEventStore) Get(ctx context.Context, id string) (*webhookevent.WebhookEvent, error) {
	event, err := s.InMemoryStore.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return copyWebhookEvent(event), nil
}

func (s *InMemoryWebhookEventStore) GetByEventID(ctx context.Context, gateway types.PaymentGateway, eventID string) (*webhookevent.WebhookEvent, error) {
	events, _ := s.InMemoryStore.List(ctx, nil, func(_ context.Context, event *webhookevent.WebhookEvent, _ interface{}) bool {
		return event.Gateway == gateway && event.EventID == eventID
	}, nil)
	if len(events) == 0 {
		return nil, ierr.NewError("webhook event not found").
			WithHint("No event with this ID").
			Mark(ierr.ErrNotFound)
	}
	return copyWebhookEvent(events[0]), nil
}

func (s *InMemoryWebhookEventStore) Update(ctx context.Context, event *webhookevent.WebhookEvent) error {
	return s.InMemoryStore.Update(ctx, event.ID, copyWebhookEvent(event))
}

func copyWebhookEvent(event *webhookevent.WebhookEvent) *webhookevent.WebhookEvent {
	clone := *event
	return &clone
}
