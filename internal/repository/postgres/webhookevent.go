package postgres

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/stackbill/stackbill/internal/domain/webhookevent"
	"github.com/stackbill/stackbill/internal/logger"
	"github.com/stackbill/stackbill/internal/postgres"
	"github.com/stackbill/stackbill/internal/types"
)

const webhookEventColumns = `
	id, gateway, event_id, event_type, payload, event_status, attempts,
	last_error, order_id, subscription_id, received_at, processed_at,
	workspace_id, status, created_at, updated_at, created_by, updated_by`

type webhookEventRepository struct {
	db     postgres.IClient
	logger *logger.Logger
}

func NewWebhookEventRepository(db postgres.IClient, logger *logger.Logger) webhookevent.Repository {
	return &webhookEventRepository{db: db, logger: logger}
}

// Insert relies on the unique index over (gateway, event_id): the second
// of two racing deliveries fails with ErrAlreadyExists and defers to the
// first.
func (r *webhookEventRepository) Insert(ctx context.Context, event *webhookevent.WebhookEvent) error {
	query := `
	INSERT INTO webhook_events (` + webhookEventColumns + `
	) VALUES (
		:id, :gateway, :event_id, :event_type, :payload, :event_status, :attempts,
		:last_error, :order_id, :subscription_id, :received_at, :processed_at,
		:workspace_id, :status, :created_at, :updated_at, :created_by, :updated_by
	)`

	if _, err := sqlx.NamedExecContext(ctx, r.db.Querier(ctx), query, event); err != nil {
		return wrapExecErr(err, "webhook event")
	}
	return nil
}

func (r *webhookEventRepository) Get(ctx context.Context, id string) (*webhookevent.WebhookEvent, error) {
	query := `SELECT` + webhookEventColumns + ` FROM webhook_events WHERE id = $1`

	var event webhookevent.WebhookEvent
	if err := r.db.Querier(ctx).GetContext(ctx, &event, query, id); err != nil {
		return nil, wrapGetErr(err, "webhook event")
	}
	return &event, nil
}

func (r *webhookEventRepository) GetByEventID(ctx context.Context, gateway types.PaymentGateway, eventID string) (*webhookevent.WebhookEvent, error) {
	query := `SELECT` + webhookEventColumns + ` FROM webhook_events WHERE gateway = $1 AND event_id = $2`

	var event webhookevent.WebhookEvent
	if err := r.db.Querier(ctx).GetContext(ctx, &event, query, gateway, eventID); err != nil {
		return nil, wrapGetErr(err, "webhook event")
	}
	return &event, nil
}

func (r *webhookEventRepository) Update(ctx context.Context, event *webhookevent.WebhookEvent) error {
	query := `
	UPDATE webhook_events SET
		event_status = :event_status,
		attempts = :attempts,
		last_error = :last_error,
		order_id = :order_id,
		subscription_id = :subscription_id,
		processed_at = :processed_at,
		updated_at = NOW()
	WHERE id = :id`

	if _, err := sqlx.NamedExecContext(ctx, r.db.Querier(ctx), query, event); err != nil {
		return wrapExecErr(err, "webhook event")
	}
	return nil
}
