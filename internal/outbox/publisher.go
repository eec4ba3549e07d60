// Package outbox relays committed ledger events to the message broker.
package outbox

import (
	"context"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/robertarktes/rail-booking/internal/adapters/crdb"
	"github.com/robertarktes/rail-booking/internal/observability"
	"golang.org/x/sync/errgroup"
)

const (
	batchSize = 10
	// claimLease bounds how long a claimed batch is hidden from other
	// publishers. Records left unpublished become claimable again after it.
	claimLease = time.Minute
)

type Store interface {
	ClaimOutbox(ctx context.Context, limit int, lease time.Duration) ([]crdb.OutboxRecord, error)
	MarkPublished(ctx context.Context, id uuid.UUID, publishedAt time.Time) error
	MarkFailed(ctx context.Context, id uuid.UUID) error
}

type Broker interface {
	Publish(ctx context.Context, key string, msg amqp.Publishing) error
}

// routes maps outbox event types to broker routing keys.
var routes = map[string]string{
	crdb.EventBookingSubmitted: "booking.submitted",
}

type Publisher struct {
	store    Store
	broker   Broker
	logger   observability.Logger
	interval time.Duration
	now      func() time.Time
}

func NewPublisher(store Store, broker Broker, logger observability.Logger, interval time.Duration) *Publisher {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &Publisher{store: store, broker: broker, logger: logger, interval: interval, now: time.Now}
}

func (p *Publisher) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.logger.Info("outbox publisher started")
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := p.PublishBatch(ctx); err != nil {
				p.logger.WithError(err).Warn("outbox batch failed")
			}
		}
	}
}

// PublishBatch claims and relays up to one batch of pending records and
// returns how many were published. Records that fail to publish stay
// pending and are retried once their claim lapses.
func (p *Publisher) PublishBatch(ctx context.Context) (int, error) {
	records, err := p.store.ClaimOutbox(ctx, batchSize, claimLease)
	if err != nil {
		return 0, err
	}
	if len(records) == 0 {
		observability.OutboxLag.Set(0)
		return 0, nil
	}
	observability.OutboxLag.Set(p.now().Sub(records[0].CreatedAt).Seconds())

	published := make([]bool, len(records))
	g, gctx := errgroup.WithContext(ctx)
	for i, rec := range records {
		g.Go(func() error {
			published[i] = p.relay(gctx, rec)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}

	n := 0
	for _, ok := range published {
		if ok {
			n++
		}
	}
	return n, nil
}

func (p *Publisher) relay(ctx context.Context, rec crdb.OutboxRecord) bool {
	log := p.logger.WithField("outbox_id", rec.ID.String()).WithField("event_type", rec.EventType)
	key, ok := routes[rec.EventType]
	if !ok {
		log.Error("no route for outbox event, parking it")
		if err := p.store.MarkFailed(ctx, rec.ID); err != nil {
			log.WithError(err).Error("failed to park outbox record")
		}
		return false
	}

	msg := amqp.Publishing{
		MessageId:   rec.DedupeKey,
		ContentType: "application/json",
		Timestamp:   rec.CreatedAt,
		Type:        rec.EventType,
		Body:        rec.Payload,
	}
	if err := p.broker.Publish(ctx, key, msg); err != nil {
		log.WithError(err).Warn("outbox publish failed")
		return false
	}
	if err := p.store.MarkPublished(ctx, rec.ID, p.now()); err != nil {
		log.WithError(err).Error("published but could not mark outbox record")
		return false
	}
	return true
}
