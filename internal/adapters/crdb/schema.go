package crdb

import "context"

const schema = `
CREATE TABLE IF NOT EXISTS submitted_bookings (
	id UUID PRIMARY KEY,
	booking_reference TEXT NOT NULL UNIQUE,
	user_id TEXT NOT NULL,
	train_number TEXT,
	fare_class TEXT,
	departure_date TEXT,
	payment_method TEXT,
	total_price INT8 NOT NULL,
	seats TEXT[],
	submitted_at TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS outbox (
	id UUID PRIMARY KEY,
	aggregate_type TEXT NOT NULL,
	aggregate_id UUID NOT NULL,
	event_type TEXT NOT NULL,
	payload_json JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	published_at TIMESTAMPTZ,
	status TEXT NOT NULL CHECK (status IN ('NEW', 'PUBLISHED', 'FAILED')),
	dedupe_key TEXT,
	claimed_until TIMESTAMPTZ
);
ALTER TABLE outbox ADD COLUMN IF NOT EXISTS claimed_until TIMESTAMPTZ;
`

// EnsureSchema creates the ledger and outbox tables if they are missing.
func (r *Repository) EnsureSchema(ctx context.Context) error {
	_, err := r.pool.Exec(ctx, schema)
	return err
}
