package crdb

import (
	"context"
	"encoding/json"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/robertarktes/rail-booking/internal/domain"
	"github.com/robertarktes/rail-booking/internal/observability"
)

const (
	SerializationFailureCode = "40001"
	UniqueViolationCode      = "23505"

	EventBookingSubmitted = "booking.submitted"
	AggregateBooking      = "booking"
)

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

func (r *Repository) WithTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	start := time.Now()
	defer func() {
		observability.DBTxDuration.Observe(time.Since(start).Seconds())
	}()

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, "SET TRANSACTION ISOLATION LEVEL SERIALIZABLE")
	if err != nil {
		return err
	}

	err = fn(tx)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			switch pgErr.Code {
			case SerializationFailureCode:
				return domain.ErrSerializationFailure
			case UniqueViolationCode:
				return domain.ErrConflict
			}
		}
		return err
	}

	return tx.Commit(ctx)
}

// RecordSubmission stores an accepted booking and its outbox event in one
// transaction. A second record for the same booking reference is a conflict.
func (r *Repository) RecordSubmission(ctx context.Context, b domain.SubmittedBooking) error {
	payload, err := json.Marshal(submittedEvent(b))
	if err != nil {
		return errors.Wrap(err, "encode booking.submitted payload")
	}
	return r.WithTx(ctx, func(tx pgx.Tx) error {
		if err := r.insertBooking(ctx, tx, b); err != nil {
			return err
		}
		return r.InsertOutbox(ctx, tx, OutboxRecord{
			ID:            uuid.New(),
			AggregateType: AggregateBooking,
			AggregateID:   b.ID,
			EventType:     EventBookingSubmitted,
			Payload:       payload,
			DedupeKey:     b.BookingReference,
		})
	})
}

func (r *Repository) insertBooking(ctx context.Context, tx pgx.Tx, b domain.SubmittedBooking) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO submitted_bookings (id, booking_reference, user_id, train_number, fare_class,
			departure_date, payment_method, total_price, seats, submitted_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, b.ID, b.BookingReference, b.UserID, b.TrainNumber, b.FareClass,
		b.DepartureDate, b.PaymentMethod, b.TotalPrice, b.Seats, b.SubmittedAt)
	return err
}

func (r *Repository) GetSubmission(ctx context.Context, reference string) (*domain.SubmittedBooking, error) {
	var b domain.SubmittedBooking
	err := r.pool.QueryRow(ctx, `
		SELECT id, booking_reference, user_id, train_number, fare_class, departure_date,
			payment_method, total_price, seats, submitted_at
		FROM submitted_bookings WHERE booking_reference = $1
	`, reference).Scan(&b.ID, &b.BookingReference, &b.UserID, &b.TrainNumber, &b.FareClass,
		&b.DepartureDate, &b.PaymentMethod, &b.TotalPrice, &b.Seats, &b.SubmittedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// SubmittedEvent is the payload of a booking.submitted outbox event.
type SubmittedEvent struct {
	BookingID        uuid.UUID `json:"bookingId"`
	BookingReference string    `json:"bookingReference"`
	UserID           string    `json:"userId"`
	TrainNumber      string    `json:"trainNumber"`
	FareClass        string    `json:"fareClass"`
	DepartureDate    string    `json:"departureDate"`
	TotalPrice       int64     `json:"totalPrice"`
	Seats            []string  `json:"seats"`
	SubmittedAt      time.Time `json:"submittedAt"`
}

func submittedEvent(b domain.SubmittedBooking) SubmittedEvent {
	return SubmittedEvent{
		BookingID:        b.ID,
		BookingReference: b.BookingReference,
		UserID:           b.UserID,
		TrainNumber:      b.TrainNumber,
		FareClass:        b.FareClass,
		DepartureDate:    b.DepartureDate,
		TotalPrice:       b.TotalPrice,
		Seats:            b.Seats,
		SubmittedAt:      b.SubmittedAt,
	}
}
