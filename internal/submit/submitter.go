// Package submit performs the one-shot create-booking call for a finalized
// booking draft.
package submit

import (
	"context"
	"time"

	"github.com/robertarktes/rail-booking/internal/domain"
	"github.com/robertarktes/rail-booking/internal/observability"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// BookingAPI is the external booking-creation service.
type BookingAPI interface {
	CreateBooking(ctx context.Context, idempotencyKey string, req BookingRequest) (BookingResponse, error)
}

// Recorder is told about every booking the service accepted.
type Recorder interface {
	RecordSubmission(ctx context.Context, booking domain.SubmittedBooking) error
}

type Submitter struct {
	api      BookingAPI
	timeout  time.Duration
	logger   observability.Logger
	recorder Recorder
	now      func() time.Time
}

type Option func(*Submitter)

func WithRecorder(r Recorder) Option {
	return func(s *Submitter) { s.recorder = r }
}

func New(api BookingAPI, timeout time.Duration, logger observability.Logger, opts ...Option) *Submitter {
	s := &Submitter{api: api, timeout: timeout, logger: logger, now: time.Now}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Submit sends the draft exactly once. The draft is never modified.
func (s *Submitter) Submit(ctx context.Context, draft *domain.BookingDraft, session domain.Session) (BookingResponse, error) {
	if session.UserID == "" {
		observability.Submissions.WithLabelValues("no_session").Inc()
		return BookingResponse{}, &domain.SubmissionError{Reason: "no active session", Cause: domain.ErrNoSession}
	}
	if draft == nil || draft.Train == nil {
		return BookingResponse{}, &domain.SubmissionError{Reason: "draft has no train selected", Cause: domain.ErrInvalidInput}
	}
	snapshot := draft.Clone()
	req := BuildRequest(snapshot, session)
	log := s.logger.WithField("booking_reference", snapshot.BookingReference)

	ctx, span := otel.Tracer("submit").Start(ctx, "booking.submit")
	defer span.End()
	span.SetAttributes(
		attribute.String("booking.reference", snapshot.BookingReference),
		attribute.Int("booking.passengers", req.NumTickets),
	)

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	resp, err := s.api.CreateBooking(ctx, snapshot.BookingReference, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "create booking failed")
		observability.Submissions.WithLabelValues("error").Inc()
		log.WithError(err).Warn("create booking call failed")
		return BookingResponse{}, &domain.SubmissionError{Reason: "booking service unreachable", Cause: err}
	}
	if !resp.Success {
		span.SetStatus(codes.Error, "booking rejected")
		observability.Submissions.WithLabelValues("rejected").Inc()
		reason := resp.Message
		if reason == "" {
			reason = "booking rejected"
		}
		log.WithField("reason", reason).Warn("booking rejected by service")
		return resp, &domain.SubmissionError{Reason: reason}
	}

	observability.Submissions.WithLabelValues("ok").Inc()
	log.Info("booking submitted")

	if s.recorder != nil {
		rec := domain.NewSubmittedBooking(snapshot, session.UserID, s.now())
		if err := s.recorder.RecordSubmission(context.WithoutCancel(ctx), rec); err != nil {
			log.WithError(err).Error("failed to record submitted booking")
		}
	}
	return resp, nil
}
