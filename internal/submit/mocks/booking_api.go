package mocks

import (
	"context"

	"github.com/robertarktes/rail-booking/internal/domain"
	"github.com/robertarktes/rail-booking/internal/submit"
	"github.com/stretchr/testify/mock"
)

// MockBookingAPI is a mock implementation of submit.BookingAPI
type MockBookingAPI struct {
	mock.Mock
}

func (m *MockBookingAPI) CreateBooking(ctx context.Context, idempotencyKey string, req submit.BookingRequest) (submit.BookingResponse, error) {
	args := m.Called(ctx, idempotencyKey, req)
	return args.Get(0).(submit.BookingResponse), args.Error(1)
}

// MockRecorder is a mock implementation of submit.Recorder
type MockRecorder struct {
	mock.Mock
}

func (m *MockRecorder) RecordSubmission(ctx context.Context, booking domain.SubmittedBooking) error {
	args := m.Called(ctx, booking)
	return args.Error(0)
}
