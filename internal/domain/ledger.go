package domain

import (
	"time"

	"github.com/google/uuid"
)

// SubmittedBooking is the local ledger record of a booking accepted by the
// booking-creation service.
type SubmittedBooking struct {
	ID               uuid.UUID `json:"id"`
	BookingReference string    `json:"bookingReference"`
	UserID           string    `json:"userId"`
	TrainNumber      string    `json:"trainNumber"`
	FareClass        string    `json:"fareClass"`
	DepartureDate    string    `json:"departureDate"`
	PaymentMethod    string    `json:"paymentMethod"`
	TotalPrice       int64     `json:"totalPrice"`
	Seats            []string  `json:"seats"`
	SubmittedAt      time.Time `json:"submittedAt"`
}

func NewSubmittedBooking(draft *BookingDraft, userID string, now time.Time) SubmittedBooking {
	sb := SubmittedBooking{
		ID:               uuid.New(),
		BookingReference: draft.BookingReference,
		UserID:           userID,
		PaymentMethod:    draft.PaymentMethod,
		TotalPrice:       draft.Pricing.TotalPrice,
		SubmittedAt:      now.UTC(),
	}
	if draft.Train != nil {
		sb.TrainNumber = draft.Train.Number
		sb.FareClass = draft.Train.FareClass
		sb.DepartureDate = draft.Train.DepartureDate
		sb.Seats = append([]string(nil), draft.Train.Seats...)
	}
	return sb
}
