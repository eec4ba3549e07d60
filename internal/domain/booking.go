package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "Pending"
	PaymentConfirmed PaymentStatus = "Confirmed"
)

// BookingDraft is the in-progress reservation owned by one workflow session.
type BookingDraft struct {
	BookingReference string         `json:"bookingReference"`
	BookingDate      time.Time      `json:"bookingDate"`
	PaymentStatus    PaymentStatus  `json:"paymentStatus"`
	PaymentMethod    string         `json:"paymentMethod,omitempty"`
	Train            *SelectedTrain `json:"train,omitempty"`
	Passengers       []Passenger    `json:"passengers"`
	Pricing          Pricing        `json:"pricing"`
}

type SelectedTrain struct {
	Key                string   `json:"key"`
	Name               string   `json:"name"`
	Number             string   `json:"number"`
	OriginStation      string   `json:"originStation"`
	DestinationStation string   `json:"destinationStation"`
	DepartureDate      string   `json:"departureDate"`
	DepartureTime      string   `json:"departureTime"`
	ArrivalTime        string   `json:"arrivalTime"`
	FareClass          string   `json:"fareClass"`
	FareClassID        string   `json:"fareClassId"`
	Coach              string   `json:"coach"`
	Seats              []string `json:"seats"`
}

type Pricing struct {
	BaseFare           int64 `json:"baseFare"`
	NumberOfPassengers int   `json:"numberOfPassengers"`
	ServiceCharge      int64 `json:"serviceCharge"`
	TotalPrice         int64 `json:"totalPrice"`
}

// IsSet reports whether fares were derived from a selected fare class.
func (p Pricing) IsSet() bool {
	return p.BaseFare != 0 || p.TotalPrice != 0
}

type Passenger struct {
	ID             int    `json:"id"`
	Type           string `json:"type"`
	Title          string `json:"title"`
	FirstName      string `json:"firstName"`
	LastName       string `json:"lastName"`
	IDType         string `json:"idType"`
	IDNumber       string `json:"idNumber"`
	Gender         string `json:"gender"`
	Age            int    `json:"age"`
	SeatPreference string `json:"seatPreference"`
	MealPreference string `json:"mealPreference"`
	SeatNumber     string `json:"seatNumber"`
}

// PassengerPatch carries the fields a caller wants to change; nil fields are left alone.
type PassengerPatch struct {
	Type           *string `json:"type,omitempty"`
	Title          *string `json:"title,omitempty"`
	FirstName      *string `json:"firstName,omitempty"`
	LastName       *string `json:"lastName,omitempty"`
	IDType         *string `json:"idType,omitempty"`
	IDNumber       *string `json:"idNumber,omitempty"`
	Gender         *string `json:"gender,omitempty"`
	Age            *int    `json:"age,omitempty"`
	SeatPreference *string `json:"seatPreference,omitempty"`
	MealPreference *string `json:"mealPreference,omitempty"`
}

// Session identifies the caller on whose behalf a booking is submitted.
type Session struct {
	UserID    string
	IPAddress string
}

func NewBookingReference() string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	return "TKT" + strings.ToUpper(id[:10])
}

func NewDraft(now time.Time) *BookingDraft {
	return &BookingDraft{
		BookingReference: NewBookingReference(),
		BookingDate:      now.UTC().Truncate(24 * time.Hour),
		PaymentStatus:    PaymentPending,
		Passengers:       []Passenger{},
	}
}

// Clone returns a deep copy of the draft.
func (d *BookingDraft) Clone() *BookingDraft {
	if d == nil {
		return nil
	}
	out := *d
	if d.Train != nil {
		t := *d.Train
		t.Seats = append([]string(nil), d.Train.Seats...)
		out.Train = &t
	}
	out.Passengers = append([]Passenger(nil), d.Passengers...)
	return &out
}
