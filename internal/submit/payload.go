package submit

import "github.com/robertarktes/rail-booking/internal/domain"

// BookingRequest is the create-booking body.
type BookingRequest struct {
	UserID        string             `json:"userId"`
	TicketID      string             `json:"ticketId"`
	NumTickets    int                `json:"numTickets"`
	PaymentMethod string             `json:"paymentMethod"`
	Price         int64              `json:"price"`
	IPAddress     string             `json:"ipAddress"`
	Passengers    []PassengerPayload `json:"passengers"`
	TrainDetails  TrainDetails       `json:"trainDetails"`
}

type PassengerPayload struct {
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

type TrainDetails struct {
	TrainID          string `json:"trainId"`
	TrainName        string `json:"trainName"`
	TrainNumber      string `json:"trainNumber"`
	Class            string `json:"class"`
	DepartureStation string `json:"departureStation"`
	ArrivalStation   string `json:"arrivalStation"`
	DepartureDate    string `json:"departureDate"`
	DepartureTime    string `json:"departureTime"`
	ArrivalTime      string `json:"arrivalTime"`
}

type BookingResponse struct {
	Success   bool   `json:"success"`
	Message   string `json:"message,omitempty"`
	BookingID string `json:"bookingId,omitempty"`
}

// BuildRequest maps a finalized draft onto the create-booking body.
func BuildRequest(draft *domain.BookingDraft, session domain.Session) BookingRequest {
	req := BookingRequest{
		UserID:        session.UserID,
		TicketID:      draft.BookingReference,
		NumTickets:    draft.Pricing.NumberOfPassengers,
		PaymentMethod: draft.PaymentMethod,
		Price:         draft.Pricing.TotalPrice,
		IPAddress:     session.IPAddress,
		Passengers:    make([]PassengerPayload, 0, len(draft.Passengers)),
	}
	for _, p := range draft.Passengers {
		req.Passengers = append(req.Passengers, PassengerPayload{
			Title:          p.Title,
			FirstName:      p.FirstName,
			LastName:       p.LastName,
			IDType:         p.IDType,
			IDNumber:       p.IDNumber,
			Gender:         p.Gender,
			Age:            p.Age,
			SeatPreference: p.SeatPreference,
			MealPreference: p.MealPreference,
			SeatNumber:     p.SeatNumber,
		})
	}
	if t := draft.Train; t != nil {
		req.TrainDetails = TrainDetails{
			TrainID:          t.Key,
			TrainName:        t.Name,
			TrainNumber:      t.Number,
			Class:            t.FareClass,
			DepartureStation: t.OriginStation,
			ArrivalStation:   t.DestinationStation,
			DepartureDate:    t.DepartureDate,
			DepartureTime:    t.DepartureTime,
			ArrivalTime:      t.ArrivalTime,
		}
	}
	return req
}
