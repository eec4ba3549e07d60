package domain

// FareClass is a priced seating category offered by one train.
type FareClass struct {
	ID         string `json:"id"`
	Type       string `json:"type"`
	Capacity   int    `json:"capacity"`
	Available  int    `json:"available"`
	PriceValue int64  `json:"priceValue"`
}

// Train is one row of a fetched search page.
type Train struct {
	Key                string      `json:"key"`
	Name               string      `json:"name"`
	Number             string      `json:"number,omitempty"`
	OriginStation      string      `json:"originStation"`
	DestinationStation string      `json:"destinationStation"`
	TravelDate         string      `json:"travelDate"`
	DepartureTime      string      `json:"departureTime"`
	ArrivalTime        string      `json:"arrivalTime"`
	Classes            []FareClass `json:"classes"`
}

func (t Train) Class(id string) (FareClass, int, bool) {
	for i, c := range t.Classes {
		if c.ID == id {
			return c, i, true
		}
	}
	return FareClass{}, -1, false
}

const (
	MinPassengers = 1
	MaxPassengers = 6
)

type TrainSearchCriteria struct {
	OriginStation      string `json:"originStation"`
	DestinationStation string `json:"destinationStation"`
	TravelDate         string `json:"travelDate"`
	PassengerCount     int    `json:"passengerCount"`
	IsReturnTrip       bool   `json:"isReturnTrip"`
}

func DefaultCriteria() TrainSearchCriteria {
	return TrainSearchCriteria{PassengerCount: MinPassengers}
}

func (c TrainSearchCriteria) Validate() error {
	fields := map[string][]string{}
	if c.PassengerCount < MinPassengers || c.PassengerCount > MaxPassengers {
		fields["criteria"] = append(fields["criteria"], "passengerCount")
	}
	if c.OriginStation != "" && c.OriginStation == c.DestinationStation {
		fields["criteria"] = append(fields["criteria"], "destinationStation")
	}
	if len(fields) > 0 {
		return &ValidationError{Step: "search", Message: "invalid search criteria", Fields: fields}
	}
	return nil
}
