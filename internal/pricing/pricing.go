// Package pricing derives the fare breakdown of a booking draft.
package pricing

import (
	"math"

	"github.com/robertarktes/rail-booking/internal/domain"
)

// ServiceChargeRate is applied once per booking, not per passenger.
const ServiceChargeRate = 0.05

// Compute returns the pricing for the selected class and passenger count.
// A nil class yields zero fares with the passenger count still recorded.
func Compute(class *domain.FareClass, passengerCount int) domain.Pricing {
	p := domain.Pricing{NumberOfPassengers: passengerCount}
	if class == nil {
		return p
	}
	p.BaseFare = class.PriceValue
	p.ServiceCharge = ServiceCharge(class.PriceValue)
	p.TotalPrice = p.BaseFare*int64(passengerCount) + p.ServiceCharge
	return p
}

func ServiceCharge(baseFare int64) int64 {
	return int64(math.Round(float64(baseFare) * ServiceChargeRate))
}
