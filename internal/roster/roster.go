// Package roster keeps the ordered passenger records of a booking draft.
package roster

import (
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/robertarktes/rail-booking/internal/domain"
)

const DefaultPassengerType = "Adult"

type Roster struct {
	passengers []domain.Passenger
}

func New(count int) *Roster {
	r := &Roster{}
	r.Resize(count)
	return r
}

// Build returns count default records with ids 1..count.
func Build(count int) []domain.Passenger {
	if count < 0 {
		count = 0
	}
	out := make([]domain.Passenger, count)
	for i := range out {
		out[i] = defaultPassenger(i)
	}
	return out
}

func defaultPassenger(index int) domain.Passenger {
	p := domain.Passenger{ID: index + 1, Type: DefaultPassengerType}
	if index == 0 {
		p.Title, p.Gender, p.SeatPreference, p.MealPreference = "Mr.", "Male", "Window", "Regular"
	} else {
		p.Title, p.Gender, p.SeatPreference, p.MealPreference = "Mrs.", "Female", "Aisle", "Vegetarian"
	}
	return p
}

// Resize rebuilds the roster to exactly count records. Previously entered
// data is discarded.
func (r *Roster) Resize(count int) {
	r.passengers = Build(count)
}

func (r *Roster) Len() int {
	return len(r.passengers)
}

// Update applies patch to the passenger with the given id. Order and length
// never change.
func (r *Roster) Update(id int, patch domain.PassengerPatch) error {
	if id < 1 || id > len(r.passengers) {
		ve := domain.NewValidationError("passengers", "unknown passenger")
		ve.Add(fmt.Sprintf("passenger %d", id), "id")
		return ve
	}
	p := &r.passengers[id-1]
	setString(&p.Type, patch.Type)
	setString(&p.Title, patch.Title)
	setString(&p.FirstName, patch.FirstName)
	setString(&p.LastName, patch.LastName)
	setString(&p.IDType, patch.IDType)
	setString(&p.IDNumber, patch.IDNumber)
	setString(&p.Gender, patch.Gender)
	setString(&p.SeatPreference, patch.SeatPreference)
	setString(&p.MealPreference, patch.MealPreference)
	if patch.Age != nil {
		p.Age = *patch.Age
	}
	return nil
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

// Validate reports every passenger missing firstName, lastName, idNumber or age.
func (r *Roster) Validate() error {
	ve := domain.NewValidationError("passengers", "incomplete passenger details")
	for _, p := range r.passengers {
		owner := fmt.Sprintf("passenger %d", p.ID)
		if p.FirstName == "" {
			ve.Add(owner, "firstName")
		}
		if p.LastName == "" {
			ve.Add(owner, "lastName")
		}
		if p.IDNumber == "" {
			ve.Add(owner, "idNumber")
		}
		if p.Age <= 0 {
			ve.Add(owner, "age")
		}
	}
	if ve.HasFields() {
		return ve
	}
	return nil
}

// AssignSeats sets each passenger's seat number from seats by position.
func (r *Roster) AssignSeats(seats []string) error {
	if len(seats) != len(r.passengers) {
		return errors.Newf("assign seats: have %d seats for %d passengers", len(seats), len(r.passengers))
	}
	for i := range r.passengers {
		r.passengers[i].SeatNumber = seats[i]
	}
	return nil
}

func (r *Roster) ClearSeats() {
	for i := range r.passengers {
		r.passengers[i].SeatNumber = ""
	}
}

// Snapshot returns a copy safe to hand out.
func (r *Roster) Snapshot() []domain.Passenger {
	return append([]domain.Passenger{}, r.passengers...)
}
