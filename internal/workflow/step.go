package workflow

import "strconv"

type Step int

const (
	Home       Step = 1
	Search     Step = 2
	Confirm    Step = 3
	Passengers Step = 4
	Summary    Step = 5
)

func (s Step) String() string {
	switch s {
	case Home:
		return "home"
	case Search:
		return "search"
	case Confirm:
		return "confirm"
	case Passengers:
		return "passengers"
	case Summary:
		return "summary"
	}
	return "step(" + strconv.Itoa(int(s)) + ")"
}

// next is the forward transition table. Home and Summary have no successor.
var next = map[Step]Step{
	Search:     Confirm,
	Confirm:    Passengers,
	Passengers: Summary,
}

var prev = map[Step]Step{
	Confirm:    Search,
	Passengers: Confirm,
}
