package catalog

import (
	"context"
	"fmt"
)

// SearchQuery is the request sent to the train inventory service.
type SearchQuery struct {
	From  string
	To    string
	Date  string
	Page  int
	Limit int
}

func (q SearchQuery) String() string {
	return fmt.Sprintf("%s->%s on %s page %d/%d", q.From, q.To, q.Date, q.Page, q.Limit)
}

// SearchResult mirrors the inventory service response body.
type SearchResult struct {
	Success    bool          `json:"success"`
	Message    string        `json:"message,omitempty"`
	Trains     []TrainRecord `json:"trains"`
	Pagination Pagination    `json:"pagination"`
}

type Pagination struct {
	Total int `json:"total"`
}

type TrainRecord struct {
	Name          string        `json:"name"`
	Number        string        `json:"number,omitempty"`
	Route         Route         `json:"route"`
	DepartureTime string        `json:"departureTime"`
	ArrivalTime   string        `json:"arrivalTime"`
	Classes       []ClassRecord `json:"classes"`
}

type Route struct {
	From string `json:"from"`
	To   string `json:"to"`
}

type ClassRecord struct {
	Type      string  `json:"type"`
	Capacity  int     `json:"capacity"`
	Available int     `json:"available"`
	Price     float64 `json:"price"`
}

// Searcher queries a train inventory.
type Searcher interface {
	Search(ctx context.Context, q SearchQuery) (SearchResult, error)
}
