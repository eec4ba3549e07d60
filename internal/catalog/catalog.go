// Package catalog owns the fetched page of trains for a booking workflow,
// its pagination state and the train/fare-class selection.
package catalog

import (
	"context"
	"math"
	"strconv"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/robertarktes/rail-booking/internal/domain"
	"github.com/robertarktes/rail-booking/internal/observability"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var errSearchUnsuccessful = errors.New("inventory reported an unsuccessful search")

type Catalog struct {
	searcher Searcher
	pageSize int
	timeout  time.Duration
	logger   observability.Logger

	mu       sync.Mutex
	gen      uint64
	hasQuery bool
	loading  bool

	// query is the last query issued, shown the one that produced the page.
	query SearchQuery
	shown SearchQuery
	reset bool

	page       int
	total      int
	totalPages int
	trains     []domain.Train
	lastErr    *domain.FetchError

	selection     Selection
	selectedTrain domain.Train
}

func New(searcher Searcher, pageSize int, timeout time.Duration, logger observability.Logger) *Catalog {
	if pageSize <= 0 {
		pageSize = 10
	}
	return &Catalog{searcher: searcher, pageSize: pageSize, timeout: timeout, logger: logger}
}

// View is a read-only copy of the catalog state.
type View struct {
	Trains     []domain.Train `json:"trains"`
	Page       int            `json:"page"`
	PageSize   int            `json:"pageSize"`
	Total      int            `json:"total"`
	TotalPages int            `json:"totalPages"`
	Loading    bool           `json:"loading"`
	Error      string         `json:"error,omitempty"`
	CanRetry   bool           `json:"canRetry"`
	Selection  Selection      `json:"selection"`
}

func (c *Catalog) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()
	v := View{
		Trains:     append([]domain.Train{}, c.trains...),
		Page:       c.page,
		PageSize:   c.pageSize,
		Total:      c.total,
		TotalPages: c.totalPages,
		Loading:    c.loading,
		Selection:  c.selection,
	}
	if c.lastErr != nil {
		v.Error = c.lastErr.Error()
		v.CanRetry = true
	}
	return v
}

// Search starts a new query at page 1. The selection is cleared once the
// new query's result is accepted; a failed or superseded query leaves it.
func (c *Catalog) Search(ctx context.Context, criteria domain.TrainSearchCriteria) error {
	ve := domain.NewValidationError("search", "incomplete search criteria")
	if criteria.OriginStation == "" {
		ve.Add("criteria", "originStation")
	}
	if criteria.DestinationStation == "" {
		ve.Add("criteria", "destinationStation")
	}
	if criteria.TravelDate == "" {
		ve.Add("criteria", "travelDate")
	}
	if ve.HasFields() {
		return ve
	}

	return c.fetch(ctx, SearchQuery{
		From:  criteria.OriginStation,
		To:    criteria.DestinationStation,
		Date:  criteria.TravelDate,
		Page:  1,
		Limit: c.pageSize,
	}, true)
}

// SetPage fetches another page of the query shown. Pages outside
// [1, totalPages] are ignored and reported as false.
func (c *Catalog) SetPage(ctx context.Context, page int) (bool, error) {
	c.mu.Lock()
	if c.totalPages == 0 || page < 1 || page > c.totalPages {
		c.mu.Unlock()
		return false, nil
	}
	q := c.shown
	c.mu.Unlock()

	q.Page = page
	return true, c.fetch(ctx, q, false)
}

// Retry reissues the last query unchanged.
func (c *Catalog) Retry(ctx context.Context) error {
	c.mu.Lock()
	if !c.hasQuery {
		c.mu.Unlock()
		return errors.Wrap(domain.ErrInvalidInput, "nothing to retry")
	}
	q, reset := c.query, c.reset
	c.mu.Unlock()
	return c.fetch(ctx, q, reset)
}

// fetch runs q. With reset set, an accepted result also clears the selection.
func (c *Catalog) fetch(ctx context.Context, q SearchQuery, reset bool) error {
	c.mu.Lock()
	c.gen++
	gen := c.gen
	c.query = q
	c.reset = reset
	c.hasQuery = true
	c.loading = true
	c.mu.Unlock()

	ctx, span := otel.Tracer("catalog").Start(ctx, "catalog.search")
	defer span.End()
	span.SetAttributes(
		attribute.String("search.from", q.From),
		attribute.String("search.to", q.To),
		attribute.Int("search.page", q.Page),
	)

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	start := time.Now()
	res, err := c.searcher.Search(ctx, q)
	observability.SearchDuration.Observe(time.Since(start).Seconds())
	if err == nil && !res.Success {
		err = errSearchUnsuccessful
		if res.Message != "" {
			err = errors.Wrap(errSearchUnsuccessful, res.Message)
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.gen {
		observability.SearchFetches.WithLabelValues("superseded").Inc()
		return domain.ErrSuperseded
	}
	c.loading = false

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "search failed")
		observability.SearchFetches.WithLabelValues("error").Inc()
		c.logger.WithField("query", q.String()).WithError(err).Warn("train search failed")
		c.lastErr = &domain.FetchError{Query: q.String(), Cause: err}
		return c.lastErr
	}

	observability.SearchFetches.WithLabelValues("ok").Inc()
	c.lastErr = nil
	c.reset = false
	if reset {
		c.selection = Selection{}
		c.selectedTrain = domain.Train{}
	}
	c.shown = q
	c.page = q.Page
	c.total = res.Pagination.Total
	c.totalPages = int(math.Ceil(float64(res.Pagination.Total) / float64(q.Limit)))
	c.trains = normalize(res.Trains, q.Date)
	return nil
}

// normalize stamps each train with the travel date it was offered for.
func normalize(records []TrainRecord, date string) []domain.Train {
	out := make([]domain.Train, 0, len(records))
	for _, r := range records {
		t := domain.Train{
			Key:                trainKey(r),
			Name:               r.Name,
			Number:             r.Number,
			OriginStation:      r.Route.From,
			DestinationStation: r.Route.To,
			TravelDate:         date,
			DepartureTime:      r.DepartureTime,
			ArrivalTime:        r.ArrivalTime,
			Classes:            make([]domain.FareClass, 0, len(r.Classes)),
		}
		for i, cl := range r.Classes {
			t.Classes = append(t.Classes, domain.FareClass{
				ID:         t.Key + ":" + strconv.Itoa(i),
				Type:       cl.Type,
				Capacity:   cl.Capacity,
				Available:  cl.Available,
				PriceValue: int64(math.Round(cl.Price)),
			})
		}
		out = append(out, t)
	}
	return out
}

// Trains without a number are keyed by name and departure time.
func trainKey(r TrainRecord) string {
	if r.Number != "" {
		return r.Number
	}
	return r.Name + "@" + r.DepartureTime
}

// Select applies the selection transition for a train on the current page
// and returns the new selection.
func (c *Catalog) Select(trainKey, classID string) (Selection, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	train, ok := c.lookup(trainKey)
	if !ok {
		ve := domain.NewValidationError("search", "unknown train")
		ve.Add("selection", "trainKey")
		return c.selection, ve
	}
	next, err := NextSelection(c.selection, train, classID)
	if err != nil {
		return c.selection, err
	}
	c.selection = next
	if next.IsZero() {
		c.selectedTrain = domain.Train{}
	} else {
		c.selectedTrain = train
	}
	return next, nil
}

func (c *Catalog) lookup(key string) (domain.Train, bool) {
	for _, t := range c.trains {
		if t.Key == key {
			return t, true
		}
	}
	if c.selection.TrainKey == key {
		return c.selectedTrain, true
	}
	return domain.Train{}, false
}

// Selected returns the selected train, the resolved fare class and its
// index within the train's classes.
func (c *Catalog) Selected() (domain.Train, domain.FareClass, int, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.selection.IsZero() {
		return domain.Train{}, domain.FareClass{}, -1, false
	}
	class, idx, ok := c.selectedTrain.Class(c.selection.ClassID)
	if !ok {
		return domain.Train{}, domain.FareClass{}, -1, false
	}
	return c.selectedTrain, class, idx, true
}
