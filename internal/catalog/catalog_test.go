package catalog_test

import (
	"context"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/robertarktes/rail-booking/internal/catalog"
	"github.com/robertarktes/rail-booking/internal/catalog/mocks"
	"github.com/robertarktes/rail-booking/internal/domain"
	"github.com/robertarktes/rail-booking/internal/observability"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var criteria = domain.TrainSearchCriteria{
	OriginStation:      "NDLS",
	DestinationStation: "BCT",
	TravelDate:         "2026-11-02",
	PassengerCount:     2,
}

func firstQuery() catalog.SearchQuery {
	return catalog.SearchQuery{From: "NDLS", To: "BCT", Date: "2026-11-02", Page: 1, Limit: 2}
}

func pageResult(total int, trains ...catalog.TrainRecord) catalog.SearchResult {
	return catalog.SearchResult{Success: true, Trains: trains, Pagination: catalog.Pagination{Total: total}}
}

func rajdhani() catalog.TrainRecord {
	return catalog.TrainRecord{
		Name:          "Rajdhani Express",
		Number:        "12952",
		Route:         catalog.Route{From: "NDLS", To: "BCT"},
		DepartureTime: "16:55",
		ArrivalTime:   "08:35",
		Classes: []catalog.ClassRecord{
			{Type: "Second Class Reserved", Capacity: 72, Available: 10, Price: 500},
			{Type: "First Class", Capacity: 24, Available: 2, Price: 1199.6},
		},
	}
}

func unnumbered() catalog.TrainRecord {
	return catalog.TrainRecord{
		Name:          "Coastal Local",
		Route:         catalog.Route{From: "NDLS", To: "BCT"},
		DepartureTime: "06:10",
		Classes:       []catalog.ClassRecord{{Type: "Second Class Reserved", Price: 150}},
	}
}

func newCatalog(s catalog.Searcher) *catalog.Catalog {
	return catalog.New(s, 2, time.Second, observability.NewNopLogger())
}

func TestSearch_NormalizesPage(t *testing.T) {
	s := new(mocks.MockSearcher)
	s.On("Search", mock.Anything, firstQuery()).Return(pageResult(5, rajdhani(), unnumbered()), nil)
	c := newCatalog(s)

	require.NoError(t, c.Search(context.Background(), criteria))

	v := c.View()
	assert.Equal(t, 1, v.Page)
	assert.Equal(t, 3, v.TotalPages)
	require.Len(t, v.Trains, 2)
	assert.Equal(t, "12952", v.Trains[0].Key)
	assert.Equal(t, "Coastal Local@06:10", v.Trains[1].Key)
	assert.Equal(t, domain.FareClass{ID: "12952:1", Type: "First Class", Capacity: 24, Available: 2, PriceValue: 1200}, v.Trains[0].Classes[1])
	s.AssertExpectations(t)
}

func TestSearch_RequiresCriteria(t *testing.T) {
	s := new(mocks.MockSearcher)
	c := newCatalog(s)

	err := c.Search(context.Background(), domain.TrainSearchCriteria{OriginStation: "NDLS", PassengerCount: 1})
	assert.True(t, errors.Is(err, domain.ErrValidation))
	s.AssertNotCalled(t, "Search", mock.Anything, mock.Anything)
}

func TestSetPage_OutOfRangeIsNoop(t *testing.T) {
	s := new(mocks.MockSearcher)
	s.On("Search", mock.Anything, firstQuery()).Return(pageResult(3, rajdhani(), unnumbered()), nil).Once()
	page2 := firstQuery()
	page2.Page = 2
	s.On("Search", mock.Anything, page2).Return(pageResult(3, rajdhani()), nil).Once()
	c := newCatalog(s)
	ctx := context.Background()

	changed, err := c.SetPage(ctx, 1)
	assert.False(t, changed, "no query yet")
	assert.NoError(t, err)

	require.NoError(t, c.Search(ctx, criteria))

	for _, p := range []int{0, 3, -1} {
		changed, err := c.SetPage(ctx, p)
		assert.False(t, changed)
		assert.NoError(t, err)
	}

	changed, err = c.SetPage(ctx, 2)
	assert.True(t, changed)
	require.NoError(t, err)
	assert.Equal(t, 2, c.View().Page)
	s.AssertExpectations(t)
}

func TestFetchFailure_KeepsPageAndRetriesSameQuery(t *testing.T) {
	s := new(mocks.MockSearcher)
	s.On("Search", mock.Anything, firstQuery()).Return(pageResult(4, rajdhani(), unnumbered()), nil).Once()
	page2 := firstQuery()
	page2.Page = 2
	s.On("Search", mock.Anything, page2).Return(catalog.SearchResult{}, errors.New("connection reset")).Once()
	s.On("Search", mock.Anything, page2).Return(catalog.SearchResult{Success: false, Message: "inventory busy"}, nil).Once()
	s.On("Search", mock.Anything, page2).Return(pageResult(4, unnumbered()), nil).Once()
	c := newCatalog(s)
	ctx := context.Background()

	require.NoError(t, c.Search(ctx, criteria))

	_, err := c.SetPage(ctx, 2)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrFetch))
	v := c.View()
	assert.True(t, v.CanRetry)
	assert.Equal(t, 1, v.Page)
	assert.Len(t, v.Trains, 2)

	err = c.Retry(ctx)
	assert.True(t, errors.Is(err, domain.ErrFetch))
	assert.Contains(t, err.Error(), "inventory busy")

	require.NoError(t, c.Retry(ctx))
	v = c.View()
	assert.False(t, v.CanRetry)
	assert.Equal(t, 2, v.Page)
	assert.Len(t, v.Trains, 1)
	s.AssertExpectations(t)
}

func TestRetry_WithoutQuery(t *testing.T) {
	c := newCatalog(new(mocks.MockSearcher))
	assert.True(t, errors.Is(c.Retry(context.Background()), domain.ErrInvalidInput))
}

type blockingSearcher struct {
	calls   chan catalog.SearchQuery
	release map[string]chan catalog.SearchResult
}

func (b *blockingSearcher) Search(ctx context.Context, q catalog.SearchQuery) (catalog.SearchResult, error) {
	b.calls <- q
	select {
	case res := <-b.release[q.From]:
		return res, nil
	case <-ctx.Done():
		return catalog.SearchResult{}, ctx.Err()
	}
}

func TestSearch_OlderResultIsDiscarded(t *testing.T) {
	b := &blockingSearcher{
		calls: make(chan catalog.SearchQuery, 2),
		release: map[string]chan catalog.SearchResult{
			"NDLS": make(chan catalog.SearchResult, 1),
			"HWH":  make(chan catalog.SearchResult, 1),
		},
	}
	c := newCatalog(b)
	ctx := context.Background()

	older := make(chan error, 1)
	go func() { older <- c.Search(ctx, criteria) }()
	<-b.calls

	newer := criteria
	newer.OriginStation = "HWH"
	b.release["HWH"] <- pageResult(1, unnumbered())
	require.NoError(t, c.Search(ctx, newer))
	<-b.calls

	b.release["NDLS"] <- pageResult(1, rajdhani())
	assert.ErrorIs(t, <-older, domain.ErrSuperseded)

	v := c.View()
	require.Len(t, v.Trains, 1)
	assert.Equal(t, "Coastal Local@06:10", v.Trains[0].Key)
	assert.False(t, v.Loading)
}

func TestSearch_TimesOut(t *testing.T) {
	b := &blockingSearcher{calls: make(chan catalog.SearchQuery, 1), release: map[string]chan catalog.SearchResult{}}
	c := catalog.New(b, 2, 20*time.Millisecond, observability.NewNopLogger())

	err := c.Search(context.Background(), criteria)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrFetch))
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.False(t, c.View().Loading)
}

func TestSelect_ToggleAndClassSwitch(t *testing.T) {
	s := new(mocks.MockSearcher)
	s.On("Search", mock.Anything, firstQuery()).Return(pageResult(2, rajdhani(), unnumbered()), nil)
	c := newCatalog(s)
	require.NoError(t, c.Search(context.Background(), criteria))

	sel, err := c.Select("12952", "")
	require.NoError(t, err)
	assert.Equal(t, catalog.Selection{TrainKey: "12952", ClassID: "12952:0"}, sel)
	train, class, idx, ok := c.Selected()
	require.True(t, ok)
	assert.Equal(t, "Rajdhani Express", train.Name)
	assert.Equal(t, int64(500), class.PriceValue)
	assert.Equal(t, 0, idx)

	sel, err = c.Select("12952", "")
	require.NoError(t, err)
	assert.True(t, sel.IsZero())
	_, _, _, ok = c.Selected()
	assert.False(t, ok)

	_, err = c.Select("Coastal Local@06:10", "")
	require.NoError(t, err)
	sel, err = c.Select("12952", "12952:1")
	require.NoError(t, err)
	assert.Equal(t, catalog.Selection{TrainKey: "12952", ClassID: "12952:1"}, sel)

	_, err = c.Select("99999", "")
	assert.True(t, errors.Is(err, domain.ErrValidation))
	_, err = c.Select("12952", "12952:7")
	assert.True(t, errors.Is(err, domain.ErrValidation))
	assert.Equal(t, catalog.Selection{TrainKey: "12952", ClassID: "12952:1"}, c.View().Selection)
}

func TestNewSearch_ClearsSelection(t *testing.T) {
	s := new(mocks.MockSearcher)
	s.On("Search", mock.Anything, mock.Anything).Return(pageResult(2, rajdhani(), unnumbered()), nil)
	c := newCatalog(s)
	require.NoError(t, c.Search(context.Background(), criteria))
	_, err := c.Select("12952", "")
	require.NoError(t, err)

	require.NoError(t, c.Search(context.Background(), criteria))

	assert.True(t, c.View().Selection.IsZero())
}

func TestNewSearch_FailureKeepsSelection(t *testing.T) {
	s := new(mocks.MockSearcher)
	s.On("Search", mock.Anything, firstQuery()).Return(pageResult(2, rajdhani(), unnumbered()), nil).Once()
	later := firstQuery()
	later.Date = "2026-12-25"
	s.On("Search", mock.Anything, later).Return(catalog.SearchResult{}, errors.New("connection reset")).Once()
	s.On("Search", mock.Anything, later).Return(pageResult(1, unnumbered()), nil).Once()
	c := newCatalog(s)
	ctx := context.Background()
	require.NoError(t, c.Search(ctx, criteria))
	_, err := c.Select("12952", "")
	require.NoError(t, err)

	moved := criteria
	moved.TravelDate = "2026-12-25"
	err = c.Search(ctx, moved)
	assert.True(t, errors.Is(err, domain.ErrFetch))

	train, class, _, ok := c.Selected()
	require.True(t, ok)
	assert.Equal(t, "12952", train.Key)
	assert.Equal(t, "2026-11-02", train.TravelDate)
	assert.Equal(t, int64(500), class.PriceValue)
	assert.Len(t, c.View().Trains, 2)

	require.NoError(t, c.Retry(ctx))
	assert.True(t, c.View().Selection.IsZero())
	_, _, _, ok = c.Selected()
	assert.False(t, ok)
	s.AssertExpectations(t)
}

func TestSelectDuringNewSearch_ClearedWhenResultArrives(t *testing.T) {
	b := &blockingSearcher{
		calls: make(chan catalog.SearchQuery, 2),
		release: map[string]chan catalog.SearchResult{
			"NDLS": make(chan catalog.SearchResult, 1),
			"HWH":  make(chan catalog.SearchResult, 1),
		},
	}
	c := newCatalog(b)
	ctx := context.Background()
	b.release["NDLS"] <- pageResult(1, rajdhani())
	require.NoError(t, c.Search(ctx, criteria))
	<-b.calls

	newer := criteria
	newer.OriginStation = "HWH"
	newer.TravelDate = "2026-12-25"
	done := make(chan error, 1)
	go func() { done <- c.Search(ctx, newer) }()
	<-b.calls

	_, err := c.Select("12952", "12952:1")
	require.NoError(t, err)
	train, _, _, ok := c.Selected()
	require.True(t, ok)
	assert.Equal(t, "2026-11-02", train.TravelDate)

	b.release["HWH"] <- pageResult(1, unnumbered())
	require.NoError(t, <-done)

	assert.True(t, c.View().Selection.IsZero())
	_, _, _, ok = c.Selected()
	assert.False(t, ok)
	v := c.View()
	require.Len(t, v.Trains, 1)
	assert.Equal(t, "2026-12-25", v.Trains[0].TravelDate)
}
