package mocks

import (
	"context"

	"github.com/robertarktes/rail-booking/internal/catalog"
	"github.com/stretchr/testify/mock"
)

// MockSearcher is a mock implementation of catalog.Searcher
type MockSearcher struct {
	mock.Mock
}

func (m *MockSearcher) Search(ctx context.Context, q catalog.SearchQuery) (catalog.SearchResult, error) {
	args := m.Called(ctx, q)
	return args.Get(0).(catalog.SearchResult), args.Error(1)
}
