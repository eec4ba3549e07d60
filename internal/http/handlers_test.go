package http

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/golang-jwt/jwt/v5"
	redisadapter "github.com/robertarktes/rail-booking/internal/adapters/redis"
	"github.com/robertarktes/rail-booking/internal/catalog"
	catalogmocks "github.com/robertarktes/rail-booking/internal/catalog/mocks"
	"github.com/robertarktes/rail-booking/internal/domain"
	"github.com/robertarktes/rail-booking/internal/draftstore"
	"github.com/robertarktes/rail-booking/internal/idempotency"
	"github.com/robertarktes/rail-booking/internal/observability"
	"github.com/robertarktes/rail-booking/internal/submit"
	submitmocks "github.com/robertarktes/rail-booking/internal/submit/mocks"
	"github.com/robertarktes/rail-booking/internal/workflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type memIdemp struct {
	mu   sync.Mutex
	data map[string]redisadapter.IdempResponse
}

func (m *memIdemp) Get(_ context.Context, key string) (*redisadapter.IdempResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.data[key]
	if !ok {
		return nil, nil
	}
	return &r, nil
}

func (m *memIdemp) Set(_ context.Context, key string, resp redisadapter.IdempResponse, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = resp
	return nil
}

type memLedger struct {
	mu       sync.Mutex
	bookings map[string]domain.SubmittedBooking
}

func (m *memLedger) RecordSubmission(_ context.Context, b domain.SubmittedBooking) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bookings[b.BookingReference] = b
	return nil
}

func (m *memLedger) GetSubmission(_ context.Context, ref string) (*domain.SubmittedBooking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[ref]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &b, nil
}

type apiFixture struct {
	srv      *httptest.Server
	searcher *catalogmocks.MockSearcher
	api      *submitmocks.MockBookingAPI
	ledger   *memLedger
	key      *rsa.PrivateKey
}

func newAPI(t *testing.T) *apiFixture {
	t.Helper()
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	der, err := x509.MarshalPKIXPublicKey(&priv.PublicKey)
	require.NoError(t, err)
	auth, err := NewAuthenticator(string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der})))
	require.NoError(t, err)

	logger := observability.NewNopLogger()
	searcher := new(catalogmocks.MockSearcher)
	api := new(submitmocks.MockBookingAPI)
	store := draftstore.New(draftstore.NewMemoryKV(), time.Hour)
	ledger := &memLedger{bookings: map[string]domain.SubmittedBooking{}}
	submitter := submit.New(api, time.Second, logger, submit.WithRecorder(ledger))

	registry := NewRegistry(func(ctx context.Context, sid string, start workflow.Step) (*workflow.Controller, error) {
		return workflow.New(ctx, workflow.Deps{
			Store:     store,
			Catalog:   catalog.New(searcher, 10, time.Second, logger),
			Submitter: submitter,
			Logger:    logger,
		}, workflow.Options{SessionKey: sid, StartStep: start})
	})
	idemp := idempotency.NewIdempotency(&memIdemp{data: map[string]redisadapter.IdempResponse{}}, time.Hour)
	h := NewHandlers(registry, idemp, ledger, logger, map[string]Check{
		"redis": func(context.Context) error { return nil },
	})
	srv := httptest.NewServer(SetupRouter(h, logger, auth, nil))
	t.Cleanup(srv.Close)
	return &apiFixture{srv: srv, searcher: searcher, api: api, ledger: ledger, key: priv}
}

func (f *apiFixture) token(t *testing.T, sub string) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, jwt.MapClaims{
		"sub": sub,
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	s, err := tok.SignedString(f.key)
	require.NoError(t, err)
	return s
}

func (f *apiFixture) do(t *testing.T, method, path, token string, body interface{}) (int, map[string]interface{}) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, f.srv.URL+path, &buf)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := f.srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	out := map[string]interface{}{}
	json.NewDecoder(resp.Body).Decode(&out)
	return resp.StatusCode, out
}

func rajdhani() catalog.SearchResult {
	return catalog.SearchResult{
		Success: true,
		Trains: []catalog.TrainRecord{{
			Name: "Rajdhani Express", Number: "12952",
			Route:         catalog.Route{From: "NDLS", To: "BCT"},
			DepartureTime: "16:55", ArrivalTime: "08:35",
			Classes: []catalog.ClassRecord{{Type: "Second Class Reserved", Capacity: 72, Available: 40, Price: 500}},
		}},
		Pagination: catalog.Pagination{Total: 1},
	}
}

const base = "/v1/sessions/s-1/booking"

func (f *apiFixture) toPassengers(t *testing.T, token string) {
	t.Helper()
	f.searcher.On("Search", mock.Anything, mock.Anything).Return(rajdhani(), nil)

	status, _ := f.do(t, http.MethodPost, base, token, nil)
	require.Equal(t, http.StatusCreated, status)
	status, _ = f.do(t, http.MethodPut, base+"/criteria", token, domain.TrainSearchCriteria{
		OriginStation: "NDLS", DestinationStation: "BCT", TravelDate: "2026-11-02", PassengerCount: 1,
	})
	require.Equal(t, http.StatusOK, status)
	status, _ = f.do(t, http.MethodPost, base+"/search", token, nil)
	require.Equal(t, http.StatusOK, status)
	status, _ = f.do(t, http.MethodPost, base+"/selection", token, map[string]string{"trainKey": "12952"})
	require.Equal(t, http.StatusOK, status)
	status, _ = f.do(t, http.MethodPost, base+"/advance", token, nil)
	require.Equal(t, http.StatusOK, status)
	status, _ = f.do(t, http.MethodPost, base+"/advance", token, workflow.PaymentForm{
		Method: "card", AcceptTerms: true, CardNumber: "4111", HolderName: "R Rao", Expiry: "12/28", CVV: "123",
	})
	require.Equal(t, http.StatusOK, status)
	status, _ = f.do(t, http.MethodPatch, base+"/passengers/1", token, map[string]interface{}{
		"firstName": "Ravi", "lastName": "Rao", "idNumber": "P123", "age": 34,
	})
	require.Equal(t, http.StatusOK, status)
}

func TestAPI_FullBookingWithReplay(t *testing.T) {
	f := newAPI(t)
	token := f.token(t, "user-7")
	f.toPassengers(t, token)
	f.api.On("CreateBooking", mock.Anything, mock.Anything, mock.MatchedBy(func(req submit.BookingRequest) bool {
		return req.UserID == "user-7" && req.Price == 525
	})).Return(submit.BookingResponse{Success: true, BookingID: "bk-1"}, nil).Once()

	status, body := f.do(t, http.MethodPost, base+"/advance", token, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "summary", body["stepName"])
	assert.Equal(t, true, body["readOnly"])
	assert.Equal(t, "bk-1", body["bookingId"])

	status, replay := f.do(t, http.MethodPost, base+"/advance", token, nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, body, replay)
	f.api.AssertNumberOfCalls(t, "CreateBooking", 1)
}

func TestAPI_SubmitWithoutIdentity(t *testing.T) {
	f := newAPI(t)
	f.toPassengers(t, "")

	status, body := f.do(t, http.MethodPost, base+"/advance", "", nil)

	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Contains(t, body["error"], "no active session")
	f.api.AssertNotCalled(t, "CreateBooking", mock.Anything, mock.Anything, mock.Anything)
	_, view := f.do(t, http.MethodGet, base, "", nil)
	assert.Equal(t, "passengers", view["stepName"])
}

func TestAPI_GuardRejectionListsFields(t *testing.T) {
	f := newAPI(t)
	f.do(t, http.MethodPost, base, "", nil)

	status, body := f.do(t, http.MethodPost, base+"/advance", "", nil)

	assert.Equal(t, http.StatusUnprocessableEntity, status)
	assert.Equal(t, "search", body["step"])
}

func TestAPI_SearchFailureIsRetryable(t *testing.T) {
	f := newAPI(t)
	f.searcher.On("Search", mock.Anything, mock.Anything).Return(catalog.SearchResult{}, errors.New("upstream timeout")).Once()
	f.searcher.On("Search", mock.Anything, mock.Anything).Return(rajdhani(), nil).Once()
	f.do(t, http.MethodPost, base, "", nil)
	f.do(t, http.MethodPut, base+"/criteria", "", domain.TrainSearchCriteria{
		OriginStation: "NDLS", DestinationStation: "BCT", TravelDate: "2026-11-02", PassengerCount: 2,
	})

	status, body := f.do(t, http.MethodPost, base+"/search", "", nil)
	assert.Equal(t, http.StatusBadGateway, status)
	assert.Equal(t, true, body["retry"])

	status, body = f.do(t, http.MethodPost, base+"/search/retry", "", nil)
	assert.Equal(t, http.StatusOK, status)
	cat := body["catalog"].(map[string]interface{})
	assert.Len(t, cat["trains"], 1)
}

func TestAPI_StatusMapping(t *testing.T) {
	f := newAPI(t)

	status, _ := f.do(t, http.MethodGet, "/v1/sessions/unknown/booking", "", nil)
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = f.do(t, http.MethodGet, base, "not-a-jwt", nil)
	assert.Equal(t, http.StatusUnauthorized, status)

	f.do(t, http.MethodPost, base, "", nil)
	status, _ = f.do(t, http.MethodPost, base+"/back", "", nil)
	assert.Equal(t, http.StatusConflict, status)

	status, _ = f.do(t, http.MethodPost, base+"/search?page=abc", "", nil)
	assert.Equal(t, http.StatusBadRequest, status)

	status, body := f.do(t, http.MethodPost, base+"/home", "", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["closed"])
	status, _ = f.do(t, http.MethodPut, base+"/passenger-count", "", map[string]int{"passengerCount": 2})
	assert.Equal(t, http.StatusConflict, status)
}

func TestAPI_SessionOwnedByCaller(t *testing.T) {
	f := newAPI(t)
	status, _ := f.do(t, http.MethodPost, base, f.token(t, "user-7"), nil)
	require.Equal(t, http.StatusCreated, status)

	status, _ = f.do(t, http.MethodGet, base, f.token(t, "user-8"), nil)
	assert.Equal(t, http.StatusNotFound, status)
	status, _ = f.do(t, http.MethodPost, base, f.token(t, "user-8"), nil)
	assert.Equal(t, http.StatusConflict, status)
}

func TestAPI_StartStepOverride(t *testing.T) {
	f := newAPI(t)

	status, body := f.do(t, http.MethodPost, base, "", map[string]int{"startStep": 4})
	assert.Equal(t, http.StatusCreated, status)
	assert.Equal(t, "passengers", body["stepName"])

	status, _ = f.do(t, http.MethodPost, "/v1/sessions/s-2/booking", "", map[string]int{"startStep": 5})
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestHealthAndReadiness(t *testing.T) {
	f := newAPI(t)

	resp, err := f.srv.Client().Get(f.srv.URL + "/v1/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = f.srv.Client().Get(f.srv.URL + "/v1/readyz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRegistry_Sweep(t *testing.T) {
	now := time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)
	r := NewRegistry(func(ctx context.Context, sid string, start workflow.Step) (*workflow.Controller, error) {
		return workflow.New(ctx, workflow.Deps{
			Store:   draftstore.New(draftstore.NewMemoryKV(), time.Hour),
			Catalog: catalog.New(new(catalogmocks.MockSearcher), 10, time.Second, observability.NewNopLogger()),
		}, workflow.Options{SessionKey: sid})
	})
	r.now = func() time.Time { return now }
	_, err := r.Start(context.Background(), "old", "", 0)
	require.NoError(t, err)
	now = now.Add(time.Hour)
	_, err = r.Start(context.Background(), "fresh", "", 0)
	require.NoError(t, err)

	assert.Equal(t, 1, r.Sweep(30*time.Minute))
	assert.Equal(t, 1, r.Len())
	_, err = r.Get("old", "")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRegistry_StartRefusesSessionClaimedDuringBuild(t *testing.T) {
	building := make(chan struct{})
	proceed := make(chan struct{})
	var calls int32
	var mu sync.Mutex
	r := NewRegistry(func(ctx context.Context, sid string, start workflow.Step) (*workflow.Controller, error) {
		mu.Lock()
		calls++
		first := calls == 1
		mu.Unlock()
		if first {
			close(building)
			<-proceed
		}
		return workflow.New(ctx, workflow.Deps{
			Store:   draftstore.New(draftstore.NewMemoryKV(), time.Hour),
			Catalog: catalog.New(new(catalogmocks.MockSearcher), 10, time.Second, observability.NewNopLogger()),
		}, workflow.Options{SessionKey: sid})
	})
	ctx := context.Background()

	slow := make(chan error, 1)
	go func() {
		_, err := r.Start(ctx, "sess-race", "user-a", 0)
		slow <- err
	}()
	<-building

	won, err := r.Start(ctx, "sess-race", "user-b", 0)
	require.NoError(t, err)
	close(proceed)

	assert.ErrorIs(t, <-slow, domain.ErrConflict)
	got, err := r.Get("sess-race", "user-b")
	require.NoError(t, err)
	assert.Same(t, won, got)
	_, err = r.Get("sess-race", "user-a")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestAPI_SubmittedBookingLookup(t *testing.T) {
	f := newAPI(t)
	token := f.token(t, "user-7")
	f.toPassengers(t, token)
	f.api.On("CreateBooking", mock.Anything, mock.Anything, mock.Anything).
		Return(submit.BookingResponse{Success: true, BookingID: "bk-1"}, nil).Once()
	status, view := f.do(t, http.MethodPost, base+"/advance", token, nil)
	require.Equal(t, http.StatusOK, status)
	ref := view["draft"].(map[string]interface{})["bookingReference"].(string)

	status, body := f.do(t, http.MethodGet, "/v1/bookings/"+ref, token, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, ref, body["bookingReference"])
	assert.Equal(t, "user-7", body["userId"])
	assert.Equal(t, "2026-11-02", body["departureDate"])
	assert.EqualValues(t, 525, body["totalPrice"])

	status, _ = f.do(t, http.MethodGet, "/v1/bookings/"+ref, f.token(t, "user-8"), nil)
	assert.Equal(t, http.StatusNotFound, status)
	status, _ = f.do(t, http.MethodGet, "/v1/bookings/"+ref, "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	status, _ = f.do(t, http.MethodGet, "/v1/bookings/TKTMISSING000", token, nil)
	assert.Equal(t, http.StatusNotFound, status)
}
