// Package railapi talks to the external train search and booking services
// over HTTP.
package railapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/robertarktes/rail-booking/internal/catalog"
	"github.com/robertarktes/rail-booking/internal/submit"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const maxErrorBody = 4 << 10

// NewHTTPClient returns a client whose outbound requests carry trace context.
func NewHTTPClient() *http.Client {
	return &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}
}

// SearchClient implements catalog.Searcher against GET <base>/trains/search.
type SearchClient struct {
	base string
	http *http.Client
}

func NewSearchClient(baseURL string, client *http.Client) *SearchClient {
	if client == nil {
		client = NewHTTPClient()
	}
	return &SearchClient{base: strings.TrimRight(baseURL, "/"), http: client}
}

func (c *SearchClient) Search(ctx context.Context, q catalog.SearchQuery) (catalog.SearchResult, error) {
	params := url.Values{}
	params.Set("from", q.From)
	params.Set("to", q.To)
	params.Set("date", q.Date)
	params.Set("page", strconv.Itoa(q.Page))
	params.Set("limit", strconv.Itoa(q.Limit))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/trains/search?"+params.Encode(), nil)
	if err != nil {
		return catalog.SearchResult{}, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return catalog.SearchResult{}, errors.Wrap(err, "train search request")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return catalog.SearchResult{}, statusError(resp)
	}
	var res catalog.SearchResult
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return catalog.SearchResult{}, errors.Wrap(err, "decode train search response")
	}
	return res, nil
}

// BookingClient implements submit.BookingAPI against POST <base>/bookings.
type BookingClient struct {
	base string
	http *http.Client
}

func NewBookingClient(baseURL string, client *http.Client) *BookingClient {
	if client == nil {
		client = NewHTTPClient()
	}
	return &BookingClient{base: strings.TrimRight(baseURL, "/"), http: client}
}

func (c *BookingClient) CreateBooking(ctx context.Context, idempotencyKey string, body submit.BookingRequest) (submit.BookingResponse, error) {
	buf, err := json.Marshal(body)
	if err != nil {
		return submit.BookingResponse{}, errors.Wrap(err, "encode booking request")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/bookings", bytes.NewReader(buf))
	if err != nil {
		return submit.BookingResponse{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if idempotencyKey != "" {
		req.Header.Set("Idempotency-Key", idempotencyKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return submit.BookingResponse{}, errors.Wrap(err, "create booking request")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return submit.BookingResponse{}, errors.Wrap(err, "read booking response")
	}
	var out submit.BookingResponse
	if len(raw) > 0 && json.Unmarshal(raw, &out) == nil {
		// A rejection body from the service is reported as an unsuccessful
		// booking rather than a transport failure.
		if resp.StatusCode >= 300 {
			out.Success = false
			if out.Message == "" {
				out.Message = http.StatusText(resp.StatusCode)
			}
		}
		return out, nil
	}
	if resp.StatusCode >= 300 {
		return submit.BookingResponse{}, errors.Newf("booking service returned %d", resp.StatusCode)
	}
	return submit.BookingResponse{}, errors.New("booking service returned an unreadable body")
}

func statusError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	var res catalog.SearchResult
	if json.Unmarshal(body, &res) == nil && res.Message != "" {
		return errors.Newf("train search returned %d: %s", resp.StatusCode, res.Message)
	}
	return errors.Newf("train search returned %d", resp.StatusCode)
}
