package http

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/go-chi/chi/v5"
	"github.com/robertarktes/rail-booking/internal/domain"
	"github.com/robertarktes/rail-booking/internal/idempotency"
	"github.com/robertarktes/rail-booking/internal/observability"
	"github.com/robertarktes/rail-booking/internal/workflow"
)

// Check reports whether a dependency is reachable.
type Check func(ctx context.Context) error

// Submissions looks up bookings recorded in the local ledger.
type Submissions interface {
	GetSubmission(ctx context.Context, reference string) (*domain.SubmittedBooking, error)
}

type Handlers struct {
	sessions    *Registry
	idemp       *idempotency.Idempotency
	submissions Submissions
	logger      observability.Logger
	checks      map[string]Check
}

// NewHandlers wires the booking API. submissions may be nil when no ledger
// is configured; lookups then report not found.
func NewHandlers(sessions *Registry, idemp *idempotency.Idempotency, submissions Submissions, logger observability.Logger, checks map[string]Check) *Handlers {
	return &Handlers{sessions: sessions, idemp: idemp, submissions: submissions, logger: logger, checks: checks}
}

func decode(r *http.Request, v interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return errors.Wrapf(domain.ErrInvalidInput, "decode body: %v", err)
	}
	return nil
}

func (h *Handlers) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, body := errorResponse(err)
	log := loggerFrom(r.Context(), h.logger).WithField("status", status)
	if status >= http.StatusInternalServerError && status != http.StatusBadGateway {
		log.WithError(err).Error("request failed")
	} else {
		log.WithError(err).Debug("request refused")
	}
	writeJSON(w, status, body)
}

func (h *Handlers) controller(r *http.Request) (*workflow.Controller, error) {
	return h.sessions.Get(chi.URLParam(r, "sid"), sessionFrom(r.Context()).UserID)
}

// with loads the session's workflow, runs fn and responds with the
// resulting snapshot.
func (h *Handlers) with(fn func(ctx context.Context, ctl *workflow.Controller) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctl, err := h.controller(r)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		if err := fn(r.Context(), ctl); err != nil {
			h.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, ctl.Snapshot())
	}
}

type startRequest struct {
	StartStep workflow.Step `json:"startStep"`
}

func (h *Handlers) StartBooking(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	s := sessionFrom(r.Context())
	ctl, err := h.sessions.Start(r.Context(), chi.URLParam(r, "sid"), s.UserID, req.StartStep)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, ctl.Snapshot())
}

func (h *Handlers) GetBooking(w http.ResponseWriter, r *http.Request) {
	h.with(func(context.Context, *workflow.Controller) error { return nil })(w, r)
}

func (h *Handlers) PutCriteria(w http.ResponseWriter, r *http.Request) {
	var c domain.TrainSearchCriteria
	if err := decode(r, &c); err != nil {
		h.fail(w, r, err)
		return
	}
	h.with(func(ctx context.Context, ctl *workflow.Controller) error {
		return ctl.SetCriteria(ctx, c)
	})(w, r)
}

type countRequest struct {
	PassengerCount int `json:"passengerCount"`
}

func (h *Handlers) PutPassengerCount(w http.ResponseWriter, r *http.Request) {
	var req countRequest
	if err := decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	h.with(func(ctx context.Context, ctl *workflow.Controller) error {
		return ctl.SetPassengerCount(ctx, req.PassengerCount)
	})(w, r)
}

// Search runs a new query, or fetches another page of the current one when
// a page parameter is given. A query superseded by a newer one is not an error.
func (h *Handlers) Search(w http.ResponseWriter, r *http.Request) {
	page := 0
	if p := r.URL.Query().Get("page"); p != "" {
		n, err := strconv.Atoi(p)
		if err != nil {
			h.fail(w, r, errors.Wrapf(domain.ErrInvalidInput, "page %q", p))
			return
		}
		page = n
	}
	h.with(func(ctx context.Context, ctl *workflow.Controller) error {
		var err error
		if page > 0 {
			_, err = ctl.ChangePage(ctx, page)
		} else {
			err = ctl.SearchTrains(ctx)
		}
		if errors.Is(err, domain.ErrSuperseded) {
			return nil
		}
		return err
	})(w, r)
}

func (h *Handlers) RetrySearch(w http.ResponseWriter, r *http.Request) {
	h.with(func(ctx context.Context, ctl *workflow.Controller) error {
		err := ctl.RetrySearch(ctx)
		if errors.Is(err, domain.ErrSuperseded) {
			return nil
		}
		return err
	})(w, r)
}

type selectionRequest struct {
	TrainKey string `json:"trainKey"`
	ClassID  string `json:"classId"`
}

func (h *Handlers) SelectTrain(w http.ResponseWriter, r *http.Request) {
	var req selectionRequest
	if err := decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	h.with(func(_ context.Context, ctl *workflow.Controller) error {
		_, err := ctl.SelectTrain(req.TrainKey, req.ClassID)
		return err
	})(w, r)
}

func (h *Handlers) PatchPassenger(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, errors.Wrap(domain.ErrInvalidInput, "passenger id"))
		return
	}
	var patch domain.PassengerPatch
	if err := decode(r, &patch); err != nil {
		h.fail(w, r, err)
		return
	}
	h.with(func(_ context.Context, ctl *workflow.Controller) error {
		return ctl.UpdatePassenger(id, patch)
	})(w, r)
}

// Advance moves the workflow forward. The response of a successful booking
// submission is recorded under the booking reference and replayed for
// repeated requests.
func (h *Handlers) Advance(w http.ResponseWriter, r *http.Request) {
	ctl, err := h.controller(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var form workflow.PaymentForm
	raw, err := io.ReadAll(r.Body)
	if err != nil {
		h.fail(w, r, errors.Wrap(domain.ErrInvalidInput, "read body"))
		return
	}
	var payment *workflow.PaymentForm
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &form); err != nil {
			h.fail(w, r, errors.Wrapf(domain.ErrInvalidInput, "decode body: %v", err))
			return
		}
		payment = &form
	}

	key := ""
	if view := ctl.Snapshot(); view.Draft != nil && view.Step >= workflow.Passengers {
		key = "advance:" + view.Draft.BookingReference
		cached, err := h.idemp.Get(r.Context(), key)
		if err != nil {
			loggerFrom(r.Context(), h.logger).WithError(err).Warn("idempotency lookup failed")
		}
		if cached != nil {
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("Idempotent-Replayed", "true")
			w.WriteHeader(cached.Status)
			w.Write(cached.Result)
			return
		}
	}

	step, err := ctl.Advance(r.Context(), workflow.AdvanceInput{Payment: payment, Session: sessionFrom(r.Context())})
	if err != nil {
		h.fail(w, r, err)
		return
	}

	data, err := json.Marshal(ctl.Snapshot())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(data)

	if step == workflow.Summary && key != "" {
		if err := h.idemp.Set(r.Context(), key, idempotency.Response{Status: http.StatusOK, Result: data}); err != nil {
			loggerFrom(r.Context(), h.logger).WithError(err).Warn("failed to record idempotent response")
		}
	}
}

func (h *Handlers) Back(w http.ResponseWriter, r *http.Request) {
	h.with(func(ctx context.Context, ctl *workflow.Controller) error {
		_, err := ctl.Back(ctx)
		return err
	})(w, r)
}

func (h *Handlers) GoHome(w http.ResponseWriter, r *http.Request) {
	h.with(func(ctx context.Context, ctl *workflow.Controller) error {
		ctl.GoHome(ctx)
		return nil
	})(w, r)
}

// GetSubmission returns a submitted booking to the user who made it.
func (h *Handlers) GetSubmission(w http.ResponseWriter, r *http.Request) {
	caller := sessionFrom(r.Context()).UserID
	if caller == "" {
		h.fail(w, r, errors.Wrap(domain.ErrNoSession, "booking lookup"))
		return
	}
	ref := chi.URLParam(r, "ref")
	if h.submissions == nil {
		h.fail(w, r, errors.Wrapf(domain.ErrNotFound, "booking %s", ref))
		return
	}
	b, err := h.submissions.GetSubmission(r.Context(), ref)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if b.UserID != caller {
		h.fail(w, r, errors.Wrapf(domain.ErrNotFound, "booking %s", ref))
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (h *Handlers) Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func (h *Handlers) Readyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	failed := map[string]string{}
	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := h.checks[name](ctx); err != nil {
			failed[name] = err.Error()
		}
	}
	if len(failed) > 0 {
		writeJSON(w, http.StatusServiceUnavailable, failed)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("Ready"))
}
