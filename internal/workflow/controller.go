// Package workflow sequences a booking through search, payment confirmation,
// passenger registration and the ticket summary.
package workflow

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/robertarktes/rail-booking/internal/catalog"
	"github.com/robertarktes/rail-booking/internal/domain"
	"github.com/robertarktes/rail-booking/internal/observability"
	"github.com/robertarktes/rail-booking/internal/pricing"
	"github.com/robertarktes/rail-booking/internal/roster"
	"github.com/robertarktes/rail-booking/internal/submit"
)

// SeatOffset is added to a passenger's position to form the seat number.
const SeatOffset = 20

type CriteriaStore interface {
	Load(ctx context.Context, sessionKey string) (domain.TrainSearchCriteria, bool, error)
	Save(ctx context.Context, sessionKey string, c domain.TrainSearchCriteria) error
}

type TrainCatalog interface {
	Search(ctx context.Context, criteria domain.TrainSearchCriteria) error
	SetPage(ctx context.Context, page int) (bool, error)
	Retry(ctx context.Context) error
	Select(trainKey, classID string) (catalog.Selection, error)
	Selected() (domain.Train, domain.FareClass, int, bool)
	View() catalog.View
}

type Submitter interface {
	Submit(ctx context.Context, draft *domain.BookingDraft, session domain.Session) (submit.BookingResponse, error)
}

type Deps struct {
	Store     CriteriaStore
	Catalog   TrainCatalog
	Submitter Submitter
	Observer  Observer
	Logger    observability.Logger
	Now       func() time.Time
}

type Options struct {
	SessionKey string
	// StartStep overrides the initial step. Zero means Search.
	StartStep Step
}

// AdvanceInput carries what the current step's guard needs.
type AdvanceInput struct {
	Payment *PaymentForm
	Session domain.Session
}

// Controller owns one booking draft for the lifetime of a workflow session.
type Controller struct {
	store     CriteriaStore
	catalog   TrainCatalog
	submitter Submitter
	observer  Observer
	logger    observability.Logger
	now       func() time.Time

	sessionKey string

	mu         sync.Mutex
	step       Step
	closed     bool
	readOnly   bool
	submitting bool
	criteria   domain.TrainSearchCriteria
	draft      *domain.BookingDraft
	roster     *roster.Roster
	payment    PaymentForm
	bookingID  string
}

func New(ctx context.Context, deps Deps, opts Options) (*Controller, error) {
	start := opts.StartStep
	if start == 0 {
		start = Search
	}
	if start < Search || start > Passengers {
		return nil, errors.Wrapf(domain.ErrInvalidInput, "cannot start workflow at %s", start)
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Observer == nil {
		deps.Observer = Observers{}
	}
	if deps.Logger == nil {
		deps.Logger = observability.NewNopLogger()
	}

	c := &Controller{
		store:      deps.Store,
		catalog:    deps.Catalog,
		submitter:  deps.Submitter,
		observer:   deps.Observer,
		now:        deps.Now,
		sessionKey: opts.SessionKey,
		step:       start,
	}

	criteria, found, err := c.store.Load(ctx, opts.SessionKey)
	if err != nil {
		deps.Logger.WithError(err).Warn("could not hydrate search criteria, using defaults")
	}
	c.criteria = criteria
	c.draft = domain.NewDraft(c.now())
	c.roster = roster.New(criteria.PassengerCount)
	c.logger = deps.Logger.WithField("booking_reference", c.draft.BookingReference)
	c.recomputeLocked()

	c.logger.WithField("step", start.String()).WithField("hydrated", found).Info("booking workflow started")
	return c, nil
}

// View is a read-only copy of the workflow state.
type View struct {
	Step       Step                       `json:"step"`
	StepName   string                     `json:"stepName"`
	Closed     bool                       `json:"closed"`
	ReadOnly   bool                       `json:"readOnly"`
	Submitting bool                       `json:"submitting"`
	BookingID  string                     `json:"bookingId,omitempty"`
	Criteria   domain.TrainSearchCriteria `json:"criteria"`
	Draft      *domain.BookingDraft       `json:"draft,omitempty"`
	Catalog    catalog.View               `json:"catalog"`
}

func (c *Controller) Snapshot() View {
	c.mu.Lock()
	defer c.mu.Unlock()
	v := View{
		Step:       c.step,
		StepName:   c.step.String(),
		Closed:     c.closed,
		ReadOnly:   c.readOnly,
		Submitting: c.submitting,
		BookingID:  c.bookingID,
		Criteria:   c.criteria,
	}
	if c.closed {
		return v
	}
	v.Draft = c.draft.Clone()
	v.Catalog = c.catalog.View()
	return v
}

func (c *Controller) Step() Step {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.step
}

// checkEditableLocked reports why the draft cannot be changed, if it cannot.
func (c *Controller) checkEditableLocked(allowed ...Step) error {
	switch {
	case c.closed:
		return domain.ErrWorkflowClosed
	case c.readOnly:
		return domain.ErrReadOnly
	case c.submitting:
		return domain.ErrSubmissionInFlight
	}
	if len(allowed) == 0 {
		return nil
	}
	for _, s := range allowed {
		if c.step == s {
			return nil
		}
	}
	return errors.Wrapf(domain.ErrInvalidTransition, "not allowed at step %s", c.step)
}

// recomputeLocked derives the draft's train, seats, pricing and passengers
// from the current selection and passenger count.
func (c *Controller) recomputeLocked() {
	count := c.criteria.PassengerCount
	c.draft.Passengers = c.roster.Snapshot()

	train, class, idx, ok := c.catalog.Selected()
	if !ok {
		c.draft.Train = nil
		c.draft.Pricing = pricing.Compute(nil, count)
		return
	}
	coach := fmt.Sprintf("C%d", idx+1)
	c.draft.Train = &domain.SelectedTrain{
		Key:                train.Key,
		Name:               train.Name,
		Number:             train.Number,
		OriginStation:      train.OriginStation,
		DestinationStation: train.DestinationStation,
		DepartureDate:      train.TravelDate,
		DepartureTime:      train.DepartureTime,
		ArrivalTime:        train.ArrivalTime,
		FareClass:          class.Type,
		FareClassID:        class.ID,
		Coach:              coach,
		Seats:              seatsFor(coach, count),
	}
	c.draft.Pricing = pricing.Compute(&class, count)
}

func seatsFor(coach string, count int) []string {
	seats := make([]string, count)
	for i := range seats {
		seats[i] = fmt.Sprintf("%s-%d", coach, SeatOffset+i+1)
	}
	return seats
}

// SetCriteria replaces the search criteria and persists them. A changed
// passenger count rebuilds the roster.
func (c *Controller) SetCriteria(ctx context.Context, criteria domain.TrainSearchCriteria) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.checkEditableLocked(Search); err != nil {
		return err
	}
	if err := criteria.Validate(); err != nil {
		return err
	}
	if err := c.store.Save(ctx, c.sessionKey, criteria); err != nil {
		return err
	}
	countChanged := criteria.PassengerCount != c.criteria.PassengerCount
	c.criteria = criteria
	if countChanged {
		c.roster.Resize(criteria.PassengerCount)
	}
	c.recomputeLocked()
	return nil
}

// SetPassengerCount rebuilds the roster to count records, recomputes seats
// and pricing, and persists the count.
func (c *Controller) SetPassengerCount(ctx context.Context, count int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.checkEditableLocked(Search, Confirm, Passengers); err != nil {
		return err
	}
	criteria := c.criteria
	criteria.PassengerCount = count
	if err := criteria.Validate(); err != nil {
		return err
	}
	if err := c.store.Save(ctx, c.sessionKey, criteria); err != nil {
		return err
	}
	c.criteria = criteria
	c.roster.Resize(count)
	c.recomputeLocked()
	return nil
}

// SearchTrains runs a new query for the current criteria. The lock is not
// held while the inventory call is in flight so a newer query can supersede it.
func (c *Controller) SearchTrains(ctx context.Context) error {
	c.mu.Lock()
	if err := c.checkEditableLocked(Search); err != nil {
		c.mu.Unlock()
		return err
	}
	criteria := c.criteria
	c.mu.Unlock()

	err := c.catalog.Search(ctx, criteria)
	c.refresh()
	return err
}

func (c *Controller) ChangePage(ctx context.Context, page int) (bool, error) {
	c.mu.Lock()
	if err := c.checkEditableLocked(Search); err != nil {
		c.mu.Unlock()
		return false, err
	}
	c.mu.Unlock()

	changed, err := c.catalog.SetPage(ctx, page)
	c.refresh()
	return changed, err
}

func (c *Controller) RetrySearch(ctx context.Context) error {
	c.mu.Lock()
	if err := c.checkEditableLocked(Search); err != nil {
		c.mu.Unlock()
		return err
	}
	c.mu.Unlock()

	err := c.catalog.Retry(ctx)
	c.refresh()
	return err
}

func (c *Controller) refresh() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed && !c.readOnly {
		c.recomputeLocked()
	}
}

// SelectTrain applies the selection transition. An empty classID selects
// the train's first class, or deselects the train if it is already selected.
func (c *Controller) SelectTrain(trainKey, classID string) (catalog.Selection, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.checkEditableLocked(Search); err != nil {
		return catalog.Selection{}, err
	}
	sel, err := c.catalog.Select(trainKey, classID)
	if err != nil {
		return sel, err
	}
	c.recomputeLocked()
	return sel, nil
}

func (c *Controller) UpdatePassenger(id int, patch domain.PassengerPatch) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.checkEditableLocked(); err != nil {
		return err
	}
	if err := c.roster.Update(id, patch); err != nil {
		return err
	}
	c.draft.Passengers = c.roster.Snapshot()
	return nil
}

// Advance moves to the next step if the current step's guard passes.
func (c *Controller) Advance(ctx context.Context, in AdvanceInput) (Step, error) {
	c.mu.Lock()
	if err := c.checkEditableLocked(); err != nil {
		c.mu.Unlock()
		return 0, err
	}
	from := c.step
	to, ok := next[from]
	if !ok {
		c.mu.Unlock()
		return from, errors.Wrapf(domain.ErrInvalidTransition, "no step after %s", from)
	}

	var err error
	switch from {
	case Search:
		err = c.requireTrainLocked(from)
	case Confirm:
		err = c.confirmPaymentLocked(in.Payment)
	case Passengers:
		c.mu.Unlock()
		return c.submit(ctx, in.Session)
	}
	if err != nil {
		ref := c.draft.BookingReference
		c.mu.Unlock()
		c.emit(ctx, Event{Reference: ref, From: from, To: to, Err: err})
		return from, err
	}

	c.step = to
	ref := c.draft.BookingReference
	c.mu.Unlock()
	c.emit(ctx, Event{Reference: ref, From: from, To: to})
	return to, nil
}

func (c *Controller) requireTrainLocked(at Step) error {
	if _, _, _, ok := c.catalog.Selected(); !ok || c.draft.Train == nil {
		return domain.NewValidationError(at.String(), "no train selected")
	}
	return nil
}

func (c *Controller) confirmPaymentLocked(form *PaymentForm) error {
	if err := c.requireTrainLocked(Confirm); err != nil {
		return err
	}
	if c.draft.PaymentStatus == domain.PaymentConfirmed {
		return nil
	}
	if form == nil {
		form = &PaymentForm{}
	}
	c.payment = *form
	if err := validatePayment(c.payment); err != nil {
		return err
	}
	c.draft.PaymentStatus = domain.PaymentConfirmed
	c.draft.PaymentMethod = c.payment.Method
	c.payment = PaymentForm{}
	return nil
}

// submit runs the Passengers -> Summary transition. Only one submission may
// be in flight; the draft cannot change while it is.
func (c *Controller) submit(ctx context.Context, session domain.Session) (Step, error) {
	c.mu.Lock()
	if err := c.checkEditableLocked(Passengers); err != nil {
		c.mu.Unlock()
		return 0, err
	}
	ref := c.draft.BookingReference
	reject := func(err error) (Step, error) {
		c.mu.Unlock()
		c.emit(ctx, Event{Reference: ref, From: Passengers, To: Summary, Err: err})
		return Passengers, err
	}
	if err := c.requireTrainLocked(Passengers); err != nil {
		return reject(err)
	}
	if err := c.roster.Validate(); err != nil {
		return reject(err)
	}
	if err := c.roster.AssignSeats(c.draft.Train.Seats); err != nil {
		return reject(err)
	}
	c.draft.Passengers = c.roster.Snapshot()
	snapshot := c.draft.Clone()
	c.submitting = true
	c.mu.Unlock()

	resp, err := c.submitter.Submit(ctx, snapshot, session)

	c.mu.Lock()
	c.submitting = false
	if c.closed {
		c.mu.Unlock()
		c.logger.WithField("submitted", err == nil).Warn("workflow closed while submission was in flight")
		return Home, domain.ErrWorkflowClosed
	}
	if err != nil {
		c.roster.ClearSeats()
		c.draft.Passengers = c.roster.Snapshot()
		return reject(err)
	}
	c.draft = snapshot
	c.readOnly = true
	c.bookingID = resp.BookingID
	c.step = Summary
	c.mu.Unlock()

	c.emit(ctx, Event{Reference: ref, From: Passengers, To: Summary})
	return Summary, nil
}

// Back steps backwards without any guard.
func (c *Controller) Back(ctx context.Context) (Step, error) {
	c.mu.Lock()
	if err := c.checkEditableLocked(); err != nil {
		c.mu.Unlock()
		return 0, err
	}
	from := c.step
	to, ok := prev[from]
	if !ok {
		c.mu.Unlock()
		return from, errors.Wrapf(domain.ErrInvalidTransition, "no step before %s", from)
	}
	c.step = to
	ref := c.draft.BookingReference
	c.mu.Unlock()
	c.emit(ctx, Event{Reference: ref, From: from, To: to})
	return to, nil
}

// GoHome ends the workflow and discards the draft. Persisted search
// criteria are kept.
func (c *Controller) GoHome(ctx context.Context) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	from := c.step
	ref := c.draft.BookingReference
	c.closed = true
	c.step = Home
	c.draft = nil
	c.roster = nil
	c.payment = PaymentForm{}
	c.mu.Unlock()
	c.emit(ctx, Event{Reference: ref, From: from, To: Home})
}

func (c *Controller) emit(ctx context.Context, ev Event) {
	ev.SessionKey = c.sessionKey
	ev.At = c.now()
	log := c.logger.WithField("from", ev.From.String()).WithField("to", ev.To.String())
	if ev.Rejected() {
		log.WithError(ev.Err).Info("step transition refused")
	} else {
		log.Info("step transition")
	}
	c.observer.Observe(ctx, ev)
}
