// Package reservations books and cancels classes for the logged-in user and keeps their history.
package reservations

import (
	"context"
	"fmt"
	"log"
	"time"

	"example.com/gymbooking/internal/domain"
	"example.com/gymbooking/internal/events"
	"example.com/gymbooking/internal/observability"
	"example.com/gymbooking/internal/scope"
	"example.com/gymbooking/internal/state"
)

// API is the subset of the booking API used for reservations.
type API interface {
	CreateReservation(ctx context.Context, userID, classID string) (*domain.Reservation, error)
	CancelReservation(ctx context.Context, id string) error
	History(ctx context.Context, userID string, from, to time.Time) ([]domain.Reservation, error)
	GetUser(ctx context.Context, id string) (*domain.User, error)
}

// Sessions resolves the logged-in user.
type Sessions interface {
	UserID(ctx context.Context) (string, error)
}

// Status is the outcome of the last reservation action.
type Status string

const (
	StatusIdle    Status = "idle"
	StatusLoading Status = "loading"
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// View is what a reservations screen renders.
type View struct {
	Status       Status
	Reservations []domain.Reservation
	Last         *domain.Reservation
	Message      string
	Err          error
	// StatusCode is the server status of a rejected request, 0 otherwise.
	StatusCode int
	Retry      bool
}

// Option configures optional behaviour for the Controller.
type Option func(*Controller)

// WithLogger overrides the default logger.
func WithLogger(logger *log.Logger) Option {
	return func(c *Controller) {
		c.logger = logger
	}
}

// WithPublisher sends reservation events to pub.
func WithPublisher(pub events.Publisher) Option {
	return func(c *Controller) {
		c.publisher = pub
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) {
		c.now = now
	}
}

// Controller runs reservation actions. One mutation and one history load may be in flight at a
// time; extra calls are dropped with domain.ErrBusy.
type Controller struct {
	api       API
	sessions  Sessions
	logger    *log.Logger
	publisher events.Publisher
	now       func() time.Time

	scope    *scope.Scope
	mutation scope.Guard
	loading  scope.Guard
	view     *state.Store[View]
}

// New constructs a Controller.
func New(api API, sessions Sessions, opts ...Option) *Controller {
	c := &Controller{
		api:       api,
		sessions:  sessions,
		logger:    log.New(log.Writer(), "[reservations] ", log.LstdFlags|log.Lshortfile),
		publisher: events.NoopPublisher{},
		now:       time.Now,
		scope:     scope.New(context.Background()),
		view:      state.New(View{Status: StatusIdle, Reservations: []domain.Reservation{}}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// View returns the current view.
func (c *Controller) View() View { return c.view.Get() }

// Subscribe streams view updates.
func (c *Controller) Subscribe() (<-chan View, func()) { return c.view.Subscribe() }

// Close cancels in-flight work and discards results.
func (c *Controller) Close() { c.scope.Close() }

// Create books class for the stored user. Without a stored user id it fails before any request.
func (c *Controller) Create(ctx context.Context, class domain.GymClass) (*domain.Reservation, error) {
	userID, err := c.userID(ctx)
	if err != nil {
		return nil, c.fail(err)
	}
	if class.ID == "" {
		return nil, c.fail(domain.Precondition("class", "Pick a class to reserve."))
	}

	ctx, done, err := c.begin(ctx, &c.mutation)
	if err != nil {
		return nil, err
	}
	defer done()

	res, err := c.api.CreateReservation(ctx, userID, class.ID)
	if c.scope.Closed() {
		return nil, domain.ErrClosed
	}
	if err != nil {
		c.logger.Printf("reserve class %s failed: %v", class.ID, err)
		return nil, c.fail(err)
	}
	if res.Class == nil {
		classCopy := class
		res.Class = &classCopy
	}

	created := *res
	c.view.Update(func(v View) View {
		list := make([]domain.Reservation, 0, len(v.Reservations)+1)
		list = append(list, v.Reservations...)
		list = append(list, created)
		return View{Status: StatusSuccess, Reservations: list, Last: &created, Message: "Reservation confirmed."}
	})
	events.Emit(ctx, c.publisher, c.logger, events.TypeReservationCreated, userID, events.ReservationChanged{
		ReservationID: created.ID,
		ClassID:       class.ID,
		UserID:        userID,
		Status:        string(created.Status),
		OccurredAt:    c.now().UTC(),
	})
	return res, nil
}

// Cancel cancels a reservation for the session user and drops it from the held list. The list is
// not re-fetched.
func (c *Controller) Cancel(ctx context.Context, reservationID string) error {
	userID, err := c.userID(ctx)
	if err != nil {
		return c.fail(err)
	}
	if reservationID == "" {
		return c.fail(domain.Precondition("reservation", "Reservation id is required."))
	}

	ctx, done, err := c.begin(ctx, &c.mutation)
	if err != nil {
		return err
	}
	defer done()

	err = c.api.CancelReservation(ctx, reservationID)
	if c.scope.Closed() {
		return domain.ErrClosed
	}
	if err != nil {
		c.logger.Printf("cancel reservation %s failed: %v", reservationID, err)
		return c.fail(err)
	}

	var removed domain.Reservation
	c.view.Update(func(v View) View {
		kept := make([]domain.Reservation, 0, len(v.Reservations))
		for _, r := range v.Reservations {
			if r.ID == reservationID {
				removed = r
				continue
			}
			kept = append(kept, r)
		}
		return View{Status: StatusSuccess, Reservations: kept, Message: "Reservation cancelled."}
	})
	// The held list may not contain the reservation, so ClassID can be empty.
	events.Emit(ctx, c.publisher, c.logger, events.TypeReservationCancelled, userID, events.ReservationChanged{
		ReservationID: reservationID,
		ClassID:       removed.ClassID,
		UserID:        userID,
		Status:        string(domain.ReservationCancelled),
		OccurredAt:    c.now().UTC(),
	})
	return nil
}

// LoadHistory replaces the held list with the user's reservations made between from and to.
func (c *Controller) LoadHistory(ctx context.Context, from, to time.Time) error {
	userID, err := c.userID(ctx)
	if err != nil {
		return c.fail(err)
	}
	if to.Before(from) {
		return c.fail(domain.Precondition("range", "The end date must not be before the start date."))
	}

	ctx, done, err := c.begin(ctx, &c.loading)
	if err != nil {
		return err
	}
	defer done()

	list, err := c.api.History(ctx, userID, from, to)
	if c.scope.Closed() {
		return domain.ErrClosed
	}
	if err != nil {
		return c.fail(err)
	}
	c.view.Set(View{Status: StatusSuccess, Reservations: list})
	return nil
}

// Upcoming returns the held confirmed reservations whose class has not started yet, in list order.
func (c *Controller) Upcoming() []domain.Reservation {
	today := c.now().Format(domain.DateLayout)
	var out []domain.Reservation
	for _, r := range c.view.Get().Reservations {
		if r.Status != domain.ReservationConfirmed {
			continue
		}
		if r.Class != nil && r.Class.ClassDate != "" {
			if r.Class.ClassDate >= today {
				out = append(out, r)
			}
			continue
		}
		if !r.ReservationDate.Before(c.now()) {
			out = append(out, r)
		}
	}
	return out
}

// Attended returns the held reservations the user checked in to.
func (c *Controller) Attended() []domain.Reservation {
	var out []domain.Reservation
	for _, r := range c.view.Get().Reservations {
		if r.Attended() {
			out = append(out, r)
		}
	}
	return out
}

// Profile fetches the stored user's profile.
func (c *Controller) Profile(ctx context.Context) (*domain.User, error) {
	userID, err := c.userID(ctx)
	if err != nil {
		return nil, err
	}
	ctx, cancel := c.scope.Bind(ctx)
	defer cancel()
	return c.api.GetUser(ctx, userID)
}

func (c *Controller) userID(ctx context.Context) (string, error) {
	userID, err := c.sessions.UserID(ctx)
	if err != nil {
		return "", fmt.Errorf("read session: %w", err)
	}
	if userID == "" {
		return "", domain.ErrNotAuthenticated
	}
	return userID, nil
}

func (c *Controller) begin(ctx context.Context, guard *scope.Guard) (context.Context, func(), error) {
	if c.scope.Closed() {
		return nil, nil, domain.ErrClosed
	}
	if !guard.TryAcquire() {
		observability.RecordDropped("reservations")
		return nil, nil, domain.ErrBusy
	}
	bound, cancel := c.scope.Bind(ctx)
	c.view.Update(func(v View) View {
		v.Status = StatusLoading
		v.Err = nil
		v.StatusCode = 0
		v.Retry = false
		v.Message = ""
		return v
	})
	return bound, func() {
		cancel()
		guard.Release()
	}, nil
}

func (c *Controller) fail(err error) error {
	c.view.Update(func(v View) View {
		v.Status = StatusError
		v.Err = err
		v.StatusCode = domain.StatusCode(err)
		v.Retry = domain.IsConnectivity(err)
		v.Message = ""
		return v
	})
	return err
}
