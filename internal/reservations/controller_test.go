package reservations

import (
	"context"
	"log"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"example.com/gymbooking/internal/domain"
	"example.com/gymbooking/internal/events"
	"example.com/gymbooking/internal/session"
)

type stubAPI struct {
	mu        sync.Mutex
	calls     []string
	createErr error
	cancelErr error
	history   []domain.Reservation
	block     chan struct{}
	started   chan struct{}
}

func (s *stubAPI) record(call string) {
	s.mu.Lock()
	s.calls = append(s.calls, call)
	s.mu.Unlock()
}

func (s *stubAPI) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

func (s *stubAPI) CreateReservation(ctx context.Context, userID, classID string) (*domain.Reservation, error) {
	s.record("create:" + userID + ":" + classID)
	if s.started != nil {
		s.started <- struct{}{}
	}
	if s.block != nil {
		select {
		case <-s.block:
		case <-ctx.Done():
			return nil, &domain.ConnectivityError{Op: "POST /api/reservations", Err: ctx.Err()}
		}
	}
	if s.createErr != nil {
		return nil, s.createErr
	}
	return &domain.Reservation{ID: "r-" + classID, ClassID: classID, UserID: userID, Status: domain.ReservationConfirmed}, nil
}

func (s *stubAPI) CancelReservation(_ context.Context, id string) error {
	s.record("cancel:" + id)
	return s.cancelErr
}

func (s *stubAPI) History(_ context.Context, userID string, _, _ time.Time) ([]domain.Reservation, error) {
	s.record("history:" + userID)
	return s.history, nil
}

func (s *stubAPI) GetUser(_ context.Context, id string) (*domain.User, error) {
	s.record("user:" + id)
	return &domain.User{ID: id, Email: "a@b.com"}, nil
}

func loggedIn(t *testing.T, userID string) *session.Service {
	t.Helper()
	sessions := session.NewService(session.NewMemoryStore())
	if userID != "" {
		require.NoError(t, sessions.Save(context.Background(), domain.Session{AuthToken: "T", UserID: userID}))
	}
	return sessions
}

func TestCreateWithoutUserFailsLocally(t *testing.T) {
	api := &stubAPI{}
	c := New(api, loggedIn(t, ""))
	defer c.Close()

	_, err := c.Create(context.Background(), domain.GymClass{ID: "c1"})
	require.ErrorIs(t, err, domain.ErrNotAuthenticated)
	require.Zero(t, api.callCount())
	require.Equal(t, StatusError, c.View().Status)
}

func TestCreateSuccess(t *testing.T) {
	api := &stubAPI{}
	c := New(api, loggedIn(t, "42"))
	defer c.Close()

	res, err := c.Create(context.Background(), domain.GymClass{ID: "c1", Name: "Yoga"})
	require.NoError(t, err)
	require.Equal(t, "r-c1", res.ID)
	require.Equal(t, "Yoga", res.Class.Name)

	view := c.View()
	require.Equal(t, StatusSuccess, view.Status)
	require.Len(t, view.Reservations, 1)
	require.Equal(t, "r-c1", view.Last.ID)
	require.Equal(t, []string{"create:42:c1"}, api.calls)
}

func TestCreateRejectedSurfacesStatus(t *testing.T) {
	api := &stubAPI{createErr: &domain.APIError{Status: http.StatusConflict, Message: "Class is full"}}
	c := New(api, loggedIn(t, "42"))
	defer c.Close()

	_, err := c.Create(context.Background(), domain.GymClass{ID: "c1"})
	require.Error(t, err)

	view := c.View()
	require.Equal(t, StatusError, view.Status)
	require.Equal(t, http.StatusConflict, view.StatusCode)
	require.False(t, view.Retry)
	require.Equal(t, "Class is full", domain.UserMessage(view.Err))
}

func TestSecondMutationIsDropped(t *testing.T) {
	api := &stubAPI{block: make(chan struct{}), started: make(chan struct{}, 1)}
	c := New(api, loggedIn(t, "42"))
	defer c.Close()
	ctx := context.Background()

	done := make(chan error, 1)
	go func() {
		_, err := c.Create(ctx, domain.GymClass{ID: "c1"})
		done <- err
	}()
	<-api.started

	_, err := c.Create(ctx, domain.GymClass{ID: "c1"})
	require.ErrorIs(t, err, domain.ErrBusy)
	require.ErrorIs(t, c.Cancel(ctx, "r-c1"), domain.ErrBusy)

	close(api.block)
	require.NoError(t, <-done)
	require.Equal(t, 1, api.callCount())
}

func TestCancelRemovesLocallyWithoutRefetch(t *testing.T) {
	api := &stubAPI{history: []domain.Reservation{
		{ID: "r1", ClassID: "c1", UserID: "42", Status: domain.ReservationConfirmed},
		{ID: "r2", ClassID: "c2", UserID: "42", Status: domain.ReservationConfirmed},
	}}
	c := New(api, loggedIn(t, "42"))
	defer c.Close()
	ctx := context.Background()

	from := time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, c.LoadHistory(ctx, from, from.AddDate(0, 1, 0)))
	require.Len(t, c.View().Reservations, 2)

	require.NoError(t, c.Cancel(ctx, "r1"))

	view := c.View()
	require.Len(t, view.Reservations, 1)
	require.Equal(t, "r2", view.Reservations[0].ID)
	require.Equal(t, []string{"history:42", "cancel:r1"}, api.calls)
}

type capturedEvent struct {
	eventType string
	key       string
	payload   events.ReservationChanged
}

type capturePublisher struct {
	mu     sync.Mutex
	events []capturedEvent
}

func (p *capturePublisher) Publish(_ context.Context, eventType, key string, payload interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, capturedEvent{eventType: eventType, key: key, payload: payload.(events.ReservationChanged)})
	return nil
}

func (p *capturePublisher) Close() error { return nil }

func TestCancelUnloadedReservationReportsSessionUser(t *testing.T) {
	api := &stubAPI{}
	pub := &capturePublisher{}
	c := New(api, loggedIn(t, "42"), WithPublisher(pub))
	defer c.Close()

	require.NoError(t, c.Cancel(context.Background(), "r9"))
	require.Len(t, pub.events, 1)
	got := pub.events[0]
	require.Equal(t, events.TypeReservationCancelled, got.eventType)
	require.Equal(t, "42", got.key)
	require.Equal(t, "42", got.payload.UserID)
	require.Equal(t, "r9", got.payload.ReservationID)
}

func TestCancelWithoutUserFailsLocally(t *testing.T) {
	api := &stubAPI{}
	c := New(api, loggedIn(t, ""))
	defer c.Close()

	require.ErrorIs(t, c.Cancel(context.Background(), "r1"), domain.ErrNotAuthenticated)
	require.Zero(t, api.callCount())
}

func TestCancelFailureKeepsList(t *testing.T) {
	api := &stubAPI{
		history:   []domain.Reservation{{ID: "r1", Status: domain.ReservationConfirmed}},
		cancelErr: &domain.APIError{Status: http.StatusNotFound},
	}
	c := New(api, loggedIn(t, "42"))
	defer c.Close()
	ctx := context.Background()

	now := time.Now()
	require.NoError(t, c.LoadHistory(ctx, now.AddDate(0, -1, 0), now))
	require.Error(t, c.Cancel(ctx, "r1"))
	require.Len(t, c.View().Reservations, 1)
	require.Equal(t, http.StatusNotFound, c.View().StatusCode)
}

func TestLoadHistoryRejectsInvertedRange(t *testing.T) {
	api := &stubAPI{}
	c := New(api, loggedIn(t, "42"))
	defer c.Close()

	now := time.Now()
	var precond *domain.PreconditionError
	require.ErrorAs(t, c.LoadHistory(context.Background(), now, now.AddDate(0, 0, -1)), &precond)
	require.Zero(t, api.callCount())
}

func TestUpcomingAndAttended(t *testing.T) {
	checkIn := time.Date(2025, time.February, 20, 9, 5, 0, 0, time.UTC)
	api := &stubAPI{history: []domain.Reservation{
		{ID: "past", Status: domain.ReservationCompleted, CheckInAt: &checkIn, Class: &domain.GymClass{ClassDate: "2025-02-20"}},
		{ID: "today", Status: domain.ReservationConfirmed, Class: &domain.GymClass{ClassDate: "2025-03-01"}},
		{ID: "cancelled", Status: domain.ReservationCancelled, Class: &domain.GymClass{ClassDate: "2025-03-04"}},
		{ID: "later", Status: domain.ReservationConfirmed, ReservationDate: time.Date(2025, time.March, 9, 0, 0, 0, 0, time.UTC)},
	}}
	now := time.Date(2025, time.March, 1, 12, 0, 0, 0, time.UTC)
	c := New(api, loggedIn(t, "42"), WithClock(func() time.Time { return now }))
	defer c.Close()

	require.NoError(t, c.LoadHistory(context.Background(), now.AddDate(0, -1, 0), now.AddDate(0, 1, 0)))

	var upcoming []string
	for _, r := range c.Upcoming() {
		upcoming = append(upcoming, r.ID)
	}
	require.Equal(t, []string{"today", "later"}, upcoming)

	attended := c.Attended()
	require.Len(t, attended, 1)
	require.Equal(t, "past", attended[0].ID)
}

func TestProfileNeedsSession(t *testing.T) {
	api := &stubAPI{}
	_, err := New(api, loggedIn(t, "")).Profile(context.Background())
	require.ErrorIs(t, err, domain.ErrNotAuthenticated)

	user, err := New(api, loggedIn(t, "42")).Profile(context.Background())
	require.NoError(t, err)
	require.Equal(t, "42", user.ID)
	require.Equal(t, []string{"user:42"}, api.calls)
}

func TestDefaultLoggerUsesStandardOutput(t *testing.T) {
	c := New(&stubAPI{}, loggedIn(t, "42"))
	defer c.Close()

	require.Equal(t, log.Writer(), c.logger.Writer())
	require.Equal(t, "[reservations] ", c.logger.Prefix())
}
