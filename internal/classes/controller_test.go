package classes

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"example.com/gymbooking/internal/domain"
)

type pageRequest struct {
	filter domain.FilterCriteria
	page   int
	size   int
}

type stubAPI struct {
	mu       sync.Mutex
	requests []pageRequest
	pages    map[int][]domain.GymClass
	fail     map[int]error
	block    chan struct{}
	started  chan struct{}
}

func newStubAPI() *stubAPI {
	return &stubAPI{pages: map[int][]domain.GymClass{}, fail: map[int]error{}}
}

func (s *stubAPI) ListClasses(ctx context.Context, filter domain.FilterCriteria, page, size int) ([]domain.GymClass, error) {
	s.mu.Lock()
	s.requests = append(s.requests, pageRequest{filter: filter, page: page, size: size})
	block, started := s.block, s.started
	s.mu.Unlock()

	if started != nil {
		started <- struct{}{}
	}
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, &domain.ConnectivityError{Op: "GET /api/classes", Err: ctx.Err()}
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail[page]; err != nil {
		return nil, err
	}
	return s.pages[page], nil
}

func (s *stubAPI) GetClass(_ context.Context, id string) (*domain.GymClass, error) {
	return &domain.GymClass{ID: id, Name: "Spin"}, nil
}

func (s *stubAPI) requestCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}

func makeClasses(prefix string, n int) []domain.GymClass {
	out := make([]domain.GymClass, n)
	for i := range out {
		out[i] = domain.GymClass{ID: fmt.Sprintf("%s-%d", prefix, i), Name: "Class"}
	}
	return out
}

func ids(classes []domain.GymClass) []string {
	out := make([]string, len(classes))
	for i, c := range classes {
		out[i] = c.ID
	}
	return out
}

func TestPagesConcatenateInServerOrder(t *testing.T) {
	api := newStubAPI()
	api.pages[1] = makeClasses("p1", 10)
	api.pages[2] = makeClasses("p2", 10)
	api.pages[3] = makeClasses("p3", 4)
	c := New(api, 10)
	defer c.Close()
	ctx := context.Background()

	require.NoError(t, c.LoadClasses(ctx, true))
	require.True(t, c.View().HasMore)
	require.NoError(t, c.LoadNextPage(ctx))
	require.True(t, c.View().HasMore)
	require.NoError(t, c.LoadNextPage(ctx))

	view := c.View()
	require.False(t, view.HasMore)
	require.Equal(t, 3, view.Page)

	var want []string
	for _, p := range []int{1, 2, 3} {
		want = append(want, ids(api.pages[p])...)
	}
	require.Equal(t, want, ids(view.Classes))

	// Short page ends pagination.
	require.NoError(t, c.LoadNextPage(ctx))
	require.Equal(t, 3, api.requestCount())
	for i, req := range api.requests {
		require.Equal(t, i+1, req.page)
		require.Equal(t, 10, req.size)
	}
}

func TestHasMoreFalseOnlyWhenPageShort(t *testing.T) {
	api := newStubAPI()
	api.pages[1] = makeClasses("p1", 10)
	c := New(api, 10)
	defer c.Close()
	ctx := context.Background()

	require.NoError(t, c.LoadClasses(ctx, true))
	require.True(t, c.View().HasMore)

	require.NoError(t, c.LoadNextPage(ctx))
	require.False(t, c.View().HasMore)
	require.Len(t, c.View().Classes, 10)
}

func TestResetDiscardsAccumulated(t *testing.T) {
	api := newStubAPI()
	api.pages[1] = makeClasses("p1", 10)
	api.pages[2] = makeClasses("p2", 10)
	c := New(api, 10)
	defer c.Close()
	ctx := context.Background()

	require.NoError(t, c.LoadClasses(ctx, true))
	require.NoError(t, c.LoadNextPage(ctx))
	require.Len(t, c.View().Classes, 20)

	require.NoError(t, c.LoadClasses(ctx, true))
	require.Equal(t, ids(api.pages[1]), ids(c.View().Classes))
	require.Equal(t, 1, c.View().Page)
}

func TestUpdateFiltersRestartsFromFirstPage(t *testing.T) {
	api := newStubAPI()
	api.pages[1] = makeClasses("p1", 10)
	api.pages[2] = makeClasses("p2", 10)
	c := New(api, 10)
	defer c.Close()
	ctx := context.Background()

	require.NoError(t, c.LoadClasses(ctx, true))
	require.NoError(t, c.LoadNextPage(ctx))

	filters := domain.FilterCriteria{Location: " Downtown ", Discipline: "Yoga", Date: "2025-03-01"}
	require.NoError(t, c.UpdateFilters(ctx, filters))

	view := c.View()
	require.Equal(t, 1, view.Page)
	require.Equal(t, ids(api.pages[1]), ids(view.Classes))
	require.Equal(t, "Downtown", view.Filters.Location)

	last := api.requests[len(api.requests)-1]
	require.Equal(t, 1, last.page)
	require.Equal(t, filters.Normalize(), last.filter)
}

func TestUpdateFiltersRejectsBadDate(t *testing.T) {
	api := newStubAPI()
	c := New(api, 10)
	defer c.Close()

	err := c.UpdateFilters(context.Background(), domain.FilterCriteria{Date: "tomorrow"})
	var precond *domain.PreconditionError
	require.ErrorAs(t, err, &precond)
	require.Zero(t, api.requestCount())
	require.Equal(t, err, c.View().Err)
}

func TestConcurrentFetchIsDropped(t *testing.T) {
	api := newStubAPI()
	api.pages[1] = makeClasses("p1", 10)
	api.block = make(chan struct{})
	api.started = make(chan struct{}, 1)
	c := New(api, 10)
	defer c.Close()
	ctx := context.Background()

	done := make(chan error, 1)
	go func() { done <- c.LoadClasses(ctx, true) }()
	<-api.started
	require.True(t, c.View().Loading)

	require.ErrorIs(t, c.LoadClasses(ctx, true), domain.ErrBusy)
	require.ErrorIs(t, c.LoadNextPage(ctx), domain.ErrBusy)

	close(api.block)
	require.NoError(t, <-done)
	require.Equal(t, 1, api.requestCount())
	require.Len(t, c.View().Classes, 10)
}

func TestFailedPageKeepsLoadedClasses(t *testing.T) {
	api := newStubAPI()
	api.pages[1] = makeClasses("p1", 10)
	api.pages[2] = makeClasses("p2", 3)
	api.fail[2] = &domain.ConnectivityError{Op: "GET /api/classes", Err: errors.New("timeout")}
	c := New(api, 10)
	defer c.Close()
	ctx := context.Background()

	require.NoError(t, c.LoadClasses(ctx, true))
	require.Error(t, c.LoadNextPage(ctx))

	view := c.View()
	require.Equal(t, ids(api.pages[1]), ids(view.Classes))
	require.False(t, view.HasMore)
	require.True(t, view.Retry)
	require.Error(t, view.Err)
	require.False(t, view.Loading)

	// Pagination stays halted until an explicit retry.
	require.NoError(t, c.LoadNextPage(ctx))
	require.Equal(t, 2, api.requestCount())

	api.mu.Lock()
	delete(api.fail, 2)
	api.mu.Unlock()
	require.NoError(t, c.Retry(ctx))

	view = c.View()
	require.Len(t, view.Classes, 13)
	require.Nil(t, view.Err)
	require.Equal(t, 2, api.requests[len(api.requests)-1].page)
}

func TestFilterChangeSupersedesInFlightFetch(t *testing.T) {
	api := newStubAPI()
	api.pages[1] = makeClasses("p1", 10)
	api.block = make(chan struct{})
	api.started = make(chan struct{}, 2)
	c := New(api, 10)
	defer c.Close()
	ctx := context.Background()

	first := make(chan error, 1)
	go func() { first <- c.LoadClasses(ctx, true) }()
	<-api.started

	second := make(chan error, 1)
	go func() { second <- c.UpdateFilters(ctx, domain.FilterCriteria{Discipline: "Spin"}) }()

	require.ErrorIs(t, <-first, ErrSuperseded)
	<-api.started
	close(api.block)
	require.NoError(t, <-second)

	view := c.View()
	require.Equal(t, "Spin", view.Filters.Discipline)
	require.Equal(t, ids(api.pages[1]), ids(view.Classes))
}

func TestCloseDropsResult(t *testing.T) {
	api := newStubAPI()
	api.pages[1] = makeClasses("p1", 10)
	api.block = make(chan struct{})
	api.started = make(chan struct{}, 1)
	c := New(api, 10)
	ctx := context.Background()

	done := make(chan error, 1)
	go func() { done <- c.LoadClasses(ctx, true) }()
	<-api.started
	c.Close()

	select {
	case err := <-done:
		require.ErrorIs(t, err, domain.ErrClosed)
	case <-time.After(time.Second):
		t.Fatal("fetch not cancelled")
	}
	require.Empty(t, c.View().Classes)
}

func TestClassDetail(t *testing.T) {
	c := New(newStubAPI(), 10)
	defer c.Close()

	class, err := c.Class(context.Background(), "c9")
	require.NoError(t, err)
	require.Equal(t, "c9", class.ID)

	_, err = c.Class(context.Background(), "")
	require.Error(t, err)
}

func TestDefaultLoggerUsesStandardOutput(t *testing.T) {
	c := New(newStubAPI(), 10)
	defer c.Close()

	require.Equal(t, log.Writer(), c.logger.Writer())
	require.Equal(t, "[classes] ", c.logger.Prefix())
}
