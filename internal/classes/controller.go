// Package classes pages through the class listing and reacts to filter changes.
package classes

import (
	"context"
	"errors"
	"log"
	"sync"

	"example.com/gymbooking/internal/domain"
	"example.com/gymbooking/internal/observability"
	"example.com/gymbooking/internal/scope"
	"example.com/gymbooking/internal/state"
)

// ErrSuperseded is returned by a fetch whose result was dropped because the filters changed.
var ErrSuperseded = errors.New("superseded by a filter change")

// API lists classes.
type API interface {
	ListClasses(ctx context.Context, filter domain.FilterCriteria, page, size int) ([]domain.GymClass, error)
	GetClass(ctx context.Context, id string) (*domain.GymClass, error)
}

// View is the listing as a screen renders it. Page is the last page loaded, 0 before the first.
type View struct {
	Filters domain.FilterCriteria
	Page    int
	HasMore bool
	Classes []domain.GymClass
	Loading bool
	Err     error
	Retry   bool
}

// Option configures optional behaviour for the Controller.
type Option func(*Controller)

// WithLogger overrides the default logger.
func WithLogger(logger *log.Logger) Option {
	return func(c *Controller) {
		c.logger = logger
	}
}

// Controller owns the accumulated class list. At most one fetch runs at a time.
type Controller struct {
	api      API
	pageSize int
	logger   *log.Logger

	scope *scope.Scope
	guard scope.Guard
	view  *state.Store[View]

	mu          sync.Mutex
	gen         uint64
	cancelFetch context.CancelFunc
}

// New constructs a Controller fetching pageSize classes per page.
func New(api API, pageSize int, opts ...Option) *Controller {
	if pageSize <= 0 {
		pageSize = 10
	}
	c := &Controller{
		api:      api,
		pageSize: pageSize,
		logger:   log.New(log.Writer(), "[classes] ", log.LstdFlags|log.Lshortfile),
		scope:    scope.New(context.Background()),
		view:     state.New(View{HasMore: true, Classes: []domain.GymClass{}}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// View returns the current view. Classes must not be modified by the caller.
func (c *Controller) View() View { return c.view.Get() }

// Subscribe streams view updates.
func (c *Controller) Subscribe() (<-chan View, func()) { return c.view.Subscribe() }

// PageSize returns the configured page size.
func (c *Controller) PageSize() int { return c.pageSize }

// Close cancels the in-flight fetch and discards its result.
func (c *Controller) Close() { c.scope.Close() }

// LoadClasses fetches the page after the last one loaded, or page 1 after clearing the list when
// reset is set. The call is dropped with domain.ErrBusy while another fetch runs.
func (c *Controller) LoadClasses(ctx context.Context, reset bool) error {
	if !c.guard.TryAcquire() {
		observability.RecordDropped("classes")
		return domain.ErrBusy
	}
	defer c.guard.Release()

	if reset {
		c.view.Update(func(v View) View {
			v.Classes = []domain.GymClass{}
			v.Page = 0
			v.HasMore = true
			return v
		})
	}
	return c.fetch(ctx, c.view.Get().Page+1)
}

// LoadNextPage fetches the next page. It does nothing when the last page was short.
func (c *Controller) LoadNextPage(ctx context.Context) error {
	if !c.view.Get().HasMore {
		return nil
	}
	if !c.guard.TryAcquire() {
		observability.RecordDropped("classes")
		return domain.ErrBusy
	}
	defer c.guard.Release()

	v := c.view.Get()
	if !v.HasMore {
		return nil
	}
	return c.fetch(ctx, v.Page+1)
}

// Retry re-issues the page that failed last. Loaded classes are kept.
func (c *Controller) Retry(ctx context.Context) error {
	return c.LoadClasses(ctx, false)
}

// UpdateFilters replaces the filters and restarts from page 1 with an empty list. A fetch already
// in flight is cancelled and its result dropped.
func (c *Controller) UpdateFilters(ctx context.Context, filters domain.FilterCriteria) error {
	filters = filters.Normalize()
	if err := filters.Validate(); err != nil {
		c.view.Update(func(v View) View {
			v.Err = err
			v.Retry = false
			return v
		})
		return err
	}

	c.mu.Lock()
	c.gen++
	if c.cancelFetch != nil {
		c.cancelFetch()
	}
	c.mu.Unlock()

	if err := c.guard.Acquire(ctx); err != nil {
		return err
	}
	defer c.guard.Release()

	c.view.Update(func(View) View {
		return View{Filters: filters, HasMore: true, Classes: []domain.GymClass{}}
	})
	return c.fetch(ctx, 1)
}

// Class fetches one class without touching the list.
func (c *Controller) Class(ctx context.Context, id string) (*domain.GymClass, error) {
	if id == "" {
		return nil, domain.Precondition("id", "Class id is required.")
	}
	ctx, cancel := c.scope.Bind(ctx)
	defer cancel()
	return c.api.GetClass(ctx, id)
}

// fetch runs with the guard held.
func (c *Controller) fetch(ctx context.Context, page int) error {
	if c.scope.Closed() {
		return domain.ErrClosed
	}
	ctx, cancel := c.scope.Bind(ctx)
	defer cancel()

	c.mu.Lock()
	c.gen++
	gen := c.gen
	c.cancelFetch = cancel
	c.mu.Unlock()

	filters := c.view.Update(func(v View) View {
		v.Loading = true
		v.Err = nil
		v.Retry = false
		return v
	}).Filters

	items, err := c.api.ListClasses(ctx, filters, page, c.pageSize)

	c.mu.Lock()
	stale := gen != c.gen
	c.cancelFetch = nil
	c.mu.Unlock()
	switch {
	case c.scope.Closed():
		return domain.ErrClosed
	case stale:
		return ErrSuperseded
	}

	if err != nil {
		c.logger.Printf("load page %d failed: %v", page, err)
		c.view.Update(func(v View) View {
			v.Loading = false
			v.HasMore = false
			v.Err = err
			v.Retry = true
			return v
		})
		return err
	}

	c.view.Update(func(v View) View {
		merged := make([]domain.GymClass, 0, len(v.Classes)+len(items))
		merged = append(merged, v.Classes...)
		merged = append(merged, items...)
		v.Classes = merged
		v.Page = page
		v.HasMore = len(items) >= c.pageSize
		v.Loading = false
		return v
	})
	return nil
}
