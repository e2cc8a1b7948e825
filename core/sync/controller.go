package sync

import (
	"context"
	"fmt"
	gosync "sync"
	"time"

	"github.com/kfrancois/fieldsync/core/logger"
	"github.com/kfrancois/fieldsync/core/metrics"
	"github.com/kfrancois/fieldsync/core/schedule"
	"github.com/kfrancois/fieldsync/core/timerange"
)

// State is the load-lifecycle phase of the controller.
type State int

const (
	StateIdle State = iota
	StateLoading
	StateReady
	StateError
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// Snapshot is the controller state handed to presentation layers.
type Snapshot struct {
	State     State
	IsLoading bool
	Err       string
	LastSync  time.Time
	CompanyID string
	Visible   timerange.Range
}

// Controller orchestrates loading: it owns the store, checks range coverage
// on every visible-range change, fetches on a miss and merges the result.
// Fetch failures surface as a message on the snapshot and wait for the next
// range change or an explicit Refresh; there is no retry loop.
type Controller struct {
	store   *schedule.Store
	gateway Gateway
	log     logger.Logger
	sink    metrics.SyncSink

	mu         gosync.Mutex
	state      State
	errMsg     string
	lastSync   time.Time
	companyID  string
	visible    timerange.Range
	visibleSet bool
	closed     bool

	pageSize int
	offset   int
}

// DefaultUnassignedPageSize bounds one page of the unassigned list.
const DefaultUnassignedPageSize = 25

// NewController creates a controller. Store and gateway are mandatory; a nil
// sink defaults to NopSink.
func NewController(store *schedule.Store, gateway Gateway, log logger.Logger, sink metrics.SyncSink) (*Controller, error) {
	if store == nil || gateway == nil || log == nil {
		return nil, fmt.Errorf("sync: nil parameter provided to NewController")
	}
	if sink == nil {
		sink = metrics.NopSink{}
	}
	return &Controller{
		store:    store,
		gateway:  gateway,
		log:      log,
		sink:     sink,
		pageSize: DefaultUnassignedPageSize,
	}, nil
}

// Store exposes the state container for mutation and derived reads.
func (c *Controller) Store() *schedule.Store { return c.store }

// Snapshot returns the current load state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Snapshot{
		State:     c.state,
		IsLoading: c.state == StateLoading,
		Err:       c.errMsg,
		LastSync:  c.lastSync,
		CompanyID: c.companyID,
		Visible:   c.visible,
	}
}

// SetVisibleRange records the requested window and loads it unless the
// store's coverage already contains it.
func (c *Controller) SetVisibleRange(ctx context.Context, r timerange.Range) error {
	c.mu.Lock()
	c.visible = r
	c.visibleSet = true
	c.mu.Unlock()
	if timerange.HasCoverage(c.store.LastFetchedRange(), r, c.store.JobCount()) {
		c.log.Debugf("range %v-%v covered, skipping fetch", r.Start, r.End)
		return nil
	}
	return c.load(ctx, r)
}

// Refresh forces a fetch of the current visible range regardless of coverage.
func (c *Controller) Refresh(ctx context.Context) error {
	c.mu.Lock()
	if !c.visibleSet {
		c.mu.Unlock()
		return fmt.Errorf("no visible range set")
	}
	r := c.visible
	c.mu.Unlock()
	return c.load(ctx, r)
}

// Resync satisfies the reconciler's fallback contract.
func (c *Controller) Resync(ctx context.Context) error { return c.Refresh(ctx) }

// Close marks the controller torn down. In-flight fetch results are discarded
// rather than merged; the request itself is not aborted.
func (c *Controller) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
}

func (c *Controller) load(ctx context.Context, r timerange.Range) error {
	company, err := c.resolveCompany(ctx)
	if err != nil {
		c.fail(fmt.Sprintf("resolve company: %v", err))
		return err
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.state = StateLoading
	c.errMsg = ""
	c.mu.Unlock()

	start := time.Now()
	res, err := c.gateway.FetchScheduleData(ctx, Query{CompanyID: company, Range: r})
	latency := time.Since(start)

	if recErr := c.sink.RecordFetch(metrics.FetchEvent{
		CompanyID: company, Range: r, Jobs: len(res.Jobs), Latency: latency, Err: err, Time: start,
	}); recErr != nil {
		c.log.Warnf("fetch metrics: %v", recErr)
	}
	if err != nil {
		// fail discards the error when the controller is already closed.
		c.fail(fmt.Sprintf("fetch schedule: %v", err))
		return err
	}

	// The closed-check and the merge share one critical section so Close
	// landing after the fetch returns still discards the result.
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.store.MergeFetchResult(res.Jobs, res.Technicians, r)
	if res.Unassigned != nil {
		c.store.AppendUnassigned(res.Unassigned.Jobs, schedule.UnassignedMeta{
			HasMore:    res.Unassigned.HasMore,
			TotalCount: res.Unassigned.TotalCount,
		})
	}
	c.state = StateReady
	c.lastSync = time.Now()
	c.offset = 0
	c.mu.Unlock()

	if err := c.sink.RecordJobCount(c.store.JobCount()); err != nil {
		c.log.Warnf("job count metrics: %v", err)
	}
	c.log.Infof("loaded %d jobs, %d technicians for %s", len(res.Jobs), len(res.Technicians), company)
	return nil
}

// LoadMoreUnassigned fetches the next page of the unassigned list, appending
// to the store rather than replacing it. Passing a new search term resets the
// cursor to the first page.
func (c *Controller) LoadMoreUnassigned(ctx context.Context, search string) error {
	company, err := c.resolveCompany(ctx)
	if err != nil {
		c.fail(fmt.Sprintf("resolve company: %v", err))
		return err
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	if search != c.store.UnassignedMeta().SearchTerm {
		c.offset = 0
	}
	offset := c.offset
	limit := c.pageSize
	c.mu.Unlock()

	c.store.SetUnassignedLoading(true)
	defer c.store.SetUnassignedLoading(false)

	res, err := c.gateway.FetchScheduleData(ctx, Query{
		CompanyID:      company,
		UnassignedOnly: true,
		Search:         search,
		Offset:         offset,
		Limit:          limit,
	})
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()
	if err != nil {
		c.fail(fmt.Sprintf("fetch unassigned: %v", err))
		return err
	}
	page := res.Unassigned
	if page == nil {
		page = &UnassignedPage{}
	}
	c.store.AppendUnassigned(page.Jobs, schedule.UnassignedMeta{
		HasMore:    page.HasMore,
		TotalCount: page.TotalCount,
		SearchTerm: search,
	})
	c.mu.Lock()
	c.offset = offset + len(page.Jobs)
	c.mu.Unlock()
	return nil
}

// resolveCompany caches the company id for the session.
func (c *Controller) resolveCompany(ctx context.Context) (string, error) {
	c.mu.Lock()
	if c.companyID != "" {
		id := c.companyID
		c.mu.Unlock()
		return id, nil
	}
	c.mu.Unlock()

	id, err := c.gateway.ResolveCompany(ctx)
	if err != nil {
		return "", err
	}
	if id == "" {
		return "", fmt.Errorf("no active company for current user")
	}
	c.mu.Lock()
	c.companyID = id
	c.mu.Unlock()
	return id, nil
}

func (c *Controller) fail(msg string) {
	c.mu.Lock()
	if !c.closed {
		c.state = StateError
		c.errMsg = msg
	}
	c.mu.Unlock()
	c.log.Errorf("%s", msg)
}
