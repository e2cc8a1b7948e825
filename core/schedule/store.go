package schedule

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kfrancois/fieldsync/core/model"
	"github.com/kfrancois/fieldsync/core/timerange"
	"github.com/kfrancois/fieldsync/internal/eventbus"
)

// UnassignedMeta is the pagination cursor for the unassigned-jobs list. That
// list is loaded incrementally and independently of the calendar window.
type UnassignedMeta struct {
	HasMore       bool   `json:"has_more"`
	TotalCount    int    `json:"total_count"`
	SearchTerm    string `json:"search_term"`
	IsLoadingMore bool   `json:"is_loading_more"`
}

// ChangeNotice is published on the bus after every mutation so subscribers
// can recompute derived views.
type ChangeNotice struct {
	Reason string
	JobID  string
}

// Store is the canonical in-memory schedule state. It exclusively owns job
// and technician records; callers hold only ids. All writers go through its
// methods so the assignment invariant is enforced at a single choke point.
//
// MergeFetchResult is a full replace: an optimistic local mutation not yet
// confirmed by the server can be overwritten by a subsequent merge. That is
// a known trade-off, not a bug.
type Store struct {
	mu           sync.RWMutex
	jobs         map[string]model.Job
	technicians  map[string]model.Technician
	lastFetched  *timerange.Range
	selectedJob  string
	selectedTech string
	unassigned   UnassignedMeta
	bus          *eventbus.TypedBus[ChangeNotice]
}

// NewStore creates an empty store. The bus may be nil when no subscriber
// needs change notices.
func NewStore(bus *eventbus.TypedBus[ChangeNotice]) *Store {
	return &Store{
		jobs:        map[string]model.Job{},
		technicians: map[string]model.Technician{},
		bus:         bus,
	}
}

func (s *Store) notify(reason, jobID string) {
	if s.bus != nil {
		s.bus.Publish(ChangeNotice{Reason: reason, JobID: jobID})
	}
}

// MergeFetchResult replaces the job and technician maps wholesale and records
// the fetched range as the new coverage window. The unassigned total is
// recomputed from the merged set.
func (s *Store) MergeFetchResult(jobs []model.Job, technicians []model.Technician, rng timerange.Range) {
	s.mu.Lock()
	s.jobs = make(map[string]model.Job, len(jobs))
	unassigned := 0
	for _, j := range jobs {
		s.jobs[j.ID] = j
		if j.IsUnassigned {
			unassigned++
		}
	}
	s.technicians = make(map[string]model.Technician, len(technicians))
	for _, t := range technicians {
		s.technicians[t.ID] = t
	}
	r := rng
	s.lastFetched = &r
	s.unassigned.TotalCount = unassigned
	s.mu.Unlock()
	s.notify("merge", "")
}

// AppendUnassigned merges a page of unassigned jobs additively and advances
// the pagination metadata. Unlike MergeFetchResult, existing records survive.
func (s *Store) AppendUnassigned(jobs []model.Job, meta UnassignedMeta) {
	s.mu.Lock()
	for _, j := range jobs {
		s.jobs[j.ID] = j
	}
	s.unassigned = meta
	s.mu.Unlock()
	s.notify("append-unassigned", "")
}

// SetUnassignedLoading flips the in-flight flag for the unassigned list.
func (s *Store) SetUnassignedLoading(loading bool) {
	s.mu.Lock()
	s.unassigned.IsLoadingMore = loading
	s.mu.Unlock()
}

// AddJob inserts the job and returns its id. Jobs created locally before
// server confirmation get a temporary uuid so the record is addressable until
// the next merge replaces it.
func (s *Store) AddJob(j model.Job) string {
	if j.ID == "" {
		j.ID = "local-" + uuid.NewString()
	}
	if j.TechnicianID == "" && len(j.Assignments) == 0 {
		j.IsUnassigned = true
	}
	s.mu.Lock()
	s.jobs[j.ID] = j
	if j.IsUnassigned {
		s.unassigned.TotalCount++
	}
	s.mu.Unlock()
	s.notify("add", j.ID)
	return j.ID
}

// UpdateJob merges only the fields set on the patch into the job, leaving
// the rest untouched. A missing id is a no-op; mutations never error.
func (s *Store) UpdateJob(id string, patch JobPatch) bool {
	s.mu.Lock()
	j, ok := s.jobs[id]
	if !ok {
		s.mu.Unlock()
		return false
	}
	wasUnassigned := j.IsUnassigned
	patch.apply(&j)
	s.jobs[id] = j
	s.adjustUnassignedLocked(wasUnassigned, j.IsUnassigned)
	s.mu.Unlock()
	s.notify("update", id)
	return true
}

// MoveJob reschedules the job to a new technician and time slot, preserving
// every other field. An empty technician id moves the job to the unassigned
// pool. An end before the start is clamped to the start rather than stored
// inconsistently.
func (s *Store) MoveJob(id, technicianID string, start, end time.Time) bool {
	s.mu.Lock()
	j, ok := s.jobs[id]
	if !ok {
		s.mu.Unlock()
		return false
	}
	if end.Before(start) {
		end = start
	}
	wasUnassigned := j.IsUnassigned
	j.Assign(technicianID)
	j.StartTime = start
	j.EndTime = end
	s.jobs[id] = j
	s.adjustUnassignedLocked(wasUnassigned, j.IsUnassigned)
	s.mu.Unlock()
	s.notify("move", id)
	return true
}

// DeleteJob removes the job. Deleting an absent id is a no-op, so remote
// delete events can be applied idempotently.
func (s *Store) DeleteJob(id string) {
	s.mu.Lock()
	j, ok := s.jobs[id]
	if ok {
		delete(s.jobs, id)
		s.adjustUnassignedLocked(j.IsUnassigned, false)
		if s.selectedJob == id {
			s.selectedJob = ""
		}
	}
	s.mu.Unlock()
	if ok {
		s.notify("delete", id)
	}
}

// DuplicateJob copies the job under a fresh local id and returns the copy.
func (s *Store) DuplicateJob(id string) (model.Job, bool) {
	s.mu.RLock()
	j, ok := s.jobs[id]
	s.mu.RUnlock()
	if !ok {
		return model.Job{}, false
	}
	j.ID = "local-" + uuid.NewString()
	j.Assignments = append([]model.Assignment(nil), j.Assignments...)
	s.AddJob(j)
	return j, true
}

// GetJobByID looks up a job. No error for a missing id.
func (s *Store) GetJobByID(id string) (model.Job, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	j, ok := s.jobs[id]
	return j, ok
}

func (s *Store) adjustUnassignedLocked(was, is bool) {
	switch {
	case was && !is:
		if s.unassigned.TotalCount > 0 {
			s.unassigned.TotalCount--
		}
	case !was && is:
		s.unassigned.TotalCount++
	}
}
