// Package schedule exposes read-only HTTP views over the local schedule
// store for dashboards and debugging.
package schedule

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/kfrancois/fieldsync/core/model"
	"github.com/kfrancois/fieldsync/core/schedule"
	corsync "github.com/kfrancois/fieldsync/core/sync"
	"github.com/kfrancois/fieldsync/core/timerange"
	"github.com/kfrancois/fieldsync/core/view"
)

// Snapshotter reports the current synchronization state.
type Snapshotter interface {
	Snapshot() corsync.Snapshot
}

// FeedStatus reports the change-feed connection state. It degrades freshness,
// not correctness, so it is surfaced separately from the sync error.
type FeedStatus interface {
	Connected() bool
	ConnError() string
}

// NewJobsHandler returns an HTTP handler exposing filtered jobs via
// GET /api/schedule/jobs.
func NewJobsHandler(store *schedule.Store) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		q := r.URL.Query()
		crit := view.Criteria{SearchQuery: q.Get("search")}
		if id := q.Get("technician_id"); id != "" {
			crit.TechnicianIDs = []string{id}
		}
		if s := q.Get("status"); s != "" {
			crit.Statuses = []model.JobStatus{model.JobStatus(s)}
		}
		if p := q.Get("priority"); p != "" {
			crit.Priorities = []model.JobPriority{model.JobPriority(p)}
		}
		jobs := view.Apply(store.Jobs(), crit, q.Get("hide_completed") != "true")

		if from, to := q.Get("from"), q.Get("to"); from != "" && to != "" {
			start, err1 := time.Parse(time.RFC3339, from)
			end, err2 := time.Parse(time.RFC3339, to)
			if err1 != nil || err2 != nil {
				http.Error(w, "invalid time window", http.StatusBadRequest)
				return
			}
			jobs = view.VisibleJobs(jobs, timerange.Range{Start: start, End: end})
		}
		if jobs == nil {
			jobs = []model.Job{}
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(jobs); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
	})
}

type statusResponse struct {
	State         string          `json:"state"`
	IsLoading     bool            `json:"is_loading"`
	Error         string          `json:"error,omitempty"`
	LastSync      *time.Time      `json:"last_sync,omitempty"`
	CompanyID     string          `json:"company_id,omitempty"`
	Visible       timerange.Range `json:"visible_range"`
	JobCount      int             `json:"job_count"`
	Unassigned    int             `json:"unassigned_total"`
	FeedConnected bool            `json:"feed_connected"`
	FeedError     string          `json:"feed_error,omitempty"`
}

// NewStatusHandler returns an HTTP handler exposing the sync state via
// GET /api/schedule/status. The feed argument may be nil when no change feed
// is attached.
func NewStatusHandler(store *schedule.Store, snap Snapshotter, feedStatus FeedStatus) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		s := snap.Snapshot()
		res := statusResponse{
			State:      s.State.String(),
			IsLoading:  s.IsLoading,
			Error:      s.Err,
			CompanyID:  s.CompanyID,
			Visible:    s.Visible,
			JobCount:   store.JobCount(),
			Unassigned: store.UnassignedMeta().TotalCount,
		}
		if !s.LastSync.IsZero() {
			t := s.LastSync
			res.LastSync = &t
		}
		if feedStatus != nil {
			res.FeedConnected = feedStatus.Connected()
			res.FeedError = feedStatus.ConnError()
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(res); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
	})
}
