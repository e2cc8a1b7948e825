// Package view implements the derived-view pipeline over the schedule store.
// Every function is pure: same input, same ordered output. The UI recomputes
// views from the latest store state on each change notice, so determinism
// here is what keeps the calendar from flickering.
package view

import (
	"sort"
	"strings"

	"github.com/kfrancois/fieldsync/core/model"
	"github.com/kfrancois/fieldsync/core/timerange"
)

// Criteria restricts the job set. Empty sets and an empty query mean
// "no restriction", not "match nothing".
type Criteria struct {
	TechnicianIDs []string
	Statuses      []model.JobStatus
	Priorities    []model.JobPriority
	SearchQuery   string
}

// FilterJobs applies set-membership and substring criteria.
func FilterJobs(jobs []model.Job, c Criteria) []model.Job {
	techs := toSet(c.TechnicianIDs)
	statuses := toSet(c.Statuses)
	priorities := toSet(c.Priorities)
	query := strings.ToLower(strings.TrimSpace(c.SearchQuery))

	res := make([]model.Job, 0, len(jobs))
	for _, j := range jobs {
		if len(techs) > 0 && !techs[j.TechnicianID] {
			continue
		}
		if len(statuses) > 0 && !statuses[j.Status] {
			continue
		}
		if len(priorities) > 0 && !priorities[j.Priority] {
			continue
		}
		if query != "" && !matchesQuery(j, query) {
			continue
		}
		res = append(res, j)
	}
	return res
}

// ExcludeCompleted drops completed jobs unless showCompleted is set.
func ExcludeCompleted(jobs []model.Job, showCompleted bool) []model.Job {
	if showCompleted {
		return jobs
	}
	res := make([]model.Job, 0, len(jobs))
	for _, j := range jobs {
		if j.Status != model.StatusCompleted {
			res = append(res, j)
		}
	}
	return res
}

// SortJobsByStartTime orders ascending by start time. The sort is stable, so
// jobs sharing a start time keep their relative input order.
func SortJobsByStartTime(jobs []model.Job) []model.Job {
	res := append([]model.Job(nil), jobs...)
	sort.SliceStable(res, func(i, j int) bool {
		return res[i].StartTime.Before(res[j].StartTime)
	})
	return res
}

// VisibleJobs restricts to jobs overlapping the visible window.
func VisibleJobs(jobs []model.Job, window timerange.Range) []model.Job {
	res := make([]model.Job, 0, len(jobs))
	for _, j := range jobs {
		if timerange.Overlaps(timerange.Range{Start: j.StartTime, End: j.EndTime}, window) {
			res = append(res, j)
		}
	}
	return res
}

// JobsForTechnician filters an already-filtered set down to one technician.
func JobsForTechnician(jobs []model.Job, technicianID string) []model.Job {
	res := make([]model.Job, 0, len(jobs))
	for _, j := range jobs {
		if j.TechnicianID == technicianID {
			res = append(res, j)
		}
	}
	return res
}

// Apply runs the full pipeline: filter, completed-toggle, stable sort.
func Apply(jobs []model.Job, c Criteria, showCompleted bool) []model.Job {
	return SortJobsByStartTime(ExcludeCompleted(FilterJobs(jobs, c), showCompleted))
}

func matchesQuery(j model.Job, query string) bool {
	return strings.Contains(strings.ToLower(j.Title), query) ||
		strings.Contains(strings.ToLower(j.Description), query) ||
		strings.Contains(strings.ToLower(j.CustomerName), query) ||
		strings.Contains(strings.ToLower(j.PropertyAddress), query)
}

func toSet[T comparable](vals []T) map[T]bool {
	if len(vals) == 0 {
		return nil
	}
	set := make(map[T]bool, len(vals))
	for _, v := range vals {
		set[v] = true
	}
	return set
}
