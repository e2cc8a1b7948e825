package schedule

import (
	"sort"

	"github.com/kfrancois/fieldsync/core/model"
	"github.com/kfrancois/fieldsync/core/timerange"
)

// Jobs returns a copy of all jobs, ordered by start time then id so repeated
// reads of the same state yield the same sequence.
func (s *Store) Jobs() []model.Job {
	s.mu.RLock()
	defer s.mu.RUnlock()
	res := make([]model.Job, 0, len(s.jobs))
	for _, j := range s.jobs {
		res = append(res, j)
	}
	sortJobs(res)
	return res
}

// Technicians returns all technicians ordered by name.
func (s *Store) Technicians() []model.Technician {
	s.mu.RLock()
	defer s.mu.RUnlock()
	res := make([]model.Technician, 0, len(s.technicians))
	for _, t := range s.technicians {
		res = append(res, t)
	}
	sort.Slice(res, func(i, j int) bool {
		if res[i].Name != res[j].Name {
			return res[i].Name < res[j].Name
		}
		return res[i].ID < res[j].ID
	})
	return res
}

// UnassignedJobs returns the jobs with no technician assignment.
func (s *Store) UnassignedJobs() []model.Job {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var res []model.Job
	for _, j := range s.jobs {
		if j.IsUnassigned {
			res = append(res, j)
		}
	}
	sortJobs(res)
	return res
}

// JobsGroupedByTechnician buckets assigned jobs by technician id. Unassigned
// jobs are not present in the result.
func (s *Store) JobsGroupedByTechnician() map[string][]model.Job {
	s.mu.RLock()
	defer s.mu.RUnlock()
	res := map[string][]model.Job{}
	for _, j := range s.jobs {
		if j.IsUnassigned || j.TechnicianID == "" {
			continue
		}
		res[j.TechnicianID] = append(res[j.TechnicianID], j)
	}
	for id := range res {
		sortJobs(res[id])
	}
	return res
}

// JobCount returns the number of jobs currently held.
func (s *Store) JobCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.jobs)
}

// LastFetchedRange returns a copy of the coverage window, or nil before the
// first successful merge.
func (s *Store) LastFetchedRange() *timerange.Range {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.lastFetched == nil {
		return nil
	}
	r := *s.lastFetched
	return &r
}

// UnassignedMeta returns the pagination cursor for the unassigned list.
func (s *Store) UnassignedMeta() UnassignedMeta {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.unassigned
}

// SelectJob records the UI cursor. An empty id clears the selection.
func (s *Store) SelectJob(id string) {
	s.mu.Lock()
	s.selectedJob = id
	s.mu.Unlock()
}

// SelectTechnician records the technician cursor. An empty id clears it.
func (s *Store) SelectTechnician(id string) {
	s.mu.Lock()
	s.selectedTech = id
	s.mu.Unlock()
}

// SelectedJob returns the selected job, if any still exists.
func (s *Store) SelectedJob() (model.Job, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.selectedJob == "" {
		return model.Job{}, false
	}
	j, ok := s.jobs[s.selectedJob]
	return j, ok
}

// SelectedTechnician returns the selected technician, if any.
func (s *Store) SelectedTechnician() (model.Technician, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.selectedTech == "" {
		return model.Technician{}, false
	}
	t, ok := s.technicians[s.selectedTech]
	return t, ok
}

func sortJobs(jobs []model.Job) {
	sort.SliceStable(jobs, func(i, j int) bool {
		if !jobs[i].StartTime.Equal(jobs[j].StartTime) {
			return jobs[i].StartTime.Before(jobs[j].StartTime)
		}
		return jobs[i].ID < jobs[j].ID
	})
}
