package schedule

import (
	"time"

	"github.com/kfrancois/fieldsync/core/model"
)

// JobPatch carries the fields of a partial update. Nil fields are left
// untouched. Assignment is special-cased: a non-nil pointer to an empty
// string clears the assignment, a non-empty value assigns the technician.
type JobPatch struct {
	Title           *string
	Description     *string
	Status          *model.JobStatus
	Priority        *model.JobPriority
	StartTime       *time.Time
	EndTime         *time.Time
	TechnicianID    *string
	CustomerName    *string
	PropertyAddress *string
}

func (p JobPatch) apply(j *model.Job) {
	if p.Title != nil {
		j.Title = *p.Title
	}
	if p.Description != nil {
		j.Description = *p.Description
	}
	if p.Status != nil {
		j.Status = *p.Status
	}
	if p.Priority != nil {
		j.Priority = *p.Priority
	}
	if p.StartTime != nil {
		j.StartTime = *p.StartTime
	}
	if p.EndTime != nil {
		j.EndTime = *p.EndTime
	}
	if p.TechnicianID != nil {
		j.Assign(*p.TechnicianID)
	}
	if p.CustomerName != nil {
		j.CustomerName = *p.CustomerName
	}
	if p.PropertyAddress != nil {
		j.PropertyAddress = *p.PropertyAddress
	}
	if j.EndTime.Before(j.StartTime) {
		j.EndTime = j.StartTime
	}
}

// IsEmpty reports whether the patch would change nothing.
func (p JobPatch) IsEmpty() bool {
	return p.Title == nil && p.Description == nil && p.Status == nil &&
		p.Priority == nil && p.StartTime == nil && p.EndTime == nil &&
		p.TechnicianID == nil && p.CustomerName == nil && p.PropertyAddress == nil
}
