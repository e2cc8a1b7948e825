package model

import (
	"fmt"
	"time"
)

// JobStatus is the lifecycle state of a job.
type JobStatus string

const (
	StatusScheduled  JobStatus = "scheduled"
	StatusDispatched JobStatus = "dispatched"
	StatusArrived    JobStatus = "arrived"
	StatusInProgress JobStatus = "in-progress"
	StatusCompleted  JobStatus = "completed"
	StatusCancelled  JobStatus = "cancelled"
	StatusClosed     JobStatus = "closed"
)

// Valid reports whether the status is one of the known values.
func (s JobStatus) Valid() bool {
	switch s {
	case StatusScheduled, StatusDispatched, StatusArrived, StatusInProgress,
		StatusCompleted, StatusCancelled, StatusClosed:
		return true
	}
	return false
}

// JobPriority ranks how urgently a job should be worked.
type JobPriority string

const (
	PriorityLow    JobPriority = "low"
	PriorityNormal JobPriority = "normal"
	PriorityHigh   JobPriority = "high"
	PriorityUrgent JobPriority = "urgent"
)

// Valid reports whether the priority is one of the known values.
func (p JobPriority) Valid() bool {
	switch p {
	case PriorityLow, PriorityNormal, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

// Assignment references a technician attached to a job. Multi-technician jobs
// carry one entry per worker, ordered; the first entry is the primary.
type Assignment struct {
	TechnicianID string `json:"technician_id"`
	DisplayName  string `json:"display_name,omitempty"`
	Role         string `json:"role,omitempty"`
}

// Job is a unit of scheduled work. The denormalized customer and property
// fields are only populated by the fetch gateway; change-feed rows never
// carry them, which is why inserts trigger a resynchronization instead of a
// partial record.
type Job struct {
	ID              string       `json:"id"`
	Title           string       `json:"title"`
	Description     string       `json:"description,omitempty"`
	Status          JobStatus    `json:"status"`
	Priority        JobPriority  `json:"priority"`
	StartTime       time.Time    `json:"start_time"`
	EndTime         time.Time    `json:"end_time"`
	TechnicianID    string       `json:"technician_id,omitempty"`
	IsUnassigned    bool         `json:"is_unassigned"`
	Assignments     []Assignment `json:"assignments,omitempty"`
	CustomerName    string       `json:"customer_name,omitempty"`
	PropertyAddress string       `json:"property_address,omitempty"`
	UpdatedAt       time.Time    `json:"updated_at,omitempty"`
}

// Validate checks that the job configuration is sound.
func (j Job) Validate() error {
	if j.ID == "" {
		return fmt.Errorf("job id is required")
	}
	if j.EndTime.Before(j.StartTime) {
		return fmt.Errorf("job %s ends before it starts", j.ID)
	}
	if j.IsUnassigned && (j.TechnicianID != "" || len(j.Assignments) > 0) {
		return fmt.Errorf("job %s is unassigned but carries assignments", j.ID)
	}
	return nil
}

// Assign attaches the job to the given technician and keeps the unassigned
// flag and assignment list consistent. An empty id moves the job to the
// unassigned pool.
func (j *Job) Assign(technicianID string) {
	if technicianID == "" {
		j.TechnicianID = ""
		j.Assignments = nil
		j.IsUnassigned = true
		return
	}
	j.TechnicianID = technicianID
	j.IsUnassigned = false
	for _, a := range j.Assignments {
		if a.TechnicianID == technicianID {
			return
		}
	}
	j.Assignments = append(j.Assignments, Assignment{TechnicianID: technicianID, Role: "primary"})
}
