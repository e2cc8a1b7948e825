package model

// TechnicianStatus describes a worker's current availability, for display only.
type TechnicianStatus string

const (
	TechAvailable TechnicianStatus = "available"
	TechOnJob     TechnicianStatus = "on-job"
	TechBreak     TechnicianStatus = "break"
	TechOffline   TechnicianStatus = "offline"
)

// Technician is a schedulable worker. Fields beyond the id are read-only
// display data refreshed on every fetch.
type Technician struct {
	ID     string           `json:"id"`
	Name   string           `json:"name"`
	Status TechnicianStatus `json:"status,omitempty"`
	Phone  string           `json:"phone,omitempty"`
	Avatar string           `json:"avatar,omitempty"`
}
