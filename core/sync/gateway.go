package sync

import (
	"context"

	"github.com/kfrancois/fieldsync/core/model"
	"github.com/kfrancois/fieldsync/core/timerange"
)

// Query scopes a fetch to one company and either a time window or a page of
// the unassigned list.
type Query struct {
	CompanyID string
	Range     timerange.Range
	// UnassignedOnly switches the fetch to the paginated unassigned list,
	// which is not bound to the calendar window.
	UnassignedOnly bool
	Search         string
	Offset         int
	Limit          int
}

// UnassignedPage is one page of the unassigned list plus its cursor state.
type UnassignedPage struct {
	Jobs       []model.Job
	HasMore    bool
	TotalCount int
}

// Result is the denormalized payload returned by the remote schedule service.
type Result struct {
	Jobs        []model.Job
	Technicians []model.Technician
	Unassigned  *UnassignedPage
}

// Gateway is the remote fetch service. It resolves the caller's company and
// returns jobs with their joined display fields for a company and window.
type Gateway interface {
	ResolveCompany(ctx context.Context) (string, error)
	FetchScheduleData(ctx context.Context, q Query) (Result, error)
}
