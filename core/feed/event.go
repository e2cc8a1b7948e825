package feed

import (
	"encoding/json"
	"time"
)

// Kind discriminates the change-feed event union.
type Kind int

const (
	KindInsert Kind = iota
	KindUpdate
	KindDelete
)

// String returns the wire name of the event kind.
func (k Kind) String() string {
	switch k {
	case KindInsert:
		return "insert"
	case KindUpdate:
		return "update"
	case KindDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// ParseKind maps a wire event type to a Kind. The second return is false for
// unknown types (transport keepalives, future event classes).
func ParseKind(s string) (Kind, bool) {
	switch s {
	case "insert", "INSERT":
		return KindInsert, true
	case "update", "UPDATE":
		return KindUpdate, true
	case "delete", "DELETE":
		return KindDelete, true
	}
	return 0, false
}

// Row mirrors the appointments base-table columns carried by feed events.
// Pointer fields distinguish a column that is absent or null from a zero
// value. Denormalized display columns (customer, property) never appear here;
// only the fetch gateway can supply them.
type Row struct {
	ID          string     `json:"id"`
	Title       *string    `json:"title,omitempty"`
	Description *string    `json:"description,omitempty"`
	Status      *string    `json:"status,omitempty"`
	Priority    *string    `json:"priority,omitempty"`
	StartTime   *time.Time `json:"start_time,omitempty"`
	EndTime     *time.Time `json:"end_time,omitempty"`
	AssignedTo  *string    `json:"assigned_to,omitempty"`

	// AssignedToPresent records whether the assigned_to key appeared in the
	// payload at all. A present null clears the assignment; an absent key
	// leaves it alone.
	AssignedToPresent bool `json:"-"`
}

// UnmarshalJSON decodes the row and tracks key presence for assigned_to.
func (r *Row) UnmarshalJSON(data []byte) error {
	type alias Row
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	*r = Row(a)
	var keys map[string]json.RawMessage
	if err := json.Unmarshal(data, &keys); err != nil {
		return err
	}
	_, r.AssignedToPresent = keys["assigned_to"]
	return nil
}

// Event is a closed tagged union of change-feed notifications. New is set on
// insert and update; Old carries at least the id on delete.
type Event struct {
	Kind Kind
	New  *Row
	Old  *Row
}

// ID returns the subject row id regardless of kind.
func (e Event) ID() string {
	if e.New != nil && e.New.ID != "" {
		return e.New.ID
	}
	if e.Old != nil {
		return e.Old.ID
	}
	return ""
}
