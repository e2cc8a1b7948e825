package feed

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/kfrancois/fieldsync/core/model"
	"github.com/kfrancois/fieldsync/core/schedule"
	"github.com/kfrancois/fieldsync/core/timerange"
	"github.com/kfrancois/fieldsync/infra/logger"
)

var base = time.Date(2025, time.February, 3, 9, 0, 0, 0, time.UTC)

type mockSource struct {
	ch        chan Event
	connected bool
	err       string
	closed    bool
}

func (m *mockSource) Events() <-chan Event { return m.ch }
func (m *mockSource) Connected() bool      { return m.connected }
func (m *mockSource) Err() string          { return m.err }
func (m *mockSource) Close() error         { m.closed = true; return nil }

type mockResyncer struct {
	calls int
	err   error
}

func (m *mockResyncer) Resync(context.Context) error { m.calls++; return m.err }

func seededStore() *schedule.Store {
	s := schedule.NewStore(nil)
	j := model.Job{
		ID: "j1", Title: "Boiler service", Status: model.StatusScheduled,
		Priority: model.PriorityNormal, StartTime: base, EndTime: base.Add(time.Hour),
	}
	j.Assign("T1")
	s.MergeFetchResult([]model.Job{j}, nil, timerange.Range{Start: base, End: base.AddDate(0, 0, 7)})
	return s
}

func newReconciler(s *schedule.Store, src Source, re Resyncer) *Reconciler {
	return NewReconciler(s, src, re, "c1", logger.NopLogger{}, nil)
}

func strp(s string) *string { return &s }

func TestApply_DeleteIdempotent(t *testing.T) {
	s := seededStore()
	re := &mockResyncer{}
	r := newReconciler(s, &mockSource{}, re)

	ev := Event{Kind: KindDelete, Old: &Row{ID: "j1"}}
	if applied, _ := r.Apply(context.Background(), ev); !applied {
		t.Fatal("delete should apply")
	}
	if _, ok := s.GetJobByID("j1"); ok {
		t.Fatal("job should be removed")
	}
	// Second delete for the same id is a no-op, not an error or resync.
	if _, resynced := r.Apply(context.Background(), ev); resynced {
		t.Fatal("repeated delete must not resync")
	}
}

func TestApply_UpdateKnownJobPatches(t *testing.T) {
	s := seededStore()
	re := &mockResyncer{}
	r := newReconciler(s, &mockSource{}, re)

	ev := Event{Kind: KindUpdate, New: &Row{ID: "j1", Status: strp("dispatched")}}
	applied, resynced := r.Apply(context.Background(), ev)
	if !applied || resynced {
		t.Fatalf("applied=%v resynced=%v", applied, resynced)
	}
	j, _ := s.GetJobByID("j1")
	if j.Status != model.StatusDispatched {
		t.Fatalf("status = %s", j.Status)
	}
	if j.Title != "Boiler service" || j.TechnicianID != "T1" {
		t.Fatal("update must not touch fields absent from the payload")
	}
}

func TestApply_UpdateClearsAssignment(t *testing.T) {
	s := seededStore()
	r := newReconciler(s, &mockSource{}, &mockResyncer{})

	// assigned_to present as null clears the assignment.
	var row Row
	if err := json.Unmarshal([]byte(`{"id":"j1","assigned_to":null}`), &row); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !row.AssignedToPresent {
		t.Fatal("null assigned_to should count as present")
	}
	r.Apply(context.Background(), Event{Kind: KindUpdate, New: &row})
	j, _ := s.GetJobByID("j1")
	if !j.IsUnassigned || j.TechnicianID != "" || len(j.Assignments) != 0 {
		t.Fatalf("assignment not cleared: %#v", j)
	}
	if len(s.UnassignedJobs()) != 1 {
		t.Fatal("job should appear in the unassigned list")
	}
}

func TestApply_UpdateAssignsTechnician(t *testing.T) {
	s := seededStore()
	r := newReconciler(s, &mockSource{}, &mockResyncer{})
	var row Row
	if err := json.Unmarshal([]byte(`{"id":"j1","assigned_to":"T2"}`), &row); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	r.Apply(context.Background(), Event{Kind: KindUpdate, New: &row})
	j, _ := s.GetJobByID("j1")
	if j.IsUnassigned || j.TechnicianID != "T2" {
		t.Fatalf("assignment not applied: %#v", j)
	}
}

func TestApply_UpdateAbsentKeyLeavesAssignment(t *testing.T) {
	s := seededStore()
	r := newReconciler(s, &mockSource{}, &mockResyncer{})
	var row Row
	if err := json.Unmarshal([]byte(`{"id":"j1","title":"Renamed"}`), &row); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	r.Apply(context.Background(), Event{Kind: KindUpdate, New: &row})
	j, _ := s.GetJobByID("j1")
	if j.TechnicianID != "T1" || j.Title != "Renamed" {
		t.Fatalf("absent assigned_to must not clear assignment: %#v", j)
	}
}

func TestApply_UpdateUnknownJobResyncs(t *testing.T) {
	s := seededStore()
	re := &mockResyncer{}
	r := newReconciler(s, &mockSource{}, re)
	ev := Event{Kind: KindUpdate, New: &Row{ID: "ghost", Title: strp("x")}}
	applied, resynced := r.Apply(context.Background(), ev)
	if applied || !resynced {
		t.Fatalf("applied=%v resynced=%v", applied, resynced)
	}
	if re.calls != 1 {
		t.Fatalf("resync calls = %d", re.calls)
	}
	if _, ok := s.GetJobByID("ghost"); ok {
		t.Fatal("no partial record may be constructed")
	}
}

func TestApply_InsertAlwaysResyncs(t *testing.T) {
	s := seededStore()
	re := &mockResyncer{}
	r := newReconciler(s, &mockSource{}, re)
	ev := Event{Kind: KindInsert, New: &Row{ID: "j2", Title: strp("New job")}}
	applied, resynced := r.Apply(context.Background(), ev)
	if applied || !resynced {
		t.Fatalf("applied=%v resynced=%v", applied, resynced)
	}
	if re.calls != 1 {
		t.Fatalf("exactly one resync expected, got %d", re.calls)
	}
	if _, ok := s.GetJobByID("j2"); ok {
		t.Fatal("insert must not construct a partial record")
	}
}

func TestRun_ConsumesUntilCancel(t *testing.T) {
	s := seededStore()
	src := &mockSource{ch: make(chan Event, 2), connected: true}
	r := newReconciler(s, src, &mockResyncer{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.Run(ctx)
		close(done)
	}()
	src.ch <- Event{Kind: KindDelete, Old: &Row{ID: "j1"}}
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not stop on cancel")
	}
}

func TestCloseReleasesSource(t *testing.T) {
	src := &mockSource{}
	r := newReconciler(seededStore(), src, &mockResyncer{})
	if err := r.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if !src.closed {
		t.Fatal("source not released")
	}
}

func TestConnectionStatePassThrough(t *testing.T) {
	src := &mockSource{connected: false, err: "broker unreachable"}
	r := newReconciler(seededStore(), src, &mockResyncer{})
	if r.Connected() {
		t.Fatal("connected should reflect transport state")
	}
	if r.ConnError() != "broker unreachable" {
		t.Fatalf("conn error = %q", r.ConnError())
	}
}

func TestParseKind(t *testing.T) {
	if k, ok := ParseKind("UPDATE"); !ok || k != KindUpdate {
		t.Fatalf("parse UPDATE: %v %v", k, ok)
	}
	if _, ok := ParseKind("heartbeat"); ok {
		t.Fatal("unknown kinds must not parse")
	}
}
