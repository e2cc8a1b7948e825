package feed

import (
	"context"
	"time"

	"github.com/kfrancois/fieldsync/core/logger"
	"github.com/kfrancois/fieldsync/core/metrics"
	"github.com/kfrancois/fieldsync/core/model"
	"github.com/kfrancois/fieldsync/core/schedule"
)

// Source is a live change-feed subscription scoped to one company.
// Reconnection policy belongs to the transport; the reconciler only surfaces
// the connection state it reports.
type Source interface {
	Events() <-chan Event
	Connected() bool
	Err() string
	Close() error
}

// Resyncer re-fetches the authoritative dataset for the current range.
// Implemented by the schedule controller.
type Resyncer interface {
	Resync(ctx context.Context) error
}

// Reconciler applies change-feed events to the store. Updates for known jobs
// are patched in place; updates for unknown jobs and all inserts fall back to
// a full resynchronization, because event rows lack the denormalized display
// columns the UI needs.
type Reconciler struct {
	store     *schedule.Store
	source    Source
	resyncer  Resyncer
	log       logger.Logger
	sink      metrics.SyncSink
	companyID string
}

// NewReconciler wires a reconciler. A nil sink defaults to NopSink.
func NewReconciler(store *schedule.Store, source Source, resyncer Resyncer, companyID string, log logger.Logger, sink metrics.SyncSink) *Reconciler {
	if sink == nil {
		sink = metrics.NopSink{}
	}
	return &Reconciler{
		store:     store,
		source:    source,
		resyncer:  resyncer,
		log:       log,
		sink:      sink,
		companyID: companyID,
	}
}

// Connected reports the transport's connection state.
func (r *Reconciler) Connected() bool { return r.source.Connected() }

// ConnError returns the transport's last connection error, empty when healthy.
// A broken feed degrades freshness, not correctness, so this never touches
// the controller's fetch error.
func (r *Reconciler) ConnError() string { return r.source.Err() }

// Run consumes events until the context is canceled or the source closes.
func (r *Reconciler) Run(ctx context.Context) {
	events := r.source.Events()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			r.Apply(ctx, ev)
		}
	}
}

// Apply processes a single event and reports whether it was patched in place
// and whether it triggered a resynchronization.
func (r *Reconciler) Apply(ctx context.Context, ev Event) (applied, resynced bool) {
	switch ev.Kind {
	case KindDelete:
		id := ev.ID()
		if id == "" {
			r.log.Warnf("delete event without id, ignoring")
			break
		}
		r.store.DeleteJob(id)
		applied = true
	case KindUpdate:
		if ev.New == nil || ev.New.ID == "" {
			r.log.Warnf("update event without row, ignoring")
			break
		}
		if _, ok := r.store.GetJobByID(ev.New.ID); !ok {
			// The row is outside our fetched window or arrived before the
			// first load. Patching would build a record without its joined
			// display fields, so refetch instead.
			resynced = r.resync(ctx, "update for unknown job "+ev.New.ID)
			break
		}
		r.store.UpdateJob(ev.New.ID, rowToPatch(ev.New))
		applied = true
	case KindInsert:
		// Insert events carry only base-table columns; the UI needs the
		// joined fields only the fetch gateway supplies.
		resynced = r.resync(ctx, "insert event")
	default:
		r.log.Debugf("ignoring event of unknown kind %d", ev.Kind)
	}
	if err := r.sink.RecordFeedEvent(metrics.FeedEvent{
		CompanyID: r.companyID,
		Kind:      ev.Kind.String(),
		Applied:   applied,
		Resync:    resynced,
		Time:      time.Now(),
	}); err != nil {
		r.log.Warnf("feed metrics: %v", err)
	}
	return applied, resynced
}

// Close releases the underlying subscription.
func (r *Reconciler) Close() error { return r.source.Close() }

func (r *Reconciler) resync(ctx context.Context, reason string) bool {
	r.log.Infof("resynchronizing: %s", reason)
	if err := r.resyncer.Resync(ctx); err != nil {
		// Recoverable: the next range change or refresh retries the load.
		r.log.Errorf("resync failed: %v", err)
	}
	return true
}

func rowToPatch(row *Row) schedule.JobPatch {
	var p schedule.JobPatch
	p.Title = row.Title
	p.Description = row.Description
	if row.Status != nil {
		st := model.JobStatus(*row.Status)
		if st.Valid() {
			p.Status = &st
		}
	}
	if row.Priority != nil {
		pr := model.JobPriority(*row.Priority)
		if pr.Valid() {
			p.Priority = &pr
		}
	}
	p.StartTime = row.StartTime
	p.EndTime = row.EndTime
	if row.AssignedToPresent {
		tech := ""
		if row.AssignedTo != nil {
			tech = *row.AssignedTo
		}
		p.TechnicianID = &tech
	}
	return p
}
