package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	apischedule "github.com/kfrancois/fieldsync/api/schedule"
	"github.com/kfrancois/fieldsync/config"
	"github.com/kfrancois/fieldsync/core/feed"
	coremetrics "github.com/kfrancois/fieldsync/core/metrics"
	"github.com/kfrancois/fieldsync/core/schedule"
	corsync "github.com/kfrancois/fieldsync/core/sync"
	"github.com/kfrancois/fieldsync/core/timerange"
	"github.com/kfrancois/fieldsync/infra/gateway"
	"github.com/kfrancois/fieldsync/infra/logger"
	"github.com/kfrancois/fieldsync/infra/metrics"
	"github.com/kfrancois/fieldsync/infra/mqtt"
	"github.com/kfrancois/fieldsync/infra/ws"
	"github.com/kfrancois/fieldsync/internal/eventbus"
)

// DefaultWindowDays is the width of the visible range loaded at startup.
const DefaultWindowDays = 7

// Service wires the store, the sync controller and the change-feed
// reconciler from the configuration.
type Service struct {
	Controller *corsync.Controller
	Store      *schedule.Store
	Bus        *eventbus.TypedBus[schedule.ChangeNotice]

	cfg        *config.Config
	log        logger.Logger
	sink       coremetrics.SyncSink
	reconciler *feed.Reconciler
}

// New creates a Service from the configuration.
func New(cfg *config.Config) (*Service, error) {
	logg := logger.New("service")

	gw, err := gateway.NewClient(cfg.Gateway)
	if err != nil {
		return nil, fmt.Errorf("gateway client: %w", err)
	}

	var sinks []coremetrics.SyncSink
	if cfg.Metrics.PrometheusEnabled {
		sink, err := metrics.NewPromSink()
		if err != nil {
			return nil, fmt.Errorf("prom sink: %w", err)
		}
		sinks = append(sinks, sink)
	}
	if cfg.Metrics.InfluxEnabled {
		sink := metrics.NewInfluxSinkWithFallback(
			cfg.Metrics.InfluxURL, cfg.Metrics.InfluxToken,
			cfg.Metrics.InfluxOrg, cfg.Metrics.InfluxBucket)
		sinks = append(sinks, sink)
	}
	var sink coremetrics.SyncSink = coremetrics.NopSink{}
	if len(sinks) == 1 {
		sink = sinks[0]
	} else if len(sinks) > 1 {
		sink = coremetrics.NewMultiSink(sinks...)
	}

	bus := eventbus.NewTyped[schedule.ChangeNotice]()
	store := schedule.NewStore(bus)
	ctrl, err := corsync.NewController(store, gw, logger.New("controller"), sink)
	if err != nil {
		return nil, fmt.Errorf("sync controller: %w", err)
	}

	return &Service{
		Controller: ctrl,
		Store:      store,
		Bus:        bus,
		cfg:        cfg,
		log:        logg,
		sink:       sink,
	}, nil
}

func (s *Service) newFeedSource(companyID string) (feed.Source, error) {
	switch s.cfg.Feed.Transport {
	case "ws":
		return ws.NewFeed(s.cfg.Feed.WS, companyID)
	default:
		return mqtt.NewFeed(s.cfg.Feed.MQTT, companyID)
	}
}

// Run loads the initial window, connects the change feed and blocks until
// the context is cancelled.
func (s *Service) Run(ctx context.Context) error {
	now := time.Now()
	window := timerange.Range{Start: now, End: now.AddDate(0, 0, DefaultWindowDays)}
	if err := s.Controller.SetVisibleRange(ctx, window); err != nil {
		return fmt.Errorf("initial load: %w", err)
	}

	companyID := s.Controller.Snapshot().CompanyID
	source, err := s.newFeedSource(companyID)
	if err != nil {
		return fmt.Errorf("feed source: %w", err)
	}
	s.reconciler = feed.NewReconciler(s.Store, source, s.Controller, companyID,
		logger.New("reconciler"), s.sink)
	go s.reconciler.Run(ctx)

	if s.cfg.Metrics.PrometheusEnabled {
		go func() {
			if err := metrics.StartPromServer(ctx, s.cfg.Metrics.PrometheusAddr); err != nil {
				s.log.Errorf("prom server: %v", err)
			}
		}()
	}
	if s.cfg.API.Enabled {
		go func() {
			if err := s.serveAPI(ctx); err != nil {
				s.log.Errorf("api server: %v", err)
			}
		}()
	}

	s.log.Infof("schedule sync running for company %s", companyID)
	<-ctx.Done()
	return nil
}

func (s *Service) serveAPI(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.Handle("/api/schedule/jobs", apischedule.NewJobsHandler(s.Store))
	mux.Handle("/api/schedule/status", apischedule.NewStatusHandler(s.Store, s.Controller, s.reconciler))
	srv := &http.Server{Addr: s.cfg.API.Addr, Handler: mux}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Close releases resources held by the service.
func (s *Service) Close() error {
	s.Controller.Close()
	s.Bus.Close()
	if s.reconciler != nil {
		return s.reconciler.Close()
	}
	return nil
}
