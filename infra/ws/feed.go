// Package ws implements the change-feed transport over a WebSocket channel,
// matching the realtime endpoint the remote data service exposes. It decodes
// the same envelope as the MQTT transport; only the framing differs.
package ws

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/kfrancois/fieldsync/core/feed"
	"github.com/kfrancois/fieldsync/infra/logger"
)

// Config defines the realtime channel connection parameters.
type Config struct {
	URL              string `json:"url"`
	Token            string `json:"token"`
	HeartbeatSeconds int    `json:"heartbeat_seconds"`
}

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if c.HeartbeatSeconds <= 0 {
		c.HeartbeatSeconds = 30
	}
}

// Validate checks mandatory fields.
func (c Config) Validate() error {
	if c.URL == "" {
		return fmt.Errorf("url is required")
	}
	return nil
}

type subscribeFrame struct {
	Action  string `json:"action"`
	Channel string `json:"channel"`
	Token   string `json:"token,omitempty"`
}

type envelope struct {
	EventType string    `json:"event_type"`
	New       *feed.Row `json:"new,omitempty"`
	Old       *feed.Row `json:"old,omitempty"`
}

// Feed is a feed.Source backed by a WebSocket subscription. When the
// connection drops the feed surfaces the error and closes its event channel;
// re-establishing the channel is the caller's decision.
type Feed struct {
	conn      *websocket.Conn
	events    chan feed.Event
	log       logger.Logger
	heartbeat time.Duration

	mu        sync.Mutex
	connected bool
	lastErr   string
	closed    bool

	done chan struct{}
}

// NewFeed dials the realtime endpoint and subscribes to the appointments
// channel for the given company.
func NewFeed(cfg Config, companyID string) (*Feed, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if companyID == "" {
		return nil, fmt.Errorf("company id is required")
	}

	header := http.Header{}
	if cfg.Token != "" {
		header.Set("Authorization", "Bearer "+cfg.Token)
	}
	conn, _, err := websocket.DefaultDialer.Dial(cfg.URL, header)
	if err != nil {
		return nil, fmt.Errorf("dial realtime endpoint: %w", err)
	}

	f := &Feed{
		conn:      conn,
		events:    make(chan feed.Event, 64),
		log:       logger.New("ws_feed"),
		heartbeat: time.Duration(cfg.HeartbeatSeconds) * time.Second,
		connected: true,
		done:      make(chan struct{}),
	}
	sub := subscribeFrame{Action: "subscribe", Channel: "appointments:" + companyID, Token: cfg.Token}
	if err := conn.WriteJSON(sub); err != nil {
		conn.Close()
		return nil, fmt.Errorf("subscribe: %w", err)
	}

	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(2 * f.heartbeat))
	})
	go f.readLoop()
	go f.pingLoop()
	return f, nil
}

// Events returns the decoded change-event stream.
func (f *Feed) Events() <-chan feed.Event { return f.events }

// Connected reports whether the channel is up.
func (f *Feed) Connected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

// Err returns the last connection error, empty when healthy.
func (f *Feed) Err() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastErr
}

// Close tears the channel down deterministically.
func (f *Feed) Close() error {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return nil
	}
	f.closed = true
	f.connected = false
	f.mu.Unlock()
	close(f.done)
	return f.conn.Close()
}

func (f *Feed) readLoop() {
	defer close(f.events)
	if err := f.conn.SetReadDeadline(time.Now().Add(2 * f.heartbeat)); err != nil {
		f.log.Warnf("set read deadline: %v", err)
	}
	for {
		_, payload, err := f.conn.ReadMessage()
		if err != nil {
			f.mu.Lock()
			wasClosed := f.closed
			f.connected = false
			if !wasClosed {
				f.lastErr = err.Error()
			}
			f.mu.Unlock()
			if !wasClosed {
				f.log.Errorf("realtime channel lost: %v", err)
			}
			return
		}
		var env envelope
		if err := json.Unmarshal(payload, &env); err != nil {
			f.log.Errorf("invalid feed payload: %v", err)
			continue
		}
		kind, ok := feed.ParseKind(env.EventType)
		if !ok {
			f.log.Debugf("ignoring feed message of type %q", env.EventType)
			continue
		}
		select {
		case f.events <- feed.Event{Kind: kind, New: env.New, Old: env.Old}:
		default:
			f.log.Warnf("feed buffer full, dropping %s event", kind)
		}
	}
}

func (f *Feed) pingLoop() {
	ticker := time.NewTicker(f.heartbeat)
	defer ticker.Stop()
	for {
		select {
		case <-f.done:
			return
		case <-ticker.C:
			if err := f.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
				f.log.Warnf("ping failed: %v", err)
				return
			}
		}
	}
}
