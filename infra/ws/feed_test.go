package ws

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/kfrancois/fieldsync/core/feed"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(*http.Request) bool { return true },
}

// feedServer upgrades one connection, checks the subscribe frame and then
// relays the given payloads.
func feedServer(t *testing.T, payloads ...string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		var sub subscribeFrame
		if err := conn.ReadJSON(&sub); err != nil {
			t.Errorf("read subscribe: %v", err)
			return
		}
		if sub.Action != "subscribe" || sub.Channel != "appointments:c1" {
			t.Errorf("unexpected subscribe frame: %+v", sub)
		}
		for _, p := range payloads {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(p)); err != nil {
				return
			}
		}
		// Keep the connection open until the client hangs up.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
}

func wsURL(s *httptest.Server) string {
	return "ws" + strings.TrimPrefix(s.URL, "http")
}

func TestFeed_DeliversEvents(t *testing.T) {
	srv := feedServer(t,
		`{"event_type":"update","new":{"id":"j1","title":"Rework"}}`,
		`{"event_type":"heartbeat"}`,
		`{"event_type":"delete","old":{"id":"j2"}}`,
	)
	defer srv.Close()

	f, err := NewFeed(Config{URL: wsURL(srv)}, "c1")
	if err != nil {
		t.Fatalf("new feed: %v", err)
	}
	defer f.Close()

	if !f.Connected() || f.Err() != "" {
		t.Fatalf("feed should start healthy: connected=%v err=%q", f.Connected(), f.Err())
	}

	ev := waitEvent(t, f)
	if ev.Kind != feed.KindUpdate || ev.New == nil || ev.New.ID != "j1" {
		t.Fatalf("first event: %+v", ev)
	}
	// The heartbeat is skipped; the next delivered event is the delete.
	ev = waitEvent(t, f)
	if ev.Kind != feed.KindDelete || ev.Old == nil || ev.Old.ID != "j2" {
		t.Fatalf("second event: %+v", ev)
	}
}

func waitEvent(t *testing.T, f *Feed) feed.Event {
	t.Helper()
	select {
	case ev, ok := <-f.Events():
		if !ok {
			t.Fatal("event channel closed early")
		}
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
	}
	return feed.Event{}
}

func TestFeed_ServerDropSurfacesError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		var sub subscribeFrame
		_ = conn.ReadJSON(&sub)
		conn.Close()
	}))
	defer srv.Close()

	f, err := NewFeed(Config{URL: wsURL(srv)}, "c1")
	if err != nil {
		t.Fatalf("new feed: %v", err)
	}
	defer f.Close()

	select {
	case _, ok := <-f.Events():
		if ok {
			t.Fatal("expected channel close, got event")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("channel not closed after drop")
	}
	if f.Connected() {
		t.Fatal("feed should report disconnected")
	}
	if f.Err() == "" {
		t.Fatal("connection error should surface")
	}
}

func TestFeed_CloseIsQuiet(t *testing.T) {
	srv := feedServer(t)
	defer srv.Close()
	f, err := NewFeed(Config{URL: wsURL(srv)}, "c1")
	if err != nil {
		t.Fatalf("new feed: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	// Deliberate teardown is not a connection error.
	if f.Err() != "" {
		t.Fatalf("close should not surface an error, got %q", f.Err())
	}
	if err := f.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
}

func TestFeed_RejectsMissingCompany(t *testing.T) {
	if _, err := NewFeed(Config{URL: "ws://localhost:1"}, ""); err == nil {
		t.Fatal("empty company id should be rejected")
	}
	if err := (Config{}).Validate(); err == nil {
		t.Fatal("missing url should be rejected")
	}
}

func TestEnvelopeDecode(t *testing.T) {
	var env envelope
	err := json.Unmarshal([]byte(`{"event_type":"update","new":{"id":"a","assigned_to":null}}`), &env)
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if env.New == nil || !env.New.AssignedToPresent || env.New.AssignedTo != nil {
		t.Fatalf("null assigned_to mishandled: %+v", env.New)
	}
}
