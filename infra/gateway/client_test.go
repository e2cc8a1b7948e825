package gateway

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	corsync "github.com/kfrancois/fieldsync/core/sync"
	"github.com/kfrancois/fieldsync/core/timerange"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c, err := NewClient(Config{BaseURL: srv.URL, Token: "tok"})
	if err != nil {
		t.Fatalf("client: %v", err)
	}
	return c, srv
}

func TestResolveCompany(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/me/company" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer tok" {
			t.Errorf("auth header = %q", got)
		}
		w.Write([]byte(`{"company_id":"c42"}`))
	})
	id, err := c.ResolveCompany(context.Background())
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if id != "c42" {
		t.Fatalf("company = %q", id)
	}
}

func TestFetchScheduleData(t *testing.T) {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/companies/c42/schedule" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if r.URL.Query().Get("from") == "" || r.URL.Query().Get("to") == "" {
			t.Error("window params missing")
		}
		w.Write([]byte(`{
			"jobs":[{"id":"j1","title":"Boiler","status":"scheduled","priority":"high",
				"technician_id":"t1","customer_name":"ACME",
				"start_time":"2025-01-02T09:00:00Z","end_time":"2025-01-02T11:00:00Z"}],
			"technicians":[{"id":"t1","name":"Ana"}]
		}`))
	})
	res, err := c.FetchScheduleData(context.Background(), corsync.Query{
		CompanyID: "c42",
		Range:     timerange.Range{Start: start, End: start.AddDate(0, 1, 0)},
	})
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(res.Jobs) != 1 || res.Jobs[0].CustomerName != "ACME" {
		t.Fatalf("jobs: %+v", res.Jobs)
	}
	if len(res.Technicians) != 1 || res.Technicians[0].Name != "Ana" {
		t.Fatalf("technicians: %+v", res.Technicians)
	}
}

func TestFetchUnassignedPage(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/jobs/unassigned") {
			t.Errorf("path = %s", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("search") != "heater" || q.Get("offset") != "25" || q.Get("limit") != "25" {
			t.Errorf("query = %v", q)
		}
		w.Write([]byte(`{"jobs":[{"id":"u1","is_unassigned":true}],"has_more":true,"total_count":57}`))
	})
	res, err := c.FetchScheduleData(context.Background(), corsync.Query{
		CompanyID: "c42", UnassignedOnly: true, Search: "heater", Offset: 25, Limit: 25,
	})
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if res.Unassigned == nil || !res.Unassigned.HasMore || res.Unassigned.TotalCount != 57 {
		t.Fatalf("page: %+v", res.Unassigned)
	}
}

func TestErrorTaxonomy(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.Contains(r.URL.Path, "auth"):
			w.WriteHeader(http.StatusUnauthorized)
		case strings.Contains(r.URL.Path, "missing"):
			w.WriteHeader(http.StatusNotFound)
		default:
			w.WriteHeader(http.StatusBadGateway)
		}
	})
	if err := c.get(context.Background(), "/auth", nil, &struct{}{}); err == nil ||
		!strings.Contains(err.Error(), "authentication failed") {
		t.Fatalf("auth error: %v", err)
	}
	if err := c.get(context.Background(), "/missing", nil, &struct{}{}); err == nil ||
		!strings.Contains(err.Error(), "not found") {
		t.Fatalf("not-found error: %v", err)
	}
	if err := c.get(context.Background(), "/other", nil, &struct{}{}); err == nil ||
		!strings.Contains(err.Error(), "unexpected status 502") {
		t.Fatalf("status error: %v", err)
	}
}

func TestValidate(t *testing.T) {
	if _, err := NewClient(Config{}); err == nil {
		t.Fatal("missing base_url should be rejected")
	}
}
