// Package gateway implements the remote fetch side of the engine: company
// resolution and the denormalized schedule fetch. It is the only component
// that can supply the joined customer/property display fields.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/kfrancois/fieldsync/core/model"
	corsync "github.com/kfrancois/fieldsync/core/sync"
	"github.com/kfrancois/fieldsync/infra/logger"
)

// Config defines the schedule service connection parameters.
type Config struct {
	BaseURL        string `json:"base_url"`
	Token          string `json:"token"`
	TimeoutSeconds int    `json:"timeout_seconds"`
}

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if c.TimeoutSeconds <= 0 {
		c.TimeoutSeconds = 10
	}
}

// Validate checks mandatory fields.
func (c Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("base_url is required")
	}
	return nil
}

// Client talks to the schedule service over HTTP. It satisfies sync.Gateway.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	log     logger.Logger
}

// NewClient creates a gateway client from the configuration.
func NewClient(cfg Config) (*Client, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Client{
		baseURL: cfg.BaseURL,
		token:   cfg.Token,
		http:    &http.Client{Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second},
		log:     logger.New("gateway"),
	}, nil
}

type companyResponse struct {
	CompanyID string `json:"company_id"`
}

// ResolveCompany returns the active company for the authenticated user.
func (c *Client) ResolveCompany(ctx context.Context) (string, error) {
	var res companyResponse
	if err := c.get(ctx, "/v1/me/company", nil, &res); err != nil {
		return "", err
	}
	return res.CompanyID, nil
}

type scheduleResponse struct {
	Jobs        []model.Job        `json:"jobs"`
	Technicians []model.Technician `json:"technicians"`
}

type unassignedResponse struct {
	Jobs       []model.Job `json:"jobs"`
	HasMore    bool        `json:"has_more"`
	TotalCount int         `json:"total_count"`
}

// FetchScheduleData returns denormalized jobs and technicians for the given
// company and window, or a page of the unassigned list.
func (c *Client) FetchScheduleData(ctx context.Context, q corsync.Query) (corsync.Result, error) {
	if q.CompanyID == "" {
		return corsync.Result{}, fmt.Errorf("company id is required")
	}
	if q.UnassignedOnly {
		params := url.Values{}
		if q.Search != "" {
			params.Set("search", q.Search)
		}
		params.Set("offset", strconv.Itoa(q.Offset))
		params.Set("limit", strconv.Itoa(q.Limit))
		var res unassignedResponse
		path := "/v1/companies/" + url.PathEscape(q.CompanyID) + "/jobs/unassigned"
		if err := c.get(ctx, path, params, &res); err != nil {
			return corsync.Result{}, err
		}
		return corsync.Result{Unassigned: &corsync.UnassignedPage{
			Jobs:       res.Jobs,
			HasMore:    res.HasMore,
			TotalCount: res.TotalCount,
		}}, nil
	}

	params := url.Values{}
	params.Set("from", q.Range.Start.Format(time.RFC3339))
	params.Set("to", q.Range.End.Format(time.RFC3339))
	var res scheduleResponse
	path := "/v1/companies/" + url.PathEscape(q.CompanyID) + "/schedule"
	if err := c.get(ctx, path, params, &res); err != nil {
		return corsync.Result{}, err
	}
	return corsync.Result{Jobs: res.Jobs, Technicians: res.Technicians}, nil
}

func (c *Client) get(ctx context.Context, path string, params url.Values, out any) error {
	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Errorf("request %s failed: %v", path, err)
		return fmt.Errorf("schedule service unreachable: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		c.log.Warnf("auth rejected on %s (status %d)", path, resp.StatusCode)
		return fmt.Errorf("authentication failed (status %d)", resp.StatusCode)
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("not found: %s", path)
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		c.log.Warnf("unexpected status %d on %s", resp.StatusCode, path)
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, body)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
