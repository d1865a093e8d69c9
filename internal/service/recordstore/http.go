package recordstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/zhouzirui/z-helpdesk/backend/internal/log"
	"github.com/zhouzirui/z-helpdesk/backend/internal/model/helpdesk"
)

const backendHTTP = "http"

// HTTPConfig describes a collection resource supporting GET (list) and POST
// (append), such as a SheetBest sheet.
type HTTPConfig struct {
	URL     string
	APIKey  string
	Timeout time.Duration
}

// HTTPClient implements Client against an HTTP collection resource.
type HTTPClient struct {
	url     string
	apiKey  string
	timeout time.Duration
	http    *http.Client
	flight  singleflight.Group
	logger  zerolog.Logger
}

// NewHTTPClient builds a client. httpClient may be nil.
func NewHTTPClient(cfg HTTPConfig, httpClient *http.Client) (*HTTPClient, error) {
	url := strings.TrimSpace(cfg.URL)
	if url == "" {
		return nil, errors.New("record store URL is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &HTTPClient{
		url:     url,
		apiKey:  cfg.APIKey,
		timeout: timeout,
		http:    httpClient,
		logger:  log.WithComponent("recordstore"),
	}, nil
}

// FetchAll lists every row. Concurrent callers share one upstream request and
// must treat the returned records as read-only.
func (c *HTTPClient) FetchAll(ctx context.Context) ([]helpdesk.Record, error) {
	ch := c.flight.DoChan("fetch_all", func() (any, error) {
		// detached so one caller giving up does not fail the others
		return c.fetchAll(context.WithoutCancel(ctx))
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]helpdesk.Record), nil
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, ctx.Err())
	}
}

func (c *HTTPClient) fetchAll(ctx context.Context) (records []helpdesk.Record, err error) {
	started := time.Now()
	defer func() { observe(backendHTTP, "fetch_all", started, err) }()

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", ErrStoreUnavailable, err)
	}
	req.Header.Set("Accept", "application/json")
	c.authorize(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: GET: %v", ErrStoreUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: GET status %d", ErrStoreUnavailable, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", ErrStoreUnavailable, err)
	}

	records, err = decodeRecords(body)
	if err != nil {
		return nil, err
	}
	c.logger.Debug().Int("rows", len(records)).Dur(log.FieldDuration, time.Since(started)).Msg("fetched records")
	return records, nil
}

// Append posts one row.
func (c *HTTPClient) Append(ctx context.Context, record helpdesk.Record) (err error) {
	started := time.Now()
	defer func() { observe(backendHTTP, "append", started, err) }()

	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("%w: build request: %v", ErrStoreUnavailable, err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.authorize(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: POST: %v", ErrStoreUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: POST status %d: %s", ErrStoreUnavailable, resp.StatusCode, strings.TrimSpace(string(detail)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

func (c *HTTPClient) authorize(req *http.Request) {
	if c.apiKey != "" {
		req.Header.Set("X-Api-Key", c.apiKey)
	}
}
