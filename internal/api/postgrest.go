package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"friends-scoreboard/internal/config"

	"github.com/rs/zerolog"
	"github.com/valyala/fasthttp"
)

const (
	preferCount          = "count=exact"
	preferRepresentation = "return=representation"
)

// PostgRESTClient talks to a PostgREST (Supabase style) REST endpoint and
// implements the scoreboard backend on top of it.
type PostgRESTClient struct {
	baseURL string
	apiKey  string
	client  *fasthttp.Client
	logger  zerolog.Logger
}

// APIError is the error body PostgREST returns for failed requests.
type APIError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details"`
	Hint    string `json:"hint"`
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("postgrest error %d (%s): %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("postgrest error %d: %s", e.Status, e.Message)
}

func NewPostgRESTClient(cfg *config.Config, logger zerolog.Logger) *PostgRESTClient {
	return newPostgRESTClient(cfg.PostgRESTURL, cfg.PostgRESTKey, &fasthttp.Client{
		MaxConnsPerHost:     100,
		ReadTimeout:         10 * time.Second,
		WriteTimeout:        10 * time.Second,
		MaxIdleConnDuration: 1 * time.Minute,
	}, logger)
}

func newPostgRESTClient(baseURL, apiKey string, client *fasthttp.Client, logger zerolog.Logger) *PostgRESTClient {
	return &PostgRESTClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  client,
		logger:  logger,
	}
}

type request struct {
	method string
	table  string
	query  url.Values
	body   any
	prefer []string
}

type response struct {
	status int
	body   []byte
	total  int
}

func (c *PostgRESTClient) do(ctx context.Context, r request) (*response, error) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	uri := c.baseURL + "/" + r.table
	if len(r.query) > 0 {
		uri += "?" + r.query.Encode()
	}
	req.SetRequestURI(uri)
	req.Header.SetMethod(r.method)
	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")
	if len(r.prefer) > 0 {
		req.Header.Set("Prefer", strings.Join(r.prefer, ","))
	}
	if r.body != nil {
		payload, err := json.Marshal(r.body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode %s payload: %w", r.table, err)
		}
		req.Header.SetContentType("application/json")
		req.SetBody(payload)
	}

	deadline, ok := ctx.Deadline()
	if ok {
		if err := c.client.DoDeadline(req, resp, deadline); err != nil {
			return nil, err
		}
	} else {
		if err := c.client.Do(req, resp); err != nil {
			return nil, err
		}
	}

	out := &response{
		status: resp.StatusCode(),
		body:   append([]byte(nil), resp.Body()...),
		total:  -1,
	}
	if cr := string(resp.Header.Peek("Content-Range")); cr != "" {
		out.total = parseContentRange(cr)
	}

	if out.status >= 300 {
		apiErr := &APIError{Status: out.status}
		if err := json.Unmarshal(out.body, apiErr); err != nil || apiErr.Message == "" {
			apiErr.Message = strings.TrimSpace(string(out.body))
		}
		c.logger.Debug().
			Str("method", r.method).
			Str("table", r.table).
			Int("status", out.status).
			Str("code", apiErr.Code).
			Msg("postgrest request failed")
		return nil, apiErr
	}
	return out, nil
}

// fetch runs r and decodes the JSON array body.
func fetch[T any](ctx context.Context, c *PostgRESTClient, r request) ([]T, int, error) {
	resp, err := c.do(ctx, r)
	if err != nil {
		return nil, 0, err
	}
	var rows []T
	if len(resp.body) > 0 {
		if err := json.Unmarshal(resp.body, &rows); err != nil {
			return nil, 0, fmt.Errorf("failed to decode %s: %w", r.table, err)
		}
	}
	total := resp.total
	if total < 0 {
		total = len(rows)
	}
	return rows, total, nil
}

// parseContentRange returns the total from "0-24/3573" or "*/0", or -1 when
// the server did not count.
func parseContentRange(v string) int {
	i := strings.LastIndexByte(v, '/')
	if i < 0 {
		return -1
	}
	n, err := strconv.Atoi(v[i+1:])
	if err != nil {
		return -1
	}
	return n
}

func eq(v string) string { return "eq." + v }

func pageQuery(q url.Values, limit, offset int) {
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
		q.Set("offset", strconv.Itoa(offset))
	}
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// parseTime accepts the timestamp shapes PostgREST emits; anything else is
// the zero time.
func parseTime(s string) time.Time {
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999", "2006-01-02 15:04:05.999999-07"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
