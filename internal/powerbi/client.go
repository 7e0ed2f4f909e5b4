// Package powerbi executes DAX query plans against the Power BI REST API.
//
// The client presents a blocking Execute call over an internally asynchronous
// transport: requests are handed to a dedicated dispatch goroutine, which
// owns all outbound HTTP traffic. Access tokens are cached per credential and
// refreshed single-flight; transient backend failures are retried with
// bounded exponential backoff.
package powerbi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/sethvargo/go-retry"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/praeparo-labs/praeparo/internal/datasource"
	"github.com/praeparo-labs/praeparo/internal/dax"
)

const (
	// DefaultBaseURL is the Power BI REST API root.
	DefaultBaseURL = "https://api.powerbi.com/v1.0/myorg"
	// DefaultLoginURL is the Azure AD token endpoint root.
	DefaultLoginURL = "https://login.microsoftonline.com"

	defaultMaxAttempts      = 4
	defaultQueriesPerSecond = 4

	// tokenSkew is how long before expiry a cached token is considered stale.
	tokenSkew = time.Minute
)

// workerKey marks contexts that originate on the dispatch goroutine.
type workerKey struct{}

// Config configures a Client. The zero value uses production endpoints,
// http.DefaultClient, and a discard logger.
type Config struct {
	HTTPClient       *http.Client
	Logger           *slog.Logger
	BaseURL          string
	LoginURL         string
	MaxAttempts      int
	QueriesPerSecond float64
	// InitialBackoff seeds the exponential retry schedule.
	InitialBackoff time.Duration
}

// Client executes query plans against Power BI datasets. Safe for concurrent
// use; all outbound traffic is serialized through one dispatch goroutine.
type Client struct {
	http        *http.Client
	logger      *slog.Logger
	baseURL     string
	loginURL    string
	maxAttempts int
	backoff     time.Duration
	limiter     *rate.Limiter

	refresh singleflight.Group
	mu      sync.Mutex
	tokens  map[string]cachedToken

	requests  chan *request
	done      chan struct{}
	closeOnce sync.Once
}

type cachedToken struct {
	value  string
	expiry time.Time
}

type request struct {
	ctx    context.Context
	plan   *dax.QueryPlan
	target *datasource.Resolved
	out    chan outcome
}

type outcome struct {
	result *dax.QueryResult
	err    error
}

// New builds a Client and starts its dispatch goroutine. Callers own the
// client's lifecycle and must Close it when done.
func New(cfg Config) *Client {
	c := &Client{
		http:        cfg.HTTPClient,
		logger:      cfg.Logger,
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		loginURL:    strings.TrimRight(cfg.LoginURL, "/"),
		maxAttempts: cfg.MaxAttempts,
		backoff:     cfg.InitialBackoff,
		tokens:      map[string]cachedToken{},
		requests:    make(chan *request),
		done:        make(chan struct{}),
	}
	if c.http == nil {
		c.http = http.DefaultClient
	}
	if c.logger == nil {
		c.logger = slog.New(slog.DiscardHandler)
	}
	if c.baseURL == "" {
		c.baseURL = DefaultBaseURL
	}
	if c.loginURL == "" {
		c.loginURL = DefaultLoginURL
	}
	if c.maxAttempts <= 0 {
		c.maxAttempts = defaultMaxAttempts
	}
	if c.backoff <= 0 {
		c.backoff = 500 * time.Millisecond
	}
	qps := cfg.QueriesPerSecond
	if qps <= 0 {
		qps = defaultQueriesPerSecond
	}
	c.limiter = rate.NewLimiter(rate.Limit(qps), 1)

	go c.dispatch()
	return c
}

// Close stops the dispatch goroutine. Pending Execute calls fail.
func (c *Client) Close() {
	c.closeOnce.Do(func() { close(c.done) })
}

// Execute implements planner.ExecutionClient. It blocks until the query
// completes, the context is done, or the client is closed. Calling Execute
// from code running on the dispatch goroutine fails fast with ReentrantError
// instead of deadlocking.
func (c *Client) Execute(ctx context.Context, plan *dax.QueryPlan, target *datasource.Resolved) (*dax.QueryResult, error) {
	if ctx.Value(workerKey{}) != nil {
		return nil, &ReentrantError{}
	}
	if target.Mock() {
		return nil, &ExecutionError{Operation: "execute", Message: "mock target routed to remote client"}
	}

	req := &request{ctx: ctx, plan: plan, target: target, out: make(chan outcome, 1)}
	select {
	case c.requests <- req:
	case <-c.done:
		return nil, &ExecutionError{Operation: "execute", Message: "client closed"}
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	select {
	case o := <-req.out:
		return o.result, o.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *Client) dispatch() {
	for {
		select {
		case <-c.done:
			return
		case req := <-c.requests:
			ctx := context.WithValue(req.ctx, workerKey{}, struct{}{})
			req.out <- c.run(ctx, req.plan, req.target)
		}
	}
}

func (c *Client) run(ctx context.Context, plan *dax.QueryPlan, target *datasource.Resolved) outcome {
	if err := c.limiter.Wait(ctx); err != nil {
		return outcome{err: err}
	}

	attempts := 0
	var rows []map[string]any
	backoff := retry.WithMaxRetries(uint64(c.maxAttempts-1), retry.NewExponential(c.backoff))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempts++
		token, err := c.accessToken(ctx, target.Settings)
		if err != nil {
			return classify(err)
		}
		result, err := c.executeQueries(ctx, token, plan, target)
		if err != nil {
			c.logger.Debug("query attempt failed",
				"datasource", target.Name, "attempt", attempts, "error", err)
			return classify(err)
		}
		rows = result
		return nil
	})
	if err != nil {
		return outcome{err: err}
	}

	c.logger.Debug("query executed",
		"datasource", target.Name, "rows", len(rows), "attempts", attempts)
	return outcome{result: &dax.QueryResult{Rows: rows, Attempts: attempts}}
}

// classify marks transient failures retryable: throttling, server errors,
// and transport-level faults. Everything else is terminal.
func classify(err error) error {
	var execErr *ExecutionError
	if !errors.As(err, &execErr) {
		return err
	}
	if execErr.Status == http.StatusTooManyRequests || execErr.Status >= 500 || (execErr.Status == 0 && execErr.Cause != nil) {
		return retry.RetryableError(err)
	}
	return err
}

// accessToken returns a valid token for the credential, refreshing through a
// single flight when the cached one is stale.
func (c *Client) accessToken(ctx context.Context, settings datasource.Settings) (string, error) {
	key := settings.TenantID + "/" + settings.ClientID
	if token, ok := c.cachedToken(key); ok {
		return token, nil
	}

	value, err, _ := c.refresh.Do(key, func() (any, error) {
		if token, ok := c.cachedToken(key); ok {
			return token, nil
		}
		token, lifetime, err := c.requestToken(ctx, settings)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.tokens[key] = cachedToken{value: token, expiry: time.Now().Add(lifetime)}
		c.mu.Unlock()
		c.logger.Debug("access token refreshed", "client", settings.ClientID, "lifetime", lifetime)
		return token, nil
	})
	if err != nil {
		return "", err
	}
	return value.(string), nil
}

func (c *Client) cachedToken(key string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	cached, ok := c.tokens[key]
	if !ok || time.Until(cached.expiry) <= tokenSkew {
		return "", false
	}
	return cached.value, true
}

func (c *Client) requestToken(ctx context.Context, settings datasource.Settings) (string, time.Duration, error) {
	form := url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {settings.RefreshToken},
		"client_id":     {settings.ClientID},
		"client_secret": {settings.ClientSecret},
		"scope":         {settings.Scope},
	}
	endpoint := c.loginURL + "/" + settings.TenantID + "/oauth2/v2.0/token"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", 0, fmt.Errorf("building token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", 0, &ExecutionError{Operation: "token refresh", Cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", 0, &ExecutionError{Operation: "token refresh", Status: resp.StatusCode, Message: bodySnippet(resp.Body)}
	}

	var payload struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", 0, &ExecutionError{Operation: "token refresh", Message: "malformed token response", Cause: err}
	}
	if payload.AccessToken == "" {
		return "", 0, &ExecutionError{Operation: "token refresh", Message: "token response missing access_token"}
	}
	return payload.AccessToken, time.Duration(payload.ExpiresIn) * time.Second, nil
}

// executeQueries posts the plan's DAX batch and maps each returned table back
// to the row spec that produced it, in declaration order.
func (c *Client) executeQueries(ctx context.Context, token string, plan *dax.QueryPlan, target *datasource.Resolved) ([]map[string]any, error) {
	endpoint := c.baseURL
	if target.WorkspaceID != "" {
		endpoint += "/groups/" + target.WorkspaceID
	}
	endpoint += "/datasets/" + target.DatasetID + "/executeQueries"

	body, err := json.Marshal(map[string]any{
		"queries":            []map[string]string{{"query": plan.Statement}},
		"serializerSettings": map[string]bool{"includeNulls": true},
	})
	if err != nil {
		return nil, fmt.Errorf("encoding query request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building query request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &ExecutionError{Operation: "execute queries", Cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &ExecutionError{Operation: "execute queries", Status: resp.StatusCode, Message: bodySnippet(resp.Body)}
	}

	var payload struct {
		Results []struct {
			Tables []struct {
				Rows []map[string]any `json:"rows"`
			} `json:"tables"`
		} `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, &ExecutionError{Operation: "execute queries", Message: "malformed query response", Cause: err}
	}
	if len(payload.Results) == 0 {
		return nil, &ExecutionError{Operation: "execute queries", Message: "query response holds no results"}
	}

	tables := payload.Results[0].Tables
	if len(tables) != len(plan.Rows) {
		return nil, &ExecutionError{
			Operation: "execute queries",
			Message:   fmt.Sprintf("expected %d result tables, got %d", len(plan.Rows), len(tables)),
		}
	}

	var rows []map[string]any
	for i, table := range tables {
		spec := plan.Rows[i]
		for _, raw := range table.Rows {
			rows = append(rows, translateRow(raw, spec))
		}
	}
	return rows, nil
}

// translateRow tags a raw row with its spec key and maps grouping-field
// columns onto placeholder keys; the backend may return them under the DAX
// reference or the bare column name.
func translateRow(raw map[string]any, spec dax.RowSpec) map[string]any {
	row := make(map[string]any, len(raw)+1)
	for key, value := range raw {
		row[key] = value
	}
	row[dax.RowKeyColumn] = spec.Key
	for _, field := range spec.Fields {
		placeholder := field.Placeholder()
		for _, candidate := range []string{placeholder, field.DaxReference(), field.Column} {
			if value, ok := raw[candidate]; ok {
				row[placeholder] = value
				break
			}
		}
	}
	return row
}

func bodySnippet(body io.Reader) string {
	raw, err := io.ReadAll(io.LimitReader(body, 512))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(raw))
}
