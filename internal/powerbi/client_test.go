package powerbi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/praeparo-labs/praeparo/internal/datasource"
	"github.com/praeparo-labs/praeparo/internal/dax"
	"github.com/praeparo-labs/praeparo/internal/visual"
)

type backend struct {
	tokenCalls int64
	queryCalls int64

	// queryStatus returns the status for the nth query call (1-based).
	queryStatus func(call int64) int
	tables      []map[string]any
}

func (b *backend) handler(t *testing.T) http.Handler {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/tenant-1/oauth2/v2.0/token", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&b.tokenCalls, 1)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "refresh_token", r.Form.Get("grant_type"))
		assert.Equal(t, "client-1", r.Form.Get("client_id"))
		json.NewEncoder(w).Encode(map[string]any{"access_token": "tok-1", "expires_in": 3600})
	})
	mux.HandleFunc("/datasets/ds-1/executeQueries", func(w http.ResponseWriter, r *http.Request) {
		call := atomic.AddInt64(&b.queryCalls, 1)
		assert.Equal(t, "Bearer tok-1", r.Header.Get("Authorization"))
		if b.queryStatus != nil {
			if status := b.queryStatus(call); status != http.StatusOK {
				w.WriteHeader(status)
				return
			}
		}
		tables := b.tables
		if tables == nil {
			tables = []map[string]any{{"rows": []map[string]any{}}}
		}
		json.NewEncoder(w).Encode(map[string]any{
			"results": []map[string]any{{"tables": tables}},
		})
	})
	return mux
}

func newTestClient(t *testing.T, server *httptest.Server) *Client {
	t.Helper()
	client := New(Config{
		HTTPClient:     server.Client(),
		BaseURL:        server.URL,
		LoginURL:       server.URL,
		InitialBackoff: time.Millisecond,
	})
	t.Cleanup(client.Close)
	return client
}

func testTarget() *datasource.Resolved {
	return &datasource.Resolved{
		Name:      "prod",
		Type:      "powerbi",
		DatasetID: "ds-1",
		Settings: datasource.Settings{
			TenantID:     "tenant-1",
			ClientID:     "client-1",
			ClientSecret: "secret",
			RefreshToken: "refresh",
			Scope:        datasource.DefaultScope,
		},
	}
}

func testPlan(t *testing.T) *dax.QueryPlan {
	t.Helper()
	plan, err := dax.BuildMatrixQuery(&visual.Matrix{
		Rows:   []visual.RowTemplate{{Template: "{{dim.City}}"}},
		Values: []visual.Value{{ID: "Hours"}},
	})
	require.NoError(t, err)
	return plan
}

func TestClient_ExecuteTranslatesRows(t *testing.T) {
	b := &backend{tables: []map[string]any{{
		"rows": []map[string]any{
			{"dim[City]": "Lisbon", "[Hours]": 12.5},
		},
	}}}
	server := httptest.NewServer(b.handler(t))
	defer server.Close()
	client := newTestClient(t, server)

	result, err := client.Execute(context.Background(), testPlan(t), testTarget())
	require.NoError(t, err)

	require.Len(t, result.Rows, 1)
	assert.Equal(t, "r1", result.Rows[0][dax.RowKeyColumn])
	assert.Equal(t, "Lisbon", result.Rows[0]["dim.City"], "grouping fields move to placeholder keys")
	assert.Equal(t, 12.5, result.Rows[0]["[Hours]"])
	assert.Equal(t, 1, result.Attempts)
}

func TestClient_RetriesTransientFailures(t *testing.T) {
	b := &backend{queryStatus: func(call int64) int {
		if call <= 2 {
			return http.StatusServiceUnavailable
		}
		return http.StatusOK
	}}
	server := httptest.NewServer(b.handler(t))
	defer server.Close()
	client := newTestClient(t, server)

	result, err := client.Execute(context.Background(), testPlan(t), testTarget())
	require.NoError(t, err)

	assert.Equal(t, 3, result.Attempts)
	assert.Equal(t, int64(3), atomic.LoadInt64(&b.queryCalls))
}

func TestClient_TerminalFailureDoesNotRetry(t *testing.T) {
	b := &backend{queryStatus: func(int64) int { return http.StatusBadRequest }}
	server := httptest.NewServer(b.handler(t))
	defer server.Close()
	client := newTestClient(t, server)

	_, err := client.Execute(context.Background(), testPlan(t), testTarget())
	var execErr *ExecutionError
	require.ErrorAs(t, err, &execErr)
	assert.Equal(t, http.StatusBadRequest, execErr.Status)
	assert.Equal(t, int64(1), atomic.LoadInt64(&b.queryCalls))
}

func TestClient_TokenCachedAcrossCalls(t *testing.T) {
	b := &backend{}
	server := httptest.NewServer(b.handler(t))
	defer server.Close()
	client := newTestClient(t, server)

	for range 3 {
		_, err := client.Execute(context.Background(), testPlan(t), testTarget())
		require.NoError(t, err)
	}

	assert.Equal(t, int64(1), atomic.LoadInt64(&b.tokenCalls))
	assert.Equal(t, int64(3), atomic.LoadInt64(&b.queryCalls))
}

func TestClient_TokenRefreshSingleFlight(t *testing.T) {
	b := &backend{}
	server := httptest.NewServer(b.handler(t))
	defer server.Close()
	client := newTestClient(t, server)

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := client.accessToken(context.Background(), testTarget().Settings)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(1), atomic.LoadInt64(&b.tokenCalls))
}

func TestClient_ReentrantCallFailsFast(t *testing.T) {
	b := &backend{}
	server := httptest.NewServer(b.handler(t))
	defer server.Close()
	client := newTestClient(t, server)

	ctx := context.WithValue(context.Background(), workerKey{}, struct{}{})
	_, err := client.Execute(ctx, testPlan(t), testTarget())

	var reentrant *ReentrantError
	require.ErrorAs(t, err, &reentrant)
	assert.Equal(t, int64(0), atomic.LoadInt64(&b.queryCalls))
}

func TestClient_ClosedClientFailsExecute(t *testing.T) {
	b := &backend{}
	server := httptest.NewServer(b.handler(t))
	defer server.Close()
	client := newTestClient(t, server)
	client.Close()

	_, err := client.Execute(context.Background(), testPlan(t), testTarget())
	var execErr *ExecutionError
	require.ErrorAs(t, err, &execErr)
	assert.Contains(t, execErr.Error(), "closed")
}

func TestClient_MockTargetRejected(t *testing.T) {
	b := &backend{}
	server := httptest.NewServer(b.handler(t))
	defer server.Close()
	client := newTestClient(t, server)

	_, err := client.Execute(context.Background(), testPlan(t), &datasource.Resolved{Type: "mock"})
	var execErr *ExecutionError
	require.ErrorAs(t, err, &execErr)
}

func TestClient_TableCountMismatch(t *testing.T) {
	b := &backend{tables: []map[string]any{
		{"rows": []map[string]any{}},
		{"rows": []map[string]any{}},
	}}
	server := httptest.NewServer(b.handler(t))
	defer server.Close()
	client := newTestClient(t, server)

	_, err := client.Execute(context.Background(), testPlan(t), testTarget())
	var execErr *ExecutionError
	require.ErrorAs(t, err, &execErr)
	assert.Contains(t, execErr.Message, "result tables")
}

func TestClient_ContextCancellationUnblocks(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	b := &backend{}
	server := httptest.NewServer(b.handler(t))
	defer server.Close()
	client := newTestClient(t, server)

	_, err := client.Execute(ctx, testPlan(t), testTarget())
	assert.ErrorIs(t, err, context.Canceled)
}
