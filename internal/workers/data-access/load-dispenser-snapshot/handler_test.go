package loaddispensersnapshot

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"fieldops-workers/internal/common/config"
	"fieldops-workers/internal/common/database"
	apperrors "fieldops-workers/internal/common/errors"
	"fieldops-workers/internal/common/logger"
	"fieldops-workers/internal/models"
	"fieldops-workers/internal/workers/data-access/load-dispenser-snapshot/queries"
)

func createTestConfig() *Config {
	return &Config{
		Timeout:   5 * time.Second,
		Index:     "dispenser-scrapes",
		BatchSize: 100,
	}
}

func createTestLogger(t *testing.T) logger.Logger {
	return logger.NewZapAdapter(zaptest.NewLogger(t))
}

func newTestES(t *testing.T, handler http.HandlerFunc) *database.ElasticsearchClient {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.Header().Set("Content-Type", "application/json")
		handler(w, r)
	}))
	t.Cleanup(srv.Close)

	client, err := database.NewElasticsearch(config.ElasticsearchConfig{URL: srv.URL})
	require.NoError(t, err)
	return client
}

const searchResponse = `{
	"took": 3,
	"hits": {
		"total": {"value": 2},
		"hits": [
			{"_id": "a", "_source": {"orderId": "WO-1", "dispensers": [{"make": "Gilbarco", "model": "Encore 700", "fields": {"Grade": "Diesel"}}]}},
			{"_id": "b", "_source": {"orderId": 2, "dispensers": [{"make": "Wayne", "fields": {"Meter": "Electronic"}}]}},
			{"_id": "c", "_source": {"dispensers": []}}
		]
	}
}`

func TestHandler_Execute_ByOrderIDs(t *testing.T) {
	var body map[string]interface{}
	client := newTestES(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/dispenser-scrapes/_search", r.URL.Path)
		raw, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(raw, &body))
		_, _ = io.WriteString(w, searchResponse)
	})

	h := NewHandler(createTestConfig(), client, createTestLogger(t))

	out, err := h.Execute(context.Background(), &Input{
		OrderIDs: []models.FlexString{"WO-1", "2", "WO-1", "WO-3"},
	})
	require.NoError(t, err)

	assert.Equal(t, 3, out.RequestedOrders)
	assert.Equal(t, 2, out.MatchedOrders)
	assert.True(t, out.Dispensers.Has("WO-1"))
	assert.True(t, out.Dispensers.Has("2"))
	assert.False(t, out.Dispensers.Has("WO-3"))
	assert.Equal(t, "Diesel", out.Dispensers["WO-1"][0].Fields["Grade"])

	terms := body["query"].(map[string]interface{})["bool"].(map[string]interface{})["filter"].([]interface{})[0]
	ids := terms.(map[string]interface{})["terms"].(map[string]interface{})["orderId"]
	assert.Equal(t, []interface{}{"WO-1", "2", "WO-3"}, ids)
	assert.Equal(t, "orderId", body["collapse"].(map[string]interface{})["field"])
}

func TestHandler_Execute_IDsFromOrders(t *testing.T) {
	client := newTestES(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, searchResponse)
	})

	h := NewHandler(createTestConfig(), client, createTestLogger(t))

	out, err := h.Execute(context.Background(), &Input{
		Orders: json.RawMessage(`[{"id":"WO-1","customerName":"Circle K"},{"id":2,"customerName":"Wawa"}]`),
	})
	require.NoError(t, err)
	assert.Equal(t, 2, out.RequestedOrders)
	assert.Equal(t, 2, out.MatchedOrders)
}

func TestHandler_Execute_NoOrdersSkipsSearch(t *testing.T) {
	var calls int32
	client := newTestES(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	})

	h := NewHandler(createTestConfig(), client, createTestLogger(t))

	out, err := h.Execute(context.Background(), &Input{Orders: json.RawMessage(`[]`)})
	require.NoError(t, err)
	assert.Empty(t, out.Dispensers)
	assert.NotNil(t, out.Dispensers)
	assert.Equal(t, int32(0), atomic.LoadInt32(&calls))
}

func TestHandler_Execute_Batches(t *testing.T) {
	var calls int32
	client := newTestES(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		_, _ = io.WriteString(w, `{"hits":{"total":{"value":0},"hits":[]}}`)
	})

	cfg := createTestConfig()
	cfg.BatchSize = 2
	h := NewHandler(cfg, client, createTestLogger(t))

	_, err := h.Execute(context.Background(), &Input{
		OrderIDs: []models.FlexString{"1", "2", "3", "4", "5"},
	})
	require.NoError(t, err)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestHandler_Execute_Errors(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		input    *Input
		wantCode apperrors.ErrorCode
	}{
		{
			name:     "missing index",
			status:   http.StatusNotFound,
			body:     `{"error":{"type":"index_not_found_exception"}}`,
			input:    &Input{OrderIDs: []models.FlexString{"1"}},
			wantCode: apperrors.ErrCodeIndexNotFound,
		},
		{
			name:     "search failure",
			status:   http.StatusBadRequest,
			body:     `{"error":{"type":"search_phase_execution_exception"}}`,
			input:    &Input{OrderIDs: []models.FlexString{"1"}},
			wantCode: apperrors.ErrCodeDispenserSearchFailed,
		},
		{
			name:     "malformed orders",
			status:   http.StatusOK,
			input:    &Input{Orders: json.RawMessage(`{"id":"1"}`)},
			wantCode: apperrors.ErrCodeSnapshotInvalid,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestES(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			})
			h := NewHandler(createTestConfig(), client, createTestLogger(t))

			_, err := h.Execute(context.Background(), tt.input)
			require.Error(t, err)

			stdErr, ok := apperrors.AsStandardError(err)
			require.True(t, ok)
			assert.Equal(t, tt.wantCode, stdErr.Code)
		})
	}
}

func TestQueries_Chunk(t *testing.T) {
	assert.Equal(t, [][]string{{"a", "b"}, {"c"}}, queries.Chunk([]string{"a", "b", "c"}, 2))
	assert.Equal(t, [][]string{{"a", "b", "c"}}, queries.Chunk([]string{"a", "b", "c"}, 0))

	_, err := queries.DispenserQuery(nil)
	assert.ErrorIs(t, err, queries.ErrNoOrderIDs)
}

func TestLoadConfig(t *testing.T) {
	cfg := LoadConfig(&config.Config{
		Search: config.SearchConfig{DispenserIndex: "scrapes-v2", MaxOrderIDs: 50},
	})
	assert.Equal(t, "scrapes-v2", cfg.Index)
	assert.Equal(t, 50, cfg.BatchSize)
	assert.Equal(t, 10*time.Second, cfg.Timeout)
}
