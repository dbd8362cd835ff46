package engine

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xela07ax/agentflow-prototype/internal/domain"
)

func TestHandleRunRequest(t *testing.T) {
	orch, _, _ := newTestOrchestrator(t,
		lineCatalog(nil), okRunners("prep", "worker", "finisher", "backup"), Config{})

	body := `{"start": {}, "goal": {"finished": true}}`
	req := httptest.NewRequest(http.MethodPost, "/v1/runs", strings.NewReader(body))
	w := httptest.NewRecorder()

	orch.HandleRunRequest(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var resp struct {
		Trace *domain.RunTrace `json:"trace"`
		Error string           `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotNil(t, resp.Trace)
	assert.Empty(t, resp.Error)
	assert.Len(t, resp.Trace.Agents, 3)
}

func TestHandleRunRequestCriticalReturnsPartialTrace(t *testing.T) {
	runners := okRunners("prep", "finisher", "backup")
	runners["worker"] = failRunner("db unreachable")

	cat := lineCatalog(map[string]domain.RecoveryStrategy{
		"worker": {Critical: true},
	})
	orch, _, _ := newTestOrchestrator(t, cat, runners, Config{})

	body := `{"goal": {"finished": true}}`
	req := httptest.NewRequest(http.MethodPost, "/v1/runs", strings.NewReader(body))
	w := httptest.NewRecorder()

	orch.HandleRunRequest(w, req)

	require.Equal(t, http.StatusUnprocessableEntity, w.Code)

	var resp struct {
		Trace *domain.RunTrace `json:"trace"`
		Error string           `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Contains(t, resp.Error, "db unreachable")
	// Частичная трасса прилагается к ошибке
	require.NotNil(t, resp.Trace)
	assert.Len(t, resp.Trace.Agents, 2)
}

func TestHandleRunRequestValidation(t *testing.T) {
	orch, _, _ := newTestOrchestrator(t,
		lineCatalog(nil), okRunners("prep", "worker", "finisher", "backup"), Config{})

	tests := []struct {
		name   string
		method string
		body   string
		code   int
	}{
		{"get not allowed", http.MethodGet, "", http.StatusMethodNotAllowed},
		{"broken json", http.MethodPost, "{", http.StatusBadRequest},
		{"missing goal", http.MethodPost, `{"start": {}}`, http.StatusBadRequest},
		{"unsupported value type", http.MethodPost, `{"goal": {"finished": [1]}}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/v1/runs", strings.NewReader(tt.body))
			w := httptest.NewRecorder()
			orch.HandleRunRequest(w, req)
			assert.Equal(t, tt.code, w.Code)
		})
	}
}

func TestTracingMiddleware(t *testing.T) {
	var seen string
	h := TracingMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = extractTraceID(r.Context())
	}))

	// Клиентский заголовок проносится насквозь
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Trace-ID", "client-trace-42")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, "client-trace-42", seen)
	assert.Equal(t, "client-trace-42", w.Header().Get("X-Trace-ID"))

	// Без заголовка генерируется новый и возвращается клиенту
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.NotEmpty(t, seen)
	assert.Equal(t, seen, w.Header().Get("X-Trace-ID"))
}

func TestExtractTraceIDFallback(t *testing.T) {
	assert.Equal(t, "00000000-0000-0000-0000-000000000000", extractTraceID(context.Background()))
	ctx := WithTraceID(context.Background(), "t-1")
	assert.Equal(t, "t-1", extractTraceID(ctx))
}
