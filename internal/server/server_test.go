package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/spigell/hire-intake/internal/intake"
	"github.com/spigell/hire-intake/internal/metrics"
	"github.com/spigell/hire-intake/internal/slots"
	"github.com/spigell/hire-intake/internal/stage"
	"github.com/spigell/hire-intake/internal/store"
)

type fixture struct {
	handler http.Handler
	store   *store.Memory
	logs    *observer.ObservedLogs
}

func newFixture(t *testing.T, apiKey string) *fixture {
	t.Helper()

	core, logs := observer.New(zapcore.DebugLevel)
	log := zap.New(core)
	mem := store.NewMemory()
	reg := prometheus.NewRegistry()

	engine := intake.New(intake.Deps{
		Store:   mem,
		Metrics: metrics.NewCollectors(reg),
		Logger:  log,
	}, intake.Config{})

	srv := New(Config{}, apiKey, Deps{
		Engine:   engine,
		Store:    mem,
		Gatherer: reg,
		Logger:   log,
	})
	return &fixture{handler: srv.Handler(), store: mem, logs: logs}
}

func (f *fixture) do(t *testing.T, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	f.handler.ServeHTTP(w, req)
	return w
}

func scopeHeaders() map[string]string {
	return map[string]string{
		"entity-id": "acme",
		"platform":  "web",
		"thread-id": "thread-1",
		"user-id":   "u-1",
	}
}

func decodeJSON[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()

	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func TestHealth(t *testing.T) {
	t.Parallel()

	f := newFixture(t, "")
	w := f.do(t, http.MethodGet, "/health", nil, nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, map[string]bool{"ok": true}, decodeJSON[map[string]bool](t, w))
}

func TestTurnRequiresScopeHeaders(t *testing.T) {
	t.Parallel()

	f := newFixture(t, "")
	headers := scopeHeaders()
	delete(headers, "entity-id")

	w := f.do(t, http.MethodPost, "/v1/turn", map[string]any{"text": "hi"}, headers)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	body := decodeJSON[errorBody](t, w)
	assert.False(t, body.OK)
	assert.Contains(t, body.Error, "entity-id")
}

func TestTurnValidatesText(t *testing.T) {
	t.Parallel()

	f := newFixture(t, "")

	w := f.do(t, http.MethodPost, "/v1/turn", map[string]any{"text": ""}, scopeHeaders())
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decodeJSON[errorBody](t, w).Error, "text")

	w = f.do(t, http.MethodPost, "/v1/turn", map[string]any{"text": strings.Repeat("a", 4001)}, scopeHeaders())
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTurnConversationFlow(t *testing.T) {
	t.Parallel()

	f := newFixture(t, "")

	w := f.do(t, http.MethodPost, "/v1/turn", map[string]any{
		"text": "Need a data engineer in Pune, budget 20-25 LPA",
	}, scopeHeaders())
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	first := decodeJSON[turnResponse](t, w)
	assert.True(t, first.OK)
	require.NotEmpty(t, first.CID)
	assert.Equal(t, stage.Enrich, first.Stage)
	assert.Equal(t, stage.Enrich, first.Meta.AskStage)
	assert.Equal(t, []slots.Key{slots.KeySeniority, slots.KeyStack}, first.Meta.Missing)
	assert.Equal(t, "Pune", first.Meta.Slots.Location)
	assert.Equal(t, intake.IntentHiring, first.Intent)

	w = f.do(t, http.MethodPost, "/v1/turn", map[string]any{
		"cid":  first.CID,
		"text": "senior, stack: python, airflow",
	}, scopeHeaders())
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	second := decodeJSON[turnResponse](t, w)
	assert.Equal(t, first.CID, second.CID)
	assert.Equal(t, stage.Match, second.Stage)
	assert.Equal(t, "Pune", second.Meta.Slots.Location, "slots are recovered from the stored reply")
	assert.Equal(t, []string{"python", "airflow"}, second.Meta.Slots.Stack)

	w = f.do(t, http.MethodGet, "/v1/conversations/"+first.CID+"/context", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)

	ctxResp := decodeJSON[contextResponse](t, w)
	require.Len(t, ctxResp.Messages, 4)
	assert.Equal(t, store.RoleUser, ctxResp.Messages[0].Role)
	assert.Equal(t, store.RoleAssistant, ctxResp.Messages[3].Role)
	assert.Equal(t, "match", ctxResp.Messages[3].Metadata.Stage)
	require.NotNil(t, ctxResp.Messages[3].Metadata.Slots)
	assert.Equal(t, "senior", ctxResp.Messages[3].Metadata.Slots.Seniority)
}

func TestTurnIdempotencyKey(t *testing.T) {
	t.Parallel()

	f := newFixture(t, "")
	headers := scopeHeaders()
	headers["Idempotency-Key"] = "req-1"

	var cid string
	for range 2 {
		w := f.do(t, http.MethodPost, "/v1/turn", map[string]any{"text": "need a designer"}, headers)
		require.Equal(t, http.StatusOK, w.Code)
		cid = decodeJSON[turnResponse](t, w).CID
	}

	msgs, err := f.store.ListRecent(context.Background(), cid, 0)
	require.NoError(t, err)
	assert.Len(t, msgs, 2)
}

func TestTurnRepeatedTextIsNewTurn(t *testing.T) {
	t.Parallel()

	f := newFixture(t, "")

	var last turnResponse
	for _, text := range []string{"senior", "junior", "senior", "hello"} {
		w := f.do(t, http.MethodPost, "/v1/turn", map[string]any{"text": text}, scopeHeaders())
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		last = decodeJSON[turnResponse](t, w)
	}

	assert.Equal(t, "senior", last.Meta.Slots.Seniority)

	msgs, err := f.store.ListRecent(context.Background(), last.CID, 0)
	require.NoError(t, err)
	assert.Len(t, msgs, 8)
}

func TestTurnUsesSuppliedMeta(t *testing.T) {
	t.Parallel()

	f := newFixture(t, "")

	w := f.do(t, http.MethodPost, "/v1/turn", map[string]any{
		"text": "hello",
		"meta": map[string]any{
			"stage": "collect",
			"slots": map[string]any{
				"role_title": "QA Engineer",
				"location":   "Remote",
				"budget":     "$30 per hour",
			},
		},
	}, scopeHeaders())
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	res := decodeJSON[turnResponse](t, w)
	assert.Equal(t, stage.Enrich, res.Stage)
	require.NotNil(t, res.Meta.Slots.Budget)
	assert.Equal(t, "hour", res.Meta.Slots.Budget.Period)
}

func TestTurnIgnoresUndecodableSlots(t *testing.T) {
	t.Parallel()

	f := newFixture(t, "")

	w := f.do(t, http.MethodPost, "/v1/turn", map[string]any{
		"text": "hello",
		"meta": map[string]any{"slots": map[string]any{"role_title": map[string]any{"nested": true}}},
	}, scopeHeaders())
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	assert.Equal(t, stage.Collect, decodeJSON[turnResponse](t, w).Stage)
	assert.Equal(t, 1, f.logs.FilterMessage("ignoring undecodable meta.slots").Len())
}

func TestAPIKey(t *testing.T) {
	t.Parallel()

	f := newFixture(t, "secret")

	w := f.do(t, http.MethodPost, "/v1/turn", map[string]any{"text": "hi"}, scopeHeaders())
	assert.Equal(t, http.StatusForbidden, w.Code)

	headers := scopeHeaders()
	headers["X-API-Key"] = "secret"
	w = f.do(t, http.MethodPost, "/v1/turn", map[string]any{"text": "hi"}, headers)
	assert.Equal(t, http.StatusOK, w.Code)

	w = f.do(t, http.MethodGet, "/health", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestEnsureConversation(t *testing.T) {
	t.Parallel()

	f := newFixture(t, "")
	body := map[string]any{"entity_id": "acme", "platform": "web", "thread_id": "t-9"}

	first := decodeJSON[map[string]any](t, f.do(t, http.MethodPost, "/v1/conversations/ensure", body, nil))
	second := decodeJSON[map[string]any](t, f.do(t, http.MethodPost, "/v1/conversations/ensure", body, nil))
	assert.Equal(t, true, first["ok"])
	assert.Equal(t, first["cid"], second["cid"])

	w := f.do(t, http.MethodPost, "/v1/conversations/ensure", map[string]any{"entity_id": "acme"}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestIngestMessage(t *testing.T) {
	t.Parallel()

	f := newFixture(t, "")
	body := map[string]any{
		"entity_id": "acme", "platform": "web", "thread_id": "t-1", "user_id": "u-1",
		"content": "tool output", "role": "tool",
	}

	w := f.do(t, http.MethodPost, "/v1/messages/ingest", body, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp := decodeJSON[map[string]any](t, w)
	assert.NotEmpty(t, resp["mid"])

	repeat := decodeJSON[map[string]any](t, f.do(t, http.MethodPost, "/v1/messages/ingest", body, nil))
	assert.Equal(t, resp["mid"], repeat["mid"], "default idempotency key dedupes")

	body["role"] = "bot"
	w = f.do(t, http.MethodPost, "/v1/messages/ingest", body, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestContextErrors(t *testing.T) {
	t.Parallel()

	f := newFixture(t, "")
	cid, err := f.store.EnsureConversation(context.Background(), "acme", "web", "t-1")
	require.NoError(t, err)

	cases := []struct {
		name string
		path string
		want int
	}{
		{name: "default limit", path: "/v1/conversations/" + cid + "/context", want: http.StatusOK},
		{name: "limit too large", path: "/v1/conversations/" + cid + "/context?limit=50", want: http.StatusBadRequest},
		{name: "limit zero", path: "/v1/conversations/" + cid + "/context?limit=0", want: http.StatusBadRequest},
		{name: "limit not a number", path: "/v1/conversations/" + cid + "/context?limit=x", want: http.StatusBadRequest},
		{name: "unknown conversation", path: "/v1/conversations/nope/context", want: http.StatusNotFound},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := f.do(t, http.MethodGet, tc.path, nil, nil)
			assert.Equal(t, tc.want, w.Code, w.Body.String())
		})
	}
}

func TestMetricsEndpoint(t *testing.T) {
	t.Parallel()

	f := newFixture(t, "")
	w := f.do(t, http.MethodPost, "/v1/turn", map[string]any{"text": "need a designer"}, scopeHeaders())
	require.Equal(t, http.StatusOK, w.Code)

	w = f.do(t, http.MethodGet, "/metrics", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `hire_intake_turns_total{stage="collect"} 1`)
}

func TestSummarize(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "short", summarize("short"))

	long := strings.Repeat("é", 450)
	got := summarize(long)
	assert.True(t, strings.HasSuffix(got, "..."))
	assert.Equal(t, strings.Repeat("é", 400)+"...", got)
}

func TestRunShutsDownOnCancel(t *testing.T) {
	t.Parallel()

	srv := New(Config{Address: "127.0.0.1:0"}, "", Deps{Store: store.NewMemory()})
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
