package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pollroom/pkg/response"
	"pollroom/pkg/types"
)

type fakeReader struct {
	roster  []types.RosterEntry
	poll    *types.Poll
	history []types.HistoryEntry
	stats   types.SessionStats
}

func (f *fakeReader) Roster() []types.RosterEntry           { return f.roster }
func (f *fakeReader) ActivePoll() *types.Poll               { return f.poll }
func (f *fakeReader) HistorySnapshot() []types.HistoryEntry { return f.history }
func (f *fakeReader) Stats() types.SessionStats             { return f.stats }

type fakeUpgrader struct {
	called bool
}

func (f *fakeUpgrader) Serve(w http.ResponseWriter, r *http.Request) {
	f.called = true
	w.WriteHeader(http.StatusTeapot)
}

type fixedCount int

func (n fixedCount) Count() int { return int(n) }

func newTestRouter(reader *fakeReader, gateway *fakeUpgrader, conns int) *gin.Engine {
	gin.SetMode(gin.TestMode)
	if reader == nil {
		reader = &fakeReader{}
	}
	if gateway == nil {
		gateway = &fakeUpgrader{}
	}
	return NewRouter(reader, gateway, fixedCount(conns))
}

func do(t *testing.T, router *gin.Engine, method, path string) (*httptest.ResponseRecorder, response.Response) {
	t.Helper()
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, nil)
	router.ServeHTTP(rec, req)

	var body response.Response
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		return rec, response.Response{}
	}
	return rec, body
}

func TestHealthzReportsStats(t *testing.T) {
	reader := &fakeReader{stats: types.SessionStats{Teachers: 1, Participants: 2}}
	router := newTestRouter(reader, nil, 3)

	rec, body := do(t, router, http.MethodGet, "/healthz")

	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, body.Success)

	data, ok := body.Data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "ok", data["status"])
	assert.Equal(t, float64(3), data["connections"])
	assert.Equal(t, float64(2), data["participants"])
	assert.Contains(t, data, "uptime")
}

func TestParticipantsSnapshot(t *testing.T) {
	reader := &fakeReader{roster: []types.RosterEntry{
		{Name: "alice", SessionID: "tok-a"},
		{Name: "bob", SessionID: "tok-b"},
	}}
	router := newTestRouter(reader, nil, 0)

	rec, body := do(t, router, http.MethodGet, "/api/participants")

	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, body.Success)

	entries, ok := body.Data.([]any)
	require.True(t, ok)
	require.Len(t, entries, 2)
	first, ok := entries[0].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "alice", first["name"])
}

func TestPollReturns404WhenIdle(t *testing.T) {
	router := newTestRouter(&fakeReader{}, nil, 0)

	rec, body := do(t, router, http.MethodGet, "/api/poll")

	require.Equal(t, http.StatusNotFound, rec.Code)
	require.False(t, body.Success)
	require.NotNil(t, body.Error)
	assert.Equal(t, "NOT_FOUND", body.Error.Code)
}

func TestPollReturnsActiveSnapshot(t *testing.T) {
	poll := &types.Poll{
		ID:       42,
		Question: "2+2?",
		Options:  []string{"3", "4"},
		Timer:    30,
		Votes:    []int{0, 1},
	}
	router := newTestRouter(&fakeReader{poll: poll}, nil, 0)

	rec, body := do(t, router, http.MethodGet, "/api/poll")

	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, body.Success)

	data, ok := body.Data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "2+2?", data["question"])
	assert.Equal(t, float64(42), data["id"])
}

func TestHistoryServesConcludedPolls(t *testing.T) {
	reader := &fakeReader{history: []types.HistoryEntry{
		{Question: "first", Options: []string{"a", "b"}, Votes: []int{1, 0}},
	}}
	router := newTestRouter(reader, nil, 0)

	rec, body := do(t, router, http.MethodGet, "/api/history")

	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, body.Success)

	entries, ok := body.Data.([]any)
	require.True(t, ok)
	require.Len(t, entries, 1)
}

func TestStatsCombineConnectionsAndSession(t *testing.T) {
	reader := &fakeReader{stats: types.SessionStats{Participants: 5, PollActive: true}}
	router := newTestRouter(reader, nil, 7)

	rec, body := do(t, router, http.MethodGet, "/api/stats")

	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, body.Success)

	data, ok := body.Data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, float64(7), data["connections"])

	session, ok := data["session"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, float64(5), session["participants"])
	assert.Equal(t, true, session["pollActive"])
}

func TestUnknownRouteGetsEnvelope(t *testing.T) {
	router := newTestRouter(nil, nil, 0)

	rec, body := do(t, router, http.MethodGet, "/nope")

	require.Equal(t, http.StatusNotFound, rec.Code)
	require.False(t, body.Success)
	require.NotNil(t, body.Error)
	assert.Equal(t, "NOT_FOUND", body.Error.Code)
}

func TestMetricsEndpointExposed(t *testing.T) {
	router := newTestRouter(nil, nil, 0)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "# HELP")
}

func TestWsRouteDelegatesToGateway(t *testing.T) {
	gateway := &fakeUpgrader{}
	router := newTestRouter(nil, gateway, 0)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ws", nil)
	router.ServeHTTP(rec, req)

	assert.True(t, gateway.called)
	assert.Equal(t, http.StatusTeapot, rec.Code)
}
