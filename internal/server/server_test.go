package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"plannerd/internal/agents"
	"plannerd/internal/config"
	"plannerd/internal/orchestrator"
	"plannerd/internal/planning"
	"plannerd/internal/store"
)

// stubClient answers every reasoning call with a fixed dialogue JSON.
type stubClient struct{}

func (stubClient) Complete(ctx context.Context, prompt string) (string, error) {
	return `{"approach": "balanced week", "priorities": ["homework"]}`, nil
}

func (stubClient) CompleteWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	return `{"approach": "balanced week", "priorities": ["homework"]}`, nil
}

func testServer(t *testing.T) (*Server, *planning.SessionStore, *store.Store) {
	t.Helper()

	st, err := store.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	timeouts := config.ReasoningTimeouts{
		PerCallTimeout:        time.Second,
		PlanGenerationTimeout: time.Second,
		RetryBackoffBase:      time.Millisecond,
		MaxRetries:            1,
	}
	sessions := planning.NewSessionStore(time.Hour)
	t.Cleanup(sessions.Stop)

	client := stubClient{}
	orch := orchestrator.New(orchestrator.Config{
		Sessions:   sessions,
		Organizing: agents.NewOrganizingAgent(client, timeouts),
		Selection:  agents.NewSelectionAgent(client, timeouts),
		Editing:    agents.NewEditingAgent(client, timeouts),
		Plans:      st,
		Snapshots:  st,
	})

	return New(config.ServerConfig{Addr: ":0"}, orch, st, zap.NewNop()), sessions, st
}

func doRequest(t *testing.T, srv *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	srv.httpServer.Handler.ServeHTTP(rec, req)
	return rec
}

func TestDialogueValidation(t *testing.T) {
	srv, _, _ := testServer(t)

	// Empty instructions.
	rec := doRequest(t, srv, http.MethodPost, "/api/planning/dialogue",
		`{"input": {"adminInstructions": "  ", "teamMembers": [{"id": "a", "name": "Alice"}]}}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// No team members.
	rec = doRequest(t, srv, http.MethodPost, "/api/planning/dialogue",
		`{"input": {"adminInstructions": "plan the week"}}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Malformed body.
	rec = doRequest(t, srv, http.MethodPost, "/api/planning/dialogue", `{"bogus": true}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDialogueHappyPath(t *testing.T) {
	srv, _, _ := testServer(t)

	rec := doRequest(t, srv, http.MethodPost, "/api/planning/dialogue",
		`{"input": {
			"adminInstructions": "Focus on homework this week",
			"teamMembers": [{"id": "a", "name": "Alice"}]
		}}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var out orchestrator.Output
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, orchestrator.StatusDialogue, out.Status)
	assert.NotEmpty(t, out.SessionID)
	require.NotNil(t, out.Dialogue)
	assert.Equal(t, "balanced week", out.Dialogue.Approach)
}

func TestExecuteRequiresApprovalFlag(t *testing.T) {
	srv, _, _ := testServer(t)

	rec := doRequest(t, srv, http.MethodPost, "/api/planning/execute",
		`{"input": {
			"adminInstructions": "plan",
			"teamMembers": [{"id": "a", "name": "Alice"}]
		}, "approval": {"approved": false}}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestReviewRequiresSessionID(t *testing.T) {
	srv, _, _ := testServer(t)

	rec := doRequest(t, srv, http.MethodPost, "/api/planning/review/selection",
		`{"input": {}, "review": {"approve": true}}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Unknown session, no snapshot, and no review data in the request:
	// there is nothing to review.
	rec = doRequest(t, srv, http.MethodPost, "/api/planning/review/selection",
		`{"sessionId": "session-unknown", "input": {}, "review": {"approve": true}}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestReviewAcceptsCarriedDataForUnknownSession(t *testing.T) {
	srv, _, _ := testServer(t)

	rec := doRequest(t, srv, http.MethodPost, "/api/planning/review/selection",
		`{"sessionId": "session-from-dead-instance", "input": {
			"adminInstructions": "plan the week",
			"teamMembers": [{"id": "a", "name": "Alice"}],
			"backlogs": [{"id": "t1", "description": "math homework"}]
		}, "review": {
			"approve": true,
			"selectionData": {"result": {"selectedIds": ["t1"]}, "metrics": {"selectedCount": 1, "totalCapacity": 15, "capacityUtilizationPct": 6.7, "workloadCv": 0}}
		}}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var out orchestrator.Output
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, "session-from-dead-instance", out.SessionID)
	require.NotNil(t, out.SelectionReview)
	assert.Equal(t, 1, out.SelectionReview.Metrics.SelectedCount)
}

func TestGetPlan(t *testing.T) {
	srv, _, st := testServer(t)

	week := time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC)
	sched := make(planning.MemberSchedule, len(planning.AllBuckets))
	for _, b := range planning.AllBuckets {
		sched[b] = []planning.ScheduledItem{}
	}
	doc := &planning.WeeklyPlanDocument{
		Title:       "Week of Aug 31",
		Assignments: map[string]planning.MemberSchedule{"a": sched},
		Metadata:    planning.PlanMetadata{Version: 1},
	}
	require.NoError(t, st.SavePlan("team-1", week, doc))

	rec := doRequest(t, srv, http.MethodGet, "/api/planning/plan?teamId=team-1&weekStart=2026-08-31", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var got planning.WeeklyPlanDocument
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "Week of Aug 31", got.Title)

	rec = doRequest(t, srv, http.MethodGet, "/api/planning/plan?teamId=team-1&weekStart=2026-09-07", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doRequest(t, srv, http.MethodGet, "/api/planning/plan?teamId=team-1", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPreferencesDefaultsWhenUnset(t *testing.T) {
	srv, _, _ := testServer(t)

	rec := doRequest(t, srv, http.MethodGet, "/api/planning/preferences?userId=admin", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var prefs planning.SkipPreferences
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &prefs))
	assert.False(t, prefs.Selection.Enabled, "defaults keep every checkpoint visible")
	assert.Equal(t, 20, prefs.Selection.MaxTasks)
}

func TestPreferencesPutAndGet(t *testing.T) {
	srv, sessions, _ := testServer(t)

	rec := doRequest(t, srv, http.MethodPut, "/api/planning/preferences",
		`{"userId": "admin", "sessionId": "session-live", "preferences": {
			"selection": {"enabled": true, "maxTasks": 10, "minUtilizationPct": 50},
			"assignment": {"enabled": true, "maxWorkloadCv": 0.3}
		}}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = doRequest(t, srv, http.MethodGet, "/api/planning/preferences?userId=admin", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var prefs planning.SkipPreferences
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &prefs))
	assert.True(t, prefs.Selection.Enabled)
	assert.Equal(t, 10, prefs.Selection.MaxTasks)

	// The named session picked up the policy.
	sess, err := sessions.Get("session-live")
	require.NoError(t, err)
	require.NotNil(t, sess.SkipPrefs)
	assert.True(t, sess.SkipPrefs.Assignment.Enabled)
}

func TestHealthEndpoint(t *testing.T) {
	srv, _, _ := testServer(t)
	rec := doRequest(t, srv, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMissingUserIDOnPreferences(t *testing.T) {
	srv, _, _ := testServer(t)
	rec := doRequest(t, srv, http.MethodGet, "/api/planning/preferences", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
