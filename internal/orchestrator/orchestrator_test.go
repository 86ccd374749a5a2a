package orchestrator

import (
	"context"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"plannerd/internal/planning"
	"plannerd/internal/review"
)

func TestStartDialogue(t *testing.T) {
	client := scriptedPipelineClient()
	orch, sessions := newTestOrchestrator(client, nil)
	defer sessions.Stop()

	out, err := orch.StartDialogue(context.Background(), pipelineInput())
	require.NoError(t, err)

	assert.Equal(t, StatusDialogue, out.Status)
	require.NotNil(t, out.Dialogue)
	assert.Equal(t, "balanced week", out.Dialogue.Approach)
	assert.NotEmpty(t, out.SessionID)

	sess, err := sessions.Get(out.SessionID)
	require.NoError(t, err)
	assert.Equal(t, 1, sess.Dialogue.Iterations)
}

func TestStartDialogueValidatesInput(t *testing.T) {
	orch, sessions := newTestOrchestrator(scriptedPipelineClient(), nil)
	defer sessions.Stop()

	input := pipelineInput()
	input.AdminInstructions = "   "
	_, err := orch.StartDialogue(context.Background(), input)
	require.Error(t, err)

	input = pipelineInput()
	input.TeamMembers = nil
	_, err = orch.StartDialogue(context.Background(), input)
	require.Error(t, err)
}

func TestFullPipelineWithSkipPreferences(t *testing.T) {
	client := scriptedPipelineClient()
	plans := &fakePlanStore{}
	orch, sessions := newTestOrchestrator(client, plans)
	defer sessions.Stop()

	sessionID := orch.SetSkipPreferences("", autoSkipPrefs())

	out, err := orch.ExecuteApprovedPlan(context.Background(), sessionID, pipelineInput(), planning.Approval{Approved: true})
	require.NoError(t, err)

	assert.Equal(t, StatusComplete, out.Status)
	require.NotNil(t, out.Plan)
	assert.Equal(t, "Week of Aug 31: homework", out.Plan.Title)
	assert.Equal(t, 1, out.Plan.Metadata.Version)
	require.Len(t, plans.saved, 1)

	// Both checkpoints skipped, and the missing t2 assignment repaired.
	joined := strings.Join(out.Notes, "\n")
	assert.Contains(t, joined, "selection review skipped")
	assert.Contains(t, joined, "assignment review skipped")
	assert.Contains(t, joined, "t2 had no assignment")

	// One call per capability.
	assert.Equal(t, 1, client.callCount("execution"))
	assert.Equal(t, 1, client.callCount("selection"))
	assert.Equal(t, 1, client.callCount("assignment"))
	assert.Equal(t, 1, client.callCount("plan"))
	assert.Equal(t, 0, client.callCount("editing"), "empty guide must skip the editing phase")
}

func TestPipelinePausesWithoutPreferences(t *testing.T) {
	client := scriptedPipelineClient()
	orch, sessions := newTestOrchestrator(client, &fakePlanStore{})
	defer sessions.Stop()

	out, err := orch.ExecuteApprovedPlan(context.Background(), "", pipelineInput(), planning.Approval{Approved: true})
	require.NoError(t, err)

	assert.Equal(t, StatusPaused, out.Status)
	assert.Equal(t, planning.PhaseSelectionReview, out.Phase)
	assert.Contains(t, out.Reason, "no skip preferences")
	require.NotNil(t, out.SelectionReview)
	assert.Equal(t, 2, out.SelectionReview.Metrics.SelectedCount)
}

func TestPipelineResumesThroughBothReviews(t *testing.T) {
	client := scriptedPipelineClient()
	plans := &fakePlanStore{}
	orch, sessions := newTestOrchestrator(client, plans)
	defer sessions.Stop()

	ctx := context.Background()
	input := pipelineInput()
	approval := planning.Approval{Approved: true}

	// First run pauses at selection review.
	out, err := orch.ExecuteApprovedPlan(ctx, "", input, approval)
	require.NoError(t, err)
	require.Equal(t, planning.PhaseSelectionReview, out.Phase)
	sessionID := out.SessionID

	// Approve the selection as-is.
	rev, err := orch.ApplySelectionReview(ctx, sessionID, input, ReviewRequest{Approve: true})
	require.NoError(t, err)
	assert.Contains(t, rev.Reason, "approved")

	// Resume: pauses at assignment review.
	out, err = orch.ExecuteApprovedPlan(ctx, sessionID, input, approval)
	require.NoError(t, err)
	require.Equal(t, StatusPaused, out.Status)
	require.Equal(t, planning.PhaseAssignmentReview, out.Phase)
	require.NotNil(t, out.AssignmentReview)

	_, err = orch.ApplyAssignmentReview(ctx, sessionID, input, ReviewRequest{Approve: true})
	require.NoError(t, err)

	// Final resume completes.
	out, err = orch.ExecuteApprovedPlan(ctx, sessionID, input, approval)
	require.NoError(t, err)
	assert.Equal(t, StatusComplete, out.Status)
	require.NotNil(t, out.Plan)

	// Resumption must not re-run completed phases.
	assert.Equal(t, 1, client.callCount("execution"))
	assert.Equal(t, 1, client.callCount("selection"))
	assert.Equal(t, 1, client.callCount("assignment"))
}

func TestSelectionReviewAdjustmentsInvalidateDownstream(t *testing.T) {
	client := scriptedPipelineClient()
	orch, sessions := newTestOrchestrator(client, &fakePlanStore{})
	defer sessions.Stop()

	ctx := context.Background()
	input := pipelineInput()
	approval := planning.Approval{Approved: true}

	out, err := orch.ExecuteApprovedPlan(ctx, "", input, approval)
	require.NoError(t, err)
	sessionID := out.SessionID

	// Remove t2 manually and approve.
	rev, err := orch.ApplySelectionReview(ctx, sessionID, input, ReviewRequest{
		Approve:              true,
		SelectionAdjustments: &planning.SelectionAdjustments{RemovedIDs: []string{"t2"}},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, rev.SelectionReview.Metrics.SelectedCount)

	sess, err := sessions.Get(sessionID)
	require.NoError(t, err)
	require.NotNil(t, sess.Execution.Results.ReviewedSelection)
	if diff := cmp.Diff([]string{"t1"}, sess.Execution.Results.ReviewedSelection.SelectedIDs); diff != "" {
		t.Errorf("reviewed selection mismatch (-want +got):\n%s", diff)
	}
}

func TestSelectionReviewInterpretsCommand(t *testing.T) {
	client := scriptedPipelineClient()
	client.interpJSON = `{
		"action": "remove",
		"targets": ["t2"],
		"explanation": "drop the reading log",
		"selection": {"removedIds": ["t2"]}
	}`
	orch, sessions := newTestOrchestrator(client, &fakePlanStore{})
	defer sessions.Stop()

	ctx := context.Background()
	input := pipelineInput()

	out, err := orch.ExecuteApprovedPlan(ctx, "", input, planning.Approval{Approved: true})
	require.NoError(t, err)

	rev, err := orch.ApplySelectionReview(ctx, out.SessionID, input, ReviewRequest{Command: "remove the reading log"})
	require.NoError(t, err)

	assert.Equal(t, StatusPaused, rev.Status, "without approval the gate stays open")
	assert.False(t, rev.SelectionReview.Result.Selected("t2"))
	assert.Equal(t, 1, client.callCount("interpretSelection"))
}

func TestReviewRestoresSessionFromSnapshot(t *testing.T) {
	snaps := &fakeSnapshotStore{}
	orch1, sessions1 := newTestOrchestratorWithSnapshots(scriptedPipelineClient(), &fakePlanStore{}, snaps)
	defer sessions1.Stop()

	ctx := context.Background()
	input := pipelineInput()

	out, err := orch1.ExecuteApprovedPlan(ctx, "", input, planning.Approval{Approved: true})
	require.NoError(t, err)
	require.Equal(t, planning.PhaseSelectionReview, out.Phase)

	// A second process with an empty in-memory store picks the paused
	// attempt up from the durable snapshot.
	client2 := scriptedPipelineClient()
	orch2, sessions2 := newTestOrchestratorWithSnapshots(client2, &fakePlanStore{}, snaps)
	defer sessions2.Stop()

	rev, err := orch2.ApplySelectionReview(ctx, out.SessionID, input, ReviewRequest{Approve: true})
	require.NoError(t, err)
	assert.Contains(t, rev.Reason, "approved")

	resumed, err := orch2.ExecuteApprovedPlan(ctx, out.SessionID, input, planning.Approval{Approved: true})
	require.NoError(t, err)
	assert.Equal(t, planning.PhaseAssignmentReview, resumed.Phase)

	// The restored trace keeps completed phases completed.
	assert.Equal(t, 0, client2.callCount("execution"))
	assert.Equal(t, 0, client2.callCount("selection"))
	assert.Equal(t, 1, client2.callCount("assignment"))
}

func TestReviewSynthesizesSessionFromCarriedData(t *testing.T) {
	client := scriptedPipelineClient()
	orch, sessions := newTestOrchestrator(client, &fakePlanStore{})
	defer sessions.Stop()

	ctx := context.Background()
	input := pipelineInput()
	data := review.SelectionReviewData{
		Result: planning.SelectionResult{
			SelectedIDs: []string{"t1", "t2"},
			Scores: []planning.ScoredItem{
				{ItemID: "t1", Score: 95, SuggestedAssignee: "alice"},
				{ItemID: "t2", Score: 85, SuggestedAssignee: "bob"},
			},
		},
	}

	rev, err := orch.ApplySelectionReview(ctx, "session-from-dead-instance", input, ReviewRequest{
		Approve:       true,
		SelectionData: &data,
	})
	require.NoError(t, err, "carried review data must let the review proceed without prior state")
	assert.Equal(t, "session-from-dead-instance", rev.SessionID)
	assert.Equal(t, 2, rev.SelectionReview.Metrics.SelectedCount)

	// Resumption honors the carried selection instead of re-running it.
	out, err := orch.ExecuteApprovedPlan(ctx, "session-from-dead-instance", input, planning.Approval{Approved: true})
	require.NoError(t, err)
	assert.Equal(t, planning.PhaseAssignmentReview, out.Phase)
	assert.Equal(t, 0, client.callCount("selection"))
	assert.Equal(t, 1, client.callCount("execution"))
}

func TestReviewWithNothingToReviewErrs(t *testing.T) {
	orch, sessions := newTestOrchestrator(scriptedPipelineClient(), nil)
	defer sessions.Stop()

	_, err := orch.ApplySelectionReview(context.Background(), "session-missing", pipelineInput(), ReviewRequest{Approve: true})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no selection awaiting review")
}

func TestAutoContinueApprovesShownCheckpoints(t *testing.T) {
	client := scriptedPipelineClient()
	plans := &fakePlanStore{}
	orch, sessions := newTestOrchestrator(client, plans)
	defer sessions.Stop()

	// Skips disabled, so both checkpoints would pause; auto-continue
	// approves them unattended instead.
	sessionID := orch.SetSkipPreferences("", planning.SkipPreferences{AutoContinue: true})

	out, err := orch.ExecuteApprovedPlan(context.Background(), sessionID, pipelineInput(), planning.Approval{Approved: true})
	require.NoError(t, err)

	assert.Equal(t, StatusComplete, out.Status)
	require.Len(t, plans.saved, 1)
	joined := strings.Join(out.Notes, "\n")
	assert.Contains(t, joined, "selection review auto-continued")
	assert.Contains(t, joined, "assignment review auto-continued")
}

func TestExecuteRequiresApproval(t *testing.T) {
	orch, sessions := newTestOrchestrator(scriptedPipelineClient(), nil)
	defer sessions.Stop()

	_, err := orch.ExecuteApprovedPlan(context.Background(), "", pipelineInput(), planning.Approval{Approved: false})
	require.Error(t, err)
}

func TestEditingPhaseRunsWhenGuideHasWork(t *testing.T) {
	client := scriptedPipelineClient()
	client.executionJSON = `{
		"priorities": [{"type": "focus", "target": "homework", "weight": 0.9}],
		"editingGuide": {
			"newItems": [{"tempId": "new-1", "description": "buy calculator", "importance": 3}]
		},
		"selectionCriteria": {}
	}`
	client.editingJSON = `{
		"created": [{"tempId": "new-1", "item": {"description": "buy calculator", "importance": 3}}]
	}`
	orch, sessions := newTestOrchestrator(client, &fakePlanStore{})
	defer sessions.Stop()

	sessionID := orch.SetSkipPreferences("", autoSkipPrefs())
	out, err := orch.ExecuteApprovedPlan(context.Background(), sessionID, pipelineInput(), planning.Approval{Approved: true})
	require.NoError(t, err)

	assert.Equal(t, 1, client.callCount("editing"))
	assert.Equal(t, StatusComplete, out.Status)

	sess, err := sessions.Get(sessionID)
	require.NoError(t, err)
	require.NotNil(t, sess.Execution.Results.Editing)
	require.Len(t, sess.Execution.Results.Editing.Created, 1)
	assert.Equal(t, "team-1", sess.Execution.Results.Editing.Created[0].Item.TeamID)
}
