package orchestrator

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"plannerd/internal/planning"
)

func TestReconcileAssignmentsCoverage(t *testing.T) {
	sel := &planning.SelectionResult{
		SelectedIDs: []string{"t1", "t2", "t3"},
		Scores: []planning.ScoredItem{
			{ItemID: "t3", SuggestedAssignee: "bob"},
		},
	}
	res := &planning.AssignmentResult{Assignments: []planning.Assignment{
		{TaskID: "t1", AssigneeID: "alice", Day: planning.Monday},
		{TaskID: "t1", AssigneeID: "bob", Day: planning.Tuesday},  // duplicate
		{TaskID: "t9", AssigneeID: "alice", Day: planning.Friday}, // unselected
		{TaskID: "t2", AssigneeID: "ghost", Day: planning.Wednesday},
	}}

	notes := reconcileAssignments(res, sel, pipelineMembers())

	byTask := make(map[string]planning.Assignment)
	for _, a := range res.Assignments {
		require.False(t, byTask[a.TaskID].TaskID == a.TaskID, "task %s assigned twice", a.TaskID)
		byTask[a.TaskID] = a
	}

	require.Len(t, res.Assignments, 3, "exactly one assignment per selected task")
	assert.Equal(t, "alice", byTask["t1"].AssigneeID, "duplicates keep the first occurrence")
	assert.NotEqual(t, "ghost", byTask["t2"].AssigneeID, "unknown assignee must be replaced")
	assert.Equal(t, "bob", byTask["t3"].AssigneeID, "missing task goes to the suggested assignee")
	assert.Equal(t, planning.Anytime, byTask["t3"].Day)

	joined := strings.Join(notes, "\n")
	assert.Contains(t, joined, "duplicate")
	assert.Contains(t, joined, "unselected")
	assert.Contains(t, joined, "unknown member")
}

func TestReconcileAssignmentsFallsBackToLeastLoaded(t *testing.T) {
	sel := &planning.SelectionResult{SelectedIDs: []string{"t1", "t2", "t3"}}
	res := &planning.AssignmentResult{Assignments: []planning.Assignment{
		{TaskID: "t1", AssigneeID: "alice", Day: planning.Monday},
		{TaskID: "t2", AssigneeID: "alice", Day: planning.Tuesday},
	}}

	reconcileAssignments(res, sel, pipelineMembers())

	require.Len(t, res.Assignments, 3)
	assert.Equal(t, "bob", res.Assignments[2].AssigneeID, "fallback picks the least loaded member")
}

func TestDeriveTitleFromFocusPriority(t *testing.T) {
	input := pipelineInput()
	priorities := []planning.PriorityIndicator{
		{Type: planning.PriorityAvoid, Target: "screens", Weight: 0.9},
		{Type: planning.PriorityFocus, Target: "homework", Weight: 0.7},
		{Type: planning.PriorityFocus, Target: "chores", Weight: 0.3},
	}
	got := deriveTitle(input, priorities)
	assert.Equal(t, "Week of Aug 31: homework", got, "heaviest focus wins; avoid is never a title")
}

func TestDeriveTitleFallsBackToInstructions(t *testing.T) {
	input := pipelineInput()
	got := deriveTitle(input, nil)
	assert.Equal(t, "Week of Aug 31: Focus on homework this week", got)

	input.AdminInstructions = strings.Repeat("very long instructions ", 10)
	got = deriveTitle(input, nil)
	assert.LessOrEqual(t, len(got), len("Week of Aug 31: ")+60)
	assert.True(t, strings.HasSuffix(got, "..."))

	input.AdminInstructions = ""
	assert.Equal(t, "Week of Aug 31", deriveTitle(input, nil))
}

func TestWorkingInventoryAppliesEditing(t *testing.T) {
	input := pipelineInput()
	editing := &planning.EditingResult{
		Created: []planning.CreatedElement{
			{TempID: "new-1", Item: planning.WorkItem{ID: "item-abc", Description: "buy calculator"}},
		},
		Deleted: []planning.AppliedDeletion{
			{ItemID: "t3", Found: true, Deleted: true},
			{ItemID: "ghost", Found: false, Deleted: false},
		},
	}

	items := workingInventory(input, editing)

	ids := make([]string, 0, len(items))
	for _, it := range items {
		ids = append(ids, it.ID)
	}
	assert.ElementsMatch(t, []string{"t1", "t2", "item-abc"}, ids)
}

func TestWorkingInventoryWithoutEditing(t *testing.T) {
	input := pipelineInput()
	input.RecurringDue = []planning.WorkItem{{ID: "r1", Description: "water plants"}}
	items := workingInventory(input, nil)
	assert.Len(t, items, 4, "backlog plus recurring items")
}
