package orchestrator

import (
	"context"
	"fmt"

	"plannerd/internal/logging"
	"plannerd/internal/planning"
	"plannerd/internal/review"
)

// ReviewRequest carries one review interaction. Adjustments are
// applied first (manual deltas, then the free-text command interpreted
// by the organizing capability); Approve releases the gate so the next
// ExecuteApprovedPlan call resumes past it.
//
// SelectionData/AssignmentData echo the review data the pausing
// execute call returned. They are optional with a live session and
// required only when the instance holding that session is gone: the
// orchestrator then rebuilds the checkpoint state from them instead of
// failing the review.
type ReviewRequest struct {
	Approve               bool                            `json:"approve"`
	SelectionAdjustments  *planning.SelectionAdjustments  `json:"selectionAdjustments,omitempty"`
	AssignmentAdjustments *planning.AssignmentAdjustments `json:"assignmentAdjustments,omitempty"`
	Command               string                          `json:"command,omitempty"`
	SelectionData         *review.SelectionReviewData     `json:"selectionData,omitempty"`
	AssignmentData        *review.AssignmentReviewData    `json:"assignmentData,omitempty"`
}

// ApplySelectionReview handles the selection checkpoint: apply any
// adjustments, regenerate the projection, and on approval mark the
// gate passed.
func (o *Orchestrator) ApplySelectionReview(ctx context.Context, sessionID string, input planning.PlanningInput, req ReviewRequest) (*Output, error) {
	sess := o.loadSession(sessionID, input.UserID, input.TeamID)
	exec := sess.EnsureExecution()
	if effectiveSelection(exec) == nil && req.SelectionData != nil {
		seedSelection(exec, *req.SelectionData)
	}
	if effectiveSelection(exec) == nil {
		return nil, fmt.Errorf("session %s has no selection awaiting review", sessionID)
	}
	defer o.persist(sess)

	pool := workingInventory(input, exec.Results.Editing)
	capacity := planning.TeamCapacity(input.TeamMembers)
	current := *effectiveSelection(exec)

	if req.Command != "" {
		data := review.BuildSelectionReview(current, pool, input.TeamMembers, capacity)
		interp, err := o.organizing.InterpretSelectionAdjustment(ctx, req.Command, data)
		if err != nil {
			return nil, err
		}
		current = review.ApplySelectionAdjustments(current, *interp.Selection, pool)
		current.Warnings = append(current.Warnings, interp.Warnings...)
		logging.Review("selection command interpreted for session %s: %s", sessionID, interp.Action)
	}
	if req.SelectionAdjustments != nil {
		current = review.ApplySelectionAdjustments(current, *req.SelectionAdjustments, pool)
	}
	exec.Results.ReviewedSelection = &current

	// Changing the selection invalidates everything downstream.
	if req.Command != "" || req.SelectionAdjustments != nil {
		invalidateFrom(exec, planning.PhaseAssignment)
	}

	data := review.BuildSelectionReview(current, pool, input.TeamMembers, capacity)
	out := &Output{
		SessionID:       sess.ID,
		Phase:           planning.PhaseSelectionReview,
		SelectionReview: &data,
	}

	if req.Approve {
		exec.MarkCompleted(planning.PhaseSelectionReview)
		exec.CurrentPhase = planning.PhaseAssignment
		out.Status = StatusPaused
		out.Reason = "selection approved; call execute to resume"
		logging.Review("selection review approved for session %s (%d selected)", sessionID, len(current.SelectedIDs))
	} else {
		out.Status = StatusPaused
		out.Reason = "selection review still open"
	}
	return out, nil
}

// ApplyAssignmentReview handles the assignment checkpoint.
func (o *Orchestrator) ApplyAssignmentReview(ctx context.Context, sessionID string, input planning.PlanningInput, req ReviewRequest) (*Output, error) {
	sess := o.loadSession(sessionID, input.UserID, input.TeamID)
	exec := sess.EnsureExecution()
	if effectiveAssignments(exec) == nil && req.AssignmentData != nil {
		seedAssignments(exec, *req.AssignmentData)
	}
	if effectiveAssignments(exec) == nil {
		return nil, fmt.Errorf("session %s has no assignments awaiting review", sessionID)
	}
	defer o.persist(sess)

	pool := workingInventory(input, exec.Results.Editing)
	current := *effectiveAssignments(exec)

	if req.Command != "" {
		data := review.BuildAssignmentReview(current, pool, input.TeamMembers)
		interp, err := o.organizing.InterpretAssignmentAdjustment(ctx, req.Command, data)
		if err != nil {
			return nil, err
		}
		current = review.ApplyAssignmentAdjustments(current, *interp.Assignment, input.TeamMembers)
		current.Warnings = append(current.Warnings, interp.Warnings...)
		logging.Review("assignment command interpreted for session %s: %s", sessionID, interp.Action)
	}
	if req.AssignmentAdjustments != nil {
		current = review.ApplyAssignmentAdjustments(current, *req.AssignmentAdjustments, input.TeamMembers)
	}
	exec.Results.ReviewedAssignments = &current

	if req.Command != "" || req.AssignmentAdjustments != nil {
		invalidateFrom(exec, planning.PhasePlanGeneration)
	}

	data := review.BuildAssignmentReview(current, pool, input.TeamMembers)
	out := &Output{
		SessionID:        sess.ID,
		Phase:            planning.PhaseAssignmentReview,
		AssignmentReview: &data,
	}

	if req.Approve {
		exec.MarkCompleted(planning.PhaseAssignmentReview)
		exec.CurrentPhase = planning.PhasePlanGeneration
		out.Status = StatusPaused
		out.Reason = "assignments approved; call execute to resume"
		logging.Review("assignment review approved for session %s (%d assignments)", sessionID, len(current.Assignments))
	} else {
		out.Status = StatusPaused
		out.Reason = "assignment review still open"
	}
	return out, nil
}

// seedSelection rebuilds a synthesized session's checkpoint state from
// the review data echoed back by the caller. Selection is marked
// complete so resumption does not re-run it under the reviewer's feet.
func seedSelection(exec *planning.ExecutionState, data review.SelectionReviewData) {
	res := data.Result
	exec.Results.Selection = &res
	exec.MarkCompleted(planning.PhaseSelection)
	exec.CurrentPhase = planning.PhaseSelectionReview
}

// seedAssignments does the same for the assignment checkpoint. When no
// selection survives either, one is derived from the assignments so
// plan generation sees a consistent pair.
func seedAssignments(exec *planning.ExecutionState, data review.AssignmentReviewData) {
	res := data.Result
	if effectiveSelection(exec) == nil {
		ids := make([]string, 0, len(res.Assignments))
		for _, a := range res.Assignments {
			ids = append(ids, a.TaskID)
		}
		exec.Results.Selection = &planning.SelectionResult{SelectedIDs: ids}
		exec.MarkCompleted(planning.PhaseSelection)
		exec.MarkCompleted(planning.PhaseSelectionReview)
	}
	exec.Results.Assignment = &res
	exec.MarkCompleted(planning.PhaseAssignment)
	exec.CurrentPhase = planning.PhaseAssignmentReview
}

// invalidateFrom removes the named phase and everything after it from
// the completion trace so a resumed execution re-runs them against the
// reviewed inputs.
func invalidateFrom(exec *planning.ExecutionState, phase planning.PhaseName) {
	order := []planning.PhaseName{
		planning.PhaseOrganizing,
		planning.PhaseEditing,
		planning.PhaseSelection,
		planning.PhaseSelectionReview,
		planning.PhaseAssignment,
		planning.PhaseAssignmentReview,
		planning.PhasePlanGeneration,
	}
	drop := false
	var kept []planning.PhaseName
	for _, p := range order {
		if p == phase {
			drop = true
		}
		if drop || !exec.Completed(p) {
			continue
		}
		kept = append(kept, p)
	}
	exec.CompletedPhases = kept

	switch phase {
	case planning.PhaseAssignment:
		exec.Results.Assignment = nil
		exec.Results.ReviewedAssignments = nil
		exec.Results.FinalPlan = nil
	case planning.PhasePlanGeneration:
		exec.Results.FinalPlan = nil
	}
}
