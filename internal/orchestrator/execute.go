package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"plannerd/internal/agents"
	"plannerd/internal/logging"
	"plannerd/internal/planning"
	"plannerd/internal/review"
)

// ExecuteApprovedPlan runs the pipeline from wherever the session's
// phase trace left off. Already-completed phases are never re-run; a
// pending review checkpoint pauses execution with the projection the
// admin needs. Calling again after the review resumes past the gate.
func (o *Orchestrator) ExecuteApprovedPlan(ctx context.Context, sessionID string, input planning.PlanningInput, approval planning.Approval) (*Output, error) {
	if !approval.Approved {
		return nil, fmt.Errorf("plan execution requires an approved proposal")
	}
	if len(input.TeamMembers) == 0 {
		return nil, fmt.Errorf("at least one team member is required")
	}

	sess := o.loadSession(sessionID, input.UserID, input.TeamID)
	sess.Dialogue.Phase = planning.DialogueApproved
	exec := sess.EnsureExecution()
	out := &Output{SessionID: sess.ID}

	defer o.persist(sess)

	// Organizing: categorize the approved intent.
	if !exec.Completed(planning.PhaseOrganizing) {
		exec.CurrentPhase = planning.PhaseOrganizing
		result, err := o.organizing.Execution(ctx, input, approval)
		if err != nil {
			return nil, err
		}
		exec.Results.Execution = result
		exec.MarkCompleted(planning.PhaseOrganizing)
	}
	execution := exec.Results.Execution

	// Editing runs only when the guide carries work.
	if !execution.EditingGuide.Empty() && !exec.Completed(planning.PhaseEditing) {
		exec.CurrentPhase = planning.PhaseEditing
		inventory := baseInventory(input)
		result, err := o.editing.ApplyEditingGuide(ctx, execution.EditingGuide, inventory, input.TeamID)
		if err != nil {
			return nil, err
		}
		exec.Results.Editing = result
		exec.MarkCompleted(planning.PhaseEditing)
	}

	// The candidate pool reflects editing output on every call, so a
	// resumed process sees the same inventory the first one did.
	pool := workingInventory(input, exec.Results.Editing)
	capacity := planning.TeamCapacity(input.TeamMembers)

	// Selection.
	if !exec.Completed(planning.PhaseSelection) {
		exec.CurrentPhase = planning.PhaseSelection
		result, err := o.selection.SelectTasks(ctx, agents.SelectionInput{
			Pool:       pool,
			Criteria:   execution.SelectionCriteria,
			Priorities: execution.Priorities,
			Notes:      execution.SelectionNotes,
			Capacity:   capacity,
			Input:      input,
		})
		if err != nil {
			return nil, err
		}
		if w := agents.CheckUtilization(len(result.SelectedIDs), planning.TotalCapacity(capacity)); w != "" {
			result.Warnings = append(result.Warnings, w)
		}
		exec.Results.Selection = result
		exec.MarkCompleted(planning.PhaseSelection)
	}

	// Selection review gate.
	if !exec.Completed(planning.PhaseSelectionReview) {
		sel := effectiveSelection(exec)
		data := review.BuildSelectionReview(*sel, pool, input.TeamMembers, capacity)

		if exec.CurrentPhase == planning.PhaseSelectionReview {
			// Already paused here; the admin has not approved yet.
			out.Status = StatusPaused
			out.Phase = planning.PhaseSelectionReview
			out.Reason = "selection review pending approval"
			out.SelectionReview = &data
			return out, nil
		}

		exec.SelectionReviewRuns++
		decision := review.ShouldSkipCheckpoint(review.CheckpointSelection, data.Metrics, data.Warnings, sess.SkipPrefs, exec.SelectionReviewRuns)
		switch {
		case decision.Skip:
			exec.MarkCompleted(planning.PhaseSelectionReview)
			out.Notes = append(out.Notes, "selection review skipped: "+decision.Reason)
			logging.Review("selection checkpoint skipped for session %s: %s", sess.ID, decision.Reason)
		case sess.SkipPrefs != nil && sess.SkipPrefs.AutoContinue:
			if err := waitAutoContinue(ctx, sess.SkipPrefs.AutoContinueDelay); err != nil {
				return nil, err
			}
			exec.MarkCompleted(planning.PhaseSelectionReview)
			out.Notes = append(out.Notes, "selection review auto-continued: "+decision.Reason)
			logging.Review("selection checkpoint auto-continued for session %s: %s", sess.ID, decision.Reason)
		default:
			exec.CurrentPhase = planning.PhaseSelectionReview
			out.Status = StatusPaused
			out.Phase = planning.PhaseSelectionReview
			out.Reason = decision.Reason
			out.SelectionReview = &data
			logging.Review("selection checkpoint shown for session %s: %s", sess.ID, decision.Reason)
			return out, nil
		}
	}

	sel := effectiveSelection(exec)

	// Assignment.
	if !exec.Completed(planning.PhaseAssignment) {
		exec.CurrentPhase = planning.PhaseAssignment
		items := itemsByIDs(pool, sel.SelectedIDs)
		result, err := o.organizing.AssignTasks(ctx, sel.SelectedIDs, items, input.TeamMembers, input)
		if err != nil {
			return nil, err
		}
		repairs := reconcileAssignments(result, sel, input.TeamMembers)
		out.Notes = append(out.Notes, repairs...)
		exec.Results.Assignment = result
		exec.MarkCompleted(planning.PhaseAssignment)
	}

	// Assignment review gate.
	if !exec.Completed(planning.PhaseAssignmentReview) {
		asg := effectiveAssignments(exec)
		data := review.BuildAssignmentReview(*asg, pool, input.TeamMembers)

		if exec.CurrentPhase == planning.PhaseAssignmentReview {
			out.Status = StatusPaused
			out.Phase = planning.PhaseAssignmentReview
			out.Reason = "assignment review pending approval"
			out.AssignmentReview = &data
			return out, nil
		}

		exec.AssignmentReviewRuns++
		decision := review.ShouldSkipCheckpoint(review.CheckpointAssignment, data.Metrics, data.Warnings, sess.SkipPrefs, exec.AssignmentReviewRuns)
		switch {
		case decision.Skip:
			exec.MarkCompleted(planning.PhaseAssignmentReview)
			out.Notes = append(out.Notes, "assignment review skipped: "+decision.Reason)
			logging.Review("assignment checkpoint skipped for session %s: %s", sess.ID, decision.Reason)
		case sess.SkipPrefs != nil && sess.SkipPrefs.AutoContinue:
			if err := waitAutoContinue(ctx, sess.SkipPrefs.AutoContinueDelay); err != nil {
				return nil, err
			}
			exec.MarkCompleted(planning.PhaseAssignmentReview)
			out.Notes = append(out.Notes, "assignment review auto-continued: "+decision.Reason)
			logging.Review("assignment checkpoint auto-continued for session %s: %s", sess.ID, decision.Reason)
		default:
			exec.CurrentPhase = planning.PhaseAssignmentReview
			out.Status = StatusPaused
			out.Phase = planning.PhaseAssignmentReview
			out.Reason = decision.Reason
			out.AssignmentReview = &data
			logging.Review("assignment checkpoint shown for session %s: %s", sess.ID, decision.Reason)
			return out, nil
		}
	}

	// Plan generation.
	if !exec.Completed(planning.PhasePlanGeneration) {
		exec.CurrentPhase = planning.PhasePlanGeneration
		asg := effectiveAssignments(exec)

		version := 1
		if o.plans != nil {
			v, err := o.plans.NextVersion(input.TeamID, input.WeekStart)
			if err != nil {
				return nil, fmt.Errorf("allocating plan version: %w", err)
			}
			version = v
		}

		doc, err := o.editing.GeneratePlan(ctx, agents.GeneratePlanInput{
			Title:            deriveTitle(input, execution.Priorities),
			PriorityGuidance: priorityGuidance(execution.Priorities),
			Selected:         itemsByIDs(pool, sel.SelectedIDs),
			Assignments:      asg.Assignments,
			Members:          input.TeamMembers,
			WeekStart:        input.WeekStart,
			Version:          version,
		})
		if err != nil {
			return nil, err
		}
		if o.plans != nil {
			if err := o.plans.SavePlan(input.TeamID, input.WeekStart, doc); err != nil {
				return nil, fmt.Errorf("persisting plan: %w", err)
			}
		}
		exec.Results.FinalPlan = doc
		exec.MarkCompleted(planning.PhasePlanGeneration)
		logging.Orchestrator("plan generated for session %s: %q v%d", sess.ID, doc.Title, doc.Metadata.Version)
	}

	out.Status = StatusComplete
	out.Phase = planning.PhasePlanGeneration
	out.Plan = exec.Results.FinalPlan
	return out, nil
}

// waitAutoContinue holds a shown checkpoint open for the configured
// number of seconds before approving it unattended.
func waitAutoContinue(ctx context.Context, delaySeconds int) error {
	if delaySeconds <= 0 {
		return nil
	}
	timer := time.NewTimer(time.Duration(delaySeconds) * time.Second)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// effectiveSelection prefers the reviewed result over the raw one.
func effectiveSelection(exec *planning.ExecutionState) *planning.SelectionResult {
	if exec.Results.ReviewedSelection != nil {
		return exec.Results.ReviewedSelection
	}
	return exec.Results.Selection
}

// effectiveAssignments prefers the reviewed result over the raw one.
func effectiveAssignments(exec *planning.ExecutionState) *planning.AssignmentResult {
	if exec.Results.ReviewedAssignments != nil {
		return exec.Results.ReviewedAssignments
	}
	return exec.Results.Assignment
}

func baseInventory(input planning.PlanningInput) []planning.WorkItem {
	items := make([]planning.WorkItem, 0, len(input.Backlog)+len(input.RecurringDue))
	items = append(items, input.Backlog...)
	items = append(items, input.RecurringDue...)
	return items
}

// workingInventory folds the editing phase's creations and deletions
// into the base inventory. Deterministic for a given (input, editing)
// pair, which is what makes resumption safe.
func workingInventory(input planning.PlanningInput, editing *planning.EditingResult) []planning.WorkItem {
	items := baseInventory(input)
	if editing == nil {
		return items
	}

	deleted := make(map[string]bool, len(editing.Deleted))
	for _, d := range editing.Deleted {
		if d.Found && d.Deleted {
			deleted[d.ItemID] = true
		}
	}
	kept := items[:0]
	for _, it := range items {
		if !deleted[it.ID] {
			kept = append(kept, it)
		}
	}
	for _, c := range editing.Created {
		kept = append(kept, c.Item)
	}
	return kept
}

func itemsByIDs(pool []planning.WorkItem, ids []string) []planning.WorkItem {
	byID := make(map[string]planning.WorkItem, len(pool))
	for _, it := range pool {
		byID[it.ID] = it
	}
	items := make([]planning.WorkItem, 0, len(ids))
	for _, id := range ids {
		if it, ok := byID[id]; ok {
			items = append(items, it)
		}
	}
	return items
}

// reconcileAssignments enforces the coverage invariant in place:
// every selected task appears exactly once with a known assignee.
// Duplicates keep the first occurrence, strays are dropped, unknown
// assignees are replaced, and missing tasks get a fallback slot in
// anytime_this_week. Returns audit notes for each repair.
func reconcileAssignments(res *planning.AssignmentResult, sel *planning.SelectionResult, members []planning.TeamMember) []string {
	var notes []string

	selected := make(map[string]bool, len(sel.SelectedIDs))
	for _, id := range sel.SelectedIDs {
		selected[id] = true
	}
	known := make(map[string]bool, len(members))
	for _, m := range members {
		known[m.ID] = true
	}

	load := make(map[string]int, len(members))
	seen := make(map[string]bool, len(res.Assignments))
	kept := res.Assignments[:0]
	for _, a := range res.Assignments {
		if !selected[a.TaskID] {
			notes = append(notes, fmt.Sprintf("dropped assignment for unselected task %s", a.TaskID))
			continue
		}
		if seen[a.TaskID] {
			notes = append(notes, fmt.Sprintf("dropped duplicate assignment for task %s", a.TaskID))
			continue
		}
		if !known[a.AssigneeID] {
			fallback := leastLoaded(members, load)
			notes = append(notes, fmt.Sprintf("task %s reassigned from unknown member %q to %s", a.TaskID, a.AssigneeID, fallback))
			a.AssigneeID = fallback
		}
		seen[a.TaskID] = true
		load[a.AssigneeID]++
		kept = append(kept, a)
	}
	res.Assignments = kept

	suggested := make(map[string]string, len(sel.Scores))
	for _, s := range sel.Scores {
		if s.SuggestedAssignee != "" && known[s.SuggestedAssignee] {
			suggested[s.ItemID] = s.SuggestedAssignee
		}
	}

	for _, id := range sel.SelectedIDs {
		if seen[id] {
			continue
		}
		assignee := suggested[id]
		if assignee == "" {
			assignee = leastLoaded(members, load)
		}
		res.Assignments = append(res.Assignments, planning.Assignment{
			TaskID:     id,
			AssigneeID: assignee,
			Day:        planning.Anytime,
			Rationale:  "scheduled automatically to guarantee coverage",
		})
		load[assignee]++
		seen[id] = true
		notes = append(notes, fmt.Sprintf("task %s had no assignment and was scheduled for %s in anytime_this_week", id, assignee))
	}

	res.Warnings = append(res.Warnings, notes...)
	return notes
}

func leastLoaded(members []planning.TeamMember, load map[string]int) string {
	best := members[0].ID
	for _, m := range members[1:] {
		if load[m.ID] < load[best] {
			best = m.ID
		}
	}
	return best
}

// deriveTitle names the plan after the heaviest focus priority, or the
// admin instructions when no focus exists.
func deriveTitle(input planning.PlanningInput, priorities []planning.PriorityIndicator) string {
	week := input.WeekStart.Format("Jan 2")

	var best *planning.PriorityIndicator
	for i := range priorities {
		p := &priorities[i]
		if p.Type != planning.PriorityFocus || p.Target == "" {
			continue
		}
		if best == nil || p.Weight > best.Weight {
			best = p
		}
	}
	if best != nil {
		return fmt.Sprintf("Week of %s: %s", week, best.Target)
	}

	instr := strings.TrimSpace(input.AdminInstructions)
	if instr == "" {
		return "Week of " + week
	}
	if len(instr) > 60 {
		instr = strings.TrimSpace(instr[:57]) + "..."
	}
	return fmt.Sprintf("Week of %s: %s", week, instr)
}

func priorityGuidance(priorities []planning.PriorityIndicator) string {
	var parts []string
	for _, p := range priorities {
		if p.Target == "" {
			continue
		}
		parts = append(parts, fmt.Sprintf("%s: %s", p.Type, p.Target))
	}
	return strings.Join(parts, "; ")
}
