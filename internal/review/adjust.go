package review

import (
	"fmt"

	"plannerd/internal/planning"
)

// ApplySelectionAdjustments returns a new selection result with the
// manual (or AI-interpreted) deltas applied. The input is not
// mutated; callers regenerate review data from the returned result.
func ApplySelectionAdjustments(res planning.SelectionResult, adj planning.SelectionAdjustments, pool []planning.WorkItem) planning.SelectionResult {
	out := cloneSelection(res)
	byID := indexItems(pool)

	for _, id := range adj.RemovedIDs {
		out.SelectedIDs = removeID(out.SelectedIDs, id)
		out.Scores = removeScore(out.Scores, id)
		if !hasDeferred(out.Deferred, id) {
			out.Deferred = append(out.Deferred, planning.DeferredItem{
				ItemID: id,
				Reason: "removed during review",
			})
		}
	}

	for _, id := range adj.AddedIDs {
		if out.Selected(id) {
			continue
		}
		if _, ok := byID[id]; !ok {
			out.Warnings = append(out.Warnings, fmt.Sprintf("cannot add %s: not in candidate pool", id))
			continue
		}
		out.SelectedIDs = append(out.SelectedIDs, id)
		out.Deferred = removeDeferred(out.Deferred, id)
		out.Scores = append(out.Scores, planning.ScoredItem{
			ItemID:    id,
			Score:     50,
			Rationale: "added during review",
		})
	}

	for id, score := range adj.PriorityOverrides {
		score = clampScore(score)
		found := false
		for i := range out.Scores {
			if out.Scores[i].ItemID == id {
				out.Scores[i].Score = score
				out.Scores[i].Rationale = "priority overridden during review"
				found = true
				break
			}
		}
		if !found && out.Selected(id) {
			out.Scores = append(out.Scores, planning.ScoredItem{
				ItemID:    id,
				Score:     score,
				Rationale: "priority overridden during review",
			})
		}
	}

	return out
}

// ApplyAssignmentAdjustments returns a new assignment result with
// reassignments, time changes, and deck moves applied. Reassignments
// to ids outside the member set are rejected with a warning so every
// surviving assignee is a known team member.
func ApplyAssignmentAdjustments(res planning.AssignmentResult, adj planning.AssignmentAdjustments, members []planning.TeamMember) planning.AssignmentResult {
	out := cloneAssignments(res)

	known := make(map[string]bool, len(members))
	for _, m := range members {
		known[m.ID] = true
	}

	for _, r := range adj.Reassignments {
		if !planning.ValidBucket(r.ToDay) {
			out.Warnings = append(out.Warnings, fmt.Sprintf("cannot move %s: unknown day %q", r.TaskID, r.ToDay))
			continue
		}
		if r.ToPerson != "" && !known[r.ToPerson] {
			out.Warnings = append(out.Warnings, fmt.Sprintf("cannot reassign %s: unknown member %q", r.TaskID, r.ToPerson))
			continue
		}
		moved := false
		for i := range out.Assignments {
			if out.Assignments[i].TaskID != r.TaskID {
				continue
			}
			if r.ToPerson != "" {
				out.Assignments[i].AssigneeID = r.ToPerson
			}
			out.Assignments[i].Day = r.ToDay
			out.Assignments[i].Rationale = "reassigned during review"
			moved = true
			break
		}
		if !moved {
			out.Warnings = append(out.Warnings, fmt.Sprintf("cannot reassign %s: no such assignment", r.TaskID))
		}
	}

	for taskID, window := range adj.TimeAdjustments {
		for i := range out.Assignments {
			if out.Assignments[i].TaskID == taskID {
				out.Assignments[i].TimeWindow = window
				break
			}
		}
	}

	for _, taskID := range adj.MovedToDeck {
		for i := range out.Assignments {
			if out.Assignments[i].TaskID == taskID {
				out.Assignments[i].Day = planning.Deck
				out.Assignments[i].Rationale = "moved to deck during review"
				break
			}
		}
	}

	return out
}

func cloneSelection(res planning.SelectionResult) planning.SelectionResult {
	out := res
	out.SelectedIDs = append([]string(nil), res.SelectedIDs...)
	out.Scores = append([]planning.ScoredItem(nil), res.Scores...)
	out.Deferred = append([]planning.DeferredItem(nil), res.Deferred...)
	out.Utilization = append([]planning.MemberUtilization(nil), res.Utilization...)
	out.Warnings = append([]string(nil), res.Warnings...)
	return out
}

func cloneAssignments(res planning.AssignmentResult) planning.AssignmentResult {
	out := res
	out.Assignments = append([]planning.Assignment(nil), res.Assignments...)
	out.Warnings = append([]string(nil), res.Warnings...)
	return out
}

func removeID(ids []string, id string) []string {
	out := ids[:0]
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}

func removeScore(scores []planning.ScoredItem, id string) []planning.ScoredItem {
	out := scores[:0]
	for _, s := range scores {
		if s.ItemID != id {
			out = append(out, s)
		}
	}
	return out
}

func hasDeferred(deferred []planning.DeferredItem, id string) bool {
	for _, d := range deferred {
		if d.ItemID == id {
			return true
		}
	}
	return false
}

func removeDeferred(deferred []planning.DeferredItem, id string) []planning.DeferredItem {
	out := deferred[:0]
	for _, d := range deferred {
		if d.ItemID != id {
			out = append(out, d)
		}
	}
	return out
}

func clampScore(s int) int {
	if s < 0 {
		return 0
	}
	if s > 100 {
		return 100
	}
	return s
}
