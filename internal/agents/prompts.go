package agents

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"plannerd/internal/planning"
	"plannerd/internal/review"
)

// System prompts per capability. The schemas below are the contract
// the structured-extraction layer decodes against.

const organizingSystemPrompt = `You are the organizing agent of a weekly planning system for a small team.
You reason about admin priorities, backlog items, and member capacity.
Always answer with a single JSON object matching the requested schema exactly.
Do not include fields that were not requested and do not invent item or member ids.`

const selectionSystemPrompt = `You are the selection agent of a weekly planning system.
Given a candidate pool, prioritization signals, and per-member capacity, choose the
subset of items for the coming week. Target 70-85% of aggregate capacity.
Must-include items are a hard constraint even if they push utilization above 85%;
emit a warning when that happens. Always answer with a single JSON object.`

const editingSystemPrompt = `You are the editing agent of a weekly planning system.
You materialize item creations, modifications, and deletions, and you assemble
final weekly plan documents. Only set fields that are explicitly specified;
leave everything else unset. Always answer with a single JSON object.`

func buildDialoguePrompt(input planning.PlanningInput) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Admin instructions:\n%s\n\n", input.AdminInstructions)
	fmt.Fprintf(&b, "Week starting: %s\n\n", input.WeekStart.Format("2006-01-02"))
	writeJSONSection(&b, "Team members", input.TeamMembers)
	writeJSONSection(&b, "Backlog items", input.Backlog)
	writeJSONSection(&b, "Active objectives", input.Objectives)
	writeJSONSection(&b, "Recent plans", input.RecentPlans)
	writeJSONSection(&b, "Recurring items due", input.RecurringDue)

	b.WriteString(`Propose an approach for this week's plan. Respond with JSON:
{
  "approach": "one-paragraph summary of the proposed approach",
  "priorities": ["ordered priority list"],
  "strategy": "how the plan will be balanced",
  "questions": ["clarifying questions, empty if none"],
  "newItems": [{"description": "", "kind": "task", "importance": 1, "urgency": 1, "tags": []}],
  "modificationRequests": [{"itemId": "", "change": ""}],
  "workloadEstimates": [{"memberId": "", "memberName": "", "estimatedTasks": 0, "note": ""}],
  "needsClarification": false
}`)
	return b.String()
}

func buildExecutionPrompt(input planning.PlanningInput, approval planning.Approval) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Admin instructions:\n%s\n\n", input.AdminInstructions)
	fmt.Fprintf(&b, "The admin has approved the proposed approach: %v\n", approval.Approved)
	if approval.Adjustments != "" {
		fmt.Fprintf(&b, "Admin adjustments to fold in:\n%s\n", approval.Adjustments)
	}
	b.WriteString("\n")
	writeJSONSection(&b, "Team members", input.TeamMembers)
	writeJSONSection(&b, "Backlog items", input.Backlog)
	writeJSONSection(&b, "Active objectives", input.Objectives)
	writeJSONSection(&b, "Recurring items due", input.RecurringDue)

	b.WriteString(`Categorize the admin intent for execution. Respond with JSON:
{
  "priorities": [{"type": "focus|avoid|balance", "target": "", "weight": 1.0, "reasoning": ""}],
  "newContent": [{"description": "", "kind": "task", "importance": 1, "urgency": 1}],
  "editRequests": [{"itemId": "", "change": ""}],
  "editingGuide": {
    "newItems": [{"tempId": "new-1", "description": "", "kind": "task", "importance": 1}],
    "modifications": [{"itemId": "", "change": ""}],
    "deletions": []
  },
  "selectionCriteria": {
    "mustInclude": ["existing item ids that must be selected"],
    "preferred": [],
    "avoid": [],
    "capacityGuidance": [{"memberId": "", "maxTasks": 0, "focusAreas": []}]
  },
  "selectionNotes": "",
  "nextPhase": "editing|selection|assignment|review"
}
Leave editingGuide lists empty when the instructions imply no item changes.`)
	return b.String()
}

func buildAssignPrompt(selectedIDs []string, items []planning.WorkItem, members []planning.TeamMember, input planning.PlanningInput) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Week starting: %s\n\n", input.WeekStart.Format("2006-01-02"))
	writeJSONSection(&b, "Team members", members)
	writeJSONSection(&b, "Selected item ids", selectedIDs)
	writeJSONSection(&b, "Item details", items)

	b.WriteString(`Assign every selected item to exactly one (person, day) pair.
Valid values for scheduledFor: monday, tuesday, wednesday, thursday, friday,
saturday, sunday, anytime_this_week, deck.
Every selected item id must appear exactly once. Respond with JSON:
{
  "assignments": [{"taskId": "", "assignedTo": "member id", "scheduledFor": "monday", "timeWindow": "after school", "rationale": ""}],
  "summary": "assignments grouped by person and by day",
  "warnings": []
}`)
	return b.String()
}

func buildSelectionPrompt(in SelectionInput) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Week starting: %s\n\n", in.Input.WeekStart.Format("2006-01-02"))
	writeJSONSection(&b, "Candidate pool", in.Pool)
	writeJSONSection(&b, "Priority indicators", in.Priorities)
	writeJSONSection(&b, "Selection criteria", in.Criteria)
	writeJSONSection(&b, "Per-member capacity (max tasks)", in.Capacity)
	writeJSONSection(&b, "Recent plans", in.Input.RecentPlans)
	if in.Notes != "" {
		fmt.Fprintf(&b, "Selection notes:\n%s\n\n", in.Notes)
	}
	fmt.Fprintf(&b, "Aggregate capacity is %d tasks; target %d-%d%% utilization.\n\n",
		planning.TotalCapacity(in.Capacity), int(UtilizationFloorPct), int(UtilizationCeilingPct))

	b.WriteString(`Respond with JSON:
{
  "selectedIds": ["ordered, unique item ids"],
  "scores": [{"itemId": "", "score": 0, "rationale": "", "suggestedTiming": "early-week|mid-week|late-week", "suggestedAssignee": ""}],
  "deferred": [{"itemId": "", "reason": ""}],
  "utilization": [{"memberId": "", "selectedTasks": 0, "capacity": 0, "utilizationPct": 0}],
  "alignmentNarrative": "how the selection aligns with the priorities",
  "warnings": []
}`)
	return b.String()
}

func buildEditingPrompt(guide planning.EditingGuide, inventory []planning.WorkItem) string {
	var b strings.Builder
	writeJSONSection(&b, "Editing guide", guide)
	writeJSONSection(&b, "Existing inventory", inventory)

	b.WriteString(`Materialize the guide into concrete records. Only set the fields the
guide explicitly specifies; never default unspecified fields. Respond with JSON:
{
  "created": [{"tempId": "new-1", "item": {"description": "", "kind": "task", "importance": 1, "urgency": 1, "tags": []}}],
  "modified": [{"itemId": "", "change": ""}],
  "deleted": [{"itemId": ""}],
  "issues": [{"ref": "", "problem": ""}]
}`)
	return b.String()
}

func buildGeneratePlanPrompt(in GeneratePlanInput) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Title: %s\n", in.Title)
	fmt.Fprintf(&b, "Week starting: %s\n", in.WeekStart.Format("2006-01-02"))
	if in.PriorityGuidance != "" {
		fmt.Fprintf(&b, "Priority guidance: %s\n", in.PriorityGuidance)
	}
	b.WriteString("\n")
	writeJSONSection(&b, "Team members", in.Members)
	writeJSONSection(&b, "Selected items", in.Selected)
	writeJSONSection(&b, "Final assignments", in.Assignments)

	memberIDs := make([]string, 0, len(in.Members))
	for _, m := range in.Members {
		memberIDs = append(memberIDs, m.ID)
	}
	fmt.Fprintf(&b, `Assemble the weekly plan document. The assignments map must contain
exactly these member ids as keys: %s.
Every member entry must contain ALL nine buckets as arrays (monday..sunday,
anytime_this_week, deck), empty arrays included, even for members with no tasks.
Embed the full item data in each scheduled entry. Respond with JSON:
{
  "title": "",
  "assignments": {
    "member-id": {
      "monday": [{"item": {...full item...}, "assignedTo": "", "scheduledFor": "monday", "timeWindow": "", "rationale": ""}],
      "tuesday": [], "wednesday": [], "thursday": [], "friday": [],
      "saturday": [], "sunday": [], "anytime_this_week": [], "deck": []
    }
  },
  "metadata": {"priorityGuidance": "", "generatedAt": %q, "version": %d},
  "stats": {"totalTasks": 0, "perMember": {}, "highPriority": 0, "scheduledTasks": 0}
}`, strings.Join(memberIDs, ", "), time.Now().Format(time.RFC3339), in.Version)
	return b.String()
}

func buildInterpretSelectionPrompt(command string, data review.SelectionReviewData) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Admin review command:\n%s\n\n", command)
	writeJSONSection(&b, "Current selection review", data)

	b.WriteString(`Interpret the command as selection changes. Respond with JSON:
{
  "action": "add|remove|reprioritize|mixed",
  "targets": ["item ids affected"],
  "parameters": {},
  "explanation": "",
  "warnings": [],
  "selection": {"addedIds": [], "removedIds": [], "priorityOverrides": {}}
}`)
	return b.String()
}

func buildInterpretAssignmentPrompt(command string, data review.AssignmentReviewData) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Admin review command:\n%s\n\n", command)
	writeJSONSection(&b, "Current assignment review", data)

	b.WriteString(`Interpret the command as assignment changes. Respond with JSON:
{
  "action": "reassign|reschedule|deck|mixed",
  "targets": ["task ids affected"],
  "parameters": {},
  "explanation": "",
  "warnings": [],
  "assignment": {
    "reassignments": [{"taskId": "", "fromPerson": "", "toPerson": "", "fromDay": "", "toDay": ""}],
    "timeAdjustments": {},
    "movedToDeck": []
  }
}`)
	return b.String()
}

// writeJSONSection embeds a labeled JSON block, skipping empty data.
func writeJSONSection(b *strings.Builder, label string, v any) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil || string(data) == "null" || string(data) == "[]" || string(data) == "{}" {
		return
	}
	fmt.Fprintf(b, "%s:\n%s\n\n", label, data)
}
