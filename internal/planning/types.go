// Package planning defines the domain model for the weekly planning
// engine: work items, team members, capability inputs/outputs, and the
// per-attempt Session that carries state across phases.
package planning

import (
	"time"
)

// ItemKind distinguishes the three backlog item flavors.
type ItemKind string

const (
	ItemTask        ItemKind = "task"
	ItemObjective   ItemKind = "objective"
	ItemMaintenance ItemKind = "maintenance"
)

// WorkItem is a candidate unit of work drawn from the backlog.
// Immutable once selected into a plan except through explicit
// modification records emitted by the editing capability.
type WorkItem struct {
	ID          string   `json:"id" yaml:"id"`
	Description string   `json:"description" yaml:"description"`
	Kind        ItemKind `json:"kind" yaml:"kind"`
	Importance  int      `json:"importance" yaml:"importance"`               // 1-5
	Urgency     int      `json:"urgency,omitempty" yaml:"urgency,omitempty"` // 1-5, tasks/maintenance only
	Tags        []string `json:"tags,omitempty" yaml:"tags,omitempty"`
	Frequency   string   `json:"frequency,omitempty" yaml:"frequency,omitempty"` // maintenance only
	ObjectiveID string   `json:"objectiveId,omitempty" yaml:"objectiveId,omitempty"`
	TeamID      string   `json:"teamId,omitempty" yaml:"teamId,omitempty"`

	// EstimatedHours feeds the workload-rating metric. Zero means
	// unestimated; metrics treat it as one hour.
	EstimatedHours float64 `json:"estimatedHours,omitempty" yaml:"estimatedHours,omitempty"`
}

// CapacityClass buckets a member into a max-task budget.
type CapacityClass string

const (
	CapacityYoung  CapacityClass = "young"
	CapacityMiddle CapacityClass = "middle"
	CapacityTeen   CapacityClass = "teen"
	CapacityAdult  CapacityClass = "adult"
)

// TeamMember is read-only within a planning attempt.
type TeamMember struct {
	ID            string        `json:"id" yaml:"id"`
	Name          string        `json:"name" yaml:"name"`
	Email         string        `json:"email,omitempty" yaml:"email,omitempty"`
	CapacityClass CapacityClass `json:"capacityClass,omitempty" yaml:"capacityClass,omitempty"`
}

// DayBucket is a scheduling slot: one of the seven weekdays,
// anytime_this_week, or deck (backlog-for-later).
type DayBucket string

const (
	Monday    DayBucket = "monday"
	Tuesday   DayBucket = "tuesday"
	Wednesday DayBucket = "wednesday"
	Thursday  DayBucket = "thursday"
	Friday    DayBucket = "friday"
	Saturday  DayBucket = "saturday"
	Sunday    DayBucket = "sunday"
	Anytime   DayBucket = "anytime_this_week"
	Deck      DayBucket = "deck"
)

// Weekdays in order. Used for busiest-day metrics and bucket layout.
var Weekdays = []DayBucket{Monday, Tuesday, Wednesday, Thursday, Friday, Saturday, Sunday}

// AllBuckets is the full set of nine buckets every member schedule
// must carry, even when empty.
var AllBuckets = []DayBucket{Monday, Tuesday, Wednesday, Thursday, Friday, Saturday, Sunday, Anytime, Deck}

// ValidBucket reports whether b is one of the nine known buckets.
func ValidBucket(b DayBucket) bool {
	for _, k := range AllBuckets {
		if k == b {
			return true
		}
	}
	return false
}

// IsWeekday reports whether b is a concrete day rather than
// anytime/deck.
func IsWeekday(b DayBucket) bool {
	return b != Anytime && b != Deck && ValidBucket(b)
}

// PriorityType classifies a priority indicator.
type PriorityType string

const (
	PriorityFocus   PriorityType = "focus"
	PriorityAvoid   PriorityType = "avoid"
	PriorityBalance PriorityType = "balance"
)

// PriorityIndicator is one categorized admin priority produced by the
// organizing capability in execution phase.
type PriorityIndicator struct {
	Type      PriorityType `json:"type"`
	Target    string       `json:"target"`
	Weight    float64      `json:"weight"`
	Reasoning string       `json:"reasoning,omitempty"`
}

// ProposedItem is a brand-new work item implied by admin instructions,
// not yet materialized into the backlog.
type ProposedItem struct {
	TempID         string   `json:"tempId,omitempty"`
	Description    string   `json:"description"`
	Kind           ItemKind `json:"kind"`
	Importance     int      `json:"importance"`
	Urgency        int      `json:"urgency,omitempty"`
	Tags           []string `json:"tags,omitempty"`
	EstimatedHours float64  `json:"estimatedHours,omitempty"`
}

// ModificationRequest targets an existing backlog item.
type ModificationRequest struct {
	ItemID string `json:"itemId"`
	Change string `json:"change"`
}

// WorkloadEstimate is the dialogue-phase per-member projection.
type WorkloadEstimate struct {
	MemberID       string `json:"memberId"`
	MemberName     string `json:"memberName,omitempty"`
	EstimatedTasks int    `json:"estimatedTasks"`
	Note           string `json:"note,omitempty"`
}

// DialogueResult is the organizing capability's dialogue-phase output,
// presented to the admin for approval.
type DialogueResult struct {
	Approach             string                `json:"approach"`
	Priorities           []string              `json:"priorities"`
	Strategy             string                `json:"strategy,omitempty"`
	Questions            []string              `json:"questions,omitempty"`
	NewItems             []ProposedItem        `json:"newItems,omitempty"`
	ModificationRequests []ModificationRequest `json:"modificationRequests,omitempty"`
	WorkloadEstimates    []WorkloadEstimate    `json:"workloadEstimates,omitempty"`
	NeedsClarification   bool                  `json:"needsClarification"`
}

// EditingGuide is the subset of execution output handed to the editing
// capability: items to create, modify, and delete.
type EditingGuide struct {
	NewItems      []ProposedItem        `json:"newItems,omitempty"`
	Modifications []ModificationRequest `json:"modifications,omitempty"`
	Deletions     []string              `json:"deletions,omitempty"`
}

// Empty reports whether the guide carries no work at all. The
// orchestrator skips the editing phase entirely when it does.
func (g EditingGuide) Empty() bool {
	return len(g.NewItems) == 0 && len(g.Modifications) == 0 && len(g.Deletions) == 0
}

// MemberCapacityGuidance is per-member guidance for selection.
type MemberCapacityGuidance struct {
	MemberID   string   `json:"memberId"`
	MaxTasks   int      `json:"maxTasks,omitempty"`
	FocusAreas []string `json:"focusAreas,omitempty"`
}

// SelectionCriteria constrains the selection capability.
// MustInclude is a hard constraint; the rest are soft signals.
type SelectionCriteria struct {
	MustInclude      []string                 `json:"mustInclude,omitempty"`
	Preferred        []string                 `json:"preferred,omitempty"`
	Avoid            []string                 `json:"avoid,omitempty"`
	CapacityGuidance []MemberCapacityGuidance `json:"capacityGuidance,omitempty"`
}

// ExecutionResult is the organizing capability's execution-phase
// output: categorized admin intent plus guides for the downstream
// editing and selection stages.
type ExecutionResult struct {
	Priorities        []PriorityIndicator   `json:"priorities"`
	NewContent        []ProposedItem        `json:"newContent,omitempty"`
	EditRequests      []ModificationRequest `json:"editRequests,omitempty"`
	EditingGuide      EditingGuide          `json:"editingGuide"`
	SelectionCriteria SelectionCriteria     `json:"selectionCriteria"`
	SelectionNotes    string                `json:"selectionNotes,omitempty"`

	// NextPhase is the capability's hint (editing|selection|
	// assignment|review). Informational only; the orchestrator
	// decides from the editing guide contents.
	NextPhase string `json:"nextPhase,omitempty"`
}

// ScoredItem carries the selection capability's per-item verdict.
type ScoredItem struct {
	ItemID            string `json:"itemId"`
	Score             int    `json:"score"` // 0-100
	Rationale         string `json:"rationale,omitempty"`
	SuggestedTiming   string `json:"suggestedTiming,omitempty"` // early-week|mid-week|late-week
	SuggestedAssignee string `json:"suggestedAssignee,omitempty"`
}

// DeferredItem records why a candidate was left out.
type DeferredItem struct {
	ItemID string `json:"itemId"`
	Reason string `json:"reason"`
}

// MemberUtilization is the selection capability's per-member
// capacity accounting.
type MemberUtilization struct {
	MemberID       string  `json:"memberId"`
	SelectedTasks  int     `json:"selectedTasks"`
	Capacity       int     `json:"capacity"`
	UtilizationPct float64 `json:"utilizationPct"`
}

// SelectionResult is the selection capability's output.
// Invariant: SelectedIDs and Deferred are disjoint; every must-include
// id appears in SelectedIDs unless a warning explains the exception.
type SelectionResult struct {
	SelectedIDs        []string            `json:"selectedIds"`
	Scores             []ScoredItem        `json:"scores,omitempty"`
	Deferred           []DeferredItem      `json:"deferred,omitempty"`
	Utilization        []MemberUtilization `json:"utilization,omitempty"`
	AlignmentNarrative string              `json:"alignmentNarrative,omitempty"`
	Warnings           []string            `json:"warnings,omitempty"`
}

// Selected reports whether id is in the selected set.
func (r *SelectionResult) Selected(id string) bool {
	for _, s := range r.SelectedIDs {
		if s == id {
			return true
		}
	}
	return false
}

// Assignment maps one task to a person and a day bucket.
type Assignment struct {
	TaskID     string    `json:"taskId"`
	AssigneeID string    `json:"assignedTo"`
	Day        DayBucket `json:"scheduledFor"`
	TimeWindow string    `json:"timeWindow,omitempty"`
	Rationale  string    `json:"rationale,omitempty"`
}

// AssignmentResult is the organizing capability's assignment output.
// Invariant: every selected item has exactly one assignment and every
// assignee id is a known team member.
type AssignmentResult struct {
	Assignments []Assignment `json:"assignments"`
	Summary     string       `json:"summary,omitempty"`
	Warnings    []string     `json:"warnings,omitempty"`
}

// CreatedElement is a materialized new backlog item. The temporary id
// comes from the editing guide; Item.ID is the minted durable id.
type CreatedElement struct {
	TempID string   `json:"tempId,omitempty"`
	Item   WorkItem `json:"item"`
}

// AppliedModification records a modification attempt against an
// existing item, with validation flags rather than silent drops.
type AppliedModification struct {
	ItemID  string `json:"itemId"`
	Found   bool   `json:"found"`
	Applied bool   `json:"applied"`
	Change  string `json:"change,omitempty"`
}

// AppliedDeletion records a deletion attempt.
type AppliedDeletion struct {
	ItemID  string `json:"itemId"`
	Found   bool   `json:"found"`
	Deleted bool   `json:"deleted"`
}

// ValidationIssue is a non-fatal diagnostic from editing validation.
type ValidationIssue struct {
	Ref     string `json:"ref"`
	Problem string `json:"problem"`
}

// EditingResult is the editing capability's create/modify output.
type EditingResult struct {
	Created  []CreatedElement      `json:"created,omitempty"`
	Modified []AppliedModification `json:"modified,omitempty"`
	Deleted  []AppliedDeletion     `json:"deleted,omitempty"`
	Issues   []ValidationIssue     `json:"issues,omitempty"`
}

// ScheduledItem is one plan entry with full item data embedded.
type ScheduledItem struct {
	Item       WorkItem  `json:"item"`
	AssigneeID string    `json:"assignedTo"`
	Bucket     DayBucket `json:"scheduledFor"`
	TimeWindow string    `json:"timeWindow,omitempty"`
	Rationale  string    `json:"rationale,omitempty"`
}

// MemberSchedule holds a member's nine buckets. Every bucket key must
// be present, possibly with an empty list.
type MemberSchedule map[DayBucket][]ScheduledItem

// PlanMetadata travels with the generated document.
type PlanMetadata struct {
	PriorityGuidance string    `json:"priorityGuidance,omitempty"`
	GeneratedAt      time.Time `json:"generatedAt"`
	Version          int       `json:"version"`
}

// PlanStats are the document's aggregate statistics.
type PlanStats struct {
	TotalTasks     int            `json:"totalTasks"`
	PerMember      map[string]int `json:"perMember"`
	HighPriority   int            `json:"highPriority"`
	ScheduledTasks int            `json:"scheduledTasks"`
}

// WeeklyPlanDocument is the final artifact of one planning attempt.
// Invariant: Assignments keys are exactly the attempt's team member
// ids, each with all nine buckets present.
type WeeklyPlanDocument struct {
	Title       string                    `json:"title"`
	Assignments map[string]MemberSchedule `json:"assignments"`
	Metadata    PlanMetadata              `json:"metadata"`
	Stats       PlanStats                 `json:"stats"`
}

// PlanSummary is the recent-history trend context fed to dialogue.
type PlanSummary struct {
	WeekStart      time.Time `json:"weekStart" yaml:"week_start"`
	Title          string    `json:"title,omitempty" yaml:"title,omitempty"`
	TotalTasks     int       `json:"totalTasks" yaml:"total_tasks"`
	CompletionRate float64   `json:"completionRate,omitempty" yaml:"completion_rate,omitempty"`
}

// SelectionAdjustments are manual review-time deltas for selection.
type SelectionAdjustments struct {
	AddedIDs          []string       `json:"addedIds,omitempty"`
	RemovedIDs        []string       `json:"removedIds,omitempty"`
	PriorityOverrides map[string]int `json:"priorityOverrides,omitempty"`
}

// Reassignment moves one task between (person, day) slots.
type Reassignment struct {
	TaskID     string    `json:"taskId"`
	FromPerson string    `json:"fromPerson,omitempty"`
	ToPerson   string    `json:"toPerson"`
	FromDay    DayBucket `json:"fromDay,omitempty"`
	ToDay      DayBucket `json:"toDay"`
}

// AssignmentAdjustments are manual review-time deltas for assignment.
type AssignmentAdjustments struct {
	Reassignments   []Reassignment    `json:"reassignments,omitempty"`
	TimeAdjustments map[string]string `json:"timeAdjustments,omitempty"`
	MovedToDeck     []string          `json:"movedToDeck,omitempty"`
}

// AdjustmentInterpretation is the structured reading of a free-text
// review command, produced by the organizing capability.
type AdjustmentInterpretation struct {
	Action      string                 `json:"action"`
	Targets     []string               `json:"targets,omitempty"`
	Parameters  map[string]string      `json:"parameters,omitempty"`
	Explanation string                 `json:"explanation,omitempty"`
	Warnings    []string               `json:"warnings,omitempty"`
	Selection   *SelectionAdjustments  `json:"selection,omitempty"`
	Assignment  *AssignmentAdjustments `json:"assignment,omitempty"`
}

// CheckpointSkipConfig configures one checkpoint's skip rule.
type CheckpointSkipConfig struct {
	Enabled              bool    `json:"enabled" yaml:"enabled"`
	MaxTasks             int     `json:"maxTasks,omitempty" yaml:"maxTasks,omitempty"`                   // selection
	MinUtilizationPct    float64 `json:"minUtilizationPct,omitempty" yaml:"minUtilizationPct,omitempty"` // selection
	MaxWorkloadCV        float64 `json:"maxWorkloadCv,omitempty" yaml:"maxWorkloadCv,omitempty"`         // assignment
	SkipOnlyIfNoWarnings bool    `json:"skipOnlyIfNoWarnings,omitempty" yaml:"skipOnlyIfNoWarnings,omitempty"`
}

// SkipPreferences is the per-user review skip policy, loaded into the
// session before a planning attempt. Reviews are opt-out: with no
// preferences configured every checkpoint pauses.
type SkipPreferences struct {
	Selection         CheckpointSkipConfig `json:"selection" yaml:"selection"`
	Assignment        CheckpointSkipConfig `json:"assignment" yaml:"assignment"`
	AutoContinue      bool                 `json:"autoContinue,omitempty" yaml:"autoContinue,omitempty"`
	AutoContinueDelay int                  `json:"autoContinueDelaySeconds,omitempty" yaml:"autoContinueDelaySeconds,omitempty"`
	EveryNthRun       int                  `json:"everyNthRun,omitempty" yaml:"everyNthRun,omitempty"`
}

// DefaultSkipPreferences mirrors the documented thresholds: selection
// skips under 20 tasks at >=70% utilization, assignment skips under a
// 0.20 workload coefficient of variation.
func DefaultSkipPreferences() SkipPreferences {
	return SkipPreferences{
		Selection: CheckpointSkipConfig{
			Enabled:           false,
			MaxTasks:          20,
			MinUtilizationPct: 70,
		},
		Assignment: CheckpointSkipConfig{
			Enabled:       false,
			MaxWorkloadCV: 0.20,
		},
		EveryNthRun: 5,
	}
}

// PlanningInput is the full context for one planning attempt, shared
// by the dialogue and execution entry points.
type PlanningInput struct {
	SessionID         string        `json:"sessionId,omitempty" yaml:"session_id,omitempty"`
	UserID            string        `json:"userId,omitempty" yaml:"user_id,omitempty"`
	TeamID            string        `json:"teamId,omitempty" yaml:"team_id,omitempty"`
	AdminInstructions string        `json:"adminInstructions" yaml:"admin_instructions"`
	WeekStart         time.Time     `json:"weekStartDate" yaml:"week_start"`
	TeamMembers       []TeamMember  `json:"teamMembers" yaml:"team_members"`
	Backlog           []WorkItem    `json:"backlogs,omitempty" yaml:"backlog,omitempty"`
	Objectives        []WorkItem    `json:"objectives,omitempty" yaml:"objectives,omitempty"`
	RecentPlans       []PlanSummary `json:"recentPlans,omitempty" yaml:"recent_plans,omitempty"`
	RecurringDue      []WorkItem    `json:"recurringDue,omitempty" yaml:"recurring_due,omitempty"`
}

// Approval is the admin's decision on a proposed approach.
type Approval struct {
	Approved    bool   `json:"approved"`
	Adjustments string `json:"adjustments,omitempty"`
}
