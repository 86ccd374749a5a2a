package agents

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"plannerd/internal/config"
	"plannerd/internal/logging"
	"plannerd/internal/planning"
	"plannerd/internal/reasoning"
)

// EditingAgent materializes editing guides into concrete backlog
// changes and, in its second operating mode, assembles the final
// weekly plan document.
type EditingAgent struct {
	client    reasoning.Client
	retry     reasoning.RetryConfig
	planRetry reasoning.RetryConfig
}

// NewEditingAgent wires the agent to a reasoning client. Plan
// generation runs under the long-form timeout.
func NewEditingAgent(client reasoning.Client, timeouts config.ReasoningTimeouts) *EditingAgent {
	planTimeout := timeouts.PlanGenerationTimeout
	if planTimeout <= 0 {
		planTimeout = 5 * time.Minute
	}
	return &EditingAgent{
		client:    client,
		retry:     retryConfig(timeouts, timeouts.PerCallTimeout),
		planRetry: retryConfig(timeouts, planTimeout),
	}
}

// ApplyEditingGuide turns the guide into creation, modification, and
// deletion records. Every created item gets a minted durable id and
// the owning team reference; modifications against unknown ids are
// flagged as validation issues rather than silently dropped.
func (a *EditingAgent) ApplyEditingGuide(ctx context.Context, guide planning.EditingGuide, inventory []planning.WorkItem, teamID string) (*planning.EditingResult, error) {
	prompt := buildEditingPrompt(guide, inventory)

	var result planning.EditingResult
	err := reasoning.Do(ctx, a.retry, "editing.apply", func(ctx context.Context) error {
		return reasoning.CompleteJSON(ctx, a.client, editingSystemPrompt, prompt, &result)
	})
	if err != nil {
		return nil, fmt.Errorf("editing failed: %w", err)
	}

	a.validateEditing(&result, inventory, teamID)

	logging.Editing("guide applied: %d created, %d modified, %d deleted, %d issues",
		len(result.Created), len(result.Modified), len(result.Deleted), len(result.Issues))
	return &result, nil
}

func (a *EditingAgent) validateEditing(result *planning.EditingResult, inventory []planning.WorkItem, teamID string) {
	known := make(map[string]bool, len(inventory))
	for _, it := range inventory {
		known[it.ID] = true
	}

	kept := result.Created[:0]
	for _, c := range result.Created {
		if strings.TrimSpace(c.Item.Description) == "" {
			result.Issues = append(result.Issues, planning.ValidationIssue{
				Ref:     c.TempID,
				Problem: "created element has empty description",
			})
			continue
		}
		c.Item.ID = "item-" + uuid.NewString()
		c.Item.TeamID = teamID
		if c.Item.Kind == "" {
			c.Item.Kind = planning.ItemTask
		}
		kept = append(kept, c)
	}
	result.Created = kept

	for i := range result.Modified {
		m := &result.Modified[i]
		if !known[m.ItemID] {
			m.Found = false
			m.Applied = false
			result.Issues = append(result.Issues, planning.ValidationIssue{
				Ref:     m.ItemID,
				Problem: "modification references unknown item",
			})
			continue
		}
		m.Found = true
		m.Applied = true
	}

	for i := range result.Deleted {
		d := &result.Deleted[i]
		if !known[d.ItemID] {
			d.Found = false
			d.Deleted = false
			result.Issues = append(result.Issues, planning.ValidationIssue{
				Ref:     d.ItemID,
				Problem: "deletion references unknown item",
			})
			continue
		}
		d.Found = true
		d.Deleted = true
	}
}

// GeneratePlanInput is the final-assembly context.
type GeneratePlanInput struct {
	Title            string
	PriorityGuidance string
	Selected         []planning.WorkItem
	Assignments      []planning.Assignment
	Members          []planning.TeamMember
	WeekStart        time.Time
	Version          int
}

// GeneratePlan assembles the complete weekly plan document and
// hard-validates it: a document that violates the structural
// invariants is never returned.
func (a *EditingAgent) GeneratePlan(ctx context.Context, in GeneratePlanInput) (*planning.WeeklyPlanDocument, error) {
	prompt := buildGeneratePlanPrompt(in)

	var doc planning.WeeklyPlanDocument
	err := reasoning.Do(ctx, a.planRetry, "editing.generatePlan", func(ctx context.Context) error {
		return reasoning.CompleteJSON(ctx, a.client, editingSystemPrompt, prompt, &doc)
	})
	if err != nil {
		return nil, fmt.Errorf("plan generation failed: %w", err)
	}

	if doc.Title == "" {
		doc.Title = in.Title
	}
	doc.Metadata.PriorityGuidance = in.PriorityGuidance
	doc.Metadata.GeneratedAt = time.Now()
	doc.Metadata.Version = in.Version
	if doc.Metadata.Version < 1 {
		doc.Metadata.Version = 1
	}
	recomputeStats(&doc)

	if err := ValidatePlanDocument(&doc, in.Members); err != nil {
		return nil, fmt.Errorf("generated plan is malformed: %w", err)
	}

	logging.Editing("plan generated: %q, %d tasks across %d members",
		doc.Title, doc.Stats.TotalTasks, len(doc.Assignments))
	return &doc, nil
}

// ValidatePlanDocument enforces the document invariants: the
// assignment-map key set equals exactly the team member id set, every
// member entry carries all nine buckets as arrays, and metadata has a
// generation timestamp. Any violation is a hard failure.
func ValidatePlanDocument(doc *planning.WeeklyPlanDocument, members []planning.TeamMember) error {
	if doc.Assignments == nil {
		return fmt.Errorf("assignment map is missing")
	}

	want := make(map[string]bool, len(members))
	for _, m := range members {
		want[m.ID] = true
	}

	for id := range doc.Assignments {
		if !want[id] {
			return fmt.Errorf("assignment map contains unknown member %q", id)
		}
	}
	for id := range want {
		sched, ok := doc.Assignments[id]
		if !ok {
			return fmt.Errorf("assignment map is missing member %q", id)
		}
		if sched == nil {
			return fmt.Errorf("member %q has a nil schedule", id)
		}
		for _, bucket := range planning.AllBuckets {
			if _, ok := sched[bucket]; !ok {
				return fmt.Errorf("member %q is missing bucket %q", id, bucket)
			}
		}
		for bucket := range sched {
			if !planning.ValidBucket(bucket) {
				return fmt.Errorf("member %q has unknown bucket %q", id, bucket)
			}
		}
	}

	if doc.Metadata.GeneratedAt.IsZero() {
		return fmt.Errorf("metadata is missing the generation timestamp")
	}
	if doc.Stats.TotalTasks < 0 {
		return fmt.Errorf("statistics carry a negative total task count")
	}
	return nil
}

// recomputeStats derives the aggregate statistics from the bucket
// contents so they can never drift from the document body.
func recomputeStats(doc *planning.WeeklyPlanDocument) {
	stats := planning.PlanStats{PerMember: make(map[string]int, len(doc.Assignments))}
	for memberID, sched := range doc.Assignments {
		count := 0
		for bucket, entries := range sched {
			count += len(entries)
			for _, e := range entries {
				if e.Item.Importance >= 4 {
					stats.HighPriority++
				}
				if planning.IsWeekday(bucket) {
					stats.ScheduledTasks++
				}
			}
		}
		stats.PerMember[memberID] = count
		stats.TotalTasks += count
	}
	doc.Stats = stats
}
