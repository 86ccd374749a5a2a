package agents

import (
	"context"
	"fmt"

	"plannerd/internal/config"
	"plannerd/internal/logging"
	"plannerd/internal/planning"
	"plannerd/internal/reasoning"
)

// Utilization band the selection should target. Must-include items
// are a hard constraint and may push past the upper bound.
const (
	UtilizationFloorPct   = 70.0
	UtilizationCeilingPct = 85.0
)

// SelectionAgent chooses the week's subset from the candidate pool.
type SelectionAgent struct {
	client reasoning.Client
	retry  reasoning.RetryConfig
}

// NewSelectionAgent wires the agent to a reasoning client.
func NewSelectionAgent(client reasoning.Client, timeouts config.ReasoningTimeouts) *SelectionAgent {
	return &SelectionAgent{
		client: client,
		retry:  retryConfig(timeouts, timeouts.PerCallTimeout),
	}
}

// SelectionInput carries everything the capability needs.
type SelectionInput struct {
	Pool       []planning.WorkItem
	Criteria   planning.SelectionCriteria
	Priorities []planning.PriorityIndicator
	Notes      string
	Capacity   map[string]int
	Input      planning.PlanningInput
}

// SelectTasks runs the selection call and enforces the boundary
// invariants: selected/deferred disjoint, no duplicates, and every
// must-include id present (added with a warning when the capability
// left one out).
func (a *SelectionAgent) SelectTasks(ctx context.Context, in SelectionInput) (*planning.SelectionResult, error) {
	prompt := buildSelectionPrompt(in)

	var result planning.SelectionResult
	err := reasoning.Do(ctx, a.retry, "selection.select", func(ctx context.Context) error {
		return reasoning.CompleteJSON(ctx, a.client, selectionSystemPrompt, prompt, &result)
	})
	if err != nil {
		return nil, fmt.Errorf("task selection failed: %w", err)
	}

	normalizeSelection(&result, in)

	logging.Selection("selected %d of %d candidates, %d deferred, %d warnings",
		len(result.SelectedIDs), len(in.Pool), len(result.Deferred), len(result.Warnings))
	return &result, nil
}

// CheckUtilization is the orchestrator's post-hoc band check,
// intentionally duplicating the capability's own accounting for
// defense in depth. Returns an advisory warning or "".
func CheckUtilization(selectedCount, totalCapacity int) string {
	if totalCapacity <= 0 {
		return ""
	}
	util := float64(selectedCount) / float64(totalCapacity) * 100
	if util < UtilizationFloorPct {
		return fmt.Sprintf("capacity utilization %.1f%% is below the %d%% target floor", util, int(UtilizationFloorPct))
	}
	if util > UtilizationCeilingPct {
		return fmt.Sprintf("capacity utilization %.1f%% exceeds the %d%% target ceiling", util, int(UtilizationCeilingPct))
	}
	return ""
}

func normalizeSelection(res *planning.SelectionResult, in SelectionInput) {
	poolIDs := make(map[string]bool, len(in.Pool))
	for _, it := range in.Pool {
		poolIDs[it.ID] = true
	}

	// Dedupe while preserving order, dropping ids outside the pool.
	seen := make(map[string]bool, len(res.SelectedIDs))
	deduped := res.SelectedIDs[:0]
	for _, id := range res.SelectedIDs {
		if seen[id] {
			continue
		}
		if !poolIDs[id] {
			res.Warnings = append(res.Warnings, fmt.Sprintf("selection referenced unknown item %s, dropped", id))
			continue
		}
		seen[id] = true
		deduped = append(deduped, id)
	}
	res.SelectedIDs = deduped

	// Selected and deferred must be disjoint; selection wins.
	kept := res.Deferred[:0]
	for _, d := range res.Deferred {
		if !seen[d.ItemID] {
			kept = append(kept, d)
		}
	}
	res.Deferred = kept

	// Must-include is a hard constraint.
	for _, id := range in.Criteria.MustInclude {
		if seen[id] {
			continue
		}
		if !poolIDs[id] {
			res.Warnings = append(res.Warnings, fmt.Sprintf("must-include item %s is not in the candidate pool", id))
			continue
		}
		res.SelectedIDs = append(res.SelectedIDs, id)
		seen[id] = true
		res.Deferred = removeDeferredID(res.Deferred, id)
		res.Scores = append(res.Scores, planning.ScoredItem{
			ItemID:    id,
			Score:     100,
			Rationale: "must-include item restored by validation",
		})
		res.Warnings = append(res.Warnings, fmt.Sprintf("must-include item %s was missing from the selection and has been added", id))
	}

	for i := range res.Scores {
		if res.Scores[i].Score < 0 {
			res.Scores[i].Score = 0
		}
		if res.Scores[i].Score > 100 {
			res.Scores[i].Score = 100
		}
	}
}

func removeDeferredID(deferred []planning.DeferredItem, id string) []planning.DeferredItem {
	out := deferred[:0]
	for _, d := range deferred {
		if d.ItemID != id {
			out = append(out, d)
		}
	}
	return out
}
