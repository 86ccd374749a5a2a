// Package agents integrates the three reasoning capabilities —
// organizing, selection, and editing — over the reasoning client.
// Each integration builds a prompt, runs the structured call under the
// retry budget, and validates the parsed response at the boundary
// before any of it reaches the orchestrator.
package agents

import (
	"context"
	"fmt"
	"strings"
	"time"

	"plannerd/internal/config"
	"plannerd/internal/logging"
	"plannerd/internal/planning"
	"plannerd/internal/reasoning"
	"plannerd/internal/review"
)

// OrganizingAgent runs the dialogue, execution, assignment, and
// adjustment-interpretation operations.
type OrganizingAgent struct {
	client reasoning.Client
	retry  reasoning.RetryConfig
}

// NewOrganizingAgent wires the agent to a reasoning client.
func NewOrganizingAgent(client reasoning.Client, timeouts config.ReasoningTimeouts) *OrganizingAgent {
	return &OrganizingAgent{
		client: client,
		retry:  retryConfig(timeouts, timeouts.PerCallTimeout),
	}
}

// Dialogue produces the pre-approval proposal: approach, priorities,
// implied new items, and per-member workload estimates.
func (a *OrganizingAgent) Dialogue(ctx context.Context, input planning.PlanningInput) (*planning.DialogueResult, error) {
	prompt := buildDialoguePrompt(input)

	var result planning.DialogueResult
	err := reasoning.Do(ctx, a.retry, "organizing.dialogue", func(ctx context.Context) error {
		return reasoning.CompleteJSON(ctx, a.client, organizingSystemPrompt, prompt, &result)
	})
	if err != nil {
		return nil, fmt.Errorf("organizing dialogue failed: %w", err)
	}

	if strings.TrimSpace(result.Approach) == "" {
		return nil, fmt.Errorf("organizing dialogue response missing approach")
	}
	// Clarification is the capability's judgment, but a response that
	// asks questions always needs it.
	if len(result.Questions) > 0 {
		result.NeedsClarification = true
	}

	logging.Organizing("dialogue: %d priorities, %d new items, clarification=%v",
		len(result.Priorities), len(result.NewItems), result.NeedsClarification)
	return &result, nil
}

// Execution categorizes the approved intent into priorities, an
// editing guide, and selection criteria.
func (a *OrganizingAgent) Execution(ctx context.Context, input planning.PlanningInput, approval planning.Approval) (*planning.ExecutionResult, error) {
	prompt := buildExecutionPrompt(input, approval)

	var result planning.ExecutionResult
	err := reasoning.Do(ctx, a.retry, "organizing.execution", func(ctx context.Context) error {
		return reasoning.CompleteJSON(ctx, a.client, organizingSystemPrompt, prompt, &result)
	})
	if err != nil {
		return nil, fmt.Errorf("organizing execution failed: %w", err)
	}

	if len(result.Priorities) == 0 {
		return nil, fmt.Errorf("organizing execution response missing priority indicators")
	}
	for i := range result.Priorities {
		switch result.Priorities[i].Type {
		case planning.PriorityFocus, planning.PriorityAvoid, planning.PriorityBalance:
		default:
			result.Priorities[i].Type = planning.PriorityBalance
		}
	}

	logging.Organizing("execution: %d priorities, guide empty=%v, nextPhase hint=%q",
		len(result.Priorities), result.EditingGuide.Empty(), result.NextPhase)
	return &result, nil
}

// AssignTasks maps every selected item to a (person, day) pair with a
// rationale. Coverage of the input set is validated by the caller.
func (a *OrganizingAgent) AssignTasks(ctx context.Context, selectedIDs []string, items []planning.WorkItem, members []planning.TeamMember, input planning.PlanningInput) (*planning.AssignmentResult, error) {
	prompt := buildAssignPrompt(selectedIDs, items, members, input)

	var result planning.AssignmentResult
	err := reasoning.Do(ctx, a.retry, "organizing.assign", func(ctx context.Context) error {
		return reasoning.CompleteJSON(ctx, a.client, organizingSystemPrompt, prompt, &result)
	})
	if err != nil {
		return nil, fmt.Errorf("task assignment failed: %w", err)
	}

	// Normalize day buckets; unknown values land in anytime rather
	// than poisoning the plan document later.
	for i := range result.Assignments {
		day := planning.DayBucket(strings.ToLower(string(result.Assignments[i].Day)))
		if !planning.ValidBucket(day) {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("unknown day %q for task %s, scheduled as anytime", result.Assignments[i].Day, result.Assignments[i].TaskID))
			day = planning.Anytime
		}
		result.Assignments[i].Day = day
	}

	logging.Organizing("assign: %d assignments for %d selected items", len(result.Assignments), len(selectedIDs))
	return &result, nil
}

// InterpretSelectionAdjustment translates a free-text review command
// into structured selection deltas.
func (a *OrganizingAgent) InterpretSelectionAdjustment(ctx context.Context, command string, data review.SelectionReviewData) (*planning.AdjustmentInterpretation, error) {
	prompt := buildInterpretSelectionPrompt(command, data)

	var result planning.AdjustmentInterpretation
	err := reasoning.Do(ctx, a.retry, "organizing.interpretSelection", func(ctx context.Context) error {
		return reasoning.CompleteJSON(ctx, a.client, organizingSystemPrompt, prompt, &result)
	})
	if err != nil {
		return nil, fmt.Errorf("selection adjustment interpretation failed: %w", err)
	}
	if result.Selection == nil {
		return nil, fmt.Errorf("interpretation carried no selection changes")
	}
	return &result, nil
}

// InterpretAssignmentAdjustment translates a free-text review command
// into structured reassignment deltas.
func (a *OrganizingAgent) InterpretAssignmentAdjustment(ctx context.Context, command string, data review.AssignmentReviewData) (*planning.AdjustmentInterpretation, error) {
	prompt := buildInterpretAssignmentPrompt(command, data)

	var result planning.AdjustmentInterpretation
	err := reasoning.Do(ctx, a.retry, "organizing.interpretAssignment", func(ctx context.Context) error {
		return reasoning.CompleteJSON(ctx, a.client, organizingSystemPrompt, prompt, &result)
	})
	if err != nil {
		return nil, fmt.Errorf("assignment adjustment interpretation failed: %w", err)
	}
	if result.Assignment == nil {
		return nil, fmt.Errorf("interpretation carried no assignment changes")
	}
	return &result, nil
}

// retryConfig maps the shared timeout knobs onto one call profile.
func retryConfig(t config.ReasoningTimeouts, callTimeout time.Duration) reasoning.RetryConfig {
	cfg := reasoning.DefaultRetryConfig()
	if t.MaxRetries > 0 {
		cfg.MaxAttempts = t.MaxRetries
	}
	if t.RetryBackoffBase > 0 {
		cfg.BackoffBase = t.RetryBackoffBase
	}
	if t.RetryBackoffMax > 0 {
		cfg.BackoffMax = t.RetryBackoffMax
	}
	if callTimeout > 0 {
		cfg.CallTimeout = callTimeout
	}
	return cfg
}
