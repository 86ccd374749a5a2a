package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"plannerd/internal/orchestrator"
	"plannerd/internal/planning"
)

var (
	planInputPath string
	planYes       bool
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Run one planning attempt from an input file",
	Long: `Reads the planning input (team, backlog, instructions) from a YAML
file, proposes an approach, and with --yes executes the full pipeline,
approving every review checkpoint. The final plan document is printed
as JSON.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		input, err := loadPlanningInput(planInputPath)
		if err != nil {
			return err
		}

		st, sessions, orch, err := buildEngine(ctx)
		if err != nil {
			return err
		}
		defer st.Close()
		defer sessions.Stop()

		// Past weeks give the proposal continuity context.
		if input.TeamID != "" && len(input.RecentPlans) == 0 {
			if recent, err := st.RecentPlans(input.TeamID, 4); err == nil {
				input.RecentPlans = recent
			}
		}

		out, err := orch.StartDialogue(ctx, input)
		if err != nil {
			return err
		}

		fmt.Printf("Proposed approach:\n%s\n\n", out.Dialogue.Approach)
		for _, p := range out.Dialogue.Priorities {
			fmt.Printf("  - %s\n", p)
		}
		if out.Dialogue.NeedsClarification {
			fmt.Println("\nThe proposal needs clarification:")
			for _, q := range out.Dialogue.Questions {
				fmt.Printf("  ? %s\n", q)
			}
			return nil
		}
		if !planYes {
			fmt.Printf("\nSession %s is ready; re-run with --yes to execute.\n", out.SessionID)
			return nil
		}

		return runPipeline(ctx, orch, out.SessionID, input)
	},
}

func init() {
	planCmd.Flags().StringVarP(&planInputPath, "input", "i", "", "path to the planning input file (required)")
	planCmd.Flags().BoolVarP(&planYes, "yes", "y", false, "approve the proposal and every review checkpoint")
	planCmd.MarkFlagRequired("input")
}

// runPipeline drives execution to completion, approving each review
// checkpoint as it pauses.
func runPipeline(ctx context.Context, orch *orchestrator.Orchestrator, sessionID string, input planning.PlanningInput) error {
	approval := planning.Approval{Approved: true}

	for {
		out, err := orch.ExecuteApprovedPlan(ctx, sessionID, input, approval)
		if err != nil {
			return err
		}
		for _, n := range out.Notes {
			fmt.Printf("note: %s\n", n)
		}

		switch out.Status {
		case orchestrator.StatusComplete:
			return printJSON(out.Plan)
		case orchestrator.StatusPaused:
			fmt.Printf("checkpoint %s: %s (auto-approving)\n", out.Phase, out.Reason)
			req := orchestrator.ReviewRequest{Approve: true}
			if out.Phase == planning.PhaseSelectionReview {
				_, err = orch.ApplySelectionReview(ctx, out.SessionID, input, req)
			} else {
				_, err = orch.ApplyAssignmentReview(ctx, out.SessionID, input, req)
			}
			if err != nil {
				return err
			}
		default:
			return fmt.Errorf("unexpected pipeline status %q", out.Status)
		}
	}
}

func loadPlanningInput(path string) (planning.PlanningInput, error) {
	var input planning.PlanningInput
	data, err := os.ReadFile(path)
	if err != nil {
		return input, fmt.Errorf("failed to read input file: %w", err)
	}
	if err := yaml.Unmarshal(data, &input); err != nil {
		return input, fmt.Errorf("failed to parse input file: %w", err)
	}
	return input, nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
