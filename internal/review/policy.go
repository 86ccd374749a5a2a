package review

import (
	"fmt"

	"plannerd/internal/planning"
)

// CheckpointType names a review gate.
type CheckpointType string

const (
	CheckpointSelection  CheckpointType = "selection"
	CheckpointAssignment CheckpointType = "assignment"
)

// Decision is a skip-or-show verdict with its reason.
type Decision struct {
	Skip   bool   `json:"skip"`
	Reason string `json:"reason"`
}

func show(reason string) Decision { return Decision{Skip: false, Reason: reason} }
func skip(reason string) Decision { return Decision{Skip: true, Reason: reason} }

// ShouldSkipCheckpoint decides whether a checkpoint's review may be
// bypassed. Pure and deterministic: identical inputs always produce
// the identical decision, and doubt resolves toward showing the
// review, never hiding one.
//
// Order of evaluation: no preferences -> show; periodic forced
// check-in -> show; checkpoint skip flag off -> show; otherwise the
// checkpoint-specific numeric conditions.
func ShouldSkipCheckpoint(checkpoint CheckpointType, metrics Metrics, warnings []string, prefs *planning.SkipPreferences, runCounter int) Decision {
	if prefs == nil {
		return show("no skip preferences configured")
	}

	// A counter of zero is itself a multiple of everyNthRun, so the
	// very first evaluation of an unstarted counter forces a show.
	if prefs.EveryNthRun > 0 && runCounter%prefs.EveryNthRun == 0 {
		return show(fmt.Sprintf("periodic forced review (run %d)", runCounter))
	}

	switch checkpoint {
	case CheckpointSelection:
		return evalSelection(metrics, warnings, prefs.Selection)
	case CheckpointAssignment:
		return evalAssignment(metrics, warnings, prefs.Assignment)
	default:
		return show(fmt.Sprintf("unknown checkpoint type %q", checkpoint))
	}
}

func evalSelection(metrics Metrics, warnings []string, cfg planning.CheckpointSkipConfig) Decision {
	if !cfg.Enabled {
		return show("selection review skip disabled")
	}

	maxTasks := cfg.MaxTasks
	if maxTasks <= 0 {
		maxTasks = 20
	}
	minUtil := cfg.MinUtilizationPct
	if minUtil <= 0 {
		minUtil = 70
	}

	if metrics.SelectedCount > maxTasks {
		return show(fmt.Sprintf("Too many selected tasks (%d > %d)", metrics.SelectedCount, maxTasks))
	}
	if metrics.CapacityUtilizationPct < minUtil {
		return show(fmt.Sprintf("Low capacity utilization (%.1f%% < %.1f%%)", metrics.CapacityUtilizationPct, minUtil))
	}
	if cfg.SkipOnlyIfNoWarnings && len(warnings) > 0 {
		return show(fmt.Sprintf("Warnings present (%d)", len(warnings)))
	}
	return skip("selection within configured thresholds")
}

func evalAssignment(metrics Metrics, warnings []string, cfg planning.CheckpointSkipConfig) Decision {
	if !cfg.Enabled {
		return show("assignment review skip disabled")
	}

	maxCV := cfg.MaxWorkloadCV
	if maxCV <= 0 {
		maxCV = 0.20
	}

	if metrics.WorkloadCV > maxCV {
		return show(fmt.Sprintf("Unbalanced workload (CV %.2f > %.2f)", metrics.WorkloadCV, maxCV))
	}
	if metrics.HasOverloaded() {
		return show("A member's workload is overloaded")
	}
	if cfg.SkipOnlyIfNoWarnings && len(warnings) > 0 {
		return show(fmt.Sprintf("Warnings present (%d)", len(warnings)))
	}
	return skip("assignment workload balanced")
}
