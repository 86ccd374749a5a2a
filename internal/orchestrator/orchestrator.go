// Package orchestrator sequences the planning pipeline: organizing,
// conditional editing, selection, the selection review gate,
// assignment, the assignment review gate, and final plan generation.
// All state lives in the session; every entry point takes a session id
// and the full planning input so a restarted process can resume from
// the recorded phase trace.
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

// PlanStore persists finished plans and allocates version numbers.
// Nil is allowed; plans are then returned to the caller only.
type PlanStore interface {
	NextVersion(teamID string, weekStart time.Time) (int, error)
	SavePlan(teamID string, weekStart time.Time, doc *planning.WeeklyPlanDocument) error
}

// SessionSnapshots is the durable copy of session state. With it
// configured, a fresh process can pick up a paused attempt whose
// in-memory session died with its instance. Nil is allowed.
type SessionSnapshots interface {
	SaveSessionSnapshot(sess *planning.Session) error
	LoadSessionSnapshot(sessionID string) (*planning.Session, error)
	DeleteSessionSnapshot(sessionID string) error
}

// Config wires the orchestrator's collaborators.
type Config struct {
	Sessions   *planning.SessionStore
	Organizing *agents.OrganizingAgent
	Selection  *agents.SelectionAgent
	Editing    *agents.EditingAgent
	Plans      PlanStore
	Snapshots  SessionSnapshots
}

// Orchestrator drives one planning attempt per session.
type Orchestrator struct {
	sessions   *planning.SessionStore
	organizing *agents.OrganizingAgent
	selection  *agents.SelectionAgent
	editing    *agents.EditingAgent
	plans      PlanStore
	snapshots  SessionSnapshots
}

// New builds an orchestrator from its config.
func New(cfg Config) *Orchestrator {
	return &Orchestrator{
		sessions:   cfg.Sessions,
		organizing: cfg.Organizing,
		selection:  cfg.Selection,
		editing:    cfg.Editing,
		plans:      cfg.Plans,
		snapshots:  cfg.Snapshots,
	}
}

// persist writes the session to the live store and, when configured,
// the durable snapshot. Snapshot failures are logged, not fatal: the
// in-memory copy still serves this process.
func (o *Orchestrator) persist(sess *planning.Session) {
	o.sessions.Put(sess)
	if o.snapshots != nil {
		if err := o.snapshots.SaveSessionSnapshot(sess); err != nil {
			logging.Session("snapshot of session %s failed: %v", sess.ID, err)
		}
	}
}

// loadSession fetches the live session, falls back to the durable
// snapshot, and finally synthesizes an approved session so calls from
// an instance that did not run the earlier phases never fail outright.
func (o *Orchestrator) loadSession(id, userID, teamID string) *planning.Session {
	if id != "" {
		if sess, err := o.sessions.Get(id); err == nil {
			return sess
		}
		if o.snapshots != nil {
			if sess, err := o.snapshots.LoadSessionSnapshot(id); err == nil {
				logging.Session("session %s restored from snapshot", id)
				o.sessions.Put(sess)
				return sess
			}
		}
	}
	return o.sessions.GetOrCreate(id, userID, teamID)
}

// Status tags what the caller should do next.
type Status string

const (
	// StatusDialogue means a proposal (possibly with questions) awaits
	// admin approval.
	StatusDialogue Status = "dialogue"
	// StatusPaused means execution stopped at a review checkpoint.
	StatusPaused Status = "paused"
	// StatusComplete means the final plan document is ready.
	StatusComplete Status = "complete"
)

// Output is the uniform result of every orchestrator entry point.
// Exactly one of Dialogue, SelectionReview, AssignmentReview, or Plan
// is populated depending on Status and Phase.
type Output struct {
	SessionID string             `json:"sessionId"`
	Status    Status             `json:"status"`
	Phase     planning.PhaseName `json:"phase,omitempty"`
	Reason    string             `json:"reason,omitempty"`

	Dialogue         *planning.DialogueResult     `json:"dialogue,omitempty"`
	SelectionReview  *review.SelectionReviewData  `json:"selectionReview,omitempty"`
	AssignmentReview *review.AssignmentReviewData `json:"assignmentReview,omitempty"`
	Plan             *planning.WeeklyPlanDocument `json:"plan,omitempty"`

	// Notes records skipped checkpoints and coverage repairs so the
	// admin can audit what ran unattended.
	Notes []string `json:"notes,omitempty"`
}

// StartDialogue opens (or continues) the pre-approval conversation.
// Repeated calls with the same session id iterate on the approach
// using the latest admin instructions as feedback.
func (o *Orchestrator) StartDialogue(ctx context.Context, input planning.PlanningInput) (*Output, error) {
	if strings.TrimSpace(input.AdminInstructions) == "" {
		return nil, fmt.Errorf("admin instructions are required")
	}
	if len(input.TeamMembers) == 0 {
		return nil, fmt.Errorf("at least one team member is required")
	}

	var sess *planning.Session
	if input.SessionID != "" {
		if existing, err := o.sessions.Get(input.SessionID); err == nil {
			sess = existing
		}
	}
	if sess == nil {
		sess = planning.NewSession(input.UserID, input.TeamID)
		if input.SessionID != "" {
			sess.ID = input.SessionID
		}
	}

	result, err := o.organizing.Dialogue(ctx, input)
	if err != nil {
		return nil, err
	}

	sess.Dialogue.Iterations++
	sess.Dialogue.LastApproach = result.Approach
	if sess.Dialogue.Iterations > 1 {
		sess.Dialogue.FeedbackHistory = append(sess.Dialogue.FeedbackHistory, input.AdminInstructions)
	}
	if result.NeedsClarification {
		sess.Dialogue.Phase = planning.DialogueClarification
	} else {
		sess.Dialogue.Phase = planning.DialogueInitial
	}
	o.persist(sess)

	logging.Session("dialogue iteration %d for session %s (clarification=%v)",
		sess.Dialogue.Iterations, sess.ID, result.NeedsClarification)

	return &Output{
		SessionID: sess.ID,
		Status:    StatusDialogue,
		Dialogue:  result,
	}, nil
}

// SetSkipPreferences attaches the review skip policy to a session,
// creating the session when it does not exist yet.
func (o *Orchestrator) SetSkipPreferences(sessionID string, prefs planning.SkipPreferences) string {
	sess := o.loadSession(sessionID, "", "")
	p := prefs
	sess.SkipPrefs = &p
	o.persist(sess)
	return sess.ID
}

// ClearSession drops a session's state entirely, snapshot included.
func (o *Orchestrator) ClearSession(sessionID string) {
	o.sessions.Delete(sessionID)
	if o.snapshots != nil {
		if err := o.snapshots.DeleteSessionSnapshot(sessionID); err != nil {
			logging.Session("deleting snapshot of session %s failed: %v", sessionID, err)
		}
	}
	logging.Session("session %s cleared", sessionID)
}
