package planning

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DialoguePhase tags where the pre-approval conversation stands.
type DialoguePhase string

const (
	DialogueInitial       DialoguePhase = "initial"
	DialogueClarification DialoguePhase = "clarification"
	DialogueApproved      DialoguePhase = "approved"
)

// PhaseName identifies one pipeline phase in the execution trace.
type PhaseName string

const (
	PhaseOrganizing       PhaseName = "organizing"
	PhaseEditing          PhaseName = "editing"
	PhaseSelection        PhaseName = "selection"
	PhaseSelectionReview  PhaseName = "selection_review"
	PhaseAssignment       PhaseName = "assignment"
	PhaseAssignmentReview PhaseName = "assignment_review"
	PhasePlanGeneration   PhaseName = "plan_generation"
)

// DialogueState is the pre-approval slice of a session.
type DialogueState struct {
	Phase           DialoguePhase `json:"phase"`
	LastApproach    string        `json:"lastApproach,omitempty"`
	FeedbackHistory []string      `json:"feedbackHistory,omitempty"`
	Iterations      int           `json:"iterations"`
}

// ExecutionResults is the per-phase results bag. Each slot is set at
// most once per attempt; a retried phase overwrites only its own slot.
type ExecutionResults struct {
	Execution           *ExecutionResult    `json:"execution,omitempty"`
	Editing             *EditingResult      `json:"editing,omitempty"`
	Selection           *SelectionResult    `json:"selection,omitempty"`
	Assignment          *AssignmentResult   `json:"assignment,omitempty"`
	ReviewedSelection   *SelectionResult    `json:"reviewedSelection,omitempty"`
	ReviewedAssignments *AssignmentResult   `json:"reviewedAssignments,omitempty"`
	FinalPlan           *WeeklyPlanDocument `json:"finalPlan,omitempty"`
}

// ExecutionState exists only once ExecuteApprovedPlan has been called.
// CompletedPhases is append-only, so a crash leaves an inspectable
// partial trace.
type ExecutionState struct {
	CurrentPhase    PhaseName        `json:"currentPhase,omitempty"`
	CompletedPhases []PhaseName      `json:"completedPhases"`
	Results         ExecutionResults `json:"results"`

	// Forced-review run counters, one per checkpoint type so the
	// assignment checkpoint is not undercounted.
	SelectionReviewRuns  int `json:"selectionReviewRuns"`
	AssignmentReviewRuns int `json:"assignmentReviewRuns"`
}

// Completed reports whether the named phase is in the trace.
func (s *ExecutionState) Completed(phase PhaseName) bool {
	for _, p := range s.CompletedPhases {
		if p == phase {
			return true
		}
	}
	return false
}

// MarkCompleted appends phase to the trace exactly once.
func (s *ExecutionState) MarkCompleted(phase PhaseName) {
	if !s.Completed(phase) {
		s.CompletedPhases = append(s.CompletedPhases, phase)
	}
}

// Session is the state of one planning attempt. It is a plain value:
// orchestrator functions operate on a session fetched from the store
// and write it back, rather than holding it in a process singleton.
type Session struct {
	ID         string    `json:"id"`
	UserID     string    `json:"userId,omitempty"`
	TeamID     string    `json:"teamId,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
	LastActive time.Time `json:"lastActive"`

	Dialogue  DialogueState    `json:"dialogue"`
	Execution *ExecutionState  `json:"execution,omitempty"`
	SkipPrefs *SkipPreferences `json:"skipPrefs,omitempty"`
}

// NewSessionID mints an opaque session identifier.
func NewSessionID() string {
	return "session-" + uuid.NewString()
}

// NewSession creates a fresh pre-dialogue session.
func NewSession(userID, teamID string) *Session {
	now := time.Now()
	return &Session{
		ID:         NewSessionID(),
		UserID:     userID,
		TeamID:     teamID,
		CreatedAt:  now,
		LastActive: now,
		Dialogue:   DialogueState{Phase: DialogueInitial},
	}
}

// EnsureExecution lazily initializes execution state on first use.
func (s *Session) EnsureExecution() *ExecutionState {
	if s.Execution == nil {
		s.Execution = &ExecutionState{}
	}
	return s.Execution
}

// Touch refreshes the inactivity clock.
func (s *Session) Touch() {
	s.LastActive = time.Now()
}

// DefaultSessionTimeout is how long an idle session survives.
const DefaultSessionTimeout = 30 * time.Minute

// SessionStore is a mutex-guarded map of live sessions keyed by id,
// with a background sweeper evicting idle ones. Injected into request
// handlers; there is deliberately no package-level instance.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	timeout  time.Duration

	sweepStop chan struct{}
	sweepOnce sync.Once
}

// NewSessionStore creates a store with the given idle timeout.
// A timeout of zero uses DefaultSessionTimeout.
func NewSessionStore(timeout time.Duration) *SessionStore {
	if timeout <= 0 {
		timeout = DefaultSessionTimeout
	}
	return &SessionStore{
		sessions:  make(map[string]*Session),
		timeout:   timeout,
		sweepStop: make(chan struct{}),
	}
}

// Get returns the session or an error if unknown.
func (st *SessionStore) Get(id string) (*Session, error) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	s, ok := st.sessions[id]
	if !ok {
		return nil, fmt.Errorf("session %s not found", id)
	}
	return s, nil
}

// Put stores (or replaces) a session.
func (st *SessionStore) Put(s *Session) {
	st.mu.Lock()
	defer st.mu.Unlock()
	s.Touch()
	st.sessions[s.ID] = s
}

// GetOrCreate returns the session with the given id, synthesizing one
// when absent. Synthesized sessions support stateless deployments
// where the process did not survive between calls; they start in the
// approved dialogue phase since no dialogue can be replayed.
func (st *SessionStore) GetOrCreate(id, userID, teamID string) *Session {
	st.mu.Lock()
	defer st.mu.Unlock()

	if id != "" {
		if s, ok := st.sessions[id]; ok {
			s.Touch()
			return s
		}
	}

	s := NewSession(userID, teamID)
	if id != "" {
		s.ID = id
	}
	s.Dialogue.Phase = DialogueApproved
	st.sessions[s.ID] = s
	return s
}

// Delete removes a session. Missing ids are a no-op.
func (st *SessionStore) Delete(id string) {
	st.mu.Lock()
	defer st.mu.Unlock()
	delete(st.sessions, id)
}

// Len returns the number of live sessions.
func (st *SessionStore) Len() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.sessions)
}

// Sweep evicts sessions idle past the timeout and returns how many
// were removed.
func (st *SessionStore) Sweep(now time.Time) int {
	st.mu.Lock()
	defer st.mu.Unlock()

	removed := 0
	for id, s := range st.sessions {
		if now.Sub(s.LastActive) > st.timeout {
			delete(st.sessions, id)
			removed++
		}
	}
	return removed
}

// StartSweeper launches the background eviction loop. Safe to call
// once; Stop terminates it.
func (st *SessionStore) StartSweeper(interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-st.sweepStop:
				return
			case now := <-ticker.C:
				st.Sweep(now)
			}
		}
	}()
}

// Stop terminates the sweeper loop.
func (st *SessionStore) Stop() {
	st.sweepOnce.Do(func() { close(st.sweepStop) })
}
