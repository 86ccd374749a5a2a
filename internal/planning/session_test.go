package planning

import (
	"testing"
	"time"

	"go.uber.org/goleak"
)

func TestSessionStoreGetPutDelete(t *testing.T) {
	st := NewSessionStore(time.Hour)
	defer st.Stop()

	if _, err := st.Get("missing"); err == nil {
		t.Fatal("expected error for unknown session")
	}

	s := NewSession("user-1", "team-1")
	st.Put(s)

	got, err := st.Get(s.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.UserID != "user-1" || got.TeamID != "team-1" {
		t.Errorf("unexpected session: %+v", got)
	}

	st.Delete(s.ID)
	if _, err := st.Get(s.ID); err == nil {
		t.Error("session should be gone after Delete")
	}
}

func TestGetOrCreateSynthesizesApprovedSession(t *testing.T) {
	st := NewSessionStore(time.Hour)
	defer st.Stop()

	s := st.GetOrCreate("session-restarted", "u", "tm")
	if s.ID != "session-restarted" {
		t.Errorf("synthesized session must keep the requested id, got %s", s.ID)
	}
	if s.Dialogue.Phase != DialogueApproved {
		t.Errorf("synthesized session must start approved, got %s", s.Dialogue.Phase)
	}

	again := st.GetOrCreate("session-restarted", "", "")
	if again != s {
		t.Error("second lookup must return the same session")
	}
}

func TestSweepEvictsIdleSessions(t *testing.T) {
	st := NewSessionStore(10 * time.Minute)
	defer st.Stop()

	fresh := NewSession("u", "tm")
	stale := NewSession("u", "tm")
	st.Put(fresh)
	st.Put(stale)
	stale.LastActive = time.Now().Add(-time.Hour)

	removed := st.Sweep(time.Now())
	if removed != 1 {
		t.Fatalf("expected 1 eviction, got %d", removed)
	}
	if _, err := st.Get(fresh.ID); err != nil {
		t.Error("fresh session must survive the sweep")
	}
	if _, err := st.Get(stale.ID); err == nil {
		t.Error("stale session must be evicted")
	}
}

func TestSweeperGoroutineStops(t *testing.T) {
	defer goleak.VerifyNone(t)

	st := NewSessionStore(time.Minute)
	st.StartSweeper(time.Millisecond)
	time.Sleep(5 * time.Millisecond)
	st.Stop()
	time.Sleep(5 * time.Millisecond)
}

func TestExecutionStatePhaseTrace(t *testing.T) {
	s := NewSession("u", "tm")
	exec := s.EnsureExecution()

	if exec.Completed(PhaseSelection) {
		t.Fatal("fresh state must have no completed phases")
	}
	exec.MarkCompleted(PhaseSelection)
	exec.MarkCompleted(PhaseSelection)
	if len(exec.CompletedPhases) != 1 {
		t.Errorf("MarkCompleted must be idempotent, got %v", exec.CompletedPhases)
	}
	if !exec.Completed(PhaseSelection) {
		t.Error("phase should be recorded")
	}

	if s.EnsureExecution() != exec {
		t.Error("EnsureExecution must not replace existing state")
	}
}
