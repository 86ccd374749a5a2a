package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"plannerd/internal/agents"
	"plannerd/internal/config"
	"plannerd/internal/planning"
)

// scriptedClient routes each reasoning call to a canned response by
// recognizing the request kind, counting calls along the way.
type scriptedClient struct {
	mu    sync.Mutex
	calls map[string]int

	executionJSON  string
	selectionJSON  string
	assignmentJSON string
	editingJSON    string
	interpJSON     string
	planDoc        *planning.WeeklyPlanDocument
}

func (c *scriptedClient) count(kind string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.calls == nil {
		c.calls = make(map[string]int)
	}
	c.calls[kind]++
}

func (c *scriptedClient) callCount(kind string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls[kind]
}

func (c *scriptedClient) Complete(ctx context.Context, prompt string) (string, error) {
	return c.CompleteWithSystem(ctx, "", prompt)
}

func (c *scriptedClient) CompleteWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	switch {
	case strings.Contains(userPrompt, "Propose an approach"):
		c.count("dialogue")
		return `{"approach": "balanced week", "priorities": ["homework"]}`, nil
	case strings.Contains(userPrompt, "Categorize the admin intent"):
		c.count("execution")
		return c.executionJSON, nil
	case strings.Contains(userPrompt, "Materialize the guide"):
		c.count("editing")
		return c.editingJSON, nil
	case strings.Contains(userPrompt, "Interpret the command as selection changes"):
		c.count("interpretSelection")
		return c.interpJSON, nil
	case strings.Contains(userPrompt, `"selectedIds"`):
		c.count("selection")
		return c.selectionJSON, nil
	case strings.Contains(userPrompt, "Assign every selected item"):
		c.count("assignment")
		return c.assignmentJSON, nil
	case strings.Contains(userPrompt, "Assemble the weekly plan"):
		c.count("plan")
		data, err := json.Marshal(c.planDoc)
		if err != nil {
			return "", err
		}
		return string(data), nil
	default:
		return "", fmt.Errorf("unrecognized prompt: %.80s", userPrompt)
	}
}

func fastTimeouts() config.ReasoningTimeouts {
	return config.ReasoningTimeouts{
		PerCallTimeout:        time.Second,
		PlanGenerationTimeout: time.Second,
		RetryBackoffBase:      time.Millisecond,
		RetryBackoffMax:       2 * time.Millisecond,
		MaxRetries:            2,
	}
}

// fakeSnapshotStore holds session snapshots as serialized bytes so a
// restored session never shares memory with the saved one, matching
// what a second process would see.
type fakeSnapshotStore struct {
	mu    sync.Mutex
	snaps map[string][]byte
}

func (f *fakeSnapshotStore) SaveSessionSnapshot(sess *planning.Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, err := json.Marshal(sess)
	if err != nil {
		return err
	}
	if f.snaps == nil {
		f.snaps = make(map[string][]byte)
	}
	f.snaps[sess.ID] = data
	return nil
}

func (f *fakeSnapshotStore) LoadSessionSnapshot(sessionID string) (*planning.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.snaps[sessionID]
	if !ok {
		return nil, fmt.Errorf("session snapshot %s not found", sessionID)
	}
	var sess planning.Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, err
	}
	return &sess, nil
}

func (f *fakeSnapshotStore) DeleteSessionSnapshot(sessionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.snaps, sessionID)
	return nil
}

// fakePlanStore records versioning and persistence calls.
type fakePlanStore struct {
	mu      sync.Mutex
	version int
	saved   []*planning.WeeklyPlanDocument
}

func (f *fakePlanStore) NextVersion(teamID string, weekStart time.Time) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.version++
	return f.version, nil
}

func (f *fakePlanStore) SavePlan(teamID string, weekStart time.Time, doc *planning.WeeklyPlanDocument) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saved = append(f.saved, doc)
	return nil
}

func pipelineMembers() []planning.TeamMember {
	return []planning.TeamMember{
		{ID: "alice", Name: "Alice", CapacityClass: planning.CapacityAdult},
		{ID: "bob", Name: "Bob", CapacityClass: planning.CapacityYoung},
	}
}

func pipelineInput() planning.PlanningInput {
	return planning.PlanningInput{
		TeamID:            "team-1",
		UserID:            "admin",
		AdminInstructions: "Focus on homework this week",
		WeekStart:         time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC),
		TeamMembers:       pipelineMembers(),
		Backlog: []planning.WorkItem{
			{ID: "t1", Description: "math homework", Kind: planning.ItemTask, Importance: 5},
			{ID: "t2", Description: "reading log", Kind: planning.ItemTask, Importance: 4},
			{ID: "t3", Description: "clean garage", Kind: planning.ItemTask, Importance: 2},
		},
	}
}

func fullBuckets(entries map[planning.DayBucket][]planning.ScheduledItem) planning.MemberSchedule {
	sched := make(planning.MemberSchedule, len(planning.AllBuckets))
	for _, b := range planning.AllBuckets {
		sched[b] = []planning.ScheduledItem{}
	}
	for b, items := range entries {
		sched[b] = items
	}
	return sched
}

func scriptedPipelineClient() *scriptedClient {
	return &scriptedClient{
		executionJSON: `{
			"priorities": [{"type": "focus", "target": "homework", "weight": 0.9}],
			"selectionCriteria": {"mustInclude": ["t1"]},
			"selectionNotes": "school comes first"
		}`,
		selectionJSON: `{
			"selectedIds": ["t1", "t2"],
			"scores": [
				{"itemId": "t1", "score": 95, "suggestedAssignee": "alice"},
				{"itemId": "t2", "score": 85, "suggestedAssignee": "bob"}
			],
			"deferred": [{"itemId": "t3", "reason": "low priority this week"}]
		}`,
		assignmentJSON: `{
			"assignments": [
				{"taskId": "t1", "assignedTo": "alice", "scheduledFor": "monday"}
			],
			"summary": "homework early in the week"
		}`,
		planDoc: &planning.WeeklyPlanDocument{
			Title: "Week of Aug 31: homework",
			Assignments: map[string]planning.MemberSchedule{
				"alice": fullBuckets(map[planning.DayBucket][]planning.ScheduledItem{
					planning.Monday: {{
						Item:       planning.WorkItem{ID: "t1", Description: "math homework", Importance: 5},
						AssigneeID: "alice",
						Bucket:     planning.Monday,
					}},
				}),
				"bob": fullBuckets(map[planning.DayBucket][]planning.ScheduledItem{
					planning.Anytime: {{
						Item:       planning.WorkItem{ID: "t2", Description: "reading log", Importance: 4},
						AssigneeID: "bob",
						Bucket:     planning.Anytime,
					}},
				}),
			},
		},
	}
}

func newTestOrchestrator(client *scriptedClient, plans PlanStore) (*Orchestrator, *planning.SessionStore) {
	return newTestOrchestratorWithSnapshots(client, plans, nil)
}

func newTestOrchestratorWithSnapshots(client *scriptedClient, plans PlanStore, snaps SessionSnapshots) (*Orchestrator, *planning.SessionStore) {
	sessions := planning.NewSessionStore(time.Hour)
	orch := New(Config{
		Sessions:   sessions,
		Organizing: agents.NewOrganizingAgent(client, fastTimeouts()),
		Selection:  agents.NewSelectionAgent(client, fastTimeouts()),
		Editing:    agents.NewEditingAgent(client, fastTimeouts()),
		Plans:      plans,
		Snapshots:  snaps,
	})
	return orch, sessions
}

// autoSkipPrefs lets both checkpoints pass for the small fixtures.
func autoSkipPrefs() planning.SkipPreferences {
	return planning.SkipPreferences{
		Selection: planning.CheckpointSkipConfig{
			Enabled:           true,
			MaxTasks:          20,
			MinUtilizationPct: 5,
		},
		Assignment: planning.CheckpointSkipConfig{
			Enabled:       true,
			MaxWorkloadCV: 0.5,
		},
	}
}
