package planning

import "testing"

func TestMaxTasksForClasses(t *testing.T) {
	tests := []struct {
		class CapacityClass
		want  int
	}{
		{CapacityYoung, 5},
		{CapacityMiddle, 8},
		{CapacityTeen, 12},
		{CapacityAdult, 15},
	}
	for _, tt := range tests {
		m := TeamMember{ID: "m", Name: "Unrelated", CapacityClass: tt.class}
		if got := MaxTasksFor(m); got != tt.want {
			t.Errorf("class %s: got %d, want %d", tt.class, got, tt.want)
		}
	}
}

func TestMaxTasksForNameFallback(t *testing.T) {
	tests := []struct {
		name string
		want int
	}{
		{"June", 5},
		{"Maxine", 8}, // substring match on "max"
		{"Leo", 8},
		{"Harper", 12},
		{"Mom", 15},
		{"Somebody Else", 15}, // adult default
	}
	for _, tt := range tests {
		m := TeamMember{ID: "m", Name: tt.name}
		if got := MaxTasksFor(m); got != tt.want {
			t.Errorf("name %q: got %d, want %d", tt.name, got, tt.want)
		}
	}
}

func TestClassBeatsName(t *testing.T) {
	m := TeamMember{ID: "m", Name: "June", CapacityClass: CapacityAdult}
	if got := MaxTasksFor(m); got != 15 {
		t.Errorf("explicit class must win over name hint, got %d", got)
	}
}

func TestTeamCapacity(t *testing.T) {
	members := []TeamMember{
		{ID: "a", CapacityClass: CapacityYoung},
		{ID: "b", CapacityClass: CapacityTeen},
	}
	caps := TeamCapacity(members)
	if caps["a"] != 5 || caps["b"] != 12 {
		t.Errorf("unexpected capacities: %v", caps)
	}
	if got := TotalCapacity(caps); got != 17 {
		t.Errorf("TotalCapacity: got %d, want 17", got)
	}
}
