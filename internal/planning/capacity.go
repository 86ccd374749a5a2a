package planning

import "strings"

// Per-class weekly task budgets.
const (
	capacityYoungMax  = 5
	capacityMiddleMax = 8
	capacityTeenMax   = 12
	capacityAdultMax  = 15
)

// nameCapacityHints is the legacy fallback: case-insensitive name
// substrings mapped to capacity classes. Consulted only for members
// that carry no explicit CapacityClass. The roster-coupled matching is
// kept for compatibility with existing deployments; the class
// attribute is the supported path.
var nameCapacityHints = map[string]CapacityClass{
	"june":   CapacityYoung,
	"max":    CapacityMiddle,
	"leo":    CapacityMiddle,
	"harper": CapacityTeen,
	"mom":    CapacityAdult,
	"dad":    CapacityAdult,
	"admin":  CapacityAdult,
}

// MaxTasksFor returns a member's weekly task budget from their
// capacity class, falling back to name matching and finally the adult
// default.
func MaxTasksFor(m TeamMember) int {
	class := m.CapacityClass
	if class == "" {
		class = classFromName(m.Name)
	}
	switch class {
	case CapacityYoung:
		return capacityYoungMax
	case CapacityMiddle:
		return capacityMiddleMax
	case CapacityTeen:
		return capacityTeenMax
	default:
		return capacityAdultMax
	}
}

func classFromName(name string) CapacityClass {
	lower := strings.ToLower(name)
	for hint, class := range nameCapacityHints {
		if strings.Contains(lower, hint) {
			return class
		}
	}
	return CapacityAdult
}

// TeamCapacity computes each member's budget once per attempt.
func TeamCapacity(members []TeamMember) map[string]int {
	caps := make(map[string]int, len(members))
	for _, m := range members {
		caps[m.ID] = MaxTasksFor(m)
	}
	return caps
}

// TotalCapacity sums a capacity map.
func TotalCapacity(caps map[string]int) int {
	total := 0
	for _, c := range caps {
		total += c
	}
	return total
}
