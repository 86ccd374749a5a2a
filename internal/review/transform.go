// Package review builds read-projections of selection and assignment
// results, evaluates the checkpoint skip policy, and applies
// review-time adjustments as pure transforms.
package review

import (
	"fmt"
	"math"

	"plannerd/internal/planning"
)

// WorkloadRating buckets a member's load.
type WorkloadRating string

const (
	RatingLight      WorkloadRating = "light"
	RatingModerate   WorkloadRating = "moderate"
	RatingHeavy      WorkloadRating = "heavy"
	RatingOverloaded WorkloadRating = "overloaded"
)

// RateWorkload classifies hours per day. Half-open intervals: the
// strictly-less comparison puts exactly 2.0 in moderate, 4.0 in heavy
// and 6.0 in overloaded.
func RateWorkload(hoursPerDay float64) WorkloadRating {
	switch {
	case hoursPerDay < 2:
		return RatingLight
	case hoursPerDay < 4:
		return RatingModerate
	case hoursPerDay < 6:
		return RatingHeavy
	default:
		return RatingOverloaded
	}
}

// MemberWorkload is the per-member slice of the review metrics.
type MemberWorkload struct {
	MemberID       string         `json:"memberId"`
	MemberName     string         `json:"memberName,omitempty"`
	TotalTasks     int            `json:"totalTasks"`
	EstimatedHours float64        `json:"estimatedHours"`
	DaysWithTasks  int            `json:"daysWithTasks"`
	HoursPerDay    float64        `json:"hoursPerDay"`
	Rating         WorkloadRating `json:"rating"`
}

// Metrics are the computed review numbers shared by both checkpoint
// flavors.
type Metrics struct {
	SelectedCount          int                `json:"selectedCount"`
	TotalCapacity          int                `json:"totalCapacity"`
	CapacityUtilizationPct float64            `json:"capacityUtilizationPct"`
	WorkloadCV             float64            `json:"workloadCv"`
	BusiestDay             planning.DayBucket `json:"busiestDay,omitempty"`
	Workloads              []MemberWorkload   `json:"workloads,omitempty"`
}

// SelectionReviewData is the selection checkpoint's read-projection.
// Never persisted independently; regenerated from the underlying
// result plus any applied adjustments.
type SelectionReviewData struct {
	Result   planning.SelectionResult `json:"result"`
	Items    []planning.WorkItem      `json:"items,omitempty"` // selected items with full data
	Metrics  Metrics                  `json:"metrics"`
	Warnings []string                 `json:"warnings,omitempty"`
}

// PersonSchedule is the per-person projection of an assignment set.
type PersonSchedule struct {
	MemberID   string                          `json:"memberId"`
	TotalTasks int                             `json:"totalTasks"`
	Days       map[planning.DayBucket][]string `json:"days"` // bucket -> task ids
}

// AssignmentReviewData is the assignment checkpoint's read-projection.
type AssignmentReviewData struct {
	Result   planning.AssignmentResult       `json:"result"`
	ByPerson map[string]*PersonSchedule      `json:"byPerson"`
	ByDay    map[planning.DayBucket][]string `json:"byDay"`
	Metrics  Metrics                         `json:"metrics"`
	Warnings []string                        `json:"warnings,omitempty"`
}

// BuildSelectionReview projects a selection result into review data.
func BuildSelectionReview(res planning.SelectionResult, pool []planning.WorkItem, members []planning.TeamMember, capacity map[string]int) SelectionReviewData {
	byID := indexItems(pool)

	var items []planning.WorkItem
	for _, id := range res.SelectedIDs {
		if item, ok := byID[id]; ok {
			items = append(items, item)
		}
	}

	total := planning.TotalCapacity(capacity)
	util := 0.0
	if total > 0 {
		util = float64(len(res.SelectedIDs)) / float64(total) * 100
	}

	// Per-member counts from suggested assignees, when present.
	counts := make(map[string]int, len(members))
	for _, m := range members {
		counts[m.ID] = 0
	}
	suggested := 0
	for _, s := range res.Scores {
		if s.SuggestedAssignee == "" {
			continue
		}
		if _, ok := counts[s.SuggestedAssignee]; ok {
			counts[s.SuggestedAssignee]++
			suggested++
		}
	}

	metrics := Metrics{
		SelectedCount:          len(res.SelectedIDs),
		TotalCapacity:          total,
		CapacityUtilizationPct: round1(util),
	}
	if suggested > 0 {
		metrics.WorkloadCV = round2(coefficientOfVariation(counts))
	}

	warnings := append([]string(nil), res.Warnings...)

	return SelectionReviewData{
		Result:   res,
		Items:    items,
		Metrics:  metrics,
		Warnings: warnings,
	}
}

// BuildAssignmentReview projects an assignment result into review
// data, computing both the per-person and per-day views plus workload
// ratings.
func BuildAssignmentReview(res planning.AssignmentResult, items []planning.WorkItem, members []planning.TeamMember) AssignmentReviewData {
	byID := indexItems(items)

	byPerson := make(map[string]*PersonSchedule, len(members))
	names := make(map[string]string, len(members))
	for _, m := range members {
		byPerson[m.ID] = &PersonSchedule{
			MemberID: m.ID,
			Days:     emptyBuckets(),
		}
		names[m.ID] = m.Name
	}
	byDay := make(map[planning.DayBucket][]string, len(planning.AllBuckets))
	for _, b := range planning.AllBuckets {
		byDay[b] = []string{}
	}

	hours := make(map[string]float64, len(members))
	days := make(map[string]map[planning.DayBucket]bool, len(members))

	for _, a := range res.Assignments {
		ps, ok := byPerson[a.AssigneeID]
		if !ok {
			// Unknown assignee: keep it visible in the day view, the
			// structural validators upstream have already warned.
			byDay[a.Day] = append(byDay[a.Day], a.TaskID)
			continue
		}
		ps.TotalTasks++
		ps.Days[a.Day] = append(ps.Days[a.Day], a.TaskID)
		byDay[a.Day] = append(byDay[a.Day], a.TaskID)

		hours[a.AssigneeID] += itemHours(byID, a.TaskID)
		if planning.IsWeekday(a.Day) {
			if days[a.AssigneeID] == nil {
				days[a.AssigneeID] = make(map[planning.DayBucket]bool)
			}
			days[a.AssigneeID][a.Day] = true
		}
	}

	counts := make(map[string]int, len(members))
	var workloads []MemberWorkload
	warnings := append([]string(nil), res.Warnings...)
	for _, m := range members {
		ps := byPerson[m.ID]
		counts[m.ID] = ps.TotalTasks

		dayCount := len(days[m.ID])
		if dayCount == 0 && ps.TotalTasks > 0 {
			dayCount = 1 // everything landed in anytime/deck
		}
		hpd := 0.0
		if dayCount > 0 {
			hpd = hours[m.ID] / float64(dayCount)
		}
		rating := RateWorkload(hpd)
		if ps.TotalTasks == 0 {
			rating = RatingLight
		}
		if rating == RatingOverloaded {
			warnings = append(warnings, fmt.Sprintf("%s is overloaded (%.1f hours/day)", names[m.ID], hpd))
		}

		workloads = append(workloads, MemberWorkload{
			MemberID:       m.ID,
			MemberName:     names[m.ID],
			TotalTasks:     ps.TotalTasks,
			EstimatedHours: round1(hours[m.ID]),
			DaysWithTasks:  dayCount,
			HoursPerDay:    round2(hpd),
			Rating:         rating,
		})
	}

	metrics := Metrics{
		SelectedCount: len(res.Assignments),
		WorkloadCV:    round2(coefficientOfVariation(counts)),
		BusiestDay:    busiestDay(byDay),
		Workloads:     workloads,
	}

	return AssignmentReviewData{
		Result:   res,
		ByPerson: byPerson,
		ByDay:    byDay,
		Metrics:  metrics,
		Warnings: warnings,
	}
}

// HasOverloaded reports whether any member's rating is overloaded.
func (m Metrics) HasOverloaded() bool {
	for _, w := range m.Workloads {
		if w.Rating == RatingOverloaded {
			return true
		}
	}
	return false
}

func emptyBuckets() map[planning.DayBucket][]string {
	days := make(map[planning.DayBucket][]string, len(planning.AllBuckets))
	for _, b := range planning.AllBuckets {
		days[b] = []string{}
	}
	return days
}

func indexItems(items []planning.WorkItem) map[string]planning.WorkItem {
	byID := make(map[string]planning.WorkItem, len(items))
	for _, it := range items {
		byID[it.ID] = it
	}
	return byID
}

func itemHours(byID map[string]planning.WorkItem, id string) float64 {
	if it, ok := byID[id]; ok && it.EstimatedHours > 0 {
		return it.EstimatedHours
	}
	return 1
}

// coefficientOfVariation is stddev/mean over the map values.
// Zero when the mean is zero.
func coefficientOfVariation(counts map[string]int) float64 {
	if len(counts) == 0 {
		return 0
	}
	sum := 0.0
	for _, c := range counts {
		sum += float64(c)
	}
	mean := sum / float64(len(counts))
	if mean == 0 {
		return 0
	}
	variance := 0.0
	for _, c := range counts {
		d := float64(c) - mean
		variance += d * d
	}
	variance /= float64(len(counts))
	return math.Sqrt(variance) / mean
}

func busiestDay(byDay map[planning.DayBucket][]string) planning.DayBucket {
	var busiest planning.DayBucket
	best := 0
	for _, d := range planning.Weekdays {
		if n := len(byDay[d]); n > best {
			best = n
			busiest = d
		}
	}
	return busiest
}

func round1(v float64) float64 { return math.Round(v*10) / 10 }
func round2(v float64) float64 { return math.Round(v*100) / 100 }
