package conversation

import (
	"time"

	"github.com/hyperjump/kiku/internal/models"
)

// DayGroup is a run of conversations sharing a day label in the history sidebar.
type DayGroup struct {
	Label         string                `json:"label"`
	Conversations []models.Conversation `json:"conversations"`
}

// DayLabel returns "Today" for timestamps less than 24 hours from now,
// "Yesterday" for less than 48 hours, and the date otherwise.
func DayLabel(ts, now time.Time) string {
	diff := now.Sub(ts)
	if diff < 0 {
		diff = -diff
	}
	switch {
	case diff < 24*time.Hour:
		return "Today"
	case diff < 48*time.Hour:
		return "Yesterday"
	default:
		return ts.Format("2006-01-02")
	}
}

// GroupByDay groups coll by DayLabel. Groups appear in the order their first
// conversation appears in coll, so a most-recent-first list yields most-recent-first groups.
func GroupByDay(coll []models.Conversation, now time.Time) []DayGroup {
	groups := []DayGroup{}
	index := make(map[string]int)
	for _, c := range coll {
		label := DayLabel(c.Timestamp, now)
		i, ok := index[label]
		if !ok {
			i = len(groups)
			index[label] = i
			groups = append(groups, DayGroup{Label: label})
		}
		groups[i].Conversations = append(groups[i].Conversations, c)
	}
	return groups
}
