package model

import "time"

// DefaultActivityLimit bounds the activity log.
const DefaultActivityLimit = 200

// NewActivity builds an activity item stamped with now.
func NewActivity(typ, label string, meta map[string]string, now time.Time) ActivityItem {
	return ActivityItem{ID: NewID(), Timestamp: now, Type: typ, Label: label, Meta: meta}
}

// AppendActivity prepends item to a newest-first log and silently evicts the
// oldest entries beyond limit. The input slice is not modified.
func AppendActivity(log []ActivityItem, item ActivityItem, limit int) []ActivityItem {
	if limit <= 0 {
		limit = DefaultActivityLimit
	}
	n := len(log) + 1
	if n > limit {
		n = limit
	}
	out := make([]ActivityItem, 0, n)
	out = append(out, item)
	out = append(out, log[:n-1]...)
	return out
}
