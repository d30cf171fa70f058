package consultation

import "sort"

// QueueStatuses are the statuses shown in the doctor queue.
var QueueStatuses = []Status{StatusWaiting, StatusInReview}

func inQueue(s Status) bool {
	for _, q := range QueueStatuses {
		if s == q {
			return true
		}
	}
	return false
}

// RankQueue orders pending consultations by urgency (unanalyzed last), then
// oldest first, then by id. The input slice is not modified and
// consultations outside QueueStatuses are dropped.
func RankQueue(items []Consultation) []Consultation {
	out := make([]Consultation, 0, len(items))
	for _, item := range items {
		if inQueue(item.Status) {
			out = append(out, item)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if ra, rb := RankOf(a.Urgency), RankOf(b.Urgency); ra != rb {
			return ra < rb
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
	return out
}
