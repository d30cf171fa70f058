package consultation

var transitions = map[Status][]Status{
	StatusWaiting:   {StatusInReview},
	StatusInReview:  {StatusContacted, StatusCompleted},
	StatusContacted: {StatusCompleted},
	StatusCompleted: nil,
}

// CanTransition reports whether a doctor may move a consultation from one
// status to another. There are no backward edges.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// AllowedTransitions lists the statuses reachable from the given one.
func AllowedTransitions(from Status) []Status {
	return append([]Status(nil), transitions[from]...)
}

func checkTransition(from, to Status) error {
	if !CanTransition(from, to) {
		return &TransitionError{From: from, To: to}
	}
	return nil
}

// claimsDoctor reports whether the transition assigns the reviewing doctor.
func claimsDoctor(from Status) bool {
	return from == StatusWaiting
}
