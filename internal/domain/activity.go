package domain

// Activity is one offered activity and its current roster.
type Activity struct {
	Name        string
	Description string
	Schedule    string
	// MaxParticipants is advisory; signups are not rejected when it is reached.
	MaxParticipants int
	Participants    []string
}

// SpotsLeft reports how many places remain against MaxParticipants. It may be negative.
func (a Activity) SpotsLeft() int {
	return a.MaxParticipants - len(a.Participants)
}

func (a Activity) clone() Activity {
	out := a
	out.Participants = make([]string, len(a.Participants))
	copy(out.Participants, a.Participants)
	return out
}
