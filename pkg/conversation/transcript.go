package conversation

// Transcript is an ordered, append-only log of turns. Turns are never
// removed, reordered or modified once appended.
type Transcript struct {
	turns []Turn
}

// NewTranscript returns a transcript seeded with the given turns.
func NewTranscript(initial ...Turn) *Transcript {
	t := &Transcript{}
	t.Append(initial...)
	return t
}

// Append adds turns to the end of the transcript in the order given.
func (t *Transcript) Append(turns ...Turn) {
	t.turns = append(t.turns, turns...)
}

func (t *Transcript) Len() int {
	return len(t.turns)
}

// Last returns the most recent turn, if any.
func (t *Transcript) Last() (Turn, bool) {
	if len(t.turns) == 0 {
		return Turn{}, false
	}
	return t.turns[len(t.turns)-1], true
}

// Turns returns a copy of the history. Mutating the returned slice does not
// affect the transcript.
func (t *Transcript) Turns() []Turn {
	out := make([]Turn, len(t.turns))
	copy(out, t.turns)
	return out
}
