package collector

// Tally counts, per match ID, how many distinct players listed it. IDs keep the order
// in which they were first seen.
type Tally struct {
	order  []string
	counts map[string]int
}

func NewTally() *Tally {
	return &Tally{counts: make(map[string]int)}
}

// AddHistory counts each distinct ID in one player's list once.
func (t *Tally) AddHistory(matchIDs []string) {
	seen := make(map[string]struct{}, len(matchIDs))
	for _, id := range matchIDs {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}

		if _, ok := t.counts[id]; !ok {
			t.order = append(t.order, id)
		}
		t.counts[id]++
	}
}

func (t *Tally) Count(matchID string) int {
	return t.counts[matchID]
}

// Len is the number of distinct IDs seen.
func (t *Tally) Len() int {
	return len(t.order)
}

// AtLeast returns IDs with a count of at least threshold, in first-seen order.
func (t *Tally) AtLeast(threshold int) []string {
	var out []string
	for _, id := range t.order {
		if t.counts[id] >= threshold {
			out = append(out, id)
		}
	}
	return out
}

// SelectShared returns the matches that at least threshold players have in their history.
func SelectShared(histories []PlayerHistory, threshold int) []string {
	tally := NewTally()
	for _, h := range histories {
		tally.AddHistory(h.MatchIDs)
	}
	return tally.AtLeast(threshold)
}
