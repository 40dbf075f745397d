package engine

import (
	"math/rand"
	"sort"

	"jianghu-lite/jianghu"
)

// Random events are offered after rounds 1 through 8.
const (
	randomFirstRound = 1
	randomLastRound  = 8
)

// RandomEventChance is the offer probability after roundIndex: 20% after the
// first round, rising linearly to 40% after the eighth, zero outside.
func RandomEventChance(roundIndex int) float64 {
	if roundIndex < randomFirstRound || roundIndex > randomLastRound {
		return 0
	}
	return 0.2 + 0.2*float64(roundIndex-randomFirstRound)/float64(randomLastRound-randomFirstRound)
}

// drawRandom picks one event from pool that is not in triggered.
func drawRandom(rng *rand.Rand, pool []jianghu.RandomEvent, triggered map[string]bool) (jianghu.RandomEvent, bool) {
	var open []jianghu.RandomEvent
	for _, re := range pool {
		if !triggered[re.ID] {
			open = append(open, re)
		}
	}
	if len(open) == 0 {
		return jianghu.RandomEvent{}, false
	}
	return open[rng.Intn(len(open))], true
}

// RandomStats summarizes the per-session random pool.
type RandomStats struct {
	Count     int      `json:"count"`
	EventIDs  []string `json:"eventIds"`
	Remaining int      `json:"remaining"`
	Total     int      `json:"total"`
}

func randomStats(pool []jianghu.RandomEvent, triggered map[string]bool) RandomStats {
	st := RandomStats{Total: len(pool)}
	for _, re := range pool {
		if triggered[re.ID] {
			st.EventIDs = append(st.EventIDs, re.ID)
		}
	}
	sort.Strings(st.EventIDs)
	st.Count = len(st.EventIDs)
	st.Remaining = st.Total - st.Count
	return st
}

func sortedKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func cloneRandomEvents(list []jianghu.RandomEvent) []jianghu.RandomEvent {
	if len(list) == 0 {
		return nil
	}
	out := make([]jianghu.RandomEvent, len(list))
	for i, re := range list {
		re.Effects = re.Effects.Clone()
		out[i] = re
	}
	return out
}
