package engine

import (
	"jianghu-lite/content"
	"jianghu-lite/jianghu"
)

// branchRule swaps the scripted event at a round index for a branch event
// once the justice path and an earlier key choice allow it.
type branchRule struct {
	roundIndex int
	eventID    int
	minJustice int
	keyRound   int // 1-based; 0 means no key choice needed
	keyOptions []string
}

var branchTable = []branchRule{
	{roundIndex: 5, eventID: 6001, minJustice: 4, keyRound: 2, keyOptions: []string{"A", "C"}},
	{roundIndex: 8, eventID: 6002, minJustice: 5, keyRound: 8, keyOptions: []string{"A"}},
	{roundIndex: 9, eventID: 6003, minJustice: 6},
}

func (r branchRule) holds(p *jianghu.Player) bool {
	if !p.CheckBranchCondition(jianghu.PathJustice, r.minJustice) {
		return false
	}
	if r.keyRound == 0 {
		return true
	}
	choice, ok := p.KeyChoice(r.keyRound)
	if !ok {
		return false
	}
	for _, o := range r.keyOptions {
		if o == choice {
			return true
		}
	}
	return false
}

// branchEvent returns the branch event replacing roundIndex, if any.
func branchEvent(c *content.Catalog, roundIndex int, p *jianghu.Player) (*jianghu.GameEvent, bool) {
	for _, r := range branchTable {
		if r.roundIndex != roundIndex || !r.holds(p) {
			continue
		}
		if ev, ok := c.BranchEvent(r.eventID); ok {
			return ev, true
		}
	}
	return nil, false
}

// SelectEvent picks the event for roundIndex: branch, then NPC, then the
// scripted event. It is evaluated fresh on every call.
func SelectEvent(c *content.Catalog, roundIndex int, p *jianghu.Player) (*jianghu.GameEvent, EventSource, bool) {
	if ev, ok := branchEvent(c, roundIndex, p); ok {
		return ev, SourceBranch, true
	}
	if ev, _, ok := c.MatchNPCEvent(roundIndex, p); ok {
		return ev, SourceNPC, true
	}
	if ev, ok := c.ScriptedEvent(roundIndex); ok {
		return ev, SourceScripted, true
	}
	return nil, "", false
}

// sourceOf derives an event's source from its id band.
func sourceOf(ev *jianghu.GameEvent) EventSource {
	switch {
	case ev.IsBranchEvent():
		return SourceBranch
	case ev.IsNPCEvent():
		return SourceNPC
	}
	return SourceScripted
}
