package jianghu

import (
	"fmt"
	"sort"
	"strings"
)

// Stat names one attribute of a StatVector.
type Stat string

const (
	StatMartial        Stat = "martial"
	StatFame           Stat = "fame"
	StatNetwork        Stat = "network"
	StatEnergy         Stat = "energy"
	StatVirtue         Stat = "virtue"
	StatMentalState    Stat = "mentalState"
	StatSkillPotential Stat = "skillPotential"
	StatLuck           Stat = "luck"
	StatReputation     Stat = "reputation"
)

// EnergyMax is the hard ceiling for energy (内力).
const EnergyMax = 12

// CoreStats are the five attributes every session tracks.
var CoreStats = []Stat{StatMartial, StatFame, StatNetwork, StatEnergy, StatVirtue}

// AllStats lists core and extended attributes in display order.
var AllStats = []Stat{
	StatMartial, StatFame, StatNetwork, StatEnergy, StatVirtue,
	StatMentalState, StatSkillPotential, StatLuck, StatReputation,
}

var StatLabelDictionary = map[Stat]string{
	StatMartial:        "武艺",
	StatFame:           "声望",
	StatNetwork:        "人脉",
	StatEnergy:         "内力",
	StatVirtue:         "侠义",
	StatMentalState:    "心境",
	StatSkillPotential: "悟性",
	StatLuck:           "气运",
	StatReputation:     "威望",
}

func (s Stat) Label() string {
	if l, ok := StatLabelDictionary[s]; ok {
		return l
	}
	return string(s)
}

func (s Stat) Valid() bool {
	_, ok := StatLabelDictionary[s]
	return ok
}

// StatVector is the player's attribute vector.
type StatVector struct {
	Martial        int `json:"martial" yaml:"martial"`
	Fame           int `json:"fame" yaml:"fame"`
	Network        int `json:"network" yaml:"network"`
	Energy         int `json:"energy" yaml:"energy"`
	Virtue         int `json:"virtue" yaml:"virtue"`
	MentalState    int `json:"mentalState" yaml:"mentalState"`
	SkillPotential int `json:"skillPotential" yaml:"skillPotential"`
	Luck           int `json:"luck" yaml:"luck"`
	Reputation     int `json:"reputation" yaml:"reputation"`
}

// DefaultStats returns the starting vector of a fresh player.
func DefaultStats() StatVector {
	return StatVector{
		Energy:         5,
		MentalState:    50,
		SkillPotential: 50,
		Luck:           50,
	}
}

func (v StatVector) Get(s Stat) int {
	switch s {
	case StatMartial:
		return v.Martial
	case StatFame:
		return v.Fame
	case StatNetwork:
		return v.Network
	case StatEnergy:
		return v.Energy
	case StatVirtue:
		return v.Virtue
	case StatMentalState:
		return v.MentalState
	case StatSkillPotential:
		return v.SkillPotential
	case StatLuck:
		return v.Luck
	case StatReputation:
		return v.Reputation
	}
	return 0
}

// with returns a copy of v where s is set to value. Unknown stats are ignored.
func (v StatVector) with(s Stat, value int) StatVector {
	switch s {
	case StatMartial:
		v.Martial = value
	case StatFame:
		v.Fame = value
	case StatNetwork:
		v.Network = value
	case StatEnergy:
		v.Energy = value
	case StatVirtue:
		v.Virtue = value
	case StatMentalState:
		v.MentalState = value
	case StatSkillPotential:
		v.SkillPotential = value
	case StatLuck:
		v.Luck = value
	case StatReputation:
		v.Reputation = value
	}
	return v
}

// Sub returns the delta that turns o into v.
func (v StatVector) Sub(o StatVector) Delta {
	d := Delta{}
	for _, s := range AllStats {
		if diff := v.Get(s) - o.Get(s); diff != 0 {
			d[s] = diff
		}
	}
	return d
}

func (v StatVector) String() string {
	parts := make([]string, 0, len(CoreStats))
	for _, s := range CoreStats {
		parts = append(parts, fmt.Sprintf("%s=%d", s, v.Get(s)))
	}
	return strings.Join(parts, " ")
}

// Delta is a sparse stat change.
type Delta map[Stat]int

// Clone returns an independent copy of d.
func (d Delta) Clone() Delta {
	if d == nil {
		return nil
	}
	out := make(Delta, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}

// Add merges o into a copy of d.
func (d Delta) Add(o Delta) Delta {
	out := d.Clone()
	if out == nil {
		out = Delta{}
	}
	for k, v := range o {
		out[k] += v
	}
	return out
}

// Keys returns the stats touched by d in display order.
func (d Delta) Keys() []Stat {
	keys := make([]Stat, 0, len(d))
	for k := range d {
		keys = append(keys, k)
	}
	order := make(map[Stat]int, len(AllStats))
	for i, s := range AllStats {
		order[s] = i
	}
	sort.Slice(keys, func(i, j int) bool {
		oi, iok := order[keys[i]]
		oj, jok := order[keys[j]]
		if iok && jok {
			return oi < oj
		}
		if iok != jok {
			return iok
		}
		return keys[i] < keys[j]
	})
	return keys
}

func (d Delta) String() string {
	parts := make([]string, 0, len(d))
	for _, k := range d.Keys() {
		parts = append(parts, fmt.Sprintf("%s%+d", k.Label(), d[k]))
	}
	return strings.Join(parts, " ")
}
