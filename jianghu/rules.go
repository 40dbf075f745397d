package jianghu

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Limits bounds each stat. Stats in AllowNegative may sit below zero down to Min;
// every other stat snaps to its floor as soon as it would go negative.
type Limits struct {
	Min           map[Stat]int
	Max           map[Stat]int
	AllowNegative map[Stat]bool
}

// DefaultLimits returns the limits used for gameplay.
func DefaultLimits() Limits {
	return Limits{
		Min: map[Stat]int{
			StatMartial:        0,
			StatFame:           -50,
			StatNetwork:        0,
			StatEnergy:         0,
			StatVirtue:         -100,
			StatMentalState:    0,
			StatSkillPotential: 0,
			StatLuck:           0,
			StatReputation:     -100,
		},
		Max: map[Stat]int{
			StatMartial:        100,
			StatFame:           100,
			StatNetwork:        100,
			StatEnergy:         EnergyMax,
			StatVirtue:         100,
			StatMentalState:    100,
			StatSkillPotential: 100,
			StatLuck:           100,
			StatReputation:     100,
		},
		AllowNegative: map[Stat]bool{
			StatVirtue:     true,
			StatFame:       true,
			StatReputation: true,
		},
	}
}

func (l Limits) bounds(s Stat) (int, int) {
	lo, ok := l.Min[s]
	if !ok {
		lo = 0
	}
	hi, ok := l.Max[s]
	if !ok {
		hi = 100
	}
	return lo, hi
}

// Clamp returns value constrained to the limits of s.
func (l Limits) Clamp(s Stat, value int) int {
	lo, hi := l.bounds(s)
	if !l.AllowNegative[s] && value < 0 {
		return lo
	}
	if value < lo {
		return lo
	}
	if value > hi {
		return hi
	}
	return value
}

// Apply adds delta to stats and clamps every touched attribute. No rules run.
func (l Limits) Apply(stats StatVector, delta Delta) StatVector {
	out := stats
	for _, s := range delta.Keys() {
		if !s.Valid() {
			continue
		}
		out = out.with(s, l.Clamp(s, out.Get(s)+delta[s]))
	}
	return out
}

// Rule is a conditional stat modifier.
//
// A rule with Gain set is a gain modifier: when When holds on the pre-apply
// stats, every positive base change is passed through Gain before clamping.
// Any other rule is a post rule: When is checked against the post-apply stats
// and Effect is added on top.
type Rule struct {
	Name        string
	Description string
	Priority    int
	Active      bool
	When        func(StatVector) bool
	Effect      func(StatVector) Delta
	Gain        func(int) int
}

// RulesEngine applies stat changes under Limits and a priority-ordered rule set.
type RulesEngine struct {
	mu     sync.RWMutex
	limits Limits
	rules  []Rule
}

// NewRulesEngine creates an engine with the given limits and no rules.
func NewRulesEngine(limits Limits) *RulesEngine {
	return &RulesEngine{limits: limits}
}

// NewDefaultRulesEngine creates an engine with DefaultLimits and DefaultRules.
func NewDefaultRulesEngine() *RulesEngine {
	e := NewRulesEngine(DefaultLimits())
	for _, r := range DefaultRules() {
		e.AddRule(r)
	}
	return e
}

// DefaultRules returns the built-in gameplay rules.
func DefaultRules() []Rule {
	return []Rule{
		{
			Name:        "energy_recovery",
			Description: "内力未满时缓慢恢复",
			Priority:    1,
			Active:      true,
			When:        func(s StatVector) bool { return s.Energy < EnergyMax-1 },
			Effect:      func(StatVector) Delta { return Delta{StatEnergy: 1} },
		},
		{
			Name:        "mental_health_impact",
			Description: "心境低落时属性增益减半",
			Priority:    2,
			Active:      true,
			When:        func(s StatVector) bool { return s.MentalState < 20 },
			Gain:        func(v int) int { return v / 2 },
		},
		{
			Name:        "fame_threshold",
			Description: "声望达到80时获得威望加成",
			Priority:    3,
			Active:      true,
			When:        func(s StatVector) bool { return s.Fame >= 80 },
			Effect:      func(StatVector) Delta { return Delta{StatReputation: 5} },
		},
		{
			Name:        "virtue_impact",
			Description: "侠义值极高或极低时影响人脉与心境",
			Priority:    4,
			Active:      true,
			When:        func(s StatVector) bool { return abs(s.Virtue) >= 50 },
			Effect: func(s StatVector) Delta {
				if s.Virtue > 0 {
					return Delta{StatNetwork: 2, StatMentalState: 5}
				}
				return Delta{StatNetwork: -1, StatMentalState: -5}
			},
		},
	}
}

func (e *RulesEngine) Limits() Limits {
	return e.limits
}

// AddRule inserts r keeping rules ordered by priority. A rule with the same
// name is replaced.
func (e *RulesEngine) AddRule(r Rule) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i := range e.rules {
		if e.rules[i].Name == r.Name {
			e.rules = append(e.rules[:i], e.rules[i+1:]...)
			break
		}
	}
	e.rules = append(e.rules, r)
	sort.SliceStable(e.rules, func(i, j int) bool { return e.rules[i].Priority < e.rules[j].Priority })
}

func (e *RulesEngine) RemoveRule(name string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i := range e.rules {
		if e.rules[i].Name == name {
			e.rules = append(e.rules[:i], e.rules[i+1:]...)
			return true
		}
	}
	return false
}

func (e *RulesEngine) SetRuleActive(name string, active bool) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i := range e.rules {
		if e.rules[i].Name == name {
			e.rules[i].Active = active
			return true
		}
	}
	return false
}

// Rules returns a copy of the rule list in evaluation order.
func (e *RulesEngine) Rules() []Rule {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return append([]Rule(nil), e.rules...)
}

// Clamp clamps a single stat under the engine's limits.
func (e *RulesEngine) Clamp(s Stat, value int) int {
	return e.limits.Clamp(s, value)
}

// ApplyChanges applies delta to stats, then runs every active post rule whose
// condition holds on the result, in priority order. Rule conditions are all
// evaluated against the same post-apply vector, so a rule's effect never
// re-triggers evaluation within one call.
func (e *RulesEngine) ApplyChanges(stats StatVector, delta Delta) StatVector {
	rules := e.Rules()

	var gains []Rule
	for _, r := range rules {
		if r.Active && r.Gain != nil && r.When != nil && r.When(stats) {
			gains = append(gains, r)
		}
	}

	out := stats
	for _, s := range delta.Keys() {
		if !s.Valid() {
			continue
		}
		change := delta[s]
		if change > 0 {
			for _, g := range gains {
				change = g.Gain(change)
			}
		}
		out = out.with(s, e.limits.Clamp(s, out.Get(s)+change))
	}

	base := out
	var fired []Delta
	for _, r := range rules {
		if !r.Active || r.Gain != nil || r.When == nil || r.Effect == nil {
			continue
		}
		if r.When(base) {
			fired = append(fired, r.Effect(base))
		}
	}
	for _, d := range fired {
		out = e.limits.Apply(out, d)
	}
	return out
}

// Validation reports out-of-range stats. Errors are hard floor violations.
type Validation struct {
	Errors   []string
	Warnings []string
}

func (v Validation) Valid() bool { return len(v.Errors) == 0 }

// Validate checks stats against the engine's limits. It never fails; callers
// decide whether errors are fatal.
func (e *RulesEngine) Validate(stats StatVector) Validation {
	var out Validation
	for _, s := range AllStats {
		value := stats.Get(s)
		lo, hi := e.limits.bounds(s)
		if value < lo {
			if e.limits.AllowNegative[s] {
				out.Warnings = append(out.Warnings, fmt.Sprintf("%s below recommended %d", s, lo))
			} else {
				out.Errors = append(out.Errors, fmt.Sprintf("%s below minimum %d", s, lo))
			}
		}
		if value > hi {
			out.Warnings = append(out.Warnings, fmt.Sprintf("%s above maximum %d", s, hi))
		}
	}
	return out
}

// Score is a weighted rating of a stat vector.
type Score struct {
	Total    int
	Combat   int
	Social   int
	Survival int
	Details  map[Stat]int
}

func (e *RulesEngine) Score(stats StatVector) Score {
	d := map[Stat]int{
		StatMartial:        stats.Martial * 10,
		StatEnergy:         stats.Energy * 8,
		StatFame:           stats.Fame * 7,
		StatNetwork:        stats.Network * 9,
		StatReputation:     stats.Reputation * 6,
		StatVirtue:         abs(stats.Virtue) * 5,
		StatMentalState:    stats.MentalState * 4,
		StatSkillPotential: stats.SkillPotential * 3,
		StatLuck:           stats.Luck * 2,
	}
	s := Score{
		Combat:   d[StatMartial] + d[StatEnergy],
		Social:   d[StatFame] + d[StatNetwork] + d[StatReputation],
		Survival: d[StatVirtue] + d[StatMentalState] + d[StatSkillPotential] + d[StatLuck],
		Details:  d,
	}
	s.Total = s.Combat + s.Social + s.Survival
	return s
}

// Advice returns short hints for weak or unbalanced stats.
func (e *RulesEngine) Advice(stats StatVector) []string {
	var advice []string
	if stats.Martial < 10 {
		advice = append(advice, "武艺较低，建议多参与战斗相关的训练")
	}
	if stats.Energy < 3 {
		advice = append(advice, "内力不足，需要休息调息")
	}
	if stats.Fame < 5 {
		advice = append(advice, "声望不高，可以考虑多参与江湖事务")
	}
	if stats.Network < 5 {
		advice = append(advice, "人脉薄弱，建议多结交江湖朋友")
	}
	if stats.Virtue < -20 {
		advice = append(advice, "侠义值过低，可能招致非议")
	}
	if stats.MentalState < 30 {
		advice = append(advice, "心境不佳，需要调节心情")
	}
	if stats.Martial > 20 && stats.Fame < 10 {
		advice = append(advice, "武艺高强但声望不足，可以考虑扬名立万")
	}
	if stats.Network > 20 && stats.Virtue > 30 {
		advice = append(advice, "人脉广阔且德行高尚，适合成为领袖人物")
	}
	return advice
}

// Comparison lists per-stat movement between two vectors.
type Comparison struct {
	Improved  []string
	Declined  []string
	Unchanged []string
	Summary   string
}

func (e *RulesEngine) Compare(before, after StatVector) Comparison {
	var c Comparison
	for _, s := range AllStats {
		diff := after.Get(s) - before.Get(s)
		switch {
		case diff > 0:
			c.Improved = append(c.Improved, fmt.Sprintf("%s +%d", s.Label(), diff))
		case diff < 0:
			c.Declined = append(c.Declined, fmt.Sprintf("%s %d", s.Label(), diff))
		default:
			c.Unchanged = append(c.Unchanged, s.Label())
		}
	}
	up := strings.Join(c.Improved, "、")
	down := strings.Join(c.Declined, "、")
	switch {
	case up == "" && down == "":
		c.Summary = "属性无明显变化"
	case up != "" && down != "":
		c.Summary = up + "，但" + down
	case up != "":
		c.Summary = up
	default:
		c.Summary = down
	}
	return c
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
