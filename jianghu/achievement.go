package jianghu

// Achievement is unlocked once every stat in Requires reaches its threshold.
// Bonus is applied once, at unlock time.
type Achievement struct {
	ID          string       `json:"id" yaml:"id"`
	Name        string       `json:"name" yaml:"name"`
	Description string       `json:"description" yaml:"description"`
	Requires    map[Stat]int `json:"requires" yaml:"requires"`
	Bonus       Delta        `json:"bonus,omitempty" yaml:"bonus,omitempty"`
	Unlocked    bool         `json:"unlocked" yaml:"-"`
}

// Holds reports whether stats satisfy the achievement's thresholds. An
// achievement with no requirements never holds.
func (a Achievement) Holds(stats StatVector) bool {
	if len(a.Requires) == 0 {
		return false
	}
	for s, want := range a.Requires {
		if stats.Get(s) < want {
			return false
		}
	}
	return true
}

func cloneAchievement(a Achievement) Achievement {
	out := a
	if a.Requires != nil {
		out.Requires = make(map[Stat]int, len(a.Requires))
		for k, v := range a.Requires {
			out.Requires[k] = v
		}
	}
	out.Bonus = a.Bonus.Clone()
	return out
}

// CloneAchievements deep-copies a list.
func CloneAchievements(list []Achievement) []Achievement {
	out := make([]Achievement, len(list))
	for i, a := range list {
		out[i] = cloneAchievement(a)
	}
	return out
}

// LockedAchievements returns a copy of defs with every entry locked.
func LockedAchievements(defs []Achievement) []Achievement {
	out := CloneAchievements(defs)
	for i := range out {
		out[i].Unlocked = false
	}
	return out
}

// EvaluateAchievements returns a new list in which every achievement that now
// holds is unlocked, plus the entries unlocked by this call. Already unlocked
// achievements are never revoked.
func EvaluateAchievements(stats StatVector, list []Achievement) ([]Achievement, []Achievement) {
	next := CloneAchievements(list)
	var unlocked []Achievement
	for i := range next {
		if next[i].Unlocked {
			continue
		}
		if next[i].Holds(stats) {
			next[i].Unlocked = true
			unlocked = append(unlocked, cloneAchievement(next[i]))
		}
	}
	return next, unlocked
}

// UnlockedIDs returns the ids of unlocked achievements in list order.
func UnlockedIDs(list []Achievement) []string {
	var out []string
	for _, a := range list {
		if a.Unlocked {
			out = append(out, a.ID)
		}
	}
	return out
}
