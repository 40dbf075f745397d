package jianghu

// StoryPath names one of the four narrative path counters.
type StoryPath string

const (
	PathJustice    StoryPath = "justice"
	PathFriendship StoryPath = "friendship"
	PathPower      StoryPath = "power"
	PathCorruption StoryPath = "corruption"
)

// StoryPathMax caps every path counter.
const StoryPathMax = 10

// StoryFlags tracks branching state.
type StoryFlags struct {
	Justice       int            `json:"justicePath"`
	Friendship    int            `json:"friendshipPath"`
	Power         int            `json:"powerPath"`
	Corruption    int            `json:"corruptionPath"`
	SpecialEvents []int          `json:"specialEvents,omitempty"`
	KeyChoices    map[int]string `json:"keyChoices,omitempty"`
}

func (f StoryFlags) Path(p StoryPath) int {
	switch p {
	case PathJustice:
		return f.Justice
	case PathFriendship:
		return f.Friendship
	case PathPower:
		return f.Power
	case PathCorruption:
		return f.Corruption
	}
	return 0
}

func (f *StoryFlags) addPath(p StoryPath, delta int) {
	clamp := func(v int) int {
		if v < 0 {
			return 0
		}
		if v > StoryPathMax {
			return StoryPathMax
		}
		return v
	}
	switch p {
	case PathJustice:
		f.Justice = clamp(f.Justice + delta)
	case PathFriendship:
		f.Friendship = clamp(f.Friendship + delta)
	case PathPower:
		f.Power = clamp(f.Power + delta)
	case PathCorruption:
		f.Corruption = clamp(f.Corruption + delta)
	}
}

func (f StoryFlags) clone() StoryFlags {
	out := f
	out.SpecialEvents = append([]int(nil), f.SpecialEvents...)
	if f.KeyChoices != nil {
		out.KeyChoices = make(map[int]string, len(f.KeyChoices))
		for k, v := range f.KeyChoices {
			out.KeyChoices[k] = v
		}
	}
	return out
}

type keyChoice struct {
	round    int
	optionID string
}

// storyTransitions maps a (round, option) key choice to path deltas. Rounds
// are 1-based.
var storyTransitions = map[keyChoice]map[StoryPath]int{
	{round: 2, optionID: "A"}: {PathJustice: 4},
	{round: 7, optionID: "A"}: {PathCorruption: 4, PathJustice: -2},
}

// RecordKeyChoice stores the option picked in a key round and applies the
// story-path transitions tied to it.
func (p *Player) RecordKeyChoice(round int, optionID string, effects Delta) {
	if p.story.KeyChoices == nil {
		p.story.KeyChoices = make(map[int]string)
	}
	p.story.KeyChoices[round] = optionID
	for path, d := range storyTransitions[keyChoice{round: round, optionID: optionID}] {
		p.story.addPath(path, d)
	}
	p.log.Debug("key choice recorded", "round", round, "option", optionID, "effects", effects.String())
}

// AdjustStoryPath moves a path counter by delta within [0, StoryPathMax].
func (p *Player) AdjustStoryPath(path StoryPath, delta int) {
	p.story.addPath(path, delta)
}

// KeyChoice returns the option recorded for a 1-based round.
func (p *Player) KeyChoice(round int) (string, bool) {
	v, ok := p.story.KeyChoices[round]
	return v, ok
}

// CheckBranchCondition reports whether path has reached threshold.
func (p *Player) CheckBranchCondition(path StoryPath, threshold int) bool {
	return p.story.Path(path) >= threshold
}

// MarkSpecialEvent records a triggered special event id once.
func (p *Player) MarkSpecialEvent(id int) bool {
	for _, v := range p.story.SpecialEvents {
		if v == id {
			return false
		}
	}
	p.story.SpecialEvents = append(p.story.SpecialEvents, id)
	return true
}

func (p *Player) HasSpecialEvent(id int) bool {
	for _, v := range p.story.SpecialEvents {
		if v == id {
			return true
		}
	}
	return false
}

// StoryFlags returns a copy of the player's story state.
func (p *Player) StoryFlags() StoryFlags {
	return p.story.clone()
}
