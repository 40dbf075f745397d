package savegame

import (
	"encoding/json"
	"time"

	"jianghu-lite/jianghu"
)

// Phase names written by migration.
const (
	PhasePlaying = "playing"
	PhaseResult  = "result"
)

type migration struct {
	from int
	up   func(data []byte, savedAt time.Time) ([]byte, error)
}

// chain upgrades one format version at a time.
var chain = []migration{
	{from: 0, up: upgradeV0},
	{from: 1, up: upgradeV1},
}

// DetectVersion reports the format version of a stored payload.
func DetectVersion(data []byte) (int, error) {
	var probe struct {
		Version   *int            `json:"version"`
		GameState json.RawMessage `json:"gameState"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return 0, malformed(-1, "decode", "%v", err)
	}
	switch {
	case probe.Version != nil:
		return *probe.Version, nil
	case len(probe.GameState) > 0:
		return 1, nil
	default:
		return 0, nil
	}
}

// Migrate decodes data at any known format version into a current snapshot.
// savedAt stands in for the save time of version 0 payloads, which do not
// carry one.
func Migrate(data []byte, savedAt time.Time) (*Snapshot, error) {
	version, err := DetectVersion(data)
	if err != nil {
		return nil, err
	}
	if version > CurrentVersion || version < 0 {
		return nil, malformed(version, "invalid_version", "unsupported snapshot version %d", version)
	}
	for _, m := range chain {
		if m.from != version {
			continue
		}
		if data, err = m.up(data, savedAt); err != nil {
			return nil, err
		}
		version++
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, malformed(version, "decode", "%v", err)
	}
	if err := Verify(&snap); err != nil {
		return nil, err
	}
	if err := snap.validate(); err != nil {
		return nil, err
	}
	return &snap, nil
}

func upgradeV0(data []byte, savedAt time.Time) ([]byte, error) {
	var flat LegacyState
	if err := json.Unmarshal(data, &flat); err != nil {
		return nil, malformed(0, "decode", "%v", err)
	}
	if len(flat.PlayerStats) == 0 {
		return nil, malformed(0, "missing_stats", "flat state has no player stats")
	}
	phase := PhasePlaying
	if flat.IsGameOver {
		phase = PhaseResult
	}
	return json.Marshal(EngineStateV1{
		GameState:    flat,
		CurrentPhase: phase,
		Timestamp:    savedAt.UnixMilli(),
	})
}

type legacyChoice struct {
	eventID  int
	optionID string
}

// legacyStoryFollowUps are the story-path follow-ups of scripted options.
// Flat saves kept no story flags, so they are replayed with the key choices.
var legacyStoryFollowUps = map[legacyChoice]map[jianghu.StoryPath]int{
	{eventID: 8, optionID: "A"}: {jianghu.PathJustice: 2},
}

func upgradeV1(data []byte, _ time.Time) ([]byte, error) {
	var env EngineStateV1
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, malformed(1, "decode", "%v", err)
	}
	gs := env.GameState
	if env.Timestamp <= 0 {
		return nil, malformed(1, "missing_timestamp", "engine state has no timestamp")
	}
	ts := time.UnixMilli(env.Timestamp).UTC()

	rawStats := gs.PlayerStats
	if env.PlayerData != nil && len(env.PlayerData.Stats) > 0 {
		rawStats = env.PlayerData.Stats
	}
	stats, err := decodeStats(rawStats)
	if err != nil {
		return nil, malformed(1, "invalid_stats", "%v", err)
	}

	session := jianghu.NewSessionState(gs.MaxRounds, ts)
	session.CurrentRound = gs.CurrentRound
	session.GameOver = gs.IsGameOver
	if gs.Questionnaire != nil {
		q := *gs.Questionnaire
		session.Questionnaire = &q
	}
	for _, a := range gs.Achievements {
		session.Achievements = append(session.Achievements, jianghu.Achievement{
			ID:          a.ID,
			Name:        a.Name,
			Description: a.Description,
			Bonus:       a.Bonus,
			Unlocked:    a.Unlocked,
		})
	}

	base := jianghu.NewPlayer().Export()
	base.Stats = stats
	base.Round = gs.CurrentRound
	if env.PlayerData != nil {
		if env.PlayerData.Name != "" {
			base.Name = env.PlayerData.Name
		}
		base.Background = env.PlayerData.Background
	}
	player := jianghu.RestorePlayer(base)
	for _, e := range gs.EventHistory {
		session.EventHistory = append(session.EventHistory, jianghu.EventHistoryEntry{
			Round:    e.Round,
			EventID:  e.EventID,
			OptionID: e.SelectedOption,
			Effects:  e.Effects,
		})
		if e.EventID < jianghu.NPCEventMinID {
			// legacy rounds are 0-based, key choices are keyed by 1-based round
			player.RecordKeyChoice(e.Round+1, e.SelectedOption, e.Effects)
			for path, d := range legacyStoryFollowUps[legacyChoice{e.EventID, e.SelectedOption}] {
				player.AdjustStoryPath(path, d)
			}
		}
	}

	var triggered []string
	for _, r := range gs.RandomEvents {
		if r.Event.ID != "" {
			triggered = append(triggered, r.Event.ID)
		}
	}

	phase := env.CurrentPhase
	if phase == "" {
		phase = PhasePlaying
	}
	return json.Marshal(Snapshot{
		Version:               CurrentVersion,
		SessionID:             session.ID,
		Phase:                 phase,
		Timestamp:             ts,
		Session:               session,
		Player:                player.Export(),
		TriggeredRandomEvents: triggered,
	})
}
