package savegame

import (
	"encoding/json"

	"jianghu-lite/jianghu"
)

// LegacyState is the flat save written under KeyLegacyState, with its save
// time under KeyLegacyTime. It is format version 0.
type LegacyState struct {
	CurrentRound  int                  `json:"currentRound"`
	MaxRounds     int                  `json:"maxRounds"`
	PlayerStats   json.RawMessage      `json:"playerStats"`
	Questionnaire *jianghu.Answers     `json:"questionnaire"`
	EventHistory  []LegacyEventRecord  `json:"eventHistory"`
	RandomEvents  []LegacyRandomRecord `json:"randomEvents"`
	Achievements  []LegacyAchievement  `json:"achievements"`
	IsGameOver    bool                 `json:"isGameOver"`
}

type LegacyEventRecord struct {
	Round          int           `json:"round"`
	EventID        int           `json:"eventId"`
	SelectedOption string        `json:"selectedOption"`
	Effects        jianghu.Delta `json:"effects"`
}

type LegacyRandomRecord struct {
	Round int                 `json:"round"`
	Event jianghu.RandomEvent `json:"event"`
}

type LegacyAchievement struct {
	ID          string        `json:"id"`
	Name        string        `json:"name"`
	Description string        `json:"description"`
	Unlocked    bool          `json:"unlocked"`
	Bonus       jianghu.Delta `json:"bonus,omitempty"`
}

// EngineStateV1 is the engine envelope written under KeyEngineState before
// snapshots were versioned. Timestamp is in Unix milliseconds.
type EngineStateV1 struct {
	GameState    LegacyState   `json:"gameState"`
	PlayerData   *LegacyPlayer `json:"playerData,omitempty"`
	CurrentPhase string        `json:"currentPhase"`
	Timestamp    int64         `json:"timestamp"`
}

// LegacyPlayer is the part of an old player dump that survives migration.
type LegacyPlayer struct {
	Name       string          `json:"name"`
	Background string          `json:"background"`
	Stats      json.RawMessage `json:"stats"`
}

// decodeStats overlays raw onto the default vector so attributes missing
// from old saves keep their starting values.
func decodeStats(raw json.RawMessage) (jianghu.StatVector, error) {
	stats := jianghu.DefaultStats()
	if len(raw) == 0 {
		return stats, nil
	}
	err := json.Unmarshal(raw, &stats)
	return stats, err
}
