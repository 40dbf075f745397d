// Package savegame persists a playthrough as a versioned snapshot in an
// abstract key-value Store and upgrades older save shapes on load.
package savegame

import (
	"time"

	"jianghu-lite/jianghu"
	"jianghu-lite/jianghu/npc"
)

// CurrentVersion is the snapshot format written by Save.
const CurrentVersion = 2

// DefaultTTL is how long a save stays loadable.
const DefaultTTL = 7 * 24 * time.Hour

// Store keys.
const (
	KeyEngineState = "jianghu-game-engine-state"
	KeyLegacyState = "jianghu-game-state"
	KeyLegacyTime  = "jianghu-game-timestamp"
)

// Snapshot is the full saved state of one session.
type Snapshot struct {
	Version               int                   `json:"version"`
	SessionID             string                `json:"sessionId"`
	Phase                 string                `json:"phase"`
	Timestamp             time.Time             `json:"timestamp"`
	Session               *jianghu.SessionState `json:"session"`
	Player                jianghu.PlayerData    `json:"player"`
	TriggeredRandomEvents []string              `json:"triggeredRandomEvents,omitempty"`
	NPCs                  []npc.State           `json:"npcs,omitempty"`
	Stage                 string                `json:"stage,omitempty"`
	EventID               int                   `json:"eventId,omitempty"`
	PendingRandom         []jianghu.RandomEvent `json:"pendingRandom,omitempty"`
	Checksum              string                `json:"checksum,omitempty"`
}

// Clone deep-copies the snapshot.
func (s *Snapshot) Clone() *Snapshot {
	if s == nil {
		return nil
	}
	out := *s
	out.Session = s.Session.Clone()
	out.Player = jianghu.RestorePlayer(s.Player).Export()
	out.TriggeredRandomEvents = append([]string(nil), s.TriggeredRandomEvents...)
	if s.PendingRandom != nil {
		out.PendingRandom = make([]jianghu.RandomEvent, len(s.PendingRandom))
		for i, re := range s.PendingRandom {
			re.Effects = re.Effects.Clone()
			out.PendingRandom[i] = re
		}
	}
	if s.NPCs != nil {
		out.NPCs = make([]npc.State, len(s.NPCs))
		for i, st := range s.NPCs {
			st.ActiveGoals = append([]string(nil), st.ActiveGoals...)
			out.NPCs[i] = st
		}
	}
	return &out
}

// Expired reports whether the snapshot is older than ttl at now.
func (s *Snapshot) Expired(now time.Time, ttl time.Duration) bool {
	if ttl <= 0 {
		return false
	}
	return now.Sub(s.Timestamp) > ttl
}

func (s *Snapshot) validate() error {
	if s.Version != CurrentVersion {
		return malformed(s.Version, "invalid_version", "unsupported snapshot version %d", s.Version)
	}
	if s.Session == nil {
		return malformed(s.Version, "missing_session", "snapshot has no session state")
	}
	if s.Session.MaxRounds <= 0 {
		return malformed(s.Version, "invalid_session", "max rounds must be > 0")
	}
	if s.Session.CurrentRound < 0 || s.Session.CurrentRound > s.Session.MaxRounds {
		return malformed(s.Version, "invalid_round", "round %d outside [0,%d]", s.Session.CurrentRound, s.Session.MaxRounds)
	}
	if s.Timestamp.IsZero() {
		return malformed(s.Version, "missing_timestamp", "snapshot has no timestamp")
	}
	return nil
}
