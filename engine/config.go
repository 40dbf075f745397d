package engine

import (
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/trace"

	"jianghu-lite/jianghu"
	"jianghu-lite/jianghu/npc"
	"jianghu-lite/savegame"
)

type Config struct {
	// Rounds per playthrough (0 => jianghu.DefaultMaxRounds)
	MaxRounds int

	// RNG seed (0 => time-based)
	Seed int64

	// Save after every state-changing transition while a game is running.
	Autosave bool

	// Save validity (0 => savegame.DefaultTTL) and per-call store timeout.
	SaveTTL      time.Duration
	StoreTimeout time.Duration

	// RandomChance overrides the per-round random event probability.
	RandomChance func(roundIndex int) float64

	NPC npc.Config

	Logger *slog.Logger
	Tracer trace.Tracer
	Now    func() time.Time
}

// DefaultConfig returns the standard ten-round setup with autosave.
func DefaultConfig() Config {
	return Config{
		MaxRounds:    jianghu.DefaultMaxRounds,
		Autosave:     true,
		SaveTTL:      savegame.DefaultTTL,
		StoreTimeout: 3 * time.Second,
		NPC:          npc.DefaultConfig(),
	}
}

func (c Config) validate() error {
	if c.MaxRounds < 0 {
		return fmt.Errorf("MaxRounds must be >= 0")
	}
	if c.SaveTTL < 0 || c.StoreTimeout < 0 {
		return fmt.Errorf("durations must be >= 0")
	}
	if c.NPC.MaxInteractionsPerRound < 0 || c.NPC.DecayAfter < 0 || c.NPC.DecayRate < 0 {
		return fmt.Errorf("invalid npc config: %+v", c.NPC)
	}
	return nil
}

func (c Config) withDefaults() Config {
	if c.MaxRounds == 0 {
		c.MaxRounds = jianghu.DefaultMaxRounds
	}
	if c.SaveTTL == 0 {
		c.SaveTTL = savegame.DefaultTTL
	}
	if c.StoreTimeout == 0 {
		c.StoreTimeout = 3 * time.Second
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	if c.RandomChance == nil {
		c.RandomChance = RandomEventChance
	}
	return c
}
