package jianghu

import (
	"fmt"
	"log/slog"
	"sync"
)

// HookName identifies a lifecycle point.
type HookName string

const (
	HookRoundStart          HookName = "round_start"
	HookRoundEnd            HookName = "round_end"
	HookBeforeEventComplete HookName = "before_event_complete"
	HookAfterEventComplete  HookName = "after_event_complete"
	HookGameOver            HookName = "game_over"
)

// HookContext is what subscribers see. Player and Session are the live
// session objects; subscribers must not call back into the session engine.
type HookContext struct {
	Name    HookName
	Round   int
	Player  *Player
	Session *SessionState
	Event   *GameEvent
	Option  *EventOption
	Before  StatVector
	After   StatVector
}

// HookFunc is a lifecycle subscriber.
type HookFunc func(ctx *HookContext) error

type hookEntry struct {
	label string
	fn    HookFunc
}

// Hooks holds ordered subscribers per lifecycle name. A failing or panicking
// subscriber is logged and skipped; the rest still run.
type Hooks struct {
	mu   sync.RWMutex
	subs map[HookName][]hookEntry
	log  *slog.Logger
}

func NewHooks(logger *slog.Logger) *Hooks {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hooks{
		subs: make(map[HookName][]hookEntry),
		log:  logger,
	}
}

// On appends fn to the subscribers of name. label shows up in failure logs.
func (h *Hooks) On(name HookName, label string, fn HookFunc) {
	if fn == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.subs[name] = append(h.subs[name], hookEntry{label: label, fn: fn})
}

// Off removes every subscriber registered under label for name.
func (h *Hooks) Off(name HookName, label string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	kept := h.subs[name][:0]
	removed := 0
	for _, e := range h.subs[name] {
		if e.label == label {
			removed++
			continue
		}
		kept = append(kept, e)
	}
	h.subs[name] = kept
	return removed
}

func (h *Hooks) Count(name HookName) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[name])
}

// Fire calls every subscriber of name in registration order and returns the
// number that failed.
func (h *Hooks) Fire(name HookName, ctx *HookContext) int {
	h.mu.RLock()
	subs := append([]hookEntry(nil), h.subs[name]...)
	h.mu.RUnlock()

	if ctx == nil {
		ctx = &HookContext{}
	}
	ctx.Name = name
	failed := 0
	for _, s := range subs {
		if err := callHook(s.fn, ctx); err != nil {
			failed++
			h.log.Error("hook failed", "hook", string(name), "subscriber", s.label, "err", err)
		}
	}
	return failed
}

func callHook(fn HookFunc, ctx *HookContext) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn(ctx)
}
