package savegame

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Save seals snap and writes it under KeyEngineState.
func Save(ctx context.Context, st Store, snap *Snapshot) error {
	out := snap.Clone()
	out.Version = CurrentVersion
	out.Timestamp = out.Timestamp.UTC()
	if out.Session != nil {
		out.SessionID = out.Session.ID
	}
	if err := out.validate(); err != nil {
		return err
	}
	if err := Seal(out); err != nil {
		return fmt.Errorf("seal snapshot: %w", err)
	}
	data, err := json.Marshal(out)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if err := st.Set(ctx, KeyEngineState, data); err != nil {
		return fmt.Errorf("write %s: %w", KeyEngineState, err)
	}
	snap.Checksum = out.Checksum
	return nil
}

// Load reads the newest save, upgrading older shapes. It returns ErrNotFound
// when nothing is stored and ErrExpired when the save is older than ttl.
func Load(ctx context.Context, st Store, now time.Time, ttl time.Duration) (*Snapshot, error) {
	data, ok, err := st.Get(ctx, KeyEngineState)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", KeyEngineState, err)
	}
	savedAt := now
	if !ok {
		if data, ok, err = st.Get(ctx, KeyLegacyState); err != nil {
			return nil, fmt.Errorf("read %s: %w", KeyLegacyState, err)
		}
		if !ok {
			return nil, ErrNotFound
		}
		if t, found, err := legacyTime(ctx, st); err != nil {
			return nil, err
		} else if found {
			savedAt = t
		}
	}

	snap, err := Migrate(data, savedAt)
	if err != nil {
		return nil, err
	}
	if snap.Expired(now, ttl) {
		return nil, ErrExpired
	}
	return snap, nil
}

// legacyTime reads the ISO save time stored beside a flat save. An
// unreadable value counts as absent.
func legacyTime(ctx context.Context, st Store) (time.Time, bool, error) {
	raw, ok, err := st.Get(ctx, KeyLegacyTime)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("read %s: %w", KeyLegacyTime, err)
	}
	if !ok {
		return time.Time{}, false, nil
	}
	t, err := time.Parse(time.RFC3339Nano, strings.Trim(strings.TrimSpace(string(raw)), `"`))
	if err != nil {
		return time.Time{}, false, nil
	}
	return t, true, nil
}

// Exists reports whether Load would return a snapshot.
func Exists(ctx context.Context, st Store, now time.Time, ttl time.Duration) bool {
	_, err := Load(ctx, st, now, ttl)
	return err == nil
}

// Clear removes the save and its legacy keys.
func Clear(ctx context.Context, st Store) error {
	var errs []error
	for _, key := range []string{KeyEngineState, KeyLegacyState, KeyLegacyTime} {
		if err := st.Remove(ctx, key); err != nil {
			errs = append(errs, fmt.Errorf("remove %s: %w", key, err))
		}
	}
	return errors.Join(errs...)
}
