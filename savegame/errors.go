package savegame

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound  = errors.New("no saved game")
	ErrExpired   = errors.New("saved game expired")
	ErrMalformed = errors.New("malformed saved game")
)

// SnapshotError describes why a stored payload could not be turned into a
// Snapshot. It matches ErrMalformed under errors.Is.
type SnapshotError struct {
	Version int    `json:"version"`
	Reason  string `json:"reason"`
	Message string `json:"message"`
}

func (e *SnapshotError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("snapshot error(version=%d reason=%s): %s", e.Version, e.Reason, e.Message)
}

func (e *SnapshotError) Is(target error) bool { return target == ErrMalformed }

func malformed(version int, reason, format string, args ...any) error {
	return &SnapshotError{Version: version, Reason: reason, Message: fmt.Sprintf(format, args...)}
}
