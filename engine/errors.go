package engine

import "errors"

var (
	ErrRoundInProgress = errors.New("round already in progress")
	ErrWrongPhase      = errors.New("operation not allowed in this phase")
	ErrWrongStage      = errors.New("operation not allowed at this round stage")
	ErrNoStore         = errors.New("no save store configured")
	ErrNoEvent         = errors.New("no event for round")
)
