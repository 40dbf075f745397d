package jianghu

import "errors"

var (
	ErrInvalidOption      = errors.New("invalid option")
	ErrInsufficientEnergy = errors.New("insufficient energy for option")
	ErrUnknownEvent       = errors.New("unknown event")
	ErrNoRelationship     = errors.New("relationship not established")
	ErrUnknownDebt        = errors.New("unknown debt")
	ErrUnknownGrudge      = errors.New("unknown grudge")
)

type InvalidStateError string

func (e InvalidStateError) Error() string { return "invalid state: " + string(e) }

func ErrInvalidState(msg string) error { return InvalidStateError(msg) }
