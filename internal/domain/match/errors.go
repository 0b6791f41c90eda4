package match

import "errors"

// Sentinel kinds for match lifecycle errors. Accept-path kinds
// (ErrAlreadyMatched, ErrInvalidTransition, ErrUnknownOffer) are expected
// race outcomes, never fatal.
var (
	ErrAlreadyMatched    = errors.New("match already accepted")
	ErrInvalidTransition = errors.New("invalid match transition")
	ErrUnknownOffer      = errors.New("unknown offer")
	ErrRequesterMatched  = errors.New("requester already matched")
)

// IsLostRace reports whether err is one of the structured "you lost the
// race" outcomes rather than a real failure.
func IsLostRace(err error) bool {
	return errors.Is(err, ErrAlreadyMatched) || errors.Is(err, ErrInvalidTransition)
}
