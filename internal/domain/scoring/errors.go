package scoring

import "errors"

// Sentinel kinds for scoring errors.
var (
	ErrEmptyCorpus = errors.New("empty responder corpus")
)
