package ranking

import "errors"

// Sentinel kinds for ranking errors.
var (
	ErrNoEligibleCandidates = errors.New("no eligible candidates")
)
