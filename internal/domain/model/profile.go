package model

import "strings"

// Availability is a responder's self-reported capacity to take a match.
type Availability string

// Availability states. Unavailable responders are filtered out before
// ranking; the other two map to the availability weight.
const (
	AvailabilityUnavailable Availability = "unavailable"
	AvailabilityAvailable   Availability = "available"
	AvailabilityConstrained Availability = "constrained"
)

// Weight returns the availability contribution used by the ranker.
func (a Availability) Weight() float64 {
	switch a {
	case AvailabilityAvailable:
		return 1.0
	case AvailabilityConstrained:
		return 0.5
	default:
		return 0
	}
}

// Valid reports whether a is a known availability state.
func (a Availability) Valid() bool {
	switch a {
	case AvailabilityUnavailable, AvailabilityAvailable, AvailabilityConstrained:
		return true
	}
	return false
}

// RequesterStatus tracks where a requester is in the matching funnel.
type RequesterStatus string

// Requester statuses, mutated only by state machine transitions.
const (
	RequesterUnmatched RequesterStatus = "unmatched"
	RequesterPending   RequesterStatus = "pending"
	RequesterMatched   RequesterStatus = "matched"
)

// Requester is the party seeking guidance.
type Requester struct {
	ID     string          `json:"id"`
	Title  string          `json:"title"`
	Body   string          `json:"body"`
	Topics []string        `json:"topics"`
	Phase  string          `json:"phase"`
	Status RequesterStatus `json:"status"`
}

// Document concatenates the free-text fields fed to the vectorizer.
func (r *Requester) Document() string {
	parts := make([]string, 0, 3+len(r.Topics))
	parts = append(parts, r.Title, r.Body)
	parts = append(parts, r.Topics...)
	parts = append(parts, r.Phase)
	return joinNonEmpty(parts)
}

// Responder is the party offering guidance, a candidate to accept a match.
type Responder struct {
	ID           string       `json:"id"`
	Interests    string       `json:"interests"`
	Topics       []string     `json:"topics"`
	Phase        string       `json:"phase"`
	Availability Availability `json:"availability"`

	// RecentMatches counts completed plus declined matches inside the
	// configured lookback window as of the snapshot.
	RecentMatches int `json:"recent_matches"`
}

// Document concatenates the free-text fields fed to the vectorizer.
func (r *Responder) Document() string {
	parts := make([]string, 0, 2+len(r.Topics))
	parts = append(parts, r.Interests)
	parts = append(parts, r.Topics...)
	parts = append(parts, r.Phase)
	return joinNonEmpty(parts)
}

func joinNonEmpty(parts []string) string {
	kept := parts[:0]
	for _, p := range parts {
		if strings.TrimSpace(p) != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, " ")
}
