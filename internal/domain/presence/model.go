package presence

import "time"

const (
	StatusOnline  = "online"
	StatusAway    = "away"
	StatusOffline = "offline"
)

// Update outcomes reported to the Observer.
const (
	OutcomeAccepted  = "accepted"
	OutcomeThrottled = "throttled"
	OutcomeInFlight  = "in_flight"
)

type Presence struct {
	UserID      string    `json:"user_id"`
	WorkspaceID string    `json:"workspace_id"`
	Status      string    `json:"status"`
	Location    string    `json:"location,omitempty"`
	LastSeen    time.Time `json:"last_seen"`
}

type UpdateInput struct {
	UserID      string
	WorkspaceID string
	Status      string
	Location    string
}

func IsValidStatus(status string) bool {
	switch status {
	case StatusOnline, StatusAway, StatusOffline:
		return true
	default:
		return false
	}
}
