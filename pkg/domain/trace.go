package domain

import "time"

// Step records one decision taken in an episode.
// Choice is nil when the controller declined to choose.
type Step struct {
	Index     int       `json:"index"`
	ActionSet ActionSet `json:"action_set"`
	Choice    *NodeID   `json:"choice,omitempty"`
	Done      bool      `json:"done"`
	At        time.Time `json:"at"`
}
