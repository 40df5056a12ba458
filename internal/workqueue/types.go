package workqueue

import "time"

// Status represents the current state of a work item.
type Status string

const (
	// StatusPending indicates the item is waiting in the queue to be claimed.
	StatusPending Status = "PENDING"

	// StatusClaimed indicates exactly one instance owns the item but has
	// not yet reported starting it.
	StatusClaimed Status = "CLAIMED"

	// StatusInProgress indicates the claiming instance has started work.
	StatusInProgress Status = "IN_PROGRESS"

	// StatusComplete indicates the item finished successfully.
	StatusComplete Status = "COMPLETE"

	// StatusFailed indicates the item failed.
	StatusFailed Status = "FAILED"
)

// String returns the string representation of the status.
func (s Status) String() string {
	return string(s)
}

// IsTerminal returns true if this status represents a final state.
func (s Status) IsTerminal() bool {
	return s == StatusComplete || s == StatusFailed
}

// Priority bounds. Lower numbers are claimed first.
const (
	PriorityHighest = 1
	PriorityDefault = 5
	PriorityLowest  = 10
)

// WorkItem is one unit of dispatchable work. The controller creates it;
// exactly one instance may ever claim it. Inputs, Outputs, and Constraints
// are opaque to the bus and never interpreted.
type WorkItem struct {
	// ID uniquely identifies the item and names its file in both the
	// pending and claimed stores.
	ID string `json:"id"`

	// Type is a caller-defined kind tag, e.g. "research" or "draft".
	Type string `json:"type"`

	// Description is the human-readable statement of the work.
	Description string `json:"description"`

	// Inputs carries caller-supplied parameters.
	Inputs map[string]any `json:"inputs,omitempty"`

	// Outputs carries caller-declared expected outputs.
	Outputs map[string]any `json:"outputs,omitempty"`

	// Constraints lists caller-imposed conditions on execution.
	Constraints []string `json:"constraints,omitempty"`

	// Priority orders claiming: 1 is highest, 10 is lowest.
	Priority int `json:"priority"`

	// CreatedAt is when the item was posted (UTC).
	CreatedAt time.Time `json:"created_at"`

	// CreatedBy identifies the posting controller.
	CreatedBy string `json:"created_by,omitempty"`

	// Status is the current execution state.
	Status Status `json:"status"`

	// ClaimedBy is the instance ID that claimed this item.
	ClaimedBy string `json:"claimed_by,omitempty"`

	// ClaimedAt is when the item was claimed.
	ClaimedAt *time.Time `json:"claimed_at,omitempty"`
}
