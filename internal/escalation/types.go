package escalation

import "time"

// RequestType classifies what a worker needs from the controller.
type RequestType string

const (
	// TypeApproval asks the controller to sign off before proceeding.
	TypeApproval RequestType = "APPROVAL"

	// TypeInput asks the controller for missing information.
	TypeInput RequestType = "INPUT"

	// TypeHelp asks the controller for guidance on how to proceed.
	TypeHelp RequestType = "HELP"

	// TypeEscalate hands a problem to the controller entirely.
	TypeEscalate RequestType = "ESCALATE"
)

// String returns the string representation of the request type.
func (t RequestType) String() string {
	return string(t)
}

// Valid reports whether t is a known request type.
func (t RequestType) Valid() bool {
	switch t {
	case TypeApproval, TypeInput, TypeHelp, TypeEscalate:
		return true
	}
	return false
}

// Request is a worker's escalation to the controller. Context is opaque
// to the bus.
type Request struct {
	ID         string         `json:"id"`
	InstanceID string         `json:"instance_id"`
	WorkID     string         `json:"work_id,omitempty"`
	Type       RequestType    `json:"type"`
	Message    string         `json:"message"`
	Context    map[string]any `json:"context,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
	Resolved   bool           `json:"resolved"`
}

// Response is the controller's answer to a request. Data is opaque to
// the bus.
type Response struct {
	RequestID string         `json:"request_id"`
	Decision  string         `json:"decision"`
	Message   string         `json:"message,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}
