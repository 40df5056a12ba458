package event

import "time"

// Event type identifiers published by the bus components.
const (
	TypeWorkPosted         = "work.posted"
	TypeWorkClaimed        = "work.claimed"
	TypeWorkWithdrawn      = "work.withdrawn"
	TypeResultSubmitted    = "result.submitted"
	TypeInstanceRegistered = "instance.registered"
	TypeInstanceRemoved    = "instance.removed"
	TypeRequestOpened      = "request.opened"
	TypeRequestResolved    = "request.resolved"
)

// Event is implemented by all published events.
type Event interface {
	EventType() string
	Time() time.Time
}

// base carries the timestamp shared by all event types.
type base struct {
	At time.Time
}

// Time returns when the event was created.
func (b base) Time() time.Time { return b.At }

func now() base { return base{At: time.Now().UTC()} }

// WorkPostedEvent is published when the controller posts a work item.
type WorkPostedEvent struct {
	base
	WorkID   string
	WorkType string
	Priority int
}

// EventType returns the event type identifier.
func (WorkPostedEvent) EventType() string { return TypeWorkPosted }

// NewWorkPostedEvent creates a WorkPostedEvent.
func NewWorkPostedEvent(workID, workType string, priority int) WorkPostedEvent {
	return WorkPostedEvent{base: now(), WorkID: workID, WorkType: workType, Priority: priority}
}

// WorkClaimedEvent is published when an instance wins a claim.
type WorkClaimedEvent struct {
	base
	WorkID     string
	InstanceID string
}

// EventType returns the event type identifier.
func (WorkClaimedEvent) EventType() string { return TypeWorkClaimed }

// NewWorkClaimedEvent creates a WorkClaimedEvent.
func NewWorkClaimedEvent(workID, instanceID string) WorkClaimedEvent {
	return WorkClaimedEvent{base: now(), WorkID: workID, InstanceID: instanceID}
}

// WorkWithdrawnEvent is published when the controller removes an unclaimed item.
type WorkWithdrawnEvent struct {
	base
	WorkID string
}

// EventType returns the event type identifier.
func (WorkWithdrawnEvent) EventType() string { return TypeWorkWithdrawn }

// NewWorkWithdrawnEvent creates a WorkWithdrawnEvent.
func NewWorkWithdrawnEvent(workID string) WorkWithdrawnEvent {
	return WorkWithdrawnEvent{base: now(), WorkID: workID}
}

// ResultSubmittedEvent is published when an instance submits a completion record.
type ResultSubmittedEvent struct {
	base
	WorkID     string
	InstanceID string
}

// EventType returns the event type identifier.
func (ResultSubmittedEvent) EventType() string { return TypeResultSubmitted }

// NewResultSubmittedEvent creates a ResultSubmittedEvent.
func NewResultSubmittedEvent(workID, instanceID string) ResultSubmittedEvent {
	return ResultSubmittedEvent{base: now(), WorkID: workID, InstanceID: instanceID}
}

// InstanceRegisteredEvent is published when a worker registers itself.
type InstanceRegisteredEvent struct {
	base
	InstanceID string
	PID        int
}

// EventType returns the event type identifier.
func (InstanceRegisteredEvent) EventType() string { return TypeInstanceRegistered }

// NewInstanceRegisteredEvent creates an InstanceRegisteredEvent.
func NewInstanceRegisteredEvent(instanceID string, pid int) InstanceRegisteredEvent {
	return InstanceRegisteredEvent{base: now(), InstanceID: instanceID, PID: pid}
}

// InstanceRemovedEvent is published when an instance is unregistered,
// whether voluntarily or by stale/dead cleanup.
type InstanceRemovedEvent struct {
	base
	InstanceID string
	Reason     string // "unregister", "stale", "dead"
}

// EventType returns the event type identifier.
func (InstanceRemovedEvent) EventType() string { return TypeInstanceRemoved }

// NewInstanceRemovedEvent creates an InstanceRemovedEvent.
func NewInstanceRemovedEvent(instanceID, reason string) InstanceRemovedEvent {
	return InstanceRemovedEvent{base: now(), InstanceID: instanceID, Reason: reason}
}

// RequestOpenedEvent is published when a worker escalates a question.
type RequestOpenedEvent struct {
	base
	RequestID   string
	InstanceID  string
	RequestType string
}

// EventType returns the event type identifier.
func (RequestOpenedEvent) EventType() string { return TypeRequestOpened }

// NewRequestOpenedEvent creates a RequestOpenedEvent.
func NewRequestOpenedEvent(requestID, instanceID, requestType string) RequestOpenedEvent {
	return RequestOpenedEvent{base: now(), RequestID: requestID, InstanceID: instanceID, RequestType: requestType}
}

// RequestResolvedEvent is published when the controller answers an escalation.
type RequestResolvedEvent struct {
	base
	RequestID string
	Decision  string
}

// EventType returns the event type identifier.
func (RequestResolvedEvent) EventType() string { return TypeRequestResolved }

// NewRequestResolvedEvent creates a RequestResolvedEvent.
func NewRequestResolvedEvent(requestID, decision string) RequestResolvedEvent {
	return RequestResolvedEvent{base: now(), RequestID: requestID, Decision: decision}
}
