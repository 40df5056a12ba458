package registry

import "time"

// Status represents the lifecycle state of a worker instance. All
// transitions are declared by the worker itself; the registry never
// infers them.
type Status string

const (
	// StatusSpawning indicates the process exists but has not finished
	// starting up.
	StatusSpawning Status = "SPAWNING"

	// StatusIdle indicates the instance is registered and waiting for work.
	StatusIdle Status = "IDLE"

	// StatusWorking indicates the instance is executing a claimed item.
	StatusWorking Status = "WORKING"

	// StatusBlocked indicates the instance is waiting on an escalation.
	StatusBlocked Status = "BLOCKED"

	// StatusComplete indicates the instance finished its work.
	StatusComplete Status = "COMPLETE"

	// StatusFailed indicates the instance gave up.
	StatusFailed Status = "FAILED"

	// StatusTerminated indicates the instance is shutting down.
	StatusTerminated Status = "TERMINATED"
)

// String returns the string representation of the status.
func (s Status) String() string {
	return string(s)
}

// Instance is one worker process's self-registered record. Metadata is
// opaque to the bus.
type Instance struct {
	// ID uniquely identifies the instance and names its record and
	// stream log files.
	ID string `json:"id"`

	// PID is the instance's OS process id.
	PID int `json:"pid"`

	// Status is the caller-declared lifecycle state.
	Status Status `json:"status"`

	// CurrentWork is the work item the instance is executing, if any.
	CurrentWork string `json:"current_work,omitempty"`

	// SpawnedAt is when the instance registered (UTC).
	SpawnedAt time.Time `json:"spawned_at"`

	// LastHeartbeat is refreshed by every status mutation and heartbeat.
	LastHeartbeat time.Time `json:"last_heartbeat"`

	// Metadata carries caller-supplied key/value pairs.
	Metadata map[string]any `json:"metadata,omitempty"`
}

// HeartbeatAge returns how long ago the instance last reported in.
func (i Instance) HeartbeatAge(now time.Time) time.Duration {
	return now.Sub(i.LastHeartbeat)
}
