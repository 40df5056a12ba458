// Package registry tracks the worker instances attached to an Icarus bus.
//
// Instances self-register, declare their own status transitions, and
// heartbeat periodically. Liveness detection is lazy: nothing watches the
// heartbeats until the controller asks for stale instances to be reaped.
// Each instance exclusively owns its registry record and its append-only
// stream log, so no locking is needed on either.
package registry

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shirou/gopsutil/v3/process"

	buserrors "github.com/mirabel-ai/icarus/internal/errors"
	"github.com/mirabel-ai/icarus/internal/event"
	"github.com/mirabel-ai/icarus/internal/logging"
	"github.com/mirabel-ai/icarus/internal/store"
)

// Registry manages instance records and their stream logs.
type Registry struct {
	instances *store.Store
	streams   *Streams
	logger    *logging.Logger
	bus       *event.Bus

	// pidAlive is swappable for tests.
	pidAlive func(pid int) bool
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the logger. Defaults to a no-op logger.
func WithLogger(l *logging.Logger) Option {
	return func(r *Registry) { r.logger = l }
}

// WithBus attaches an event bus for lifecycle events.
func WithBus(b *event.Bus) Option {
	return func(r *Registry) { r.bus = b }
}

// New creates a Registry over the given instance store and stream log
// directory.
func New(instances *store.Store, streamDir string, opts ...Option) *Registry {
	r := &Registry{
		instances: instances,
		streams:   NewStreams(streamDir),
		logger:    logging.Nop(),
		pidAlive:  pidExists,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.WithComponent("registry")
	return r
}

// Streams returns the per-instance stream log accessor.
func (r *Registry) Streams() *Streams {
	return r.streams
}

// Register creates an IDLE instance record for the given process and
// returns its assigned instance ID. The instance's stream log is created
// alongside the record.
func (r *Registry) Register(pid int, metadata map[string]any) (string, error) {
	if pid <= 0 {
		return "", buserrors.NewValidationError("pid", "must be positive")
	}

	now := time.Now().UTC()
	inst := Instance{
		ID:            fmt.Sprintf("inst-%s", uuid.NewString()[:8]),
		PID:           pid,
		Status:        StatusIdle,
		SpawnedAt:     now,
		LastHeartbeat: now,
		Metadata:      metadata,
	}
	if err := r.instances.Put(inst.ID, inst); err != nil {
		return "", err
	}
	if err := r.streams.Create(inst.ID); err != nil {
		return "", err
	}

	r.logger.Info("instance registered", "instance_id", inst.ID, "pid", pid)
	if r.bus != nil {
		r.bus.Publish(event.NewInstanceRegisteredEvent(inst.ID, pid))
	}
	return inst.ID, nil
}

// Unregister deletes the instance record and its stream log. Idempotent.
func (r *Registry) Unregister(id string) error {
	return r.remove(id, "unregister")
}

// remove deletes a record and log, publishing the removal reason.
func (r *Registry) remove(id, reason string) error {
	existed := r.instances.Exists(id)
	if err := r.instances.Delete(id); err != nil {
		return err
	}
	if err := r.streams.Delete(id); err != nil {
		return err
	}
	if existed {
		r.logger.Info("instance removed", "instance_id", id, "reason", reason)
		if r.bus != nil {
			r.bus.Publish(event.NewInstanceRemovedEvent(id, reason))
		}
	}
	return nil
}

// UpdateStatus overwrites the instance's status and current work, and
// refreshes its heartbeat. No-ops if the instance has vanished.
func (r *Registry) UpdateStatus(id string, status Status, workID string) error {
	var inst Instance
	found, err := r.instances.Get(id, &inst)
	if err != nil {
		return err
	}
	if !found {
		return nil
	}

	inst.Status = status
	inst.CurrentWork = workID
	inst.LastHeartbeat = time.Now().UTC()
	return r.instances.Put(id, inst)
}

// Heartbeat refreshes the instance's last heartbeat without touching
// status or current work. No-ops if the instance has vanished.
func (r *Registry) Heartbeat(id string) error {
	var inst Instance
	found, err := r.instances.Get(id, &inst)
	if err != nil {
		return err
	}
	if !found {
		return nil
	}

	inst.LastHeartbeat = time.Now().UTC()
	return r.instances.Put(id, inst)
}

// Get returns the instance with the given ID, or nil if it is not
// registered.
func (r *Registry) Get(id string) (*Instance, error) {
	var inst Instance
	found, err := r.instances.Get(id, &inst)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	return &inst, nil
}

// List returns a snapshot of registered instances ordered by spawn time.
// If statusFilter is non-empty, only instances in that status are
// returned. Malformed records are skipped.
func (r *Registry) List(statusFilter Status) ([]Instance, error) {
	var instances []Instance
	err := r.instances.LoadAll(func(key string, data []byte) error {
		var inst Instance
		if err := json.Unmarshal(data, &inst); err != nil {
			return err
		}
		if statusFilter == "" || inst.Status == statusFilter {
			instances = append(instances, inst)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(instances, func(i, j int) bool {
		if !instances[i].SpawnedAt.Equal(instances[j].SpawnedAt) {
			return instances[i].SpawnedAt.Before(instances[j].SpawnedAt)
		}
		return instances[i].ID < instances[j].ID
	})
	return instances, nil
}

// CountByStatus returns a count of registered instances per status.
func (r *Registry) CountByStatus() (map[Status]int, error) {
	instances, err := r.List("")
	if err != nil {
		return nil, err
	}
	counts := make(map[Status]int)
	for _, inst := range instances {
		counts[inst.Status]++
	}
	return counts, nil
}

// CleanupStale unregisters every instance whose heartbeat age exceeds the
// threshold and returns the removed IDs. A threshold of zero removes
// every registered instance.
func (r *Registry) CleanupStale(threshold time.Duration) ([]string, error) {
	instances, err := r.List("")
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	var removed []string
	for _, inst := range instances {
		if inst.HeartbeatAge(now) <= threshold {
			continue
		}
		if err := r.remove(inst.ID, "stale"); err != nil {
			return removed, err
		}
		r.logger.Warn("stale instance reaped",
			"instance_id", inst.ID,
			"heartbeat_age", inst.HeartbeatAge(now).String(),
		)
		removed = append(removed, inst.ID)
	}
	return removed, nil
}

// CleanupDead unregisters every instance whose recorded process no longer
// exists and returns the removed IDs. This catches workers that crashed
// without unregistering, independent of how recently they heartbeated.
func (r *Registry) CleanupDead() ([]string, error) {
	instances, err := r.List("")
	if err != nil {
		return nil, err
	}

	var removed []string
	for _, inst := range instances {
		if r.pidAlive(inst.PID) {
			continue
		}
		if err := r.remove(inst.ID, "dead"); err != nil {
			return removed, err
		}
		r.logger.Warn("dead instance reaped", "instance_id", inst.ID, "pid", inst.PID)
		removed = append(removed, inst.ID)
	}
	return removed, nil
}

// pidExists reports whether a process with the given pid is running.
func pidExists(pid int) bool {
	alive, err := process.PidExists(int32(pid))
	return err == nil && alive
}
