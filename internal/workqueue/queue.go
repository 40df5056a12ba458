// Package workqueue implements the pending/claimed halves of the Icarus
// work dispatch queue.
//
// Work items wait as individual JSON files in the pending store. Claiming
// transfers an item to the claimed store under a non-blocking advisory
// lock, giving at-most-one-claimant semantics across concurrently running
// worker processes with no shared memory and no database. The two-step
// transfer (write claimed copy, then delete pending copy) means a crash
// between the steps can leave an item visible in both stores; the claimed
// copy is authoritative, and scans remove the stale pending copy when they
// encounter one.
package workqueue

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	buserrors "github.com/mirabel-ai/icarus/internal/errors"
	"github.com/mirabel-ai/icarus/internal/event"
	"github.com/mirabel-ai/icarus/internal/logging"
	"github.com/mirabel-ai/icarus/internal/store"
)

// Queue coordinates work dispatch over a pending store and a claimed store.
// It is safe for concurrent use by any number of processes sharing the
// same directories.
type Queue struct {
	pending *store.Store
	claimed *store.Store
	logger  *logging.Logger
	bus     *event.Bus
}

// Option configures a Queue.
type Option func(*Queue)

// WithLogger sets the logger. Defaults to a no-op logger.
func WithLogger(l *logging.Logger) Option {
	return func(q *Queue) { q.logger = l }
}

// WithBus attaches an event bus. When set, lifecycle events are published
// after successful operations.
func WithBus(b *event.Bus) Option {
	return func(q *Queue) { q.bus = b }
}

// New creates a Queue over the given pending and claimed stores.
func New(pending, claimed *store.Store, opts ...Option) *Queue {
	q := &Queue{
		pending: pending,
		claimed: claimed,
		logger:  logging.Nop(),
	}
	for _, opt := range opts {
		opt(q)
	}
	q.logger = q.logger.WithComponent("workqueue")
	return q
}

// Post validates and persists a work item to the pending store, assigning
// an ID if the item has none, and returns the ID. Priority values outside
// [1, 10] are clamped; a zero priority gets the default.
func (q *Queue) Post(item WorkItem) (string, error) {
	if item.Type == "" {
		return "", buserrors.NewValidationError("type", "must not be empty")
	}
	if item.Description == "" {
		return "", buserrors.NewValidationError("description", "must not be empty")
	}

	if item.ID == "" {
		item.ID = fmt.Sprintf("work-%s", uuid.NewString()[:8])
	}
	switch {
	case item.Priority == 0:
		item.Priority = PriorityDefault
	case item.Priority < PriorityHighest:
		item.Priority = PriorityHighest
	case item.Priority > PriorityLowest:
		item.Priority = PriorityLowest
	}
	item.Status = StatusPending
	item.ClaimedBy = ""
	item.ClaimedAt = nil
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now().UTC()
	}

	if err := q.pending.Put(item.ID, item); err != nil {
		return "", err
	}

	q.logger.Info("work posted", "work_id", item.ID, "type", item.Type, "priority", item.Priority)
	if q.bus != nil {
		q.bus.Publish(event.NewWorkPostedEvent(item.ID, item.Type, item.Priority))
	}
	return item.ID, nil
}

// Claim attempts to take one pending item for the given instance. It scans
// candidates ordered by (priority ascending, creation time ascending) and,
// for each, tries a non-blocking exclusive lock on the item's file. Losing
// the lock or finding the file vanished means another instance got there
// first; the scan moves on. On success the item is written to the claimed
// store with CLAIMED status, removed from pending, and returned.
//
// Returns (nil, nil) when nothing could be claimed; an empty queue and a
// queue whose every candidate was taken by faster contenders are
// indistinguishable, and neither is an error.
func (q *Queue) Claim(instanceID string) (*WorkItem, error) {
	if instanceID == "" {
		return nil, buserrors.NewValidationError("instance_id", "must not be empty")
	}

	candidates, err := q.loadPending()
	if err != nil {
		return nil, err
	}

	for _, candidate := range candidates {
		// A pending copy whose id already lives in the claimed store is a
		// leftover from a crash mid-transfer. The claimed copy wins.
		if q.claimed.Exists(candidate.ID) {
			if err := q.pending.Delete(candidate.ID); err == nil {
				q.logger.Warn("removed stale pending copy of claimed item", "work_id", candidate.ID)
			}
			continue
		}

		lock, ok, err := store.TryLock(q.pending.Path(candidate.ID))
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}

		item, ok := q.takeLocked(candidate.ID, instanceID)
		if unlockErr := lock.Unlock(); unlockErr != nil {
			q.logger.Warn("unlock after claim", "work_id", candidate.ID, "error", unlockErr.Error())
		}
		if ok {
			q.logger.Info("work claimed", "work_id", item.ID, "instance_id", instanceID)
			if q.bus != nil {
				q.bus.Publish(event.NewWorkClaimedEvent(item.ID, instanceID))
			}
			return item, nil
		}
	}
	return nil, nil
}

// takeLocked performs the pending-to-claimed transfer for one item while
// its file lock is held. Returns (nil, false) if the item vanished or was
// unreadable; the caller moves to the next candidate.
func (q *Queue) takeLocked(id, instanceID string) (*WorkItem, bool) {
	// Re-read under the lock: the listing snapshot may be stale.
	var item WorkItem
	found, err := q.pending.Get(id, &item)
	if err != nil {
		q.logger.Warn("skipping unreadable pending item", "work_id", id, "error", err.Error())
		return nil, false
	}
	if !found {
		return nil, false
	}

	now := time.Now().UTC()
	item.Status = StatusClaimed
	item.ClaimedBy = instanceID
	item.ClaimedAt = &now

	// Write to claimed first, then remove from pending. A crash between
	// the two leaves a duplicate that later scans resolve in favor of the
	// claimed copy.
	if err := q.claimed.Put(id, item); err != nil {
		q.logger.Error("write claimed record", "work_id", id, "error", err.Error())
		return nil, false
	}
	if err := q.pending.Delete(id); err != nil {
		q.logger.Warn("remove pending copy after claim", "work_id", id, "error", err.Error())
	}
	return &item, true
}

// Withdraw removes an unclaimed item from the pending store. Withdrawing
// an item that was already claimed returns ErrAlreadyClaimed; withdrawing
// an item that no longer exists anywhere is a no-op.
func (q *Queue) Withdraw(id string) error {
	if q.claimed.Exists(id) {
		return buserrors.ErrAlreadyClaimed
	}

	lock, ok, err := store.TryLock(q.pending.Path(id))
	if err != nil {
		return err
	}
	if !ok {
		// Locked by a claimer in flight, or already gone.
		if q.claimed.Exists(id) || q.pending.Exists(id) {
			return buserrors.ErrAlreadyClaimed
		}
		return nil
	}
	defer func() { _ = lock.Unlock() }()

	if err := q.pending.Delete(id); err != nil {
		return err
	}
	q.logger.Info("work withdrawn", "work_id", id)
	if q.bus != nil {
		q.bus.Publish(event.NewWorkWithdrawnEvent(id))
	}
	return nil
}

// MarkInProgress rewrites a claimed item's status to IN_PROGRESS. The
// claimed record has a single writer (its claimant), so no lock is taken.
// No-ops if the claimed record has vanished.
func (q *Queue) MarkInProgress(id string) error {
	var item WorkItem
	found, err := q.claimed.Get(id, &item)
	if err != nil {
		return err
	}
	if !found {
		return nil
	}
	item.Status = StatusInProgress
	return q.claimed.Put(id, item)
}

// ListPending returns a snapshot of pending items in claim order. The
// snapshot is not a live view: items posted or claimed after the scan
// starts may or may not appear.
func (q *Queue) ListPending() ([]WorkItem, error) {
	return q.loadPending()
}

// ListClaimed returns a snapshot of claimed items ordered by claim time.
func (q *Queue) ListClaimed() ([]WorkItem, error) {
	items, err := q.loadStore(q.claimed)
	if err != nil {
		return nil, err
	}
	sort.Slice(items, func(i, j int) bool {
		a, b := items[i], items[j]
		switch {
		case a.ClaimedAt == nil:
			return b.ClaimedAt != nil
		case b.ClaimedAt == nil:
			return false
		case !a.ClaimedAt.Equal(*b.ClaimedAt):
			return a.ClaimedAt.Before(*b.ClaimedAt)
		}
		return a.ID < b.ID
	})
	return items, nil
}

// Get returns the item with the given ID from either store, or nil if it
// exists in neither. When a crash has left copies in both stores, the
// claimed copy is returned.
func (q *Queue) Get(id string) (*WorkItem, error) {
	var item WorkItem
	found, err := q.claimed.Get(id, &item)
	if err != nil {
		return nil, err
	}
	if found {
		return &item, nil
	}
	found, err = q.pending.Get(id, &item)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	return &item, nil
}

// loadPending returns all readable pending items sorted into claim order.
func (q *Queue) loadPending() ([]WorkItem, error) {
	items, err := q.loadStore(q.pending)
	if err != nil {
		return nil, err
	}
	sort.Slice(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if a.Priority != b.Priority {
			return a.Priority < b.Priority
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
	return items, nil
}

// loadStore decodes every readable item in a store, skipping malformed files.
func (q *Queue) loadStore(s *store.Store) ([]WorkItem, error) {
	var items []WorkItem
	err := s.LoadAll(func(key string, data []byte) error {
		var item WorkItem
		if err := json.Unmarshal(data, &item); err != nil {
			return err
		}
		items = append(items, item)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return items, nil
}
