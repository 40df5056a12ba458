// Package results stores write-once completion records for the Icarus bus.
//
// A result is keyed by work id; submitting it retires the matching claimed
// entry, which is how a work item reaches its terminal state. Records for
// different work ids never contend; resubmitting the same id overwrites
// under filesystem last-write-wins, which the bus documents as an
// application-level bug rather than a guarantee it arbitrates.
package results

import (
	"encoding/json"
	"sort"
	"time"

	buserrors "github.com/mirabel-ai/icarus/internal/errors"
	"github.com/mirabel-ai/icarus/internal/event"
	"github.com/mirabel-ai/icarus/internal/logging"
	"github.com/mirabel-ai/icarus/internal/store"
)

// Record is one completed unit of work. Result is opaque to the bus.
type Record struct {
	WorkID      string    `json:"work_id"`
	InstanceID  string    `json:"instance_id"`
	Result      any       `json:"result"`
	CompletedAt time.Time `json:"completed_at"`
}

// Store persists completion records and retires claimed entries.
type Store struct {
	records *store.Store
	claimed *store.Store
	logger  *logging.Logger
	bus     *event.Bus
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger. Defaults to a no-op logger.
func WithLogger(l *logging.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// WithBus attaches an event bus for submission events.
func WithBus(b *event.Bus) Option {
	return func(s *Store) { s.bus = b }
}

// New creates a result Store. The claimed store is the work queue's
// claimed half; Submit removes the matching entry from it.
func New(records, claimed *store.Store, opts ...Option) *Store {
	s := &Store{
		records: records,
		claimed: claimed,
		logger:  logging.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.WithComponent("results")
	return s
}

// Submit writes a completion record for the given work id and removes the
// matching claimed entry if one is present. Submitting a work id that has
// no claimed entry still records the result.
func (s *Store) Submit(workID, instanceID string, result any) error {
	if workID == "" {
		return buserrors.NewValidationError("work_id", "must not be empty")
	}
	if instanceID == "" {
		return buserrors.NewValidationError("instance_id", "must not be empty")
	}

	rec := Record{
		WorkID:      workID,
		InstanceID:  instanceID,
		Result:      result,
		CompletedAt: time.Now().UTC(),
	}
	if err := s.records.Put(workID, rec); err != nil {
		return err
	}
	if err := s.claimed.Delete(workID); err != nil {
		return err
	}

	s.logger.Info("result submitted", "work_id", workID, "instance_id", instanceID)
	if s.bus != nil {
		s.bus.Publish(event.NewResultSubmittedEvent(workID, instanceID))
	}
	return nil
}

// Get returns the record for the given work id, or nil if none exists.
func (s *Store) Get(workID string) (*Record, error) {
	var rec Record
	found, err := s.records.Get(workID, &rec)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	return &rec, nil
}

// Collect returns all records ordered by completion time. With clear set,
// each returned record is deleted after reading. The read-then-delete is
// not transactional: the bus assumes a single consumer collects with
// clear, and a record submitted between the read and the delete of a
// different record is unaffected either way.
func (s *Store) Collect(clear bool) ([]Record, error) {
	var records []Record
	err := s.records.LoadAll(func(key string, data []byte) error {
		var rec Record
		if err := json.Unmarshal(data, &rec); err != nil {
			return err
		}
		records = append(records, rec)
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(records, func(i, j int) bool {
		if !records[i].CompletedAt.Equal(records[j].CompletedAt) {
			return records[i].CompletedAt.Before(records[j].CompletedAt)
		}
		return records[i].WorkID < records[j].WorkID
	})

	if clear {
		for _, rec := range records {
			if err := s.records.Delete(rec.WorkID); err != nil {
				return records, err
			}
		}
	}
	return records, nil
}

// Count returns the number of stored records.
func (s *Store) Count() (int, error) {
	return s.records.Count()
}
