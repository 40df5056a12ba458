// Package escalation implements the Icarus request/response mailbox.
//
// A worker that hits something it cannot decide posts a Request and keeps
// polling for the controller's Response; the controller answers on its own
// schedule. There is no push notification anywhere on the bus, so waiting
// is bounded client-side polling: presence of the response file is the
// authoritative "answered" signal, with the request's resolved flag
// trailing it by one write.
package escalation

import (
	"context"
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

// DefaultPollInterval is the poll cadence used when WaitForResponse is
// given a non-positive interval.
const DefaultPollInterval = 500 * time.Millisecond

// Channel coordinates requests and responses over two document stores.
type Channel struct {
	requests  *store.Store
	responses *store.Store
	logger    *logging.Logger
	bus       *event.Bus
}

// Option configures a Channel.
type Option func(*Channel)

// WithLogger sets the logger. Defaults to a no-op logger.
func WithLogger(l *logging.Logger) Option {
	return func(c *Channel) { c.logger = l }
}

// WithBus attaches an event bus for request lifecycle events.
func WithBus(b *event.Bus) Option {
	return func(c *Channel) { c.bus = b }
}

// New creates a Channel over the given request and response stores.
func New(requests, responses *store.Store, opts ...Option) *Channel {
	c := &Channel{
		requests:  requests,
		responses: responses,
		logger:    logging.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.WithComponent("escalation")
	return c
}

// Open posts an unresolved request from a worker and returns its ID.
func (c *Channel) Open(instanceID, workID string, reqType RequestType, message string, reqContext map[string]any) (string, error) {
	if instanceID == "" {
		return "", buserrors.NewValidationError("instance_id", "must not be empty")
	}
	if !reqType.Valid() {
		return "", buserrors.NewValidationError("type", fmt.Sprintf("unknown request type %q", reqType))
	}
	if message == "" {
		return "", buserrors.NewValidationError("message", "must not be empty")
	}

	req := Request{
		ID:         fmt.Sprintf("req-%s", uuid.NewString()[:8]),
		InstanceID: instanceID,
		WorkID:     workID,
		Type:       reqType,
		Message:    message,
		Context:    reqContext,
		CreatedAt:  time.Now().UTC(),
	}
	if err := c.requests.Put(req.ID, req); err != nil {
		return "", err
	}

	c.logger.Info("request opened",
		"request_id", req.ID,
		"instance_id", instanceID,
		"type", reqType.String(),
	)
	if c.bus != nil {
		c.bus.Publish(event.NewRequestOpenedEvent(req.ID, instanceID, reqType.String()))
	}
	return req.ID, nil
}

// ListPending returns unresolved requests ordered by creation time.
func (c *Channel) ListPending() ([]Request, error) {
	var pending []Request
	err := c.requests.LoadAll(func(key string, data []byte) error {
		var req Request
		if err := json.Unmarshal(data, &req); err != nil {
			return err
		}
		if !req.Resolved {
			pending = append(pending, req)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(pending, func(i, j int) bool {
		if !pending[i].CreatedAt.Equal(pending[j].CreatedAt) {
			return pending[i].CreatedAt.Before(pending[j].CreatedAt)
		}
		return pending[i].ID < pending[j].ID
	})
	return pending, nil
}

// PendingCount returns the number of unresolved requests.
func (c *Channel) PendingCount() (int, error) {
	pending, err := c.ListPending()
	if err != nil {
		return 0, err
	}
	return len(pending), nil
}

// Get returns the request with the given ID, or nil if it does not exist.
func (c *Channel) Get(requestID string) (*Request, error) {
	var req Request
	found, err := c.requests.Get(requestID, &req)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	return &req, nil
}

// Respond writes the controller's answer, then flips the request's
// resolved flag, in that order. A reader may transiently observe the
// response before the flag; the response's presence is the authoritative
// signal. Responding to a request that does not exist returns a
// NotFoundError so the controller learns its answer went nowhere.
func (c *Channel) Respond(requestID string, resp Response) error {
	var req Request
	found, err := c.requests.Get(requestID, &req)
	if err != nil {
		return err
	}
	if !found {
		return buserrors.NewNotFoundError("request", requestID)
	}

	resp.RequestID = requestID
	if resp.CreatedAt.IsZero() {
		resp.CreatedAt = time.Now().UTC()
	}
	if err := c.responses.Put(requestID, resp); err != nil {
		return err
	}

	req.Resolved = true
	if err := c.requests.Put(requestID, req); err != nil {
		return err
	}

	c.logger.Info("request resolved", "request_id", requestID, "decision", resp.Decision)
	if c.bus != nil {
		c.bus.Publish(event.NewRequestResolvedEvent(requestID, resp.Decision))
	}
	return nil
}

// GetResponse is a non-blocking poll for the answer to a request.
// Returns nil if no response has been written yet.
func (c *Channel) GetResponse(requestID string) (*Response, error) {
	var resp Response
	found, err := c.responses.Get(requestID, &resp)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	return &resp, nil
}

// WaitForResponse polls for the answer to a request until it appears, the
// timeout elapses, or ctx is cancelled. Timeout and cancellation both
// return (nil, nil): an unanswered escalation is an expected outcome, not
// an error. There is no latency guarantee finer than the poll interval.
func (c *Channel) WaitForResponse(ctx context.Context, requestID string, timeout, pollInterval time.Duration) (*Response, error) {
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}

	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		resp, err := c.GetResponse(requestID)
		if err != nil {
			return nil, err
		}
		if resp != nil {
			return resp, nil
		}
		if !time.Now().Before(deadline) {
			return nil, nil
		}

		select {
		case <-ctx.Done():
			return nil, nil
		case <-ticker.C:
		}
	}
}
