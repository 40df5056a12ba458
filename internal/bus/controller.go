// Package bus wires the Icarus coordination components together over one
// shared directory tree.
//
// The Controller owns the bus root layout and composes the work queue,
// instance registry, result store, and escalation channel for a single
// coordination session. One controller process and any number of worker
// processes point at the same root; everything they share goes through
// the filesystem, never through memory.
//
// Usage:
//
//	ctl := bus.NewController(root, bus.WithLogger(logger))
//	if err := ctl.Initialize(); err != nil { ... }
//
//	id, err := ctl.WorkQueue().Post(item)
//	...
//	summary, err := ctl.StatusSummary()
package bus

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	buserrors "github.com/mirabel-ai/icarus/internal/errors"
	"github.com/mirabel-ai/icarus/internal/escalation"
	"github.com/mirabel-ai/icarus/internal/event"
	"github.com/mirabel-ai/icarus/internal/logging"
	"github.com/mirabel-ai/icarus/internal/registry"
	"github.com/mirabel-ai/icarus/internal/results"
	"github.com/mirabel-ai/icarus/internal/store"
	"github.com/mirabel-ai/icarus/internal/workqueue"
)

// Version identifies the bus layout written to the manifest.
const Version = "1"

// ManifestFile is the marker file at the bus root.
const ManifestFile = "manifest.json"

// Directory names under the bus root.
const (
	instancesDir = "instances"
	workQueueDir = "work-queue"
	claimedDir   = "claimed"
	resultsDir   = "results"
	streamsDir   = "streams"
	requestsDir  = "requests"
	responsesDir = "responses"
)

// Manifest marks an initialized bus root.
type Manifest struct {
	CreatedAt     time.Time `json:"created_at"`
	Version       string    `json:"version"`
	ControllerPID int       `json:"controller_pid"`
}

// Summary is an aggregate snapshot of bus state.
type Summary struct {
	Instances       map[string]int `json:"instances"`
	PendingWork     int            `json:"pending_work"`
	ClaimedWork     int            `json:"claimed_work"`
	Results         int            `json:"results"`
	PendingRequests int            `json:"pending_requests"`
}

// Controller composes the bus components over a shared root directory.
type Controller struct {
	root   string
	logger *logging.Logger
	bus    *event.Bus

	pending   *store.Store
	claimed   *store.Store
	instances *store.Store
	records   *store.Store
	requests  *store.Store
	responses *store.Store

	queue      *workqueue.Queue
	registry   *registry.Registry
	results    *results.Store
	escalation *escalation.Channel
}

// Option configures a Controller.
type Option func(*controllerConfig)

type controllerConfig struct {
	logger *logging.Logger
	bus    *event.Bus
}

// WithLogger sets the logger shared by all components.
// Defaults to a no-op logger.
func WithLogger(l *logging.Logger) Option {
	return func(c *controllerConfig) { c.logger = l }
}

// WithBus attaches an event bus; components publish lifecycle events to it.
func WithBus(b *event.Bus) Option {
	return func(c *controllerConfig) { c.bus = b }
}

// NewController creates a Controller rooted at the given directory. The
// directory need not exist yet; Initialize creates the layout.
func NewController(root string, opts ...Option) *Controller {
	cfg := &controllerConfig{logger: logging.Nop()}
	for _, opt := range opts {
		opt(cfg)
	}

	c := &Controller{
		root:      root,
		logger:    cfg.logger.WithComponent("controller"),
		bus:       cfg.bus,
		pending:   store.New(filepath.Join(root, workQueueDir), cfg.logger),
		claimed:   store.New(filepath.Join(root, claimedDir), cfg.logger),
		instances: store.New(filepath.Join(root, instancesDir), cfg.logger),
		records:   store.New(filepath.Join(root, resultsDir), cfg.logger),
		requests:  store.New(filepath.Join(root, requestsDir), cfg.logger),
		responses: store.New(filepath.Join(root, responsesDir), cfg.logger),
	}

	queueOpts := []workqueue.Option{workqueue.WithLogger(cfg.logger)}
	registryOpts := []registry.Option{registry.WithLogger(cfg.logger)}
	resultOpts := []results.Option{results.WithLogger(cfg.logger)}
	channelOpts := []escalation.Option{escalation.WithLogger(cfg.logger)}
	if cfg.bus != nil {
		queueOpts = append(queueOpts, workqueue.WithBus(cfg.bus))
		registryOpts = append(registryOpts, registry.WithBus(cfg.bus))
		resultOpts = append(resultOpts, results.WithBus(cfg.bus))
		channelOpts = append(channelOpts, escalation.WithBus(cfg.bus))
	}

	c.queue = workqueue.New(c.pending, c.claimed, queueOpts...)
	c.registry = registry.New(c.instances, filepath.Join(root, streamsDir), registryOpts...)
	c.results = results.New(c.records, c.claimed, resultOpts...)
	c.escalation = escalation.New(c.requests, c.responses, channelOpts...)

	return c
}

// Root returns the bus root directory.
func (c *Controller) Root() string { return c.root }

// WorkQueue returns the work dispatch queue.
func (c *Controller) WorkQueue() *workqueue.Queue { return c.queue }

// Registry returns the instance registry.
func (c *Controller) Registry() *registry.Registry { return c.registry }

// Results returns the result store.
func (c *Controller) Results() *results.Store { return c.results }

// Escalation returns the request/response channel.
func (c *Controller) Escalation() *escalation.Channel { return c.escalation }

// Initialize creates the bus directory layout and writes the manifest.
// Returns ErrAlreadyInitialized if a manifest is already present.
func (c *Controller) Initialize() error {
	if c.IsInitialized() {
		return buserrors.ErrAlreadyInitialized
	}

	for _, dir := range []string{instancesDir, workQueueDir, claimedDir, resultsDir, streamsDir, requestsDir, responsesDir} {
		if err := os.MkdirAll(filepath.Join(c.root, dir), 0o755); err != nil {
			return fmt.Errorf("create bus directory %s: %w", dir, err)
		}
	}
	if err := c.writeManifest(); err != nil {
		return err
	}

	c.logger.Info("bus initialized", "root", c.root)
	return nil
}

// IsInitialized reports whether the bus root carries a manifest.
func (c *Controller) IsInitialized() bool {
	_, err := os.Stat(filepath.Join(c.root, ManifestFile))
	return err == nil
}

// ReadManifest returns the bus manifest, or nil if the bus is not
// initialized.
func (c *Controller) ReadManifest() (*Manifest, error) {
	data, err := os.ReadFile(filepath.Join(c.root, ManifestFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	return &m, nil
}

// Reset clears every store and stream log and rewrites the manifest.
// The bus comes out initialized and empty.
func (c *Controller) Reset() error {
	if err := c.Initialize(); err != nil && !buserrors.Is(err, buserrors.ErrAlreadyInitialized) {
		return err
	}

	for _, s := range []*store.Store{c.pending, c.claimed, c.instances, c.records, c.requests, c.responses} {
		if err := s.Clear(); err != nil {
			return err
		}
	}
	if err := c.registry.Streams().Clear(); err != nil {
		return err
	}
	if err := c.writeManifest(); err != nil {
		return err
	}

	c.logger.Info("bus reset", "root", c.root)
	return nil
}

// StatusSummary returns instance counts by status plus pending, claimed,
// result, and pending-request counts.
func (c *Controller) StatusSummary() (*Summary, error) {
	byStatus, err := c.registry.CountByStatus()
	if err != nil {
		return nil, err
	}
	instances := make(map[string]int, len(byStatus))
	for status, n := range byStatus {
		instances[status.String()] = n
	}

	pending, err := c.pending.Count()
	if err != nil {
		return nil, err
	}
	claimed, err := c.claimed.Count()
	if err != nil {
		return nil, err
	}
	records, err := c.records.Count()
	if err != nil {
		return nil, err
	}
	requests, err := c.escalation.PendingCount()
	if err != nil {
		return nil, err
	}

	return &Summary{
		Instances:       instances,
		PendingWork:     pending,
		ClaimedWork:     claimed,
		Results:         records,
		PendingRequests: requests,
	}, nil
}

// writeManifest writes the manifest atomically via a temp file rename.
func (c *Controller) writeManifest() error {
	m := Manifest{
		CreatedAt:     time.Now().UTC(),
		Version:       Version,
		ControllerPID: os.Getpid(),
	}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}

	target := filepath.Join(c.root, ManifestFile)
	tmp := target + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	if err := os.Rename(tmp, target); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("rename manifest: %w", err)
	}
	return nil
}
