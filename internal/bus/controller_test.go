package bus

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	buserrors "github.com/mirabel-ai/icarus/internal/errors"
	"github.com/mirabel-ai/icarus/internal/escalation"
	"github.com/mirabel-ai/icarus/internal/event"
	"github.com/mirabel-ai/icarus/internal/registry"
	"github.com/mirabel-ai/icarus/internal/workqueue"
)

func newTestController(t *testing.T) *Controller {
	t.Helper()
	ctl := NewController(t.TempDir())
	if err := ctl.Initialize(); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	return ctl
}

func TestInitializeCreatesLayout(t *testing.T) {
	root := t.TempDir()
	ctl := NewController(root)

	if ctl.IsInitialized() {
		t.Fatal("bus reported initialized before Initialize")
	}
	if err := ctl.Initialize(); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if !ctl.IsInitialized() {
		t.Fatal("bus not initialized after Initialize")
	}

	for _, dir := range []string{"instances", "work-queue", "claimed", "results", "streams", "requests", "responses"} {
		info, err := os.Stat(filepath.Join(root, dir))
		if err != nil {
			t.Fatalf("stat %s: %v", dir, err)
		}
		if !info.IsDir() {
			t.Errorf("%s is not a directory", dir)
		}
	}

	m, err := ctl.ReadManifest()
	if err != nil {
		t.Fatalf("ReadManifest: %v", err)
	}
	if m == nil {
		t.Fatal("manifest missing after Initialize")
	}
	if m.Version != Version {
		t.Errorf("manifest version = %q, want %q", m.Version, Version)
	}
	if m.ControllerPID != os.Getpid() {
		t.Errorf("manifest pid = %d, want %d", m.ControllerPID, os.Getpid())
	}
	if m.CreatedAt.IsZero() {
		t.Error("manifest created_at is zero")
	}
}

func TestInitializeTwiceFails(t *testing.T) {
	ctl := newTestController(t)
	if err := ctl.Initialize(); !buserrors.Is(err, buserrors.ErrAlreadyInitialized) {
		t.Fatalf("second Initialize = %v, want ErrAlreadyInitialized", err)
	}
}

func TestReadManifestUninitialized(t *testing.T) {
	ctl := NewController(t.TempDir())
	m, err := ctl.ReadManifest()
	if err != nil {
		t.Fatalf("ReadManifest: %v", err)
	}
	if m != nil {
		t.Errorf("manifest = %+v, want nil", m)
	}
}

func TestWorkLifecycle(t *testing.T) {
	ctl := newTestController(t)

	workID, err := ctl.WorkQueue().Post(workqueue.WorkItem{
		Type:        "analyze",
		Description: "analyze module boundaries",
		Priority:    workqueue.PriorityHighest,
	})
	if err != nil {
		t.Fatalf("Post: %v", err)
	}

	instID, err := ctl.Registry().Register(os.Getpid(), nil)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	item, err := ctl.WorkQueue().Claim(instID)
	if err != nil {
		t.Fatalf("Claim: %v", err)
	}
	if item == nil || item.ID != workID {
		t.Fatalf("claimed %+v, want id %s", item, workID)
	}
	if item.ClaimedBy != instID {
		t.Errorf("ClaimedBy = %q, want %q", item.ClaimedBy, instID)
	}

	if err := ctl.Results().Submit(workID, instID, map[string]any{"ok": true}); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	rec, err := ctl.Results().Get(workID)
	if err != nil {
		t.Fatalf("Get result: %v", err)
	}
	if rec == nil || rec.InstanceID != instID {
		t.Fatalf("result = %+v, want instance %s", rec, instID)
	}

	summary, err := ctl.StatusSummary()
	if err != nil {
		t.Fatalf("StatusSummary: %v", err)
	}
	if summary.PendingWork != 0 || summary.ClaimedWork != 0 {
		t.Errorf("pending=%d claimed=%d after completion, want 0/0", summary.PendingWork, summary.ClaimedWork)
	}
	if summary.Results != 1 {
		t.Errorf("results = %d, want 1", summary.Results)
	}
}

func TestEscalationLifecycle(t *testing.T) {
	ctl := newTestController(t)

	instID, err := ctl.Registry().Register(os.Getpid(), nil)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	reqID, err := ctl.Escalation().Open(instID, "", escalation.TypeApproval, "apply migration?", nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	summary, err := ctl.StatusSummary()
	if err != nil {
		t.Fatalf("StatusSummary: %v", err)
	}
	if summary.PendingRequests != 1 {
		t.Errorf("pending requests = %d, want 1", summary.PendingRequests)
	}

	if err := ctl.Escalation().Respond(reqID, escalation.Response{Decision: "approve"}); err != nil {
		t.Fatalf("Respond: %v", err)
	}

	resp, err := ctl.Escalation().WaitForResponse(context.Background(), reqID, time.Second, 10*time.Millisecond)
	if err != nil {
		t.Fatalf("WaitForResponse: %v", err)
	}
	if resp == nil || resp.Decision != "approve" {
		t.Fatalf("response = %+v, want approve", resp)
	}
}

func TestStatusSummaryCountsInstancesByStatus(t *testing.T) {
	ctl := newTestController(t)

	a, err := ctl.Registry().Register(os.Getpid(), nil)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if _, err := ctl.Registry().Register(os.Getpid(), nil); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := ctl.Registry().UpdateStatus(a, registry.StatusWorking, "work-1"); err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}

	summary, err := ctl.StatusSummary()
	if err != nil {
		t.Fatalf("StatusSummary: %v", err)
	}
	if summary.Instances["WORKING"] != 1 {
		t.Errorf("WORKING = %d, want 1", summary.Instances["WORKING"])
	}
	if summary.Instances["IDLE"] != 1 {
		t.Errorf("IDLE = %d, want 1", summary.Instances["IDLE"])
	}
}

func TestResetClearsEverything(t *testing.T) {
	ctl := newTestController(t)

	if _, err := ctl.WorkQueue().Post(workqueue.WorkItem{Type: "t", Description: "d"}); err != nil {
		t.Fatalf("Post: %v", err)
	}
	instID, err := ctl.Registry().Register(os.Getpid(), nil)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := ctl.Registry().Streams().Append(instID, "starting"); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if _, err := ctl.Escalation().Open(instID, "", escalation.TypeHelp, "stuck", nil); err != nil {
		t.Fatalf("Open: %v", err)
	}

	if err := ctl.Reset(); err != nil {
		t.Fatalf("Reset: %v", err)
	}

	if !ctl.IsInitialized() {
		t.Fatal("bus not initialized after Reset")
	}
	summary, err := ctl.StatusSummary()
	if err != nil {
		t.Fatalf("StatusSummary: %v", err)
	}
	if summary.PendingWork != 0 || summary.Results != 0 || summary.PendingRequests != 0 || len(summary.Instances) != 0 {
		t.Errorf("summary after reset = %+v, want empty", summary)
	}
	if ctl.Registry().Streams().Exists(instID) {
		t.Error("stream log survived Reset")
	}
}

func TestResetOnUninitializedRoot(t *testing.T) {
	ctl := NewController(t.TempDir())
	if err := ctl.Reset(); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if !ctl.IsInitialized() {
		t.Fatal("bus not initialized after Reset")
	}
}

func TestEventsFlowThroughSharedBus(t *testing.T) {
	events := event.NewBus()
	var names []string
	events.SubscribeAll(func(e event.Event) {
		names = append(names, e.EventType())
	})

	ctl := NewController(t.TempDir(), WithBus(events))
	if err := ctl.Initialize(); err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	instID, err := ctl.Registry().Register(os.Getpid(), nil)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	workID, err := ctl.WorkQueue().Post(workqueue.WorkItem{Type: "t", Description: "d"})
	if err != nil {
		t.Fatalf("Post: %v", err)
	}
	if _, err := ctl.WorkQueue().Claim(instID); err != nil {
		t.Fatalf("Claim: %v", err)
	}
	if err := ctl.Results().Submit(workID, instID, "done"); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	want := []string{"instance.registered", "work.posted", "work.claimed", "result.submitted"}
	if len(names) != len(want) {
		t.Fatalf("events = %v, want %v", names, want)
	}
	for i, name := range want {
		if names[i] != name {
			t.Errorf("event[%d] = %q, want %q", i, names[i], name)
		}
	}
}

func TestTwoControllersShareRoot(t *testing.T) {
	root := t.TempDir()

	controller := NewController(root)
	if err := controller.Initialize(); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	workID, err := controller.WorkQueue().Post(workqueue.WorkItem{Type: "t", Description: "d"})
	if err != nil {
		t.Fatalf("Post: %v", err)
	}

	// A worker process attaches to the same root with its own Controller.
	worker := NewController(root)
	instID, err := worker.Registry().Register(os.Getpid(), nil)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	item, err := worker.WorkQueue().Claim(instID)
	if err != nil {
		t.Fatalf("Claim: %v", err)
	}
	if item == nil || item.ID != workID {
		t.Fatalf("worker claimed %+v, want %s", item, workID)
	}
	if err := worker.Results().Submit(workID, instID, "done"); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	recs, err := controller.Results().Collect(false)
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if len(recs) != 1 || recs[0].WorkID != workID {
		t.Fatalf("controller collected %+v, want one record for %s", recs, workID)
	}
}
