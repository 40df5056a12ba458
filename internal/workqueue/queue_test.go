package workqueue

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	buserrors "github.com/mirabel-ai/icarus/internal/errors"
	"github.com/mirabel-ai/icarus/internal/event"
	"github.com/mirabel-ai/icarus/internal/logging"
	"github.com/mirabel-ai/icarus/internal/store"
)

func newTestQueue(t *testing.T, opts ...Option) *Queue {
	t.Helper()
	root := t.TempDir()
	pending := store.New(filepath.Join(root, "work-queue"), logging.Nop())
	claimed := store.New(filepath.Join(root, "claimed"), logging.Nop())
	return New(pending, claimed, opts...)
}

func TestPostAndListPending(t *testing.T) {
	q := newTestQueue(t)

	id, err := q.Post(WorkItem{Type: "research", Description: "find prior art"})
	if err != nil {
		t.Fatalf("Post: %v", err)
	}
	if id == "" {
		t.Fatal("Post should assign an id")
	}

	items, err := q.ListPending()
	if err != nil {
		t.Fatalf("ListPending: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected 1 pending item, got %d", len(items))
	}
	got := items[0]
	if got.ID != id {
		t.Errorf("ID = %s, want %s", got.ID, id)
	}
	if got.Status != StatusPending {
		t.Errorf("Status = %s, want %s", got.Status, StatusPending)
	}
	if got.Priority != PriorityDefault {
		t.Errorf("Priority = %d, want default %d", got.Priority, PriorityDefault)
	}
	if got.CreatedAt.IsZero() {
		t.Error("CreatedAt should be set")
	}
	if got.CreatedAt.Location() != time.UTC {
		t.Error("CreatedAt should be UTC")
	}
}

func TestPostValidation(t *testing.T) {
	q := newTestQueue(t)

	tests := []struct {
		name string
		item WorkItem
	}{
		{"empty type", WorkItem{Description: "d"}},
		{"empty description", WorkItem{Type: "t"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := q.Post(tt.item); !buserrors.IsValidation(err) {
				t.Errorf("Post(%+v) error = %v, want ValidationError", tt.item, err)
			}
		})
	}
}

func TestPostClampsPriority(t *testing.T) {
	q := newTestQueue(t)

	tests := []struct {
		in, want int
	}{
		{0, PriorityDefault},
		{-3, PriorityHighest},
		{1, 1},
		{10, 10},
		{99, PriorityLowest},
	}
	for _, tt := range tests {
		id, err := q.Post(WorkItem{Type: "t", Description: "d", Priority: tt.in})
		if err != nil {
			t.Fatalf("Post: %v", err)
		}
		item, err := q.Get(id)
		if err != nil || item == nil {
			t.Fatalf("Get(%s): item=%v err=%v", id, item, err)
		}
		if item.Priority != tt.want {
			t.Errorf("priority %d stored as %d, want %d", tt.in, item.Priority, tt.want)
		}
	}
}

func TestClaimPriorityOrder(t *testing.T) {
	q := newTestQueue(t)

	// Post with priorities 5, 1, 3; claims must come back 1, 3, 5.
	posted := map[int]string{}
	for _, p := range []int{5, 1, 3} {
		id, err := q.Post(WorkItem{Type: "t", Description: "d", Priority: p})
		if err != nil {
			t.Fatalf("Post: %v", err)
		}
		posted[p] = id
	}

	for _, wantPriority := range []int{1, 3, 5} {
		item, err := q.Claim("inst-1")
		if err != nil {
			t.Fatalf("Claim: %v", err)
		}
		if item == nil {
			t.Fatalf("Claim returned nil, want priority-%d item", wantPriority)
		}
		if item.ID != posted[wantPriority] {
			t.Errorf("claimed %s (priority %d), want %s (priority %d)",
				item.ID, item.Priority, posted[wantPriority], wantPriority)
		}
	}

	// Queue is drained.
	item, err := q.Claim("inst-1")
	if err != nil {
		t.Fatalf("Claim on empty queue: %v", err)
	}
	if item != nil {
		t.Errorf("Claim on empty queue = %+v, want nil", item)
	}
}

func TestClaimCreationTimeTiebreak(t *testing.T) {
	q := newTestQueue(t)

	base := time.Now().UTC()
	first, err := q.Post(WorkItem{Type: "t", Description: "older", Priority: 2, CreatedAt: base})
	if err != nil {
		t.Fatalf("Post: %v", err)
	}
	if _, err := q.Post(WorkItem{Type: "t", Description: "newer", Priority: 2, CreatedAt: base.Add(time.Second)}); err != nil {
		t.Fatalf("Post: %v", err)
	}

	item, err := q.Claim("inst-1")
	if err != nil || item == nil {
		t.Fatalf("Claim: item=%v err=%v", item, err)
	}
	if item.ID != first {
		t.Errorf("claimed %s, want the older item %s", item.ID, first)
	}
}

func TestClaimMovesItemBetweenStores(t *testing.T) {
	q := newTestQueue(t)

	id, err := q.Post(WorkItem{Type: "t", Description: "d"})
	if err != nil {
		t.Fatalf("Post: %v", err)
	}

	item, err := q.Claim("inst-1")
	if err != nil || item == nil {
		t.Fatalf("Claim: item=%v err=%v", item, err)
	}
	if item.Status != StatusClaimed {
		t.Errorf("Status = %s, want %s", item.Status, StatusClaimed)
	}
	if item.ClaimedBy != "inst-1" {
		t.Errorf("ClaimedBy = %s, want inst-1", item.ClaimedBy)
	}
	if item.ClaimedAt == nil {
		t.Error("ClaimedAt should be set")
	}

	pending, err := q.ListPending()
	if err != nil {
		t.Fatalf("ListPending: %v", err)
	}
	claimed, err := q.ListClaimed()
	if err != nil {
		t.Fatalf("ListClaimed: %v", err)
	}
	if len(pending) != 0 {
		t.Errorf("pending should be empty after claim, got %d items", len(pending))
	}
	if len(claimed) != 1 || claimed[0].ID != id {
		t.Errorf("claimed store should hold exactly %s, got %v", id, claimed)
	}
}

func TestConcurrentClaimSingleWinner(t *testing.T) {
	q := newTestQueue(t)

	if _, err := q.Post(WorkItem{Type: "t", Description: "single item"}); err != nil {
		t.Fatalf("Post: %v", err)
	}

	const contenders = 8

	var mu sync.Mutex
	var won []string

	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < contenders; i++ {
		wg.Add(1)
		instance := []string{"inst-a", "inst-b", "inst-c", "inst-d", "inst-e", "inst-f", "inst-g", "inst-h"}[i]
		go func() {
			defer wg.Done()
			<-start
			item, err := q.Claim(instance)
			if err != nil {
				t.Errorf("Claim(%s): %v", instance, err)
				return
			}
			if item != nil {
				mu.Lock()
				won = append(won, instance)
				mu.Unlock()
			}
		}()
	}
	close(start)
	wg.Wait()

	if len(won) != 1 {
		t.Fatalf("expected exactly 1 winning claim, got %d (%v)", len(won), won)
	}

	claimed, err := q.ListClaimed()
	if err != nil {
		t.Fatalf("ListClaimed: %v", err)
	}
	if len(claimed) != 1 || claimed[0].ClaimedBy != won[0] {
		t.Errorf("claimed store disagree with winner %s: %v", won[0], claimed)
	}
}

func TestConcurrentClaimsDrainQueueWithoutDuplicates(t *testing.T) {
	q := newTestQueue(t)

	const items = 6
	for i := 0; i < items; i++ {
		if _, err := q.Post(WorkItem{Type: "t", Description: "d"}); err != nil {
			t.Fatalf("Post: %v", err)
		}
	}

	var mu sync.Mutex
	seen := make(map[string]string) // workID -> instance

	var wg sync.WaitGroup
	for _, instance := range []string{"inst-1", "inst-2", "inst-3"} {
		wg.Add(1)
		go func(instance string) {
			defer wg.Done()
			for {
				item, err := q.Claim(instance)
				if err != nil {
					t.Errorf("Claim(%s): %v", instance, err)
					return
				}
				if item == nil {
					return
				}
				mu.Lock()
				if prev, dup := seen[item.ID]; dup {
					t.Errorf("item %s claimed by both %s and %s", item.ID, prev, instance)
				}
				seen[item.ID] = instance
				mu.Unlock()
			}
		}(instance)
	}
	wg.Wait()

	if len(seen) != items {
		t.Errorf("claimed %d distinct items, want %d", len(seen), items)
	}
}

func TestClaimPrefersClaimedCopyOverStalePending(t *testing.T) {
	q := newTestQueue(t)

	id, err := q.Post(WorkItem{Type: "t", Description: "d"})
	if err != nil {
		t.Fatalf("Post: %v", err)
	}
	item, err := q.Claim("inst-1")
	if err != nil || item == nil {
		t.Fatalf("Claim: item=%v err=%v", item, err)
	}

	// Simulate a crash mid-transfer: resurrect the pending copy while the
	// claimed copy exists.
	stale := *item
	stale.Status = StatusPending
	stale.ClaimedBy = ""
	stale.ClaimedAt = nil
	if err := q.pending.Put(id, stale); err != nil {
		t.Fatalf("resurrect pending copy: %v", err)
	}

	// The stale copy must not be claimable, and the scan should remove it.
	got, err := q.Claim("inst-2")
	if err != nil {
		t.Fatalf("Claim: %v", err)
	}
	if got != nil {
		t.Errorf("stale pending copy was claimed: %+v", got)
	}
	if q.pending.Exists(id) {
		t.Error("stale pending copy should have been removed by the scan")
	}
	if !q.claimed.Exists(id) {
		t.Error("claimed copy must survive")
	}
}

func TestClaimSkipsMalformedPendingFile(t *testing.T) {
	q := newTestQueue(t)

	if err := os.MkdirAll(q.pending.Dir(), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(q.pending.Path("broken"), []byte("{nope"), 0o644); err != nil {
		t.Fatal(err)
	}
	id, err := q.Post(WorkItem{Type: "t", Description: "good item"})
	if err != nil {
		t.Fatalf("Post: %v", err)
	}

	item, err := q.Claim("inst-1")
	if err != nil {
		t.Fatalf("Claim: %v", err)
	}
	if item == nil || item.ID != id {
		t.Fatalf("Claim should skip the malformed file and return %s, got %v", id, item)
	}
}

func TestWithdraw(t *testing.T) {
	q := newTestQueue(t)

	id, err := q.Post(WorkItem{Type: "t", Description: "d"})
	if err != nil {
		t.Fatalf("Post: %v", err)
	}
	if err := q.Withdraw(id); err != nil {
		t.Fatalf("Withdraw: %v", err)
	}

	pending, err := q.ListPending()
	if err != nil {
		t.Fatalf("ListPending: %v", err)
	}
	if len(pending) != 0 {
		t.Errorf("pending after withdraw = %v, want empty", pending)
	}

	// Withdrawing a vanished item is a no-op.
	if err := q.Withdraw(id); err != nil {
		t.Errorf("Withdraw of missing item = %v, want nil", err)
	}
}

func TestWithdrawClaimedItemFails(t *testing.T) {
	q := newTestQueue(t)

	id, err := q.Post(WorkItem{Type: "t", Description: "d"})
	if err != nil {
		t.Fatalf("Post: %v", err)
	}
	if item, err := q.Claim("inst-1"); err != nil || item == nil {
		t.Fatalf("Claim: item=%v err=%v", item, err)
	}

	if err := q.Withdraw(id); !buserrors.Is(err, buserrors.ErrAlreadyClaimed) {
		t.Errorf("Withdraw of claimed item = %v, want ErrAlreadyClaimed", err)
	}
}

func TestMarkInProgress(t *testing.T) {
	q := newTestQueue(t)

	id, err := q.Post(WorkItem{Type: "t", Description: "d"})
	if err != nil {
		t.Fatalf("Post: %v", err)
	}
	if item, err := q.Claim("inst-1"); err != nil || item == nil {
		t.Fatalf("Claim: item=%v err=%v", item, err)
	}

	if err := q.MarkInProgress(id); err != nil {
		t.Fatalf("MarkInProgress: %v", err)
	}
	item, err := q.Get(id)
	if err != nil || item == nil {
		t.Fatalf("Get: item=%v err=%v", item, err)
	}
	if item.Status != StatusInProgress {
		t.Errorf("Status = %s, want %s", item.Status, StatusInProgress)
	}

	// Vanished claimed record: no-op.
	if err := q.MarkInProgress("missing"); err != nil {
		t.Errorf("MarkInProgress on missing id = %v, want nil", err)
	}
}

func TestQueuePublishesEvents(t *testing.T) {
	bus := event.NewBus()
	var types []string
	bus.SubscribeAll(func(e event.Event) { types = append(types, e.EventType()) })

	q := newTestQueue(t, WithBus(bus))

	id, err := q.Post(WorkItem{Type: "t", Description: "d"})
	if err != nil {
		t.Fatalf("Post: %v", err)
	}
	if item, err := q.Claim("inst-1"); err != nil || item == nil {
		t.Fatalf("Claim: item=%v err=%v", item, err)
	}
	_ = id

	want := []string{event.TypeWorkPosted, event.TypeWorkClaimed}
	if len(types) != len(want) {
		t.Fatalf("published %v, want %v", types, want)
	}
	for i := range want {
		if types[i] != want[i] {
			t.Errorf("event %d = %s, want %s", i, types[i], want[i])
		}
	}
}

func TestRoundTripFieldEquality(t *testing.T) {
	q := newTestQueue(t)

	in := WorkItem{
		Type:        "draft",
		Description: "write the summary",
		Inputs:      map[string]any{"topic": "tides", "depth": "short"},
		Constraints: []string{"no external calls"},
		Priority:    2,
		CreatedBy:   "controller",
	}
	id, err := q.Post(in)
	if err != nil {
		t.Fatalf("Post: %v", err)
	}

	got, err := q.Get(id)
	if err != nil || got == nil {
		t.Fatalf("Get: item=%v err=%v", got, err)
	}
	if got.Type != in.Type || got.Description != in.Description || got.CreatedBy != in.CreatedBy {
		t.Errorf("scalar fields changed in round trip: %+v", got)
	}
	if got.Inputs["topic"] != "tides" || got.Inputs["depth"] != "short" {
		t.Errorf("Inputs changed in round trip: %v", got.Inputs)
	}
	if len(got.Constraints) != 1 || got.Constraints[0] != "no external calls" {
		t.Errorf("Constraints changed in round trip: %v", got.Constraints)
	}
}
