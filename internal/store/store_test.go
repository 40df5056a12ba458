package store

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/mirabel-ai/icarus/internal/logging"
)

type doc struct {
	ID    string `json:"id"`
	Value int    `json:"value"`
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return New(filepath.Join(t.TempDir(), "records"), logging.Nop())
}

func TestPutGetRoundTrip(t *testing.T) {
	s := newTestStore(t)

	in := doc{ID: "a", Value: 42}
	if err := s.Put("a", in); err != nil {
		t.Fatalf("Put: %v", err)
	}

	var out doc
	found, err := s.Get("a", &out)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !found {
		t.Fatal("Get should find the document")
	}
	if out != in {
		t.Errorf("round trip = %+v, want %+v", out, in)
	}
}

func TestGetMissingIsBenign(t *testing.T) {
	s := newTestStore(t)

	var out doc
	found, err := s.Get("nope", &out)
	if err != nil {
		t.Fatalf("Get on missing key: %v", err)
	}
	if found {
		t.Error("Get should report missing document")
	}
}

func TestDeleteIsIdempotent(t *testing.T) {
	s := newTestStore(t)

	if err := s.Put("a", doc{ID: "a"}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := s.Delete("a"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if s.Exists("a") {
		t.Error("document should be gone after Delete")
	}
	if err := s.Delete("a"); err != nil {
		t.Errorf("second Delete should be a no-op, got %v", err)
	}
}

func TestKeysSortedAndFiltered(t *testing.T) {
	s := newTestStore(t)

	for _, id := range []string{"charlie", "alpha", "bravo"} {
		if err := s.Put(id, doc{ID: id}); err != nil {
			t.Fatalf("Put %s: %v", id, err)
		}
	}
	// Leftover temp file and stray file must not appear as keys.
	if err := os.WriteFile(filepath.Join(s.Dir(), "zulu.json.tmp"), []byte("{"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(s.Dir(), "notes.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	keys, err := s.Keys()
	if err != nil {
		t.Fatalf("Keys: %v", err)
	}
	want := []string{"alpha", "bravo", "charlie"}
	if len(keys) != len(want) {
		t.Fatalf("Keys = %v, want %v", keys, want)
	}
	for i := range want {
		if keys[i] != want[i] {
			t.Errorf("keys[%d] = %s, want %s", i, keys[i], want[i])
		}
	}
}

func TestKeysOnMissingDirectory(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "never-created"), logging.Nop())

	keys, err := s.Keys()
	if err != nil {
		t.Fatalf("Keys: %v", err)
	}
	if len(keys) != 0 {
		t.Errorf("Keys on missing dir = %v, want empty", keys)
	}
}

func TestLoadAllSkipsMalformed(t *testing.T) {
	s := newTestStore(t)

	if err := s.Put("good", doc{ID: "good", Value: 1}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := os.WriteFile(s.Path("bad"), []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}

	var loaded []string
	err := s.LoadAll(func(key string, data []byte) error {
		var d doc
		if err := json.Unmarshal(data, &d); err != nil {
			return err
		}
		loaded = append(loaded, key)
		return nil
	})
	if err != nil {
		t.Fatalf("LoadAll: %v", err)
	}
	if len(loaded) != 1 || loaded[0] != "good" {
		t.Errorf("loaded = %v, want [good]", loaded)
	}
}

func TestClear(t *testing.T) {
	s := newTestStore(t)

	for _, id := range []string{"a", "b", "c"} {
		if err := s.Put(id, doc{ID: id}); err != nil {
			t.Fatalf("Put %s: %v", id, err)
		}
	}
	if err := s.Clear(); err != nil {
		t.Fatalf("Clear: %v", err)
	}

	n, err := s.Count()
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if n != 0 {
		t.Errorf("Count after Clear = %d, want 0", n)
	}
	if _, err := os.Stat(s.Dir()); err != nil {
		t.Errorf("store directory should survive Clear: %v", err)
	}
}
