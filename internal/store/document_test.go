package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/gofrs/flock"
)

func counterCodec() JSONCodec[map[string]int] {
	return JSONCodec[map[string]int]{New: func() map[string]int { return map[string]int{} }}
}

func TestDocument_MissingFileLoadsEmpty(t *testing.T) {
	doc := NewDocument(filepath.Join(t.TempDir(), "nested", "cache.json"), counterCodec())

	got, err := doc.Load(context.Background())
	if err != nil {
		t.Fatalf("missing document should not be an error: %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Errorf("missing document should load as empty map, got %v", got)
	}
}

func TestDocument_SaveThenLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.json")
	doc := NewDocument(path, counterCodec())
	ctx := context.Background()

	if err := doc.Save(ctx, map[string]int{"a": 1, "b": 2}); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	reopened := NewDocument(path, counterCodec())
	got, err := reopened.Load(ctx)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if got["a"] != 1 || got["b"] != 2 {
		t.Errorf("unexpected contents: %v", got)
	}

	entries, _ := os.ReadDir(filepath.Dir(path))
	for _, e := range entries {
		if filepath.Ext(e.Name()) == ".tmp" {
			t.Errorf("temp file left behind: %s", e.Name())
		}
	}
}

func TestDocument_ConcurrentUpdatesAreNotLost(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.json")
	// Two handles on one file behave like two processes sharing it.
	docs := []*Document[map[string]int]{
		NewDocument(path, counterCodec()),
		NewDocument(path, counterCodec()),
	}
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func(doc *Document[map[string]int]) {
			defer wg.Done()
			_, err := doc.Update(ctx, func(m map[string]int) (map[string]int, error) {
				m["n"]++
				return m, nil
			})
			if err != nil {
				t.Errorf("update failed: %v", err)
			}
		}(docs[i%2])
	}
	wg.Wait()

	got, err := docs[0].Load(ctx)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if got["n"] != 40 {
		t.Errorf("every update should survive, got n=%d", got["n"])
	}
}

func TestDocument_UpdateErrorWritesNothing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.json")
	doc := NewDocument(path, counterCodec())
	ctx := context.Background()
	_ = doc.Save(ctx, map[string]int{"keep": 1})

	boom := errors.New("boom")
	_, err := doc.Update(ctx, func(m map[string]int) (map[string]int, error) {
		m["keep"] = 99
		return m, boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected fn error, got %v", err)
	}

	got, _ := doc.Load(ctx)
	if got["keep"] != 1 {
		t.Errorf("failed update must not be persisted, got %v", got)
	}
}

func TestDocument_CorruptFileIsReported(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
		t.Fatal(err)
	}

	_, err := NewDocument(path, counterCodec()).Load(context.Background())
	if !errors.Is(err, ErrCorrupt) {
		t.Fatalf("expected ErrCorrupt, got %v", err)
	}
	var storageErr *StorageError
	if !errors.As(err, &storageErr) || storageErr.Path != path {
		t.Errorf("error should carry the document path, got %v", err)
	}
}

func TestDocument_LockTimeout(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.json")
	holder := flock.New(path + ".lock")
	if err := holder.Lock(); err != nil {
		t.Fatalf("could not take lock: %v", err)
	}
	defer func() { _ = holder.Unlock() }()

	doc := NewDocument(path, counterCodec(), WithLockTimeout(50*time.Millisecond))
	err := doc.Save(context.Background(), map[string]int{"a": 1})
	if !errors.Is(err, ErrLockTimeout) {
		t.Fatalf("expected ErrLockTimeout while another writer holds the lock, got %v", err)
	}
}

func TestDocument_CanceledContext(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.json")
	holder := flock.New(path + ".lock")
	if err := holder.Lock(); err != nil {
		t.Fatalf("could not take lock: %v", err)
	}
	defer func() { _ = holder.Unlock() }()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewDocument(path, counterCodec()).Load(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestLinesCodec(t *testing.T) {
	var c LinesCodec
	got, err := c.Decode([]byte("UC1\n\n  UC2  \nUC3"))
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"UC1", "UC2", "UC3"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("line %d: got %q, want %q", i, got[i], want[i])
		}
	}

	data, _ := c.Encode(want)
	if string(data) != "UC1\nUC2\nUC3\n" {
		t.Errorf("unexpected encoding %q", data)
	}
}

func TestDocument_NullFileLoadsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.json")
	if err := os.WriteFile(path, []byte("null\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	doc := NewDocument(path, counterCodec())

	got, err := doc.Update(context.Background(), func(current map[string]int) (map[string]int, error) {
		current["a"]++
		return current, nil
	})
	if err != nil {
		t.Fatalf("a null document should load as empty: %v", err)
	}
	if got["a"] != 1 {
		t.Errorf("unexpected contents: %v", got)
	}
}
