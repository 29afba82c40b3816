package history_test

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/ankit-chaubey/image-metadata-surgery/core/history"
)

func TestAppendAndTail(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "history.jsonl")
	log, err := history.Open(path)
	if err != nil {
		t.Fatalf("Open returned error: %v", err)
	}

	for i := 0; i < 5; i++ {
		if err := log.Append(history.Entry{Action: "clean", File: fmt.Sprintf("img%d.jpg", i), Result: "success"}); err != nil {
			t.Fatalf("Append returned error: %v", err)
		}
	}

	got, err := log.Tail(2)
	if err != nil {
		t.Fatalf("Tail returned error: %v", err)
	}
	if len(got) != 2 || got[0].File != "img3.jpg" || got[1].File != "img4.jpg" {
		t.Fatalf("unexpected tail: %+v", got)
	}
	if got[1].Timestamp.IsZero() {
		t.Fatal("expected timestamp to be filled in")
	}

	all, err := log.Tail(0)
	if err != nil {
		t.Fatalf("Tail returned error: %v", err)
	}
	if len(all) != 5 {
		t.Fatalf("expected 5 entries, got %d", len(all))
	}
}

func TestTailMissingFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "state")
	log, err := history.Open(filepath.Join(dir, "none.jsonl"))
	if err != nil {
		t.Fatalf("Open returned error: %v", err)
	}
	got, err := log.Tail(10)
	if err != nil {
		t.Fatalf("Tail returned error: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected no entries, got %d", len(got))
	}
	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Fatalf("Open and Tail created %s: %v", dir, err)
	}
}

func TestTailSkipsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.jsonl")
	content := "not json\n{\"action\":\"show\",\"file\":\"a.png\",\"result\":\"success\"}\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	log, err := history.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	got, err := log.Tail(0)
	if err != nil {
		t.Fatalf("Tail returned error: %v", err)
	}
	if len(got) != 1 || got[0].File != "a.png" {
		t.Fatalf("unexpected entries: %+v", got)
	}
}

func TestConcurrentAppend(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.jsonl")
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			// Separate handles exercise the lock file rather than a shared mutex.
			log, err := history.Open(path)
			if err != nil {
				t.Errorf("Open: %v", err)
				return
			}
			for j := 0; j < 10; j++ {
				if err := log.Append(history.Entry{RunID: fmt.Sprint(i), Action: "clean", File: "x", Result: "success"}); err != nil {
					t.Errorf("Append: %v", err)
				}
			}
		}(i)
	}
	wg.Wait()

	log, err := history.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	got, err := log.Tail(0)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 80 {
		t.Fatalf("expected 80 intact entries, got %d", len(got))
	}
}

func TestOpenEmptyPath(t *testing.T) {
	if _, err := history.Open("  "); err == nil {
		t.Fatal("expected error for empty path")
	}
}
