package versions

import (
	"fmt"
	"testing"

	"github.com/tvault/tvault/internal/vfs"
)

func TestPushCreatesSnapshot(t *testing.T) {
	tree := vfs.NewTree()
	if _, err := tree.AddFile("notes.txt", []byte("v1"), ""); err != nil {
		t.Fatalf("add file: %v", err)
	}

	if err := Push(tree, "notes.txt", []byte("v1"), 1000.0); err != nil {
		t.Fatalf("push: %v", err)
	}

	list, err := List(tree, "notes.txt")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("expected one retained snapshot, got %d", len(list))
	}
	if string(list[0].Content) != "v1" {
		t.Fatalf("unexpected snapshot content %q", list[0].Content)
	}
}

func TestPushEvictsBeyondCap(t *testing.T) {
	tree := vfs.NewTree()
	if _, err := tree.AddFile("notes.txt", []byte("v0"), ""); err != nil {
		t.Fatalf("add file: %v", err)
	}

	for i := 0; i < MaxPerFile+3; i++ {
		content := []byte(fmt.Sprintf("v%d", i))
		if err := Push(tree, "notes.txt", content, float64(1000+i)); err != nil {
			t.Fatalf("push %d: %v", i, err)
		}
	}

	list, err := List(tree, "notes.txt")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != MaxPerFile {
		t.Fatalf("expected eviction to cap at %d, got %d", MaxPerFile, len(list))
	}

	// Oldest-first order: the retained set should be the most recent
	// MaxPerFile pushes.
	want := fmt.Sprintf("v%d", 3)
	if string(list[0].Content) != want {
		t.Fatalf("expected oldest retained snapshot to be %q, got %q", want, list[0].Content)
	}
}

func TestPushSameSecondOverwrites(t *testing.T) {
	tree := vfs.NewTree()
	if _, err := tree.AddFile("notes.txt", []byte("v0"), ""); err != nil {
		t.Fatalf("add file: %v", err)
	}

	if err := Push(tree, "notes.txt", []byte("first"), 2000.4); err != nil {
		t.Fatalf("push first: %v", err)
	}
	if err := Push(tree, "notes.txt", []byte("second"), 2000.9); err != nil {
		t.Fatalf("push second: %v", err)
	}

	list, err := List(tree, "notes.txt")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("expected a same-second collision to overwrite rather than add a sibling, got %d entries", len(list))
	}
	if string(list[0].Content) != "second" {
		t.Fatalf("expected the later push to win, got %q", list[0].Content)
	}
}
