package scan

import (
	"io"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/charmbracelet/log"
)

func TestPreviewFiles(t *testing.T) {
	root := t.TempDir()
	thumbs := filepath.Join(root, "thumbs", "ab", "cd")
	if err := os.MkdirAll(thumbs, 0o755); err != nil {
		t.Fatal(err)
	}

	mustWrite := func(name string) string {
		path := filepath.Join(thumbs, name)
		if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
		return path
	}

	p1 := mustWrite("a1b2c3d4-e5f6-47a8-89ab-0123456789ab-preview.jpg")
	p2 := mustWrite("11111111-2222-4333-8444-555555555555-preview.webp")
	mustWrite("a1b2c3d4-e5f6-47a8-89ab-0123456789ab-thumbnail.jpg")
	mustWrite("notes.txt")

	got, err := PreviewFiles(root, log.New(io.Discard))
	if err != nil {
		t.Fatalf("PreviewFiles: %v", err)
	}
	sort.Strings(got)
	want := []string{p2, p1}
	sort.Strings(want)
	if len(got) != len(want) {
		t.Fatalf("files = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("files = %v, want %v", got, want)
			break
		}
	}
}

func TestPreviewFilesMissingThumbs(t *testing.T) {
	if _, err := PreviewFiles(t.TempDir(), log.New(io.Discard)); err == nil {
		t.Error("want error when thumbs directory does not exist")
	}
}

func TestThumbsDirNotADirectory(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "thumbs"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := ThumbsDir(root); err == nil {
		t.Error("want error when thumbs is a regular file")
	}
}
