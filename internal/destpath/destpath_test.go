package destpath

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Glitchy-Sheep/boosty-downloader/internal/category"
	"github.com/Glitchy-Sheep/boosty-downloader/internal/postcache"
)

func TestBuild(t *testing.T) {
	created := time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)
	got := Build("/root", "author1", created, "My Title", "abcdef1234567890")
	want := filepath.Join("/root", "author1", "2024-03-05 - My Title (abcdef12)")
	if got != want {
		t.Errorf("Build() = %q, want %q", got, want)
	}
}

func TestBuild_ShortID(t *testing.T) {
	created := time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)
	got := Build("/root", "author1", created, "Title", "ab")
	want := filepath.Join("/root", "author1", "2024-03-05 - Title (ab)")
	if got != want {
		t.Errorf("Build() = %q, want %q", got, want)
	}
}

func TestEnsureFolderMatches_RenamesOnTitleChange(t *testing.T) {
	root := t.TempDir()
	author := "author1"
	postID := "abcdef1234567890"
	created := time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)

	cachePath := filepath.Join(root, "post_cache.db")
	store, err := postcache.Open(cachePath)
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	if err := store.RecordCompletion(postID, "Old", time.Unix(100, 0), category.NewSet(category.Files)); err != nil {
		t.Fatal(err)
	}

	oldDir := Build(root, author, created, "Old", postID)
	if err := os.MkdirAll(oldDir, 0o755); err != nil {
		t.Fatal(err)
	}

	if err := EnsureFolderMatches(store, root, author, postID, "New", created); err != nil {
		t.Fatal(err)
	}

	newDir := Build(root, author, created, "New", postID)
	if _, err := os.Stat(newDir); err != nil {
		t.Errorf("expected renamed dir %q to exist: %v", newDir, err)
	}
	if _, err := os.Stat(oldDir); !os.IsNotExist(err) {
		t.Errorf("expected old dir %q to be gone", oldDir)
	}
}

func TestEnsureFolderMatches_NoOpWhenTitleUnchanged(t *testing.T) {
	root := t.TempDir()
	postID := "abcdef1234567890"
	created := time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)

	store, err := postcache.Open(filepath.Join(root, "post_cache.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()
	store.RecordCompletion(postID, "Same", time.Unix(100, 0), category.NewSet(category.Files))

	dir := Build(root, "author1", created, "Same", postID)
	os.MkdirAll(dir, 0o755)

	if err := EnsureFolderMatches(store, root, "author1", postID, "Same", created); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(dir); err != nil {
		t.Errorf("dir should still exist unchanged: %v", err)
	}
}

func TestEnsureFolderMatches_NoOpWhenNewDirAlreadyExists(t *testing.T) {
	root := t.TempDir()
	postID := "abcdef1234567890"
	created := time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)

	store, err := postcache.Open(filepath.Join(root, "post_cache.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()
	store.RecordCompletion(postID, "Old", time.Unix(100, 0), category.NewSet(category.Files))

	oldDir := Build(root, "author1", created, "Old", postID)
	newDir := Build(root, "author1", created, "New", postID)
	os.MkdirAll(oldDir, 0o755)
	os.MkdirAll(newDir, 0o755)

	if err := EnsureFolderMatches(store, root, "author1", postID, "New", created); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(oldDir); err != nil {
		t.Errorf("old dir should remain since new dir already exists: %v", err)
	}
}
