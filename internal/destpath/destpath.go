// Package destpath builds and reconciles the per-post destination directory
// described in spec.md §3:
//
//	<target_root>/<author>/<YYYY-MM-DD> - <sanitized_title> (<id[:8]>)/
//
// and implements the folder-rename reconciliation from spec.md §4.4's
// ensure_folder_matches operation.
package destpath

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/Glitchy-Sheep/boosty-downloader/internal/pathsan"
	"github.com/Glitchy-Sheep/boosty-downloader/internal/postcache"
)

// idSuffixLen is the number of leading characters of the post id used to
// disambiguate same-day, same-title posts.
const idSuffixLen = 8

func idSuffix(postID string) string {
	if len(postID) <= idSuffixLen {
		return postID
	}
	return postID[:idSuffixLen]
}

func dirName(created time.Time, sanitizedTitle, postID string) string {
	return fmt.Sprintf("%s - %s (%s)", created.Format("2006-01-02"), sanitizedTitle, idSuffix(postID))
}

// Build returns the destination directory for a post, sanitizing title to
// DefaultMaxBytes via pathsan.
func Build(targetRoot, author string, created time.Time, title, postID string) string {
	safe := pathsan.Sanitize(title, pathsan.DefaultMaxBytes)
	return filepath.Join(targetRoot, author, dirName(created, safe, postID))
}

// EnsureFolderMatches implements spec.md §4.4: if store has a record for
// postID with a title different from currentTitle, and the old directory
// exists while the new one does not, rename old → new. currentTitle must
// already be sanitized (the caller, spec.md §4.9, sanitizes titles before
// building any path).
func EnsureFolderMatches(
	store *postcache.Store,
	targetRoot, author string,
	postID, currentTitle string,
	created time.Time,
) error {
	storedTitle, ok, err := store.StoredTitle(postID)
	if err != nil {
		return err
	}
	if !ok || storedTitle == currentTitle {
		return nil
	}

	oldDir := filepath.Join(targetRoot, author, dirName(created, storedTitle, postID))
	newDir := filepath.Join(targetRoot, author, dirName(created, currentTitle, postID))

	oldExists := dirExists(oldDir)
	newExists := dirExists(newDir)
	if !oldExists || newExists {
		return nil
	}
	if err := os.Rename(oldDir, newDir); err != nil {
		return fmt.Errorf("destpath: rename %q to %q: %w", oldDir, newDir, err)
	}
	return nil
}

func dirExists(path string) bool {
	fi, err := os.Stat(path)
	return err == nil && fi.IsDir()
}
