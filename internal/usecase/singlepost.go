// Package usecase implements the Single-Post Use Case (C8, spec.md §4.8)
// and the All-Posts Use Case (C9, spec.md §4.9): the orchestration layer
// that wires C1-C7/C10 together per post, and drives C5's pagination across
// an entire author.
package usecase

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/Glitchy-Sheep/boosty-downloader/internal/boostyapi"
	"github.com/Glitchy-Sheep/boosty-downloader/internal/category"
	"github.com/Glitchy-Sheep/boosty-downloader/internal/content"
	"github.com/Glitchy-Sheep/boosty-downloader/internal/downloader"
	"github.com/Glitchy-Sheep/boosty-downloader/internal/extvideo"
	"github.com/Glitchy-Sheep/boosty-downloader/internal/htmlrender"
	"github.com/Glitchy-Sheep/boosty-downloader/internal/metrics"
	"github.com/Glitchy-Sheep/boosty-downloader/internal/postcache"
	"github.com/Glitchy-Sheep/boosty-downloader/internal/progress"
	"github.com/Glitchy-Sheep/boosty-downloader/internal/quality"
)

// DownloadContext bundles the collaborators ExecutePost needs: the media
// HTTP client, the external-video downloader, the cache, the active filter
// set, the preferred video quality, and the progress reporter. Downloads
// through MediaClient are single attempts with no retry on connection
// errors; a failed download fails the whole post, which ExecuteAllPosts
// then retries.
type DownloadContext struct {
	MediaClient             *http.Client
	ExternalVideoDownloader extvideo.Downloader
	Cache                   *postcache.Store
	Requested               category.Set
	PreferredQuality        quality.Tier
	Reporter                progress.Reporter
	Metrics                 *metrics.Metrics // optional; nil disables counters
}

func (d *DownloadContext) reporter() progress.Reporter {
	if d.Reporter != nil {
		return d.Reporter
	}
	return progress.Null{}
}

// chunkCategory returns the filter category a chunk belongs to for
// missing-set purposes. Text and Textual List chunks share post_content
// with Image (spec.md §4.8 step 5).
func chunkCategory(kind content.ChunkKind) category.Category {
	switch kind {
	case content.ChunkText, content.ChunkTextualList, content.ChunkImage:
		return category.PostContent
	case content.ChunkPlatformVideo:
		return category.BoostyVideos
	case content.ChunkExternalVideo:
		return category.ExternalVideos
	case content.ChunkFile:
		return category.Files
	case content.ChunkAudio:
		return category.Audio
	default:
		return ""
	}
}

// hasMatchingContent reports whether any chunk's category intersects
// missing (spec.md §4.8 step 3 / §9's open question: "must not cache a
// category for a post that had no chunks of that category").
func hasMatchingContent(chunks []content.Chunk, missing category.Set) bool {
	for _, c := range chunks {
		if cat := chunkCategory(c.Kind); cat != "" && missing.Contains(cat) {
			return true
		}
	}
	return false
}

// ExecutePost implements C8: given a raw post and its already-resolved
// destination directory and title, downloads everything in the missing
// filter set and renders the HTML body, then commits to the cache.
//
// postTitle is the title C9 resolved (synthesized if the remote title was
// empty, already used to build destDir) — it, not raw.Title, is what gets
// passed to the cache so title-change detection stays consistent with the
// directory naming convention.
func ExecutePost(ctx context.Context, destDir string, raw *boostyapi.RawPost, postTitle string, dctx *DownloadContext) error {
	rep := dctx.reporter()

	normalized, incomplete, err := boostyapi.MapPost(raw, dctx.PreferredQuality)
	if err != nil {
		return err
	}

	// spec.md §3: "the mapper's incomplete-content set is subtracted from
	// the requested set before work begins."
	requestedForPost := dctx.Requested.Subtract(incomplete)

	updatedAt, err := time.Parse(time.RFC3339, raw.UpdatedAt)
	if err != nil {
		return fmt.Errorf("usecase: parse updatedAt %q: %w", raw.UpdatedAt, err)
	}

	missing, err := dctx.Cache.GetMissing(raw.ID, postTitle, updatedAt, requestedForPost, destDir)
	if err != nil {
		return err
	}
	if missing.Empty() {
		rep.Notice(fmt.Sprintf("skip (cached): %s", postTitle))
		if dctx.Metrics != nil {
			dctx.Metrics.PostsSkipped.Inc()
		}
		return nil
	}
	if !hasMatchingContent(normalized.Chunks, missing) {
		rep.Notice(fmt.Sprintf("skip (no matching content): %s", postTitle))
		if dctx.Metrics != nil {
			dctx.Metrics.PostsSkipped.Inc()
		}
		return nil
	}

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return fmt.Errorf("usecase: create destination dir: %w", err)
	}

	taskID := rep.CreateTask(postTitle, int64(len(normalized.Chunks)), 1)
	if dctx.Metrics != nil {
		dctx.Metrics.PostsInProgress.Inc()
		defer dctx.Metrics.PostsInProgress.Dec()
	}

	var htmlChunks []content.Chunk
	wantPostContent := missing.Contains(category.PostContent)

	for _, chunk := range normalized.Chunks {
		if err := ctx.Err(); err != nil {
			rep.CompleteTask(taskID)
			return err
		}

		switch chunk.Kind {
		case content.ChunkText, content.ChunkTextualList:
			if wantPostContent {
				htmlChunks = append(htmlChunks, chunk)
			}

		case content.ChunkImage:
			if missing.Contains(category.PostContent) {
				chunk, err = downloadMediaChunk(ctx, dctx, destDir, "images", filenameFromURL(chunk.URL), chunk, true)
				if err != nil {
					rep.CompleteTask(taskID)
					return err
				}
				htmlChunks = append(htmlChunks, chunk)
			}

		case content.ChunkPlatformVideo:
			if missing.Contains(category.BoostyVideos) {
				chunk, err = downloadMediaChunk(ctx, dctx, destDir, "boosty_videos", filenameOrTitle(chunk), chunk, true)
				if err != nil {
					rep.CompleteTask(taskID)
					return err
				}
				if wantPostContent {
					htmlChunks = append(htmlChunks, chunk)
				}
			}

		case content.ChunkExternalVideo:
			if missing.Contains(category.ExternalVideos) {
				destSub := filepath.Join(destDir, "external_videos")
				if err := os.MkdirAll(destSub, 0o755); err != nil {
					rep.CompleteTask(taskID)
					return fmt.Errorf("usecase: create external_videos dir: %w", err)
				}
				path, err := dctx.ExternalVideoDownloader.Download(ctx, chunk.URL, destSub, filenameFromURL(chunk.URL))
				if err != nil {
					rep.CompleteTask(taskID)
					return err
				}
				chunk.LocalPath = relPath(destDir, path)
				if wantPostContent {
					htmlChunks = append(htmlChunks, chunk)
				}
			}

		case content.ChunkFile:
			if missing.Contains(category.Files) {
				if _, err := downloadMediaChunk(ctx, dctx, destDir, "files", chunk.Title, chunk, false); err != nil {
					rep.CompleteTask(taskID)
					return err
				}
			}

		case content.ChunkAudio:
			if missing.Contains(category.Audio) {
				if _, err := downloadMediaChunk(ctx, dctx, destDir, "audio", chunk.Title, chunk, true); err != nil {
					rep.CompleteTask(taskID)
					return err
				}
			}
		}

		rep.UpdateTask(taskID, 1, 0, "")
	}

	if wantPostContent {
		if _, err := htmlrender.Render(ctx, htmlChunks, destDir); err != nil {
			rep.CompleteTask(taskID)
			return err
		}
	}

	// Only categories the post actually has chunks for are recorded, so a
	// chunk of a category added to the post later is still picked up.
	completed := category.NewSet()
	for _, c := range normalized.Chunks {
		if cat := chunkCategory(c.Kind); cat != "" && missing.Contains(cat) {
			completed = completed.Add(cat)
		}
	}
	if err := dctx.Cache.RecordCompletion(raw.ID, postTitle, updatedAt, completed); err != nil {
		rep.CompleteTask(taskID)
		return err
	}

	rep.CompleteTask(taskID)
	rep.Success(fmt.Sprintf("done: %s", postTitle))
	return nil
}

// downloadMediaChunk streams chunk.URL into destDir/subdir, returning the
// chunk with LocalPath set to a destDir-relative path, and records
// metrics/progress as it goes.
func downloadMediaChunk(
	ctx context.Context,
	dctx *DownloadContext,
	destDir, subdir, filename string,
	chunk content.Chunk,
	guessExt bool,
) (content.Chunk, error) {
	destSub := filepath.Join(destDir, subdir)
	rep := dctx.reporter()
	path, err := downloader.Download(ctx, dctx.MediaClient, chunk.URL, destSub, filename, guessExt, func(p downloader.Progress) {
		if dctx.Metrics != nil {
			dctx.Metrics.BytesDownloaded.Add(float64(p.BytesWritten))
		}
	})
	if err != nil {
		return chunk, err
	}
	if dctx.Metrics != nil {
		dctx.Metrics.FilesDownloaded.Inc()
	}
	rep.Info(fmt.Sprintf("downloaded %s", filepath.Base(path)))
	chunk.LocalPath = relPath(destDir, path)
	return chunk, nil
}

func relPath(destDir, fullPath string) string {
	rel, err := filepath.Rel(destDir, fullPath)
	if err != nil {
		return fullPath
	}
	return rel
}

func filenameFromURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Path == "" {
		return "file"
	}
	base := filepath.Base(u.Path)
	if base == "." || base == "/" {
		return "file"
	}
	return base
}

func filenameOrTitle(chunk content.Chunk) string {
	if chunk.Title != "" {
		return chunk.Title
	}
	return filenameFromURL(chunk.URL)
}
