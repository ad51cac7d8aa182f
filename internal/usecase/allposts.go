package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/Glitchy-Sheep/boosty-downloader/internal/boostyapi"
	"github.com/Glitchy-Sheep/boosty-downloader/internal/destpath"
	"github.com/Glitchy-Sheep/boosty-downloader/internal/pathsan"
)

// perPostRetries and the backoff schedule implement spec.md §4.9: "up to 5
// attempts with exponential backoff starting at 1 s and capped at 30 s."
const perPostRetries = 5

var (
	perPostBackoffBase = 1 * time.Second
	perPostBackoffCap  = 30 * time.Second
)

// AllPostsOptions configures the All-Posts Use Case (C9, spec.md §4.9).
type AllPostsOptions struct {
	Author            string
	DestinationRoot   string
	PageSize          int
	API               *boostyapi.Client
	Download          *DownloadContext
	FailureLog        io.Writer // nil disables failure logging
	TotalPostCheckOnly bool     // --total-post-check: count and exit, no downloads
}

// ExecuteAllPosts drives C5's pagination for an author and invokes
// ExecutePost for each accessible post with bounded per-post retry.
// If opts.TotalPostCheckOnly, it instead counts posts across all pages and
// returns that count without downloading anything.
func ExecuteAllPosts(ctx context.Context, opts AllPostsOptions) (postCount int, err error) {
	rep := opts.Download.reporter()
	pageNum := 0

	err = opts.API.Iterate(ctx, opts.Author, opts.PageSize, func(page boostyapi.PostsPage) error {
		pageNum++
		if opts.TotalPostCheckOnly {
			postCount += len(page.Data)
			return nil
		}

		for i := range page.Data {
			raw := &page.Data[i]
			if err := ctx.Err(); err != nil {
				return err
			}

			if !raw.HasAccess {
				rep.Warning(fmt.Sprintf("skip (no access): %s", raw.ID))
				if opts.Download.Metrics != nil {
					opts.Download.Metrics.PostsSkipped.Inc()
				}
				continue
			}

			title := resolveTitle(raw)
			created, perr := time.Parse(time.RFC3339, raw.CreatedAt)
			if perr != nil {
				rep.Error(fmt.Sprintf("post %s: bad createdAt %q: %v", raw.ID, raw.CreatedAt, perr))
				continue
			}

			if err := destpath.EnsureFolderMatches(opts.Download.Cache, opts.DestinationRoot, opts.Author, raw.ID, title, created); err != nil {
				rep.Error(fmt.Sprintf("post %s: folder rename check failed: %v", raw.ID, err))
			}

			destDir := destpath.Build(opts.DestinationRoot, opts.Author, created, title, raw.ID)

			if err := executeWithRetry(ctx, destDir, raw, title, opts.Download, rep, opts.FailureLog); err != nil {
				if isCancellation(err) {
					return err
				}
				// Final-failure: logged by executeWithRetry already; the
				// page and run continue (spec.md §4.9).
			}
			postCount++
		}
		return nil
	})

	if err != nil {
		return postCount, err
	}
	if !opts.TotalPostCheckOnly {
		rep.Notice(fmt.Sprintf("finished page %d", pageNum))
	}
	return postCount, nil
}

// executeWithRetry runs ExecutePost with up to perPostRetries attempts,
// doubling the backoff each time starting at perPostBackoffBase and capping
// at perPostBackoffCap. Cancellation escapes the loop immediately (spec.md
// §5: "The retry loop in C9 MUST distinguish cancellation from retryable
// failure and propagate cancellation immediately"). On final failure the
// post is logged to FailureLog and the error is returned to the caller,
// which treats it as non-fatal.
func executeWithRetry(
	ctx context.Context,
	destDir string,
	raw *boostyapi.RawPost,
	title string,
	dctx *DownloadContext,
	rep interface {
		Warning(string)
		Error(string)
	},
	failureLog io.Writer,
) error {
	backoff := perPostBackoffBase
	var lastErr error

	for attempt := 1; attempt <= perPostRetries; attempt++ {
		err := ExecutePost(ctx, destDir, raw, title, dctx)
		if err == nil {
			return nil
		}
		lastErr = err
		if isCancellation(err) {
			return err
		}
		if attempt == perPostRetries {
			break
		}
		rep.Warning(fmt.Sprintf("post %s attempt %d/%d failed: %v (retry in %s)", raw.ID, attempt, perPostRetries, err, backoff))
		if dctx.Metrics != nil {
			dctx.Metrics.DownloadRetries.Inc()
		}
		if sleepErr := sleepCtx(ctx, backoff); sleepErr != nil {
			return sleepErr
		}
		backoff *= 2
		if backoff > perPostBackoffCap {
			backoff = perPostBackoffCap
		}
	}

	rep.Error(fmt.Sprintf("post %s: skipped after %d attempts: %v", raw.ID, perPostRetries, lastErr))
	if dctx.Metrics != nil {
		dctx.Metrics.PostsSkipped.Inc()
	}
	logFailure(failureLog, raw.ID, title, lastErr)
	return lastErr
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func isCancellation(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// logFailure appends one line to failureLog (spec.md §3's supplemented
// failed-download log): "<RFC3339 timestamp>\t<post_id>\t<title>\t<error>".
func logFailure(w io.Writer, postID, title string, err error) {
	if w == nil {
		return
	}
	fmt.Fprintf(w, "%s\t%s\t%s\t%v\n", time.Now().UTC().Format(time.RFC3339), postID, title, err)
}

func resolveTitle(raw *boostyapi.RawPost) string {
	title := raw.Title
	if title == "" {
		id := raw.ID
		if len(id) > 8 {
			id = id[:8]
		}
		title = fmt.Sprintf("Not title (id_%s)", id)
	}
	title = strings.ReplaceAll(title, ".", "")
	title = strings.TrimSpace(title)
	return pathsan.Sanitize(title, pathsan.DefaultMaxBytes)
}
