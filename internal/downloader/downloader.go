// Package downloader streams a single URL to a file on disk with progress
// callbacks, content-type-based extension guessing, and cancellation-safe
// cleanup. It is deliberately single-attempt and sends the request with a
// plain client.Do: retry policy belongs to the caller (see internal/usecase
// for the per-post retry loop).
package downloader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/Glitchy-Sheep/boosty-downloader/internal/pathsan"
	"github.com/Glitchy-Sheep/boosty-downloader/internal/safeurl"
)

// chunkSize matches spec.md §4.3 ("fixed-size chunks, approximately 8 KiB").
const chunkSize = 8 * 1024

// Progress is reported synchronously as each chunk is written to disk.
type Progress struct {
	Name string
	// TotalBytes is the response Content-Length, or -1 if unknown.
	TotalBytes int64
	// BytesWritten is the size of the chunk just flushed to disk.
	BytesWritten int64
	// CumulativeBytes is the running total written so far for this file.
	CumulativeBytes int64
}

// DownloadError is returned when the server responds with a non-200 status.
type DownloadError struct {
	URL    string
	Status int
}

func (e *DownloadError) Error() string {
	return fmt.Sprintf("downloader: %s: HTTP %d", e.URL, e.Status)
}

// CancelledError is returned when ctx is cancelled mid-download. The caller
// can rely on the partially-written file already having been removed.
type CancelledError struct {
	URL string
}

func (e *CancelledError) Error() string {
	return fmt.Sprintf("downloader: %s: cancelled", e.URL)
}
func (e *CancelledError) Unwrap() error { return context.Canceled }

// extByContentType maps a handful of content types the platform actually
// serves to a file extension; mime.ExtensionsByType is not deterministic
// across platforms (returns multiple candidates in arbitrary order), so we
// special-case the common media types and fall back to it for anything else.
var extByContentType = map[string]string{
	"image/jpeg":      ".jpg",
	"image/png":       ".png",
	"image/gif":       ".gif",
	"image/webp":      ".webp",
	"video/mp4":       ".mp4",
	"video/webm":      ".webm",
	"audio/mpeg":      ".mp3",
	"audio/mp4":       ".m4a",
	"audio/ogg":       ".ogg",
	"application/pdf": ".pdf",
	"application/zip": ".zip",
}

// guessExt returns a file extension (with leading dot) for contentType, or
// "" if none is recognized.
func guessExt(contentType string) string {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return ""
	}
	if ext, ok := extByContentType[mediaType]; ok {
		return ext
	}
	if exts, err := mime.ExtensionsByType(mediaType); err == nil && len(exts) > 0 {
		return exts[0]
	}
	return ""
}

// Download streams url's response body to destDir/<sanitized filename>,
// invoking onProgress synchronously after each chunk is flushed to disk. If
// guessExtension is true and the response carries a recognized Content-Type,
// filename's extension is replaced with the guessed one; otherwise filename
// is used verbatim (sanitized).
//
// On any failure — non-200 status, a network error, or context cancellation
// — the partially-written file is removed before the error is returned.
func Download(
	ctx context.Context,
	client *http.Client,
	url string,
	destDir string,
	filename string,
	guessExtension bool,
	onProgress func(Progress),
) (path string, err error) {
	if !safeurl.IsHTTPOrHTTPS(url) {
		return "", fmt.Errorf("downloader: invalid URL scheme (only http/https allowed): %q", url)
	}
	if client == nil {
		client = http.DefaultClient
	}
	if onProgress == nil {
		onProgress = func(Progress) {}
	}

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", fmt.Errorf("downloader: create dest dir: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("downloader: build request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return "", &CancelledError{URL: url}
		}
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", &DownloadError{URL: url, Status: resp.StatusCode}
	}

	safeName := pathsan.Sanitize(filename, pathsan.DefaultMaxBytes)
	if safeName == "" {
		safeName = "file"
	}
	if guessExtension {
		if ext := guessExt(resp.Header.Get("Content-Type")); ext != "" {
			safeName = strings.TrimSuffix(safeName, filepath.Ext(safeName)) + ext
		}
	}
	finalPath := filepath.Join(destDir, safeName)

	total := resp.ContentLength // -1 if unknown, matches Progress.TotalBytes contract

	f, err := os.Create(finalPath)
	if err != nil {
		return "", fmt.Errorf("downloader: create file: %w", err)
	}

	cleanup := func() {
		f.Close()
		os.Remove(finalPath)
	}

	var cumulative int64
	buf := make([]byte, chunkSize)
	for {
		if ctx.Err() != nil {
			cleanup()
			return "", &CancelledError{URL: url}
		}
		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			if _, writeErr := f.Write(buf[:n]); writeErr != nil {
				cleanup()
				return "", fmt.Errorf("downloader: write: %w", writeErr)
			}
			cumulative += int64(n)
			onProgress(Progress{
				Name:            safeName,
				TotalBytes:      total,
				BytesWritten:    int64(n),
				CumulativeBytes: cumulative,
			})
		}
		if readErr != nil {
			if errors.Is(readErr, io.EOF) {
				break
			}
			cleanup()
			if ctx.Err() != nil {
				return "", &CancelledError{URL: url}
			}
			return "", fmt.Errorf("downloader: read: %w", readErr)
		}
	}

	if err := f.Close(); err != nil {
		os.Remove(finalPath)
		return "", fmt.Errorf("downloader: close: %w", err)
	}
	return finalPath, nil
}
