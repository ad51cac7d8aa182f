// Package htmlrender is the HTML Renderer (C7, spec.md §4.7): it turns a
// normalized, already-downloaded chunk sequence into a single self-contained
// post.html referencing local media by relative path.
package htmlrender

import (
	"bufio"
	"context"
	"fmt"
	"html"
	"os"
	"path/filepath"

	"github.com/Glitchy-Sheep/boosty-downloader/internal/content"
)

// RenderError wraps a failure that occurred while writing the document.
type RenderError struct {
	Path string
	Err  error
}

func (e *RenderError) Error() string { return fmt.Sprintf("htmlrender: %s: %v", e.Path, e.Err) }
func (e *RenderError) Unwrap() error { return e.Err }

// CancelledError is returned when ctx is cancelled mid-render.
type CancelledError struct{ Path string }

func (e *CancelledError) Error() string { return fmt.Sprintf("htmlrender: cancelled writing %s", e.Path) }
func (e *CancelledError) Unwrap() error { return context.Canceled }

// Render writes chunks as HTML to destDir/post.html. On any failure,
// including context cancellation, the partially-written file is removed
// before the error is returned (spec.md §4.7's file-system safety rule).
// Rendering the same chunks twice produces byte-identical output (no
// timestamps, no map-iteration-order-dependent content).
func Render(ctx context.Context, chunks []content.Chunk, destDir string) (path string, err error) {
	path = filepath.Join(destDir, "post.html")
	f, err := os.Create(path)
	if err != nil {
		return "", &RenderError{Path: path, Err: err}
	}

	cleanup := func(e error) (string, error) {
		f.Close()
		os.Remove(path)
		return "", e
	}

	w := bufio.NewWriter(f)
	fmt.Fprint(w, "<!DOCTYPE html>\n<html><head><meta charset=\"utf-8\"></head><body>\n")

	inParagraph := false
	closeParagraph := func() {
		if inParagraph {
			fmt.Fprint(w, "</p>\n")
			inParagraph = false
		}
	}
	openParagraph := func() {
		if !inParagraph {
			fmt.Fprint(w, "<p>")
			inParagraph = true
		}
	}

	for _, chunk := range chunks {
		if err := ctx.Err(); err != nil {
			return cleanup(&CancelledError{Path: path})
		}

		switch chunk.Kind {
		case content.ChunkText:
			for _, frag := range chunk.Fragments {
				if frag.Text == content.NewLineSymbol {
					closeParagraph()
					continue
				}
				if frag.HeaderLevel > 0 {
					closeParagraph()
					fmt.Fprintf(w, "<h%d>%s</h%d>\n", frag.HeaderLevel, renderFragmentBody(frag), frag.HeaderLevel)
					continue
				}
				openParagraph()
				fmt.Fprint(w, renderFragmentBody(frag))
			}
		case content.ChunkImage:
			closeParagraph()
			fmt.Fprintf(w, "<img src=%q alt=%q>\n", relHref(chunk.LocalPath), html.EscapeString(filepath.Base(chunk.LocalPath)))
		case content.ChunkPlatformVideo, content.ChunkExternalVideo:
			closeParagraph()
			fmt.Fprintf(w, "<video controls src=%q></video>\n", relHref(chunk.LocalPath))
		case content.ChunkTextualList:
			closeParagraph()
			renderList(w, chunk.Style, chunk.Items)
		case content.ChunkFile, content.ChunkAudio:
			// File/Audio chunks do not appear in the HTML body (spec.md §4.8:
			// only post_content-eligible kinds are rendered).
		}
	}
	closeParagraph()
	fmt.Fprint(w, "</body></html>\n")

	if err := w.Flush(); err != nil {
		return cleanup(&RenderError{Path: path, Err: err})
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return "", &RenderError{Path: path, Err: err}
	}
	return path, nil
}

func relHref(localPath string) string {
	return filepath.ToSlash(localPath)
}

func renderFragmentBody(f content.TextFragment) string {
	body := html.EscapeString(f.Text)
	if f.Bold {
		body = "<b>" + body + "</b>"
	}
	if f.Italic {
		body = "<i>" + body + "</i>"
	}
	if f.Underline {
		body = "<u>" + body + "</u>"
	}
	if f.LinkURL != "" {
		body = fmt.Sprintf("<a href=%q>%s</a>", f.LinkURL, body)
	}
	return body
}

func renderList(w *bufio.Writer, style content.ListStyle, items []content.ListItem) {
	tag := "ul"
	if style == content.Ordered {
		tag = "ol"
	}
	fmt.Fprintf(w, "<%s>\n", tag)
	for _, item := range items {
		fmt.Fprint(w, "<li>")
		for _, frag := range item.Fragments {
			if frag.Text == content.NewLineSymbol {
				continue
			}
			fmt.Fprint(w, renderFragmentBody(frag))
		}
		if len(item.Nested) > 0 {
			renderList(w, style, item.Nested)
		}
		fmt.Fprint(w, "</li>\n")
	}
	fmt.Fprintf(w, "</%s>\n", tag)
}
