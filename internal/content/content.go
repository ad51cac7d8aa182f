// Package content holds the normalized post representation that C6 (the
// content classifier/mapper) produces from a boostyapi.RawPost: a
// discriminated chunk sequence independent of the wire format, ready for
// C3/C7 to consume (spec.md §3, §4.6).
package content

import "github.com/Glitchy-Sheep/boosty-downloader/internal/quality"

// NewLineSymbol is the sentinel TextFragment.Text value that renders as a
// paragraph break in the HTML renderer (spec.md §3, §4.7).
const NewLineSymbol = "<NEW_LINE_SYMBOL>"

// TextFragment is one styled run of text within a Text chunk or a list
// item's text content.
type TextFragment struct {
	Text        string
	LinkURL     string // empty unless this fragment is a hyperlink
	HeaderLevel int    // 0 = not a header, 1-6 = <h1>..<h6>
	Bold        bool
	Italic      bool
	Underline   bool
}

// ListStyle discriminates Textual List ordering.
type ListStyle int

const (
	Unordered ListStyle = iota
	Ordered
)

// ListItem is one node of a Textual List's tree (spec.md §9: cyclic
// reference between list mapping and nested items, modeled here as a
// plain heap-allocated tree since platform list nesting is shallow).
type ListItem struct {
	Fragments []TextFragment
	Nested    []ListItem
}

// ChunkKind discriminates the normalized chunk union.
type ChunkKind int

const (
	ChunkText ChunkKind = iota
	ChunkImage
	ChunkFile
	ChunkPlatformVideo
	ChunkExternalVideo
	ChunkTextualList
	ChunkAudio
)

// Rendition is one encoded variant of a platform-hosted video.
type Rendition struct {
	Tier quality.Tier
	URL  string
}

// Chunk is a normalized content chunk. Only the fields relevant to Kind are
// populated; callers switch on Kind. LocalPath is filled in by C8 once the
// chunk's artifact (if any) has been downloaded, so C7 never sees a remote
// URL (spec.md §4.7: "Image and Video chunks carry the relative filesystem
// path of the downloaded artifact, not the remote URL").
type Chunk struct {
	Kind ChunkKind

	// ChunkText
	Fragments []TextFragment

	// ChunkImage, ChunkFile, ChunkPlatformVideo (post-selection), ChunkExternalVideo, ChunkAudio
	URL       string
	LocalPath string

	// ChunkFile, ChunkPlatformVideo, ChunkExternalVideo, ChunkAudio
	Title string

	// ChunkPlatformVideo: C6 resolves the rendition set to one via
	// quality.Best and stores the pick in URL and Tier; MapPost leaves
	// Renditions empty.
	Renditions []Rendition
	Tier       quality.Tier

	// ChunkTextualList
	Style ListStyle
	Items []ListItem
}

// Post is the normalized post C8 operates on.
type Post struct {
	ID          string
	Title       string
	CreatedAt   string // RFC3339
	UpdatedAt   string // RFC3339
	HasAccess   bool
	SignedQuery string
	Chunks      []Chunk
}
