package boostyapi

import (
	"encoding/json"
	"fmt"
)

// RawChunkType is the wire discriminator on a post data chunk (spec.md §6).
type RawChunkType string

const (
	ChunkTypeText     RawChunkType = "text"
	ChunkTypeImage    RawChunkType = "image"
	ChunkTypeLink     RawChunkType = "link"
	ChunkTypeList     RawChunkType = "list"
	ChunkTypeFile     RawChunkType = "file"
	ChunkTypeHeader   RawChunkType = "header"
	ChunkTypeOkVideo  RawChunkType = "ok_video"
	ChunkTypeVideo    RawChunkType = "video"
	ChunkTypeAudioOld RawChunkType = "audio_file"
)

// RawPost is the post record as returned on the wire, before C6 normalizes
// it into content.Post.
type RawPost struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	CreatedAt   string     `json:"createdAt"`
	UpdatedAt   string     `json:"updatedAt"`
	HasAccess   bool       `json:"hasAccess"`
	SignedQuery string     `json:"signedQuery"`
	Data        []RawChunk `json:"data"`
}

// RawChunk is one tagged element of RawPost.Data. Exactly one of the
// type-specific fields is populated, selected by Type (spec.md §9: a
// discriminator-aware decoder; unknown discriminants are a ValidationError,
// never a silent drop).
type RawChunk struct {
	Type RawChunkType

	// text, header, link
	Content     string
	Modificator string // text: style token, one of "", "BOLD", "ITALIC", "UNDERLINE"
	LinkURL     string // link only
	Explicit    bool   // link only

	// image
	ImageURL string
	Width    int
	Height   int

	// file
	FileURL   string
	FileTitle string

	// ok_video
	VideoTitle    string
	FailoverHost  string
	UploadStatus  string
	VideoComplete bool
	PlayerURLs    []OkVideoURL

	// video (external)
	ExternalURL string

	// audio_file
	AudioURL      string
	AudioTitle    string
	AudioComplete bool

	// list
	ListStyle string // "ordered" | "unordered" | ""
	ListItems []RawListItem
}

// OkVideoURL is one rendition entry of an ok_video chunk.
type OkVideoURL struct {
	URL  string `json:"url"`
	Type string `json:"type"` // rendition tier or adaptive/live streaming kind
}

// RawListItem is one (possibly nested) node of a list chunk. Boosty encodes
// list item text as a nested array of chunk-shaped objects (currently only
// text/link-flavoured), so Data reuses RawChunk's decoder.
type RawListItem struct {
	Data        []RawChunk    `json:"data"`
	NestedItems []RawListItem `json:"items"`
}

// wireChunk mirrors the superset of JSON fields emitted across every chunk
// type; discriminating on Type picks out which fields are meaningful.
type wireChunk struct {
	Type string `json:"type"`

	Content     string `json:"content"`
	Modificator string `json:"modificator"`
	URL         string `json:"url"`
	Explicit    bool   `json:"explicit"`

	Width  int `json:"width"`
	Height int `json:"height"`

	Title string `json:"title"`

	FailoverHost string       `json:"failoverHost"`
	UploadStatus string       `json:"uploadStatus"`
	Complete     bool         `json:"complete"`
	PlayerUrls   []OkVideoURL `json:"playerUrls"`

	Style string          `json:"style"`
	Items []RawListItem   `json:"items"`
	_     json.RawMessage // reserved
}

// UnmarshalJSON implements the discriminator-aware decode spec.md §9 and §6
// demand: unknown Type values are rejected as a ValidationError rather than
// silently dropped or defaulted.
func (c *RawChunk) UnmarshalJSON(data []byte) error {
	var w wireChunk
	if err := json.Unmarshal(data, &w); err != nil {
		return &ValidationError{Fields: []string{"data[]"}, Err: err}
	}

	c.Type = RawChunkType(w.Type)
	switch c.Type {
	case ChunkTypeText, ChunkTypeHeader:
		c.Content = w.Content
		c.Modificator = w.Modificator
	case ChunkTypeLink:
		c.Content = w.Content
		c.Modificator = w.Modificator
		c.LinkURL = w.URL
		c.Explicit = w.Explicit
	case ChunkTypeImage:
		c.ImageURL = w.URL
		c.Width = w.Width
		c.Height = w.Height
	case ChunkTypeFile:
		c.FileURL = w.URL
		c.FileTitle = w.Title
	case ChunkTypeOkVideo:
		c.VideoTitle = w.Title
		c.FailoverHost = w.FailoverHost
		c.UploadStatus = w.UploadStatus
		c.VideoComplete = w.Complete
		c.PlayerURLs = w.PlayerUrls
	case ChunkTypeVideo:
		c.ExternalURL = w.URL
	case ChunkTypeAudioOld:
		c.AudioURL = w.URL
		c.AudioTitle = w.Title
		c.AudioComplete = w.Complete
	case ChunkTypeList:
		c.ListStyle = w.Style
		c.ListItems = w.Items
	default:
		return &ValidationError{
			Fields: []string{"data[].type"},
			Err:    fmt.Errorf("unknown chunk type %q", w.Type),
		}
	}
	return nil
}

// PostsExtra carries the pagination cursor (spec.md §4.5).
type PostsExtra struct {
	Offset string `json:"offset"`
	IsLast bool   `json:"isLast"`
}

// PostsPage is one page of the paginated author-posts endpoint.
type PostsPage struct {
	Data  []RawPost  `json:"data"`
	Extra PostsExtra `json:"extra"`
}
