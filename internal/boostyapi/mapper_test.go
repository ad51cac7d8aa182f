package boostyapi

import (
	"testing"

	"github.com/Glitchy-Sheep/boosty-downloader/internal/category"
	"github.com/Glitchy-Sheep/boosty-downloader/internal/content"
	"github.com/Glitchy-Sheep/boosty-downloader/internal/quality"
)

func TestMapPost_TextHeaderLinkCollapseIntoOneChunk(t *testing.T) {
	raw := &RawPost{
		ID: "p1", SignedQuery: "?sig=1",
		Data: []RawChunk{
			{Type: ChunkTypeText, Content: "Hello "},
			{Type: ChunkTypeHeader, Content: "A Header"},
			{Type: ChunkTypeLink, Content: "link text", LinkURL: "https://example.com"},
		},
	}
	post, incomplete, err := MapPost(raw, quality.High)
	if err != nil {
		t.Fatal(err)
	}
	if !incomplete.Empty() {
		t.Errorf("incomplete = %v", incomplete.Sorted())
	}
	if len(post.Chunks) != 1 || post.Chunks[0].Kind != content.ChunkText {
		t.Fatalf("chunks = %+v", post.Chunks)
	}
	frags := post.Chunks[0].Fragments
	if len(frags) != 3 {
		t.Fatalf("fragments = %+v", frags)
	}
	if frags[1].HeaderLevel == 0 {
		t.Error("header fragment should have HeaderLevel > 0")
	}
	if frags[2].LinkURL != "https://example.com" {
		t.Errorf("link fragment URL = %q", frags[2].LinkURL)
	}
}

func TestMapPost_FileURLGetsSignedQueryAppended(t *testing.T) {
	raw := &RawPost{
		ID: "p1", SignedQuery: "?sig=abc",
		Data: []RawChunk{
			{Type: ChunkTypeFile, FileURL: "https://cdn/file.bin", FileTitle: "doc.bin"},
		},
	}
	post, _, err := MapPost(raw, quality.High)
	if err != nil {
		t.Fatal(err)
	}
	if post.Chunks[0].URL != "https://cdn/file.bin?sig=abc" {
		t.Errorf("url = %q", post.Chunks[0].URL)
	}
	if post.Chunks[0].Title != "doc.bin" {
		t.Errorf("title = %q", post.Chunks[0].Title)
	}
}

func TestMapPost_IncompleteVideoSkippedAndFlagged(t *testing.T) {
	raw := &RawPost{
		ID: "p1",
		Data: []RawChunk{
			{Type: ChunkTypeOkVideo, VideoTitle: "V", VideoComplete: false},
		},
	}
	post, incomplete, err := MapPost(raw, quality.High)
	if err != nil {
		t.Fatal(err)
	}
	if len(post.Chunks) != 0 {
		t.Errorf("chunks = %+v, want none (incomplete video skipped)", post.Chunks)
	}
	if !incomplete.Contains(category.BoostyVideos) {
		t.Errorf("incomplete = %v, want boosty_videos", incomplete.Sorted())
	}
}

func TestMapPost_IncompleteAudioSkippedAndFlagged(t *testing.T) {
	raw := &RawPost{
		ID: "p1",
		Data: []RawChunk{
			{Type: ChunkTypeAudioOld, AudioTitle: "A", AudioComplete: false},
		},
	}
	post, incomplete, err := MapPost(raw, quality.High)
	if err != nil {
		t.Fatal(err)
	}
	if len(post.Chunks) != 0 {
		t.Errorf("chunks = %+v, want none", post.Chunks)
	}
	if !incomplete.Contains(category.Audio) {
		t.Errorf("incomplete = %v, want audio", incomplete.Sorted())
	}
}

func TestMapPost_CompleteVideoPicksQualityViaC2(t *testing.T) {
	raw := &RawPost{
		ID: "p1",
		Data: []RawChunk{
			{Type: ChunkTypeOkVideo, VideoTitle: "V", VideoComplete: true, PlayerURLs: []OkVideoURL{
				{URL: "https://x/low.mp4", Type: "low"},
				{URL: "https://x/medium.mp4", Type: "medium"},
				{URL: "https://x/live.m3u8", Type: "live_hls"},
			}},
		},
	}
	post, _, err := MapPost(raw, quality.Medium)
	if err != nil {
		t.Fatal(err)
	}
	if len(post.Chunks) != 1 || post.Chunks[0].Kind != content.ChunkPlatformVideo {
		t.Fatalf("chunks = %+v", post.Chunks)
	}
	if post.Chunks[0].URL != "https://x/medium.mp4" {
		t.Errorf("url = %q, want medium rendition (live excluded from ranking)", post.Chunks[0].URL)
	}
}

func TestMapPost_VideoWithNoRankedRenditionIsSkipped(t *testing.T) {
	raw := &RawPost{
		ID: "p1",
		Data: []RawChunk{
			{Type: ChunkTypeOkVideo, VideoTitle: "V", VideoComplete: true, PlayerURLs: []OkVideoURL{
				{URL: "https://x/live.m3u8", Type: "live_hls"},
			}},
		},
	}
	post, _, err := MapPost(raw, quality.Medium)
	if err != nil {
		t.Fatal(err)
	}
	if len(post.Chunks) != 0 {
		t.Errorf("chunks = %+v, want none (only adaptive rendition present)", post.Chunks)
	}
}

func TestMapPost_NestedList(t *testing.T) {
	raw := &RawPost{
		ID: "p1",
		Data: []RawChunk{
			{Type: ChunkTypeList, ListStyle: "ordered", ListItems: []RawListItem{
				{
					Data: []RawChunk{{Type: ChunkTypeText, Content: "Item 1"}},
				},
				{
					Data: []RawChunk{{Type: ChunkTypeText, Content: "Nested list:"}},
					NestedItems: []RawListItem{
						{Data: []RawChunk{{Type: ChunkTypeText, Content: "Item 2"}}},
						{Data: []RawChunk{{Type: ChunkTypeText, Content: "Item 3"}}},
					},
				},
			}},
		},
	}
	post, _, err := MapPost(raw, quality.High)
	if err != nil {
		t.Fatal(err)
	}
	if len(post.Chunks) != 1 || post.Chunks[0].Kind != content.ChunkTextualList {
		t.Fatalf("chunks = %+v", post.Chunks)
	}
	list := post.Chunks[0]
	if list.Style != content.Ordered {
		t.Errorf("style = %v, want Ordered", list.Style)
	}
	if len(list.Items) != 2 {
		t.Fatalf("items = %+v", list.Items)
	}
	if len(list.Items[1].Nested) != 2 {
		t.Fatalf("nested items = %+v", list.Items[1].Nested)
	}
	if list.Items[1].Nested[0].Fragments[0].Text != "Item 2" {
		t.Errorf("nested fragment = %+v", list.Items[1].Nested[0].Fragments[0])
	}
}

func TestMapPost_ExternalVideoMapsUnchanged(t *testing.T) {
	raw := &RawPost{
		ID: "p1",
		Data: []RawChunk{
			{Type: ChunkTypeVideo, ExternalURL: "https://youtube.com/watch?v=abc"},
		},
	}
	post, _, err := MapPost(raw, quality.High)
	if err != nil {
		t.Fatal(err)
	}
	if len(post.Chunks) != 1 || post.Chunks[0].Kind != content.ChunkExternalVideo {
		t.Fatalf("chunks = %+v", post.Chunks)
	}
	if post.Chunks[0].URL != "https://youtube.com/watch?v=abc" {
		t.Errorf("url = %q", post.Chunks[0].URL)
	}
}

func TestMapPost_UnknownChunkTypeIsValidationError(t *testing.T) {
	raw := &RawPost{
		ID: "p1",
		Data: []RawChunk{
			{Type: RawChunkType("mystery")},
		},
	}
	_, _, err := MapPost(raw, quality.High)
	if _, ok := err.(*ValidationError); !ok {
		t.Errorf("err = %T (%v), want *ValidationError", err, err)
	}
}
