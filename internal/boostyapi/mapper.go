package boostyapi

import (
	"fmt"

	"github.com/Glitchy-Sheep/boosty-downloader/internal/category"
	"github.com/Glitchy-Sheep/boosty-downloader/internal/content"
	"github.com/Glitchy-Sheep/boosty-downloader/internal/quality"
)

// videoTierByWireName maps the ranked wire-level rendition names to
// quality.Tier. Adaptive/live/streaming wire names (spec.md §4.2: "Adaptive
// /live/streaming tiers are excluded from selection") are deliberately
// absent, so they never enter the rendition set C2 ranks over.
var videoTierByWireName = map[string]quality.Tier{
	"ultra_hd": quality.UltraHD,
	"quad_hd":  quality.QuadHD,
	"full_hd":  quality.FullHD,
	"high":     quality.High,
	"medium":   quality.Medium,
	"low":      quality.Low,
	"tiny":     quality.Tiny,
	"lowest":   quality.Lowest,
}

// MapPost implements C6 (spec.md §4.6): it converts a RawPost into a
// normalized content.Post plus the set of filter categories that turned out
// to be incomplete ("boosty_videos" / "audio" per the skip rules below).
// preferred is the run's preferred video quality tier, passed through to C2.
func MapPost(raw *RawPost, preferred quality.Tier) (*content.Post, category.Set, error) {
	post := &content.Post{
		ID:          raw.ID,
		Title:       raw.Title,
		CreatedAt:   raw.CreatedAt,
		UpdatedAt:   raw.UpdatedAt,
		HasAccess:   raw.HasAccess,
		SignedQuery: raw.SignedQuery,
	}
	incomplete := category.NewSet()

	var pendingText []content.TextFragment
	flushText := func() {
		if len(pendingText) == 0 {
			return
		}
		post.Chunks = append(post.Chunks, content.Chunk{
			Kind:      content.ChunkText,
			Fragments: pendingText,
		})
		pendingText = nil
	}

	for _, raw := range raw.Data {
		switch raw.Type {
		case ChunkTypeText, ChunkTypeHeader, ChunkTypeLink:
			pendingText = append(pendingText, textFragment(raw))

		case ChunkTypeImage:
			flushText()
			post.Chunks = append(post.Chunks, content.Chunk{
				Kind: content.ChunkImage,
				URL:  raw.ImageURL,
			})

		case ChunkTypeFile:
			flushText()
			post.Chunks = append(post.Chunks, content.Chunk{
				Kind:  content.ChunkFile,
				URL:   raw.FileURL + post.SignedQuery,
				Title: raw.FileTitle,
			})

		case ChunkTypeOkVideo:
			flushText()
			if !raw.VideoComplete {
				incomplete = incomplete.Add(category.BoostyVideos)
				continue
			}
			renditions := make([]content.Rendition, 0, len(raw.PlayerURLs))
			for _, pu := range raw.PlayerURLs {
				tier, ok := videoTierByWireName[pu.Type]
				if !ok || pu.URL == "" {
					continue
				}
				renditions = append(renditions, content.Rendition{Tier: tier, URL: pu.URL})
			}
			best, ok := bestRendition(renditions, preferred)
			if !ok {
				continue
			}
			post.Chunks = append(post.Chunks, content.Chunk{
				Kind:  content.ChunkPlatformVideo,
				Title: raw.VideoTitle,
				URL:   best.URL,
				Tier:  best.Tier,
			})

		case ChunkTypeVideo:
			flushText()
			post.Chunks = append(post.Chunks, content.Chunk{
				Kind: content.ChunkExternalVideo,
				URL:  raw.ExternalURL,
			})

		case ChunkTypeAudioOld:
			flushText()
			if !raw.AudioComplete {
				incomplete = incomplete.Add(category.Audio)
				continue
			}
			post.Chunks = append(post.Chunks, content.Chunk{
				Kind:  content.ChunkAudio,
				URL:   raw.AudioURL,
				Title: raw.AudioTitle,
			})

		case ChunkTypeList:
			flushText()
			items, err := mapListItems(raw.ListItems)
			if err != nil {
				return nil, nil, err
			}
			post.Chunks = append(post.Chunks, content.Chunk{
				Kind:  content.ChunkTextualList,
				Style: listStyle(raw.ListStyle),
				Items: items,
			})

		default:
			return nil, nil, &ValidationError{
				Fields: []string{"data[].type"},
				Err:    fmt.Errorf("unmapped chunk type %q", raw.Type),
			}
		}
	}
	flushText()

	return post, incomplete, nil
}

// textFragment maps a text/header/link raw chunk to one TextFragment
// (spec.md §4.6: "Text / Header / Link raw chunks collapse into a single
// Text chunk carrying a list of styled fragments; links contribute a
// fragment with link_url set").
func textFragment(raw RawChunk) content.TextFragment {
	f := content.TextFragment{Text: raw.Content}
	if raw.Type == ChunkTypeHeader {
		f.HeaderLevel = 1
	}
	if raw.Type == ChunkTypeLink {
		f.LinkURL = raw.LinkURL
	}
	switch raw.Modificator {
	case "BOLD":
		f.Bold = true
	case "ITALIC":
		f.Italic = true
	case "UNDERLINE":
		f.Underline = true
	}
	return f
}

func listStyle(wire string) content.ListStyle {
	if wire == "ordered" {
		return content.Ordered
	}
	return content.Unordered
}

func mapListItems(raw []RawListItem) ([]content.ListItem, error) {
	items := make([]content.ListItem, 0, len(raw))
	for _, ri := range raw {
		fragments := make([]content.TextFragment, 0, len(ri.Data))
		for _, d := range ri.Data {
			if d.Type != ChunkTypeText && d.Type != ChunkTypeHeader && d.Type != ChunkTypeLink {
				return nil, &ValidationError{
					Fields: []string{"data[].items[].data[].type"},
					Err:    fmt.Errorf("list item data chunk type %q not textual", d.Type),
				}
			}
			fragments = append(fragments, textFragment(d))
		}
		nested, err := mapListItems(ri.NestedItems)
		if err != nil {
			return nil, err
		}
		items = append(items, content.ListItem{Fragments: fragments, Nested: nested})
	}
	return items, nil
}

func bestRendition(renditions []content.Rendition, preferred quality.Tier) (content.Rendition, bool) {
	qr := make([]quality.Rendition, len(renditions))
	for i, r := range renditions {
		qr[i] = quality.Rendition{Tier: r.Tier, URL: r.URL}
	}
	picked, ok := quality.Best(qr, preferred)
	if !ok {
		return content.Rendition{}, false
	}
	return content.Rendition{Tier: picked.Tier, URL: picked.URL}, true
}
