package usecase

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/Glitchy-Sheep/boosty-downloader/internal/boostyapi"
	"github.com/Glitchy-Sheep/boosty-downloader/internal/category"
	"github.com/Glitchy-Sheep/boosty-downloader/internal/progress"
	"github.com/Glitchy-Sheep/boosty-downloader/internal/quality"
)

// newAPIServer builds a blog listing server that serves pages[i] for offset
// i, mimicking the wire shape (data + extra.isLast/offset).
func newAPIServer(t *testing.T, pages [][]boostyapi.RawPost) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/blog/someauthor/post/", func(w http.ResponseWriter, r *http.Request) {
		offset := r.URL.Query().Get("offset")
		idx := 0
		if offset != "" {
			idx = mustAtoi(t, offset)
		}
		resp := struct {
			Data  []boostyapi.RawPost `json:"data"`
			Extra struct {
				Offset string `json:"offset"`
				IsLast bool   `json:"isLast"`
			} `json:"extra"`
		}{}
		resp.Data = pages[idx]
		resp.Extra.IsLast = idx == len(pages)-1
		if !resp.Extra.IsLast {
			resp.Extra.Offset = itoa(idx + 1)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	})
	return httptest.NewServer(mux)
}

func mustAtoi(t *testing.T, s string) int {
	t.Helper()
	n := 0
	for _, c := range s {
		if c < '0' || c > '9' {
			t.Fatalf("bad offset %q", s)
		}
		n = n*10 + int(c-'0')
	}
	return n
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	digits := []byte{}
	for n > 0 {
		digits = append([]byte{byte('0' + n%10)}, digits...)
		n /= 10
	}
	return string(digits)
}

func newClientAgainst(srv *httptest.Server) *boostyapi.Client {
	return boostyapi.New("cookie", "auth", boostyapi.MinRequestDelay,
		boostyapi.WithBaseURL(srv.URL+"/v1/"), boostyapi.WithHTTPClient(srv.Client()))
}

func TestExecuteAllPosts_SkipsInaccessiblePostsWithoutCaching(t *testing.T) {
	contentSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("body"))
	}))
	defer contentSrv.Close()

	posts := []boostyapi.RawPost{
		{
			ID: "inaccessible1", Title: "Locked", CreatedAt: "2024-01-01T00:00:00Z",
			UpdatedAt: "2024-01-01T00:00:00Z", HasAccess: false,
		},
		{
			ID: "accessible1", Title: "Open", CreatedAt: "2024-01-02T00:00:00Z",
			UpdatedAt: "2024-01-02T00:00:00Z", HasAccess: true,
			Data: []boostyapi.RawChunk{{Type: boostyapi.ChunkTypeText, Content: "hi"}},
		},
	}
	apiSrv := newAPIServer(t, [][]boostyapi.RawPost{posts})
	defer apiSrv.Close()

	cache := newTestCache(t)
	root := t.TempDir()

	dctx := &DownloadContext{
		MediaClient:             contentSrv.Client(),
		ExternalVideoDownloader: &fakeExtVideo{},
		Cache:                   cache,
		Requested:               category.NewSet(category.PostContent),
		PreferredQuality:        quality.High,
		Reporter:                progress.Null{},
	}

	count, err := ExecuteAllPosts(context.Background(), AllPostsOptions{
		Author:          "someauthor",
		DestinationRoot: root,
		API:             newClientAgainst(apiSrv),
		Download:        dctx,
	})
	if err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Errorf("postCount = %d, want 1 (inaccessible post must not count as archived)", count)
	}

	if _, ok, _ := cache.StoredTitle("inaccessible1"); ok {
		t.Errorf("inaccessible post must not be cached (spec invariant I3)")
	}
	if _, ok, _ := cache.StoredTitle("accessible1"); !ok {
		t.Errorf("accessible post should be cached after a successful run")
	}
}

func TestExecuteAllPosts_SynthesizesTitleForEmptyTitle(t *testing.T) {
	contentSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("body"))
	}))
	defer contentSrv.Close()

	posts := []boostyapi.RawPost{
		{
			ID: "notitleid", Title: "", CreatedAt: "2024-01-01T00:00:00Z",
			UpdatedAt: "2024-01-01T00:00:00Z", HasAccess: true,
			Data: []boostyapi.RawChunk{{Type: boostyapi.ChunkTypeText, Content: "hi"}},
		},
	}
	apiSrv := newAPIServer(t, [][]boostyapi.RawPost{posts})
	defer apiSrv.Close()

	cache := newTestCache(t)
	root := t.TempDir()

	dctx := &DownloadContext{
		MediaClient:             contentSrv.Client(),
		ExternalVideoDownloader: &fakeExtVideo{},
		Cache:                   cache,
		Requested:               category.NewSet(category.PostContent),
		PreferredQuality:        quality.High,
		Reporter:                progress.Null{},
	}

	if _, err := ExecuteAllPosts(context.Background(), AllPostsOptions{
		Author:          "someauthor",
		DestinationRoot: root,
		API:             newClientAgainst(apiSrv),
		Download:        dctx,
	}); err != nil {
		t.Fatal(err)
	}

	title, ok, err := cache.StoredTitle("notitleid")
	if err != nil || !ok {
		t.Fatalf("expected cache record, ok=%v err=%v", ok, err)
	}
	if !strings.HasPrefix(title, "Not title (id_notitlei") {
		t.Errorf("title = %q, want synthesized title", title)
	}
}

func TestExecuteAllPosts_TotalPostCheckOnlyCountsAndDownloadsNothing(t *testing.T) {
	posts := []boostyapi.RawPost{
		{ID: "a", Title: "A", CreatedAt: "2024-01-01T00:00:00Z", UpdatedAt: "2024-01-01T00:00:00Z", HasAccess: true},
		{ID: "b", Title: "B", CreatedAt: "2024-01-02T00:00:00Z", UpdatedAt: "2024-01-02T00:00:00Z", HasAccess: true},
	}
	apiSrv := newAPIServer(t, [][]boostyapi.RawPost{posts})
	defer apiSrv.Close()

	root := t.TempDir()
	count, err := ExecuteAllPosts(context.Background(), AllPostsOptions{
		Author:             "someauthor",
		DestinationRoot:    root,
		API:                newClientAgainst(apiSrv),
		Download:           &DownloadContext{Reporter: progress.Null{}},
		TotalPostCheckOnly: true,
	})
	if err != nil {
		t.Fatal(err)
	}
	if count != 2 {
		t.Errorf("count = %d, want 2", count)
	}
	entries, err := os.ReadDir(root)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("--total-post-check must not create any author directory contents, got %v", entries)
	}
}

func TestExecuteWithRetry_RetriesAndSucceedsEventually(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 4 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		w.Write([]byte("bytes"))
	}))
	defer srv.Close()

	cache := newTestCache(t)
	destDir := t.TempDir()
	origBase := perPostBackoffBase
	perPostBackoffBase = time.Millisecond
	perPostBackoffCap = 10 * time.Millisecond
	t.Cleanup(func() { perPostBackoffBase = origBase; perPostBackoffCap = 30 * time.Second })

	raw := &boostyapi.RawPost{
		ID: "retry1", Title: "Retry Me", CreatedAt: "2024-01-01T00:00:00Z",
		UpdatedAt: "2024-01-01T00:00:00Z", HasAccess: true,
		Data: []boostyapi.RawChunk{{Type: boostyapi.ChunkTypeImage, ImageURL: srv.URL + "/pic.png"}},
	}

	dctx := &DownloadContext{
		MediaClient:             srv.Client(),
		ExternalVideoDownloader: &fakeExtVideo{},
		Cache:                   cache,
		Requested:               category.NewSet(category.PostContent),
		PreferredQuality:        quality.High,
		Reporter:                progress.Null{},
	}

	var failureLog bytes.Buffer
	err := executeWithRetry(context.Background(), destDir, raw, raw.Title, dctx, progress.Null{}, &failureLog)
	if err != nil {
		t.Fatalf("expected eventual success, got %v", err)
	}
	if attempts != 4 {
		t.Errorf("attempts = %d, want 4", attempts)
	}
	if failureLog.Len() != 0 {
		t.Errorf("failure log should be empty on eventual success, got %q", failureLog.String())
	}
}

func TestExecuteWithRetry_LogsFailureAfterExhaustingAttempts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	cache := newTestCache(t)
	destDir := t.TempDir()
	origBase, origCap := perPostBackoffBase, perPostBackoffCap
	perPostBackoffBase = time.Millisecond
	perPostBackoffCap = time.Millisecond
	t.Cleanup(func() { perPostBackoffBase = origBase; perPostBackoffCap = origCap })

	raw := &boostyapi.RawPost{
		ID: "failing1", Title: "Always Fails", CreatedAt: "2024-01-01T00:00:00Z",
		UpdatedAt: "2024-01-01T00:00:00Z", HasAccess: true,
		Data: []boostyapi.RawChunk{{Type: boostyapi.ChunkTypeImage, ImageURL: srv.URL + "/pic.png"}},
	}

	dctx := &DownloadContext{
		MediaClient:             srv.Client(),
		ExternalVideoDownloader: &fakeExtVideo{},
		Cache:                   cache,
		Requested:               category.NewSet(category.PostContent),
		PreferredQuality:        quality.High,
		Reporter:                progress.Null{},
	}

	var failureLog bytes.Buffer
	err := executeWithRetry(context.Background(), destDir, raw, raw.Title, dctx, progress.Null{}, &failureLog)
	if err == nil {
		t.Fatal("expected a final error after exhausting retries")
	}
	if !strings.Contains(failureLog.String(), "failing1") {
		t.Errorf("failure log = %q, want it to mention the post id", failureLog.String())
	}
	if _, ok, _ := cache.StoredTitle("failing1"); ok {
		t.Errorf("a post that never completes must not get a cache record")
	}
}

func TestExecuteAllPosts_PropagatesCancellationImmediately(t *testing.T) {
	posts := []boostyapi.RawPost{
		{ID: "x", Title: "X", CreatedAt: "2024-01-01T00:00:00Z", UpdatedAt: "2024-01-01T00:00:00Z", HasAccess: true},
	}
	apiSrv := newAPIServer(t, [][]boostyapi.RawPost{posts})
	defer apiSrv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	root := t.TempDir()
	_, err := ExecuteAllPosts(ctx, AllPostsOptions{
		Author:          "someauthor",
		DestinationRoot: root,
		API:             newClientAgainst(apiSrv),
		Download:        &DownloadContext{Reporter: progress.Null{}},
	})
	if err == nil {
		t.Fatal("expected cancellation error")
	}
}
