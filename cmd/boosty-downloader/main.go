// Command boosty-downloader archives an author's posts from the platform:
// every image, file, platform-hosted video, and externally-hosted video is
// downloaded, and the textual body is rendered to a standalone post.html,
// under a durable per-author cache so re-runs only do the missing work.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/Glitchy-Sheep/boosty-downloader/internal/boostyapi"
	"github.com/Glitchy-Sheep/boosty-downloader/internal/category"
	"github.com/Glitchy-Sheep/boosty-downloader/internal/config"
	"github.com/Glitchy-Sheep/boosty-downloader/internal/destpath"
	"github.com/Glitchy-Sheep/boosty-downloader/internal/downloader"
	"github.com/Glitchy-Sheep/boosty-downloader/internal/extvideo"
	"github.com/Glitchy-Sheep/boosty-downloader/internal/httpclient"
	"github.com/Glitchy-Sheep/boosty-downloader/internal/metrics"
	"github.com/Glitchy-Sheep/boosty-downloader/internal/postcache"
	"github.com/Glitchy-Sheep/boosty-downloader/internal/progress"
	"github.com/Glitchy-Sheep/boosty-downloader/internal/quality"
	"github.com/Glitchy-Sheep/boosty-downloader/internal/usecase"
)

// qualityAliases maps spec.md §6's CLI quality names to the rendition tier
// set C2 ranks over.
var qualityAliases = map[string]quality.Tier{
	"smallest_size": quality.Lowest,
	"low":           quality.Low,
	"medium":        quality.Medium,
	"high":          quality.High,
	"highest":       quality.UltraHD,
}

func main() {
	username := flag.String("username", "", "author handle to archive (required)")
	postURL := flag.String("post-url", "", "archive a single post by URL instead of the whole author")
	flag.StringVar(postURL, "p", "", "shorthand for --post-url")
	filterFlags := multiFlag{}
	flag.Var(&filterFlags, "content-type-filter", "repeatable: files|post_content|boosty_videos|external_videos (default: all)")
	flag.Var(&filterFlags, "f", "shorthand for --content-type-filter")
	preferredQuality := flag.String("preferred-video-quality", "highest", "smallest_size|low|medium|high|highest")
	flag.StringVar(preferredQuality, "q", "highest", "shorthand for --preferred-video-quality")
	requestDelay := flag.Float64("request-delay-seconds", boostyapi.DefaultRequestDelay.Seconds(), "inter-page delay in seconds (min 1)")
	flag.Float64Var(requestDelay, "d", boostyapi.DefaultRequestDelay.Seconds(), "shorthand for --request-delay-seconds")
	totalPostCheck := flag.Bool("total-post-check", false, "count posts and exit")
	flag.BoolVar(totalPostCheck, "t", false, "shorthand for --total-post-check")
	cleanCache := flag.Bool("clean-cache", false, "purge the cache for the given author and exit")
	flag.BoolVar(cleanCache, "c", false, "shorthand for --clean-cache")
	destDirOverride := flag.String("destination-directory", "", "override the target root from the config file")
	configPath := flag.String("config", "config.yaml", "path to the YAML config file")
	extVideoProgram := flag.String("external-video-downloader", "yt-dlp", "external program used to fetch third-party-hosted videos")
	metricsAddr := flag.String("metrics-addr", "", "optional address to serve Prometheus /metrics on (disabled if empty)")
	flag.Parse()

	if *username == "" {
		log.Fatalf("boosty-downloader: --username is required")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("boosty-downloader: %v", err)
	}

	targetRoot := cfg.DownloadingSettings.TargetDirectory
	if *destDirOverride != "" {
		targetRoot = *destDirOverride
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	authorDir := filepath.Join(targetRoot, *username)
	if err := os.MkdirAll(authorDir, 0o755); err != nil {
		log.Fatalf("boosty-downloader: create %s: %v", authorDir, err)
	}

	cache, err := postcache.Open(filepath.Join(authorDir, "post_cache.db"))
	if err != nil {
		log.Fatalf("boosty-downloader: %v (try --clean-cache)", err)
	}
	defer cache.Close()

	if *cleanCache {
		if err := cache.PurgeAll(); err != nil {
			log.Fatalf("boosty-downloader: %v", err)
		}
		fmt.Println("cache cleared")
		return
	}

	api := boostyapi.New(cfg.Auth.Cookie, cfg.Auth.AuthHeader, secondsToDuration(*requestDelay))

	rep := progress.NewDefaultReporter()

	if *totalPostCheck {
		count, err := usecase.ExecuteAllPosts(ctx, usecase.AllPostsOptions{
			Author:             *username,
			DestinationRoot:    targetRoot,
			API:                api,
			Download:           &usecase.DownloadContext{Reporter: rep},
			TotalPostCheckOnly: true,
		})
		reportFatal(err)
		fmt.Printf("%d posts\n", count)
		return
	}

	requested := resolveFilters(filterFlags)
	tier, ok := qualityAliases[*preferredQuality]
	if !ok {
		log.Fatalf("boosty-downloader: unknown --preferred-video-quality %q", *preferredQuality)
	}

	m := metrics.New()
	if *metricsAddr != "" {
		go func() {
			if err := m.Serve(ctx, *metricsAddr); err != nil && ctx.Err() == nil {
				log.Printf("metrics: %v", err)
			}
		}()
	}

	dctx := &usecase.DownloadContext{
		MediaClient:             httpclient.ForStreaming(),
		ExternalVideoDownloader: extvideo.NewCommandDownloader(*extVideoProgram),
		Cache:                   cache,
		Requested:               requested,
		PreferredQuality:        tier,
		Reporter:                rep,
		Metrics:                 m,
	}

	failureLogFile, err := os.OpenFile(filepath.Join(authorDir, "failed_downloads.log"), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		log.Fatalf("boosty-downloader: open failure log: %v", err)
	}
	defer failureLogFile.Close()

	if *postURL != "" {
		postID := lastPathSegment(*postURL)
		raw, err := api.GetPost(ctx, *username, postID)
		reportFatal(err)
		title := raw.Title
		if title == "" {
			title = fmt.Sprintf("Not title (id_%s)", shortID(raw.ID))
		}
		created, perr := time.Parse(time.RFC3339, raw.CreatedAt)
		if perr != nil {
			log.Fatalf("boosty-downloader: bad createdAt %q: %v", raw.CreatedAt, perr)
		}
		destDir := destpath.Build(targetRoot, *username, created, title, raw.ID)
		err = usecase.ExecutePost(ctx, destDir, raw, title, dctx)
		reportFatal(err)
		rep.Success("done")
		return
	}

	count, err := usecase.ExecuteAllPosts(ctx, usecase.AllPostsOptions{
		Author:          *username,
		DestinationRoot: targetRoot,
		PageSize:        boostyapi.DefaultPageSize,
		API:             api,
		Download:        dctx,
		FailureLog:      failureLogFile,
	})
	reportFatal(err)
	rep.Success(fmt.Sprintf("archived %d posts", count))
}

// reportFatal translates the error taxonomy of spec.md §7 into a single
// human-readable log line at the top-level entrypoint (spec.md §7's
// propagation policy: "every fatal error class is caught ONLY at the
// top-level entrypoint"). Cancellation exits with a farewell message
// rather than a stack of error prefixes.
func reportFatal(err error) {
	if err == nil {
		return
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		fmt.Println("interrupted, cleaned up partial downloads, goodbye")
		os.Exit(1)
	}

	var cancelled *downloader.CancelledError
	var noUsername *boostyapi.NoUsernameError
	var unauthorized *boostyapi.UnauthorizedError
	var validation *boostyapi.ValidationError
	var unknownAPI *boostyapi.UnknownAPIError
	var cache *postcache.CacheError

	switch {
	case errors.As(err, &cancelled):
		fmt.Println("interrupted, cleaned up partial downloads, goodbye")
		os.Exit(1)
	case errors.As(err, &noUsername):
		log.Fatalf("boosty-downloader: %v", noUsername)
	case errors.As(err, &unauthorized):
		log.Fatalf("boosty-downloader: %v (re-login and update auth.cookie / auth.auth_header)", unauthorized)
	case errors.As(err, &validation):
		log.Fatalf("boosty-downloader: %v (please report this upstream)", validation)
	case errors.As(err, &unknownAPI):
		log.Fatalf("boosty-downloader: %v", unknownAPI)
	case errors.As(err, &cache):
		log.Fatalf("boosty-downloader: %v (try --clean-cache)", cache)
	default:
		log.Fatalf("boosty-downloader: %v", err)
	}
}

func secondsToDuration(s float64) time.Duration {
	if s < boostyapi.MinRequestDelay.Seconds() {
		s = boostyapi.MinRequestDelay.Seconds()
	}
	return time.Duration(s * float64(time.Second))
}

func resolveFilters(flags multiFlag) category.Set {
	if len(flags) == 0 {
		return category.NewSet(category.PostContent, category.Files, category.BoostyVideos, category.ExternalVideos, category.Audio)
	}
	cats := make([]category.Category, 0, len(flags))
	for _, f := range flags {
		cats = append(cats, category.Category(f))
	}
	return category.NewSet(cats...)
}

func lastPathSegment(rawURL string) string {
	trimmed := strings.TrimRight(rawURL, "/")
	idx := strings.LastIndex(trimmed, "/")
	if idx == -1 {
		return trimmed
	}
	return trimmed[idx+1:]
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// multiFlag implements flag.Value for a repeatable string flag
// (--content-type-filter, spec.md §6).
type multiFlag []string

func (m *multiFlag) String() string { return strings.Join(*m, ",") }
func (m *multiFlag) Set(v string) error {
	*m = append(*m, v)
	return nil
}
