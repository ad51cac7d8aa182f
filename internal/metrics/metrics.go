// Package metrics exposes a small set of prometheus counters/gauges for the
// archival run, optionally served on a debug HTTP listener — the same
// pattern the teacher repo uses for its own side-channel HTTP surfaces
// (a small mux spun up in main for a secondary concern), here repurposed
// from device discovery to operational metrics.
package metrics

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics bundles the counters C3/C8/C9 report into.
type Metrics struct {
	Registry *prometheus.Registry

	FilesDownloaded prometheus.Counter
	BytesDownloaded prometheus.Counter
	DownloadRetries prometheus.Counter
	PostsSkipped    prometheus.Counter
	PostsInProgress prometheus.Gauge
}

// New builds a Metrics with its own registry (never the global default, so
// a second instance in the same test process doesn't collide).
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		Registry: reg,
		FilesDownloaded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "boosty_downloader_files_downloaded_total",
			Help: "Number of artifact files successfully downloaded.",
		}),
		BytesDownloaded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "boosty_downloader_bytes_downloaded_total",
			Help: "Total bytes written to disk across all downloads.",
		}),
		DownloadRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "boosty_downloader_download_retries_total",
			Help: "Number of per-post retry attempts taken by the all-posts use case.",
		}),
		PostsSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "boosty_downloader_posts_skipped_total",
			Help: "Posts skipped: cached, no matching content, inaccessible, or exhausted retries.",
		}),
		PostsInProgress: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "boosty_downloader_posts_in_progress",
			Help: "Number of posts currently being processed by the single-post use case.",
		}),
	}
	reg.MustRegister(m.FilesDownloaded, m.BytesDownloaded, m.DownloadRetries, m.PostsSkipped, m.PostsInProgress)
	return m
}

// Serve starts a debug HTTP listener exposing /metrics until ctx is done.
// Intended for an optional --metrics-addr flag; callers that don't pass one
// never call Serve.
func (m *Metrics) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case <-ctx.Done():
		return srv.Close()
	case err := <-errCh:
		return err
	}
}
