// Package downloader fetches attachments into their target folders.
package downloader

import (
	"context"
	"io"
	"net/url"
	"strings"
	"time"

	errs "dscraper/pkg/errors"
	"dscraper/pkg/logger"
	"dscraper/pkg/metrics"
	"dscraper/pkg/ratelimit"
	"dscraper/pkg/storage"
)

// Status is the outcome of one download
type Status int

const (
	StatusDownloaded Status = iota
	StatusSkipped
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusDownloaded:
		return "downloaded"
	case StatusSkipped:
		return "skipped"
	default:
		return "failed"
	}
}

// Fetcher opens attachment bodies from the CDN
type Fetcher interface {
	OpenAttachment(ctx context.Context, rawURL string) (io.ReadCloser, error)
}

// Store is the folder a download lands in
type Store interface {
	Claim(filename string) bool
	Release(filename string)
	Save(r io.Reader, filename string) (int64, error)
	OutputDir() string
}

// Result describes what happened to one attachment
type Result struct {
	Job      Job
	Filename string
	Status   Status
	Size     int64
	Error    error
	Duration time.Duration
}

// FilenameFromURL derives the on-disk name from the last two path segments,
// the attachment ID and the original name, so uploads sharing a name do not
// collide. The query string is ignored.
func FilenameFromURL(rawURL string) string {
	path := rawURL
	if u, err := url.Parse(rawURL); err == nil {
		path = u.Path
	} else if i := strings.IndexAny(rawURL, "?#"); i >= 0 {
		path = rawURL[:i]
	}

	var segments []string
	for _, s := range strings.Split(path, "/") {
		if s != "" {
			segments = append(segments, s)
		}
	}
	if len(segments) > 2 {
		segments = segments[len(segments)-2:]
	}
	return storage.SafeName(strings.Join(segments, "_"))
}

// Downloader fetches single attachments into a store
type Downloader struct {
	fetcher Fetcher
	limiter ratelimit.Limiter
	logger  logger.Logger
}

// New creates a downloader. A nil limiter means no pacing.
func New(fetcher Fetcher, limiter ratelimit.Limiter, log logger.Logger) *Downloader {
	if limiter == nil {
		limiter = ratelimit.Unlimited{}
	}
	if log == nil {
		log = logger.GetLogger()
	}
	return &Downloader{
		fetcher: fetcher,
		limiter: limiter,
		logger:  log.WithField("component", "downloader"),
	}
}

// Download saves rawURL into store unless its filename is already present
// or claimed, in which case no request is made. Failures never leave a file
// under the final name.
func (d *Downloader) Download(ctx context.Context, store Store, rawURL string) Result {
	start := time.Now()
	result := Result{Job: Job{URL: rawURL, Store: store}, Filename: FilenameFromURL(rawURL)}
	defer func() {
		result.Duration = time.Since(start)
		metrics.RecordDownload(result.Status.String(), result.Size)
		logger.LogDownload(d.logger, store.OutputDir(), result.Filename, result.Status.String(), result.Size, result.Error)
	}()

	if result.Filename == "" {
		result.Status = StatusFailed
		result.Error = errs.New(errs.ErrorTypeParsing, "cannot derive filename from "+rawURL)
		return result
	}
	if !store.Claim(result.Filename) {
		result.Status = StatusSkipped
		return result
	}

	size, err := d.fetch(ctx, store, rawURL, result.Filename)
	if err != nil {
		store.Release(result.Filename)
		result.Status = StatusFailed
		result.Error = err
		return result
	}

	result.Status = StatusDownloaded
	result.Size = size
	return result
}

func (d *Downloader) fetch(ctx context.Context, store Store, rawURL, filename string) (int64, error) {
	if err := d.limiter.Wait(ctx); err != nil {
		return 0, err
	}

	body, err := d.fetcher.OpenAttachment(ctx, rawURL)
	if err != nil {
		return 0, err
	}
	defer body.Close()

	return store.Save(body, filename)
}
