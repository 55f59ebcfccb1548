package analysis

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/lehigh-university-libraries/imagereview/internal/cache"
	"github.com/lehigh-university-libraries/imagereview/internal/images"
	"github.com/lehigh-university-libraries/imagereview/internal/providers"
	"golang.org/x/sync/singleflight"
)

// FailurePrefix starts every placeholder returned for an image that could not
// be analyzed
const FailurePrefix = "Error analyzing image: "

// IsFailure reports whether text is a failure placeholder
func IsFailure(text string) bool {
	return strings.HasPrefix(text, FailurePrefix)
}

// ImageFetcher downloads image bytes
type ImageFetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// Options tunes the analyzer
type Options struct {
	Model             string
	Temperature       float64
	MaxImageDimension int
	// Timeout bounds fetch plus model call for one image. Zero means no limit
	// beyond the transports' own timeouts.
	Timeout time.Duration
	// CacheFailures stores failure placeholders like successful responses,
	// making them stick until removed from the cache.
	CacheFailures bool
}

// Stats counts what the analyzer did since it was created
type Stats struct {
	CacheHits     int64
	ExternalCalls int64
	Failures      int64
}

// Analyzer turns image URLs into model descriptions, consulting the cache
// before every external call
type Analyzer struct {
	cache    cache.Store
	fetcher  ImageFetcher
	provider providers.Provider
	opts     Options
	prompt   string
	group    singleflight.Group

	hits     atomic.Int64
	calls    atomic.Int64
	failures atomic.Int64
}

// New creates an Analyzer
func New(store cache.Store, fetcher ImageFetcher, provider providers.Provider, opts Options) *Analyzer {
	return &Analyzer{
		cache:    store,
		fetcher:  fetcher,
		provider: provider,
		opts:     opts,
		prompt:   BuildPrompt(),
	}
}

// Analyze returns the raw model response for imageURL. It never fails: errors
// come back as a FailurePrefix placeholder so one bad row cannot stop a load.
// Concurrent calls for the same URL share a single external call. The shared
// call is not cancelled with any one caller; Options.Timeout bounds it, and a
// caller whose ctx ends first gets a placeholder without waiting.
func (a *Analyzer) Analyze(ctx context.Context, imageURL string) string {
	ch := a.group.DoChan(imageURL, func() (interface{}, error) {
		return a.analyze(context.WithoutCancel(ctx), imageURL), nil
	})
	select {
	case res := <-ch:
		return res.Val.(string)
	case <-ctx.Done():
		return FailurePrefix + ctx.Err().Error()
	}
}

// Stats returns a snapshot of the counters
func (a *Analyzer) Stats() Stats {
	return Stats{
		CacheHits:     a.hits.Load(),
		ExternalCalls: a.calls.Load(),
		Failures:      a.failures.Load(),
	}
}

func (a *Analyzer) analyze(ctx context.Context, imageURL string) string {
	text, ok, err := a.cache.Get(ctx, imageURL)
	if err != nil {
		slog.Warn("Analysis cache lookup failed, calling provider", "url", imageURL, "err", err)
	} else if ok {
		a.hits.Add(1)
		slog.Debug("Analysis cache hit", "url", imageURL)
		return text
	}

	text, err = a.describe(ctx, imageURL)
	if err != nil {
		a.failures.Add(1)
		slog.Error("Failed to analyze image", "url", imageURL, "err", err)
		placeholder := FailurePrefix + err.Error()
		if a.opts.CacheFailures {
			a.store(ctx, imageURL, placeholder)
		}
		return placeholder
	}

	a.store(ctx, imageURL, text)
	slog.Info("Image analyzed", "url", imageURL, "length", len(text))
	return text
}

func (a *Analyzer) describe(ctx context.Context, imageURL string) (string, error) {
	if a.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.opts.Timeout)
		defer cancel()
	}

	data, err := a.fetcher.Fetch(ctx, imageURL)
	if err != nil {
		return "", err
	}

	prepared, err := images.Prepare(data, a.opts.MaxImageDimension)
	if err != nil {
		return "", err
	}
	if prepared.Resized {
		slog.Debug("Image downscaled", "url", imageURL, "width", prepared.Width, "height", prepared.Height)
	}

	a.calls.Add(1)
	text, err := a.provider.DescribeImage(ctx, providers.Config{
		Model:       a.opts.Model,
		Temperature: a.opts.Temperature,
		Prompt:      a.prompt,
		Image:       prepared.Data,
		MIMEType:    prepared.MIMEType,
	})
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("empty response from provider")
	}
	return text, nil
}

// store persists text even when ctx was cancelled after the provider answered
func (a *Analyzer) store(ctx context.Context, imageURL, text string) {
	if err := a.cache.Put(context.WithoutCancel(ctx), imageURL, text); err != nil {
		slog.Error("Failed to persist analysis", "url", imageURL, "err", err)
	}
}
