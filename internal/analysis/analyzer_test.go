package analysis

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/lehigh-university-libraries/imagereview/internal/cache"
	"github.com/lehigh-university-libraries/imagereview/internal/providers"
)

type fakeFetcher struct {
	err   error
	calls atomic.Int64
}

func (f *fakeFetcher) Fetch(_ context.Context, url string) ([]byte, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	return []byte("not really an image: " + url), nil
}

type fakeProvider struct {
	mu       sync.Mutex
	calls    int
	response string
	err      error
	release  chan struct{}
}

func (p *fakeProvider) DescribeImage(ctx context.Context, config providers.Config) (string, error) {
	if p.release != nil {
		select {
		case <-p.release:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if p.err != nil {
		return "", p.err
	}
	if config.Prompt == "" || len(config.Image) == 0 {
		return "", errors.New("missing prompt or image")
	}
	return p.response, nil
}

func (p *fakeProvider) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

func newStore(t *testing.T) *cache.FileStore {
	t.Helper()
	return cache.NewFileStore(filepath.Join(t.TempDir(), "analysis_cache.json"))
}

func TestAnalyzeIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	provider := &fakeProvider{response: `{"type":"plate"}`}
	a := New(store, &fakeFetcher{}, provider, Options{Model: "test"})

	first := a.Analyze(ctx, "https://img/1.jpg")
	second := a.Analyze(ctx, "https://img/1.jpg")

	if first != second {
		t.Errorf("second result %q differs from first %q", second, first)
	}
	if provider.Calls() != 1 {
		t.Errorf("expected 1 external call, got %d", provider.Calls())
	}

	cached, ok, err := store.Get(ctx, "https://img/1.jpg")
	if err != nil || !ok || cached != first {
		t.Errorf("cache entry = %q, %v, %v", cached, ok, err)
	}

	stats := a.Stats()
	if stats.CacheHits != 1 || stats.ExternalCalls != 1 || stats.Failures != 0 {
		t.Errorf("unexpected stats %+v", stats)
	}
}

func TestAnalyzeCacheHitSkipsFetch(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	if err := store.Put(ctx, "https://img/cached.jpg", "from cache"); err != nil {
		t.Fatal(err)
	}
	fetcher := &fakeFetcher{}
	provider := &fakeProvider{response: "fresh"}
	a := New(store, fetcher, provider, Options{})

	if got := a.Analyze(ctx, "https://img/cached.jpg"); got != "from cache" {
		t.Errorf("Analyze = %q, want cached value", got)
	}
	if fetcher.calls.Load() != 0 || provider.Calls() != 0 {
		t.Error("cache hit must not fetch or call the provider")
	}
}

func TestAnalyzeFailures(t *testing.T) {
	tests := []struct {
		name          string
		fetchErr      error
		providerErr   error
		cacheFailures bool
		wantCached    bool
	}{
		{name: "fetch failure not cached", fetchErr: errors.New("image URL returned status 404")},
		{name: "provider failure not cached", providerErr: errors.New("received non-200 status code: 500")},
		{name: "provider error with JSON body", providerErr: errors.New(`received non-200 status code: 401 - {"error":{"message":"bad key"}}`)},
		{name: "fetch failure cached when enabled", fetchErr: errors.New("connection refused"), cacheFailures: true, wantCached: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			store := newStore(t)
			provider := &fakeProvider{err: tt.providerErr, response: "ok"}
			a := New(store, &fakeFetcher{err: tt.fetchErr}, provider, Options{CacheFailures: tt.cacheFailures})

			got := a.Analyze(ctx, "https://img/bad.jpg")
			if !IsFailure(got) {
				t.Fatalf("expected failure placeholder, got %q", got)
			}
			if _, ok := Parse(got); ok {
				t.Error("placeholder must not parse as structured analysis")
			}

			_, cached, err := store.Get(ctx, "https://img/bad.jpg")
			if err != nil {
				t.Fatal(err)
			}
			if cached != tt.wantCached {
				t.Errorf("cached = %v, want %v", cached, tt.wantCached)
			}
			if a.Stats().Failures != 1 {
				t.Errorf("expected one failure, got %+v", a.Stats())
			}
		})
	}
}

func TestAnalyzeEmptyResponseIsFailure(t *testing.T) {
	a := New(newStore(t), &fakeFetcher{}, &fakeProvider{response: "  "}, Options{})
	if got := a.Analyze(context.Background(), "https://img/empty.jpg"); !IsFailure(got) {
		t.Errorf("expected failure placeholder for empty response, got %q", got)
	}
}

func TestAnalyzeSharesConcurrentCalls(t *testing.T) {
	provider := &fakeProvider{response: `{"type":"other"}`, release: make(chan struct{})}
	a := New(newStore(t), &fakeFetcher{}, provider, Options{})

	var wg sync.WaitGroup
	results := make([]string, 5)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = a.Analyze(context.Background(), "https://img/same.jpg")
		}()
	}
	close(provider.release)
	wg.Wait()

	for _, r := range results {
		if r != `{"type":"other"}` {
			t.Errorf("unexpected result %q", r)
		}
	}
	if provider.Calls() != 1 {
		t.Errorf("expected 1 external call for concurrent requests, got %d", provider.Calls())
	}
}

func TestAnalyzeCancelledCallerDoesNotFailOthers(t *testing.T) {
	store := newStore(t)
	fetcher := &fakeFetcher{}
	provider := &fakeProvider{response: `{"type":"plate"}`, release: make(chan struct{})}
	a := New(store, fetcher, provider, Options{Timeout: 5 * time.Second})

	ctx, cancel := context.WithCancel(context.Background())
	first := make(chan string, 1)
	go func() { first <- a.Analyze(ctx, "https://img/shared.jpg") }()

	deadline := time.Now().Add(2 * time.Second)
	for fetcher.calls.Load() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("shared call never started")
		}
		time.Sleep(time.Millisecond)
	}

	second := make(chan string, 1)
	go func() { second <- a.Analyze(context.Background(), "https://img/shared.jpg") }()
	time.Sleep(20 * time.Millisecond)

	cancel()
	if got := <-first; !IsFailure(got) {
		t.Errorf("cancelled caller got %q, want a failure placeholder", got)
	}

	close(provider.release)
	if got := <-second; got != `{"type":"plate"}` {
		t.Errorf("second caller got %q, want the model response", got)
	}
	if provider.Calls() != 1 {
		t.Errorf("expected 1 external call, got %d", provider.Calls())
	}
	if text, ok, _ := store.Get(context.Background(), "https://img/shared.jpg"); !ok || text != `{"type":"plate"}` {
		t.Errorf("cache = %q, %v; want the model response", text, ok)
	}
}
