package collyfetcher

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gocolly/colly/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"

	"github.com/JakeFAU/etym-crawler/internal/crawler"
)

// statusSequenceServer answers with the given statuses in order, then 200.
func statusSequenceServer(t *testing.T, statuses ...int) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		n := int(hits.Add(1))
		if n <= len(statuses) {
			w.WriteHeader(statuses[n-1])
			_, _ = w.Write([]byte("<html><body>error</body></html>"))
			return
		}
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<html><head><title>ok</title></head><body><h1 class="word__name--x">apple</h1></body></html>`))
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func TestFetchDocumentSuccess(t *testing.T) {
	t.Parallel()

	srv, hits := statusSequenceServer(t)
	f := New(Config{UserAgent: "test-agent", Timeout: time.Second}, zap.NewNop())

	doc, err := f.FetchDocument(context.Background(), srv.URL+"/word/apple")
	require.NoError(t, err)
	require.Equal(t, "ok", doc.Find("title").Text())
	require.NotNil(t, doc.Url)
	require.Equal(t, "/word/apple", doc.Url.Path)
	require.EqualValues(t, 1, hits.Load())
}

func TestFetchDocumentRetriesUntilSuccess(t *testing.T) {
	t.Parallel()

	srv, hits := statusSequenceServer(t, http.StatusInternalServerError, http.StatusBadGateway)
	f := New(Config{MaxAttempts: 5, Timeout: time.Second}, zap.NewNop())

	doc, err := f.FetchDocument(context.Background(), srv.URL)
	require.NoError(t, err)
	require.Equal(t, "apple", doc.Find("h1").Text())
	require.EqualValues(t, 3, hits.Load())
}

func TestFetchDocumentReportsFirstStatus(t *testing.T) {
	t.Parallel()

	srv, hits := statusSequenceServer(t,
		http.StatusServiceUnavailable,
		http.StatusInternalServerError,
		http.StatusNotFound,
		http.StatusBadGateway,
		http.StatusGatewayTimeout,
		http.StatusTooManyRequests,
	)
	f := New(Config{MaxAttempts: 5, Timeout: time.Second}, zap.NewNop())

	_, err := f.FetchDocument(context.Background(), srv.URL)
	require.ErrorIs(t, err, crawler.ErrFetch)

	var ferr *crawler.Error
	require.ErrorAs(t, err, &ferr)
	require.Equal(t, http.StatusServiceUnavailable, ferr.Status)
	require.EqualValues(t, 5, hits.Load(), "must never exceed the attempt bound")
}

type failingTransport struct {
	calls atomic.Int32
	// failFirst transport failures are returned before delegating to next.
	failFirst int32
	next      http.RoundTripper
}

func (t *failingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	n := t.calls.Add(1)
	if t.next == nil || n <= t.failFirst {
		return nil, errors.New("connection reset by peer")
	}
	return t.next.RoundTrip(req)
}

func TestFetchDocumentRetriesTransportFailures(t *testing.T) {
	t.Parallel()

	rt := &failingTransport{}
	f := New(Config{MaxAttempts: 4, Timeout: time.Second, Transport: rt}, zap.NewNop())

	_, err := f.FetchDocument(context.Background(), "http://unreachable.example.test/search?q=a")
	require.ErrorIs(t, err, crawler.ErrFetch)

	var ferr *crawler.Error
	require.ErrorAs(t, err, &ferr)
	require.Zero(t, ferr.Status)
	require.Contains(t, err.Error(), "connection reset by peer")
	require.EqualValues(t, 4, rt.calls.Load())
}

func TestFetchDocumentTransportFailureThenStatus(t *testing.T) {
	t.Parallel()

	srv, _ := statusSequenceServer(t, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusServiceUnavailable)
	rt := &failingTransport{failFirst: 1, next: http.DefaultTransport}
	f := New(Config{MaxAttempts: 4, Timeout: time.Second, Transport: rt}, zap.NewNop())

	_, err := f.FetchDocument(context.Background(), srv.URL)
	var ferr *crawler.Error
	require.ErrorAs(t, err, &ferr)
	require.Equal(t, http.StatusBadGateway, ferr.Status)
	require.EqualValues(t, 4, rt.calls.Load())
}

func TestFetchDocumentHonorsCanceledContext(t *testing.T) {
	t.Parallel()

	srv, _ := statusSequenceServer(t)
	f := New(Config{Timeout: time.Second}, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := f.FetchDocument(ctx, srv.URL)
	require.ErrorIs(t, err, crawler.ErrFetch)
	require.ErrorIs(t, err, context.Canceled)
}

func TestFetchDocumentCancelAbortsInFlightRequest(t *testing.T) {
	t.Parallel()

	aborted := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
			close(aborted)
		case <-time.After(10 * time.Second):
			w.WriteHeader(http.StatusOK)
		}
	}))
	t.Cleanup(srv.Close)
	f := New(Config{Timeout: 30 * time.Second}, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()
	_, err := f.FetchDocument(ctx, srv.URL)
	require.ErrorIs(t, err, context.Canceled)

	select {
	case <-aborted:
	case <-time.After(3 * time.Second):
		t.Fatal("request kept running after cancellation")
	}
}

func TestFetchDocumentRecordsSpan(t *testing.T) {
	t.Parallel()

	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	srv, _ := statusSequenceServer(t, http.StatusBadGateway)
	f := New(Config{MaxAttempts: 3, Timeout: time.Second, Tracer: tp.Tracer("test")}, zap.NewNop())
	_, err := f.FetchDocument(context.Background(), srv.URL)
	require.NoError(t, err)

	notFound := httptest.NewServer(http.NotFoundHandler())
	t.Cleanup(notFound.Close)
	_, err = f.FetchDocument(context.Background(), notFound.URL)
	require.Error(t, err)

	spans := rec.Ended()
	require.Len(t, spans, 2)
	ok, failed := spans[0], spans[1]

	require.Equal(t, "fetch.document", ok.Name())
	require.Equal(t, codes.Unset, ok.Status().Code)
	attrs := map[string]int64{}
	for _, kv := range ok.Attributes() {
		if kv.Key == "attempts" || kv.Key == "first_status" {
			attrs[string(kv.Key)] = kv.Value.AsInt64()
		}
	}
	require.EqualValues(t, 2, attrs["attempts"])
	require.EqualValues(t, http.StatusBadGateway, attrs["first_status"])

	require.Equal(t, codes.Error, failed.Status().Code)
	require.Contains(t, failed.Status().Description, "404")
}

func TestFetchDocumentConcurrentCallers(t *testing.T) {
	t.Parallel()

	srv, hits := statusSequenceServer(t)
	f := New(Config{Timeout: time.Second, PoolSize: 2}, zap.NewNop())

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.FetchDocument(context.Background(), srv.URL)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	require.EqualValues(t, 8, hits.Load())
}

func TestNewAppliesDefaults(t *testing.T) {
	t.Parallel()

	f := New(Config{}, nil)
	require.Equal(t, crawler.DefaultMaxAttempts, f.MaxAttempts())
	require.True(t, f.baseCollector.AllowURLRevisit)
	require.True(t, f.baseCollector.ParseHTTPErrorResponse)
}

func TestConfigureCollectorHooks(t *testing.T) {
	t.Parallel()

	var result response
	var fetchErr error

	hooks := &stubHooks{}
	configureCollectorHooks(hooks, &result, &fetchErr)
	require.NotNil(t, hooks.onResponse)
	require.NotNil(t, hooks.onError)

	hooks.onResponse(&colly.Response{
		StatusCode: http.StatusCreated,
		Body:       []byte("body"),
		Request: &colly.Request{
			URL: mustParseURL(t, "https://example.com/word/axe"),
		},
	})
	require.Equal(t, http.StatusCreated, result.StatusCode)
	require.Equal(t, "body", string(result.Body))
	require.Equal(t, "/word/axe", result.URL.Path)

	hooks.onError(nil, errors.New("boom"))
	require.EqualError(t, fetchErr, "boom")
}

func mustParseURL(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("failed to parse url %q: %v", raw, err)
	}
	return u
}

type stubHooks struct {
	onResponse colly.ResponseCallback
	onError    colly.ErrorCallback
}

func (s *stubHooks) OnResponse(cb colly.ResponseCallback) {
	s.onResponse = cb
}

func (s *stubHooks) OnError(cb colly.ErrorCallback) {
	s.onError = cb
}
