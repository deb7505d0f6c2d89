// Package collyfetcher implements crawler.Fetcher using gocolly with a bounded
// retry loop around every GET.
package collyfetcher

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/JakeFAU/etym-crawler/internal/crawler"
	"github.com/JakeFAU/etym-crawler/internal/metrics"
	"github.com/JakeFAU/etym-crawler/internal/telemetry"
)

// Config controls collector and retry behavior.
type Config struct {
	UserAgent      string
	Timeout        time.Duration
	MaxAttempts    int
	PoolSize       int
	BackoffInitial time.Duration
	BackoffMax     time.Duration
	// Transport overrides the pooled transport. Used by tests.
	Transport http.RoundTripper
	// Tracer defaults to telemetry.Tracer().
	Tracer trace.Tracer
}

// Fetcher implements crawler.Fetcher using the Colly collector. It is safe
// for concurrent use; every call clones the base collector and shares its
// pooled transport.
type Fetcher struct {
	cfg           Config
	baseCollector *colly.Collector
	backoff       *crawler.ExponentialBackoff
	tracer        trace.Tracer
	logger        *zap.Logger
}

type collectorHooks interface {
	OnResponse(colly.ResponseCallback)
	OnError(colly.ErrorCallback)
}

// response is the outcome of a single attempt that reached the server.
type response struct {
	URL        *url.URL
	StatusCode int
	Body       []byte
}

// New builds a Fetcher.
func New(cfg Config, logger *zap.Logger) *Fetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = crawler.DefaultMaxAttempts
	}
	if cfg.PoolSize <= 0 {
		cfg.PoolSize = 4
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	tracer := cfg.Tracer
	if tracer == nil {
		tracer = telemetry.Tracer()
	}

	c := colly.NewCollector(colly.Async(false))
	c.AllowURLRevisit = true
	c.ParseHTTPErrorResponse = true
	c.IgnoreRobotsTxt = true
	if cfg.UserAgent != "" {
		c.UserAgent = cfg.UserAgent
	}

	transport := cfg.Transport
	if transport == nil {
		transport = newHTTPTransport(cfg.PoolSize)
	}
	c.WithTransport(transport)
	c.SetRequestTimeout(cfg.Timeout)

	return &Fetcher{
		cfg:           cfg,
		baseCollector: c,
		backoff:       crawler.NewExponentialBackoff(cfg.BackoffInitial, cfg.BackoffMax),
		tracer:        tracer,
		logger:        logger,
	}
}

// MaxAttempts reports the retry bound in effect.
func (f *Fetcher) MaxAttempts() int {
	return f.cfg.MaxAttempts
}

// FetchDocument GETs rawURL and parses the body. Transport failures and
// non-2xx responses are retried up to MaxAttempts; only the first non-2xx
// status is remembered and reported once attempts run out. A body that
// cannot be parsed is not retried.
func (f *Fetcher) FetchDocument(ctx context.Context, rawURL string) (_ *goquery.Document, retErr error) {
	ctx, span := f.tracer.Start(ctx, "fetch.document", trace.WithAttributes(attribute.String("url", rawURL)))
	var (
		firstStatus int
		lastErr     error
		attempts    int
	)
	defer func() {
		span.SetAttributes(attribute.Int("attempts", attempts))
		if firstStatus != 0 {
			span.SetAttributes(attribute.Int("first_status", firstStatus))
		}
		telemetry.EndSpan(span, retErr)
	}()

	for attempt := 0; attempt < f.cfg.MaxAttempts; attempt++ {
		if attempt > 0 {
			if err := f.wait(ctx, attempt-1); err != nil {
				return nil, crawler.FetchError(rawURL, firstStatus, err)
			}
		}

		if err := ctx.Err(); err != nil {
			return nil, crawler.FetchError(rawURL, firstStatus, err)
		}

		attempts++
		start := time.Now()
		resp, err := f.fetchOnce(ctx, rawURL)
		if err != nil {
			metrics.ObserveFetchAttempt(rawURL, metrics.OutcomeTransportError, 0, time.Since(start))
			if !crawler.Retryable(ctx, err) {
				return nil, crawler.FetchError(rawURL, firstStatus, err)
			}
			lastErr = err
			f.logger.Debug("fetch attempt failed",
				zap.String("url", rawURL),
				zap.Int("attempt", attempt+1),
				zap.Error(err),
			)
			continue
		}

		if !isSuccess(resp.StatusCode) {
			metrics.ObserveFetchAttempt(rawURL, metrics.OutcomeStatus, len(resp.Body), time.Since(start))
			if firstStatus == 0 {
				firstStatus = resp.StatusCode
			}
			f.logger.Debug("fetch attempt returned non-success status",
				zap.String("url", rawURL),
				zap.Int("attempt", attempt+1),
				zap.Int("status", resp.StatusCode),
			)
			continue
		}

		doc, err := parseDocument(resp)
		if err != nil {
			metrics.ObserveFetchAttempt(rawURL, metrics.OutcomeParseError, len(resp.Body), time.Since(start))
			return nil, crawler.FetchError(rawURL, 0, err)
		}
		metrics.ObserveFetchAttempt(rawURL, metrics.OutcomeSuccess, len(resp.Body), time.Since(start))
		return doc, nil
	}
	return nil, crawler.FetchError(rawURL, firstStatus, lastErr)
}

func (f *Fetcher) wait(ctx context.Context, attempt int) error {
	delay := f.backoff.Delay(attempt)
	if delay <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return fmt.Errorf("backoff canceled: %w", ctx.Err())
	case <-timer.C:
		return nil
	}
}

func (f *Fetcher) fetchOnce(ctx context.Context, rawURL string) (response, error) {
	var (
		result   response
		fetchErr error
	)
	collector := f.baseCollector.Clone()
	collector.Context = ctx
	configureCollectorHooks(collector, &result, &fetchErr)
	if err := runCollector(ctx, collector, rawURL, &fetchErr); err != nil {
		return response{}, err
	}
	return result, nil
}

func configureCollectorHooks(hooks collectorHooks, result *response, fetchErr *error) {
	hooks.OnResponse(func(r *colly.Response) {
		*result = response{
			URL:        r.Request.URL,
			StatusCode: r.StatusCode,
			Body:       append([]byte(nil), r.Body...),
		}
	})

	hooks.OnError(func(_ *colly.Response, err error) {
		*fetchErr = err
	})
}

func runCollector(ctx context.Context, collector *colly.Collector, rawURL string, fetchErr *error) error {
	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(rawURL)
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("colly fetch canceled: %w", ctx.Err())
	case err := <-done:
		if err != nil {
			return fmt.Errorf("colly visit failed: %w", err)
		}
		if *fetchErr != nil {
			return fmt.Errorf("colly response failed: %w", *fetchErr)
		}
		return nil
	}
}

func parseDocument(resp response) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(resp.Body))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	doc.Url = resp.URL
	return doc, nil
}

func isSuccess(code int) bool {
	return code >= 200 && code < 300
}

func newHTTPTransport(poolSize int) *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   poolSize,
		IdleConnTimeout:       90 * time.Second,
		ForceAttemptHTTP2:     true,
	}
}
