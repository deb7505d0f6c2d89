package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestSanitizeSite(t *testing.T) {
	testCases := []struct {
		name     string
		input    string
		expected string
	}{
		{"standard http", "http://example.com/path", "example.com"},
		{"standard https", "https://Example.com/search?q=a", "example.com"},
		{"no scheme", "example.com/path", "example.com"},
		{"host with port", "example.com:8080", "example.com"},
		{"invalid url", "http://%", "unknown"},
		{"empty string", "", "unknown"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := SanitizeSite(tc.input); got != tc.expected {
				t.Errorf("SanitizeSite(%q) = %q; want %q", tc.input, got, tc.expected)
			}
		})
	}
}

func TestInitIsIdempotent(t *testing.T) {
	Init()
	Init()

	if fetchAttemptsTotal == nil || recordsExtractedTotal == nil || activeWorkers == nil {
		t.Fatal("Init() did not initialize metrics collectors")
	}
}

func TestObserveFetchAttempt(t *testing.T) {
	Init()
	counter := fetchAttemptsTotal.WithLabelValues("fetch.example.test", OutcomeStatus)
	bytes := fetchBytesTotal.WithLabelValues("fetch.example.test")
	before := testutil.ToFloat64(counter)
	beforeBytes := testutil.ToFloat64(bytes)

	ObserveFetchAttempt("https://fetch.example.test/search?q=a", OutcomeStatus, 512, 30*time.Millisecond)

	if got := testutil.ToFloat64(counter) - before; got != 1 {
		t.Errorf("expected one attempt recorded, got %f", got)
	}
	if got := testutil.ToFloat64(bytes) - beforeBytes; got != 512 {
		t.Errorf("expected 512 bytes recorded, got %f", got)
	}
}

func TestActiveWorkersGauge(t *testing.T) {
	Init()
	before := testutil.ToFloat64(activeWorkers)
	IncActiveWorkers()
	IncActiveWorkers()
	DecActiveWorkers()
	if got := testutil.ToFloat64(activeWorkers) - before; got != 1 {
		t.Errorf("expected gauge delta 1, got %f", got)
	}
}

func TestObservePageAndBatch(t *testing.T) {
	Init()
	pages := pagesTotal.WithLabelValues(StatusSkipped)
	batches := batchesFlushedTotal.WithLabelValues(StatusSucceeded)
	beforePages := testutil.ToFloat64(pages)
	beforeBatches := testutil.ToFloat64(batches)
	beforeRecords := testutil.ToFloat64(recordsExtractedTotal)

	ObservePage(StatusSkipped)
	ObserveBatch(StatusSucceeded)
	ObserveBatch(StatusSucceeded)
	ObserveRecord()

	if got := testutil.ToFloat64(pages) - beforePages; got != 1 {
		t.Errorf("expected one skipped page, got %f", got)
	}
	if got := testutil.ToFloat64(batches) - beforeBatches; got != 2 {
		t.Errorf("expected two flushed batches, got %f", got)
	}
	if got := testutil.ToFloat64(recordsExtractedTotal) - beforeRecords; got != 1 {
		t.Errorf("expected one record, got %f", got)
	}
}

// Fuzz test for SanitizeSite.
func FuzzSanitizeSite(f *testing.F) {
	testcases := []string{"http://example.com", "https://www.etymonline.com", "ftp://example.com"}
	for _, tc := range testcases {
		f.Add(tc)
	}
	f.Fuzz(func(t *testing.T, orig string) {
		sanitized := SanitizeSite(orig)
		if sanitized == "" {
			t.Errorf("SanitizeSite(%q) returned an empty string", orig)
		}
	})
}
