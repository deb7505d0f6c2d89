package crawler

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind classifies every failure the pipeline can report.
type ErrorKind int

// Error kinds. The set is closed; library errors are mapped onto one of these
// where they cross into the pipeline.
const (
	KindDiscovery ErrorKind = iota + 1
	KindFetch
	KindExtraction
	KindIO
	KindThreadFailure
)

func (k ErrorKind) String() string {
	switch k {
	case KindDiscovery:
		return "discovery"
	case KindFetch:
		return "fetch"
	case KindExtraction:
		return "extraction"
	case KindIO:
		return "io"
	case KindThreadFailure:
		return "thread failure"
	default:
		return "unknown"
	}
}

// Sentinels for errors.Is checks. They match any *Error of the same kind.
var (
	ErrDiscovery     = &Error{Kind: KindDiscovery}
	ErrFetch         = &Error{Kind: KindFetch}
	ErrExtraction    = &Error{Kind: KindExtraction}
	ErrIO            = &Error{Kind: KindIO}
	ErrThreadFailure = &Error{Kind: KindThreadFailure}
)

// Error is the single error type surfaced by the pipeline.
type Error struct {
	Kind ErrorKind
	// Target is the URL, bucket, path or worker the error refers to.
	Target string
	// Status is the first non-2xx HTTP status seen. Only set for KindFetch.
	Status int
	Msg    string
	Err    error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.String())
	b.WriteString(" error")
	if e.Target != "" {
		b.WriteString(" (")
		b.WriteString(e.Target)
		b.WriteString(")")
	}
	if e.Kind == KindFetch && e.Status != 0 {
		fmt.Fprintf(&b, ": request failed with status: %d", e.Status)
	}
	if e.Msg != "" {
		b.WriteString(": ")
		b.WriteString(e.Msg)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap exposes the underlying library error, if any.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches kind sentinels.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Target == "" && t.Msg == "" && t.Err == nil && t.Status == 0 && t.Kind == e.Kind
}

// KindOf returns the kind of the first *Error in err's chain, or 0.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

// DiscoveryError reports that a bucket's pagination could not be read. An
// invalid bucket leaves the target empty.
func DiscoveryError(bucket Bucket, msg string, err error) *Error {
	e := &Error{Kind: KindDiscovery, Msg: msg, Err: err}
	if bucket.Valid() {
		e.Target = "bucket " + bucket.String()
	}
	return e
}

// FetchError reports that a URL could not be retrieved after all attempts.
func FetchError(url string, status int, err error) *Error {
	return &Error{Kind: KindFetch, Target: url, Status: status, Err: err}
}

// ExtractionError reports that a page lacks the expected HTML structure.
func ExtractionError(url string, msg string) *Error {
	return &Error{Kind: KindExtraction, Target: url, Msg: msg}
}

// IOError reports a cache filesystem failure.
func IOError(path string, err error) *Error {
	return &Error{Kind: KindIO, Target: path, Err: err}
}

// ThreadFailure reports a worker that terminated abnormally.
func ThreadFailure(worker string, cause any) *Error {
	return &Error{Kind: KindThreadFailure, Target: worker, Msg: fmt.Sprintf("panic: %v", cause)}
}
