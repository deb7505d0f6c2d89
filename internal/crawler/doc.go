// Package crawler defines the domain types, interfaces and error taxonomy
// shared by the harvesting pipeline: page discovery, fetching, extraction,
// the worker pool and the on-disk cache.
package crawler
