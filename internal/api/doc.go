// Package api hosts the optional observability server of a harvest run:
//   - GET /healthz and /readyz for liveness and readiness checks.
//   - GET /metrics for Prometheus scraping.
//   - GET /progress for a JSON snapshot of the running harvest.
package api
