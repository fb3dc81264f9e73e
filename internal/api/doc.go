// Package api hosts the HTTP server that scrapes and renders poll weeks on
// demand. Routes:
//   - GET /healthz for liveness probes.
//   - GET /metrics for Prometheus scraping.
//   - GET /v1/polls/{poll}/{year}/{week}?format=json|flat|table|transposed
//     to scrape one week and return it in the chosen rendering.
package api
