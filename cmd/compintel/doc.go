// Package main hosts the price intelligence service entrypoint.
//
// Architecture overview:
//   - HTTP API: internal/api.Server exposes health, metrics, and scrape management endpoints. Requests are
//     validated, normalized into pricing.SearchParams, and persisted via the JobStore before being enqueued.
//   - Dispatcher & queue: scrape jobs flow through a bounded in-memory queue sized by config.Scraper.QueueDepth
//     and are fanned out to a fixed worker pool sized by config.Scraper.Concurrency. Context cancellation stops
//     workers cleanly on shutdown.
//   - Scrape pipeline: each worker invocation builds the platform search URL, consults the cached robots.txt
//     policy, rotates through the proxy pool, renders the page via chromedp (or the Colly-based static backend),
//     extracts competitor listings with goquery selectors, and condenses prices into P10/P50/P90 summaries.
//   - Persistence & fanout: rendered HTML snapshots are written to the configured BlobStore (memory/local/GCS)
//     keyed by content hash. Summaries are kept in the job store, optionally archived to Postgres, and a compact
//     Pub/Sub notification is published when a topic is configured.
//   - Configuration & plumbing: Viper populates config from env/files; zap provides structured logging;
//     Prometheus metrics are exported via the /metrics handler. The service is stateless across requests,
//     suitable for Cloud Run scale-out.
//
// Operational notes:
//   - Concurrency model: bounded queue + fixed worker pool; every scrape owns an independent render session so
//     concurrent invocations never share browser state. Shutdown is coordinated via context cancellation
//     propagated from main through dispatcher to workers.
//   - Rate limiting: per-domain navigation budgets are enforced inside the chromedp factory via a token bucket
//     keyed by host. Proxy rotation distributes egress across the configured pool.
//   - Observability: zap logs carry scrape IDs and platform labels at key transitions; Prometheus counters and
//     histograms track scrape outcomes, listing volume, robots blocks, and worker activity.
//
// Quick checklist:
//   - Configure env vars: COMPINTEL_SERVER_PORT, COMPINTEL_SCRAPER_CONCURRENCY, COMPINTEL_SCRAPER_RESPECT_ROBOTS,
//     COMPINTEL_RENDER_BACKEND, storage (COMPINTEL_STORAGE_*), pubsub, and database DSN/table names when
//     persistence beyond memory is required.
//   - Run locally: go run ./cmd/compintel -config config.yaml (or rely solely on env overrides).
package main
