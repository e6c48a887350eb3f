/*
Package observability turns engine lifecycle hooks into Prometheus metrics.

The engine stays metrics-agnostic: it emits domain.Hooks events, and this
package translates them into counters and histograms suitable for scraping.
*/
package observability
