// Package metrics aggregates what happened during a dispatch: per-unit
// latency in an HDR histogram, success and failure counts, failures grouped
// by a readable error name, and status buckets for outbound requests.
//
//	collector := metrics.NewCollector()
//	collector.Start()
//	collector.RecordTask(latency, err)
//	collector.RecordHTTPStatus(200)
//	stats := collector.Stats(collector.Elapsed())
//
// A Collector is safe for concurrent use. Its mutex is never held while the
// shared counter's lock is held.
package metrics
