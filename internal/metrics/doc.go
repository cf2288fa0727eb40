// Package metrics provides build core observability hooks.
//
// Components receive a Recorder through dependency injection and default to
// NoopRecorder, so instrumentation never needs nil checks:
//
//	trig := trigger.New(store, queue)
//	trig.SetRecorder(metrics.NewPrometheusRecorder(reg))
//
// PrometheusRecorder registers its collectors on the supplied registry and
// HTTPHandler serves that registry for scraping.
package metrics
