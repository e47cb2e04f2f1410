// Package observe provides selector.Observer implementations that export
// instance activity as Prometheus metrics and OpenTelemetry spans.
//
// Both observers are safe for concurrent use and can be shared by any number
// of instances:
//
//	obs := observe.Multi(
//	    observe.NewPrometheus(observe.WithNamespace("app")),
//	    observe.NewTracing(observe.WithTracerName("app/selectors")),
//	)
//	in := selector.New(src, sel, selector.WithObserver(obs))
package observe
