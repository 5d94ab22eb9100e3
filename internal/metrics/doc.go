// Package metrics records build metrics.
//
// Components receive a Recorder through dependency injection. NoopRecorder is
// the default and does nothing; PrometheusRecorder registers its collectors on
// a caller-supplied registry, which WriteTextfile dumps in the node exporter
// textfile format after each build.
package metrics
