// Package metrics exports the outcome of a sequencer run as Prometheus
// metrics written to a text file, ready for the node exporter textfile
// collector.
package metrics
