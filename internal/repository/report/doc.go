// Package report persists the outcome of sequencer runs as YAML files.
package report
