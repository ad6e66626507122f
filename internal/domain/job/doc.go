// Package job holds the domain model of the update sequencer: job
// definitions with their declared inputs and outputs, per-job results and the
// run state machine (pending -> running -> completed | aborted).
package job
