// Package sequencer runs the ordered list of external update jobs.
//
// Jobs run one at a time. The first failing job aborts the run unless it is
// marked allow_failure, in which case the failure is logged and the run moves
// on. Declared inputs are checked before a job starts and declared outputs
// after it exits. Every run is guarded by a PID marker file, recorded in a
// YAML report and optionally exported as Prometheus text metrics.
package sequencer
