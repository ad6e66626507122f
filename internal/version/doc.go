// Package version exposes build metadata for the updater binaries.
//
// Variables Version, Commit, and BuildTime are injected at build time via
// Go ldflags and default to sensible values for local builds. The sequencer
// stamps Short into every run report so a report can be traced to a build.
package version
