// Package trigger fires the repository_dispatch event that starts the remote
// source data update workflow.
//
// The GitHub token is read from the process environment, falling back to a
// dotenv file. A missing token is reported before any network call.
package trigger
