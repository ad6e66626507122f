// Package integration holds end-to-end tests running the services against
// real child processes and a local HTTP server.
package integration
