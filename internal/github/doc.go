// Package github sends repository_dispatch events to the GitHub REST API.
//
// The client is deliberately small: one authenticated POST per Dispatch call,
// no retries. The token is only ever written to the Authorization header.
package github
