// Package api defines the request and response bodies of the liquidtrack
// daemon, shared by the daemon, the client and the CLI.
package api
