// Package server implements the HTTP and WebSocket API surface of the
// workflow builder.
package server
