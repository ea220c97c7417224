// Package timeouts defines shared timeout constants used across the server.
// Centralizing these values prevents drift between the HTTP boundary and
// command startup and makes the durations discoverable.
package timeouts

import "time"

// Request caps the time allowed for a single API request, including the
// journal transaction behind it.
const Request = 5 * time.Second

// ReadHeader limits how long the HTTP server waits for request headers.
const ReadHeader = 5 * time.Second

// Shutdown limits how long the HTTP server waits for in-flight requests
// during graceful shutdown.
const Shutdown = 10 * time.Second
