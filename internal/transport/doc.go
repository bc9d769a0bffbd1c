// Package transport issues benchmark requests against a target. Each
// transport is a runner.Issuer: Issue starts the request in its own goroutine
// and reports exactly one outcome through the request's completion.
//
// Three transports are available. The http transport sends the case payload
// in the body of one request and waits for the full response. The websocket
// transport sends the payload as one binary frame over a pooled connection
// and waits for the echo. The sim transport models a target in process, with
// configurable latency, jitter and error rate.
//
// Every request runs under a context whose deadline is the case timeout. An
// optional rate cap, request spans and W3C trace propagation are shared by
// all transports.
package transport
