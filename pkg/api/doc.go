// Package api binds the remote analytics service: an authenticated
// HTTP client, the canonical Project/Entity/Page/Record shapes, and a
// tolerant decoder that normalizes the server's envelope variants
// before anything enters the export pipeline.
//
// The client performs no retries. Failures come back as *RequestError
// (status, headers, transport cause) or *DecodeError, carrying enough
// for callers to classify retryability without re-parsing anything.
package api
