package export

// Metrics receives pipeline events for instrumentation. The concrete
// Prometheus implementation lives in pkg/telemetry/metrics; the
// pipeline itself only depends on this interface.
type Metrics interface {
	// RetryScheduled is called when a transient failure triggers a
	// backoff wait.
	RetryScheduled()

	// PageFetched is called after each successfully fetched page.
	PageFetched(kind string)

	// ThrottleApplied is called when a proactive throttle delay is
	// inserted between pages.
	ThrottleApplied(kind string)

	// RecordsExported is called with the number of records written
	// for one entity.
	RecordsExported(kind string, count int)

	// EntityFailed is called when one entity's export fails after
	// retries.
	EntityFailed(kind string)
}
