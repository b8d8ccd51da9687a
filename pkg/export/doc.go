// Package export implements the record export pipeline: a retry
// executor with exponential backoff, a cursor-paginated fetcher with
// proactive throttling, a streaming CSV writer that infers and locks a
// header set from an initial sample, and an orchestrator that drives
// one export per entity.
//
// The pipeline is deliberately sequential. Entities are exported one at
// a time and at most one page is in flight, so a run never multiplies
// pressure against the server's rate limiter.
package export
