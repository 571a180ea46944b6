// Package apiclient implements the shared HTTP session used by the repository-host and scanning-service
// clients: one reused connection pool, a per-call timeout, a bounded retry policy with exponential backoff,
// and the error taxonomy that callers use to degrade individual results instead of aborting a run.
package apiclient
