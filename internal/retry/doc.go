// Package retry wraps remote calls with classification of transient failures
// and an exponential delay schedule of 1s, 2s, 4s, 8s between attempts.
//
// Only failures that IsRetryable accepts are retried. Anything else, and the
// last failure once retries are exhausted, is returned exactly as the
// operation produced it so callers can still inspect the original error.
package retry
