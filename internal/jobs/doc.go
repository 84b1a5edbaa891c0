// Package jobs runs background work detached from the request that caused
// it. Jobs are persisted before they are queued so that work interrupted by
// a restart is recovered on the next start, and work turned away by a full
// queue is picked up by a periodic scan of pending jobs.
package jobs
