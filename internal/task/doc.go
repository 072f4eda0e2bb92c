// Package task runs background work for the review core. Its main job is saving
// learning states without making the learner wait: each write becomes a
// StateWriteTask on a bounded TaskQueue, consumed by a WorkerPool. Failed writes
// are retried with exponential backoff and, if they still fail, parked by the
// StateWriteDispatcher until the next Sync.
package task
