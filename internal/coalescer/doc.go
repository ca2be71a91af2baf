// Package coalescer groups bursts of recompute requests into bounded batches.
//
// # How It Works
//
// Enqueue appends a task and starts a drain loop if none is running. The loop
// repeatedly takes a batch off the front of the queue:
//
//   - if the queue holds more than MaxBatchSize tasks, it takes MaxBatchSize;
//   - otherwise it takes up to BatchSize.
//
// Every task of a batch starts at once. The loop then waits until they all
// finish or MaxWait elapses, whichever comes first, yields the processor, and
// moves on. A task that outlives MaxWait keeps running in the background; it
// only stops blocking the queue. The loop exits when the queue is empty.
//
// N rapid requests therefore cost O(N/BatchSize) passes, and a single hung
// task delays the rest by at most MaxWait.
//
// # Thread-Safety
//
// All methods are safe for concurrent use.
package coalescer
