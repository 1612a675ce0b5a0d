// Package queue holds the in-process FIFO of task identifiers waiting for the
// pipeline worker. It is memory only; the store remains the durable record
// and pending rows are re-enqueued on startup.
package queue
