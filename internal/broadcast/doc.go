// Package broadcast serves task progress to observers. Status reads go
// straight to the store; Subscribe polls the store and forwards a snapshot
// whenever the observable tuple changes, closing after a terminal status.
// Observers never touch the worker.
package broadcast
