// Package daemon coordinates the long-running podforge process.
//
// It holds a flock-based single-instance lock, recovers and starts the
// workflow worker, schedules the retention sweep, and serves the HTTP API
// (chi router, optional bearer token, websocket progress push). Startup
// problems with the worker are logged and the API keeps accepting
// submissions, which queue until a worker runs.
//
// Keep orchestration here: pipeline stages live in their own packages and the
// composition root in daemonrun builds every collaborator.
package daemon
