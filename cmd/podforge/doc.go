// Package main hosts the podforge CLI entrypoint and command graph.
//
// The Cobra command tree runs the daemon in the foreground and translates
// every other invocation into HTTP calls against it: submitting documents,
// watching progress over the websocket, listing tasks and finished
// podcasts, and browsing voices and music. Configuration resolution and the
// daemon address live in the command context so subcommands only render.
package main
