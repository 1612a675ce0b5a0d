// Package logs reads the daemon log file for the `podforge logs` command.
//
// Tail returns the last lines of the file or everything written after a
// byte offset, optionally waiting for new output. Filter narrows lines to a
// single task or a minimum level and understands both the console and JSON
// log formats.
package logs
