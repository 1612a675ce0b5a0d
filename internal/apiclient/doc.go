// Package apiclient is the HTTP and websocket client the podforge CLI uses to
// talk to a running daemon.
package apiclient
