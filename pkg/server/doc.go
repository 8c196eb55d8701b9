// Package server exposes the print workflow over HTTP.
//
// A POST to /api/print runs the whole workflow before responding. Requests
// that arrive while the device is in use are rejected with 409 rather than
// queued.
package server
