// Package files exposes a client for the Pinata Files API (v3). Uploads go
// to the uploads host, everything else to the API host. The Backend interface
// lets callers swap the HTTP implementation for the in-memory store in
// package mock.
package files
