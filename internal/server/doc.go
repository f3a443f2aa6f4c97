// Package server implements the HTTP surface of the image drop service:
// batch uploads, the gallery listing, content serving, the guest presence
// count (pull and websocket push), health and Prometheus metrics. It wires
// the gallery, store and presence packages together and provides the
// lifecycle helpers used by tests and the production binary.
package server
