// compression.go - gzip for JSON responses.
//
// Images are already compressed and the websocket route must keep its raw
// connection, so only the JSON routes are wrapped.
package server

import (
	"net/http"

	"github.com/klauspost/compress/gzhttp"
)

// compressJSON wraps a JSON route with gzip when the client accepts it.
// Responses smaller than gzhttp's default minimum size are sent as is.
func compressJSON(next http.Handler) http.Handler {
	return gzhttp.GzipHandler(next)
}
