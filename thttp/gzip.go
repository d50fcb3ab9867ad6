package thttp

import (
	"compress/gzip"
	"net/http"

	"github.com/kevinpollet/nego"
	"github.com/ridge/must/v2"
)

// ShouldGzip returns whether the HTTP request asks for gzip compression
func ShouldGzip(r *http.Request) bool {
	// nego.NegotiateContentEncoding(r, "gzip") returns "gzip" even when
	// there is no Accept-Encoding header at all. Guard against it.
	return r.Header.Get("Accept-Encoding") != "" && nego.NegotiateContentEncoding(r, "gzip") == "gzip"
}

// Gzipped is a middleware that compresses responses when the client asks
// for it
func Gzipped(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !ShouldGzip(r) {
			next.ServeHTTP(w, r)
			return
		}
		w.Header().Set("Content-Encoding", "gzip")
		w.Header().Add("Vary", "Accept-Encoding")
		compressor := gzip.NewWriter(w)
		defer func() {
			must.OK(compressor.Close())
		}()
		next.ServeHTTP(gzippedResponseWriter{ResponseWriter: w, compressor: compressor}, r)
	})
}

type gzippedResponseWriter struct {
	http.ResponseWriter
	compressor *gzip.Writer
}

func (gw gzippedResponseWriter) Write(p []byte) (int, error) {
	return gw.compressor.Write(p)
}
