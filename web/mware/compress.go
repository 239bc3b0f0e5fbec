package mware

import (
	"github.com/klauspost/compress/gzip"
	"io"
	"net/http"
	"strings"
	"sync"
)

var pool = sync.Pool{
	New: func() interface{} {
		return gzip.NewWriter(io.Discard)
	},
}

type gzipWriter struct {
	http.ResponseWriter

	writer      *gzip.Writer
	headersDone bool
	written     bool
}

// GZip compresses the response body when the client accepts gzip.
func GZip(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.Header.Get("Accept-Encoding"), "gzip") {
			w.Header().Set("Content-Encoding", "gzip")
			w.Header().Add("Vary", "Accept-Encoding")
			writer := pool.Get().(*gzip.Writer)
			writer.Reset(w)
			gz := gzipWriter{writer: writer, ResponseWriter: w}
			defer gz.close()
			next(&gz, r)
		} else {
			next(w, r)
		}
	}
}

func (w *gzipWriter) WriteHeader(code int) {
	w.Header().Del("Content-Length")
	if code == http.StatusNotModified || code == http.StatusNoContent || (code >= 300 && code < 400) {
		w.Header().Del("Content-Encoding")
	}
	w.ResponseWriter.WriteHeader(code)
	w.headersDone = true
}

func (w *gzipWriter) Write(b []byte) (int, error) {
	if !w.headersDone {
		w.WriteHeader(http.StatusOK)
	}
	w.written = true
	return w.writer.Write(b)
}

func (w *gzipWriter) Flush() {
	_ = w.writer.Flush()
	if flusher, ok := w.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func (w *gzipWriter) close() {
	if w.written {
		_ = w.writer.Close()
	}
	w.writer.Reset(io.Discard)
	pool.Put(w.writer)
}
