package thttp

import (
	"compress/gzip"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ridge/must/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShouldGzip(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "http://localhost", nil)
	require.False(t, ShouldGzip(r))

	r.Header.Set("Accept-Encoding", "gzip")
	require.True(t, ShouldGzip(r))

	r.Header.Set("Accept-Encoding", "identity")
	require.False(t, ShouldGzip(r))
}

func TestGzipped(t *testing.T) {
	handler := Gzipped(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		must.OK1(w.Write([]byte("hello")))
	}))

	r := httptest.NewRequest(http.MethodGet, "http://localhost", nil)
	r.Header.Set("Accept-Encoding", "gzip")
	res := Test(handler, r)
	assert.Equal(t, "gzip", res.Header.Get("Content-Encoding"))
	unzip := must.OK1(gzip.NewReader(res.Body))
	body, err := io.ReadAll(unzip)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), body)
	res.Body.Close()

	r = httptest.NewRequest(http.MethodGet, "http://localhost", nil)
	res = Test(handler, r)
	assert.Empty(t, res.Header.Get("Content-Encoding"))
	body, err = io.ReadAll(res.Body)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), body)
	res.Body.Close()
}
