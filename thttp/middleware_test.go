package thttp

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ridge/siltstone/test"
	"github.com/ridge/siltstone/tlog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCORS(t *testing.T) {
	handler := CORS(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, err := w.Write([]byte("hello"))
		assert.NoError(t, err)
	}))

	r := httptest.NewRequest(http.MethodOptions, "http://localhost", nil)
	r.Header.Set("Origin", "http://someorigin")
	r.Header.Set("Access-Control-Request-Method", http.MethodPost)
	res := Test(handler, r)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, "*", strings.Join(res.Header["Access-Control-Allow-Origin"], ","))
	res.Body.Close()

	r = httptest.NewRequest(http.MethodPost, "http://localhost", nil)
	r.Header.Set("Origin", "http://someorigin")
	res = Test(handler, r)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, strings.Join(exposedHeaders, ","), strings.Join(res.Header["Access-Control-Expose-Headers"], ","))
	body, err := io.ReadAll(res.Body)
	assert.NoError(t, err)
	assert.Equal(t, []byte("hello"), body)
	res.Body.Close()
}

func TestCaptureStatus(t *testing.T) {
	var status int
	w := httptest.NewRecorder()
	cw := CaptureStatus(w, &status)
	cw.WriteHeader(http.StatusTeapot)
	require.Equal(t, http.StatusTeapot, status)

	status = 0
	w = httptest.NewRecorder()
	cw = CaptureStatus(w, &status)
	_, err := cw.Write([]byte("implicit"))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, status)
}

func TestJSONResult(t *testing.T) {
	ctx := test.Context(t)
	w := httptest.NewRecorder()
	JSONResult(tlog.Get(ctx), w, map[string]any{"resource": "ok"}, http.StatusOK)
	res := w.Result()
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, "application/json", res.Header.Get("Content-Type"))
	body, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	assert.JSONEq(t, `{"resource": "ok"}`, string(body))
	res.Body.Close()
}
