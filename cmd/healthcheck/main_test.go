package main

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func serve(t *testing.T, status int, body string) string {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/health", r.URL.Path)
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return strings.TrimPrefix(srv.URL, "http://")
}

func TestProbe(t *testing.T) {
	assert.NoError(t, probe(serve(t, http.StatusOK, `{"status":"ok"}`)))
	assert.Error(t, probe(serve(t, http.StatusServiceUnavailable, `{"status":"ok"}`)))
	assert.Error(t, probe(serve(t, http.StatusOK, `{"status":"degraded"}`)))
	assert.Error(t, probe(serve(t, http.StatusOK, `not json`)))
}

func TestLoopbackAddr(t *testing.T) {
	tests := map[string]string{
		"":              defaultAddr,
		"garbage":       defaultAddr,
		":9000":         "127.0.0.1:9000",
		"0.0.0.0:9000":  "127.0.0.1:9000",
		"[::]:9000":     "127.0.0.1:9000",
		"10.0.0.5:9000": "10.0.0.5:9000",
	}
	for in, want := range tests {
		assert.Equal(t, want, loopbackAddr(in), in)
	}
}
