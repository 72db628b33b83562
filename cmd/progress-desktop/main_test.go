package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeListenForBrowser(t *testing.T) {
	cases := map[string]string{
		"127.0.0.1:8787": "127.0.0.1:8787",
		"0.0.0.0:8787":   "127.0.0.1:8787",
		":8787":          "127.0.0.1:8787",
		"[::]:8787":      "127.0.0.1:8787",
		"localhost":      "localhost",
	}
	for in, want := range cases {
		assert.Equal(t, want, normalizeListenForBrowser(in), in)
	}
}

func TestWaitForHTTP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()
	assert.NoError(t, waitForHTTP(context.Background(), srv.URL, time.Second))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Error(t, waitForHTTP(ctx, "http://127.0.0.1:1/unreachable", time.Second))
}
