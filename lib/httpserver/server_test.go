// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package httpserver

import (
	"context"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/bureau-foundation/assetstore/lib/testutil"
)

func TestServeAndShutdown(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "ok")
	})
	server, err := New(Config{Address: "127.0.0.1:0", Handler: handler})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- server.Serve(ctx) }()

	testutil.RequireClosed(t, server.Ready(), 5*time.Second, "waiting for the listener")

	response, err := http.Get("http://" + server.Addr().String() + "/")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	body, _ := io.ReadAll(response.Body)
	response.Body.Close()
	if string(body) != "ok" {
		t.Errorf("body = %q, want ok", body)
	}

	cancel()
	if err := testutil.RequireReceive(t, done, 5*time.Second, "waiting for Serve to return"); err != nil {
		t.Errorf("Serve returned %v after cancellation", err)
	}
}

func TestServeListenFailure(t *testing.T) {
	server, err := New(Config{Address: "256.0.0.1:1", Handler: http.NotFoundHandler()})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := server.Serve(context.Background()); err == nil {
		t.Fatal("Serve succeeded on an invalid address")
	}
}

func TestNewValidatesConfig(t *testing.T) {
	if _, err := New(Config{Handler: http.NotFoundHandler()}); err == nil {
		t.Error("New accepted an empty address")
	}
	if _, err := New(Config{Address: ":0"}); err == nil {
		t.Error("New accepted a nil handler")
	}
}
