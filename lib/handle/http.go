// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package handle

import (
	"net/http"
	"strings"
	"time"
)

// ServeHTTP serves the payload behind a handle at GET /<uuid>, where
// <uuid> is the handle's final path segment. Revoked handles return
// 404.
func (c *Cache) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	name := strings.TrimPrefix(r.URL.Path, "/")
	if name == "" || strings.Contains(name, "/") {
		http.NotFound(w, r)
		return
	}

	blob, err := c.Open(c.prefix + name)
	if err != nil {
		http.NotFound(w, r)
		return
	}

	w.Header().Set("Content-Type", blob.Mime())
	w.Header().Set("Cache-Control", "no-store")
	http.ServeContent(w, r, blob.Filename(), time.Time{}, blob.Reader())
}
