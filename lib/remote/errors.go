// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package remote

import (
	"errors"
	"fmt"
)

// Error is a non-2xx response from the asset server.
type Error struct {
	// StatusCode is the HTTP status of the response.
	StatusCode int

	// Message is the server's error description, or the raw body when
	// it was not the standard JSON shape.
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("remote: %d: %s", e.StatusCode, e.Message)
}

// IsStatus reports whether err is an *Error with the given status.
func IsStatus(err error, statusCode int) bool {
	var remoteErr *Error
	if !errors.As(err, &remoteErr) {
		return false
	}
	return remoteErr.StatusCode == statusCode
}
