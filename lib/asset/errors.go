// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package asset

import (
	"errors"
	"fmt"
)

var (
	// ErrNotInitialized is returned by a store used before Init (or
	// after Close). It indicates a programming error and is never
	// retried.
	ErrNotInitialized = errors.New("asset store not initialized")

	// ErrNotFound is returned when a lookup misses. Callers recover by
	// falling back to a placeholder or an empty result.
	ErrNotFound = errors.New("asset not found")

	// ErrTransport marks failures of network-dependent operations.
	// Batch operations count these per item rather than returning them.
	ErrTransport = errors.New("asset transport failure")

	// ErrStorage marks failures of the durable store. Every
	// *StorageError matches it via errors.Is.
	ErrStorage = errors.New("asset storage failure")
)

// StorageError wraps a failed durable-store transaction with the name
// of the operation that issued it.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("asset storage: %s: %v", e.Op, e.Err)
}

// Unwrap exposes both ErrStorage and the underlying cause.
func (e *StorageError) Unwrap() []error {
	return []error{ErrStorage, e.Err}
}

// TransportError wraps err so that it matches ErrTransport.
func TransportError(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrTransport, err)
}
