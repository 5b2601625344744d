// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package testutil

import (
	"fmt"
	"math/rand/v2"
	"sync/atomic"
)

// Payload returns size pseudo-random bytes derived from seed. The same
// seed always yields the same bytes; different seeds yield different
// content identities.
func Payload(seed uint64, size int) []byte {
	source := rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)
	data := make([]byte, size)
	for i := 0; i < size; i += 8 {
		word := source.Uint64()
		for j := 0; j < 8 && i+j < size; j++ {
			data[i+j] = byte(word >> (8 * j))
		}
	}
	return data
}

var projectCounter atomic.Uint64

// UniqueProject returns a project identifier of the form
// "project-N", distinct within the test binary.
func UniqueProject() string {
	return fmt.Sprintf("project-%d", projectCounter.Add(1))
}
