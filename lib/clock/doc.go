// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock provides an injectable time source.
//
// Record creation timestamps and the reconciler's periodic loop take a
// [Clock] instead of calling the time package directly. Production
// code passes [Real]; tests pass [Fake] and move time with
// [FakeClock.Advance]:
//
//	c := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
//	go reconciler.Run(ctx)
//	c.WaitForTimers(1)        // the loop has registered its ticker
//	c.Advance(time.Minute)    // one reconcile pass
//
// WaitForTimers closes the race between a goroutine registering a
// ticker and the test advancing past it.
package clock
