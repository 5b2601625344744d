// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package process

import (
	"errors"
	"fmt"
	"io"
	"os"
)

// exitCoder is implemented by errors that carry their own exit code
// and whose command already printed its output.
type exitCoder interface {
	ExitCode() int
}

// Fatal reports err on stderr and exits. An error carrying an exit
// code exits with that code silently; anything else prints
// "error: err" and exits 1.
func Fatal(err error) {
	os.Exit(report(os.Stderr, err))
}

// report writes the message for err to w and returns the exit code.
func report(w io.Writer, err error) int {
	var coder exitCoder
	if errors.As(err, &coder) {
		return coder.ExitCode()
	}
	fmt.Fprintf(w, "error: %v\n", err)
	return 1
}
