package main

import (
	"errors"
	"fmt"
	"os"
)

// Exit codes for different failure modes
const (
	ExitSuccess       = 0 // Run completed, all captures evaluable
	ExitPartialResult = 1 // Run completed with non-evaluable pairs or gated judges
	ExitError         = 2 // Configuration or runtime error
)

// PartialResultError indicates the benchmark ran to completion but some
// pairs could not be evaluated or some judges failed calibration.
type PartialResultError struct {
	Message string
}

func (e *PartialResultError) Error() string {
	return e.Message
}

func main() {
	if err := execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)

		// Check error type to determine exit code
		var partialErr *PartialResultError
		if errors.As(err, &partialErr) {
			os.Exit(ExitPartialResult)
		}

		// All other errors are configuration/runtime errors
		os.Exit(ExitError)
	}
}
