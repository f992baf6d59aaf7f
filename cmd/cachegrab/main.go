// Command cachegrab keeps a Real-Debrid account stocked with cached
// releases of the titles on Trakt lists.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/cachegrab/cachegrab/internal/config"
)

const (
	exitFailure       = 1
	exitInvalidConfig = 2
)

func main() {
	cmd := newRootCommand()
	if err := cmd.Execute(); err != nil {
		if !errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(exitCode(err))
	}
}

// exitCode maps a command error to the process exit status.
func exitCode(err error) int {
	if config.IsConfigError(err) {
		return exitInvalidConfig
	}
	return exitFailure
}
