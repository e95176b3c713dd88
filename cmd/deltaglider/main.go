// Command deltaglider is the CLI frontend of the DeltaGlider storage
// engine: boto3-shaped puts and gets over an S3-compatible store with
// transparent delta compression.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/prn-tf/deltaglider/internal/config"
	"github.com/prn-tf/deltaglider/internal/engine"
	"github.com/prn-tf/deltaglider/internal/store"
)

// Exit codes of the CLI contract.
const (
	exitOK        = 0
	exitOther     = 1
	exitUsage     = 2
	exitConfig    = 3
	exitNotFound  = 4
	exitIntegrity = 5
	exitStore     = 6
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	cmd := newRootCmd()
	cmd.SetArgs(args)
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "deltaglider:", err)
		return exitCode(err)
	}
	return exitOK
}

// exitCode maps the error taxonomy onto the CLI exit contract.
func exitCode(err error) int {
	var usage *usageError
	switch {
	case errors.As(err, &usage):
		return exitUsage
	case errors.Is(err, config.ErrInvalid):
		return exitConfig
	case errors.Is(err, engine.ErrObjectNotFound), errors.Is(err, store.ErrNotFound):
		return exitNotFound
	case errors.Is(err, engine.ErrIntegrityFailure), errors.Is(err, engine.ErrReferenceCorrupt):
		return exitIntegrity
	case errors.Is(err, engine.ErrStorageInconsistency),
		errors.Is(err, store.ErrTransient),
		errors.Is(err, store.ErrPermanent),
		errors.Is(err, store.ErrPreconditionFailed):
		return exitStore
	default:
		return exitOther
	}
}

// usageError marks malformed invocations.
type usageError struct {
	msg string
}

func (e *usageError) Error() string {
	return e.msg
}

func usagef(format string, args ...interface{}) error {
	return &usageError{msg: fmt.Sprintf(format, args...)}
}
