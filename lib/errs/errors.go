package errs

import (
	"errors"

	"github.com/uol/gobol"

	"github.com/magro/pillar-cli/lib/constants"
)

//
// Builds the typed errors raised by the tasks. Each error carries the
// process exit code reported to the invoking pipeline, following the
// sysexits(3) convention.
//

const (
	// ExitUsage - a command line mistake
	ExitUsage = 64

	// ExitConfig - unreadable or incomplete configuration
	ExitConfig = 78

	// ExitNoInput - missing or unreadable migrations directory
	ExitNoInput = 66

	// ExitData - a migration file that cannot be parsed
	ExitData = 65

	// ExitUnavailable - a database failure promoted by strict mode
	ExitUnavailable = 69

	// ExitSoftware - any other internal failure
	ExitSoftware = 70
)

// New - creates a typed error bound to an exit code
func New(e error, msg, pkg, function string, exitCode int) gobol.Error {
	return customError{
		e,
		msg,
		pkg,
		function,
		exitCode,
		constants.StringsEmpty,
	}
}

type customError struct {
	error
	msg       string
	pkg       string
	function  string
	exitCode  int
	errorCode string
}

func (e customError) Package() string {
	return e.pkg
}

func (e customError) Function() string {
	return e.function
}

func (e customError) Message() string {
	return e.msg
}

func (e customError) StatusCode() int {
	return e.exitCode
}

func (e customError) ErrorCode() string {
	return e.errorCode
}

func (e customError) Unwrap() error {
	return e.error
}

// Code - extracts the exit code from an error chain
func Code(err error) int {
	if err == nil {
		return 0
	}

	var gerr gobol.Error
	if errors.As(err, &gerr) {
		return gerr.StatusCode()
	}

	return ExitSoftware
}
