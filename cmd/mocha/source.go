package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-isatty"

	"github.com/thomasrohde/mocha/go/pkg/diagnostics"
	"github.com/thomasrohde/mocha/go/pkg/runtime"
)

const stdinName = "<stdin>"

// readSource reads a program from path, or from stdin when path is "-".
// Failures are reported as an E_IO diagnostic with exit code 1.
func readSource(path string, stdin io.Reader, pretty bool) (source, filename string, err error) {
	if path == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", "", ioError(fmt.Sprintf("cannot read stdin: %s", err), pretty)
		}
		return string(data), stdinName, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", "", ioError(fmt.Sprintf("cannot read file: %s", path), pretty)
	}
	return string(data), path, nil
}

func ioError(msg string, pretty bool) error {
	d := diagnostics.MakeDiag(diagnostics.EIO, msg, nil, "")
	return &exitError{
		code: runtime.ExitUsage,
		err:  errors.New(diagnostics.FormatDiagnostic(d, pretty)),
	}
}

// isTerminal reports whether r is an interactive character device.
func isTerminal(r io.Reader) bool {
	f, ok := r.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
