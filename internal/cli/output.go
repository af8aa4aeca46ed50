package cli

import (
	"fmt"
	"io"
	"os"

	"golang.org/x/term"

	"github.com/autolock-cli/autolock/internal/config"
)

// writeOutput writes formatted output with error checking
func writeOutput(w io.Writer, format string, args ...interface{}) error {
	n, err := fmt.Fprintf(w, format, args...)
	if err != nil {
		return fmt.Errorf("failed to write output (wrote %d bytes): %w", n, err)
	}
	return nil
}

// resolveFormat turns the configured output format into table or json.
// "auto" picks JSON when w is a file or pipe and a table otherwise.
func resolveFormat(format string, w io.Writer) string {
	switch format {
	case config.OutputTable, config.OutputJSON:
		return format
	}
	f, ok := w.(*os.File)
	if !ok || term.IsTerminal(int(f.Fd())) {
		return config.OutputTable
	}
	return config.OutputJSON
}
