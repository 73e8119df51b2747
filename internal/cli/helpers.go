package cli

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/mattn/go-isatty"
)

// printHeader prints a formatted section header.
func printHeader(w io.Writer, title string) {
	fmt.Fprintf(w, "\n%s%s%s\n", styleBoldCyan, title, colorReset)
	fmt.Fprintln(w, colorDim+strings.Repeat("-", len(title)+2)+colorReset)
}

// printField prints a labeled field.
func printField(w io.Writer, label, value string) {
	fmt.Fprintf(w, "  %s%-16s%s %s\n", colorBold, label+":", colorReset, value)
}

// isTerminal reports whether w is an interactive terminal.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// useColor decides whether output to w gets ANSI styling.
func useColor(w io.Writer, noColor bool) bool {
	if noColor || os.Getenv("NO_COLOR") != "" {
		return false
	}
	return isTerminal(w)
}

// terminalWidth returns $COLUMNS for terminal output, or 0 for no limit.
func terminalWidth(w io.Writer) int {
	if !isTerminal(w) {
		return 0
	}
	n, err := strconv.Atoi(strings.TrimSpace(os.Getenv("COLUMNS")))
	if err != nil || n <= 0 {
		return 0
	}
	return n
}
