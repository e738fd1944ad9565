package yao

import (
	"fmt"
	"io"
	"os"
	"strings"
)

// color-compatible printer interface (works with *color.Theme, *color.Style and color.RGBColor)
type colorPrinter interface {
	Sprintf(format string, a ...any) string
}

// UI writes the user-facing progress lines. It is separate from the hclog
// diagnostics so the pacman-like output stays stable regardless of verbosity.
type UI struct {
	w io.Writer
}

// NewUI returns a UI writing to w, or to stderr when w is nil.
func NewUI(w io.Writer) *UI {
	if w == nil {
		w = os.Stderr
	}
	return &UI{w: w}
}

// cPrintf prints with a colored style or falls back to plain output when nil
func (u *UI) cPrintf(p colorPrinter, format string, a ...any) {
	if p == nil {
		fmt.Fprintf(u.w, format, a...)
		return
	}
	fmt.Fprint(u.w, p.Sprintf(format, a...))
}

// Step prints a "==> " progress line.
func (u *UI) Step(format string, a ...any) {
	u.cPrintf(colArrow, "==> ")
	u.cPrintf(colSuccess, format+"\n", a...)
}

// Section prints a ":: " header line, the way pacman introduces a question or a list.
func (u *UI) Section(format string, a ...any) {
	u.cPrintf(colArrow, ":: ")
	u.cPrintf(colInfo, format+"\n", a...)
}

// Warn prints an indented warning line.
func (u *UI) Warn(format string, a ...any) {
	u.cPrintf(colWarn, "warning: "+format+"\n", a...)
}

// Line prints an uncolored line.
func (u *UI) Line(format string, a ...any) {
	u.cPrintf(nil, format+"\n", a...)
}

// Aborted prints the pacman-style abort notice.
func (u *UI) Aborted(reason string) {
	msg := "Aborted by user."
	if reason != "" {
		msg = fmt.Sprintf("Aborted by user (%s).", reason)
	}
	u.cPrintf(colArrow, ":: ")
	u.cPrintf(colNote, "%s\n", msg)
}

// Error prints a fatal error line.
func (u *UI) Error(err error) {
	u.cPrintf(colError, "error: %v\n", err)
}

// shellQuote renders args for display only; commands are never run through a shell.
func shellQuote(args []string) string {
	quoted := make([]string, len(args))
	for i, a := range args {
		quoted[i] = quoteArg(a)
	}
	return strings.Join(quoted, " ")
}

func quoteArg(s string) string {
	if s == "" {
		return "''"
	}
	safe := true
	for _, c := range s {
		if !(c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' || strings.ContainsRune("-_./=:@+", c)) {
			safe = false
			break
		}
	}
	if safe {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
