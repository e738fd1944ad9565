package yao

import (
	"errors"
	"io"
	"strings"
)

// answer classifies one line of input to a [Y/n] question.
// ok is false when the input is neither yes nor no and the question must be repeated.
func answer(line string) (yes bool, ok bool) {
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "", "y", "yes":
		return true, true
	case "n", "no":
		return false, true
	default:
		return false, false
	}
}

// LinePrompter asks [Y/n] questions on a line-oriented input.
type LinePrompter struct {
	in io.Reader
	ui *UI
}

// NewLinePrompter returns a prompter reading answers from in and printing to ui.
func NewLinePrompter(in io.Reader, ui *UI) *LinePrompter {
	return &LinePrompter{in: in, ui: ui}
}

// readLine reads up to and including '\n' one byte at a time. Input typed
// ahead stays unread for pacman, which shares our stdin.
func (p *LinePrompter) readLine() (string, error) {
	var sb strings.Builder
	var b [1]byte
	for {
		n, err := p.in.Read(b[:])
		if n == 1 {
			sb.WriteByte(b[0])
			if b[0] == '\n' {
				return sb.String(), nil
			}
		}
		if err != nil {
			return sb.String(), err
		}
	}
}

// Confirm prints question and reads until it gets a yes or a no. Empty input
// means yes. End of input means no.
func (p *LinePrompter) Confirm(question string) (bool, error) {
	for {
		p.ui.cPrintf(colArrow, ":: ")
		p.ui.cPrintf(colNote, "%s [Y/n] ", question)

		line, err := p.readLine()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				return false, err
			}
			if line == "" {
				p.ui.Line("")
				return false, nil
			}
		}

		yes, ok := answer(line)
		if ok {
			return yes, nil
		}
		p.ui.cPrintf(colWarn, "Invalid input.\n")
	}
}
