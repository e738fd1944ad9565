package yao

import (
	"fmt"
	"os"
	"strings"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
	"golang.org/x/term"
)

// RunPager takes a slice of lines and displays them in a scrollable TUI if stdout is a TTY.
// If stdout is not a TTY, or the text fits on one screen, it prints the lines normally.
func RunPager(title string, lines []string) error {
	fd := int(os.Stdout.Fd())
	if !term.IsTerminal(fd) {
		for _, line := range lines {
			fmt.Println(line)
		}
		return nil
	}

	// leave room for the border
	if _, height, err := term.GetSize(fd); err == nil && len(lines) <= height-2 {
		for _, line := range lines {
			fmt.Println(line)
		}
		return nil
	}

	app := tview.NewApplication()

	// recipes are shown verbatim; bash brackets must not be read as color tags
	textView := tview.NewTextView().
		SetDynamicColors(false).
		SetScrollable(true).
		SetWrap(false).
		SetText(strings.Join(lines, "\n"))
	textView.SetBorder(true).SetTitle(" " + title + " ")

	footer := tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignCenter).
		SetText("[gray]Use ↑/↓, PgUp/PgDn, Home/End to scroll. Press 'q' or 'Esc' to continue.[white]")

	flex := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(textView, 0, 1, true).
		AddItem(footer, 1, 0, false)

	app.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		switch event.Key() {
		case tcell.KeyEsc, tcell.KeyCtrlQ:
			app.Stop()
			return nil
		case tcell.KeyRune:
			if event.Rune() == 'q' {
				app.Stop()
				return nil
			}
		}
		return event
	})

	if err := app.SetRoot(flex, true).SetFocus(textView).Run(); err != nil {
		return fmt.Errorf("pager execution failed: %w", err)
	}
	return nil
}
