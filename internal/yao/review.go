package yao

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/go-hclog"
)

// RecipeReviewer offers to show a PKGBUILD before it is built. With an editor
// configured the file is opened in it; otherwise it is shown in the pager.
type RecipeReviewer struct {
	editor   string
	prompter Prompter
	runner   ProcessRunner
	pager    func(title string, lines []string) error
	ui       *UI
	log      hclog.Logger
}

// NewRecipeReviewer returns a Reviewer. An empty editor selects the built-in pager.
func NewRecipeReviewer(editor string, prompter Prompter, runner ProcessRunner, ui *UI, log hclog.Logger) *RecipeReviewer {
	return &RecipeReviewer{
		editor:   editor,
		prompter: prompter,
		runner:   runner,
		pager:    RunPager,
		ui:       ui,
		log:      log,
	}
}

// Review returns false when the user backed out through the editor.
func (r *RecipeReviewer) Review(ctx context.Context, recipe string) (bool, error) {
	view, err := r.prompter.Confirm(fmt.Sprintf("View %s?", filepath.Base(recipe)))
	if err != nil {
		return false, err
	}
	if !view {
		return true, nil
	}

	words := strings.Fields(r.editor)
	if len(words) == 0 {
		data, err := os.ReadFile(recipe)
		if err != nil {
			return false, fmt.Errorf("failed to read %s: %w", recipe, err)
		}
		lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
		return true, r.pager(recipe, lines)
	}

	r.ui.Step("Opening %s with %s", filepath.Base(recipe), words[0])
	err = r.runner.Run(ctx, ProcSpec{
		Program:  words[0],
		Args:     append(words[1:], recipe),
		Terminal: true,
	})
	if err != nil {
		var ee *ExitError
		if errors.As(err, &ee) {
			r.log.Debug("editor exited non-zero", "code", ee.Code)
			return false, nil
		}
		return false, err
	}
	return true, nil
}
