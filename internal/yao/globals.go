package yao

import (
	"github.com/gookit/color"
)

var (
	version   = "dev"     // overridden at build time
	buildDate = "unknown" // overridden at build time
)

// declinedExitCode is what pacman exits with when the user answers "n" at its own prompt.
const declinedExitCode = 1

// color helpers
var (
	colInfo    = color.Info
	colWarn    = color.Warn
	colError   = color.Error
	colSuccess = color.HEX("#1976D2")
	colArrow   = color.HEX("#FFEB3B")
	colNote    = color.Tag("notice")
)
