package console

import (
	"fmt"
	"os"

	"github.com/fatih/color"
)

// ANSI styles used by the command output.
var (
	Green = color.New(color.FgGreen).SprintFunc()
	White = color.New(color.FgHiWhite).SprintFunc()
	Bold  = color.New(color.Bold).SprintFunc()
)

func Info(msg string) {
	_, _ = fmt.Fprintf(os.Stdout, "%s %s\n", White("..."), msg)
}

func Infof(msg string, args ...interface{}) {
	Info(fmt.Sprintf(msg, args...))
}

func Print(msg string) {
	_, _ = fmt.Fprintln(os.Stdout, msg)
}
