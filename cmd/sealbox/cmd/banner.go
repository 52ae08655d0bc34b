package cmd

import (
	"fmt"
	"io"

	"github.com/fatih/color"
)

const banner = `
  ____             _ _               
 / ___|  ___  __ _| | |__   _____  __
 \___ \ / _ \/ _` + "`" + ` | | '_ \ / _ \ \/ /
  ___) |  __/ (_| | | |_) | (_) >  < 
 |____/ \___|\__,_|_|_.__/ \___/_/\_\
`

var (
	titleFmt   = color.New(color.FgBlue, color.Bold).SprintFunc()
	versionFmt = color.New(color.FgGreen).SprintFunc()
	okFmt      = color.New(color.FgGreen).SprintFunc()
	warnFmt    = color.New(color.FgYellow).SprintFunc()
	dimFmt     = color.New(color.Faint).SprintFunc()
)

func printBanner() {
	fmt.Print(titleFmt(banner))
	fmt.Println(versionFmt("  Encrypted local profile - Version " + Version))
	fmt.Println()
}

func printSuccess(w io.Writer, format string, args ...any) {
	fmt.Fprintln(w, okFmt("✓ ")+fmt.Sprintf(format, args...))
}

func printWarning(format string, args ...any) {
	fmt.Println(warnFmt("! ") + fmt.Sprintf(format, args...))
}
