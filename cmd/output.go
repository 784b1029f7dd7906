package cmd

import (
	"fmt"
	"io"
	"os"
)

// Status icons shared by every command:
//
//	✓  success / healthy
//	✗  error / failure (stderr)
//	⚠  warning
//	○  skipped / not applicable
//	-  not found / missing
//	~  neutral info / state change
const (
	iconOK   = "✓"
	iconErr  = "✗"
	iconWarn = "⚠"
	iconSkip = "○"
	iconMiss = "-"
	iconInfo = "~"
)

// printStatus writes "  <icon>  msg", or "  <icon>  [name] msg" when name is set.
func printStatus(w io.Writer, icon, name, msg string) {
	if name != "" {
		msg = "[" + name + "] " + msg
	}
	fmt.Fprintf(w, "  %s  %s\n", icon, msg)
}

func printSection(title string) { fmt.Printf("\n=== %s ===\n", title) }
func printBullet(title string)  { fmt.Printf("\n● %s\n", title) }

func printOK(name, msg string)   { printStatus(os.Stdout, iconOK, name, msg) }
func printErr(name, msg string)  { printStatus(os.Stderr, iconErr, name, msg) }
func printWarn(name, msg string) { printStatus(os.Stdout, iconWarn, name, msg) }
func printSkip(name, msg string) { printStatus(os.Stdout, iconSkip, name, msg) }
func printMiss(name, msg string) { printStatus(os.Stdout, iconMiss, name, msg) }
func printInfo(name, msg string) { printStatus(os.Stdout, iconInfo, name, msg) }
