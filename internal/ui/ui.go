// Copyright 2025 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.
//
// For commercial licensing, contact: licensing@kraklabs.com
//
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package ui provides the CLI's colorized, terminal-aware output primitives:
// section headers, status lines, and (in prompt.go) the interactive trust
// dialog's raw-mode keyboard reader.
package ui

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
)

// Color palette. Swapped to no-op by InitColors(true) or NO_COLOR.
var (
	Cyan   = color.New(color.FgCyan)
	Green  = color.New(color.FgGreen)
	Yellow = color.New(color.FgYellow)
	Red    = color.New(color.FgRed, color.Bold)
	Dim    = color.New(color.Faint)
	Bold   = color.New(color.Bold)
)

// InitColors disables color output when noColor is true or when stdout is
// not a terminal, matching the teacher's NO_COLOR handling in cmd/cie/main.go.
func InitColors(noColor bool) {
	if noColor || !isatty.IsTerminal(os.Stdout.Fd()) {
		color.NoColor = true
	}
}

// StdinIsTerminal reports whether stdin is an interactive terminal.
func StdinIsTerminal() bool {
	return isatty.IsTerminal(os.Stdin.Fd()) || isatty.IsCygwinTerminal(os.Stdin.Fd())
}

// StdoutIsTerminal reports whether stdout is an interactive terminal.
func StdoutIsTerminal() bool {
	return isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())
}

// Header prints a bold section heading.
func Header(text string) {
	_, _ = Bold.Println(text)
}

// SubHeader prints a dimmer, secondary heading.
func SubHeader(text string) {
	_, _ = Dim.Println(text)
}

// Info prints an informational line to stdout.
func Info(msg string) { fmt.Println(msg) }

// Infof prints a formatted informational line to stdout.
func Infof(format string, args ...interface{}) { fmt.Printf(format+"\n", args...) }

// Success prints a green-checked success line.
func Success(msg string) { _, _ = Green.Printf("✓ %s\n", msg) }

// Successf prints a formatted success line.
func Successf(format string, args ...interface{}) {
	_, _ = Green.Printf("✓ "+format+"\n", args...)
}

// Warning prints a yellow warning line to stderr.
func Warning(msg string) { _, _ = Yellow.Fprintf(os.Stderr, "⚠ %s\n", msg) }

// Warningf prints a formatted warning line to stderr.
func Warningf(format string, args ...interface{}) {
	_, _ = Yellow.Fprintf(os.Stderr, "⚠ "+format+"\n", args...)
}

// ErrorLine prints a red error line to stderr (distinct from errors.FatalError,
// which also terminates the process).
func ErrorLine(msg string) { _, _ = Red.Fprintf(os.Stderr, "✗ %s\n", msg) }

// Label formats a "key: value" line with a dimmed key, as used in the trust
// dialog's directory-statistics panel.
func Label(key, value string) string {
	return fmt.Sprintf("%s %s", Dim.Sprintf("%s:", key), value)
}

// DimText returns s rendered in the dimmed style, for inline use.
func DimText(s string) string { return Dim.Sprint(s) }

// CountText pluralizes a count for display, e.g. CountText(1, "file", "files").
func CountText(n int, singular, plural string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, singular)
	}
	return fmt.Sprintf("%d %s", n, plural)
}
