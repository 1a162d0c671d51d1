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

package trust

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/kraklabs/cie/internal/ui"
)

// Prompter produces a Decision for an untrusted path (spec.md component C).
// Implementations never mutate the Store; they only return a decision.
type Prompter interface {
	Prompt(path string, stats DirStats) (Decision, error)
}

// promptOption is one row of the interactive dialog's scope menu.
type promptOption struct {
	label   string
	outcome DecisionOutcome
	scope   Scope
}

func promptOptions() []promptOption {
	return []promptOption{
		{label: "Trust this directory only", outcome: DecisionGrant, scope: Scope{}},
		{label: "Trust this directory and all subdirectories", outcome: DecisionGrant, scope: Scope{Recursive: true}},
		{label: "Trust for this session only", outcome: DecisionGrant, scope: Scope{Session: true}},
		{label: "Deny", outcome: DecisionDeny},
	}
}

// InteractivePrompt renders the full terminal-UI trust dialog: path,
// directory statistics, and a keyboard-navigable scope menu (spec.md §4.2
// mode 1). It requires both stdin and stdout to be a terminal; callers
// should check ui.StdinIsTerminal()/ui.StdoutIsTerminal() before using it
// and fall back to LineModePrompt otherwise.
type InteractivePrompt struct{}

func (InteractivePrompt) Prompt(path string, stats DirStats) (Decision, error) {
	options := promptOptions()
	selected := 0

	render := func() {
		fmt.Println()
		ui.Header("Trust this directory?")
		fmt.Println(ui.Label("Path", path))
		fmt.Println(ui.Label("Files", ui.CountText(stats.FileCount, "file", "files")))
		fmt.Println(ui.Label("Size", formatBytes(stats.TotalSize)))
		if stats.IsGitRepo {
			fmt.Println(ui.Label("Git", "yes"))
		}
		fmt.Println()
		for i, opt := range options {
			marker := "  "
			if i == selected {
				marker = ui.Cyan.Sprint("> ")
			}
			fmt.Printf("%s%s\n", marker, opt.label)
		}
		fmt.Println()
		fmt.Println(ui.DimText("↑/↓ to navigate, Enter to confirm, y = trust, n/Esc = deny, Ctrl-C = deny"))
	}

	reader, err := ui.NewRawKeyReader()
	if err != nil {
		// Terminal could not be put into raw mode; fail closed exactly as
		// the non-interactive path does, rather than erroring the caller —
		// spec.md §4.2 mode 3: "Non-interactive: returns Deny without UI".
		return Decision{Outcome: DecisionDeny, Reason: "terminal unavailable for interactive prompt"}, nil
	}
	defer func() { _ = reader.Close() }()

	render()
	for {
		ev, err := reader.ReadKey()
		if err != nil {
			// EOF on stdin — treat like non-interactive fallback.
			return Decision{Outcome: DecisionDeny, Reason: "stdin closed during prompt"}, nil
		}

		switch ev.Key {
		case ui.KeyUp:
			selected = (selected - 1 + len(options)) % len(options)
			render()
		case ui.KeyDown:
			selected = (selected + 1) % len(options)
			render()
		case ui.KeyEnter:
			opt := options[selected]
			return Decision{Outcome: opt.outcome, Scope: opt.scope, Reason: "user selection"}, nil
		case ui.KeyEsc, ui.KeyCtrlC:
			// Cancellation is Deny, not error (spec.md §4.2 "Contracts").
			return Decision{Outcome: DecisionDeny, Reason: "user cancelled"}, nil
		case ui.KeyRune:
			switch ev.Rune {
			case 'y', 'Y':
				return Decision{Outcome: DecisionGrant, Scope: Scope{}, Reason: "user accepted"}, nil
			case 'n', 'N':
				return Decision{Outcome: DecisionDeny, Reason: "user declined"}, nil
			}
		}
	}
}

// LineModePrompt is the non-TTY-pair fallback: it prints the same
// information as the interactive dialog and prompts "[y/N]", defaulting to
// Deny on anything but an explicit "y" (spec.md §4.2 mode 2).
type LineModePrompt struct {
	In  io.Reader
	Out io.Writer
}

func (p LineModePrompt) Prompt(path string, stats DirStats) (Decision, error) {
	out := p.Out
	fmt.Fprintln(out)
	fmt.Fprintf(out, "Trust %s?\n", path)
	fmt.Fprintf(out, "  %s, %s", ui.CountText(stats.FileCount, "file", "files"), formatBytes(stats.TotalSize))
	if stats.IsGitRepo {
		fmt.Fprint(out, ", git repo")
	}
	fmt.Fprintln(out)
	fmt.Fprint(out, "Grant trust for this directory only? [y/N] ")

	scanner := bufio.NewScanner(p.In)
	if !scanner.Scan() {
		return Decision{Outcome: DecisionDeny, Reason: "stdin EOF"}, nil
	}
	answer := strings.TrimSpace(strings.ToLower(scanner.Text()))
	if answer == "y" || answer == "yes" {
		return Decision{Outcome: DecisionGrant, Scope: Scope{}, Reason: "line-mode accept"}, nil
	}
	return Decision{Outcome: DecisionDeny, Reason: "line-mode default deny"}, nil
}

// NonInteractivePrompt always returns Deny without any UI (spec.md §4.2 mode 3).
type NonInteractivePrompt struct{}

func (NonInteractivePrompt) Prompt(_ string, _ DirStats) (Decision, error) {
	return Decision{Outcome: DecisionDeny, Reason: "non-interactive session"}, nil
}

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
