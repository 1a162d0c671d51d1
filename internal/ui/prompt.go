// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package ui

import (
	"bufio"
	"os"

	"golang.org/x/term"
)

// Key identifies a single keypress read from the interactive trust dialog.
type Key int

const (
	KeyNone Key = iota
	KeyUp
	KeyDown
	KeyEnter
	KeyEsc
	KeyCtrlC
	KeyRune
)

// KeyEvent is a decoded keypress; Rune is only meaningful when Key == KeyRune.
type KeyEvent struct {
	Key  Key
	Rune rune
}

// RawKeyReader reads single keypresses from a terminal in raw mode,
// decoding arrow-key escape sequences, used by the interactive trust dialog
// (spec.md §4.2 mode 1: "keyboard navigation (arrow keys / y / n / Esc)").
type RawKeyReader struct {
	fd       int
	oldState *term.State
	r        *bufio.Reader
}

// NewRawKeyReader puts stdin into raw mode. Callers must call Close to
// restore the terminal, including on every error/cancellation path —
// leaking raw mode would corrupt the user's shell.
func NewRawKeyReader() (*RawKeyReader, error) {
	fd := int(os.Stdin.Fd())
	oldState, err := term.MakeRaw(fd)
	if err != nil {
		return nil, err
	}
	return &RawKeyReader{fd: fd, oldState: oldState, r: bufio.NewReader(os.Stdin)}, nil
}

// Close restores the terminal to its prior state.
func (k *RawKeyReader) Close() error {
	if k.oldState == nil {
		return nil
	}
	return term.Restore(k.fd, k.oldState)
}

// ReadKey blocks for a single keypress and decodes it.
func (k *RawKeyReader) ReadKey() (KeyEvent, error) {
	b, err := k.r.ReadByte()
	if err != nil {
		return KeyEvent{}, err
	}

	switch b {
	case 0x03:
		return KeyEvent{Key: KeyCtrlC}, nil
	case '\r', '\n':
		return KeyEvent{Key: KeyEnter}, nil
	case 0x1b:
		// Possible escape sequence (arrow key) or a lone Esc press. Arrow
		// keys arrive as ESC '[' 'A'/'B'/'C'/'D'; a lone Esc has nothing
		// following within the same write, so a read error here means Esc.
		second, err := k.r.ReadByte()
		if err != nil {
			return KeyEvent{Key: KeyEsc}, nil
		}
		if second != '[' {
			return KeyEvent{Key: KeyEsc}, nil
		}
		third, err := k.r.ReadByte()
		if err != nil {
			return KeyEvent{Key: KeyEsc}, nil
		}
		switch third {
		case 'A':
			return KeyEvent{Key: KeyUp}, nil
		case 'B':
			return KeyEvent{Key: KeyDown}, nil
		default:
			return KeyEvent{Key: KeyEsc}, nil
		}
	default:
		return KeyEvent{Key: KeyRune, Rune: rune(b)}, nil
	}
}
