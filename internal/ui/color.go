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

// Package ui prints human-readable sift output.
//
// Colors follow the NO_COLOR environment variable and the --no-color flag,
// and are off when stdout is not a terminal.
//
//   - Red: failures
//   - Yellow: warnings, skipped work
//   - Green: completions
//   - Cyan: counts
//   - Bold: headers and labels
//   - Dim: paths and ids
package ui

import (
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
)

var (
	Red    = color.New(color.FgRed)
	Yellow = color.New(color.FgYellow)
	Green  = color.New(color.FgGreen)
	Cyan   = color.New(color.FgCyan)
	Bold   = color.New(color.Bold)
	Dim    = color.New(color.Faint)
)

// InitColors sets the global color switch. Call once after flag parsing.
func InitColors(noColor bool) {
	color.NoColor = noColor || os.Getenv("NO_COLOR") != "" || !IsTerminal(os.Stdout)
}

// IsTerminal reports whether f is an interactive terminal.
func IsTerminal(f *os.File) bool {
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// Printer writes decorated lines to w.
type Printer struct {
	w io.Writer
}

// NewPrinter returns a Printer on w. A nil w means stdout.
func NewPrinter(w io.Writer) *Printer {
	if w == nil {
		w = os.Stdout
	}
	return &Printer{w: w}
}

func (p *Printer) Successf(format string, args ...any) {
	_, _ = Green.Fprintf(p.w, "✓ "+format+"\n", args...)
}

func (p *Printer) Warningf(format string, args ...any) {
	_, _ = Yellow.Fprintf(p.w, "⚠ "+format+"\n", args...)
}

func (p *Printer) Errorf(format string, args ...any) {
	_, _ = Red.Fprintf(p.w, "✗ "+format+"\n", args...)
}

func (p *Printer) Infof(format string, args ...any) {
	_, _ = Cyan.Fprintf(p.w, "ℹ "+format+"\n", args...)
}

// Header prints text in bold with an underline of the same width.
//
//	Ingestion summary
//	=================
func (p *Printer) Header(text string) {
	_, _ = Bold.Fprintln(p.w, text)
	fmt.Fprintln(p.w, strings.Repeat("=", utf8.RuneCountInString(text)))
}

// Fields prints aligned "label: value" rows in the given order.
func (p *Printer) Fields(rows [][2]string) {
	width := 0
	for _, r := range rows {
		if n := utf8.RuneCountInString(r[0]); n > width {
			width = n
		}
	}
	for _, r := range rows {
		pad := strings.Repeat(" ", width-utf8.RuneCountInString(r[0]))
		fmt.Fprintf(p.w, "  %s%s  %s\n", Label(r[0]+":"), pad, r[1])
	}
}

func Label(text string) string {
	return Bold.Sprint(text)
}

func DimText(text string) string {
	return Dim.Sprint(text)
}

// CountText formats a count, in yellow when it is a non-zero problem count.
func CountText(count int, problem bool) string {
	if problem && count > 0 {
		return Yellow.Sprint(count)
	}
	return Cyan.Sprint(count)
}
