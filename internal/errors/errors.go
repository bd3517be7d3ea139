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

// Package errors provides user-facing errors for the sift CLI.
//
// A UserError carries three things a person at a terminal needs: what went
// wrong (Message), why (Cause) and what to do about it (Fix), plus the exit
// code the process should end with.
//
//	err := errors.NewNetworkError(
//	    "Cannot list repositories for octocat",
//	    "The API answered 401 Unauthorized",
//	    "Set SIFT_GITHUB_TOKEN to a valid personal access token",
//	    underlyingErr,
//	)
//	errors.FatalError(err, false)
//	// Error: Cannot list repositories for octocat
//	// Cause: The API answered 401 Unauthorized
//	// Fix:   Set SIFT_GITHUB_TOKEN to a valid personal access token
//
// With --json the same error is printed as
//
//	{"error": "...", "cause": "...", "fix": "...", "exit_code": 3}
//
// # Exit Codes
//
//   - ExitSuccess (0)
//   - ExitConfig (1): missing or invalid configuration
//   - ExitStorage (2): the sink could not be opened or written
//   - ExitNetwork (3): remote API failures
//   - ExitInput (4): bad arguments
//   - ExitPermission (5): filesystem access denied
//   - ExitNotFound (6): owner, repository or path does not exist
//   - ExitInternal (10): bugs
//   - ExitInterrupted (130): cancelled by SIGINT/SIGTERM
package errors

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
)

const (
	ExitSuccess     = 0
	ExitConfig      = 1
	ExitStorage     = 2
	ExitNetwork     = 3
	ExitInput       = 4
	ExitPermission  = 5
	ExitNotFound    = 6
	ExitInternal    = 10
	ExitInterrupted = 130
)

// UserError is an error with a diagnosis and a suggested fix.
type UserError struct {
	Message  string
	Cause    string
	Fix      string
	ExitCode int

	// Err is the wrapped error, reachable through errors.Is/As.
	Err error
}

func (e *UserError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *UserError) Unwrap() error {
	return e.Err
}

func newUserError(code int, msg, cause, fix string, err error) *UserError {
	return &UserError{Message: msg, Cause: cause, Fix: fix, ExitCode: code, Err: err}
}

func NewConfigError(msg, cause, fix string, err error) *UserError {
	return newUserError(ExitConfig, msg, cause, fix, err)
}

func NewStorageError(msg, cause, fix string, err error) *UserError {
	return newUserError(ExitStorage, msg, cause, fix, err)
}

func NewNetworkError(msg, cause, fix string, err error) *UserError {
	return newUserError(ExitNetwork, msg, cause, fix, err)
}

// NewInputError reports bad arguments. Input errors wrap nothing.
func NewInputError(msg, cause, fix string) *UserError {
	return newUserError(ExitInput, msg, cause, fix, nil)
}

func NewPermissionError(msg, cause, fix string, err error) *UserError {
	return newUserError(ExitPermission, msg, cause, fix, err)
}

func NewNotFoundError(msg, cause, fix string) *UserError {
	return newUserError(ExitNotFound, msg, cause, fix, nil)
}

func NewInternalError(msg, cause, fix string, err error) *UserError {
	return newUserError(ExitInternal, msg, cause, fix, err)
}

// NewInterruptedError reports work stopped by a signal.
func NewInterruptedError(msg string, err error) *UserError {
	return newUserError(ExitInterrupted, msg, "Interrupted", "", err)
}

var (
	colorError = color.New(color.FgRed, color.Bold)
	colorCause = color.New(color.FgYellow)
	colorFix   = color.New(color.FgGreen)
)

// Format renders the error for a terminal. NO_COLOR in the environment
// disables colors as well.
func (e *UserError) Format(noColor bool) string {
	// color.NoColor is global; restore it on return.
	originalNoColor := color.NoColor
	defer func() { color.NoColor = originalNoColor }()

	if noColor || os.Getenv("NO_COLOR") != "" {
		color.NoColor = true
	}

	var out strings.Builder
	out.WriteString(colorError.Sprint("Error: "))
	out.WriteString(e.Message)
	out.WriteString("\n")

	if e.Cause != "" {
		out.WriteString(colorCause.Sprint("Cause: "))
		out.WriteString(e.Cause)
		out.WriteString("\n")
	}
	if e.Fix != "" {
		out.WriteString(colorFix.Sprint("Fix:   "))
		out.WriteString(e.Fix)
		out.WriteString("\n")
	}
	return out.String()
}

// ErrorJSON is the --json rendering of a UserError.
type ErrorJSON struct {
	Error    string `json:"error"`
	Cause    string `json:"cause,omitempty"`
	Fix      string `json:"fix,omitempty"`
	ExitCode int    `json:"exit_code"`
}

func (e *UserError) ToJSON() ErrorJSON {
	return ErrorJSON{
		Error:    e.Message,
		Cause:    e.Cause,
		Fix:      e.Fix,
		ExitCode: e.ExitCode,
	}
}

// exit is swapped in tests.
var exit = os.Exit

// FatalError prints err to stderr and exits with its code. Errors that are
// not UserErrors exit with ExitInternal.
func FatalError(err error, jsonOutput bool) {
	if err == nil {
		return
	}

	var ue *UserError
	if !stderrors.As(err, &ue) {
		ue = NewInternalError(err.Error(), "", "", err)
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stderr)
		enc.SetIndent("", "  ")
		_ = enc.Encode(ue.ToJSON())
	} else {
		fmt.Fprint(os.Stderr, ue.Format(false))
	}
	exit(ue.ExitCode)
}
