// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package cliux provides the terminal styling shared by physioqc's
// human-readable (non-JSON) report output.
package cliux

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
)

var (
	colorSuccess = lipgloss.Color("#2CD7C7")
	colorWarning = lipgloss.Color("#F4D03F")
	colorError   = lipgloss.Color("#E74C3C")
	colorMuted   = lipgloss.Color("#6C7A89")
	colorHeading = lipgloss.Color("#20B9B4")
)

// Styles are the pre-built lipgloss styles physioqc's reports use.
var Styles = struct {
	Heading lipgloss.Style
	OK      lipgloss.Style
	Warn    lipgloss.Style
	Fail    lipgloss.Style
	Muted   lipgloss.Style
}{
	Heading: lipgloss.NewStyle().Bold(true).Foreground(colorHeading),
	OK:      lipgloss.NewStyle().Foreground(colorSuccess),
	Warn:    lipgloss.NewStyle().Foreground(colorWarning),
	Fail:    lipgloss.NewStyle().Bold(true).Foreground(colorError),
	Muted:   lipgloss.NewStyle().Foreground(colorMuted),
}

// OK renders a success line with a check mark.
func OK(format string, args ...any) string {
	return Styles.OK.Render("✓ ") + fmt.Sprintf(format, args...)
}

// Fail renders a failure line with a cross mark.
func Fail(format string, args ...any) string {
	return Styles.Fail.Render("✗ ") + fmt.Sprintf(format, args...)
}

// Heading renders a section heading.
func Heading(text string) string {
	return Styles.Heading.Render(text)
}
