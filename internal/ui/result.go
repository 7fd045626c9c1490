package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/muurk/wsclient/internal/wserr"
)

// ResultType indicates success or failure
type ResultType int

const (
	ResultSuccess ResultType = iota
	ResultFailure
	ResultWarning
)

// Result represents a result box (success, failure, or warning)
type Result struct {
	Type    ResultType
	Title   string  // e.g., "Connection closed"
	Details []Param // Key-value details to display
	Error   error   // Error (for failure results)
	Hint    string  // Troubleshooting text (for failure results)
	Width   int     // Terminal width
}

// NewSuccessResult creates a success result box
func NewSuccessResult(title string, details []Param) *Result {
	return &Result{
		Type:    ResultSuccess,
		Title:   title,
		Details: details,
		Width:   GetTerminalWidth(),
	}
}

// NewFailureResult creates a failure result box. The troubleshooting text
// comes from the error's category.
func NewFailureResult(title string, err error) *Result {
	return &Result{
		Type:  ResultFailure,
		Title: title,
		Error: err,
		Hint:  wserr.Hint(err),
		Width: GetTerminalWidth(),
	}
}

// NewWarningResult creates a warning result box
func NewWarningResult(title string, details []Param) *Result {
	return &Result{
		Type:    ResultWarning,
		Title:   title,
		Details: details,
		Width:   GetTerminalWidth(),
	}
}

// SetWidth sets the terminal width for responsive rendering
func (r *Result) SetWidth(width int) *Result {
	r.Width = width
	return r
}

// AddDetail appends a detail key-value pair
func (r *Result) AddDetail(key, value string) *Result {
	r.Details = append(r.Details, Param{Key: key, Value: value})
	return r
}

// Render returns the styled result box as a string
func (r *Result) Render() string {
	width := clampWidth(r.Width)

	var (
		label string
		color lipgloss.TerminalColor
		title lipgloss.Style
	)
	switch r.Type {
	case ResultFailure:
		label, color, title = FailureMarker+"  FAILED", ErrorColor, ErrorTitleStyle
	case ResultWarning:
		label, color, title = WarningMarker+"  WARNING", WarningColor, WarningTitleStyle
	default:
		label, color, title = SuccessMarker+"  SUCCESS", SuccessColor, SuccessTitleStyle
	}

	lines := []string{"", title.Render(fmt.Sprintf("   %s  ─  %s", label, r.Title)), ""}

	if r.Error != nil {
		lines = append(lines, ErrorMessageStyle.Render("   Error: "+wserr.ShortMessage(r.Error)), "")
	}

	if len(r.Details) > 0 {
		lines = append(lines, renderParams(r.Details, ResultKeyStyle, ResultValueStyle, "   ")...)
		lines = append(lines, "")
	}

	if r.Hint != "" {
		lines = append(lines, r.renderHint(width), "")
	}

	return lipgloss.NewStyle().
		Border(lipgloss.DoubleBorder()).
		BorderForeground(color).
		Width(width-2).
		Padding(0, 2).
		Render(strings.Join(lines, "\n"))
}

// renderHint renders the inner troubleshooting box
func (r *Result) renderHint(width int) string {
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(MutedColor).
		Width(max(40, width-12)).
		Padding(0, 1).
		MarginLeft(3).
		Render(TroubleshootingItemStyle.Render(r.Hint))
}

// String implements fmt.Stringer
func (r *Result) String() string {
	return r.Render()
}
