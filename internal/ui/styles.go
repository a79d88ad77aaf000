package ui

import "github.com/charmbracelet/lipgloss"

// Colors used in the application.
var (
	colorPrimary   = lipgloss.Color("62")  // Purple
	colorSecondary = lipgloss.Color("241") // Gray
	colorHighlight = lipgloss.Color("212") // Pink
	colorSuccess   = lipgloss.Color("78")  // Green
	colorError     = lipgloss.Color("203") // Red
)

// Title style for the application header.
var Title = lipgloss.NewStyle().
	Bold(true).
	Foreground(lipgloss.Color("255")).
	Background(colorPrimary).
	Padding(0, 1)

// Label style for form field labels.
var Label = lipgloss.NewStyle().
	Foreground(colorSecondary).
	Width(12)

// FocusedLabel style for the label of the focused field.
var FocusedLabel = Label.
	Foreground(colorHighlight).
	Bold(true)

// Card style for the status box.
var Card = lipgloss.NewStyle().
	Border(lipgloss.RoundedBorder()).
	BorderForeground(colorPrimary).
	Padding(0, 1)

// SuccessLine style for successful history entries.
var SuccessLine = lipgloss.NewStyle().
	Foreground(colorSuccess)

// FailureLine style for failed history entries.
var FailureLine = lipgloss.NewStyle().
	Foreground(colorError)

// StatusBar style for the bottom key hint bar.
var StatusBar = lipgloss.NewStyle().
	Foreground(lipgloss.Color("255")).
	Background(lipgloss.Color("236")).
	Padding(0, 1)

// StatusBarKey style for key hints in status bar.
var StatusBarKey = lipgloss.NewStyle().
	Foreground(colorHighlight).
	Bold(true)

// StatusBarText style for descriptive text in status bar.
var StatusBarText = lipgloss.NewStyle().
	Foreground(colorSecondary)
