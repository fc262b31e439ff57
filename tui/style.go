package tui

import (
	"strings"
	"unicode"

	"github.com/charmbracelet/lipgloss"
)

// Styles used throughout the TUI.
var (
	styleStatusBar = lipgloss.NewStyle().
			Background(lipgloss.Color("236")).
			Foreground(lipgloss.Color("252")).
			Bold(true)

	styleInputPrompt = lipgloss.NewStyle().
				Foreground(lipgloss.Color("34"))

	styleQuestionPrompt = lipgloss.NewStyle().
				Foreground(lipgloss.Color("214"))

	styleNarrative = lipgloss.NewStyle().
			Foreground(lipgloss.Color("255"))

	styleTitle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("117")).
			Bold(true)

	styleListLabel = lipgloss.NewStyle().
			Bold(true)

	styleExits = lipgloss.NewStyle().
			Foreground(lipgloss.Color("243"))

	styleDialogue = lipgloss.NewStyle().
			Foreground(lipgloss.Color("228"))

	styleChecklist = lipgloss.NewStyle().
			Foreground(lipgloss.Color("150"))

	styleSystem = lipgloss.NewStyle().
			Foreground(lipgloss.Color("243"))

	styleError = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))

	stylePlayerInput = lipgloss.NewStyle().
				Foreground(lipgloss.Color("34"))

	styleTrace = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))
)

// lineKind identifies the type of an output line for styling.
type lineKind int

const (
	kindNarrative lineKind = iota
	kindTitle
	kindList
	kindExits
	kindDialogue
	kindChecklist
	kindSystem
	kindError
	kindTrace
)

// listPrefixes start the lines of a location description that name things.
var listPrefixes = []string{"You see: ", "You notice: ", "Items: ", "People here: ", "You could talk about: "}

// errorPrefixes start the replies to commands that did nothing.
var errorPrefixes = []string{
	"You don't see", "You can't", "I don't understand", "Nothing happens",
	"There is nothing", "There is no one", "Nobody has",
}

// classifyLine determines what kind of output line this is.
func classifyLine(line string) lineKind {
	switch {
	case strings.HasPrefix(line, "[trace]"):
		return kindTrace
	case strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]"):
		return kindSystem
	case strings.HasPrefix(line, "~ ") && strings.HasSuffix(line, " ~"):
		return kindTitle
	case strings.HasPrefix(line, "Exits:"):
		return kindExits
	case listPrefix(line) != "":
		return kindList
	case line == "Objectives:" || line == "Tasks:",
		strings.HasPrefix(line, "  [ ] "), strings.HasPrefix(line, "  [x] "):
		return kindChecklist
	case hasAnyPrefix(line, errorPrefixes):
		return kindError
	case hasSpeaker(line):
		return kindDialogue
	default:
		return kindNarrative
	}
}

func listPrefix(line string) string {
	for _, p := range listPrefixes {
		if strings.HasPrefix(line, p) {
			return p
		}
	}
	return ""
}

func hasAnyPrefix(line string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(line, p) {
			return true
		}
	}
	return false
}

// hasSpeaker checks if a line starts with a speaker name, as in
// "Guide: Welcome to the lab." Names are at most three capitalized words.
func hasSpeaker(line string) bool {
	name, text, ok := strings.Cut(line, ": ")
	if !ok || text == "" {
		return false
	}
	words := strings.Fields(name)
	if len(words) == 0 || len(words) > 3 {
		return false
	}
	for _, w := range words {
		if !unicode.IsUpper([]rune(w)[0]) {
			return false
		}
	}
	return true
}

// styledList renders "You see: desk, door." with the label bold.
func styledList(line string) string {
	prefix := listPrefix(line)
	if prefix == "" {
		return styleNarrative.Render(line)
	}
	return styleListLabel.Render(prefix) + styleNarrative.Render(line[len(prefix):])
}

// styledPlayerInput renders the echoed player input in green with "> " prefix.
func styledPlayerInput(input string) string {
	return stylePlayerInput.Render("> " + input)
}

// styledSystemMsg renders a system message in gray with brackets.
func styledSystemMsg(text string) string {
	return styleSystem.Render("[" + text + "]")
}
