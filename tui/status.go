package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/nathoo/storyscript/types"
)

// locationDisplayName returns a location's declared name, or one derived
// from its ID: "lab_room" -> "Lab Room".
func locationDisplayName(cp *types.Checkpoint, id string) string {
	if l, ok := cp.Map.Locations[id]; ok && l.Name != "" {
		return l.Name
	}
	words := strings.Split(id, "_")
	for i, w := range words {
		if len(w) > 0 {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ")
}

// renderStatusBar produces a full-width inverted status line showing the
// current location, its modes, objective progress, and turn count.
func (m Model) renderStatusBar() string {
	st := m.session.Engine.State
	cp := st.Checkpoint()
	loc := st.CurrentLocation()

	left := " " + locationDisplayName(cp, loc)
	if modes, err := st.LocationModes(loc); err == nil && len(modes) > 0 {
		names := make([]string, len(modes))
		for i, mode := range modes {
			names[i] = mode.String()
		}
		left += " | " + strings.Join(names, ",")
	}

	right := fmt.Sprintf("T:%d ", m.turns)

	// Show objective progress if it fits.
	if total := len(cp.Checklist.Objectives); total > 0 {
		done := 0
		for _, key := range cp.Checklist.Objectives {
			if st.IsObjectiveComplete(key) {
				done++
			}
		}
		candidate := fmt.Sprintf("Obj: %d/%d | T:%d ", done, total, m.turns)
		if lipgloss.Width(left)+lipgloss.Width(candidate)+2 < m.width {
			right = candidate
		}
	}

	gap := m.width - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 0 {
		gap = 0
	}

	bar := left + strings.Repeat(" ", gap) + right
	return styleStatusBar.Width(m.width).Render(bar)
}
