// Package dialogue implements talk topics and playback of branching
// dialogues.
package dialogue

import (
	"fmt"

	"github.com/nathoo/storyscript/engine/state"
	"github.com/nathoo/storyscript/types"
)

// AvailableTopics returns the sorted dialogue ids a location currently
// offers in talk mode.
func AvailableTopics(st *state.Manager, locationID string) []string {
	if !st.HasLocationMode(locationID, types.ModeTalk) {
		return nil
	}
	ids, err := st.GetLocationAttr(types.AttrTalkTopics, locationID)
	if err != nil {
		return nil
	}
	var result []string
	for _, id := range ids {
		if _, ok := st.Checkpoint().Map.Dialogues[id]; ok {
			result = append(result, id)
		}
	}
	return result
}

// SelectTopic returns the dialogue for a topic offered by the location.
// It reports false when the topic is not available there.
func SelectTopic(st *state.Manager, locationID, topicID string) (*types.Dialogue, bool) {
	for _, id := range AvailableTopics(st, locationID) {
		if id == topicID {
			return st.Checkpoint().Map.Dialogues[id], true
		}
	}
	return nil, false
}

// Line is a dialogue line together with where it was read from.
type Line struct {
	Part  string
	Index int
	types.DialogueLine
}

// Cursor walks a dialogue one line at a time. A line with a goto jumps to
// the first line of the target part; a part that runs out without a goto
// ends the dialogue. Cycles are legal, so the caller bounds playback.
type Cursor struct {
	d    *types.Dialogue
	part string
	idx  int
	done bool
}

// NewCursor returns a cursor positioned at the first declared part.
func NewCursor(d *types.Dialogue) *Cursor {
	c := &Cursor{d: d}
	if len(d.PartOrder) == 0 {
		c.done = true
		return c
	}
	c.part = d.PartOrder[0]
	return c
}

// Start repositions the cursor at the first line of part.
func (c *Cursor) Start(part string) error {
	if _, ok := c.d.Content[part]; !ok {
		return fmt.Errorf("dialogue %q has no part %q", c.d.ID, part)
	}
	c.part, c.idx, c.done = part, 0, false
	return nil
}

// Next returns the line under the cursor and advances past it. It reports
// false once the dialogue has ended.
func (c *Cursor) Next() (Line, bool) {
	if c.done {
		return Line{}, false
	}
	lines := c.d.Content[c.part]
	if c.idx >= len(lines) {
		c.done = true
		return Line{}, false
	}
	l := Line{Part: c.part, Index: c.idx, DialogueLine: lines[c.idx]}
	if l.GotoPart != "" {
		c.part, c.idx = l.GotoPart, 0
	} else {
		c.idx++
	}
	return l, true
}

// Done reports whether the dialogue has ended.
func (c *Cursor) Done() bool {
	return c.done
}

// Play collects the lines of one playback. It stops when the dialogue ends
// or a goto returns to a part already shown, since gotos may loop.
func Play(d *types.Dialogue) []Line {
	c := NewCursor(d)
	seen := map[string]bool{}
	var out []Line
	for {
		l, ok := c.Next()
		if !ok {
			break
		}
		if l.Index == 0 {
			if seen[l.Part] {
				break
			}
			seen[l.Part] = true
		}
		out = append(out, l)
	}
	return out
}
