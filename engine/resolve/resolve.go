// Package resolve maps names typed by the player to entity ids visible in
// the current location.
package resolve

import (
	"fmt"
	"sort"
	"strings"

	"github.com/nathoo/storyscript/engine/state"
	"github.com/nathoo/storyscript/types"
)

// Scope selects which entities of the current location a name may refer to.
type Scope int

const (
	// Interactive covers objects and bounding boxes.
	Interactive Scope = iota
	Destinations
	Topics
	Collectibles
	Characters
)

// AmbiguityError indicates multiple entities matched a name.
type AmbiguityError struct {
	Name       string
	Candidates []string
}

func (e *AmbiguityError) Error() string {
	names := strings.Join(e.Candidates, ", ")
	return fmt.Sprintf("which %s? (%s)", e.Name, names)
}

// NotFoundError indicates no entity matched a name.
type NotFoundError struct {
	Name string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("you don't see %q here", e.Name)
}

// candidate is an id and the display names it answers to.
type candidate struct {
	id    string
	names []string
}

// Resolve maps a name to the id of an entity in scope at the current
// location.
func Resolve(st *state.Manager, scope Scope, name string) (string, error) {
	cands, err := candidates(st, scope)
	if err != nil {
		return "", err
	}

	nameLower := strings.ToLower(strings.TrimSpace(name))
	var matches []string
	for _, c := range cands {
		// An exact id wins outright.
		if c.id == nameLower {
			return c.id, nil
		}
		if matchesName(c, nameLower) {
			matches = append(matches, c.id)
		}
	}

	switch len(matches) {
	case 0:
		return "", &NotFoundError{Name: name}
	case 1:
		return matches[0], nil
	default:
		sort.Strings(matches)
		return "", &AmbiguityError{Name: name, Candidates: matches}
	}
}

// Visible returns the ids in scope at the current location.
func Visible(st *state.Manager, scope Scope) []string {
	cands, err := candidates(st, scope)
	if err != nil {
		return nil
	}
	ids := make([]string, len(cands))
	for i, c := range cands {
		ids[i] = c.id
	}
	return ids
}

func candidates(st *state.Manager, scope Scope) ([]candidate, error) {
	loc := st.CurrentLocation()
	wm := st.Checkpoint().Map

	attrs := map[Scope][]types.LocationAttr{
		Interactive:  {types.AttrObjects, types.AttrBoundingBoxes},
		Destinations: {types.AttrNavigation},
		Topics:       {types.AttrTalkTopics},
		Collectibles: {types.AttrCollectibles},
		Characters:   {types.AttrCharacters},
	}[scope]

	var out []candidate
	for _, attr := range attrs {
		ids, err := st.GetLocationAttr(attr, loc)
		if err != nil {
			return nil, err
		}
		for _, id := range ids {
			c := candidate{id: id}
			switch attr {
			case types.AttrNavigation:
				if l, ok := wm.Locations[id]; ok && l.Name != "" {
					c.names = append(c.names, l.Name)
				}
			case types.AttrTalkTopics:
				if d, ok := wm.Dialogues[id]; ok && d.Title != "" {
					c.names = append(c.names, d.Title)
				}
			case types.AttrCharacters:
				if ch, ok := wm.Characters[id]; ok && ch.Name != "" {
					c.names = append(c.names, ch.Name)
				}
			}
			out = append(out, c)
		}
	}
	return out, nil
}

// matchesName checks a candidate against the query (case-insensitive).
// Supports exact display-name match, word-based partial match, and
// underscore normalisation of ids.
func matchesName(c candidate, nameLower string) bool {
	idLower := strings.ToLower(c.id)
	if idLower == nameLower {
		return true
	}
	// "old desk" matches id "old_desk".
	if strings.ReplaceAll(nameLower, " ", "_") == idLower {
		return true
	}
	names := append([]string{strings.ReplaceAll(idLower, "_", " ")}, c.names...)
	for _, n := range names {
		n = strings.ToLower(n)
		if n == nameLower {
			return true
		}
		// Query matches any word: "door" matches "iron door".
		for _, word := range strings.Fields(n) {
			if word == nameLower {
				return true
			}
		}
	}
	return false
}
