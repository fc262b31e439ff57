package state

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/nathoo/storyscript/types"
)

// Overlay returns a serializable snapshot of the mutable state. Dirty bits
// are not part of it; a restored manager starts fully dirty.
func (m *Manager) Overlay() types.Overlay {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ov := types.Overlay{
		CurrentLocation:    m.current,
		Objectives:         copyBools(m.objectives),
		Tasks:              copyBools(m.tasks),
		TaskVisible:        copyBools(m.taskVisible),
		Locations:          make(map[string]types.LocationOverlay, len(m.locations)),
		Objects:            make(map[string]types.ObjectProperty, len(m.objects)),
		BoundingBoxes:      make(map[string]types.BBoxProperty, len(m.bboxes)),
		CharacterPositions: make(map[string]string, len(m.charPos)),
		Triggered:          make(map[string]string, len(m.triggered)),
		UserState:          make(map[string][]string, len(m.userState)),
	}
	for id, ls := range m.locations {
		lo := types.LocationOverlay{
			Navigation:    sortedKeys(ls.attrs[types.AttrNavigation]),
			TalkTopics:    sortedKeys(ls.attrs[types.AttrTalkTopics]),
			Objects:       sortedKeys(ls.attrs[types.AttrObjects]),
			BoundingBoxes: sortedKeys(ls.attrs[types.AttrBoundingBoxes]),
			Characters:    sortedKeys(ls.attrs[types.AttrCharacters]),
			Collectibles:  sortedKeys(ls.attrs[types.AttrCollectibles]),
			Modes:         []string{},
		}
		for _, mode := range types.AllModes {
			if ls.modes[mode] {
				lo.Modes = append(lo.Modes, mode.String())
			}
		}
		ov.Locations[id] = lo
	}
	for id, o := range m.objects {
		ov.Objects[id] = o
	}
	for id, b := range m.bboxes {
		ov.BoundingBoxes[id] = b
	}
	for id, p := range m.charPos {
		ov.CharacterPositions[id] = p
	}
	for id, loc := range m.triggered {
		ov.Triggered[id] = loc
	}
	for list, set := range m.userState {
		ov.UserState[list] = sortedKeys(set)
	}
	return ov
}

// Restore rebuilds a manager from a saved overlay. Any id in the overlay that
// the checkpoint does not declare is an error, since it means the save
// belongs to a different chapter.
func Restore(cp *types.Checkpoint, ov types.Overlay, log *zap.Logger) (*Manager, error) {
	m := New(cp, log)

	if ov.CurrentLocation != "" {
		if _, ok := m.locations[ov.CurrentLocation]; !ok {
			return nil, fmt.Errorf("restoring current location %q: %w", ov.CurrentLocation, ErrUnknownLocation)
		}
		m.current = ov.CurrentLocation
	}

	for id, lo := range ov.Locations {
		ls, ok := m.locations[id]
		if !ok {
			return nil, fmt.Errorf("restoring location %q: %w", id, ErrUnknownLocation)
		}
		ls.modes = map[types.GameMode]bool{}
		for _, name := range lo.Modes {
			mode, err := types.ParseGameMode(name)
			if err != nil {
				return nil, fmt.Errorf("restoring location %q: %w", id, err)
			}
			ls.modes[mode] = true
		}
		members := map[types.LocationAttr][]string{
			types.AttrNavigation:    lo.Navigation,
			types.AttrTalkTopics:    lo.TalkTopics,
			types.AttrObjects:       lo.Objects,
			types.AttrBoundingBoxes: lo.BoundingBoxes,
			types.AttrCharacters:    lo.Characters,
			types.AttrCollectibles:  lo.Collectibles,
		}
		for attr, ids := range members {
			for _, item := range ids {
				if !declares(cp.Map, attr, item) {
					return nil, fmt.Errorf("restoring location %q: %s %q: %w", id, attr, item, ErrUnknownEntity)
				}
			}
			ls.attrs[attr] = types.NewSet(ids...)
		}
		for mode := range ls.modes {
			m.dirty[id][mode] = true
		}
	}

	for id, o := range ov.Objects {
		if _, ok := m.objects[id]; !ok {
			return nil, fmt.Errorf("restoring object %q: %w", id, ErrUnknownEntity)
		}
		m.objects[id] = o
	}
	for id, b := range ov.BoundingBoxes {
		if _, ok := m.bboxes[id]; !ok {
			return nil, fmt.Errorf("restoring bounding box %q: %w", id, ErrUnknownEntity)
		}
		m.bboxes[id] = b
	}
	for id, pos := range ov.CharacterPositions {
		if _, ok := cp.Map.Characters[id]; !ok {
			return nil, fmt.Errorf("restoring character %q: %w", id, ErrUnknownEntity)
		}
		m.charPos[id] = pos
	}

	for key, done := range ov.Objectives {
		if !cp.Checklist.HasObjective(key) {
			return nil, fmt.Errorf("restoring objective %q: %w", key, ErrUnknownChecklistKey)
		}
		if done {
			m.objectives[key] = true
		}
	}
	for key, done := range ov.Tasks {
		if !cp.Checklist.HasTask(key) {
			return nil, fmt.Errorf("restoring task %q: %w", key, ErrUnknownChecklistKey)
		}
		if done {
			m.tasks[key] = true
		}
	}
	for key, visible := range ov.TaskVisible {
		if !cp.Checklist.HasTask(key) {
			return nil, fmt.Errorf("restoring task %q: %w", key, ErrUnknownChecklistKey)
		}
		m.taskVisible[key] = visible
	}

	for id, loc := range ov.Triggered {
		if _, ok := cp.Map.Actions[id]; !ok {
			return nil, fmt.Errorf("restoring triggered action %q: %w", id, ErrUnknownEntity)
		}
		if _, ok := m.locations[loc]; !ok {
			return nil, fmt.Errorf("restoring triggered action %q at %q: %w", id, loc, ErrUnknownLocation)
		}
		m.triggered[id] = loc
	}
	for list, ids := range ov.UserState {
		for _, item := range ids {
			if !grantable(cp.Map, list, item) {
				return nil, fmt.Errorf("restoring user state %s %q: %w", list, item, ErrUnknownEntity)
			}
		}
		m.userState[list] = types.NewSet(ids...)
	}
	return m, nil
}

// declares reports whether the world map has an entity of the kind a
// location attribute holds.
func declares(w *types.WorldMap, attr types.LocationAttr, id string) bool {
	var ok bool
	switch attr {
	case types.AttrNavigation:
		_, ok = w.Locations[id]
	case types.AttrTalkTopics:
		_, ok = w.Dialogues[id]
	case types.AttrObjects:
		_, ok = w.Objects[id]
	case types.AttrBoundingBoxes:
		_, ok = w.BoundingBoxes[id]
	case types.AttrCharacters:
		_, ok = w.Characters[id]
	case types.AttrCollectibles:
		_, ok = w.Collectibles[id]
	}
	return ok
}

// grantable reports whether a playthrough of this chapter could have put id
// in a user-state list: collected items, passed quizzes, and the items of
// grant actions naming the list.
func grantable(w *types.WorldMap, list, id string) bool {
	if _, ok := w.Collectibles[id]; ok {
		return true
	}
	if _, ok := w.Quizzes[id]; ok {
		return true
	}
	for _, a := range w.Actions {
		if a.Type == types.ActionGrant && a.Params.Key == list && a.Params.ItemID == id {
			return true
		}
	}
	return false
}

func copyBools(in map[string]bool) map[string]bool {
	out := make(map[string]bool, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
