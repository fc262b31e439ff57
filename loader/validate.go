package loader

import (
	"github.com/nathoo/storyscript/types"
)

// RefKind is the kind of entity a deferred reference must resolve to.
type RefKind string

const (
	RefLocation    RefKind = "location"
	RefObjective   RefKind = "objective"
	RefTask        RefKind = "task"
	RefChecklist   RefKind = "checklist item"
	RefObject      RefKind = "object"
	RefBoundingBox RefKind = "bounding box"
	RefCharacter   RefKind = "character"
	RefCollectible RefKind = "collectible"
	RefBGM         RefKind = "bgm"
	RefSFX         RefKind = "sfx"
	RefDialogue    RefKind = "dialogue"
	RefQuiz        RefKind = "quiz"
	RefAction      RefKind = "action"
)

type assertion struct {
	kind    RefKind
	id      string
	action  types.ActionType
	section string
}

// Validator collects "id must exist as kind" assertions while a document is
// parsed and checks them all once parsing is done, so entities may be
// declared after their first use.
type Validator struct {
	assertions []assertion
}

// Assert records that id must resolve to an entity of the given kind.
// action is the action type that demanded the reference, if any.
func (v *Validator) Assert(kind RefKind, id string, action types.ActionType, section string) {
	v.assertions = append(v.assertions, assertion{kind: kind, id: id, action: action, section: section})
}

// Len returns the number of recorded assertions.
func (v *Validator) Len() int {
	return len(v.assertions)
}

// Verify checks every assertion in the order it was recorded and returns a
// *ReferenceError for the first one that fails.
func (v *Validator) Verify(world *types.WorldMap, checklist *types.Checklist) error {
	for _, a := range v.assertions {
		if reason := check(a, world, checklist); reason != "" {
			return &ReferenceError{
				Kind:       a.kind,
				ID:         a.id,
				ActionType: a.action,
				Section:    a.section,
				Reason:     reason,
			}
		}
	}
	return nil
}

// check returns an empty string when the assertion holds, otherwise the
// reason it failed.
func check(a assertion, world *types.WorldMap, checklist *types.Checklist) string {
	const missing = "is not declared"
	var ok bool
	switch a.kind {
	case RefLocation:
		_, ok = world.Locations[a.id]
	case RefObjective:
		ok = checklist.HasObjective(a.id)
	case RefTask:
		ok = checklist.HasTask(a.id)
	case RefChecklist:
		ok = checklist.HasObjective(a.id) || checklist.HasTask(a.id)
	case RefObject:
		_, ok = world.Objects[a.id]
	case RefBoundingBox:
		_, ok = world.BoundingBoxes[a.id]
	case RefCharacter:
		_, ok = world.Characters[a.id]
	case RefCollectible:
		_, ok = world.Collectibles[a.id]
	case RefDialogue:
		_, ok = world.Dialogues[a.id]
	case RefQuiz:
		_, ok = world.Quizzes[a.id]
	case RefAction:
		_, ok = world.Actions[a.id]
	case RefBGM, RefSFX:
		switch n := countSounds(world, types.SoundKind(a.kind), a.id); {
		case n == 0:
			return missing
		case n > 1:
			return "is declared more than once"
		}
		return ""
	default:
		return "has an unknown reference kind"
	}
	if !ok {
		return missing
	}
	return ""
}

func countSounds(world *types.WorldMap, kind types.SoundKind, key string) int {
	n := 0
	for _, s := range world.SoundAssets {
		if s.Kind == kind && s.Key == key {
			n++
		}
	}
	return n
}
