package loader

import (
	"reflect"
	"testing"

	"go.uber.org/zap"
	"pgregory.net/rapid"

	"github.com/nathoo/storyscript/types"
)

// fatalHelper is the subset of *testing.T and *rapid.T that parseOne needs.
type fatalHelper interface {
	Helper()
	Fatalf(format string, args ...any)
}

func parseOne(t fatalHelper, line string) *types.GameAction {
	t.Helper()
	pc := newParseContext(zap.NewNop())
	pc.section = "location"
	a, _, err := parseAction(pc, line, "room", 1)
	if err != nil {
		t.Fatalf("parseAction(%q): %v", line, err)
	}
	return a
}

func TestParseAction_Types(t *testing.T) {
	tests := []struct {
		line   string
		typ    types.ActionType
		params types.ActionParams
	}{
		{"add_item(objects, room, door)", types.ActionAddItem,
			types.ActionParams{Attr: types.AttrObjects, LocationID: "room", ItemID: "door"}},
		{"remove_item(nav, room, hall)", types.ActionRemoveItem,
			types.ActionParams{Attr: types.AttrNavigation, LocationID: "room", ItemID: "hall"}},
		{"add_mode(room, talk)", types.ActionAddMode,
			types.ActionParams{LocationID: "room", Mode: types.ModeTalk}},
		{"move_character(guide, hall, right)", types.ActionMoveCharacter,
			types.ActionParams{CharacterID: "guide", LocationID: "hall", Position: "right"}},
		{"move_object(desk, -5, 30)", types.ActionMoveObject,
			types.ActionParams{ItemID: "desk", X: -5, Y: 30}},
		{"set_task(chores, false)", types.ActionSetTask,
			types.ActionParams{Key: "chores", Value: false}},
		{"set_task(chores, true)", types.ActionSetTask,
			types.ActionParams{Key: "chores", Value: true}},
		{"play_bgm(theme)", types.ActionPlayBGM, types.ActionParams{Key: "theme"}},
		{"collect(badge)", types.ActionCollect, types.ActionParams{ItemID: "badge"}},
		{"grant(achievements, explorer)", types.ActionGrant,
			types.ActionParams{Key: "achievements", ItemID: "explorer"}},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			a := parseOne(t, tt.line)
			if a.Type != tt.typ {
				t.Errorf("Type = %s, want %s", a.Type, tt.typ)
			}
			if a.Params != tt.params {
				t.Errorf("Params = %+v, want %+v", a.Params, tt.params)
			}
			if a.Source != tt.line {
				t.Errorf("Source = %q", a.Source)
			}
		})
	}
}

func TestParseAction_IDAndRepeatable(t *testing.T) {
	pc := newParseContext(zap.NewNop())

	a, explicit, err := parseAction(pc, "wave: play_sfx*(whoosh)", "room", 1)
	if err != nil {
		t.Fatalf("parseAction: %v", err)
	}
	if !explicit || a.ID != "wave" || !a.Repeatable {
		t.Errorf("action = %+v, explicit = %v", a, explicit)
	}

	b, explicit, err := parseAction(pc, "play_sfx(whoosh)", "room", 2)
	if err != nil {
		t.Fatalf("parseAction: %v", err)
	}
	if explicit || b.ID != "room_action_1" || b.Repeatable {
		t.Errorf("action = %+v, explicit = %v", b, explicit)
	}

	c, _, _ := parseAction(pc, "play_sfx(whoosh)", "", 3)
	if c.ID != "global_action_2" {
		t.Errorf("ID = %q, want global_action_2", c.ID)
	}
}

func TestParseAction_Conditions(t *testing.T) {
	a := parseOne(t, "goto_location(hall) if checklist.done AND !user.badge AND user.achievements.explorer")
	want := []types.ActionCondition{
		{Kind: types.ChecklistState, Params: []string{"done"}, Expected: true},
		{Kind: types.UserState, Params: []string{"collectibles", "badge"}, Expected: false},
		{Kind: types.UserState, Params: []string{"achievements", "explorer"}, Expected: true},
	}
	if !reflect.DeepEqual(a.Conditions, want) {
		t.Errorf("Conditions = %+v, want %+v", a.Conditions, want)
	}
	if got := a.Conditions[1].String(); got != "!user.collectibles.badge" {
		t.Errorf("String() = %q", got)
	}
}

func TestParseAction_AssertsReferences(t *testing.T) {
	pc := newParseContext(zap.NewNop())
	if _, _, err := parseAction(pc, "add_item(talkTopics, room, chat) if checklist.x", "room", 1); err != nil {
		t.Fatalf("parseAction: %v", err)
	}
	got := map[RefKind]string{}
	for _, a := range pc.refs.assertions {
		got[a.kind] = a.id
	}
	want := map[RefKind]string{RefLocation: "room", RefDialogue: "chat", RefChecklist: "x"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("assertions = %v, want %v", got, want)
	}
}

func TestPropertyNegationFlipsExpected(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		name := rapid.SampledFrom([]string{"goto_location", "show_dialogue", "start_quiz"}).Draw(t, "action")
		arg := rapid.StringMatching(`[a-z][a-z0-9_]{0,8}`).Draw(t, "arg")
		key := rapid.StringMatching(`[a-z][a-z0-9_]{0,8}`).Draw(t, "key")

		plain := parseOne(t, name+"("+arg+") if checklist."+key)
		negated := parseOne(t, name+"("+arg+") if !checklist."+key)

		if plain.Conditions[0].Expected == negated.Conditions[0].Expected {
			t.Fatalf("negation did not flip expected: %v vs %v", plain.Conditions[0], negated.Conditions[0])
		}
		if !reflect.DeepEqual(plain.Conditions[0].Params, negated.Conditions[0].Params) {
			t.Fatalf("params differ: %v vs %v", plain.Conditions[0].Params, negated.Conditions[0].Params)
		}
	})
}

func TestPropertyParseIdempotent(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		id := rapid.StringMatching(`[a-z][a-z0-9_]{0,8}`).Draw(t, "id")
		neg := rapid.SampledFrom([]string{"", "!"}).Draw(t, "neg")
		star := rapid.SampledFrom([]string{"", "*"}).Draw(t, "star")
		line := id + ": goto_location" + star + "(hall) if " + neg + "user.items.key"

		if a, b := parseOne(t, line), parseOne(t, line); !reflect.DeepEqual(a, b) {
			t.Fatalf("parsing %q twice differs: %+v vs %+v", line, a, b)
		}
	})
}
