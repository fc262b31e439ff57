package dialogue

import (
	"testing"

	"github.com/nathoo/storyscript/engine/state"
	"github.com/nathoo/storyscript/loader"
	"github.com/nathoo/storyscript/types"
)

func labState(t *testing.T) *state.Manager {
	t.Helper()
	cp, err := loader.Load("../../loader/testdata/lab.story")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	return state.New(cp, nil)
}

func TestAvailableTopics(t *testing.T) {
	st := labState(t)

	topics := AvailableTopics(st, "room")
	if len(topics) != 1 || topics[0] != "greeting" {
		t.Errorf("room topics = %v, want [greeting]", topics)
	}
	if got := AvailableTopics(st, "hallway"); got != nil {
		t.Errorf("hallway has no talk mode, got %v", got)
	}
}

func TestAvailableTopics_FollowsState(t *testing.T) {
	st := labState(t)

	if err := st.AddLocationAttr(types.AttrTalkTopics, "room", "desk_notes"); err != nil {
		t.Fatal(err)
	}
	topics := AvailableTopics(st, "room")
	if len(topics) != 2 || topics[0] != "desk_notes" || topics[1] != "greeting" {
		t.Errorf("topics = %v, want [desk_notes greeting]", topics)
	}

	if err := st.RemoveLocationMode("room", types.ModeTalk); err != nil {
		t.Fatal(err)
	}
	if got := AvailableTopics(st, "room"); got != nil {
		t.Errorf("topics after talk removed = %v, want none", got)
	}
}

func TestSelectTopic(t *testing.T) {
	st := labState(t)

	d, ok := SelectTopic(st, "room", "greeting")
	if !ok || d.ID != "greeting" {
		t.Fatalf("SelectTopic(greeting) = %v, %v", d, ok)
	}
	if _, ok := SelectTopic(st, "room", "desk_notes"); ok {
		t.Error("desk_notes is not a room topic")
	}
}

func TestCursor_FollowsGoto(t *testing.T) {
	st := labState(t)
	d := st.Checkpoint().Map.Dialogues["greeting"]

	c := NewCursor(d)
	var lines []Line
	for len(lines) < 5 {
		l, ok := c.Next()
		if !ok {
			t.Fatalf("dialogue ended after %d lines", len(lines))
		}
		lines = append(lines, l)
	}
	want := []struct {
		part string
		text string
	}{
		{"start", "Welcome to the lab."},
		{"start", "Take a look around."},
		{"tour", "The desk is a mess."},
		{"start", "Welcome to the lab."},
		{"start", "Take a look around."},
	}
	if len(lines) != len(want) {
		t.Fatalf("got %d lines, want %d", len(lines), len(want))
	}
	for i, w := range want {
		if lines[i].Part != w.part || lines[i].Text != w.text {
			t.Errorf("line %d = %s/%q, want %s/%q", i, lines[i].Part, lines[i].Text, w.part, w.text)
		}
	}
	if lines[0].Speaker == nil || lines[0].Speaker.CharacterID != "guide" {
		t.Errorf("first line speaker = %+v, want guide", lines[0].Speaker)
	}
}

func TestPlay_StopsAtRevisitedPart(t *testing.T) {
	st := labState(t)

	lines := Play(st.Checkpoint().Map.Dialogues["greeting"])
	if len(lines) != 3 {
		t.Fatalf("got %d lines, want 3", len(lines))
	}
	if last := lines[2]; last.Part != "tour" || last.GotoPart != "start" {
		t.Errorf("last line = %s -> %s, want tour -> start", last.Part, last.GotoPart)
	}

	notes := Play(st.Checkpoint().Map.Dialogues["desk_notes"])
	if len(notes) != 1 || notes[0].Text != "Scribbles about a door." {
		t.Errorf("desk_notes playback = %+v", notes)
	}
}

func TestCursor_EndsWithoutGoto(t *testing.T) {
	st := labState(t)
	c := NewCursor(st.Checkpoint().Map.Dialogues["desk_notes"])

	l, ok := c.Next()
	if !ok || l.Text != "Scribbles about a door." {
		t.Fatalf("Next = %+v, %v", l, ok)
	}
	if len(l.Actions) != 1 || l.Actions[0] != "mark_read" {
		t.Errorf("attached actions = %v, want [mark_read]", l.Actions)
	}
	if _, ok := c.Next(); ok {
		t.Error("dialogue should have ended")
	}
	if !c.Done() {
		t.Error("Done = false after the last line")
	}
}

func TestCursor_Start(t *testing.T) {
	st := labState(t)
	c := NewCursor(st.Checkpoint().Map.Dialogues["greeting"])

	if err := c.Start("tour"); err != nil {
		t.Fatalf("Start(tour): %v", err)
	}
	l, ok := c.Next()
	if !ok || l.Part != "tour" || l.GotoPart != "start" {
		t.Errorf("Next after Start(tour) = %+v, %v", l, ok)
	}
	if err := c.Start("missing"); err == nil {
		t.Error("expected error for unknown part")
	}
}

func TestCursor_EmptyDialogue(t *testing.T) {
	c := NewCursor(&types.Dialogue{ID: "empty"})
	if _, ok := c.Next(); ok || !c.Done() {
		t.Error("empty dialogue should be done immediately")
	}
}
