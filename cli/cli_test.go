package cli

import (
	"bytes"
	"context"
	"errors"
	"io"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nathoo/storyscript/engine"
	"github.com/nathoo/storyscript/engine/conditions"
	"github.com/nathoo/storyscript/engine/state"
	"github.com/nathoo/storyscript/loader"
	"github.com/nathoo/storyscript/types"
)

const labPath = "../loader/testdata/lab.story"

func newTestSession(t *testing.T, dir string) *engine.Session {
	t.Helper()
	cp, err := loader.Load(labPath)
	if err != nil {
		t.Fatalf("loading chapter: %v", err)
	}
	build := func(st *state.Manager) *engine.Engine { return engine.New(st) }
	return engine.NewSession(state.New(cp, nil), build, filepath.Join(dir, "lab.json"), nil)
}

func newTestCLI(t *testing.T, input string) (*CLI, *bytes.Buffer) {
	t.Helper()
	var out bytes.Buffer
	c := &CLI{
		In:  strings.NewReader(input),
		Out: &out,
	}
	return c, &out
}

func run(t *testing.T, input string) string {
	t.Helper()
	c, out := newTestCLI(t, input)
	if err := c.Run(context.Background(), newTestSession(t, t.TempDir())); err != nil {
		t.Fatalf("Run: %v", err)
	}
	return out.String()
}

func TestCLI_TitleAndStartingLocation(t *testing.T) {
	output := run(t, "/quit\n")

	for _, want := range []string{"The Lab", "[Playing bgm: calm]", "Lab Room", "Exits: hallway.", "[Goodbye.]"} {
		if !strings.Contains(output, want) {
			t.Errorf("expected %q in output:\n%s", want, output)
		}
	}
}

func TestCLI_EndOfInputExits(t *testing.T) {
	output := run(t, "look\n")
	if strings.Count(output, "Lab Room") != 2 {
		t.Errorf("expected two descriptions, got:\n%s", output)
	}
}

func TestCLI_Navigation(t *testing.T) {
	output := run(t, "go hallway\n/quit\n")
	if !strings.Contains(output, "Hallway") {
		t.Error("expected hallway description after going there")
	}
}

func TestCLI_UseRunsDialogue(t *testing.T) {
	output := run(t, "use desk\n/quit\n")
	if !strings.Contains(output, "~ Notes ~") {
		t.Error("expected dialogue title")
	}
	if !strings.Contains(output, "Scribbles about a door.") {
		t.Error("expected dialogue line")
	}
}

func TestCLI_HintsAtChangesHere(t *testing.T) {
	output := run(t, "talk about greeting\n/quit\n")
	if !strings.Contains(output, "Guide: Welcome to the lab.") {
		t.Errorf("expected greeting dialogue, got:\n%s", output)
	}
	if !strings.Contains(output, "Something here has changed") {
		t.Error("expected a change hint after the door appeared")
	}
}

func TestCLI_NoHintWhenNothingChanged(t *testing.T) {
	output := run(t, "wait\n/quit\n")
	if strings.Contains(output, "Something here has changed") {
		t.Error("unexpected change hint")
	}
}

func TestCLI_HelpCommand(t *testing.T) {
	output := run(t, "/help\n/quit\n")
	for _, want := range []string{"/save", "/load", "/quit", "collect <item>"} {
		if !strings.Contains(output, want) {
			t.Errorf("expected %q in help output", want)
		}
	}
}

func TestCLI_UnknownMeta(t *testing.T) {
	output := run(t, "/dance\n/quit\n")
	if !strings.Contains(output, "Unknown command: /dance") {
		t.Error("expected unknown command message")
	}
}

func TestCLI_Again(t *testing.T) {
	output := run(t, "look\ng\n/quit\n")
	if n := strings.Count(output, "Lab Room"); n != 3 {
		t.Errorf("expected 3 descriptions, got %d", n)
	}
}

func TestCLI_AgainWithNothingToRepeat(t *testing.T) {
	output := run(t, "again\n/quit\n")
	if !strings.Contains(output, "Nothing to repeat.") {
		t.Error("expected nothing-to-repeat message")
	}
}

func TestCLI_EchoAndComments(t *testing.T) {
	c, out := newTestCLI(t, "# a comment\nwait\n/quit\n")
	c.EchoInput = true
	if err := c.Run(context.Background(), newTestSession(t, t.TempDir())); err != nil {
		t.Fatal(err)
	}
	output := out.String()
	if strings.Contains(output, "a comment") {
		t.Error("comment line should be skipped")
	}
	if !strings.Contains(output, "> wait\nTime passes.") {
		t.Errorf("expected echoed input, got:\n%s", output)
	}
}

func TestCLI_SaveAndLoad(t *testing.T) {
	dir := t.TempDir()

	// Play a bit and save.
	c, out := newTestCLI(t, "collect badge\n/save test\n/quit\n")
	if err := c.Run(context.Background(), newTestSession(t, dir)); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), "Game saved to test.") {
		t.Error("expected save confirmation")
	}

	// Start fresh and load.
	c2, out2 := newTestCLI(t, "/load test\n/state\n/quit\n")
	if err := c2.Run(context.Background(), newTestSession(t, dir)); err != nil {
		t.Fatal(err)
	}
	output := out2.String()
	if !strings.Contains(output, "Game loaded from test (turn 2).") {
		t.Errorf("expected load confirmation, got:\n%s", output)
	}
	if !strings.Contains(output, "[collectibles: [badge]]") {
		t.Errorf("expected collected badge in state dump, got:\n%s", output)
	}
}

func TestCLI_LoadMissing(t *testing.T) {
	output := run(t, "/load nowhere\n/quit\n")
	if !strings.Contains(output, "Load failed") {
		t.Error("expected load failure message")
	}
}

func TestCLI_Trace(t *testing.T) {
	output := run(t, "/trace\nuse desk\n/quit\n")
	if !strings.Contains(output, "[trace]   inspect_desk") {
		t.Errorf("expected applied action in trace, got:\n%s", output)
	}
}

func TestCLI_Quiz(t *testing.T) {
	sess := newTestSession(t, t.TempDir())
	c, out := newTestCLI(t, "5\n2\n")
	c.session = sess
	quiz := sess.Checkpoint().Map.Quizzes["lab_quiz"]

	if err := c.present(context.Background(), engine.Result{Quizzes: []*types.Quiz{quiz}}); err != nil {
		t.Fatal(err)
	}
	output := out.String()
	for _, want := range []string{
		"Guide: Which way is the hallway?",
		"  2. Through the door",
		"Please enter a number between 1 and 2.",
		"Guide: Right!",
		"Quiz complete: 1 of 1 correct.",
	} {
		if !strings.Contains(output, want) {
			t.Errorf("expected %q in output:\n%s", want, output)
		}
	}
	if !sess.Engine.State.HasUserState(engine.AssessmentsList, "lab_quiz") {
		t.Error("expected passed quiz to be recorded")
	}
}

func TestCLI_Ask(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  bool
	}{
		{"yes", "y\n", true},
		{"long yes", "YES\n", true},
		{"no", "n\n", false},
		{"retry", "maybe\nno\n", false},
	}
	q := conditions.Question{Text: "Do you have badge in your collectibles?"}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, out := newTestCLI(t, tt.input)
			got, err := c.Ask(context.Background(), q)
			if err != nil {
				t.Fatalf("Ask: %v", err)
			}
			if got != tt.want {
				t.Errorf("Ask = %v, want %v", got, tt.want)
			}
			if !strings.Contains(out.String(), q.Text+" [y/n]") {
				t.Error("expected question on output")
			}
		})
	}
}

func TestCLI_AskEndOfInput(t *testing.T) {
	c, _ := newTestCLI(t, "")
	_, err := c.Ask(context.Background(), conditions.Question{Text: "?"})
	if !errors.Is(err, io.EOF) {
		t.Errorf("expected io.EOF, got %v", err)
	}
}

func TestCLI_AskCancelled(t *testing.T) {
	r, w := io.Pipe()
	defer w.Close()
	c := &CLI{In: r, Out: io.Discard}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.Ask(ctx, conditions.Question{Text: "?"})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestCLI_InteractiveConditions(t *testing.T) {
	cp, err := loader.Load(labPath)
	if err != nil {
		t.Fatal(err)
	}
	c, _ := newTestCLI(t, "y\n")
	st := state.New(cp, nil)
	ev := conditions.NewEvaluator(conditions.PromptResolver{State: st, Prompter: c})
	e := engine.New(st, engine.WithEvaluator(ev))

	if err := st.SetCurrentLocation("closet"); err != nil {
		t.Fatal(err)
	}
	if _, err := e.ProcessGameActions(context.Background(), []string{"closet_action_3"}); err != nil {
		t.Fatal(err)
	}
	if !st.HasUserState("achievements", "closet_found") {
		t.Error("expected grant after answering yes")
	}
}
