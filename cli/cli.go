// Package cli provides terminal I/O, output formatting, and meta-command
// dispatch for a storyscript playthrough.
package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/nathoo/storyscript/engine"
	"github.com/nathoo/storyscript/engine/conditions"
	"github.com/nathoo/storyscript/engine/effects"
	"github.com/nathoo/storyscript/engine/parser"
	"github.com/nathoo/storyscript/types"
)

// CLI handles terminal interaction with the player. It also answers
// interactive condition prompts, so it can be handed to a PromptResolver.
type CLI struct {
	In        io.Reader
	Out       io.Writer
	Trace     bool
	EchoInput bool // echo each input line after the prompt (for script playback)

	session *engine.Session
	lastCmd string // for "again"/"g" repeat

	startOnce sync.Once
	lines     chan string
	askMu     sync.Mutex // one prompt on screen at a time
}

// New creates a CLI on the process terminal.
func New() *CLI {
	return &CLI{In: os.Stdin, Out: os.Stdout}
}

// Run plays the session until input ends or the player quits. It shows the
// chapter title, runs the starting location's entry actions and describes
// it, then loops: prompt → input → dispatch → output.
func (c *CLI) Run(ctx context.Context, s *engine.Session) error {
	c.session = s
	c.printLine(s.Checkpoint().Title)
	c.printLine("")

	res, err := s.Engine.Start(ctx)
	if err != nil {
		return fmt.Errorf("starting chapter: %w", err)
	}
	if err := c.present(ctx, res); err != nil {
		return err
	}
	c.step(ctx, "look")

	for {
		c.print("> ")
		input, err := c.readLine(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		// Skip comment lines (for script files).
		if strings.HasPrefix(input, "#") {
			continue
		}
		if c.EchoInput {
			c.printLine(input)
		}

		// Meta-commands start with '/'.
		if strings.HasPrefix(input, "/") {
			if c.handleMeta(ctx, input) {
				return nil // /quit
			}
			continue
		}

		// "again" / "g" repeats the last game command.
		lower := strings.ToLower(input)
		if lower == "again" || lower == "g" {
			if c.lastCmd == "" {
				c.printLine("Nothing to repeat.")
				continue
			}
			input = c.lastCmd
		} else {
			c.lastCmd = input
		}

		c.step(ctx, input)
	}
}

// step runs one game command and renders what it changed.
func (c *CLI) step(ctx context.Context, input string) {
	res, err := c.session.Engine.Step(ctx, input)
	if err != nil {
		c.printSystem(fmt.Sprintf("Error: %v", err))
	}
	if err := c.present(ctx, res); err != nil {
		c.printSystem(fmt.Sprintf("Error: %v", err))
	}
	if c.Trace {
		c.printTrace(res)
	}
	if c.session.Settle() && !describes(input) {
		c.printSystem("Something here has changed. Type look to see it.")
	}
}

// describes reports whether a command already prints the location.
func describes(input string) bool {
	switch parser.Parse(input).Verb {
	case parser.VerbLook, parser.VerbGo:
		return true
	}
	return false
}

// present prints a result and runs the quizzes it started.
func (c *CLI) present(ctx context.Context, res engine.Result) error {
	for _, snd := range res.Sounds {
		c.printSystem(fmt.Sprintf("Playing %s: %s", snd.Kind, snd.Key))
	}
	c.printResult(res)
	for _, q := range res.Quizzes {
		if err := c.runQuiz(ctx, q); err != nil {
			return err
		}
	}
	return nil
}

func (c *CLI) runQuiz(ctx context.Context, q *types.Quiz) error {
	correct := 0
	for _, question := range q.Questions {
		c.printLine(c.speakerLine(question.Speaker, question.Prompt))
		for i, opt := range question.Options {
			c.printLine(fmt.Sprintf("  %d. %s", i+1, opt.Text))
		}
		choice, err := c.readChoice(ctx, len(question.Options))
		if err != nil {
			return fmt.Errorf("quiz %s: %w", q.ID, err)
		}
		ok, reaction := engine.Grade(question, choice)
		if ok {
			correct++
		}
		if reaction != "" {
			c.printLine(c.speakerLine(question.Speaker, reaction))
		}
	}
	c.session.Engine.FinishQuiz(q, correct)
	c.printSystem(fmt.Sprintf("Quiz complete: %d of %d correct.", correct, len(q.Questions)))
	return nil
}

// readChoice reads a 1-based option number and returns it zero-based.
func (c *CLI) readChoice(ctx context.Context, n int) (int, error) {
	for {
		c.print(fmt.Sprintf("Answer (1-%d): ", n))
		line, err := c.readLine(ctx)
		if err != nil {
			return 0, err
		}
		choice, err := strconv.Atoi(strings.TrimSpace(line))
		if err == nil && choice >= 1 && choice <= n {
			return choice - 1, nil
		}
		c.printLine(fmt.Sprintf("Please enter a number between 1 and %d.", n))
	}
}

func (c *CLI) speakerLine(id, text string) string {
	if ch, ok := c.session.Checkpoint().Map.Characters[id]; ok && ch.Name != "" {
		return ch.Name + ": " + text
	}
	if id != "" {
		return id + ": " + text
	}
	return text
}

// Ask implements conditions.Prompter with a yes/no question on the terminal.
func (c *CLI) Ask(ctx context.Context, q conditions.Question) (bool, error) {
	c.askMu.Lock()
	defer c.askMu.Unlock()
	for {
		c.print(q.Text + " [y/n] ")
		line, err := c.readLine(ctx)
		if err != nil {
			return false, err
		}
		switch strings.ToLower(strings.TrimSpace(line)) {
		case "y", "yes":
			return true, nil
		case "n", "no":
			return false, nil
		}
		c.printLine("Please answer y or n.")
	}
}

// readLine returns the next input line, io.EOF when input is exhausted, or
// the context error if ctx ends first.
func (c *CLI) readLine(ctx context.Context) (string, error) {
	c.startOnce.Do(func() {
		c.lines = make(chan string)
		go func() {
			defer close(c.lines)
			scanner := bufio.NewScanner(c.In)
			for scanner.Scan() {
				c.lines <- scanner.Text()
			}
		}()
	})
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case line, ok := <-c.lines:
		if !ok {
			return "", io.EOF
		}
		return line, nil
	}
}

// handleMeta dispatches meta-commands. Returns true if the game should exit.
func (c *CLI) handleMeta(ctx context.Context, input string) bool {
	parts := strings.Fields(input)
	cmd := parts[0]
	var arg string
	if len(parts) > 1 {
		arg = parts[1]
	}

	switch cmd {
	case "/quit", "/exit":
		c.printSystem("Goodbye.")
		return true

	case "/save":
		c.cmdSave(arg)

	case "/load":
		c.cmdLoad(ctx, arg)

	case "/help":
		c.cmdHelp()

	case "/state":
		c.cmdState()

	case "/trace":
		c.Trace = !c.Trace
		if c.Trace {
			c.printSystem("Trace output enabled.")
		} else {
			c.printSystem("Trace output disabled.")
		}

	default:
		c.printSystem(fmt.Sprintf("Unknown command: %s. Type /help for available commands.", cmd))
	}

	return false
}

func (c *CLI) cmdSave(name string) {
	if _, err := c.session.Save(name); err != nil {
		c.printSystem(fmt.Sprintf("Save failed: %v", err))
		return
	}
	if name == "" {
		name = "the default slot"
	}
	c.printSystem(fmt.Sprintf("Game saved to %s.", name))
}

func (c *CLI) cmdLoad(ctx context.Context, name string) {
	sd, err := c.session.Load(name)
	if err != nil {
		c.printSystem(fmt.Sprintf("Load failed: %v", err))
		return
	}
	if name == "" {
		name = "the default slot"
	}
	c.printSystem(fmt.Sprintf("Game loaded from %s (turn %d).", name, sd.Turn))

	// Show current location after loading.
	c.step(ctx, "look")
}

func (c *CLI) cmdHelp() {
	help := []string{
		"System:",
		"  /save [name]  - Save game (default: chapter slot)",
		"  /load [name]  - Load game (default: chapter slot)",
		"  /quit         - Exit game",
		"  /help         - Show this help",
		"  /state        - Debug: dump current state",
		"  /trace        - Toggle debug trace output",
		"",
		"Game commands:",
		"  look (l)               - Describe where you are",
		"  go <place>             - Move somewhere nearby",
		"  use <thing> (x, open)  - Interact with something",
		"  talk about <topic>     - Start a conversation",
		"  collect <item> (take)  - Pick something up",
		"  tasks (j)              - Show objectives and tasks",
		"  wait (z)               - Let time pass",
		"  again (g)              - Repeat your last command",
	}
	for _, line := range help {
		c.printLine(line)
	}
}

func (c *CLI) cmdState() {
	e := c.session.Engine
	loc := e.State.CurrentLocation()
	c.printSystem(fmt.Sprintf("Turn: %d", e.Turns()))
	c.printSystem(fmt.Sprintf("Location: %s", loc))
	if modes, err := e.State.LocationModes(loc); err == nil {
		c.printSystem(fmt.Sprintf("Modes: %v", modes))
	}
	for _, list := range []string{effects.CollectiblesList, engine.AssessmentsList} {
		if ids := e.State.UserState(list); len(ids) > 0 {
			c.printSystem(fmt.Sprintf("%s: %v", list, ids))
		}
	}
}

func (c *CLI) printTrace(res engine.Result) {
	if len(res.Applied) > 0 {
		c.printSystem(fmt.Sprintf("[trace] Actions: %d", len(res.Applied)))
		for _, id := range res.Applied {
			c.printSystem(fmt.Sprintf("[trace]   %s", id))
		}
	}
	if len(res.Quizzes) > 0 {
		c.printSystem(fmt.Sprintf("[trace] Quizzes: %d", len(res.Quizzes)))
	}
}

func (c *CLI) printResult(res engine.Result) {
	for _, line := range res.Output {
		c.printLine(line)
	}
}

func (c *CLI) printLine(text string) {
	fmt.Fprintln(c.Out, text)
}

func (c *CLI) print(text string) {
	fmt.Fprint(c.Out, text)
}

func (c *CLI) printSystem(text string) {
	fmt.Fprintf(c.Out, "[%s]\n", text)
}
