package tui

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/nathoo/storyscript/engine"
	"github.com/nathoo/storyscript/engine/effects"
	"github.com/nathoo/storyscript/engine/parser"
	"github.com/nathoo/storyscript/types"
)

// rawLine stores an unstyled output line with its classification,
// so we can re-wrap and re-style when the terminal is resized.
type rawLine struct {
	text     string
	kind     lineKind
	isInput  bool // true for echoed player input
	isSystem bool // true for system messages
}

// quizRun tracks the quizzes waiting for answers. The first one is shown.
type quizRun struct {
	queue    []*types.Quiz
	question int
	correct  int
}

func (q quizRun) active() bool { return len(q.queue) > 0 }

func (q quizRun) current() types.QuizQuestion {
	return q.queue[0].Questions[q.question]
}

// Model is the Bubble Tea model for a storyscript playthrough.
//
// Engine calls run in commands off the update loop so that condition
// questions can be answered while an action chain waits on them. At most
// one engine call runs at a time; busy is set until its stepDoneMsg arrives.
type Model struct {
	ctx      context.Context
	session  *engine.Session
	prompter *Prompter // nil unless conditions are asked interactively

	viewport viewport.Model
	input    textinput.Model
	history  *History

	rawLines []rawLine // accumulated narrative lines (unstyled, for re-wrapping)

	width    int
	height   int
	ready    bool
	trace    bool
	quitting bool
	busy     bool
	pending  *promptReq
	quiz     quizRun
	turns    int
	lastCmd  string
}

// gameOutputMsg carries output lines into the narrative.
type gameOutputMsg struct {
	input    string   // echoed player input (empty for engine output)
	lines    []string // output lines
	isSystem bool     // true for meta-command output
}

// stepDoneMsg reports the end of an engine call.
type stepDoneMsg struct {
	input string
	res   engine.Result
	err   error
	turns int
}

// New creates a TUI model for the session. p may be nil when conditions
// are not asked interactively.
func New(ctx context.Context, s *engine.Session, p *Prompter) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Focus()
	ti.CharLimit = 256
	ti.PromptStyle = styleInputPrompt

	m := Model{
		ctx:      ctx,
		session:  s,
		prompter: p,
		input:    ti,
		history:  NewHistory(100),
		busy:     true, // Init starts the chapter
	}
	return m.appendOutput(gameOutputMsg{lines: []string{"~ " + s.Checkpoint().Title + " ~"}})
}

// Run starts the Bubble Tea program.
func Run(ctx context.Context, s *engine.Session, p *Prompter) error {
	m := New(ctx, s, p)
	prog := tea.NewProgram(m, tea.WithAltScreen(), tea.WithMouseCellMotion(), tea.WithContext(ctx))
	_, err := prog.Run()
	return err
}

// Init starts the chapter and, in interactive mode, listens for questions.
func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.start(), m.waitPrompt())
}

// start runs the entry actions of the starting location and describes it.
func (m Model) start() tea.Cmd {
	e := m.session.Engine
	return m.runEngine("look", func(ctx context.Context) (engine.Result, error) {
		res, err := e.Start(ctx)
		if err != nil {
			return res, err
		}
		look, err := e.Step(ctx, "look")
		res.Output = append(res.Output, look.Output...)
		return res, err
	})
}

func (m Model) runEngine(input string, call func(context.Context) (engine.Result, error)) tea.Cmd {
	ctx, e := m.ctx, m.session.Engine
	return func() tea.Msg {
		res, err := call(ctx)
		return stepDoneMsg{input: input, res: res, err: err, turns: e.Turns()}
	}
}

func (m Model) waitPrompt() tea.Cmd {
	if m.prompter == nil {
		return nil
	}
	return m.prompter.wait()
}

// Update handles messages (key presses, window resize, engine results).
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

		vpHeight := m.height - 2 // 1 status bar + 1 input line
		if vpHeight < 1 {
			vpHeight = 1
		}

		if !m.ready {
			m.viewport = viewport.New(m.width, vpHeight)
			m.viewport.KeyMap = viewportKeyMap()
			m.ready = true
		} else {
			m.viewport.Width = m.width
			m.viewport.Height = vpHeight
		}

		m.refreshViewport()

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			m.quitting = true
			return m, tea.Quit

		case "enter":
			return m.handleEnter()

		case "up":
			if prev, ok := m.history.Prev(); ok {
				m.input.SetValue(prev)
				m.input.CursorEnd()
			}
			return m, nil

		case "down":
			if next, ok := m.history.Next(); ok {
				m.input.SetValue(next)
				m.input.CursorEnd()
			} else {
				m.input.SetValue("")
				m.history.ResetCursor()
			}
			return m, nil

		case "pgup", "pgdown":
			var vpCmd tea.Cmd
			m.viewport, vpCmd = m.viewport.Update(msg)
			return m, vpCmd
		}

	case stepDoneMsg:
		m = m.finishStep(msg)

	case promptMsg:
		req := promptReq(msg)
		m.pending = &req
		m.input.Placeholder = "y/n"
		m.input.PromptStyle = styleQuestionPrompt
		m = m.appendOutput(gameOutputMsg{lines: []string{req.question.Text + " [y/n]"}, isSystem: true})
		cmds = append(cmds, m.waitPrompt())

	case gameOutputMsg:
		m = m.appendOutput(msg)
	}

	var inputCmd tea.Cmd
	m.input, inputCmd = m.input.Update(msg)
	cmds = append(cmds, inputCmd)

	return m, tea.Batch(cmds...)
}

// handleEnter processes the submitted input line. A pending question or
// quiz takes the line as its answer.
func (m Model) handleEnter() (tea.Model, tea.Cmd) {
	input := strings.TrimSpace(m.input.Value())
	m.input.SetValue("")

	if input == "" {
		return m, nil
	}

	switch {
	case m.pending != nil:
		return m.answerPrompt(input), nil
	case m.quiz.active():
		return m.answerQuiz(input), nil
	case m.busy:
		return m, nil
	}

	m.history.Push(input)
	m.history.ResetCursor()

	// Handle "again" / "g".
	lower := strings.ToLower(input)
	if lower == "again" || lower == "g" {
		if m.lastCmd == "" {
			m = m.appendOutput(gameOutputMsg{
				input: input, lines: []string{"Nothing to repeat."}, isSystem: true,
			})
			return m, nil
		}
		input = m.lastCmd
	} else {
		m.lastCmd = input
	}

	// Meta-commands.
	if strings.HasPrefix(input, "/") {
		output, quit := m.handleMeta(input)
		m = m.appendOutput(gameOutputMsg{input: input, lines: output, isSystem: true})
		if quit {
			m.quitting = true
			return m, tea.Quit
		}
		return m, nil
	}

	// Game command.
	m = m.echo(input)
	m.busy = true
	e := m.session.Engine
	return m, m.runEngine(input, func(ctx context.Context) (engine.Result, error) {
		return e.Step(ctx, input)
	})
}

// finishStep renders an engine result and starts any quizzes it queued.
// The engine is idle here, so this is where dirty locations are settled.
func (m Model) finishStep(msg stepDoneMsg) Model {
	m.busy = false
	m.pending = nil
	m.resetInput()
	m.turns = msg.turns

	var lines []string
	for _, snd := range msg.res.Sounds {
		lines = append(lines, fmt.Sprintf("[Playing %s: %s]", snd.Kind, snd.Key))
	}
	lines = append(lines, msg.res.Output...)
	if msg.err != nil {
		lines = append(lines, fmt.Sprintf("[Error: %v]", msg.err))
	}
	if m.trace {
		lines = append(lines, m.formatTrace(msg.res)...)
	}
	if m.session.Settle() && !describes(msg.input) {
		lines = append(lines, "[Something here has changed. Type look to see it.]")
	}
	m = m.appendOutput(gameOutputMsg{lines: lines})

	wasActive := m.quiz.active()
	for _, q := range msg.res.Quizzes {
		if len(q.Questions) > 0 {
			m.quiz.queue = append(m.quiz.queue, q)
		}
	}
	if !wasActive && m.quiz.active() {
		m = m.askQuiz()
	}
	return m
}

// describes reports whether a command already prints the location.
func describes(input string) bool {
	switch parser.Parse(input).Verb {
	case parser.VerbLook, parser.VerbGo:
		return true
	}
	return false
}

func (m Model) answerPrompt(input string) Model {
	m = m.echo(input)
	var answer bool
	switch strings.ToLower(input) {
	case "y", "yes":
		answer = true
	case "n", "no":
		answer = false
	default:
		return m.appendOutput(gameOutputMsg{lines: []string{"Please answer y or n."}, isSystem: true})
	}
	m.pending.reply <- answer // buffered; never blocks
	m.pending = nil
	m.resetInput()
	return m
}

func (m Model) askQuiz() Model {
	q := m.quiz.current()
	lines := []string{m.speakerLine(q.Speaker, q.Prompt)}
	for i, opt := range q.Options {
		lines = append(lines, fmt.Sprintf("  %d. %s", i+1, opt.Text))
	}
	m.input.Placeholder = fmt.Sprintf("answer 1-%d", len(q.Options))
	m.input.PromptStyle = styleQuestionPrompt
	return m.appendOutput(gameOutputMsg{lines: lines})
}

func (m Model) answerQuiz(input string) Model {
	m = m.echo(input)
	q := m.quiz.current()
	choice, err := strconv.Atoi(input)
	if err != nil || choice < 1 || choice > len(q.Options) {
		return m.appendOutput(gameOutputMsg{
			lines: []string{fmt.Sprintf("Please enter a number between 1 and %d.", len(q.Options))}, isSystem: true,
		})
	}

	ok, reaction := engine.Grade(q, choice-1)
	if ok {
		m.quiz.correct++
	}
	var lines []string
	if reaction != "" {
		lines = append(lines, m.speakerLine(q.Speaker, reaction))
	}

	m.quiz.question++
	quiz := m.quiz.queue[0]
	if m.quiz.question >= len(quiz.Questions) {
		m.session.Engine.FinishQuiz(quiz, m.quiz.correct)
		lines = append(lines, fmt.Sprintf("[Quiz complete: %d of %d correct.]", m.quiz.correct, len(quiz.Questions)))
		m.quiz = quizRun{queue: m.quiz.queue[1:]}
	}
	m = m.appendOutput(gameOutputMsg{lines: lines})

	if m.quiz.active() {
		return m.askQuiz()
	}
	m.resetInput()
	return m
}

func (m Model) speakerLine(id, text string) string {
	if ch, ok := m.session.Checkpoint().Map.Characters[id]; ok && ch.Name != "" {
		return ch.Name + ": " + text
	}
	if id != "" {
		return id + ": " + text
	}
	return text
}

func (m *Model) resetInput() {
	m.input.Placeholder = ""
	m.input.PromptStyle = styleInputPrompt
}

// echo adds the player's input to the narrative without ending the turn.
func (m Model) echo(input string) Model {
	m.rawLines = append(m.rawLines, rawLine{text: input, isInput: true})
	m.refreshViewport()
	return m
}

// appendOutput adds lines to the narrative and refreshes the viewport.
func (m Model) appendOutput(msg gameOutputMsg) Model {
	if msg.input != "" {
		m.rawLines = append(m.rawLines, rawLine{text: msg.input, isInput: true})
	}

	for _, line := range msg.lines {
		rl := rawLine{text: line, isSystem: msg.isSystem}
		if !msg.isSystem {
			rl.kind = classifyLine(line)
		}
		m.rawLines = append(m.rawLines, rl)
	}

	// Blank line separator between turns.
	m.rawLines = append(m.rawLines, rawLine{})

	m.refreshViewport()

	return m
}

// refreshViewport re-wraps and re-styles all raw lines at the current width
// and updates the viewport content.
func (m *Model) refreshViewport() {
	if !m.ready {
		return
	}

	width := m.width
	if width < 10 {
		width = 10
	}

	var styled []string
	for _, rl := range m.rawLines {
		if rl.text == "" {
			styled = append(styled, "")
			continue
		}

		switch {
		case rl.isInput:
			styled = append(styled, styledPlayerInput(wordWrap(rl.text, width-2)))
		case rl.isSystem:
			styled = append(styled, styledSystemMsg(wordWrap(rl.text, width-2)))
		default:
			styled = append(styled, renderLineKind(wordWrap(rl.text, width), rl.kind))
		}
	}

	m.viewport.SetContent(strings.Join(styled, "\n"))
	m.viewport.GotoBottom()
}

// renderLineKind applies the style for a given lineKind.
func renderLineKind(line string, kind lineKind) string {
	switch kind {
	case kindTitle:
		return styleTitle.Render(line)
	case kindList:
		return styledList(line)
	case kindExits:
		return styleExits.Render(line)
	case kindDialogue:
		return styleDialogue.Render(line)
	case kindChecklist:
		return styleChecklist.Render(line)
	case kindSystem:
		return styleSystem.Render(line)
	case kindError:
		return styleError.Render(line)
	case kindTrace:
		return styleTrace.Render(line)
	default:
		return styleNarrative.Render(line)
	}
}

// wordWrap wraps text to fit within the given width, breaking at word
// boundaries. Leading indentation is kept on the first line.
func wordWrap(text string, width int) string {
	if width <= 0 || len(text) <= width {
		return text
	}

	indent := text[:len(text)-len(strings.TrimLeft(text, " "))]
	var result strings.Builder
	result.WriteString(indent)
	words := strings.Fields(text)
	lineLen := len(indent)

	for i, word := range words {
		wLen := len(word)

		if i == 0 {
			result.WriteString(word)
			lineLen += wLen
			continue
		}

		if lineLen+1+wLen > width {
			result.WriteString("\n")
			result.WriteString(word)
			lineLen = wLen
		} else {
			result.WriteString(" ")
			result.WriteString(word)
			lineLen += 1 + wLen
		}
	}

	return result.String()
}

// View renders the full TUI layout: viewport + status bar + input.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if !m.ready {
		return "Loading..."
	}

	return m.viewport.View() + "\n" + m.renderStatusBar() + "\n" + m.input.View()
}

// handleMeta dispatches meta-commands. Returns output lines and quit flag.
func (m *Model) handleMeta(input string) ([]string, bool) {
	parts := strings.Fields(input)
	cmd := parts[0]
	var arg string
	if len(parts) > 1 {
		arg = parts[1]
	}

	switch cmd {
	case "/quit", "/exit":
		return []string{"Goodbye."}, true

	case "/save":
		return m.cmdSave(arg), false

	case "/load":
		return m.cmdLoad(arg), false

	case "/help":
		return m.cmdHelp(), false

	case "/state":
		return m.cmdState(), false

	case "/trace":
		m.trace = !m.trace
		if m.trace {
			return []string{"Trace output enabled."}, false
		}
		return []string{"Trace output disabled."}, false

	default:
		return []string{fmt.Sprintf("Unknown command: %s. Type /help for available commands.", cmd)}, false
	}
}

func (m *Model) cmdSave(name string) []string {
	if _, err := m.session.Save(name); err != nil {
		return []string{fmt.Sprintf("Save failed: %v", err)}
	}
	if name == "" {
		name = "the default slot"
	}
	return []string{fmt.Sprintf("Game saved to %s.", name)}
}

// cmdLoad swaps in a saved playthrough. Describing the location never
// evaluates conditions, so the look runs inline.
func (m *Model) cmdLoad(name string) []string {
	sd, err := m.session.Load(name)
	if err != nil {
		return []string{fmt.Sprintf("Load failed: %v", err)}
	}
	if name == "" {
		name = "the default slot"
	}

	output := []string{fmt.Sprintf("Game loaded from %s (turn %d).", name, sd.Turn)}
	res, err := m.session.Engine.Step(m.ctx, "look")
	if err != nil {
		return append(output, fmt.Sprintf("Error: %v", err))
	}
	m.turns = m.session.Engine.Turns()
	m.session.Settle()
	return append(output, res.Output...)
}

func (m *Model) cmdHelp() []string {
	return []string{
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
		"",
		"Questions: answer y/n; quizzes take the option number",
		"Navigation: PgUp/PgDn to scroll, Up/Down for command history",
	}
}

func (m *Model) cmdState() []string {
	st := m.session.Engine.State
	loc := st.CurrentLocation()
	output := []string{
		fmt.Sprintf("Turn: %d", m.turns),
		fmt.Sprintf("Location: %s", loc),
	}
	if modes, err := st.LocationModes(loc); err == nil {
		output = append(output, fmt.Sprintf("Modes: %v", modes))
	}
	for _, list := range []string{effects.CollectiblesList, engine.AssessmentsList} {
		if ids := st.UserState(list); len(ids) > 0 {
			output = append(output, fmt.Sprintf("%s: %v", list, ids))
		}
	}
	return output
}

func (m *Model) formatTrace(res engine.Result) []string {
	var lines []string
	if len(res.Applied) > 0 {
		lines = append(lines, fmt.Sprintf("[trace] Actions: %d", len(res.Applied)))
		for _, id := range res.Applied {
			lines = append(lines, fmt.Sprintf("[trace]   %s", id))
		}
	}
	if len(res.Quizzes) > 0 {
		lines = append(lines, fmt.Sprintf("[trace] Quizzes: %d", len(res.Quizzes)))
	}
	return lines
}

// viewportKeyMap returns a viewport keymap with Up/Down disabled
// (we use those for input history).
func viewportKeyMap() viewport.KeyMap {
	return viewport.KeyMap{
		PageDown:     key.NewBinding(key.WithKeys("pgdown")),
		PageUp:       key.NewBinding(key.WithKeys("pgup")),
		HalfPageDown: key.NewBinding(key.WithKeys("ctrl+d")),
		HalfPageUp:   key.NewBinding(key.WithKeys("ctrl+u")),
		Up:           key.NewBinding(key.WithDisabled()),
		Down:         key.NewBinding(key.WithDisabled()),
	}
}
