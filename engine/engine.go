// Package engine wires the state manager, condition evaluation and effects
// into the operations a front end drives: running action chains, entering
// locations and processing player commands.
package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/nathoo/storyscript/engine/conditions"
	"github.com/nathoo/storyscript/engine/dialogue"
	"github.com/nathoo/storyscript/engine/effects"
	"github.com/nathoo/storyscript/engine/parser"
	"github.com/nathoo/storyscript/engine/resolve"
	"github.com/nathoo/storyscript/engine/state"
	"github.com/nathoo/storyscript/types"
)

// ErrUnknownAction is returned when an action id is not in the world map.
var ErrUnknownAction = errors.New("unknown action")

// maxChainDepth bounds goto_location and dialogue recursion inside a
// single chain.
const maxChainDepth = 16

// Result is what one engine call produced for the front end.
type Result struct {
	Output  []string
	Applied []string // ids of actions whose effect was applied, in order
	Quizzes []*types.Quiz
	Sounds  []types.SoundAsset
}

func (r *Result) merge(o Result) {
	r.Output = append(r.Output, o.Output...)
	r.Applied = append(r.Applied, o.Applied...)
	r.Quizzes = append(r.Quizzes, o.Quizzes...)
	r.Sounds = append(r.Sounds, o.Sounds...)
}

// Engine runs actions against one playthrough.
type Engine struct {
	State *state.Manager

	eval      *conditions.Evaluator
	presenter effects.Presenter
	queue     *effects.Queue // non-nil when cues are folded into Results
	log       *zap.Logger
	turns     int
}

// Option configures an Engine.
type Option func(*Engine)

// WithEvaluator sets the condition evaluator. The default resolves every
// condition from state.
func WithEvaluator(ev *conditions.Evaluator) Option {
	return func(e *Engine) { e.eval = ev }
}

// WithPresenter hands dialogues, quizzes and sounds to p instead of folding
// them into Results.
func WithPresenter(p effects.Presenter) Option {
	return func(e *Engine) {
		e.presenter = p
		e.queue = nil
	}
}

// WithLogger sets the engine logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// WithTurns sets the turn counter, for a playthrough resumed from a save.
func WithTurns(n int) Option {
	return func(e *Engine) { e.turns = n }
}

// New creates an engine over st.
func New(st *state.Manager, opts ...Option) *Engine {
	q := &effects.Queue{}
	e := &Engine{
		State:     st,
		presenter: q,
		queue:     q,
		log:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.eval == nil {
		e.eval = conditions.NewEvaluator(conditions.StateResolver{State: st}, conditions.WithLogger(e.log))
	}
	return e
}

// Turns returns the number of commands processed by Step.
func (e *Engine) Turns() int {
	return e.turns
}

// ProcessGameActions runs a chain of actions in order. Every id must name a
// declared action. A non-repeatable action that already fired is skipped, as
// is an action whose conditions do not all hold. A failed evaluation or
// effect stops the chain with an error.
func (e *Engine) ProcessGameActions(ctx context.Context, ids []string) (Result, error) {
	res, err := e.processActions(ctx, ids, 0)
	if err != nil {
		return res, err
	}
	res.merge(e.drainCues(ctx, 0))
	return res, nil
}

func (e *Engine) processActions(ctx context.Context, ids []string, depth int) (Result, error) {
	var res Result
	if depth > maxChainDepth {
		return res, fmt.Errorf("action chain nested deeper than %d", maxChainDepth)
	}

	actions := e.State.Checkpoint().Map.Actions
	for _, id := range ids {
		if _, ok := actions[id]; !ok {
			return res, fmt.Errorf("%w %q", ErrUnknownAction, id)
		}
	}

	for _, id := range ids {
		a := actions[id]
		if !a.Repeatable && e.State.HasTriggeredInteraction(id) {
			e.log.Debug("action skipped", zap.String("action", id), zap.String("reason", "already triggered"))
			continue
		}
		ok, err := e.eval.CheckAll(ctx, a.Conditions)
		if err != nil {
			return res, fmt.Errorf("action %s: %w", id, err)
		}
		if !ok {
			e.log.Debug("action skipped", zap.String("action", id), zap.String("reason", "conditions not met"))
			continue
		}

		before := e.State.CurrentLocation()
		out, err := effects.Apply(ctx, e.State, e.presenter, a)
		if err != nil {
			return res, fmt.Errorf("action %s: %w", id, err)
		}
		if out.Unknown {
			e.log.Debug("action type has no effect", zap.String("action", id), zap.String("type", string(a.Type)))
		}
		// Leaving a location re-arms what fired there, the move included.
		if !a.Repeatable && e.State.CurrentLocation() == before {
			e.State.TriggerInteraction(id)
		}
		res.Applied = append(res.Applied, id)

		if out.Entered != "" {
			entry, err := e.runEntryActions(ctx, out.Entered, depth+1)
			res.merge(entry)
			if err != nil {
				return res, err
			}
		}
	}
	return res, nil
}

// EnterLocation moves the player to loc and runs its entry actions.
func (e *Engine) EnterLocation(ctx context.Context, loc string) (Result, error) {
	if err := e.State.SetCurrentLocation(loc); err != nil {
		return Result{}, err
	}
	res, err := e.runEntryActions(ctx, loc, 0)
	if err != nil {
		return res, err
	}
	res.merge(e.drainCues(ctx, 0))
	return res, nil
}

// Start runs the entry actions of the starting location.
func (e *Engine) Start(ctx context.Context) (Result, error) {
	return e.EnterLocation(ctx, e.State.CurrentLocation())
}

func (e *Engine) runEntryActions(ctx context.Context, loc string, depth int) (Result, error) {
	l, ok := e.State.Checkpoint().Map.Locations[loc]
	if !ok {
		return Result{}, fmt.Errorf("entering %q: %w", loc, state.ErrUnknownLocation)
	}
	e.log.Debug("entering location", zap.String("location", loc), zap.Int("entry_actions", len(l.EntryActions)))
	return e.processActions(ctx, l.EntryActions, depth)
}

// drainCues turns queued presentation cues into Result fields. Dialogues
// are played inline and their attached actions run, which may queue more.
func (e *Engine) drainCues(ctx context.Context, depth int) Result {
	var res Result
	if e.queue == nil {
		return res
	}
	for cues := e.queue.Drain(); len(cues) > 0; cues = e.queue.Drain() {
		for _, c := range cues {
			switch c.Kind {
			case effects.CueDialogue:
				out, err := e.playDialogue(ctx, c.Dialogue, depth)
				res.merge(out)
				if err != nil {
					res.Output = append(res.Output, err.Error())
				}
			case effects.CueQuiz:
				res.Quizzes = append(res.Quizzes, c.Quiz)
			case effects.CueSound:
				res.Sounds = append(res.Sounds, c.Sound)
			}
		}
		depth++
		if depth > maxChainDepth {
			e.queue.Drain()
			break
		}
	}
	return res
}

// PlayDialogue renders a dialogue as text and runs the actions attached to
// each line. Playback stops when a goto returns to a part already shown.
func (e *Engine) PlayDialogue(ctx context.Context, d *types.Dialogue) (Result, error) {
	res, err := e.playDialogue(ctx, d, 0)
	if err != nil {
		return res, err
	}
	res.merge(e.drainCues(ctx, 0))
	return res, nil
}

func (e *Engine) playDialogue(ctx context.Context, d *types.Dialogue, depth int) (Result, error) {
	var res Result
	if d.Title != "" {
		res.Output = append(res.Output, fmt.Sprintf("~ %s ~", d.Title))
	}
	for _, l := range dialogue.Play(d) {
		res.Output = append(res.Output, e.formatLine(l))
		if len(l.Actions) > 0 {
			out, err := e.processActions(ctx, l.Actions, depth+1)
			res.merge(out)
			if err != nil {
				return res, err
			}
		}
	}
	return res, nil
}

func (e *Engine) formatLine(l dialogue.Line) string {
	if l.Speaker == nil {
		return l.Text
	}
	name := l.Speaker.CharacterID
	if ch, ok := e.State.Checkpoint().Map.Characters[name]; ok && ch.Name != "" {
		name = ch.Name
	}
	return fmt.Sprintf("%s: %s", name, l.Text)
}

// Grade checks an answer to a quiz question. choice is zero-based.
func Grade(q types.QuizQuestion, choice int) (correct bool, reaction string) {
	if choice < 0 || choice >= len(q.Options) {
		return false, ""
	}
	return choice == q.CorrectOption, q.Options[choice].Reaction
}

// AssessmentsList is the user-state list recording quizzes passed without
// a wrong answer.
const AssessmentsList = "assessments"

// FinishQuiz records a completed quiz. A quiz answered entirely correctly
// is added to the assessments list.
func (e *Engine) FinishQuiz(q *types.Quiz, correct int) {
	passed := correct == len(q.Questions)
	e.log.Debug("quiz finished", zap.String("quiz", q.ID), zap.Int("correct", correct), zap.Bool("passed", passed))
	if passed {
		e.State.AddUserState(AssessmentsList, q.ID)
	}
}

// Step processes one player command.
func (e *Engine) Step(ctx context.Context, input string) (Result, error) {
	intent := parser.Parse(input)
	if intent.Verb == "" {
		return Result{Output: []string{"What do you want to do?"}}, nil
	}
	e.turns++

	var (
		res Result
		err error
	)
	switch intent.Verb {
	case parser.VerbLook:
		res.Output = e.describeLocation(e.State.CurrentLocation())
	case parser.VerbGo:
		res, err = e.stepGo(ctx, intent)
	case parser.VerbUse:
		res, err = e.stepUse(ctx, intent)
	case parser.VerbTalk:
		res, err = e.stepTalk(ctx, intent)
	case parser.VerbCollect:
		res, err = e.stepCollect(ctx, intent)
	case parser.VerbTasks:
		res.Output = e.describeChecklist()
	case parser.VerbWait:
		res.Output = []string{"Time passes."}
	default:
		res.Output = []string{"I don't understand that."}
	}
	if err != nil {
		return res, err
	}
	res.merge(e.drainCues(ctx, 0))
	return res, nil
}

// notFound turns a resolution error into player-facing output.
func notFound(err error) (Result, error) {
	var nf *resolve.NotFoundError
	var amb *resolve.AmbiguityError
	if errors.As(err, &nf) || errors.As(err, &amb) {
		return Result{Output: []string{err.Error()}}, nil
	}
	return Result{}, err
}

func (e *Engine) stepGo(ctx context.Context, intent parser.Intent) (Result, error) {
	here := e.State.CurrentLocation()
	if intent.Object == "" {
		return Result{Output: []string{"Go where?"}}, nil
	}
	if !e.State.HasLocationMode(here, types.ModeMove) {
		return Result{Output: []string{"You can't leave from here right now."}}, nil
	}
	dest, err := resolve.Resolve(e.State, resolve.Destinations, intent.Object)
	if err != nil {
		return notFound(err)
	}
	res, err := e.EnterLocation(ctx, dest)
	if err != nil {
		return res, err
	}
	res.Output = append(e.describeLocation(dest), res.Output...)
	return res, nil
}

func (e *Engine) stepUse(ctx context.Context, intent parser.Intent) (Result, error) {
	if intent.Object == "" {
		return Result{Output: []string{"Use what?"}}, nil
	}
	if !e.State.HasLocationMode(e.State.CurrentLocation(), types.ModeExplore) {
		return Result{Output: []string{"There is nothing to explore here."}}, nil
	}
	id, err := resolve.Resolve(e.State, resolve.Interactive, intent.Object)
	if err != nil {
		return notFound(err)
	}

	var actions []string
	interactive := false
	if o, ok := e.State.ObjProperty(id); ok {
		actions, interactive = o.Actions, o.IsInteractive
	} else if b, ok := e.State.BBoxProperty(id); ok {
		actions, interactive = b.Actions, b.IsInteractive
	}
	if !interactive || len(actions) == 0 {
		return Result{Output: []string{"Nothing happens."}}, nil
	}

	res, err := e.processActions(ctx, actions, 0)
	if err != nil {
		return res, err
	}
	if len(res.Applied) == 0 {
		res.Output = append(res.Output, "Nothing happens.")
	}
	return res, nil
}

func (e *Engine) stepTalk(ctx context.Context, intent parser.Intent) (Result, error) {
	here := e.State.CurrentLocation()
	topics := dialogue.AvailableTopics(e.State, here)
	if len(topics) == 0 {
		return Result{Output: []string{"There is no one to talk to here."}}, nil
	}

	name := intent.Target
	if name == "" {
		name = intent.Object
	}
	topic := topics[0]
	if name != "" {
		id, err := resolve.Resolve(e.State, resolve.Topics, name)
		switch {
		case err == nil:
			topic = id
		case intent.Target == "" && e.isCharacterHere(name):
			// "talk guide" names who to talk to, not what about.
		default:
			return Result{Output: []string{
				fmt.Sprintf("%s You could talk about: %s.", err.Error(), strings.Join(topics, ", ")),
			}}, nil
		}
	}

	d, ok := dialogue.SelectTopic(e.State, here, topic)
	if !ok {
		return Result{Output: []string{"Nobody has anything to say about that."}}, nil
	}
	return e.playDialogue(ctx, d, 0)
}

func (e *Engine) isCharacterHere(name string) bool {
	_, err := resolve.Resolve(e.State, resolve.Characters, name)
	return err == nil
}

func (e *Engine) stepCollect(ctx context.Context, intent parser.Intent) (Result, error) {
	if intent.Object == "" {
		return Result{Output: []string{"Collect what?"}}, nil
	}
	id, err := resolve.Resolve(e.State, resolve.Collectibles, intent.Object)
	if err != nil {
		return notFound(err)
	}
	a := &types.GameAction{
		ID:         "collect_" + id,
		Type:       types.ActionCollect,
		Params:     types.ActionParams{ItemID: id},
		Repeatable: true,
	}
	if _, err := effects.Apply(ctx, e.State, e.presenter, a); err != nil {
		return Result{}, err
	}
	return Result{
		Output:  []string{fmt.Sprintf("You collect the %s.", id)},
		Applied: []string{a.ID},
	}, nil
}

// describeLocation produces the standard location description output.
// Each list is shown only when the location has the mode that renders it.
func (e *Engine) describeLocation(locID string) []string {
	wm := e.State.Checkpoint().Map
	l, ok := wm.Locations[locID]
	if !ok {
		return []string{"You are somewhere unknown."}
	}

	name := l.Name
	if name == "" {
		name = l.ID
	}
	output := []string{name}

	list := func(label string, attr types.LocationAttr, mode types.GameMode, display func(string) string) {
		if !e.State.HasLocationMode(locID, mode) {
			return
		}
		ids, err := e.State.GetLocationAttr(attr, locID)
		if err != nil || len(ids) == 0 {
			return
		}
		names := make([]string, len(ids))
		for i, id := range ids {
			names[i] = display(id)
		}
		output = append(output, label+": "+strings.Join(names, ", ")+".")
	}
	ident := func(id string) string { return id }

	list("You see", types.AttrObjects, types.ModeExplore, ident)
	list("You notice", types.AttrBoundingBoxes, types.ModeExplore, ident)
	list("Items", types.AttrCollectibles, types.ModeExplore, ident)
	list("People here", types.AttrCharacters, types.ModeTalk, func(id string) string {
		if ch, ok := wm.Characters[id]; ok && ch.Name != "" {
			return ch.Name
		}
		return id
	})
	list("You could talk about", types.AttrTalkTopics, types.ModeTalk, func(id string) string {
		if d, ok := wm.Dialogues[id]; ok && d.Title != "" {
			return fmt.Sprintf("%s (%s)", d.Title, id)
		}
		return id
	})
	list("Exits", types.AttrNavigation, types.ModeMove, ident)
	return output
}

// describeChecklist lists objectives and visible tasks with their status.
func (e *Engine) describeChecklist() []string {
	cl := e.State.Checkpoint().Checklist
	mark := func(done bool) string {
		if done {
			return "[x]"
		}
		return "[ ]"
	}

	var output []string
	if len(cl.Objectives) > 0 {
		output = append(output, "Objectives:")
		for _, key := range cl.Objectives {
			line := fmt.Sprintf("  %s %s", mark(e.State.IsObjectiveComplete(key)), key)
			if note := cl.ObjectiveNotes[key]; note != "" {
				line += " - " + note
			}
			output = append(output, line)
		}
	}
	var tasks []string
	for _, key := range cl.Tasks {
		if !e.State.IsTaskVisible(key) {
			continue
		}
		t := cl.TaskDetails[key]
		line := fmt.Sprintf("  %s %s", mark(e.State.IsTaskComplete(key)), t.Title)
		if t.Description != "" {
			line += " - " + t.Description
		}
		tasks = append(tasks, line)
	}
	if len(tasks) > 0 {
		output = append(output, "Tasks:")
		output = append(output, tasks...)
	}
	if len(output) == 0 {
		output = append(output, "Nothing to do.")
	}
	return output
}
