// Package effects applies the effect of a parsed action to the runtime
// state. Dialogues, quizzes and audio are handed to a Presenter.
package effects

import (
	"context"
	"fmt"
	"sync"

	"github.com/nathoo/storyscript/engine/state"
	"github.com/nathoo/storyscript/types"
)

// CollectiblesList is the user-state list collected items are added to.
const CollectiblesList = "collectibles"

// Presenter shows the parts of an action that live outside the state
// manager. Implementations decide how, and whether, to block.
type Presenter interface {
	ShowDialogue(ctx context.Context, d *types.Dialogue) error
	StartQuiz(ctx context.Context, q *types.Quiz) error
	PlaySound(ctx context.Context, s types.SoundAsset) error
}

// NopPresenter ignores everything.
type NopPresenter struct{}

func (NopPresenter) ShowDialogue(context.Context, *types.Dialogue) error { return nil }
func (NopPresenter) StartQuiz(context.Context, *types.Quiz) error        { return nil }
func (NopPresenter) PlaySound(context.Context, types.SoundAsset) error   { return nil }

// CueKind identifies what a queued cue presents.
type CueKind string

const (
	CueDialogue CueKind = "dialogue"
	CueQuiz     CueKind = "quiz"
	CueSound    CueKind = "sound"
)

// Cue is one deferred presentation request.
type Cue struct {
	Kind     CueKind
	Dialogue *types.Dialogue
	Quiz     *types.Quiz
	Sound    types.SoundAsset
}

// Queue is a Presenter that records cues for a front end to drain after a
// command has been processed.
type Queue struct {
	mu   sync.Mutex
	cues []Cue
}

func (q *Queue) push(c Cue) error {
	q.mu.Lock()
	q.cues = append(q.cues, c)
	q.mu.Unlock()
	return nil
}

func (q *Queue) ShowDialogue(_ context.Context, d *types.Dialogue) error {
	return q.push(Cue{Kind: CueDialogue, Dialogue: d})
}

func (q *Queue) StartQuiz(_ context.Context, qz *types.Quiz) error {
	return q.push(Cue{Kind: CueQuiz, Quiz: qz})
}

func (q *Queue) PlaySound(_ context.Context, s types.SoundAsset) error {
	return q.push(Cue{Kind: CueSound, Sound: s})
}

// Drain returns the queued cues in order and empties the queue.
func (q *Queue) Drain() []Cue {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := q.cues
	q.cues = nil
	return out
}

// Outcome reports what an applied action did beyond mutating state.
type Outcome struct {
	// Entered is the location the player moved to, for goto_location.
	Entered string
	// Unknown is set when the action type has no effect.
	Unknown bool
}

// Apply applies a single action. The caller has already checked its
// conditions. Unknown action types are ignored.
func Apply(ctx context.Context, st *state.Manager, p Presenter, a *types.GameAction) (Outcome, error) {
	if p == nil {
		p = NopPresenter{}
	}
	cp := st.Checkpoint()
	pr := a.Params

	switch a.Type {
	case types.ActionAddItem:
		return Outcome{}, st.AddLocationAttr(pr.Attr, pr.LocationID, pr.ItemID)

	case types.ActionRemoveItem:
		return Outcome{}, st.RemoveLocationAttr(pr.Attr, pr.LocationID, pr.ItemID)

	case types.ActionAddMode:
		return Outcome{}, st.AddLocationMode(pr.LocationID, pr.Mode)

	case types.ActionRemoveMode:
		return Outcome{}, st.RemoveLocationMode(pr.LocationID, pr.Mode)

	case types.ActionMoveCharacter:
		return Outcome{}, st.MoveCharacter(pr.CharacterID, pr.LocationID, pr.Position)

	case types.ActionMoveObject:
		return Outcome{}, st.MoveObject(pr.ItemID, pr.X, pr.Y)

	case types.ActionShowDialogue:
		d, ok := cp.Map.Dialogues[pr.Key]
		if !ok {
			return Outcome{}, fmt.Errorf("show_dialogue: unknown dialogue %q", pr.Key)
		}
		return Outcome{}, p.ShowDialogue(ctx, d)

	case types.ActionStartQuiz:
		q, ok := cp.Map.Quizzes[pr.Key]
		if !ok {
			return Outcome{}, fmt.Errorf("start_quiz: unknown quiz %q", pr.Key)
		}
		return Outcome{}, p.StartQuiz(ctx, q)

	case types.ActionGotoLocation:
		if err := st.SetCurrentLocation(pr.LocationID); err != nil {
			return Outcome{}, err
		}
		return Outcome{Entered: pr.LocationID}, nil

	case types.ActionCompleteObjective:
		return Outcome{}, st.CompleteObjective(pr.Key)

	case types.ActionSetTask:
		return Outcome{}, st.SetTask(pr.Key, pr.Value)

	case types.ActionShowTask:
		return Outcome{}, st.ShowTask(pr.Key)

	case types.ActionPlayBGM:
		return Outcome{}, playSound(ctx, cp, p, types.SoundBGM, pr.Key)

	case types.ActionPlaySFX:
		return Outcome{}, playSound(ctx, cp, p, types.SoundSFX, pr.Key)

	case types.ActionCollect:
		for _, loc := range st.LocationsWith(types.AttrCollectibles, pr.ItemID) {
			if err := st.RemoveLocationAttr(types.AttrCollectibles, loc, pr.ItemID); err != nil {
				return Outcome{}, err
			}
		}
		st.AddUserState(CollectiblesList, pr.ItemID)
		return Outcome{}, nil

	case types.ActionGrant:
		st.AddUserState(pr.Key, pr.ItemID)
		return Outcome{}, nil

	default:
		return Outcome{Unknown: true}, nil
	}
}

// FindSound returns the declared sound of the given kind and key.
func FindSound(cp *types.Checkpoint, kind types.SoundKind, key string) (types.SoundAsset, bool) {
	for _, s := range cp.Map.SoundAssets {
		if s.Kind == kind && s.Key == key {
			return s, true
		}
	}
	return types.SoundAsset{}, false
}

func playSound(ctx context.Context, cp *types.Checkpoint, p Presenter, kind types.SoundKind, key string) error {
	s, ok := FindSound(cp, kind, key)
	if !ok {
		return fmt.Errorf("play_%s: unknown sound %q", kind, key)
	}
	return p.PlaySound(ctx, s)
}
