package conditions

import (
	"context"
	"fmt"

	"github.com/nathoo/storyscript/types"
)

// StateReader is the part of the state manager conditions read.
type StateReader interface {
	IsChecklistComplete(key string) bool
	HasUserState(list, id string) bool
}

// StateResolver decides every condition from recorded state: checklist
// conditions by objective or task completion, user conditions by list
// membership.
type StateResolver struct {
	State StateReader
}

// Resolve implements Resolver.
func (r StateResolver) Resolve(ctx context.Context, c types.ActionCondition) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	switch c.Kind {
	case types.ChecklistState:
		if len(c.Params) != 1 {
			return false, fmt.Errorf("checklist condition needs one key, got %v", c.Params)
		}
		return r.State.IsChecklistComplete(c.Params[0]), nil
	case types.UserState:
		if len(c.Params) != 2 {
			return false, fmt.Errorf("user condition needs a list and an id, got %v", c.Params)
		}
		return r.State.HasUserState(c.Params[0], c.Params[1]), nil
	default:
		return false, fmt.Errorf("unknown state kind %v", c.Kind)
	}
}

// Question is a yes/no prompt put to the player for one condition.
type Question struct {
	Text      string
	Condition types.ActionCondition
}

// NewQuestion phrases a user condition as a question.
func NewQuestion(c types.ActionCondition) Question {
	text := fmt.Sprintf("Is %q true?", c.String())
	if c.Kind == types.UserState && len(c.Params) == 2 {
		text = fmt.Sprintf("Do you have %s in your %s?", c.Params[1], c.Params[0])
	}
	return Question{Text: text, Condition: c}
}

// Prompter asks the player a yes/no question. Ask may be called from several
// goroutines at once; implementations that share a screen serialize the
// questions themselves. Ask must return when ctx is done.
type Prompter interface {
	Ask(ctx context.Context, q Question) (bool, error)
}

// PrompterFunc adapts a plain function to Prompter.
type PrompterFunc func(ctx context.Context, q Question) (bool, error)

// Ask calls f(ctx, q).
func (f PrompterFunc) Ask(ctx context.Context, q Question) (bool, error) {
	return f(ctx, q)
}

// PromptResolver asks the player about user conditions and falls back to
// recorded state for checklist conditions. It drives interactive and
// scripted simulation runs.
type PromptResolver struct {
	State    StateReader
	Prompter Prompter
}

// Resolve implements Resolver.
func (r PromptResolver) Resolve(ctx context.Context, c types.ActionCondition) (bool, error) {
	if c.Kind != types.UserState {
		return StateResolver{State: r.State}.Resolve(ctx, c)
	}
	return r.Prompter.Ask(ctx, NewQuestion(c))
}
