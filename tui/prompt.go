package tui

import (
	"context"
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nathoo/storyscript/engine/conditions"
)

// Prompter carries condition questions from the engine goroutine into the
// Bubble Tea update loop and the player's answers back.
type Prompter struct {
	mu   sync.Mutex // one question on screen at a time
	reqs chan promptReq
}

type promptReq struct {
	question conditions.Question
	reply    chan bool
}

// promptMsg delivers a question to Update.
type promptMsg promptReq

// NewPrompter creates a prompter to pass to both the resolver and the model.
func NewPrompter() *Prompter {
	return &Prompter{reqs: make(chan promptReq)}
}

// Ask implements conditions.Prompter. It returns when the player answers or
// ctx ends, whichever comes first.
func (p *Prompter) Ask(ctx context.Context, q conditions.Question) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	reply := make(chan bool, 1)
	select {
	case p.reqs <- promptReq{question: q, reply: reply}:
	case <-ctx.Done():
		return false, ctx.Err()
	}
	select {
	case ok := <-reply:
		return ok, nil
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

// wait returns a command that blocks until the next question.
func (p *Prompter) wait() tea.Cmd {
	return func() tea.Msg {
		return promptMsg(<-p.reqs)
	}
}
