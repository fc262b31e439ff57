package engine

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/nathoo/storyscript/engine/events"
	"github.com/nathoo/storyscript/engine/save"
	"github.com/nathoo/storyscript/engine/state"
	"github.com/nathoo/storyscript/types"
)

// Builder creates an engine over a state manager. Front ends receive one so
// that loading a save can rebuild the engine with the same resolver.
type Builder func(st *state.Manager) *Engine

// Session owns the engine of one playthrough and swaps it when a save is
// loaded. It subscribes to the state bus so a front end can re-render the
// locations that changed during a command.
type Session struct {
	Engine *Engine

	savePath string
	build    Builder
	log      *zap.Logger
	changes  events.Collector
	sub      events.Subscription
}

// NewSession starts a session over st. savePath is the file used when a
// save is not given a name; named saves sit next to it.
func NewSession(st *state.Manager, build Builder, savePath string, log *zap.Logger) *Session {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Session{savePath: savePath, build: build, log: log}
	s.attach(build(st))
	return s
}

func (s *Session) attach(e *Engine) {
	if s.Engine != nil {
		s.Engine.State.Unsubscribe(s.sub)
	}
	s.Engine = e
	s.sub = e.State.Subscribe(&s.changes)
}

// Checkpoint returns the chapter being played.
func (s *Session) Checkpoint() *types.Checkpoint {
	return s.Engine.State.Checkpoint()
}

// SavePath returns the file a named save is written to.
func (s *Session) SavePath(name string) string {
	if name == "" {
		return s.savePath
	}
	return filepath.Join(filepath.Dir(s.savePath), name+".json")
}

// Save writes the playthrough under name and returns the file path.
func (s *Session) Save(name string) (string, error) {
	path := s.SavePath(name)
	if err := save.WriteFile(path, s.Engine.State, s.Engine.turns); err != nil {
		return "", err
	}
	s.log.Info("game saved", zap.String("path", path))
	return path, nil
}

// Load replaces the playthrough with a named save. Unlike resuming at
// startup, a bad save is reported and the current playthrough is kept.
func (s *Session) Load(name string) (*save.SaveData, error) {
	path := s.SavePath(name)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading save: %w", err)
	}
	sd, err := save.Load(data)
	if err != nil {
		return nil, fmt.Errorf("decoding save: %w", err)
	}
	st, err := save.Apply(s.Checkpoint(), sd, s.log)
	if err != nil {
		return nil, err
	}
	e := s.build(st)
	WithTurns(sd.Turn)(e)
	s.attach(e)
	s.changes.Take()
	s.log.Info("game loaded", zap.String("path", path), zap.Int("turn", sd.Turn))
	return sd, nil
}

// Settle consumes the change notifications of the last command and clears
// the dirty bits of the locations they named. It reports whether the
// current location changed in a way the player can see.
func (s *Session) Settle() bool {
	st := s.Engine.State
	here := st.CurrentLocation()
	visible := false
	for _, loc := range s.changes.Take() {
		if loc == here && st.HasLocationUpdate(loc, types.ModeExplore, types.ModeTalk) {
			visible = true
		}
		st.ClearLocationUpdate(loc)
	}
	return visible
}
