package loader

import (
	"fmt"
	"regexp"

	"go.uber.org/zap"

	"github.com/nathoo/storyscript/types"
)

var identPattern = regexp.MustCompile(`^[A-Za-z0-9_\-]+$`)

// parseContext is the state shared by every sub-parser during one Parse call.
type parseContext struct {
	world     *types.WorldMap
	checklist types.Checklist
	refs      *Validator
	log       *zap.Logger

	title   string
	start   string
	section string // header of the section being parsed

	actionSeq int
}

func newParseContext(log *zap.Logger) *parseContext {
	return &parseContext{
		world: types.NewWorldMap(),
		checklist: types.Checklist{
			ObjectiveNotes: map[string]string{},
			TaskDetails:    map[string]types.GameTask{},
		},
		refs: &Validator{},
		log:  log,
	}
}

// nextActionID returns a fresh id for an action declared without one.
func (pc *parseContext) nextActionID(scope string) string {
	pc.actionSeq++
	if scope == "" {
		scope = "global"
	}
	return fmt.Sprintf("%s_action_%d", scope, pc.actionSeq)
}

// assert records a deferred reference check for the current section.
func (pc *parseContext) assert(kind RefKind, id string, action types.ActionType) {
	pc.refs.Assert(kind, id, action, pc.section)
}

func (pc *parseContext) errorf(line int, format string, args ...any) error {
	return &ParseError{Section: pc.section, Line: line, Msg: fmt.Sprintf(format, args...)}
}

func (pc *parseContext) wrap(line int, err error, format string, args ...any) error {
	return &ParseError{Section: pc.section, Line: line, Msg: fmt.Sprintf(format, args...), Err: err}
}

// checkIdent rejects ids that would break CSV or condition syntax.
func (pc *parseContext) checkIdent(line int, what, id string) error {
	if !identPattern.MatchString(id) {
		return pc.errorf(line, "invalid %s id %q", what, id)
	}
	return nil
}
