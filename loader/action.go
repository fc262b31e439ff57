package loader

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/nathoo/storyscript/types"
)

// actionPattern matches "[id:] name[*](args) [if conditions]".
var actionPattern = regexp.MustCompile(`^(?:([A-Za-z0-9_\-]+)\s*:\s*)?([A-Za-z_]+)(\*)?\s*\(([^()]*)\)\s*(?:if\s+(.+))?$`)

// argKind describes what one action argument must be.
type argKind int

const (
	argAttr argKind = iota
	argItem         // id whose kind depends on the preceding attr argument
	argLocation
	argMode
	argCharacter
	argObject
	argPosition
	argInt
	argBool
	argDialogue
	argQuiz
	argObjective
	argTask
	argBGM
	argSFX
	argCollectible
	argListName
	argString
)

// actionSignatures is the closed table of action types and their arguments.
var actionSignatures = map[types.ActionType][]argKind{
	types.ActionAddItem:           {argAttr, argLocation, argItem},
	types.ActionRemoveItem:        {argAttr, argLocation, argItem},
	types.ActionAddMode:           {argLocation, argMode},
	types.ActionRemoveMode:        {argLocation, argMode},
	types.ActionMoveCharacter:     {argCharacter, argLocation, argPosition},
	types.ActionMoveObject:        {argObject, argInt, argInt},
	types.ActionShowDialogue:      {argDialogue},
	types.ActionStartQuiz:         {argQuiz},
	types.ActionGotoLocation:      {argLocation},
	types.ActionCompleteObjective: {argObjective},
	types.ActionSetTask:           {argTask, argBool},
	types.ActionShowTask:          {argTask},
	types.ActionPlayBGM:           {argBGM},
	types.ActionPlaySFX:           {argSFX},
	types.ActionCollect:           {argCollectible},
	types.ActionGrant:             {argListName, argString},
}

// itemRefKinds maps a location attribute to the entity kind its ids name.
var itemRefKinds = map[types.LocationAttr]RefKind{
	types.AttrNavigation:    RefLocation,
	types.AttrTalkTopics:    RefDialogue,
	types.AttrObjects:       RefObject,
	types.AttrBoundingBoxes: RefBoundingBox,
	types.AttrCharacters:    RefCharacter,
	types.AttrCollectibles:  RefCollectible,
}

// parseActionBlock reads the actions sub-paragraph of a location. Actions
// with an explicit id are registered for reference from objects, bounding
// boxes and dialogue lines; actions without one are the location's entry
// actions.
func parseActionBlock(pc *parseContext, loc *types.Location, lines []string, offset int) error {
	for i, raw := range lines {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		n := offset + i + 1
		action, explicit, err := parseAction(pc, line, loc.ID, n)
		if err != nil {
			return err
		}
		if _, dup := pc.world.Actions[action.ID]; dup {
			return pc.errorf(n, "action %q declared twice", action.ID)
		}
		pc.world.Actions[action.ID] = action
		if !explicit {
			loc.EntryActions = append(loc.EntryActions, action.ID)
		}
	}
	return nil
}

// parseAction parses one action declaration. The returned bool reports
// whether the id was written out rather than generated.
func parseAction(pc *parseContext, line, scope string, n int) (*types.GameAction, bool, error) {
	m := actionPattern.FindStringSubmatch(line)
	if m == nil {
		return nil, false, pc.errorf(n, "malformed action %q", line)
	}
	id, name, star, rawArgs, clause := m[1], m[2], m[3], m[4], m[5]

	actionType := types.ActionType(name)
	sig, ok := actionSignatures[actionType]
	if !ok {
		return nil, false, pc.errorf(n, "unknown action type %q", name)
	}

	explicit := id != ""
	if !explicit {
		id = pc.nextActionID(scope)
	}

	action := &types.GameAction{
		ID:         id,
		Type:       actionType,
		Repeatable: star == "*",
		Source:     line,
	}

	args := splitList(rawArgs)
	if len(args) != len(sig) {
		return nil, false, pc.errorf(n, "%s expects %d arguments, got %d", name, len(sig), len(args))
	}
	if err := bindArgs(pc, action, sig, args, n); err != nil {
		return nil, false, err
	}

	if clause != "" {
		conds, err := parseConditions(pc, clause, actionType, n)
		if err != nil {
			return nil, false, err
		}
		action.Conditions = conds
	}
	return action, explicit, nil
}

// bindArgs validates each argument against its kind, stores it in the
// action's params, and records reference assertions for id arguments.
func bindArgs(pc *parseContext, action *types.GameAction, sig []argKind, args []string, n int) error {
	p := &action.Params
	t := action.Type

	for i, kind := range sig {
		arg := args[i]
		switch kind {
		case argAttr:
			attr, err := types.ParseLocationAttr(arg)
			if err != nil {
				return pc.wrap(n, err, "%s argument %d", t, i+1)
			}
			p.Attr = attr
		case argItem:
			p.ItemID = arg
			pc.assert(itemRefKinds[p.Attr], arg, t)
		case argLocation:
			p.LocationID = arg
			pc.assert(RefLocation, arg, t)
		case argMode:
			mode, err := types.ParseGameMode(arg)
			if err != nil {
				return pc.wrap(n, err, "%s argument %d", t, i+1)
			}
			p.Mode = mode
		case argCharacter:
			p.CharacterID = arg
			pc.assert(RefCharacter, arg, t)
		case argObject:
			p.ItemID = arg
			pc.assert(RefObject, arg, t)
		case argPosition:
			p.Position = arg
		case argInt:
			v, err := strconv.Atoi(arg)
			if err != nil {
				return pc.errorf(n, "%s argument %d: %q is not an integer", t, i+1, arg)
			}
			if i == len(sig)-1 {
				p.Y = v
			} else {
				p.X = v
			}
		case argBool:
			v, err := strconv.ParseBool(arg)
			if err != nil {
				return pc.errorf(n, "%s argument %d: %q is not a boolean", t, i+1, arg)
			}
			p.Value = v
		case argDialogue:
			p.Key = arg
			pc.assert(RefDialogue, arg, t)
		case argQuiz:
			p.Key = arg
			pc.assert(RefQuiz, arg, t)
		case argObjective:
			p.Key = arg
			pc.assert(RefObjective, arg, t)
		case argTask:
			p.Key = arg
			pc.assert(RefTask, arg, t)
		case argBGM:
			p.Key = arg
			pc.assert(RefBGM, arg, t)
		case argSFX:
			p.Key = arg
			pc.assert(RefSFX, arg, t)
		case argCollectible:
			p.ItemID = arg
			pc.assert(RefCollectible, arg, t)
		case argListName:
			if err := pc.checkIdent(n, "user-state list", arg); err != nil {
				return err
			}
			p.Key = arg
		case argString:
			p.ItemID = arg
		}
	}
	return nil
}
