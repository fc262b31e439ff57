package loader

import (
	"regexp"
	"strings"

	"github.com/nathoo/storyscript/types"
)

var andPattern = regexp.MustCompile(`\s+AND\s+`)

// defaultUserList is the user-state list queried by "user.<id>".
const defaultUserList = "collectibles"

// parseConditions splits an if clause on AND and parses each condition.
// actionType names the guarded action in reference errors.
func parseConditions(pc *parseContext, clause string, actionType types.ActionType, n int) ([]types.ActionCondition, error) {
	var conds []types.ActionCondition
	for _, part := range andPattern.Split(strings.TrimSpace(clause), -1) {
		c, err := parseCondition(pc, part, actionType, n)
		if err != nil {
			return nil, err
		}
		conds = append(conds, c)
	}
	return conds, nil
}

// parseCondition parses "[!]kind.param1[.param2]". A leading "!" flips the
// expected boolean.
func parseCondition(pc *parseContext, text string, actionType types.ActionType, n int) (types.ActionCondition, error) {
	text = strings.TrimSpace(text)
	cond := types.ActionCondition{Expected: true}
	if strings.HasPrefix(text, "!") {
		cond.Expected = false
		text = strings.TrimSpace(text[1:])
	}

	parts := strings.Split(text, ".")
	if len(parts) < 2 || len(parts) > 3 {
		return cond, pc.errorf(n, "malformed condition %q", text)
	}
	for _, p := range parts {
		if p == "" {
			return cond, pc.errorf(n, "malformed condition %q", text)
		}
	}

	kind, err := types.ParseStateKind(parts[0])
	if err != nil {
		return cond, pc.wrap(n, err, "condition %q", text)
	}
	cond.Kind = kind

	switch kind {
	case types.ChecklistState:
		if len(parts) != 2 {
			return cond, pc.errorf(n, "checklist condition takes one key, got %q", text)
		}
		cond.Params = []string{parts[1]}
		pc.assert(RefChecklist, parts[1], actionType)
	case types.UserState:
		if len(parts) == 2 {
			cond.Params = []string{defaultUserList, parts[1]}
		} else {
			cond.Params = []string{parts[1], parts[2]}
		}
		if cond.Params[0] == defaultUserList {
			pc.assert(RefCollectible, cond.Params[1], actionType)
		}
	}
	return cond, nil
}
