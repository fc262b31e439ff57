package loader

import (
	"strings"

	"github.com/nathoo/storyscript/types"
)

func parseCharacterSection(pc *parseContext, _, body string) error {
	return parseCharacters(pc, nil, strings.Split(body, "\n"), 0)
}

// parseCharacters reads "[+]id, displayName, defaultExpression, defaultPosition"
// paragraphs. Indented "expression: assetPath" lines declare expressions; a
// character without any gets its default expression under characters/<id>/.
func parseCharacters(pc *parseContext, loc *types.Location, lines []string, offset int) error {
	paras, err := SplitToParagraph(lines)
	if err != nil {
		return pc.wrap(offset, err, "splitting characters")
	}

	for _, para := range paras {
		n := offset + para.Line
		header := strings.TrimSpace(para.Header)

		place := strings.HasPrefix(header, "+")
		if place {
			if loc == nil {
				return pc.errorf(n, "placement prefix + used outside a location")
			}
			header = strings.TrimSpace(header[1:])
		}

		fields := splitCSV(header)
		if len(fields) != 4 {
			return pc.errorf(n, "character needs id, name, defaultExpression, defaultPosition; got %d fields", len(fields))
		}
		id := fields[0]
		if err := pc.checkIdent(n, "character", id); err != nil {
			return err
		}
		if _, dup := pc.world.Characters[id]; dup {
			return pc.errorf(n, "character %q declared twice", id)
		}

		ch := &types.Character{
			ID:                id,
			Name:              fields[1],
			DefaultExpression: fields[2],
			DefaultPosition:   fields[3],
			Expressions:       map[string]string{},
		}

		for i, exprLine := range para.Body {
			expr, path, ok := splitKeyValue(strings.TrimSpace(exprLine))
			if !ok || expr == "" || path == "" {
				return pc.errorf(n+i+1, "character %q: expected expression: assetPath, got %q", id, strings.TrimSpace(exprLine))
			}
			registerExpression(pc.world, ch, expr, path)
		}
		if len(ch.Expressions) == 0 {
			registerExpression(pc.world, ch, ch.DefaultExpression, "characters/"+id+"/"+ch.DefaultExpression)
		}
		if _, ok := ch.Expressions[ch.DefaultExpression]; !ok {
			return pc.errorf(n, "character %q: default expression %q is not declared", id, ch.DefaultExpression)
		}

		pc.world.Characters[id] = ch
		if place {
			loc.Characters[id] = true
		}
	}
	return nil
}

// registerExpression adds one expression asset for a character.
func registerExpression(w *types.WorldMap, ch *types.Character, expr, path string) {
	key := "char:" + ch.ID + ":" + expr
	ch.Expressions[expr] = key
	w.MapAssets[key] = path
}
