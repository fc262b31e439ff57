package loader

import (
	"strings"

	"github.com/nathoo/storyscript/types"
)

// startPart holds dialogue lines written before the first part marker.
const startPart = "start"

// dialogueBuilder is the cursor state of one forward pass over a dialogue.
type dialogueBuilder struct {
	d       *types.Dialogue
	part    string
	speaker *types.Speaker
	gotos   []branch
}

// branch is a goto target and the line it was written on.
type branch struct {
	target string
	line   int
}

// current returns the line most recently appended to the active part.
func (b *dialogueBuilder) current() *types.DialogueLine {
	lines := b.d.Content[b.part]
	if len(lines) == 0 {
		return nil
	}
	return &lines[len(lines)-1]
}

func (b *dialogueBuilder) startPart(name string) {
	b.part = name
	b.speaker = nil
	if _, ok := b.d.Content[name]; !ok {
		b.d.Content[name] = nil
		b.d.PartOrder = append(b.d.PartOrder, name)
	}
}

func (b *dialogueBuilder) say(text string) {
	b.d.Content[b.part] = append(b.d.Content[b.part], types.DialogueLine{
		Text:    text,
		Speaker: b.speaker,
	})
}

// parseDialogue reads a <<dialogue:id>> section.
//
//	label: Title
//	$speakerId, expression, position   the next line is spoken by speakerId
//	#action, action                    attach actions to the previous line
//	[Goto part]                        branch after the previous line
//	[part]                             start a new part
//
// Any other line is dialogue text spoken by the current speaker of the part.
func parseDialogue(pc *parseContext, header, body string) error {
	id := sectionQualifier(header)
	if id == "" {
		return pc.errorf(0, "dialogue section needs an id, as in <<dialogue:intro>>")
	}
	if err := pc.checkIdent(0, "dialogue", id); err != nil {
		return err
	}
	if _, dup := pc.world.Dialogues[id]; dup {
		return pc.errorf(0, "dialogue %q declared twice", id)
	}

	b := &dialogueBuilder{
		d: &types.Dialogue{ID: id, Title: id, Content: map[string][]types.DialogueLine{}},
	}
	b.startPart(startPart)

	lines := numberLines(body)
	for i := 0; i < len(lines); i++ {
		nl := lines[i]
		text := nl.text

		switch {
		case i == 0 && strings.HasPrefix(text, "label:"):
			b.d.Title = strings.TrimSpace(strings.TrimPrefix(text, "label:"))

		case strings.HasPrefix(text, "$"):
			speaker, err := parseSpeaker(pc, strings.TrimSpace(text[1:]), nl.n)
			if err != nil {
				return err
			}
			if i+1 >= len(lines) || isControlLine(lines[i+1].text) {
				return pc.errorf(nl.n, "speaker %q has no line to say", speaker.CharacterID)
			}
			b.speaker = speaker
			i++
			b.say(lines[i].text)

		case strings.HasPrefix(text, "#"):
			last := b.current()
			if last == nil {
				return pc.errorf(nl.n, "actions %q have no dialogue line to attach to", text)
			}
			actions := splitList(text[1:])
			if len(actions) == 0 {
				return pc.errorf(nl.n, "empty action list")
			}
			for _, a := range actions {
				pc.assert(RefAction, a, "")
			}
			last.Actions = append(last.Actions, actions...)

		case isBracketed(text):
			inner := strings.TrimSpace(text[1 : len(text)-1])
			if target, ok := gotoTarget(inner); ok {
				last := b.current()
				if last == nil {
					return pc.errorf(nl.n, "goto %q has no dialogue line to branch from", target)
				}
				last.GotoPart = target
				b.gotos = append(b.gotos, branch{target: target, line: nl.n})
				continue
			}
			if inner == "" {
				return pc.errorf(nl.n, "empty part name")
			}
			b.startPart(inner)

		default:
			b.say(text)
		}
	}

	targeted := false
	for _, br := range b.gotos {
		if _, ok := b.d.Content[br.target]; !ok {
			return pc.errorf(br.line, "goto to undeclared part %q", br.target)
		}
		targeted = targeted || br.target == startPart
	}

	// A dialogue written entirely in named parts drops the empty start part.
	if len(b.d.Content[startPart]) == 0 && len(b.d.PartOrder) > 1 && !targeted {
		delete(b.d.Content, startPart)
		b.d.PartOrder = b.d.PartOrder[1:]
	}

	pc.world.Dialogues[id] = b.d
	return nil
}

// parseSpeaker parses "speakerId[, expression[, position]]".
func parseSpeaker(pc *parseContext, text string, n int) (*types.Speaker, error) {
	fields := splitCSV(text)
	if len(fields) > 3 || fields[0] == "" {
		return nil, pc.errorf(n, "speaker line needs speakerId, expression, position; got %q", text)
	}
	sp := &types.Speaker{CharacterID: fields[0]}
	if len(fields) > 1 {
		sp.Expression = fields[1]
	}
	if len(fields) > 2 {
		sp.Position = fields[2]
	}
	pc.assert(RefCharacter, sp.CharacterID, "")
	return sp, nil
}

func isBracketed(s string) bool {
	return len(s) >= 2 && s[0] == '[' && s[len(s)-1] == ']'
}

// gotoTarget reports whether the bracket contents are "Goto part".
func gotoTarget(inner string) (string, bool) {
	fields := strings.Fields(inner)
	if len(fields) == 2 && strings.EqualFold(fields[0], "goto") {
		return fields[1], true
	}
	return "", false
}

// isControlLine reports whether a line is dialogue markup rather than text.
func isControlLine(s string) bool {
	return strings.HasPrefix(s, "$") || strings.HasPrefix(s, "#") || isBracketed(s)
}
