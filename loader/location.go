package loader

import (
	"strings"

	"github.com/nathoo/storyscript/types"
)

// parseLocations reads one paragraph per location. Unindented lines inside a
// paragraph are "key: value" settings; the objects, boundingBoxes,
// characters, collectibles and actions sub-paragraphs are handed to the
// matching entity parser scoped to the location.
func parseLocations(pc *parseContext, _, body string) error {
	paras, err := SplitToParagraph(strings.Split(body, "\n"))
	if err != nil {
		return pc.wrap(0, err, "splitting locations")
	}

	for _, para := range paras {
		id := strings.TrimSpace(para.Header)
		if err := pc.checkIdent(para.Line, "location", id); err != nil {
			return err
		}
		if _, dup := pc.world.Locations[id]; dup {
			return pc.errorf(para.Line, "location %q declared twice", id)
		}
		loc := types.NewLocation(id)
		loc.Name = id
		pc.world.Locations[id] = loc

		if err := parseLocationBody(pc, loc, para); err != nil {
			return err
		}
	}
	return nil
}

func parseLocationBody(pc *parseContext, loc *types.Location, para Paragraph) error {
	subs, err := SplitToParagraph(para.Body)
	if err != nil {
		return pc.wrap(para.Line, err, "location %q", loc.ID)
	}

	for _, sub := range subs {
		line := para.Line + sub.Line
		header := strings.TrimSpace(sub.Header)

		switch header {
		case "objects":
			err = parseObjectLines(pc, kindObject, loc, sub.Body, line)
		case "boundingBoxes":
			err = parseObjectLines(pc, kindBoundingBox, loc, sub.Body, line)
		case "collectibles":
			err = parseObjectLines(pc, kindCollectible, loc, sub.Body, line)
		case "characters":
			err = parseCharacters(pc, loc, sub.Body, line)
		case "actions":
			err = parseActionBlock(pc, loc, sub.Body, line)
		default:
			if len(sub.Body) > 0 {
				return pc.errorf(line, "unknown location block %q", header)
			}
			err = parseLocationSetting(pc, loc, header, line)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func parseLocationSetting(pc *parseContext, loc *types.Location, line string, n int) error {
	key, value, ok := splitKeyValue(line)
	if !ok {
		return pc.errorf(n, "location %q: expected key: value, got %q", loc.ID, line)
	}

	switch key {
	case "name":
		loc.Name = value
	case "asset":
		loc.AssetKey = value
	case "modes":
		for _, m := range splitList(value) {
			mode, err := types.ParseGameMode(m)
			if err != nil {
				return pc.wrap(n, err, "location %q modes", loc.ID)
			}
			loc.Modes[mode] = true
		}
	case "bgm":
		loc.BGMKey = value
		pc.assert(RefBGM, value, "")
	case "nav":
		for _, dest := range splitList(value) {
			loc.Navigation[dest] = true
			pc.assert(RefLocation, dest, "")
		}
	case "talkTopics":
		for _, topic := range splitList(value) {
			loc.TalkTopics[topic] = true
			pc.assert(RefDialogue, topic, "")
		}
	default:
		return pc.errorf(n, "location %q: unknown key %q", loc.ID, key)
	}
	return nil
}
