package loader

import (
	"strconv"
	"strings"

	"github.com/nathoo/storyscript/types"
)

// entityKind selects which placeable family an object-style block declares.
type entityKind int

const (
	kindObject entityKind = iota
	kindBoundingBox
	kindCollectible
)

func (k entityKind) String() string {
	switch k {
	case kindBoundingBox:
		return "bounding box"
	case kindCollectible:
		return "collectible"
	default:
		return "object"
	}
}

func (k entityKind) attr() types.LocationAttr {
	switch k {
	case kindBoundingBox:
		return types.AttrBoundingBoxes
	case kindCollectible:
		return types.AttrCollectibles
	default:
		return types.AttrObjects
	}
}

func parseObjectSection(pc *parseContext, _, body string) error {
	return parseObjectLines(pc, kindObject, nil, strings.Split(body, "\n"), 0)
}

func parseBBoxSection(pc *parseContext, _, body string) error {
	return parseObjectLines(pc, kindBoundingBox, nil, strings.Split(body, "\n"), 0)
}

func parseCollectibleSection(pc *parseContext, _, body string) error {
	return parseObjectLines(pc, kindCollectible, nil, strings.Split(body, "\n"), 0)
}

// parseObjectLines reads CSV declarations of one entity family. A leading
// "+" places the entity in loc. A "$" line starts the trailer, whose lines
// attach action ids to entities declared earlier in the same block.
// offset is added to line numbers for error reporting.
func parseObjectLines(pc *parseContext, kind entityKind, loc *types.Location, lines []string, offset int) error {
	declared := map[string]bool{}
	inTrailer := false

	for i, raw := range lines {
		n := offset + i + 1
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		if line == "$" {
			if inTrailer {
				return pc.errorf(n, "second $ separator in %s block", kind)
			}
			inTrailer = true
			continue
		}
		if inTrailer {
			if kind == kindCollectible {
				return pc.errorf(n, "collectibles do not take actions")
			}
			if err := attachActions(pc, kind, declared, line, n); err != nil {
				return err
			}
			continue
		}

		place := strings.HasPrefix(line, "+")
		if place {
			if loc == nil {
				return pc.errorf(n, "placement prefix + used outside a location")
			}
			line = strings.TrimSpace(line[1:])
		}

		id, err := declareEntity(pc, kind, line, n)
		if err != nil {
			return err
		}
		declared[id] = true
		if place {
			loc.Attr(kind.attr())[id] = true
		}
	}
	return nil
}

// declareEntity parses one declaration line and registers the entity.
//
//	object, collectible: id, shortAssetPath, x, y, [width], [height]
//	bounding box:        id, x, y, width, height
func declareEntity(pc *parseContext, kind entityKind, line string, n int) (string, error) {
	fields := splitCSV(line)
	id := fields[0]
	if err := pc.checkIdent(n, kind.String(), id); err != nil {
		return "", err
	}
	if entityExists(pc.world, kind, id) {
		return "", pc.errorf(n, "%s %q declared twice", kind, id)
	}

	if kind == kindBoundingBox {
		if len(fields) != 5 {
			return "", pc.errorf(n, "bounding box needs id, x, y, width, height; got %d fields", len(fields))
		}
		nums, err := parseInts(pc, n, fields[1:])
		if err != nil {
			return "", err
		}
		pc.world.BoundingBoxes[id] = types.BBoxProperty{
			ID: id, X: nums[0], Y: nums[1], Width: nums[2], Height: nums[3],
		}
		return id, nil
	}

	if len(fields) < 4 || len(fields) > 6 {
		return "", pc.errorf(n, "%s needs id, asset, x, y, [width], [height]; got %d fields", kind, len(fields))
	}
	asset := fields[1]
	if asset == "" {
		return "", pc.errorf(n, "%s %q has an empty asset path", kind, id)
	}
	nums, err := parseInts(pc, n, fields[2:])
	if err != nil {
		return "", err
	}
	nums = append(nums, 0, 0) // width and height default to zero

	pc.world.MapAssets[asset] = "objects/" + asset
	if kind == kindCollectible {
		pc.world.Collectibles[id] = types.CollectibleProperty{
			ID: id, AssetKey: asset, X: nums[0], Y: nums[1], Width: nums[2], Height: nums[3],
		}
		return id, nil
	}
	pc.world.Objects[id] = types.ObjectProperty{
		ID: id, AssetKey: asset, X: nums[0], Y: nums[1], Width: nums[2], Height: nums[3],
	}
	return id, nil
}

// attachActions handles a trailer line "entityId, actionId, actionId...".
func attachActions(pc *parseContext, kind entityKind, declared map[string]bool, line string, n int) error {
	fields := splitList(line)
	if len(fields) < 2 {
		return pc.errorf(n, "action attachment needs an id and at least one action")
	}
	id, actions := fields[0], fields[1:]
	if !declared[id] {
		return pc.errorf(n, "%s %q is not declared in this block", kind, id)
	}
	for _, a := range actions {
		pc.assert(RefAction, a, "")
	}

	switch kind {
	case kindBoundingBox:
		bb := pc.world.BoundingBoxes[id]
		bb.IsInteractive = true
		bb.Actions = append(bb.Actions, actions...)
		pc.world.BoundingBoxes[id] = bb
	default:
		obj := pc.world.Objects[id]
		obj.IsInteractive = true
		obj.Actions = append(obj.Actions, actions...)
		pc.world.Objects[id] = obj
	}
	return nil
}

func entityExists(w *types.WorldMap, kind entityKind, id string) bool {
	var ok bool
	switch kind {
	case kindBoundingBox:
		_, ok = w.BoundingBoxes[id]
	case kindCollectible:
		_, ok = w.Collectibles[id]
	default:
		_, ok = w.Objects[id]
	}
	return ok
}

// parseInts converts every field to an int, failing on the first that is
// not an integer.
func parseInts(pc *parseContext, n int, fields []string) ([]int, error) {
	out := make([]int, 0, len(fields))
	for _, f := range fields {
		v, err := strconv.Atoi(f)
		if err != nil {
			return nil, pc.errorf(n, "%q is not an integer", f)
		}
		out = append(out, v)
	}
	return out, nil
}
