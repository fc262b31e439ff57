package loader

import (
	"strings"

	"github.com/nathoo/storyscript/types"
)

// parseMusic reads "bgm|sfx, key, path" lines. Duplicate keys are kept so
// the validator can report them when they are referenced.
func parseMusic(pc *parseContext, _, body string) error {
	for _, nl := range numberLines(body) {
		fields := splitCSV(nl.text)
		if len(fields) != 3 {
			return pc.errorf(nl.n, "sound needs kind, key, path; got %d fields", len(fields))
		}
		kind := types.SoundKind(strings.ToLower(fields[0]))
		if kind != types.SoundBGM && kind != types.SoundSFX {
			return pc.errorf(nl.n, "unknown sound kind %q, want bgm or sfx", fields[0])
		}
		if err := pc.checkIdent(nl.n, string(kind), fields[1]); err != nil {
			return err
		}
		if fields[2] == "" {
			return pc.errorf(nl.n, "%s %q has an empty path", kind, fields[1])
		}
		pc.world.SoundAssets = append(pc.world.SoundAssets, types.SoundAsset{
			Kind: kind,
			Key:  fields[1],
			Path: fields[2],
		})
	}
	return nil
}

// parseAssets reads "key, path" lines into the asset map.
func parseAssets(pc *parseContext, _, body string) error {
	for _, nl := range numberLines(body) {
		fields := splitCSV(nl.text)
		if len(fields) != 2 || fields[0] == "" || fields[1] == "" {
			return pc.errorf(nl.n, "asset needs key, path; got %q", nl.text)
		}
		if prev, dup := pc.world.MapAssets[fields[0]]; dup && prev != fields[1] {
			return pc.errorf(nl.n, "asset %q already maps to %q", fields[0], prev)
		}
		pc.world.MapAssets[fields[0]] = fields[1]
	}
	return nil
}
