// Package loader compiles chapter documents written in the storyscript DSL
// into an immutable types.Checkpoint. Parsing is a single forward pass;
// cross references are checked once the whole document has been read.
package loader

import (
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/nathoo/storyscript/types"
)

// sectionParser consumes the body of one section and mutates the shared
// parse context. name is the full header text without delimiters.
type sectionParser func(pc *parseContext, name, body string) error

// sectionParsers maps section-name prefixes to their parsers.
var sectionParsers = map[string]sectionParser{
	"configuration": parseConfiguration,
	"location":      parseLocations,
	"objects":       parseObjectSection,
	"boundingBoxes": parseBBoxSection,
	"collectibles":  parseCollectibleSection,
	"characters":    parseCharacterSection,
	"dialogue":      parseDialogue,
	"objectives":    parseObjectives,
	"tasks":         parseTasks,
	"quizzes":       parseQuiz,
	"music":         parseMusic,
	"assets":        parseAssets,
}

// Option configures a Parse call.
type Option func(*options)

type options struct {
	log *zap.Logger
}

// WithLogger sets the logger used for parse diagnostics.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.log = l
		}
	}
}

// Load reads a chapter file and parses it.
func Load(path string, opts ...Option) (*types.Checkpoint, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading chapter %s: %w", path, err)
	}
	cp, err := Parse(string(data), opts...)
	if err != nil {
		return nil, fmt.Errorf("parsing chapter %s: %w", path, err)
	}
	return cp, nil
}

// Parse compiles a chapter document. Any error aborts the whole parse and no
// partial checkpoint is returned.
func Parse(text string, opts ...Option) (*types.Checkpoint, error) {
	o := options{log: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}

	sections, err := SplitByHeader(text, sectionHeaderPattern)
	if err != nil {
		return nil, &ParseError{Msg: "splitting sections", Err: err}
	}

	pc := newParseContext(o.log)
	for _, sec := range sections {
		key, ok := matchSection(sec.Header)
		if !ok {
			return nil, &ParseError{Msg: fmt.Sprintf("unrecognized section header <<%s>>", sec.Header)}
		}
		pc.section = sec.Header
		o.log.Debug("parsing section", zap.String("header", sec.Header), zap.String("parser", key))
		if err := sectionParsers[key](pc, sec.Header, sec.Body); err != nil {
			return nil, err
		}
	}
	pc.section = ""

	if pc.start == "" {
		return nil, &ParseError{Section: "configuration", Msg: "start location is required"}
	}

	if err := pc.refs.Verify(pc.world, &pc.checklist); err != nil {
		return nil, err
	}

	o.log.Debug("chapter parsed",
		zap.String("title", pc.title),
		zap.Int("locations", len(pc.world.Locations)),
		zap.Int("actions", len(pc.world.Actions)),
		zap.Int("assertions", pc.refs.Len()))

	return &types.Checkpoint{
		Title:              pc.title,
		Map:                pc.world,
		StartingLocationID: pc.start,
		Checklist:          pc.checklist,
	}, nil
}

// matchSection returns the longest registered prefix of header.
func matchSection(header string) (string, bool) {
	best := ""
	for key := range sectionParsers {
		if strings.HasPrefix(header, key) && len(key) > len(best) {
			best = key
		}
	}
	return best, best != ""
}

// sectionQualifier returns the text after the first colon of a header.
func sectionQualifier(header string) string {
	if idx := strings.Index(header, ":"); idx >= 0 {
		return strings.TrimSpace(header[idx+1:])
	}
	return ""
}

// parseConfiguration reads chapter-level settings.
func parseConfiguration(pc *parseContext, _, body string) error {
	for _, nl := range numberLines(body) {
		key, value, ok := splitKeyValue(nl.text)
		if !ok {
			return pc.errorf(nl.n, "expected key: value, got %q", nl.text)
		}
		switch strings.ToLower(key) {
		case "title":
			pc.title = value
		case "start":
			if err := pc.checkIdent(nl.n, "location", value); err != nil {
				return err
			}
			pc.start = value
			pc.assert(RefLocation, value, "")
		default:
			return pc.errorf(nl.n, "unknown configuration key %q", key)
		}
	}
	return nil
}
