// Package parser converts player command strings into Intents for the
// terminal front ends. Intentionally dumb: no NLP, just pattern matching.
package parser

import (
	"strings"
)

// Intent is a parsed player command.
type Intent struct {
	Verb   string
	Object string
	Target string
}

// Verbs understood by the engine.
const (
	VerbLook    = "look"
	VerbGo      = "go"
	VerbUse     = "use"
	VerbTalk    = "talk"
	VerbCollect = "collect"
	VerbTasks   = "tasks"
	VerbWait    = "wait"
)

var verbAliases = map[string]string{
	// Look
	"l":      VerbLook,
	"survey": VerbLook,

	// Movement
	"walk":   VerbGo,
	"run":    VerbGo,
	"move":   VerbGo,
	"head":   VerbGo,
	"enter":  VerbGo,
	"travel": VerbGo,

	// Interact with an object or region
	"x":       VerbUse,
	"examine": VerbUse,
	"inspect": VerbUse,
	"check":   VerbUse,
	"open":    VerbUse,
	"click":   VerbUse,
	"touch":   VerbUse,
	"press":   VerbUse,
	"read":    VerbUse,

	// Collect
	"take": VerbCollect,
	"get":  VerbCollect,
	"grab": VerbCollect,

	// Talk
	"ask":      VerbTalk,
	"speak":    VerbTalk,
	"chat":     VerbTalk,
	"converse": VerbTalk,

	// Checklist
	"task":       VerbTasks,
	"objectives": VerbTasks,
	"checklist":  VerbTasks,
	"journal":    VerbTasks,
	"j":          VerbTasks,

	"z": VerbWait,
}

var prepositions = map[string]bool{
	"on": true, "at": true, "to": true,
	"with": true, "in": true, "from": true,
	"about": true,
}

var articles = map[string]bool{
	"the": true, "a": true, "an": true,
}

// Parse converts a raw command string into an Intent.
func Parse(input string) Intent {
	input = strings.TrimSpace(input)
	if input == "" {
		return Intent{}
	}

	words := strings.Fields(strings.ToLower(input))

	// Handle multi-word verb phrases before general parsing.
	words = expandMultiWordVerbs(words)

	if alias, ok := verbAliases[words[0]]; ok {
		words[0] = alias
	}

	verb := words[0]
	rest := stripArticles(words[1:])

	// Use the first preposition as a delimiter between object and target.
	object, target := splitOnPreposition(rest)

	return Intent{
		Verb:   verb,
		Object: object,
		Target: target,
	}
}

// expandMultiWordVerbs handles "look at", "pick up", "talk to" etc.
func expandMultiWordVerbs(words []string) []string {
	if len(words) < 2 {
		return words
	}

	switch words[0] {
	case "look":
		if words[1] == "at" || words[1] == "in" || words[1] == "under" {
			return append([]string{VerbUse}, words[2:]...)
		}
	case "pick":
		if words[1] == "up" {
			return append([]string{VerbCollect}, words[2:]...)
		}
	case "talk", "speak", "chat":
		if words[1] == "to" || words[1] == "with" || words[1] == "about" {
			return append([]string{VerbTalk}, words[2:]...)
		}
	case "go":
		if words[1] == "to" {
			return append([]string{VerbGo}, words[2:]...)
		}
	}

	return words
}

// stripArticles removes articles ("the", "a", "an") from the word list.
func stripArticles(words []string) []string {
	result := make([]string, 0, len(words))
	for _, w := range words {
		if !articles[w] {
			result = append(result, w)
		}
	}
	return result
}

// splitOnPreposition splits words on the first preposition.
// Words before the preposition become the object, words after become the target.
// If no preposition is found, all words become the object.
func splitOnPreposition(words []string) (object, target string) {
	for i, w := range words {
		if prepositions[w] {
			object = strings.Join(words[:i], " ")
			target = strings.Join(words[i+1:], " ")
			return object, target
		}
	}
	return strings.Join(words, " "), ""
}
