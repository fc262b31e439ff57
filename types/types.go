// Package types defines the shared data structures for the storyscript engine.
// This package contains only type definitions and their closed lookup tables.
package types

import (
	"fmt"
	"strings"
)

// GameMode is an interaction mode a location supports.
type GameMode int

const (
	ModeMenu GameMode = iota
	ModeMove
	ModeExplore
	ModeTalk
)

// AllModes lists every GameMode in declaration order.
var AllModes = []GameMode{ModeMenu, ModeMove, ModeExplore, ModeTalk}

var modeNames = map[string]GameMode{
	"menu":    ModeMenu,
	"move":    ModeMove,
	"explore": ModeExplore,
	"talk":    ModeTalk,
}

// ParseGameMode converts a DSL mode name to a GameMode.
func ParseGameMode(s string) (GameMode, error) {
	m, ok := modeNames[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return 0, fmt.Errorf("unknown game mode %q", s)
	}
	return m, nil
}

func (m GameMode) String() string {
	switch m {
	case ModeMenu:
		return "menu"
	case ModeMove:
		return "move"
	case ModeExplore:
		return "explore"
	case ModeTalk:
		return "talk"
	default:
		return fmt.Sprintf("GameMode(%d)", int(m))
	}
}

// LocationAttr names one of a location's membership sets.
type LocationAttr int

const (
	AttrNavigation LocationAttr = iota
	AttrTalkTopics
	AttrObjects
	AttrBoundingBoxes
	AttrCharacters
	AttrCollectibles
)

var attrNames = map[string]LocationAttr{
	"nav":           AttrNavigation,
	"navigation":    AttrNavigation,
	"talktopics":    AttrTalkTopics,
	"objects":       AttrObjects,
	"boundingboxes": AttrBoundingBoxes,
	"characters":    AttrCharacters,
	"collectibles":  AttrCollectibles,
}

// ParseLocationAttr converts a DSL attribute name to a LocationAttr.
func ParseLocationAttr(s string) (LocationAttr, error) {
	a, ok := attrNames[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return 0, fmt.Errorf("unknown location attribute %q", s)
	}
	return a, nil
}

func (a LocationAttr) String() string {
	switch a {
	case AttrNavigation:
		return "navigation"
	case AttrTalkTopics:
		return "talkTopics"
	case AttrObjects:
		return "objects"
	case AttrBoundingBoxes:
		return "boundingBoxes"
	case AttrCharacters:
		return "characters"
	case AttrCollectibles:
		return "collectibles"
	default:
		return fmt.Sprintf("LocationAttr(%d)", int(a))
	}
}

// Modes returns the game modes whose rendering depends on the attribute.
func (a LocationAttr) Modes() []GameMode {
	switch a {
	case AttrNavigation:
		return []GameMode{ModeMove}
	case AttrTalkTopics:
		return []GameMode{ModeTalk}
	case AttrObjects, AttrBoundingBoxes, AttrCollectibles:
		return []GameMode{ModeExplore}
	case AttrCharacters:
		return []GameMode{ModeExplore, ModeTalk}
	default:
		return nil
	}
}

// Set is an unordered set of ids.
type Set map[string]bool

// NewSet builds a set from the given ids.
func NewSet(ids ...string) Set {
	s := Set{}
	for _, id := range ids {
		s[id] = true
	}
	return s
}

// Location is one place in the world and the ids attached to it.
type Location struct {
	ID            string
	Name          string
	AssetKey      string
	BGMKey        string
	Modes         map[GameMode]bool
	Navigation    Set
	TalkTopics    Set
	Objects       Set
	BoundingBoxes Set
	Characters    Set
	Collectibles  Set
	EntryActions  []string // action ids run when the player enters
}

// NewLocation returns a location with every set allocated.
func NewLocation(id string) *Location {
	return &Location{
		ID:            id,
		Modes:         map[GameMode]bool{},
		Navigation:    Set{},
		TalkTopics:    Set{},
		Objects:       Set{},
		BoundingBoxes: Set{},
		Characters:    Set{},
		Collectibles:  Set{},
	}
}

// Attr returns the membership set for the attribute.
func (l *Location) Attr(a LocationAttr) Set {
	switch a {
	case AttrNavigation:
		return l.Navigation
	case AttrTalkTopics:
		return l.TalkTopics
	case AttrObjects:
		return l.Objects
	case AttrBoundingBoxes:
		return l.BoundingBoxes
	case AttrCharacters:
		return l.Characters
	case AttrCollectibles:
		return l.Collectibles
	default:
		return nil
	}
}

// ObjectProperty is a placeable sprite in a location.
type ObjectProperty struct {
	ID            string
	AssetKey      string
	X, Y          int
	Width, Height int // 0 when not declared
	IsInteractive bool
	Actions       []string
}

// BBoxProperty is an invisible clickable region in a location.
type BBoxProperty struct {
	ID            string
	X, Y          int
	Width, Height int
	IsInteractive bool
	Actions       []string
}

// CollectibleProperty is an item the player can pick up into user state.
type CollectibleProperty struct {
	ID            string
	AssetKey      string
	X, Y          int
	Width, Height int
}

// Character is a speaking actor with a set of expressions.
type Character struct {
	ID                string
	Name              string
	Expressions       map[string]string // expression -> asset key
	DefaultExpression string
	DefaultPosition   string
}

// Speaker identifies who says a dialogue line and how they are shown.
type Speaker struct {
	CharacterID string
	Expression  string
	Position    string
}

// DialogueLine is one line of a dialogue part.
type DialogueLine struct {
	Text     string
	Speaker  *Speaker
	Actions  []string // attached action ids
	GotoPart string   // branch target, empty when the part continues
}

// Dialogue is a named conversation made of parts. Parts may branch into
// each other with goto, and cycles are allowed.
type Dialogue struct {
	ID        string
	Title     string
	PartOrder []string
	Content   map[string][]DialogueLine
}

// SoundKind distinguishes background music from sound effects.
type SoundKind string

const (
	SoundBGM SoundKind = "bgm"
	SoundSFX SoundKind = "sfx"
)

// SoundAsset is a declared audio file.
type SoundAsset struct {
	Kind SoundKind
	Key  string
	Path string
}

// StateKind selects which state a condition queries.
type StateKind int

const (
	UserState StateKind = iota
	ChecklistState
)

var stateKindNames = map[string]StateKind{
	"user":      UserState,
	"checklist": ChecklistState,
}

// ParseStateKind converts a DSL state kind name to a StateKind.
func ParseStateKind(s string) (StateKind, error) {
	k, ok := stateKindNames[strings.ToLower(s)]
	if !ok {
		return 0, fmt.Errorf("unknown state kind %q", s)
	}
	return k, nil
}

func (k StateKind) String() string {
	if k == ChecklistState {
		return "checklist"
	}
	return "user"
}

// ActionCondition is a guard evaluated before an action's effect is applied.
// It holds when the queried boolean equals Expected.
type ActionCondition struct {
	Kind     StateKind
	Params   []string
	Expected bool
}

func (c ActionCondition) String() string {
	neg := ""
	if !c.Expected {
		neg = "!"
	}
	return neg + c.Kind.String() + "." + strings.Join(c.Params, ".")
}

// ActionType is the closed set of action kinds.
type ActionType string

const (
	ActionAddItem           ActionType = "add_item"
	ActionRemoveItem        ActionType = "remove_item"
	ActionAddMode           ActionType = "add_mode"
	ActionRemoveMode        ActionType = "remove_mode"
	ActionMoveCharacter     ActionType = "move_character"
	ActionMoveObject        ActionType = "move_object"
	ActionShowDialogue      ActionType = "show_dialogue"
	ActionStartQuiz         ActionType = "start_quiz"
	ActionGotoLocation      ActionType = "goto_location"
	ActionCompleteObjective ActionType = "complete_objective"
	ActionSetTask           ActionType = "set_task"
	ActionShowTask          ActionType = "show_task"
	ActionPlayBGM           ActionType = "play_bgm"
	ActionPlaySFX           ActionType = "play_sfx"
	ActionCollect           ActionType = "collect"
	ActionGrant             ActionType = "grant"
)

// ActionParams holds the arguments of an action. Which fields are set
// depends on the action type.
type ActionParams struct {
	Attr        LocationAttr
	LocationID  string
	ItemID      string
	Mode        GameMode
	CharacterID string
	Position    string
	X, Y        int
	Key         string // dialogue, quiz, objective, task, sound or user-state list
	Value       bool
}

// GameAction is an immutable parsed action.
type GameAction struct {
	ID         string
	Type       ActionType
	Params     ActionParams
	Conditions []ActionCondition
	Repeatable bool
	Source     string // original DSL text
}

// QuizOption is one answer to a quiz question.
type QuizOption struct {
	Text     string
	Reaction string
}

// QuizQuestion is one prompt of a quiz.
type QuizQuestion struct {
	Prompt        string
	Speaker       string
	CorrectOption int // zero-based index into Options
	Options       []QuizOption
}

// Quiz is an ordered list of questions.
type Quiz struct {
	ID        string
	Questions []QuizQuestion
}

// GameTask is the display record of a task.
type GameTask struct {
	Key         string
	Title       string
	Description string
	Visible     bool
}

// Checklist is the ordered objective and task registry of a chapter.
type Checklist struct {
	Objectives     []string
	ObjectiveNotes map[string]string
	Tasks          []string
	TaskDetails    map[string]GameTask
}

// HasObjective reports whether key is a declared objective.
func (c *Checklist) HasObjective(key string) bool {
	for _, k := range c.Objectives {
		if k == key {
			return true
		}
	}
	return false
}

// HasTask reports whether key is a declared task.
func (c *Checklist) HasTask(key string) bool {
	_, ok := c.TaskDetails[key]
	return ok
}

// WorldMap owns every parsed entity, keyed by id.
type WorldMap struct {
	Locations     map[string]*Location
	Dialogues     map[string]*Dialogue
	Objects       map[string]ObjectProperty
	BoundingBoxes map[string]BBoxProperty
	Characters    map[string]*Character
	Actions       map[string]*GameAction
	Collectibles  map[string]CollectibleProperty
	Quizzes       map[string]*Quiz
	SoundAssets   []SoundAsset
	MapAssets     map[string]string
}

// NewWorldMap returns an empty world map with all maps allocated.
func NewWorldMap() *WorldMap {
	return &WorldMap{
		Locations:     map[string]*Location{},
		Dialogues:     map[string]*Dialogue{},
		Objects:       map[string]ObjectProperty{},
		BoundingBoxes: map[string]BBoxProperty{},
		Characters:    map[string]*Character{},
		Actions:       map[string]*GameAction{},
		Collectibles:  map[string]CollectibleProperty{},
		Quizzes:       map[string]*Quiz{},
		MapAssets:     map[string]string{},
	}
}

// Checkpoint is one complete parsed chapter document.
type Checkpoint struct {
	Title              string
	Map                *WorldMap
	StartingLocationID string
	Checklist          Checklist
}

// LocationOverlay is the mutable part of a location.
type LocationOverlay struct {
	Modes         []string `json:"modes"`
	Navigation    []string `json:"navigation"`
	TalkTopics    []string `json:"talk_topics"`
	Objects       []string `json:"objects"`
	BoundingBoxes []string `json:"bounding_boxes"`
	Characters    []string `json:"characters"`
	Collectibles  []string `json:"collectibles"`
}

// Overlay is the serializable per-playthrough state layered on a Checkpoint.
type Overlay struct {
	CurrentLocation    string                     `json:"current_location"`
	Objectives         map[string]bool            `json:"objectives"`
	Tasks              map[string]bool            `json:"tasks"`
	TaskVisible        map[string]bool            `json:"task_visible"`
	Locations          map[string]LocationOverlay `json:"locations"`
	Objects            map[string]ObjectProperty  `json:"objects"`
	BoundingBoxes      map[string]BBoxProperty    `json:"bounding_boxes"`
	CharacterPositions map[string]string          `json:"character_positions"`
	Triggered          map[string]string          `json:"triggered"` // interaction id -> location
	UserState          map[string][]string        `json:"user_state"`
}
