// Package state manages the mutable per-playthrough overlay layered on an
// immutable parsed checkpoint: location attribute sets and modes, a dirty-bit
// table per (location, mode), triggered interactions, checklist completion
// and user-state lists.
package state

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/nathoo/storyscript/engine/events"
	"github.com/nathoo/storyscript/types"
)

var (
	// ErrUnknownLocation is returned for a location id the checkpoint does
	// not declare.
	ErrUnknownLocation = errors.New("unknown location")
	// ErrUnknownEntity is returned for an object, bounding box or character
	// id the checkpoint does not declare.
	ErrUnknownEntity = errors.New("unknown entity")
	// ErrUnknownChecklistKey is returned for an objective or task key the
	// checkpoint does not declare.
	ErrUnknownChecklistKey = errors.New("unknown checklist key")
)

// locState is the mutable part of one location.
type locState struct {
	modes map[types.GameMode]bool
	attrs map[types.LocationAttr]types.Set
}

// Manager owns the runtime overlay. All methods are safe for concurrent use;
// observers are notified after the lock is released, so they may query the
// manager from Notify.
type Manager struct {
	mu  sync.RWMutex
	cp  *types.Checkpoint
	log *zap.Logger
	bus events.Bus

	current     string
	locations   map[string]*locState
	dirty       map[string]map[types.GameMode]bool
	objects     map[string]types.ObjectProperty
	bboxes      map[string]types.BBoxProperty
	charPos     map[string]string
	objectives  map[string]bool
	tasks       map[string]bool
	taskVisible map[string]bool
	triggered   map[string]string // interaction id -> location it fired in
	userState   map[string]types.Set
}

// New creates a fresh playthrough positioned at the checkpoint's starting
// location. Every mode a location declares starts dirty.
func New(cp *types.Checkpoint, log *zap.Logger) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	m := &Manager{
		cp:          cp,
		log:         log,
		current:     cp.StartingLocationID,
		locations:   make(map[string]*locState, len(cp.Map.Locations)),
		dirty:       make(map[string]map[types.GameMode]bool, len(cp.Map.Locations)),
		objects:     make(map[string]types.ObjectProperty, len(cp.Map.Objects)),
		bboxes:      make(map[string]types.BBoxProperty, len(cp.Map.BoundingBoxes)),
		charPos:     map[string]string{},
		objectives:  map[string]bool{},
		tasks:       map[string]bool{},
		taskVisible: map[string]bool{},
		triggered:   map[string]string{},
		userState:   map[string]types.Set{},
	}

	for id, loc := range cp.Map.Locations {
		ls := &locState{
			modes: make(map[types.GameMode]bool, len(loc.Modes)),
			attrs: make(map[types.LocationAttr]types.Set, 6),
		}
		for mode, on := range loc.Modes {
			if on {
				ls.modes[mode] = true
			}
		}
		for _, a := range allAttrs {
			ls.attrs[a] = copySet(loc.Attr(a))
		}
		m.locations[id] = ls
		m.dirty[id] = map[types.GameMode]bool{}
		for mode := range ls.modes {
			m.dirty[id][mode] = true
		}
	}
	for id, o := range cp.Map.Objects {
		m.objects[id] = o
	}
	for id, b := range cp.Map.BoundingBoxes {
		m.bboxes[id] = b
	}
	for id, c := range cp.Map.Characters {
		m.charPos[id] = c.DefaultPosition
	}
	for key, t := range cp.Checklist.TaskDetails {
		m.taskVisible[key] = t.Visible
	}
	return m
}

var allAttrs = []types.LocationAttr{
	types.AttrNavigation,
	types.AttrTalkTopics,
	types.AttrObjects,
	types.AttrBoundingBoxes,
	types.AttrCharacters,
	types.AttrCollectibles,
}

// Checkpoint returns the immutable checkpoint the manager was built from.
func (m *Manager) Checkpoint() *types.Checkpoint {
	return m.cp
}

// Subscribe registers an observer for location updates.
func (m *Manager) Subscribe(o events.Observer) events.Subscription {
	return m.bus.Subscribe(o)
}

// Unsubscribe removes a previously registered observer.
func (m *Manager) Unsubscribe(sub events.Subscription) bool {
	return m.bus.Unsubscribe(sub)
}

// Update notifies every observer that locationID may have changed.
func (m *Manager) Update(locationID string) {
	m.bus.Publish(locationID)
}

// CurrentLocation returns the id of the location the player is in.
func (m *Manager) CurrentLocation() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// SetCurrentLocation moves the player. Interactions triggered in the
// location being left are re-armed so a later visit can fire them again.
func (m *Manager) SetCurrentLocation(locationID string) error {
	m.mu.Lock()
	if _, ok := m.locations[locationID]; !ok {
		m.mu.Unlock()
		return fmt.Errorf("set current location %q: %w", locationID, ErrUnknownLocation)
	}
	prev := m.current
	if prev != locationID {
		m.rearmLocked(prev)
	}
	m.current = locationID
	m.mu.Unlock()

	m.Update(locationID)
	return nil
}

// rearmLocked forgets every interaction triggered in locationID.
func (m *Manager) rearmLocked(locationID string) {
	for id, loc := range m.triggered {
		if loc == locationID {
			delete(m.triggered, id)
			m.log.Debug("interaction re-armed", zap.String("interaction", id), zap.String("location", loc))
		}
	}
}

// AddLocationAttr adds itemID to the attribute set of a location and marks
// the modes that render the attribute dirty.
func (m *Manager) AddLocationAttr(attr types.LocationAttr, locationID, itemID string) error {
	return m.mutateAttr(attr, locationID, itemID, true)
}

// RemoveLocationAttr removes itemID from the attribute set of a location and
// marks the modes that render the attribute dirty.
func (m *Manager) RemoveLocationAttr(attr types.LocationAttr, locationID, itemID string) error {
	return m.mutateAttr(attr, locationID, itemID, false)
}

func (m *Manager) mutateAttr(attr types.LocationAttr, locationID, itemID string, add bool) error {
	m.mu.Lock()
	ls, ok := m.locations[locationID]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("%s of %q: %w", attr, locationID, ErrUnknownLocation)
	}
	set := ls.attrs[attr]
	if set == nil {
		m.mu.Unlock()
		return fmt.Errorf("unknown location attribute %s", attr)
	}
	if add {
		set[itemID] = true
	} else {
		delete(set, itemID)
	}
	m.markDirtyLocked(locationID, attr.Modes()...)
	if locationID != m.current {
		m.rearmLocked(locationID)
	}
	m.mu.Unlock()

	m.Update(locationID)
	return nil
}

// GetLocationAttr returns the sorted members of a location's attribute set.
func (m *Manager) GetLocationAttr(attr types.LocationAttr, locationID string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ls, ok := m.locations[locationID]
	if !ok {
		return nil, fmt.Errorf("%s of %q: %w", attr, locationID, ErrUnknownLocation)
	}
	return sortedKeys(ls.attrs[attr]), nil
}

// HasLocationAttr reports whether itemID is in a location's attribute set.
func (m *Manager) HasLocationAttr(attr types.LocationAttr, locationID, itemID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ls, ok := m.locations[locationID]
	return ok && ls.attrs[attr][itemID]
}

// AddLocationMode enables a game mode for a location and marks Menu dirty.
func (m *Manager) AddLocationMode(locationID string, mode types.GameMode) error {
	return m.mutateMode(locationID, mode, true)
}

// RemoveLocationMode disables a game mode for a location and marks Menu dirty.
func (m *Manager) RemoveLocationMode(locationID string, mode types.GameMode) error {
	return m.mutateMode(locationID, mode, false)
}

func (m *Manager) mutateMode(locationID string, mode types.GameMode, on bool) error {
	m.mu.Lock()
	ls, ok := m.locations[locationID]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("mode %s of %q: %w", mode, locationID, ErrUnknownLocation)
	}
	if on {
		ls.modes[mode] = true
	} else {
		delete(ls.modes, mode)
	}
	m.markDirtyLocked(locationID, types.ModeMenu)
	m.mu.Unlock()

	m.Update(locationID)
	return nil
}

// LocationModes returns the modes a location currently supports, in
// declaration order of types.AllModes.
func (m *Manager) LocationModes(locationID string) ([]types.GameMode, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ls, ok := m.locations[locationID]
	if !ok {
		return nil, fmt.Errorf("modes of %q: %w", locationID, ErrUnknownLocation)
	}
	var modes []types.GameMode
	for _, mode := range types.AllModes {
		if ls.modes[mode] {
			modes = append(modes, mode)
		}
	}
	return modes, nil
}

// HasLocationMode reports whether a location currently supports mode.
func (m *Manager) HasLocationMode(locationID string, mode types.GameMode) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ls, ok := m.locations[locationID]
	return ok && ls.modes[mode]
}

func (m *Manager) markDirtyLocked(locationID string, modes ...types.GameMode) {
	d := m.dirty[locationID]
	if d == nil {
		d = map[types.GameMode]bool{}
		m.dirty[locationID] = d
	}
	for _, mode := range modes {
		d[mode] = true
	}
}

// HasLocationUpdate reports whether any of the given modes of a location is
// dirty. With no modes it checks every mode. Reading never clears a bit.
func (m *Manager) HasLocationUpdate(locationID string, modes ...types.GameMode) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d := m.dirty[locationID]
	if len(modes) == 0 {
		modes = types.AllModes
	}
	for _, mode := range modes {
		if d[mode] {
			return true
		}
	}
	return false
}

// ClearLocationUpdate resets dirty bits of a location, all of them when no
// mode is given. It is meant for the single owner of the render loop.
func (m *Manager) ClearLocationUpdate(locationID string, modes ...types.GameMode) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d := m.dirty[locationID]
	if d == nil {
		return
	}
	if len(modes) == 0 {
		modes = types.AllModes
	}
	for _, mode := range modes {
		delete(d, mode)
	}
}

// GetObjPropertyMap returns a copy of the effective object properties.
func (m *Manager) GetObjPropertyMap() map[string]types.ObjectProperty {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]types.ObjectProperty, len(m.objects))
	for id, o := range m.objects {
		out[id] = o
	}
	return out
}

// GetBBoxPropertyMap returns a copy of the effective bounding boxes.
func (m *Manager) GetBBoxPropertyMap() map[string]types.BBoxProperty {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]types.BBoxProperty, len(m.bboxes))
	for id, b := range m.bboxes {
		out[id] = b
	}
	return out
}

// GetCollectiblePropertyMap returns the declared collectibles. Collectibles
// do not move, so this is the checkpoint's map copied.
func (m *Manager) GetCollectiblePropertyMap() map[string]types.CollectibleProperty {
	out := make(map[string]types.CollectibleProperty, len(m.cp.Map.Collectibles))
	for id, c := range m.cp.Map.Collectibles {
		out[id] = c
	}
	return out
}

// ObjProperty returns the effective properties of one object.
func (m *Manager) ObjProperty(id string) (types.ObjectProperty, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	o, ok := m.objects[id]
	return o, ok
}

// BBoxProperty returns the effective properties of one bounding box.
func (m *Manager) BBoxProperty(id string) (types.BBoxProperty, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.bboxes[id]
	return b, ok
}

// MoveObject repositions an object and marks Explore dirty in every location
// that shows it.
func (m *Manager) MoveObject(id string, x, y int) error {
	m.mu.Lock()
	o, ok := m.objects[id]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("move object %q: %w", id, ErrUnknownEntity)
	}
	o.X, o.Y = x, y
	m.objects[id] = o
	touched := m.locationsWithLocked(types.AttrObjects, id)
	for _, loc := range touched {
		m.markDirtyLocked(loc, types.ModeExplore)
	}
	m.mu.Unlock()

	for _, loc := range touched {
		m.Update(loc)
	}
	return nil
}

// MoveCharacter takes a character out of every location, places it in
// locationID at the given position, and marks the character modes dirty in
// each affected location.
func (m *Manager) MoveCharacter(characterID, locationID, position string) error {
	m.mu.Lock()
	if _, ok := m.cp.Map.Characters[characterID]; !ok {
		m.mu.Unlock()
		return fmt.Errorf("move character %q: %w", characterID, ErrUnknownEntity)
	}
	dest, ok := m.locations[locationID]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("move character %q to %q: %w", characterID, locationID, ErrUnknownLocation)
	}

	touched := m.locationsWithLocked(types.AttrCharacters, characterID)
	for _, loc := range touched {
		delete(m.locations[loc].attrs[types.AttrCharacters], characterID)
	}
	dest.attrs[types.AttrCharacters][characterID] = true
	if position != "" {
		m.charPos[characterID] = position
	}
	if !contains(touched, locationID) {
		touched = append(touched, locationID)
	}
	for _, loc := range touched {
		m.markDirtyLocked(loc, types.AttrCharacters.Modes()...)
	}
	m.mu.Unlock()

	for _, loc := range touched {
		m.Update(loc)
	}
	return nil
}

// CharacterPosition returns the current stage position of a character.
func (m *Manager) CharacterPosition(characterID string) string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.charPos[characterID]
}

// LocationsWith returns the sorted ids of locations whose attribute set
// currently contains itemID.
func (m *Manager) LocationsWith(attr types.LocationAttr, itemID string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.locationsWithLocked(attr, itemID)
}

// locationsWithLocked returns the sorted ids of locations whose attribute
// set contains itemID.
func (m *Manager) locationsWithLocked(attr types.LocationAttr, itemID string) []string {
	var out []string
	for id, ls := range m.locations {
		if ls.attrs[attr][itemID] {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}

// CompleteObjective marks an objective done. Checklist changes are polled
// by renderers, so no dirty bit is touched.
func (m *Manager) CompleteObjective(key string) error {
	if !m.cp.Checklist.HasObjective(key) {
		return fmt.Errorf("objective %q: %w", key, ErrUnknownChecklistKey)
	}
	m.mu.Lock()
	m.objectives[key] = true
	m.mu.Unlock()
	return nil
}

// IsObjectiveComplete reports whether an objective is done.
func (m *Manager) IsObjectiveComplete(key string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.objectives[key]
}

// SetTask sets the completion state of a task.
func (m *Manager) SetTask(key string, done bool) error {
	if !m.cp.Checklist.HasTask(key) {
		return fmt.Errorf("task %q: %w", key, ErrUnknownChecklistKey)
	}
	m.mu.Lock()
	if done {
		m.tasks[key] = true
	} else {
		delete(m.tasks, key)
	}
	m.mu.Unlock()
	return nil
}

// ShowTask makes a hidden task visible in the task list.
func (m *Manager) ShowTask(key string) error {
	if !m.cp.Checklist.HasTask(key) {
		return fmt.Errorf("task %q: %w", key, ErrUnknownChecklistKey)
	}
	m.mu.Lock()
	m.taskVisible[key] = true
	m.mu.Unlock()
	return nil
}

// IsTaskComplete reports whether a task is done.
func (m *Manager) IsTaskComplete(key string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.tasks[key]
}

// IsTaskVisible reports whether a task is shown in the task list.
func (m *Manager) IsTaskVisible(key string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.taskVisible[key]
}

// IsChecklistComplete reports whether key names a completed objective or task.
func (m *Manager) IsChecklistComplete(key string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.objectives[key] || m.tasks[key]
}

// TriggerInteraction records that a one-shot interaction fired in the
// current location.
func (m *Manager) TriggerInteraction(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.triggered[id] = m.current
}

// HasTriggeredInteraction reports whether a one-shot interaction has fired
// and not been re-armed since.
func (m *Manager) HasTriggeredInteraction(id string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.triggered[id]
	return ok
}

// AddUserState adds id to a named user-state list such as collectibles or
// achievements.
func (m *Manager) AddUserState(list, id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	set := m.userState[list]
	if set == nil {
		set = types.Set{}
		m.userState[list] = set
	}
	set[id] = true
}

// HasUserState reports whether id is in a named user-state list.
func (m *Manager) HasUserState(list, id string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.userState[list][id]
}

// UserState returns the sorted members of a named user-state list.
func (m *Manager) UserState(list string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return sortedKeys(m.userState[list])
}

func copySet(s types.Set) types.Set {
	out := make(types.Set, len(s))
	for k, v := range s {
		if v {
			out[k] = true
		}
	}
	return out
}

func sortedKeys(s types.Set) []string {
	out := make([]string, 0, len(s))
	for k := range s {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
