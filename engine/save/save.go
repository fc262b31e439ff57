// Package save implements JSON serialization of a playthrough overlay.
package save

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nathoo/storyscript/engine/state"
	"github.com/nathoo/storyscript/types"
)

// Version is the save format version written by Save.
const Version = "1"

// ErrMismatch is returned when save data belongs to another chapter or
// format version.
var ErrMismatch = errors.New("save does not match chapter")

// SaveData is the JSON-serializable save format.
type SaveData struct {
	Version string        `json:"version"`
	ID      uuid.UUID     `json:"id"`
	Chapter string        `json:"chapter"`
	SavedAt time.Time     `json:"saved_at"`
	Turn    int           `json:"turn"`
	Overlay types.Overlay `json:"overlay"`
}

// Save serializes the mutable state of st to JSON bytes.
func Save(st *state.Manager, turn int) ([]byte, error) {
	data := SaveData{
		Version: Version,
		ID:      uuid.New(),
		Chapter: st.Checkpoint().Title,
		SavedAt: time.Now().UTC(),
		Turn:    turn,
		Overlay: st.Overlay(),
	}
	return json.MarshalIndent(data, "", "  ")
}

// Load deserializes JSON bytes into SaveData.
func Load(data []byte) (*SaveData, error) {
	var sd SaveData
	if err := json.Unmarshal(data, &sd); err != nil {
		return nil, err
	}
	// Ensure maps are never nil after load.
	ov := &sd.Overlay
	if ov.Objectives == nil {
		ov.Objectives = map[string]bool{}
	}
	if ov.Tasks == nil {
		ov.Tasks = map[string]bool{}
	}
	if ov.TaskVisible == nil {
		ov.TaskVisible = map[string]bool{}
	}
	if ov.Locations == nil {
		ov.Locations = map[string]types.LocationOverlay{}
	}
	if ov.Objects == nil {
		ov.Objects = map[string]types.ObjectProperty{}
	}
	if ov.BoundingBoxes == nil {
		ov.BoundingBoxes = map[string]types.BBoxProperty{}
	}
	if ov.CharacterPositions == nil {
		ov.CharacterPositions = map[string]string{}
	}
	if ov.Triggered == nil {
		ov.Triggered = map[string]string{}
	}
	if ov.UserState == nil {
		ov.UserState = map[string][]string{}
	}
	return &sd, nil
}

// Apply rebuilds a state manager for cp from loaded save data.
func Apply(cp *types.Checkpoint, sd *SaveData, log *zap.Logger) (*state.Manager, error) {
	if sd.Version != Version {
		return nil, fmt.Errorf("%w: format version %q, want %q", ErrMismatch, sd.Version, Version)
	}
	if sd.Chapter != cp.Title {
		return nil, fmt.Errorf("%w: saved from %q, loading %q", ErrMismatch, sd.Chapter, cp.Title)
	}
	return state.Restore(cp, sd.Overlay, log)
}

// Resume restores a playthrough from raw save bytes. Corrupt data or data
// from another chapter is logged and a fresh playthrough is returned
// instead; restored reports which happened.
func Resume(cp *types.Checkpoint, data []byte, log *zap.Logger) (st *state.Manager, sd *SaveData, restored bool) {
	if log == nil {
		log = zap.NewNop()
	}
	sd, err := Load(data)
	if err == nil {
		st, err = Apply(cp, sd, log)
	}
	if err != nil {
		log.Warn("save not usable, starting fresh", zap.String("chapter", cp.Title), zap.Error(err))
		return state.New(cp, log), nil, false
	}
	log.Info("save restored",
		zap.String("chapter", sd.Chapter),
		zap.String("save_id", sd.ID.String()),
		zap.Int("turn", sd.Turn))
	return st, sd, true
}

// WriteFile saves st to path, creating parent directories.
func WriteFile(path string, st *state.Manager, turn int) error {
	data, err := Save(st, turn)
	if err != nil {
		return fmt.Errorf("encoding save: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating save directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing save: %w", err)
	}
	return nil
}

// ResumeFile reads path and resumes from it. A missing file starts fresh
// without a warning.
func ResumeFile(cp *types.Checkpoint, path string, log *zap.Logger) (*state.Manager, *SaveData, bool) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return state.New(cp, log), nil, false
	}
	if err != nil && log != nil {
		log.Warn("reading save failed", zap.String("path", path), zap.Error(err))
	}
	return Resume(cp, data, log)
}
