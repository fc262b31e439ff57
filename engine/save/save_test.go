package save

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/nathoo/storyscript/engine/state"
	"github.com/nathoo/storyscript/loader"
	"github.com/nathoo/storyscript/types"
)

func labCheckpoint(t *testing.T) *types.Checkpoint {
	t.Helper()
	cp, err := loader.Load("../../loader/testdata/lab.story")
	require.NoError(t, err)
	return cp
}

func played(t *testing.T, cp *types.Checkpoint) *state.Manager {
	t.Helper()
	st := state.New(cp, nil)
	require.NoError(t, st.AddLocationAttr(types.AttrObjects, "room", "door"))
	require.NoError(t, st.RemoveLocationAttr(types.AttrCollectibles, "room", "badge"))
	require.NoError(t, st.MoveObject("desk", 1, 2))
	require.NoError(t, st.CompleteObjective("read_notes"))
	require.NoError(t, st.ShowTask("find_badge"))
	st.AddUserState("collectibles", "badge")
	st.TriggerInteraction("open_door")
	require.NoError(t, st.SetCurrentLocation("hallway"))
	return st
}

func TestRoundTrip(t *testing.T) {
	cp := labCheckpoint(t)
	st := played(t, cp)

	data, err := Save(st, 7)
	require.NoError(t, err)

	sd, err := Load(data)
	require.NoError(t, err)
	assert.Equal(t, Version, sd.Version)
	assert.Equal(t, "The Lab", sd.Chapter)
	assert.Equal(t, 7, sd.Turn)
	assert.NotEqual(t, uuid.Nil, sd.ID)
	assert.False(t, sd.SavedAt.IsZero())

	restored, err := Apply(cp, sd, nil)
	require.NoError(t, err)
	assert.Equal(t, st.Overlay(), restored.Overlay())
	assert.Equal(t, "hallway", restored.CurrentLocation())
	assert.True(t, restored.HasLocationAttr(types.AttrObjects, "room", "door"))
	assert.True(t, restored.IsObjectiveComplete("read_notes"))
	assert.True(t, restored.HasUserState("collectibles", "badge"))
}

func TestSave_IDsAreUnique(t *testing.T) {
	st := state.New(labCheckpoint(t), nil)
	a, err := Save(st, 0)
	require.NoError(t, err)
	b, err := Save(st, 0)
	require.NoError(t, err)

	sa, err := Load(a)
	require.NoError(t, err)
	sb, err := Load(b)
	require.NoError(t, err)
	assert.NotEqual(t, sa.ID, sb.ID)
}

func TestLoad_NilMapsNormalized(t *testing.T) {
	sd, err := Load([]byte(`{"version":"1","chapter":"The Lab","overlay":{}}`))
	require.NoError(t, err)

	ov := sd.Overlay
	assert.NotNil(t, ov.Objectives)
	assert.NotNil(t, ov.Tasks)
	assert.NotNil(t, ov.TaskVisible)
	assert.NotNil(t, ov.Locations)
	assert.NotNil(t, ov.Objects)
	assert.NotNil(t, ov.BoundingBoxes)
	assert.NotNil(t, ov.CharacterPositions)
	assert.NotNil(t, ov.Triggered)
	assert.NotNil(t, ov.UserState)
}

func TestLoad_InvalidJSON(t *testing.T) {
	_, err := Load([]byte("not json"))
	assert.Error(t, err)
}

func TestApply_Mismatch(t *testing.T) {
	cp := labCheckpoint(t)

	tests := []struct {
		name string
		sd   SaveData
	}{
		{"other chapter", SaveData{Version: Version, Chapter: "Another"}},
		{"other version", SaveData{Version: "0", Chapter: "The Lab"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Apply(cp, &tt.sd, nil)
			assert.ErrorIs(t, err, ErrMismatch)
		})
	}
}

func TestResume(t *testing.T) {
	cp := labCheckpoint(t)
	data, err := Save(played(t, cp), 3)
	require.NoError(t, err)

	st, sd, ok := Resume(cp, data, nil)
	require.True(t, ok)
	assert.Equal(t, 3, sd.Turn)
	assert.Equal(t, "hallway", st.CurrentLocation())
}

func TestResume_FallsBackToFreshState(t *testing.T) {
	cp := labCheckpoint(t)

	unknownLoc, err := json.Marshal(SaveData{
		Version: Version,
		Chapter: "The Lab",
		Overlay: types.Overlay{CurrentLocation: "attic"},
	})
	require.NoError(t, err)

	tests := []struct {
		name string
		data []byte
	}{
		{"corrupt", []byte("{")},
		{"empty", nil},
		{"other chapter", []byte(`{"version":"1","chapter":"Another"}`)},
		{"unknown location", unknownLoc},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			core, logs := observer.New(zapcore.WarnLevel)
			st, sd, ok := Resume(cp, tt.data, zap.New(core))

			assert.False(t, ok)
			assert.Nil(t, sd)
			require.NotNil(t, st)
			assert.Equal(t, "room", st.CurrentLocation())
			assert.Equal(t, 1, logs.FilterMessage("save not usable, starting fresh").Len())
		})
	}
}

func TestFiles(t *testing.T) {
	cp := labCheckpoint(t)
	path := filepath.Join(t.TempDir(), "saves", "lab.json")

	st, _, ok := ResumeFile(cp, path, nil)
	assert.False(t, ok, "missing file starts fresh")
	assert.Equal(t, "room", st.CurrentLocation())

	require.NoError(t, WriteFile(path, played(t, cp), 2))
	_, err := os.Stat(path)
	require.NoError(t, err)

	st, sd, ok := ResumeFile(cp, path, nil)
	require.True(t, ok)
	assert.Equal(t, 2, sd.Turn)
	assert.Equal(t, "hallway", st.CurrentLocation())
}
