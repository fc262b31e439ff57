package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const labPath = "../../loader/testdata/lab.story"

func runArgs(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	err := run(args, strings.NewReader(""), &out, &errOut)
	return out.String(), err
}

func TestRun_Version(t *testing.T) {
	out, err := runArgs(t, "--version")
	require.NoError(t, err)
	assert.Contains(t, out, "storyscript dev")
}

func TestRun_Check(t *testing.T) {
	out, err := runArgs(t, "--check", labPath)
	require.NoError(t, err)
	assert.Contains(t, out, "ok (3 locations")
}

func TestRun_CheckReportsErrors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.story")
	require.NoError(t, os.WriteFile(path, []byte("<<configuration>>\ntitle: Broken\nstart: nowhere\n"), 0o644))

	_, err := runArgs(t, "--check", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "loading chapter")
}

func TestRun_Dump(t *testing.T) {
	out, err := runArgs(t, "--dump", labPath)
	require.NoError(t, err)
	assert.Contains(t, out, "title: The Lab")
	assert.Contains(t, out, "startinglocationid: room")
}

func TestRun_MissingChapter(t *testing.T) {
	_, err := runArgs(t, "--ui", "plain")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chapter must not be empty")
}

func TestRun_ReplayAndResume(t *testing.T) {
	dir := t.TempDir()
	replay := filepath.Join(dir, "moves.txt")
	require.NoError(t, os.WriteFile(replay, []byte("collect badge\n"), 0o644))

	out, err := runArgs(t, "--save-dir", dir, "--replay", replay, labPath)
	require.NoError(t, err)
	assert.Contains(t, out, "> collect badge\nYou collect the badge.")
	assert.FileExists(t, filepath.Join(dir, "lab.json"))

	// The next run resumes from the autosave.
	require.NoError(t, os.WriteFile(replay, []byte("/state\n/quit\n"), 0o644))
	out, err = runArgs(t, "--save-dir", dir, "--replay", replay, labPath)
	require.NoError(t, err)
	assert.Contains(t, out, "[collectibles: [badge]]")
	assert.Contains(t, out, "[Turn: 3]")
}

func TestRun_ScriptMode(t *testing.T) {
	dir := t.TempDir()
	script := filepath.Join(dir, "yes.lua")
	require.NoError(t, os.WriteFile(script, []byte("function answer(q) return true end\n"), 0o644))
	replay := filepath.Join(dir, "moves.txt")
	require.NoError(t, os.WriteFile(replay, []byte("/quit\n"), 0o644))

	out, err := runArgs(t, "--save-dir", dir, "--mode", "script", "--script", script, "--replay", replay, labPath)
	require.NoError(t, err)
	assert.Contains(t, out, "Lab Room")
}

func TestRun_ScriptModeBadScript(t *testing.T) {
	dir := t.TempDir()
	_, err := runArgs(t, "--save-dir", dir, "--mode", "script", "--script", filepath.Join(dir, "missing.lua"), labPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "simulation script")
}
