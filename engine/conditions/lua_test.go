package conditions

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nathoo/storyscript/types"
)

const yesToBadges = `
function answer(q)
	if q.kind == "user" and q.list == "collectibles" then
		return q.id == "badge"
	end
	return false
end
`

func TestLuaPrompter_Answers(t *testing.T) {
	p, err := NewLuaPrompter(yesToBadges)
	if err != nil {
		t.Fatalf("NewLuaPrompter: %v", err)
	}
	defer p.Close()

	ctx := context.Background()
	got, err := p.Ask(ctx, NewQuestion(user("collectibles", "badge", true)))
	if err != nil || !got {
		t.Errorf("Ask(badge) = %v, %v; want true", got, err)
	}
	got, err = p.Ask(ctx, NewQuestion(user("collectibles", "coin", true)))
	if err != nil || got {
		t.Errorf("Ask(coin) = %v, %v; want false", got, err)
	}
}

func TestLuaPrompter_InEvaluator(t *testing.T) {
	p, err := NewLuaPrompter(yesToBadges)
	if err != nil {
		t.Fatalf("NewLuaPrompter: %v", err)
	}
	defer p.Close()

	e := NewEvaluator(PromptResolver{State: fakeState{}, Prompter: p}, WithTimeout(time.Second))
	ok, err := e.CheckAll(context.Background(), []types.ActionCondition{
		user("collectibles", "badge", true),
		user("collectibles", "coin", false),
		user("achievements", "badge", false),
	})
	if err != nil {
		t.Fatalf("CheckAll: %v", err)
	}
	if !ok {
		t.Error("CheckAll = false, want true")
	}
}

func TestLuaPrompter_LoadErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"syntax error", "function answer(", "executing script"},
		{"no answer function", "x = 1", "does not define function answer"},
		{"sandboxed require", "require('os')", "executing script"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewLuaPrompter(tt.src)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %q, want %q", err.Error(), tt.want)
			}
		})
	}
}

func TestLuaPrompter_NonBoolean(t *testing.T) {
	p, err := NewLuaPrompter(`function answer(q) return "yes" end`)
	if err != nil {
		t.Fatalf("NewLuaPrompter: %v", err)
	}
	defer p.Close()

	if _, err := p.Ask(context.Background(), NewQuestion(user("a", "b", true))); err == nil {
		t.Error("expected error for non-boolean answer")
	}
}

func TestLuaPrompter_Timeout(t *testing.T) {
	p, err := NewLuaPrompter(`function answer(q) while true do end end`)
	if err != nil {
		t.Fatalf("NewLuaPrompter: %v", err)
	}
	defer p.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := p.Ask(ctx, NewQuestion(user("a", "b", true))); err == nil {
		t.Error("expected error when the script never returns")
	}
}

func TestLoadLuaPrompter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sim.lua")
	if err := os.WriteFile(path, []byte(yesToBadges), 0o644); err != nil {
		t.Fatal(err)
	}
	p, err := LoadLuaPrompter(path)
	if err != nil {
		t.Fatalf("LoadLuaPrompter: %v", err)
	}
	p.Close()

	if _, err := LoadLuaPrompter(filepath.Join(t.TempDir(), "missing.lua")); err == nil {
		t.Error("expected error for missing script")
	}
}
