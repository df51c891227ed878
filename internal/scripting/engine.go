package scripting

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
)

// defaultEmoteTTL is used when a script omits or zeroes ttl_ms.
const defaultEmoteTTL = 2 * time.Second

// Engine wraps a single gopher-lua VM for emote selection.
// Rooms tick on their own goroutines, so calls are serialized by mu.
type Engine struct {
	mu     sync.Mutex
	vm     *lua.LState
	log    *zap.Logger
	loaded int
}

// NewEngine creates a Lua engine and loads all scripts from the given directory.
func NewEngine(scriptsDir string, log *zap.Logger) (*Engine, error) {
	vm := lua.NewState(lua.Options{
		SkipOpenLibs: false,
	})

	// Set API version global
	vm.SetGlobal("API_VERSION", lua.LNumber(1))

	e := &Engine{vm: vm, log: log}

	emotePath := filepath.Join(scriptsDir, "emote")
	if err := e.loadDir(emotePath); err != nil {
		vm.Close()
		return nil, fmt.Errorf("load emote scripts: %w", err)
	}

	return e, nil
}

// loadDir loads all .lua files in a directory.
func (e *Engine) loadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			e.log.Warn("腳本目錄不存在，使用內建表情", zap.String("dir", dir))
			return nil
		}
		return err
	}
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".lua" {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if err := e.vm.DoFile(path); err != nil {
			return fmt.Errorf("load %s: %w", path, err)
		}
		e.loaded++
		e.log.Debug("loaded lua script", zap.String("file", path))
	}
	return nil
}

// ScriptCount reports how many script files were loaded.
func (e *Engine) ScriptCount() int { return e.loaded }

// EmoteContext holds pre-packed game state for emote selection.
type EmoteContext struct {
	Mode             string // "chase" or "frightened"
	Score            int
	CaptureCount     int
	CapturesToWin    int
	DotsLeft         int
	PelletsLeft      int
	NearestGhostDist int // Manhattan distance to closest active ghost (-1 = none)
	FrightenedMs     int64
	StepCount        int
}

// EmoteChoice is the selected emote and how long it stays on screen.
type EmoteChoice struct {
	Emote string
	TTL   time.Duration
}

// ChooseEmote calls the Lua pick_emote function. Any failure falls back
// to the built-in emote table, so callers always get a usable choice.
func (e *Engine) ChooseEmote(ctx EmoteContext) EmoteChoice {
	e.mu.Lock()
	defer e.mu.Unlock()

	fn := e.vm.GetGlobal("pick_emote")
	if fn == lua.LNil {
		return fallbackEmote(ctx)
	}

	t := e.vm.NewTable()
	t.RawSetString("mode", lua.LString(ctx.Mode))
	t.RawSetString("score", lua.LNumber(ctx.Score))
	t.RawSetString("capture_count", lua.LNumber(ctx.CaptureCount))
	t.RawSetString("captures_to_win", lua.LNumber(ctx.CapturesToWin))
	t.RawSetString("dots_left", lua.LNumber(ctx.DotsLeft))
	t.RawSetString("pellets_left", lua.LNumber(ctx.PelletsLeft))
	t.RawSetString("nearest_ghost_dist", lua.LNumber(ctx.NearestGhostDist))
	t.RawSetString("frightened_ms", lua.LNumber(ctx.FrightenedMs))
	t.RawSetString("step_count", lua.LNumber(ctx.StepCount))

	if err := e.vm.CallByParam(lua.P{
		Fn:      fn,
		NRet:    1,
		Protect: true,
	}, t); err != nil {
		e.log.Error("lua pick_emote error", zap.Error(err))
		return fallbackEmote(ctx)
	}

	result := e.vm.Get(-1)
	e.vm.Pop(1)

	if result == lua.LNil {
		// nil means the script declined; no emote this band.
		return EmoteChoice{}
	}

	rt, ok := result.(*lua.LTable)
	if !ok {
		e.log.Error("lua pick_emote returned non-table")
		return fallbackEmote(ctx)
	}

	choice := EmoteChoice{
		Emote: lStr(rt, "emote"),
		TTL:   time.Duration(lInt(rt, "ttl_ms")) * time.Millisecond,
	}
	if choice.Emote == "" {
		return fallbackEmote(ctx)
	}
	if choice.TTL <= 0 {
		choice.TTL = defaultEmoteTTL
	}
	return choice
}

// Built-in emote tables, indexed by step count for variety without RNG.
var (
	chaseEmotes      = []string{"nom nom", "too slow!", "catch me!", "still hungry"}
	frightenedEmotes = []string{"uh oh", "run!", "not like this", "zigzag time"}
	corneredEmotes   = []string{"back off!", "one more and you win?"}
)

// fallbackEmote picks from the built-in tables when scripts are absent or broken.
func fallbackEmote(ctx EmoteContext) EmoteChoice {
	var pool []string
	switch {
	case ctx.Mode == "frightened":
		pool = frightenedEmotes
	case ctx.CapturesToWin > 0 && ctx.CaptureCount >= ctx.CapturesToWin-1:
		pool = corneredEmotes
	default:
		pool = chaseEmotes
	}
	return EmoteChoice{
		Emote: pool[ctx.StepCount%len(pool)],
		TTL:   defaultEmoteTTL,
	}
}

// --- Lua helpers ---

// lInt reads an integer field from a Lua table.
func lInt(t *lua.LTable, key string) int {
	return int(lua.LVAsNumber(t.RawGetString(key)))
}

// lStr reads a string field from a Lua table.
func lStr(t *lua.LTable, key string) string {
	return lua.LVAsString(t.RawGetString(key))
}

// Close shuts down the Lua VM.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.vm.Close()
}
