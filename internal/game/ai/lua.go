package ai

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/Shopify/go-lua"
)

// LoadPersona runs a Lua script and reads the persona table it returns.
//
// A script looks like:
//
//	return {
//	  name = "cautious",
//	  knock_threshold = 4,
//	  upcard_margin = 3,
//	  think_delay_ms = 250,
//	}
//
// Missing fields fall back to the default persona; an unnamed persona takes
// the script's base filename.
func LoadPersona(path string) (Persona, error) {
	state := lua.NewState()
	lua.OpenLibraries(state)

	if err := lua.LoadFile(state, path, ""); err != nil {
		return Persona{}, fmt.Errorf("load persona script: %w", err)
	}
	if err := state.ProtectedCall(0, 1, 0); err != nil {
		return Persona{}, fmt.Errorf("run persona script: %w", err)
	}
	if !state.IsTable(-1) {
		state.Pop(1)
		return Persona{}, fmt.Errorf("persona script must return a table")
	}

	persona := DefaultPersona()
	persona.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))

	if name, ok := tableString(state, "name"); ok {
		persona.Name = name
	}
	if threshold, ok := tableInt(state, "knock_threshold"); ok {
		persona.KnockThreshold = threshold
	}
	if margin, ok := tableInt(state, "upcard_margin"); ok {
		persona.UpcardMargin = margin
	}
	if delay, ok := tableInt(state, "think_delay_ms"); ok {
		persona.ThinkDelay = time.Duration(delay) * time.Millisecond
	}
	state.Pop(1)

	return persona.normalize(), nil
}

func tableString(state *lua.State, field string) (string, bool) {
	state.Field(-1, field)
	defer state.Pop(1)
	if !state.IsString(-1) {
		return "", false
	}
	value, ok := state.ToString(-1)
	return value, ok
}

func tableInt(state *lua.State, field string) (int, bool) {
	state.Field(-1, field)
	defer state.Pop(1)
	if !state.IsNumber(-1) {
		return 0, false
	}
	return state.ToInteger(-1)
}
