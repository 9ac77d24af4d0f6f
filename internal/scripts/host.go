package scripts

import (
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog"
	lua "github.com/yuin/gopher-lua"
	"github.com/yuin/gopher-lua/parse"

	rlerrors "github.com/michaelscutari/romlint/internal/errors"
	"github.com/michaelscutari/romlint/internal/logging"
	"github.com/michaelscutari/romlint/internal/pathutil"
)

// ScriptExt is the extension of rule scripts.
const ScriptExt = ".lua"

// Script is a compiled rule and the capabilities it declared.
type Script struct {
	name         string
	source       string
	proto        *lua.FunctionProto
	requirements Requirements
}

func (s *Script) Name() string { return s.name }
func (s *Script) Source() string { return s.source }
func (s *Script) Requirements() Requirements { return s.requirements }

// Host holds the loaded scripts in load order and runs them against files.
// The script list must not change once checking starts.
type Host struct {
	scripts []*Script
	byName  map[string]*Script
	logger  zerolog.Logger
}

// NewHost returns an empty Host.
func NewHost() *Host {
	return &Host{
		byName: make(map[string]*Script),
		logger: logging.GetLogger("scripts"),
	}
}

// Load reads a script file. Its name is the file stem.
func (h *Host) Load(file string) error {
	src, err := os.ReadFile(file)
	if err != nil {
		return rlerrors.IO(err, file)
	}
	return h.LoadSource(pathutil.Stem(file), string(src))
}

// LoadSource compiles a script and evaluates its top level once to read its
// `requires` list. The script's lint function is not called.
func (h *Host) LoadSource(name, src string) error {
	if _, dup := h.byName[name]; dup {
		return rlerrors.Newf(rlerrors.ErrScriptLoad, "script %q is already loaded", name).
			WithDetail("script", name)
	}

	script, err := compile(name, src)
	if err != nil {
		return err
	}
	script.requirements, err = h.dryRun(script)
	if err != nil {
		return err
	}

	h.scripts = append(h.scripts, script)
	h.byName[name] = script
	h.logger.Debug().
		Str("script", name).
		Str("requires", script.requirements.String()).
		Msg("Script loaded")
	return nil
}

// LoadDir loads every script in dir in lexical order.
func (h *Host) LoadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return rlerrors.IO(err, dir)
	}
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ScriptExt {
			continue
		}
		if err := h.Load(filepath.Join(dir, e.Name())); err != nil {
			return err
		}
	}
	return nil
}

// LoadFS loads every script in dir of fsys in lexical order. Scripts whose
// name is already loaded are skipped, so a user script can replace a
// built-in one of the same name.
func (h *Host) LoadFS(fsys fs.FS, dir string) error {
	names, err := fs.Glob(fsys, path.Join(dir, "*"+ScriptExt))
	if err != nil {
		return fmt.Errorf("failed to list scripts: %w", err)
	}
	sort.Strings(names)
	for _, file := range names {
		name := strings.TrimSuffix(path.Base(file), ScriptExt)
		if h.Has(name) {
			h.logger.Debug().Str("script", name).Msg("Built-in script overridden")
			continue
		}
		src, err := fs.ReadFile(fsys, file)
		if err != nil {
			return rlerrors.IO(err, file)
		}
		if err := h.LoadSource(name, string(src)); err != nil {
			return err
		}
	}
	return nil
}

// Has reports whether a script named name is loaded.
func (h *Host) Has(name string) bool {
	_, ok := h.byName[name]
	return ok
}

// Scripts returns the loaded scripts in load order.
func (h *Host) Scripts() []*Script {
	return append([]*Script(nil), h.scripts...)
}

// Len returns the number of loaded scripts.
func (h *Host) Len() int {
	return len(h.scripts)
}

// Requirements is the union of every loaded script's capabilities.
func (h *Host) Requirements() Requirements {
	var r Requirements
	for _, s := range h.scripts {
		r = r.Union(s.requirements)
	}
	return r
}

func compile(name, src string) (*Script, error) {
	chunk, err := parse.Parse(strings.NewReader(src), name)
	if err != nil {
		return nil, rlerrors.Wrapf(err, rlerrors.ErrScriptLoad, "failed to parse script %s", name).
			WithDetail("script", name)
	}
	proto, err := lua.Compile(chunk, name)
	if err != nil {
		return nil, rlerrors.Wrapf(err, rlerrors.ErrScriptLoad, "failed to compile script %s", name).
			WithDetail("script", name)
	}
	return &Script{name: name, source: src, proto: proto}, nil
}

func (h *Host) dryRun(s *Script) (Requirements, error) {
	L, err := newState(h.logger, s.name)
	if err != nil {
		return 0, rlerrors.Wrap(err, rlerrors.ErrEngine, "failed to start interpreter")
	}
	defer L.Close()

	loadErr := func(format string, args ...interface{}) error {
		return rlerrors.Newf(rlerrors.ErrScriptLoad, "script %s: %s", s.name, fmt.Sprintf(format, args...)).
			WithDetail("script", s.name)
	}

	if err := L.CallByParam(lua.P{Fn: L.NewFunctionFromProto(s.proto), NRet: 0, Protect: true}); err != nil {
		return 0, loadErr("%s", errorMessage(err))
	}

	if L.GetGlobal("lint").Type() != lua.LTFunction {
		return 0, loadErr("no lint function defined")
	}

	var reqs Requirements
	switch requires := L.GetGlobal("requires").(type) {
	case *lua.LNilType:
	case *lua.LTable:
		requires.ForEach(func(_, v lua.LValue) {
			c, ok := ParseCapability(v.String())
			if !ok || v.Type() != lua.LTString {
				h.logger.Warn().Str("script", s.name).Str("requirement", v.String()).
					Str("type", v.Type().String()).Msg("Unknown requirement listed")
				return
			}
			reqs = reqs.With(c)
		})
	default:
		return 0, loadErr("requires must be a list, found %s", requires.Type())
	}
	return reqs, nil
}
