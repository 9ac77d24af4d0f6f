package scripts

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	lua "github.com/yuin/gopher-lua"

	"github.com/michaelscutari/romlint/internal/catalog"
	rlerrors "github.com/michaelscutari/romlint/internal/errors"
	"github.com/michaelscutari/romlint/internal/event"
	"github.com/michaelscutari/romlint/internal/filemeta"
)

// disabledGlobals reach the filesystem or the module loader.
var disabledGlobals = []string{"dofile", "loadfile", "require", "module"}

const ruleErrorType = "romlint.error"

// Env is everything one rule run may observe.
type Env struct {
	File *filemeta.FileMeta
	// Catalog is the reference catalog of the file's system, or nil.
	Catalog *catalog.Database
	// DisplayPath is the path shown in diagnostics. Defaults to File.Path().
	DisplayPath string
}

func (e Env) displayPath() string {
	if e.DisplayPath != "" {
		return e.DisplayPath
	}
	return e.File.Path()
}

// ruleError is what host functions raise inside the interpreter.
type ruleError struct {
	message  string
	hints    []string
	terminal bool
}

func (e *ruleError) Error() string { return e.message }

// newState creates an interpreter with only the base, table and string
// libraries. print goes to the debug log.
func newState(logger zerolog.Logger, script string) (*lua.LState, error) {
	L := lua.NewState(lua.Options{SkipOpenLibs: true})

	libs := []struct {
		name string
		open lua.LGFunction
	}{
		{lua.BaseLibName, lua.OpenBase},
		{lua.TabLibName, lua.OpenTable},
		{lua.StringLibName, lua.OpenString},
	}
	for _, lib := range libs {
		err := L.CallByParam(lua.P{Fn: L.NewFunction(lib.open), NRet: 0, Protect: true}, lua.LString(lib.name))
		if err != nil {
			L.Close()
			return nil, fmt.Errorf("failed to open %s library: %w", lib.name, err)
		}
	}
	for _, name := range disabledGlobals {
		L.SetGlobal(name, lua.LNil)
	}

	L.SetGlobal("print", L.NewFunction(func(L *lua.LState) int {
		parts := make([]string, L.GetTop())
		for i := range parts {
			parts[i] = L.ToStringMeta(L.Get(i + 1)).String()
		}
		logger.Debug().Str("script", script).Msg(strings.Join(parts, "\t"))
		return 0
	}))

	mt := L.NewTypeMetatable(ruleErrorType)
	L.SetField(mt, "__tostring", L.NewFunction(func(L *lua.LState) int {
		ud := L.CheckUserData(1)
		if re, ok := ud.Value.(*ruleError); ok {
			L.Push(lua.LString(re.message))
		} else {
			L.Push(lua.LString("error"))
		}
		return 1
	}))
	return L, nil
}

// raise aborts the running script with e.
func raise(L *lua.LState, e *ruleError) {
	ud := L.NewUserData()
	ud.Value = e
	L.SetMetatable(ud, L.GetTypeMetatable(ruleErrorType))
	L.Error(ud, 0)
}

// errorMessage extracts what the script raised from an interpreter error,
// without interpreter stack frames.
func errorMessage(err error) string {
	if re := asRuleError(err); re != nil {
		return re.message
	}
	var apiErr *lua.ApiError
	if errors.As(err, &apiErr) && apiErr.Object != nil {
		return apiErr.Object.String()
	}
	return err.Error()
}

func asRuleError(err error) *ruleError {
	var apiErr *lua.ApiError
	if !errors.As(err, &apiErr) {
		return nil
	}
	ud, ok := apiErr.Object.(*lua.LUserData)
	if !ok {
		return nil
	}
	re, _ := ud.Value.(*ruleError)
	return re
}

// Run executes one script against one file in a fresh interpreter. A nil
// diagnostic means the rule passed. An error means the interpreter itself
// failed or ctx ended, and is fatal to the run.
func (h *Host) Run(ctx context.Context, s *Script, env Env) (*event.Diagnostic, error) {
	L, err := newState(h.logger, s.name)
	if err != nil {
		return nil, rlerrors.Wrap(err, rlerrors.ErrEngine, "failed to start interpreter").
			WithDetail("script", s.name)
	}
	defer L.Close()
	L.SetContext(ctx)

	h.logger.Trace().Str("script", s.name).Str("path", env.File.Path()).Msg("Running rule")

	err = L.CallByParam(lua.P{Fn: L.NewFunctionFromProto(s.proto), NRet: 0, Protect: true})
	if err == nil {
		lint := L.GetGlobal("lint")
		if lint.Type() != lua.LTFunction {
			err = errors.New("no lint function defined")
		} else {
			r := &run{script: s, env: env}
			err = L.CallByParam(lua.P{Fn: lint, NRet: 0, Protect: true}, r.fileTable(L), r.apiTable(L))
		}
	}
	if err == nil {
		return nil, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}

	diag := event.Diagnostic{Path: env.displayPath()}
	if re := asRuleError(err); re != nil {
		diag.Message = re.message
		diag.Hints = re.hints
		diag.Terminal = re.terminal
	} else {
		diag.Message = errorMessage(err)
	}
	return &diag, nil
}

// RunAll runs every script in load order, stopping after the first terminal
// diagnostic.
func (h *Host) RunAll(ctx context.Context, env Env) ([]event.Diagnostic, error) {
	var diags []event.Diagnostic
	for _, s := range h.scripts {
		diag, err := h.Run(ctx, s, env)
		if err != nil {
			return nil, err
		}
		if diag == nil {
			continue
		}
		diags = append(diags, *diag)
		if diag.Terminal {
			break
		}
	}
	return diags, nil
}
