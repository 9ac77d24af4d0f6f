package scripts

import (
	"fmt"

	lua "github.com/yuin/gopher-lua"

	"github.com/michaelscutari/romlint/internal/catalog"
	"github.com/michaelscutari/romlint/internal/config"
)

// run is one (file, script) pair. Its tables are the only things the script
// can reach.
type run struct {
	script *Script
	env    Env
}

// need raises a rule error unless the script declared c.
func (r *run) need(L *lua.LState, c Capability) {
	if r.script.requirements.Has(c) {
		return
	}
	raise(L, &ruleError{
		message: fmt.Sprintf("Requested %s data, but this capability was not declared", c),
	})
}

func (r *run) fileTable(L *lua.LState) *lua.LTable {
	return L.SetFuncs(L.NewTable(), map[string]lua.LGFunction{
		"stat":    r.fileStat,
		"path":    r.filePath,
		"archive": r.fileArchive,
	})
}

func (r *run) apiTable(L *lua.LState) *lua.LTable {
	api := L.SetFuncs(L.NewTable(), map[string]lua.LGFunction{
		"db_contains":     r.dbContains,
		"similar_files":   r.similarFiles,
		"assert_eq":       assertEq,
		"assert_ne":       assertNe,
		"assert_contains": assertContains,
		"throw":           throw,
		"fatal":           fatal,
	})

	fm := r.env.File
	if system := fm.System(); system != "" {
		api.RawSetString("system", lua.LString(system))
	}
	if cfg := fm.Config(); cfg != nil {
		api.RawSetString("config", configTable(L, cfg))
	}
	return api
}

func (r *run) fileStat(L *lua.LState) int {
	r.need(L, CapStat)
	st := r.env.File.Stat()
	t := L.NewTable()
	t.RawSetString("is_dir", lua.LBool(st.IsDir))
	t.RawSetString("is_file", lua.LBool(st.IsFile))
	t.RawSetString("mode", lua.LNumber(st.Mode))
	t.RawSetString("size", lua.LNumber(st.Size))
	L.Push(t)
	return 1
}

func (r *run) filePath(L *lua.LState) int {
	r.need(L, CapPath)
	fm := r.env.File
	t := L.NewTable()
	t.RawSetString("path", lua.LString(fm.Path()))
	t.RawSetString("file_name", lua.LString(fm.FileName()))
	t.RawSetString("stem", lua.LString(fm.Stem()))
	t.RawSetString("extension", lua.LString(fm.Extension()))
	L.Push(t)
	return 1
}

func (r *run) fileArchive(L *lua.LState) int {
	r.need(L, CapArchive)
	archive := r.env.File.Archive()
	if archive == nil {
		L.Push(lua.LNil)
		return 1
	}
	L.Push(stringList(L, archive.FileNames()))
	return 1
}

// catalog returns the file's catalog or raises when the system has none.
func (r *run) catalog(L *lua.LState) *catalog.Database {
	r.need(L, CapFileDB)
	if r.env.Catalog == nil {
		system := r.env.File.System()
		if system == "" {
			system = r.env.File.SystemLabel()
		}
		raise(L, &ruleError{message: fmt.Sprintf("No database found for system '%s'", system)})
	}
	return r.env.Catalog
}

// queryName is the optional first argument of catalog lookups, defaulting to
// the file name. Method-call syntax passes the api table first.
func (r *run) queryName(L *lua.LState) string {
	arg := 1
	if _, ok := L.Get(1).(*lua.LTable); ok {
		arg = 2
	}
	return L.OptString(arg, r.env.File.FileName())
}

func (r *run) dbContains(L *lua.LState) int {
	db := r.catalog(L)
	L.Push(lua.LBool(db.Contains(r.queryName(L))))
	return 1
}

func (r *run) similarFiles(L *lua.LState) int {
	db := r.catalog(L)
	L.Push(stringList(L, db.SimilarTo(catalog.Tokenize(r.queryName(L)))))
	return 1
}

func configTable(L *lua.LState, cfg *config.ResolvedConfig) *lua.LTable {
	t := L.NewTable()
	t.RawSetString("raw_format", stringList(L, cfg.RawFormat))
	t.RawSetString("archive_format", stringList(L, cfg.ArchiveFormat))
	t.RawSetString("obsolete_formats", stringList(L, cfg.ObsoleteFormats))
	return t
}

func stringList(L *lua.LState, items []string) *lua.LTable {
	t := L.CreateTable(len(items), 0)
	for _, s := range items {
		t.Append(lua.LString(s))
	}
	return t
}

// hintList reads an optional list of hint lines.
func hintList(L *lua.LState, n int) []string {
	v := L.Get(n)
	t, ok := v.(*lua.LTable)
	if !ok {
		if v != lua.LNil {
			return []string{v.String()}
		}
		return nil
	}
	var hints []string
	t.ForEach(func(_, line lua.LValue) {
		hints = append(hints, formatValue(line))
	})
	return hints
}

func throw(L *lua.LState) int {
	raise(L, &ruleError{message: L.CheckString(1), hints: hintList(L, 2)})
	return 0
}

func fatal(L *lua.LState) int {
	raise(L, &ruleError{message: L.CheckString(1), hints: hintList(L, 2), terminal: true})
	return 0
}
