// Package rules embeds the built-in rule scripts.
package rules

import (
	"embed"
	"io/fs"
	"path"
	"strings"

	"github.com/michaelscutari/romlint/internal/scripts"
)

// Dir is the directory of FS holding the scripts.
const Dir = "builtin"

//go:embed builtin/*.lua
var FS embed.FS

// Load adds every built-in rule not already loaded under the same name.
func Load(h *scripts.Host) error {
	return h.LoadFS(FS, Dir)
}

// Names lists the built-in rules in load order.
func Names() []string {
	files, _ := fs.Glob(FS, path.Join(Dir, "*"+scripts.ScriptExt))
	names := make([]string, len(files))
	for i, f := range files {
		names[i] = strings.TrimSuffix(path.Base(f), scripts.ScriptExt)
	}
	return names
}
