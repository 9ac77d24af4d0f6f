package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strings"

	"github.com/adrg/xdg"
	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	gotoml "github.com/pelletier/go-toml/v2"

	rlerrors "github.com/michaelscutari/romlint/internal/errors"
)

// DefaultDBDir is used when the configuration does not name a catalog directory.
const DefaultDBDir = "dats"

// EnvPrefix marks environment variables that override file settings.
const EnvPrefix = "ROMLINT_"

// Config is the on-disk configuration: global settings plus one entry per system.
type Config struct {
	Global  GlobalConfig            `koanf:"global"`
	Systems map[string]SystemConfig `koanf:"system"`
}

// GlobalConfig holds settings that are not tied to a system.
type GlobalConfig struct {
	DBDir   string `koanf:"db_dir"`
	LintDir string `koanf:"lint_dir"`
}

// SystemConfig is the extension policy of one system. Raw and archive
// formats accept either a single string or a list in the source file.
type SystemConfig struct {
	RawFormat       []string `koanf:"raw_format"`
	ArchiveFormat   []string `koanf:"archive_format"`
	ObsoleteFormats []string `koanf:"obsolete_formats"`
}

// ResolvedConfig is the extension taxonomy for the system a file belongs to.
type ResolvedConfig struct {
	System          string
	RawFormat       []string
	ArchiveFormat   []string
	ObsoleteFormats []string
}

// Resolve looks up a system's policy. The second result is false when the
// system is not configured.
func (c *Config) Resolve(system string) (*ResolvedConfig, bool) {
	if c == nil || system == "" {
		return nil, false
	}
	sys, ok := c.Systems[system]
	if !ok {
		return nil, false
	}
	return &ResolvedConfig{
		System:          system,
		RawFormat:       append([]string(nil), sys.RawFormat...),
		ArchiveFormat:   append([]string(nil), sys.ArchiveFormat...),
		ObsoleteFormats: append([]string(nil), sys.ObsoleteFormats...),
	}, true
}

// HasSystem reports whether system is configured.
func (c *Config) HasSystem(system string) bool {
	_, ok := c.Resolve(system)
	return ok
}

// SystemNames returns configured system names in sorted order.
func (c *Config) SystemNames() []string {
	if c == nil {
		return nil
	}
	names := make([]string, 0, len(c.Systems))
	for name := range c.Systems {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DBDir returns the catalog directory resolved against cwd.
func (c *Config) DBDir(cwd string) string {
	dir := c.Global.DBDir
	if dir == "" {
		dir = DefaultDBDir
	}
	if filepath.IsAbs(dir) {
		return dir
	}
	return filepath.Join(cwd, dir)
}

// LintDir returns the user script directory resolved against cwd, or "" if
// none is configured.
func (c *Config) LintDir(cwd string) string {
	dir := c.Global.LintDir
	if dir == "" {
		return ""
	}
	if filepath.IsAbs(dir) {
		return dir
	}
	return filepath.Join(cwd, dir)
}

// Find returns the first configuration file that exists, searching cwd and
// then the XDG config directory.
func Find(cwd string) (string, error) {
	candidates := []string{
		filepath.Join(cwd, "romlint.toml"),
		filepath.Join(cwd, "config.toml"),
		filepath.Join(cwd, "romlint.yaml"),
		filepath.Join(xdg.ConfigHome, "romlint", "config.toml"),
	}
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}
	return "", rlerrors.Newf(rlerrors.ErrConfigLoad,
		"no configuration found (looked for %s)", strings.Join(candidates, ", "))
}

// Load reads a configuration file, applies ROMLINT_ environment overrides
// and validates the result.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, rlerrors.Wrapf(err, rlerrors.ErrConfigLoad, "reading config %s", path).
			WithDetail("path", path)
	}
	return load(file.Provider(path), parserFor(path), path)
}

// Parse loads configuration from raw bytes. format is "toml" or "yaml".
func Parse(data []byte, format string) (*Config, error) {
	return load(&rawBytesProvider{bytes: data}, parserFor("config."+format), "<bytes>")
}

type rawBytesProvider struct{ bytes []byte }

func (r *rawBytesProvider) ReadBytes() ([]byte, error) { return r.bytes, nil }
func (r *rawBytesProvider) Read() (map[string]interface{}, error) {
	return nil, errors.New("not implemented")
}

func parserFor(path string) koanf.Parser {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return yaml.Parser()
	default:
		return toml.Parser()
	}
}

func load(provider koanf.Provider, parser koanf.Parser, origin string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(provider, parser); err != nil {
		return nil, rlerrors.Wrapf(err, rlerrors.ErrConfigParse, "parsing config %s", origin).
			WithDetail("path", origin)
	}

	// ROMLINT_GLOBAL_DB_DIR -> global.db_dir
	err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "_", ".", 1)
	}), nil)
	if err != nil {
		return nil, rlerrors.Wrap(err, rlerrors.ErrConfigLoad, "loading environment overrides")
	}

	var cfg Config
	unmarshalConf := koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			Result:           &cfg,
			WeaklyTypedInput: true,
			DecodeHook:       stringToListHookFunc(),
		},
	}
	if err := k.UnmarshalWithConf("", &cfg, unmarshalConf); err != nil {
		return nil, rlerrors.Wrapf(err, rlerrors.ErrConfigParse, "decoding config %s", origin)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// stringToListHookFunc lets `raw_format = "sfc"` stand for `["sfc"]`.
func stringToListHookFunc() mapstructure.DecodeHookFunc {
	return func(f reflect.Type, t reflect.Type, data interface{}) (interface{}, error) {
		if f.Kind() != reflect.String || t.Kind() != reflect.Slice {
			return data, nil
		}
		if t.Elem().Kind() != reflect.String {
			return data, nil
		}
		s := data.(string)
		if s == "" {
			return []string{}, nil
		}
		return []string{s}, nil
	}
}

func (c *Config) validate() error {
	if c.Systems == nil {
		c.Systems = map[string]SystemConfig{}
	}
	for _, name := range c.SystemNames() {
		sys := c.Systems[name]
		if len(sys.RawFormat) == 0 {
			return rlerrors.Newf(rlerrors.ErrConfigParse,
				"system %q must declare at least one raw_format", name).
				WithDetail("system", name)
		}
		c.Systems[name] = SystemConfig{
			RawFormat:       normalizeFormats(sys.RawFormat),
			ArchiveFormat:   normalizeFormats(sys.ArchiveFormat),
			ObsoleteFormats: normalizeFormats(sys.ObsoleteFormats),
		}
	}
	return nil
}

// normalizeFormats strips leading dots so ".sfc" and "sfc" mean the same.
func normalizeFormats(formats []string) []string {
	out := make([]string, 0, len(formats))
	for _, f := range formats {
		f = strings.TrimPrefix(strings.TrimSpace(f), ".")
		if f != "" {
			out = append(out, f)
		}
	}
	return out
}

type fileLayout struct {
	Global globalLayout            `toml:"global"`
	System map[string]systemLayout `toml:"system"`
}

type globalLayout struct {
	DBDir   string `toml:"db_dir"`
	LintDir string `toml:"lint_dir"`
}

type systemLayout struct {
	RawFormat       []string `toml:"raw_format"`
	ArchiveFormat   []string `toml:"archive_format"`
	ObsoleteFormats []string `toml:"obsolete_formats,omitempty"`
}

// Generate writes a starter configuration covering a few common systems.
func Generate(w io.Writer) error {
	layout := fileLayout{
		Global: globalLayout{DBDir: DefaultDBDir, LintDir: "lints"},
		System: map[string]systemLayout{
			"nes":  {RawFormat: []string{"nes"}, ArchiveFormat: []string{"zip"}},
			"snes": {RawFormat: []string{"sfc"}, ArchiveFormat: []string{"zip"}, ObsoleteFormats: []string{"smc", "swc", "fig"}},
			"gb":   {RawFormat: []string{"gb"}, ArchiveFormat: []string{"zip"}},
			"gba":  {RawFormat: []string{"gba"}, ArchiveFormat: []string{"zip"}},
			"md":   {RawFormat: []string{"md"}, ArchiveFormat: []string{"zip"}, ObsoleteFormats: []string{"bin", "gen", "smd"}},
		},
	}

	data, err := gotoml.Marshal(layout)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if _, err := io.WriteString(w, "# romlint configuration\n\n"); err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}
