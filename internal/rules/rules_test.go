package rules

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/michaelscutari/romlint/internal/catalog"
	"github.com/michaelscutari/romlint/internal/config"
	"github.com/michaelscutari/romlint/internal/event"
	"github.com/michaelscutari/romlint/internal/filemeta"
	"github.com/michaelscutari/romlint/internal/scripts"
)

const testConfig = `
[system.snes]
raw_format = "sfc"
archive_format = "zip"
obsolete_formats = ["smc"]

[system.gb]
raw_format = "gb"
`

type fixture struct {
	t    *testing.T
	root string
	cfg  *config.Config
	host *scripts.Host
	db   *catalog.Database
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	cfg, err := config.Parse([]byte(testConfig), "toml")
	require.NoError(t, err)

	h := scripts.NewHost()
	require.NoError(t, Load(h))

	db, err := catalog.Parse([]byte(`<datafile>
		<game name="Chrono Trigger (USA).sfc"><description>x</description></game>
		<game name="Chrono Trigger (USA)"><description>x</description></game>
		<game name="Tetris (World).gb"><description>x</description></game>
	</datafile>`), "snes")
	require.NoError(t, err)

	root := t.TempDir()
	for _, dir := range []string{"snes", "gb"} {
		require.NoError(t, os.MkdirAll(filepath.Join(root, dir), 0o755))
		require.NoError(t, os.Chmod(filepath.Join(root, dir), 0o755))
	}
	return &fixture{t: t, root: root, cfg: cfg, host: h, db: db}
}

func (f *fixture) write(rel string, mode os.FileMode) string {
	path := filepath.Join(f.root, rel)
	require.NoError(f.t, os.WriteFile(path, []byte("data"), mode))
	require.NoError(f.t, os.Chmod(path, mode))
	return path
}

func (f *fixture) zip(rel string, names ...string) string {
	path := filepath.Join(f.root, rel)
	out, err := os.Create(path)
	require.NoError(f.t, err)
	zw := zip.NewWriter(out)
	for _, n := range names {
		w, err := zw.Create(n)
		require.NoError(f.t, err)
		_, err = w.Write([]byte("rom data"))
		require.NoError(f.t, err)
	}
	require.NoError(f.t, zw.Close())
	require.NoError(f.t, out.Close())
	require.NoError(f.t, os.Chmod(path, 0o644))
	return path
}

// run checks path with a single built-in rule.
func (f *fixture) run(rule, path string) *event.Diagnostic {
	f.t.Helper()
	fm, err := filemeta.FromPath(path, filemeta.Options{Config: f.cfg, Extractors: filemeta.DefaultExtractors()})
	require.NoError(f.t, err)

	var db *catalog.Database
	if fm.System() == "snes" {
		db = f.db
	}
	for _, s := range f.host.Scripts() {
		if s.Name() != rule {
			continue
		}
		diag, err := f.host.Run(context.Background(), s, scripts.Env{File: fm, Catalog: db})
		require.NoError(f.t, err)
		return diag
	}
	f.t.Fatalf("no built-in rule %q", rule)
	return nil
}

func messageOf(d *event.Diagnostic) string {
	if d == nil {
		return ""
	}
	return d.Message
}

func TestBuiltinsLoad(t *testing.T) {
	h := scripts.NewHost()
	require.NoError(t, Load(h))

	assert.Equal(t, []string{
		"archived_rom_name", "file_permissions", "multifile_archive", "no_archives",
		"no_junk_files", "no_loose_files", "obsolete_format", "uncompressed_file", "unknown_rom",
	}, Names())
	assert.Equal(t, len(Names()), h.Len())

	reqs := h.Requirements()
	for _, c := range []scripts.Capability{scripts.CapPath, scripts.CapStat, scripts.CapArchive, scripts.CapFileDB} {
		assert.True(t, reqs.Has(c), c.String())
	}
}

func TestFilePermissions(t *testing.T) {
	f := newFixture(t)
	assert.Nil(t, f.run("file_permissions", f.write("snes/ok.sfc", 0o644)))
	assert.Equal(t, "File has incorrect permissions; should be 644 (is 600)",
		messageOf(f.run("file_permissions", f.write("snes/private.sfc", 0o600))))

	dir := filepath.Join(f.root, "snes")
	assert.Nil(t, f.run("file_permissions", dir))
	require.NoError(t, os.Chmod(dir, 0o700))
	assert.Equal(t, "Directory has incorrect permissions; should be 755 (is 700)",
		messageOf(f.run("file_permissions", dir)))
	require.NoError(t, os.Chmod(dir, 0o755))
}

func TestNoJunkFiles(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, "Junk file extension (.txt)", messageOf(f.run("no_junk_files", f.write("snes/readme.txt", 0o644))))
	assert.Equal(t, "Junk file (.DS_Store)", messageOf(f.run("no_junk_files", f.write("snes/.DS_Store", 0o644))))
	assert.Nil(t, f.run("no_junk_files", f.write("snes/game.sfc", 0o644)))
}

func TestNoArchives(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, "Unextracted archive (7z)", messageOf(f.run("no_archives", f.write("snes/game.7z", 0o644))))
	assert.Equal(t, "Unextracted archive (rar)", messageOf(f.run("no_archives", f.write("gb/game.rar", 0o644))))
	assert.Nil(t, f.run("no_archives", f.zip("snes/game.zip", "game.sfc")))
}

func TestObsoleteFormat(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, "Obsolete format (smc)", messageOf(f.run("obsolete_format", f.write("snes/game.smc", 0o644))))
	assert.Equal(t, "Obsolete format (smc)", messageOf(f.run("obsolete_format", f.zip("snes/old.zip", "old.smc"))))
	assert.Nil(t, f.run("obsolete_format", f.zip("snes/new.zip", "new.sfc")))
}

func TestUncompressedFile(t *testing.T) {
	f := newFixture(t)
	d := f.run("uncompressed_file", f.write("snes/game.sfc", 0o644))
	require.NotNil(t, d)
	assert.Equal(t, "File is not compressed", d.Message)
	assert.Equal(t, []string{"compress it as .zip"}, d.Hints)

	// gb declares no archive format
	assert.Nil(t, f.run("uncompressed_file", f.write("gb/game.gb", 0o644)))
	assert.Nil(t, f.run("uncompressed_file", f.zip("snes/game.zip", "game.sfc")))
}

func TestMultifileArchive(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, "archive is empty", messageOf(f.run("multifile_archive", f.zip("snes/empty.zip"))))
	assert.Nil(t, f.run("multifile_archive", f.zip("snes/one.zip", "one.sfc")))
	assert.Equal(t, "archive should have exactly 1 item",
		messageOf(f.run("multifile_archive", f.zip("snes/two.zip", "a.sfc", "b.sfc"))))
	assert.Nil(t, f.run("multifile_archive", f.write("snes/raw.sfc", 0o644)))
}

func TestArchivedRomName(t *testing.T) {
	f := newFixture(t)
	assert.Nil(t, f.run("archived_rom_name", f.zip("snes/Game (USA).zip", "Game (USA).sfc")))
	assert.Nil(t, f.run("archived_rom_name", f.zip("snes/Nested.zip", "dir/Nested.sfc")))
	assert.Equal(t, "archived file name should match the archive's name",
		messageOf(f.run("archived_rom_name", f.zip("snes/Game (USA) [b].zip", "Game (Europe).sfc"))))
}

func TestNoLooseFiles(t *testing.T) {
	f := newFixture(t)
	assert.Nil(t, f.run("no_loose_files", f.write("snes/game.sfc", 0o644)))
	assert.Nil(t, f.run("no_loose_files", f.write("snes/game.smc", 0o644)))
	assert.Equal(t, "Loose file", messageOf(f.run("no_loose_files", f.write("snes/cover.png", 0o644))))
	assert.Nil(t, f.run("no_loose_files", filepath.Join(f.root, "snes")))

	d := f.run("no_loose_files", f.zip("snes/game.zip", "game.sfc", "readme.txt"))
	require.NotNil(t, d)
	assert.Equal(t, "Loose file", d.Message)
	assert.Equal(t, []string{"loose file in archive: readme.txt"}, d.Hints)
}

func TestUnknownRom(t *testing.T) {
	f := newFixture(t)
	assert.Nil(t, f.run("unknown_rom", f.write("snes/Chrono Trigger (USA).sfc", 0o644)))
	assert.Nil(t, f.run("unknown_rom", f.zip("snes/Chrono Trigger (USA).zip", "Chrono Trigger (USA).sfc")))

	d := f.run("unknown_rom", f.write("snes/Chrono Trigger (Japan).sfc", 0o644))
	require.NotNil(t, d)
	assert.Equal(t, "Can't find this ROM in the database", d.Message)
	assert.Equal(t, []string{
		"Some similar titles were found:",
		"* Chrono Trigger (USA).sfc",
		"* Chrono Trigger (USA)",
	}, d.Hints)

	d = f.run("unknown_rom", f.write("gb/Tetris (World).gb", 0o644))
	require.NotNil(t, d)
	assert.Equal(t, "No database found for system 'gb'", d.Message)
}
