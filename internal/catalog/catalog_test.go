package catalog

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	rlerrors "github.com/michaelscutari/romlint/internal/errors"
	"github.com/michaelscutari/romlint/internal/event"
)

const simpleDAT = `<?xml version="1.0"?>
<datafile>
	<header>
		<name>Nintendo - Super Nintendo Entertainment System</name>
		<description>SNES</description>
		<version>20240101</version>
	</header>
	<game name="Chrono Trigger (USA).sfc"><description>Chrono Trigger (USA)</description></game>
	<game name="Super Mario World (USA).sfc"><description>Super Mario World (USA)</description></game>
	<game name="Super Mario Kart (USA).sfc"><description>Super Mario Kart (USA)</description></game>
	<game name="Tetris.sfc"><description>Tetris</description></game>
	<game name="The Legend of Zelda - A Link to the Past (USA).sfc"><description>Zelda</description></game>
</datafile>`

const richDAT = `<?xml version="1.0"?>
<datafile>
	<header><name>Nintendo - Game Boy</name></header>
	<game name="Tetris (World)">
		<description>Tetris (World)</description>
		<rom name="Tetris (World).gb" size="32768" crc="46df91ad" md5="982ed5d2b12a0377eb14bcdc4123744e" sha1="74591cc9501af93873f9a5d3eb12da12c0723bbc" status="verified"/>
	</game>
</datafile>`

func TestTokenize(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"Chrono Trigger (USA).sfc", []string{"Chrono", "Trigger"}},
		{"Super Mario Bros. (USA).nes", []string{"Super", "Mario", "Bros."}},
		{"Game [!] (Rev 1) (Europe).zip", []string{"Game", "(Rev", "1)"}},
		{"NoExtension", []string{"NoExtension"}},
		{"", []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Tokenize(tt.in).Words())
		})
	}
}

func TestSharedWithSkipsStopWords(t *testing.T) {
	q := Tokenize("The Legend of A Zelda.sfc")
	other := Tokenize("the Legend Of a Zelda (USA).sfc")
	assert.Equal(t, 2, q.SharedWith(other))

	caseMismatch := Tokenize("legend zelda.sfc")
	assert.Equal(t, 0, caseMismatch.SharedWith(other))

	// Only the lowercase forms are stop words.
	assert.Equal(t, 2, Tokenize("The Legend.sfc").SharedWith(Tokenize("The Legend (USA).sfc")))
	assert.Equal(t, 1, Tokenize("the Legend.sfc").SharedWith(Tokenize("the Legend (USA).sfc")))
}

func TestParseSimple(t *testing.T) {
	db, err := Parse([]byte(simpleDAT), "snes")
	require.NoError(t, err)
	assert.Equal(t, 5, db.Len())
	assert.Equal(t, "SNES", db.Header.Description)
	assert.Equal(t, "Chrono Trigger (USA).sfc", db.Names()[0])
}

func TestParseRich(t *testing.T) {
	db, err := Parse([]byte(richDAT), "gb")
	require.NoError(t, err)
	games := db.Games()
	require.Len(t, games, 1)
	require.Len(t, games[0].Roms, 1)
	rom := games[0].Roms[0]
	assert.Equal(t, uint64(32768), rom.Size)
	assert.Equal(t, "46df91ad", rom.CRC)
	assert.Equal(t, "verified", rom.Status)
}

func TestParseRejectsMalformedRecords(t *testing.T) {
	tests := []struct {
		name string
		xml  string
	}{
		{"wrong root", `<games/>`},
		{"missing name", `<datafile><game><description>x</description></game></datafile>`},
		{"missing description", `<datafile><game name="x"/></datafile>`},
		{"rich game without rom", `<datafile>
			<game name="a"><description>a</description><rom name="a.gb" size="1" crc="00"/></game>
			<game name="b"><description>b</description></game></datafile>`},
		{"rom without size", `<datafile><game name="a"><description>a</description><rom name="a.gb" crc="00"/></game></datafile>`},
		{"rom with bad size", `<datafile><game name="a"><description>a</description><rom name="a.gb" size="big" crc="00"/></game></datafile>`},
		{"rom without checksum", `<datafile><game name="a"><description>a</description><rom name="a.gb" size="1"/></game></datafile>`},
		{"not xml", `<datafile`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.xml), "x")
			require.Error(t, err)
			assert.True(t, rlerrors.IsErrorCode(err, rlerrors.ErrCatalogParse))
		})
	}
}

func TestParseErrorNamesElement(t *testing.T) {
	_, err := Parse([]byte(`<datafile>
		<game name="a"><description>a</description></game>
		<game name="b"></game></datafile>`), "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "datafile.game[1]")
}

func TestContainsIsExact(t *testing.T) {
	db, err := Parse([]byte(simpleDAT), "snes")
	require.NoError(t, err)

	assert.True(t, db.Contains("Chrono Trigger (USA).sfc"))
	assert.False(t, db.Contains("chrono trigger (usa).sfc"))
	assert.False(t, db.Contains("Chrono Trigger (USA)"))
	assert.False(t, db.Contains("Chrono Trigger (USA).sfc "))
}

func TestSimilarTo(t *testing.T) {
	db, err := Parse([]byte(simpleDAT), "snes")
	require.NoError(t, err)

	got := db.SimilarTo(Tokenize("Super Mario World (Europe).sfc"))
	require.NotEmpty(t, got)
	assert.Equal(t, "Super Mario World (USA).sfc", got[0])
	assert.Contains(t, got, "Super Mario Kart (USA).sfc")
	assert.NotContains(t, got, "Chrono Trigger (USA).sfc")

	// one shared word is enough when the catalog title is a single word
	assert.Equal(t, []string{"Tetris.sfc"}, db.SimilarTo(Tokenize("Tetris (Japan).sfc")))

	// stop words alone never qualify
	assert.Empty(t, db.SimilarTo(Tokenize("the of a.sfc")))
}

func TestSimilarToCapsAndOrders(t *testing.T) {
	xml := `<datafile>`
	for _, n := range []string{
		"Alpha Beta", "Alpha Beta Gamma", "Alpha Beta Gamma Delta", "Alpha Beta Delta",
		"Alpha Gamma", "Beta Gamma", "Alpha Beta Gamma Delta Epsilon", "Zeta",
	} {
		xml += `<game name="` + n + `.bin"><description>x</description></game>`
	}
	xml += `</datafile>`
	db, err := Parse([]byte(xml), "x")
	require.NoError(t, err)

	q := Tokenize("Alpha Beta Gamma Delta Epsilon.bin")
	got := db.SimilarTo(q)
	assert.Len(t, got, MaxSimilar)

	prev := 1 << 30
	for _, name := range got {
		shared := q.SharedWith(Tokenize(name))
		assert.LessOrEqual(t, shared, prev, name)
		prev = shared
	}
	assert.Equal(t, "Alpha Beta Gamma Delta Epsilon.bin", got[0])
}

type recordingSink struct {
	mu     sync.Mutex
	events []event.Event
}

func (r *recordingSink) Send(_ context.Context, ev event.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func writeCatalogDir(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, body := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
	}
	return dir
}

func TestLoadAll(t *testing.T) {
	dir := writeCatalogDir(t, map[string]string{
		"snes.dat":   simpleDAT,
		"gb.xml":     richDAT,
		"README.txt": "ignored",
	})
	sink := &recordingSink{}

	set, err := LoadAll(context.Background(), dir, sink)
	require.NoError(t, err)
	assert.Equal(t, []string{"gb", "snes"}, set.Systems())

	all, err := set.WaitAll(context.Background())
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.True(t, all["snes"].Contains("Tetris.sfc"))
	require.NoError(t, set.Settle(context.Background()))

	sink.mu.Lock()
	defer sink.mu.Unlock()
	require.Len(t, sink.events, 4)
	assert.Equal(t, event.StartProgress{Index: 0, Label: "gb"}, sink.events[0])
	assert.Equal(t, event.StartProgress{Index: 1, Label: "snes"}, sink.events[1])
	ends := map[int]bool{}
	for _, ev := range sink.events[2:] {
		ends[ev.(event.EndProgress).Index] = true
	}
	assert.Equal(t, map[int]bool{0: true, 1: true}, ends)
}

func TestLoadOnlyAndMissingSystem(t *testing.T) {
	dir := writeCatalogDir(t, map[string]string{"snes.dat": simpleDAT, "gb.dat": richDAT})

	set, err := LoadOnly(context.Background(), dir, []string{"snes", "n64"}, event.Discard)
	require.NoError(t, err)
	assert.Equal(t, []string{"snes"}, set.Systems())
	assert.True(t, set.Has("snes"))
	assert.False(t, set.Has("gb"))

	db, err := set.Wait(context.Background(), "n64")
	assert.NoError(t, err)
	assert.Nil(t, db)

	db, err = set.Wait(context.Background(), "snes")
	require.NoError(t, err)
	assert.Equal(t, "snes", db.System)
}

func TestLoadFailureSurfacesOnWait(t *testing.T) {
	dir := writeCatalogDir(t, map[string]string{"bad.dat": `<datafile><game/></datafile>`})

	set, err := LoadAll(context.Background(), dir, event.Discard)
	require.NoError(t, err)

	_, err = set.Wait(context.Background(), "bad")
	require.Error(t, err)
	assert.True(t, rlerrors.IsErrorCode(err, rlerrors.ErrCatalogParse))
	assert.Equal(t, filepath.Join(dir, "bad.dat"), rlerrors.GetErrorDetails(err)["path"])
}

func TestLoadMissingDirectory(t *testing.T) {
	_, err := LoadAll(context.Background(), filepath.Join(t.TempDir(), "nope"), event.Discard)
	require.Error(t, err)
	assert.True(t, rlerrors.IsErrorCode(err, rlerrors.ErrIO))
}

func bigDAT(games int) string {
	var b strings.Builder
	b.WriteString("<datafile>")
	for i := 0; i < games; i++ {
		fmt.Fprintf(&b, `<game name="Game %d (USA).sfc"><description>Game %d</description></game>`, i, i)
	}
	b.WriteString("</datafile>")
	return b.String()
}

func TestLoadFailureWhileOtherCatalogLoads(t *testing.T) {
	dir := writeCatalogDir(t, map[string]string{
		"aaa.dat":  `<datafile><game/></datafile>`,
		"snes.dat": bigDAT(20000),
	})
	ctx := context.Background()

	stream := event.NewChannel(64)
	drained := make(chan struct{})
	go func() {
		defer close(drained)
		for range stream.Events() {
		}
	}()

	set, err := LoadAll(ctx, dir, stream)
	require.NoError(t, err)
	_, err = set.Wait(ctx, "aaa")
	require.True(t, rlerrors.IsErrorCode(err, rlerrors.ErrCatalogParse))

	// The run gives up and closes the stream with snes possibly in flight.
	stream.Close()
	require.NoError(t, set.Settle(ctx))
	<-drained

	if _, err := set.Wait(ctx, "snes"); err != nil {
		assert.True(t, rlerrors.IsErrorCode(err, rlerrors.ErrBrokenPipe), err.Error())
	}
}
