package catalog

import (
	"fmt"
	"os"
	"sort"
	"strconv"

	"github.com/beevik/etree"

	rlerrors "github.com/michaelscutari/romlint/internal/errors"
)

// MaxSimilar caps the number of suggestions SimilarTo returns.
const MaxSimilar = 5

// Header describes the catalog file itself.
type Header struct {
	Name        string
	Description string
	Version     string
	Author      string
	Homepage    string
	URL         string
}

// Rom is one dumped file of a game in the richer no-intro schema.
type Rom struct {
	Name   string
	Size   uint64
	CRC    string
	MD5    string
	SHA1   string
	SHA256 string
	Status string
	Serial string
}

// Game is one canonical record.
type Game struct {
	Name        string
	Description string
	Roms        []Rom
}

// Database is the reference catalog of one system.
type Database struct {
	System string
	Header Header

	games  []Game
	tokens []Tokens
	names  map[string]struct{}
}

// FromFile parses a catalog file. A single malformed record fails the load.
func FromFile(path, system string) (*Database, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, rlerrors.IO(err, path)
	}
	db, err := Parse(data, system)
	if err != nil {
		return nil, rlerrors.Wrapf(err, rlerrors.ErrCatalogParse, "failed to load catalog %s", path).
			WithDetail("path", path)
	}
	return db, nil
}

// Parse reads a DAT document. The simple schema carries a name and
// description per game; once any game lists a <rom>, every game must carry
// one with a size and at least one checksum.
func Parse(data []byte, system string) (*Database, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(data); err != nil {
		return nil, rlerrors.Wrap(err, rlerrors.ErrCatalogParse, "invalid XML")
	}

	root := doc.Root()
	if root == nil || root.Tag != "datafile" {
		return nil, parseError("expected <datafile> root element", "datafile")
	}

	db := &Database{System: system, names: make(map[string]struct{})}
	if h := root.SelectElement("header"); h != nil {
		db.Header = Header{
			Name:        childText(h, "name"),
			Description: childText(h, "description"),
			Version:     childText(h, "version"),
			Author:      childText(h, "author"),
			Homepage:    childText(h, "homepage"),
			URL:         childText(h, "url"),
		}
	}

	games := root.SelectElements("game")
	rich := len(root.FindElements("./game/rom")) > 0

	db.games = make([]Game, 0, len(games))
	db.tokens = make([]Tokens, 0, len(games))
	for i, el := range games {
		where := fmt.Sprintf("datafile.game[%d]", i)
		game, err := parseGame(el, rich, where)
		if err != nil {
			return nil, err
		}
		db.games = append(db.games, game)
		db.tokens = append(db.tokens, Tokenize(game.Name))
		db.names[game.Name] = struct{}{}
	}
	return db, nil
}

func parseGame(el *etree.Element, rich bool, where string) (Game, error) {
	name := el.SelectAttr("name")
	if name == nil {
		return Game{}, parseError("missing attribute name", where)
	}
	game := Game{Name: name.Value}

	desc := el.SelectElement("description")
	if desc == nil {
		return Game{}, parseError("missing field description", where)
	}
	game.Description = desc.Text()

	for j, romEl := range el.SelectElements("rom") {
		rom, err := parseRom(romEl, fmt.Sprintf("%s.rom[%d]", where, j))
		if err != nil {
			return Game{}, err
		}
		game.Roms = append(game.Roms, rom)
	}
	if rich && len(game.Roms) == 0 {
		return Game{}, parseError("missing field rom", where)
	}
	return game, nil
}

func parseRom(el *etree.Element, where string) (Rom, error) {
	rom := Rom{
		Name:   el.SelectAttrValue("name", ""),
		CRC:    el.SelectAttrValue("crc", ""),
		MD5:    el.SelectAttrValue("md5", ""),
		SHA1:   el.SelectAttrValue("sha1", ""),
		SHA256: el.SelectAttrValue("sha256", ""),
		Status: el.SelectAttrValue("status", ""),
		Serial: el.SelectAttrValue("serial", ""),
	}
	if el.SelectAttr("name") == nil {
		return Rom{}, parseError("missing attribute name", where)
	}

	size := el.SelectAttr("size")
	if size == nil {
		return Rom{}, parseError("missing attribute size", where)
	}
	n, err := strconv.ParseUint(size.Value, 10, 64)
	if err != nil {
		return Rom{}, parseError(fmt.Sprintf("invalid size %q", size.Value), where+".size")
	}
	rom.Size = n

	if rom.CRC == "" && rom.MD5 == "" && rom.SHA1 == "" && rom.SHA256 == "" {
		return Rom{}, parseError("missing checksum (crc, md5, sha1 or sha256)", where)
	}
	return rom, nil
}

func childText(el *etree.Element, tag string) string {
	if c := el.SelectElement(tag); c != nil {
		return c.Text()
	}
	return ""
}

func parseError(msg, where string) error {
	return rlerrors.Newf(rlerrors.ErrCatalogParse, "%s - %s", msg, where).
		WithDetail("element", where)
}

// Len returns the number of games.
func (d *Database) Len() int {
	return len(d.games)
}

// Games returns the records in catalog order.
func (d *Database) Games() []Game {
	return append([]Game(nil), d.games...)
}

// Names returns every canonical game name in catalog order.
func (d *Database) Names() []string {
	names := make([]string, len(d.games))
	for i, g := range d.games {
		names[i] = g.Name
	}
	return names
}

// Contains reports whether name is exactly a canonical game name.
func (d *Database) Contains(name string) bool {
	_, ok := d.names[name]
	return ok
}

// SimilarTo returns up to MaxSimilar game names sharing words with query,
// most shared words first. A game qualifies with two shared words, or with
// one when its own title is a single word.
func (d *Database) SimilarTo(query Tokens) []string {
	type match struct {
		shared int
		name   string
	}

	var matches []match
	for i, game := range d.games {
		gameTokens := d.tokens[i]
		shared := query.SharedWith(gameTokens)
		if shared >= 2 || shared >= 1 && gameTokens.Len() == 1 {
			matches = append(matches, match{shared: shared, name: game.Name})
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].shared > matches[j].shared
	})

	if len(matches) > MaxSimilar {
		matches = matches[:MaxSimilar]
	}
	names := make([]string, len(matches))
	for i, m := range matches {
		names[i] = m.name
	}
	return names
}
