package catalog

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"golang.org/x/sync/errgroup"

	rlerrors "github.com/michaelscutari/romlint/internal/errors"
	"github.com/michaelscutari/romlint/internal/event"
	"github.com/michaelscutari/romlint/internal/logging"
)

var catalogExtensions = map[string]bool{".dat": true, ".xml": true}

type pending struct {
	index  int
	system string
	path   string
	done   chan struct{}
	db     *Database
	err    error
}

// Set is the collection of catalogs for a run. Catalogs load in the
// background; Wait blocks until the one asked for is ready. Loaded catalogs
// are never mutated.
type Set struct {
	order   []*pending
	systems map[string]*pending
	settled chan struct{}
}

// LoadAll starts loading every catalog in dir.
func LoadAll(ctx context.Context, dir string, sink event.Sink) (*Set, error) {
	return load(ctx, dir, nil, sink)
}

// LoadOnly starts loading the catalogs of the named systems found in dir.
// Systems without a catalog file are skipped.
func LoadOnly(ctx context.Context, dir string, systems []string, sink event.Sink) (*Set, error) {
	want := make(map[string]bool, len(systems))
	for _, s := range systems {
		want[s] = true
	}
	return load(ctx, dir, want, sink)
}

// Discover lists the catalog files in dir in lexical order, keyed by system.
func Discover(dir string) ([]string, map[string]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, nil, rlerrors.IO(err, dir)
	}

	var systems []string
	paths := make(map[string]string)
	for _, e := range entries {
		if e.IsDir() || !catalogExtensions[strings.ToLower(filepath.Ext(e.Name()))] {
			continue
		}
		path := filepath.Join(dir, e.Name())
		system := strings.TrimSuffix(e.Name(), filepath.Ext(e.Name()))
		if system == "" {
			return nil, nil, rlerrors.Newf(rlerrors.ErrCatalogName,
				"unable to determine system for catalog %s", path).WithDetail("path", path)
		}
		if _, dup := paths[system]; dup {
			return nil, nil, rlerrors.Newf(rlerrors.ErrCatalogName,
				"more than one catalog for system %q", system).WithDetail("path", path)
		}
		systems = append(systems, system)
		paths[system] = path
	}
	return systems, paths, nil
}

func load(ctx context.Context, dir string, want map[string]bool, sink event.Sink) (*Set, error) {
	logger := logging.GetLogger("catalog")

	systems, paths, err := Discover(dir)
	if err != nil {
		return nil, err
	}

	set := &Set{systems: make(map[string]*pending), settled: make(chan struct{})}
	for _, system := range systems {
		if want != nil && !want[system] {
			continue
		}
		p := &pending{
			index:  len(set.order),
			system: system,
			path:   paths[system],
			done:   make(chan struct{}),
		}
		set.order = append(set.order, p)
		set.systems[system] = p
	}

	// Progress starts are announced in discovery order before any load runs.
	for _, p := range set.order {
		if err := sink.Send(ctx, event.StartProgress{Index: p.index, Label: p.system}); err != nil {
			return nil, err
		}
	}

	go func() {
		var g errgroup.Group
		g.SetLimit(runtime.NumCPU())
		for _, p := range set.order {
			g.Go(func() error {
				defer close(p.done)
				done := logging.LogOperationStart(logger, "load catalog "+p.system)
				p.db, p.err = FromFile(p.path, p.system)
				done()
				if p.err == nil {
					logger.Debug().Str("system", p.system).Int("games", p.db.Len()).Msg("Catalog loaded")
				}
				if err := sink.Send(ctx, event.EndProgress{Index: p.index}); err != nil && p.err == nil {
					p.err = err
				}
				return nil
			})
		}
		_ = g.Wait()
		close(set.settled)
	}()

	return set, nil
}

// Settle blocks until every load has finished, successfully or not, so no
// further progress events will be sent.
func (s *Set) Settle(ctx context.Context) error {
	if s == nil {
		return nil
	}
	select {
	case <-s.settled:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Systems returns the systems in the set in discovery order.
func (s *Set) Systems() []string {
	names := make([]string, len(s.order))
	for i, p := range s.order {
		names[i] = p.system
	}
	return names
}

// Has reports whether a catalog exists for system.
func (s *Set) Has(system string) bool {
	if s == nil {
		return false
	}
	_, ok := s.systems[system]
	return ok
}

// Wait blocks until the catalog of system has loaded. It returns nil and no
// error when the set has no catalog for system; a load failure is returned
// as an error.
func (s *Set) Wait(ctx context.Context, system string) (*Database, error) {
	if s == nil {
		return nil, nil
	}
	p, ok := s.systems[system]
	if !ok {
		return nil, nil
	}
	select {
	case <-p.done:
		return p.db, p.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// WaitAll blocks until every catalog has loaded and returns them keyed by
// system. The first failure in discovery order is returned.
func (s *Set) WaitAll(ctx context.Context) (map[string]*Database, error) {
	out := make(map[string]*Database, len(s.order))
	for _, p := range s.order {
		db, err := s.Wait(ctx, p.system)
		if err != nil {
			return nil, err
		}
		out[p.system] = db
	}
	return out, nil
}
