// Package registry maps program names to constructors of fresh program
// sessions.
package registry

import (
	"embed"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/Norgate-AV/polysched/internal/polyhedral"
	"github.com/Norgate-AV/polysched/internal/utils"
	"go.uber.org/zap"
)

// ErrUnknownProgram is returned by Lookup for names no constructor serves.
var ErrUnknownProgram = errors.New("unknown program")

//go:embed programs
var builtin embed.FS

// Constructor returns a new, independent program session.
type Constructor func() (*polyhedral.Program, error)

// Registry is safe for concurrent use.
type Registry struct {
	opts   polyhedral.Options
	logger *zap.Logger

	mu       sync.RWMutex
	builtins map[string]Constructor
	loaded   map[string]Constructor
	byName   map[string]Constructor
	byID     map[int]string
}

// New creates a registry holding the built-in programs.
func New(opts polyhedral.Options, logger *zap.Logger) (*Registry, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Registry{
		opts:     opts,
		logger:   logger,
		builtins: map[string]Constructor{},
		loaded:   map[string]Constructor{},
	}

	defs, err := loadFS(builtin, "programs")
	if err != nil {
		return nil, fmt.Errorf("built-in programs: %w", err)
	}
	for _, def := range defs {
		c, err := r.constructor(def)
		if err != nil {
			return nil, fmt.Errorf("built-in programs: %w", err)
		}
		r.builtins[def.Name] = c
	}
	r.reindex()

	return r, nil
}

// constructor validates def once and returns a Constructor for it.
func (r *Registry) constructor(def polyhedral.Definition) (Constructor, error) {
	if _, err := polyhedral.New(def, r.opts); err != nil {
		return nil, fmt.Errorf("%s: %w", def.Name, err)
	}
	return func() (*polyhedral.Program, error) {
		return polyhedral.New(def, r.opts)
	}, nil
}

// Register adds or replaces a program.
func (r *Registry) Register(def polyhedral.Definition) error {
	c, err := r.constructor(def)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.loaded[def.Name] = c
	r.reindex()
	return nil
}

// Load replaces every program previously added by Load or Register with
// the catalogues in dir. Built-ins stay, but dir entries shadow them. On
// error the registry is left unchanged.
func (r *Registry) Load(dir string) error {
	defs, err := LoadDir(dir)
	if err != nil {
		return err
	}

	loaded := make(map[string]Constructor, len(defs))
	for _, def := range defs {
		if _, dup := loaded[def.Name]; dup {
			return fmt.Errorf("program %s is declared twice", def.Name)
		}
		c, err := r.constructor(def)
		if err != nil {
			return err
		}
		loaded[def.Name] = c
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.loaded = loaded
	r.reindex()

	r.logger.Info("programs loaded", zap.String("dir", dir), zap.Int("count", len(loaded)))
	return nil
}

// reindex rebuilds the lookup maps. Callers hold mu, except New.
func (r *Registry) reindex() {
	r.byName = make(map[string]Constructor, len(r.builtins)+len(r.loaded))
	for name, c := range r.builtins {
		r.byName[name] = c
	}
	for name, c := range r.loaded {
		r.byName[name] = c
	}

	r.byID = make(map[int]string, len(r.byName))
	for name := range r.byName {
		if id, ok := utils.ProgramID(name); ok {
			if prev, clash := r.byID[id]; clash {
				r.logger.Warn("program id shared, lookups by id are ambiguous",
					zap.Int("id", id), zap.String("program", name), zap.String("other", prev))
				if prev < name {
					continue
				}
			}
			r.byID[id] = name
		}
	}
}

// Lookup returns a fresh session for name. Names are matched exactly
// first, then by their numeric id, so "550013" and "function550013" name
// the same program.
func (r *Registry) Lookup(name string) (*polyhedral.Program, error) {
	r.mu.RLock()
	c, ok := r.byName[name]
	if !ok {
		if id, hasID := utils.ProgramID(name); hasID {
			if canonical, found := r.byID[id]; found {
				c, ok = r.byName[canonical]
			}
		}
	}
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProgram, name)
	}
	return c()
}

// Names lists every registered program in order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.byName))
	for name := range r.byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
