package registry

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/Norgate-AV/polysched/internal/polyhedral"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"gopkg.in/yaml.v3"
)

// catalogue is the top level of a program file. YAML files hold a
// "programs" list, HCL files a sequence of program blocks.
type catalogue struct {
	Programs []programSpec `yaml:"programs" hcl:"program,block"`
}

type programSpec struct {
	Name         string            `yaml:"name" hcl:"name,label"`
	Iterators    []iteratorSpec    `yaml:"iterators" hcl:"iterator,block"`
	Buffers      []bufferSpec      `yaml:"buffers" hcl:"buffer,block"`
	Computations []computationSpec `yaml:"computations" hcl:"computation,block"`
}

type iteratorSpec struct {
	Name string `yaml:"name" hcl:"name,label"`
	Lo   int    `yaml:"lo" hcl:"lo"`
	Hi   int    `yaml:"hi" hcl:"hi"`
}

type bufferSpec struct {
	Name string `yaml:"name" hcl:"name,label"`
	Dims []int  `yaml:"dims" hcl:"dims"`
	Type string `yaml:"type" hcl:"type,optional"`
	Role string `yaml:"role" hcl:"role"`
}

type computationSpec struct {
	Name      string   `yaml:"name" hcl:"name,label"`
	Iterators []string `yaml:"iterators" hcl:"iterators"`
	Store     string   `yaml:"store" hcl:"store"`
	Expr      string   `yaml:"expr" hcl:"expr"`
	// Level is the deepest loop shared with the previous computation.
	Level *int `yaml:"level" hcl:"level,optional"`
}

func (s programSpec) definition() polyhedral.Definition {
	def := polyhedral.Definition{Name: s.Name}
	for _, it := range s.Iterators {
		def.Iterators = append(def.Iterators, polyhedral.Iterator{Name: it.Name, Lo: it.Lo, Hi: it.Hi})
	}
	for _, b := range s.Buffers {
		def.Buffers = append(def.Buffers, polyhedral.Buffer{Name: b.Name, Dims: b.Dims, Type: b.Type, Role: b.Role})
	}
	for _, c := range s.Computations {
		def.Computations = append(def.Computations, polyhedral.ComputationDef{
			Name:      c.Name,
			Iterators: c.Iterators,
			Store:     c.Store,
			Expr:      c.Expr,
			Level:     c.Level,
		})
	}
	return def
}

// DecodeYAML parses a YAML catalogue.
func DecodeYAML(src []byte) ([]polyhedral.Definition, error) {
	dec := yaml.NewDecoder(bytes.NewReader(src))
	dec.KnownFields(true)

	var cat catalogue
	if err := dec.Decode(&cat); errors.Is(err, io.EOF) {
		return nil, nil
	} else if err != nil {
		return nil, fmt.Errorf("invalid yaml catalogue: %w", err)
	}
	return cat.definitions(), nil
}

// DecodeHCL parses an HCL catalogue. filename is only used in diagnostics.
func DecodeHCL(filename string, src []byte) ([]polyhedral.Definition, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("invalid hcl catalogue: %w", diags)
	}

	var cat catalogue
	if diags := gohcl.DecodeBody(file.Body, nil, &cat); diags.HasErrors() {
		return nil, fmt.Errorf("invalid hcl catalogue: %w", diags)
	}
	return cat.definitions(), nil
}

func (c catalogue) definitions() []polyhedral.Definition {
	defs := make([]polyhedral.Definition, 0, len(c.Programs))
	for _, p := range c.Programs {
		defs = append(defs, p.definition())
	}
	return defs
}

func isCatalogue(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".yaml", ".yml", ".hcl":
		return true
	}
	return false
}

// loadFS decodes every catalogue file directly under dir in fsys, in name
// order.
func loadFS(fsys fs.FS, dir string) ([]polyhedral.Definition, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, err
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	var defs []polyhedral.Definition
	var errs []error
	for _, e := range entries {
		if e.IsDir() || !isCatalogue(e.Name()) {
			continue
		}
		path := filepath.ToSlash(filepath.Join(dir, e.Name()))
		src, err := fs.ReadFile(fsys, path)
		if err != nil {
			errs = append(errs, err)
			continue
		}

		var got []polyhedral.Definition
		if strings.EqualFold(filepath.Ext(path), ".hcl") {
			got, err = DecodeHCL(e.Name(), src)
		} else {
			got, err = DecodeYAML(src)
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", e.Name(), err))
			continue
		}
		defs = append(defs, got...)
	}
	return defs, errors.Join(errs...)
}

// LoadDir decodes every catalogue file in dir.
func LoadDir(dir string) ([]polyhedral.Definition, error) {
	return loadFS(os.DirFS(dir), ".")
}
