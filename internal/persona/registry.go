package persona

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Registry is the read-only set of loaded personas. Iteration order is the
// sorted file order they were loaded in.
type Registry struct {
	byID  map[string]*Persona
	order []string
}

// NewRegistry builds a registry from already-constructed personas. Each is
// validated and defaulted exactly as LoadDir would.
func NewRegistry(personas ...Persona) (*Registry, error) {
	r := &Registry{byID: make(map[string]*Persona)}
	for i := range personas {
		p := personas[i]
		if err := r.add(&p, fmt.Sprintf("#%d", i)); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// LoadDir reads every *.yaml and *.yml file in dir. A missing directory
// yields an empty registry.
func LoadDir(dir string) (*Registry, error) {
	r := &Registry{byID: make(map[string]*Persona)}

	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return r, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read leaders dir: %w", err)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if ext == ".yaml" || ext == ".yml" {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)

	for _, name := range files {
		p, err := LoadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		if err := r.add(p, name); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// LoadFile parses a single persona file. Unknown keys are rejected.
func LoadFile(path string) (*Persona, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open persona file: %w", err)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)

	var p Persona
	if err := dec.Decode(&p); err != nil {
		return nil, fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}
	return &p, nil
}

func (r *Registry) add(p *Persona, file string) error {
	if err := p.Validate(file); err != nil {
		return err
	}
	if _, dup := r.byID[p.ID]; dup {
		return &ValidationError{File: file, Field: "id", Msg: fmt.Sprintf("duplicates persona %q", p.ID)}
	}
	p.applyDefaults()
	r.byID[p.ID] = p
	r.order = append(r.order, p.ID)
	return nil
}

// Get returns the persona with the given id.
func (r *Registry) Get(id string) (*Persona, bool) {
	p, ok := r.byID[id]
	return p, ok
}

// Has reports whether id is loaded.
func (r *Registry) Has(id string) bool {
	_, ok := r.byID[id]
	return ok
}

// All returns every persona in load order.
func (r *Registry) All() []*Persona {
	out := make([]*Persona, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.byID[id])
	}
	return out
}

// IDs returns persona ids in load order.
func (r *Registry) IDs() []string {
	return append([]string(nil), r.order...)
}

// Len is the number of loaded personas.
func (r *Registry) Len() int { return len(r.order) }
