// Package schemas holds the versioned JSON schemas that constrain model
// output. Each resource lives at resources/<name>/<version>.json and is
// embedded into the binary, compiled once, and looked up by name and
// semantic version.
package schemas

import (
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/monetadev/moneta/internal/llm"
	"golang.org/x/mod/semver"
)

// Schema names.
const (
	FlashcardSet  = "flashcard-set"
	GeneratedQuiz = "generated-quiz"
	GradedQuiz    = "graded-quiz"
)

//go:embed resources
var resources embed.FS

// resource is the on-disk envelope of a schema file.
type resource struct {
	Description string         `json:"description"`
	Schema      map[string]any `json:"schema"`
}

// Registry indexes schemas by name, each name holding its versions in
// ascending semver order.
type Registry struct {
	byName map[string][]*llm.Schema
}

// Load reads and compiles every resource under root. A resource that is not
// valid JSON, has a non-semver file name, or does not compile fails the load.
func Load(root fs.FS) (*Registry, error) {
	r := &Registry{byName: make(map[string][]*llm.Schema)}

	err := fs.WalkDir(root, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || path.Ext(p) != ".json" {
			return nil
		}

		name := path.Base(path.Dir(p))
		version := strings.TrimSuffix(path.Base(p), ".json")
		if !semver.IsValid(version) {
			return fmt.Errorf("schema %s: %q is not a semantic version", name, version)
		}

		data, err := fs.ReadFile(root, p)
		if err != nil {
			return fmt.Errorf("read schema %s: %w", p, err)
		}
		var res resource
		if err := json.Unmarshal(data, &res); err != nil {
			return fmt.Errorf("parse schema %s: %w", p, err)
		}
		if len(res.Schema) == 0 {
			return fmt.Errorf("schema %s: empty definition", p)
		}

		s := &llm.Schema{
			Name:        name,
			Version:     version,
			Description: res.Description,
			Definition:  res.Schema,
		}
		if err := llm.CompileSchema(s); err != nil {
			return fmt.Errorf("compile schema %s@%s: %w", name, version, err)
		}
		r.byName[name] = append(r.byName[name], s)
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, versions := range r.byName {
		sort.Slice(versions, func(i, j int) bool {
			return semver.Compare(versions[i].Version, versions[j].Version) < 0
		})
	}
	return r, nil
}

var (
	defaultOnce sync.Once
	defaultReg  *Registry
	defaultErr  error
)

// Default returns the registry of embedded resources, loading it on first
// use.
func Default() (*Registry, error) {
	defaultOnce.Do(func() {
		sub, err := fs.Sub(resources, "resources")
		if err != nil {
			defaultErr = err
			return
		}
		defaultReg, defaultErr = Load(sub)
	})
	return defaultReg, defaultErr
}

// Latest returns the highest version of the named schema.
func (r *Registry) Latest(name string) (*llm.Schema, error) {
	versions := r.byName[name]
	if len(versions) == 0 {
		return nil, fmt.Errorf("unknown schema %q", name)
	}
	return versions[len(versions)-1], nil
}

// Get returns the named schema at version. A version without a full
// major.minor.patch triple selects the highest release it prefixes, so
// "v1" picks the newest v1.x.y.
func (r *Registry) Get(name, version string) (*llm.Schema, error) {
	if version == "" {
		return r.Latest(name)
	}
	if !strings.HasPrefix(version, "v") {
		version = "v" + version
	}
	if !semver.IsValid(version) {
		return nil, fmt.Errorf("schema %s: invalid version %q", name, version)
	}

	versions := r.byName[name]
	if len(versions) == 0 {
		return nil, fmt.Errorf("unknown schema %q", name)
	}
	exact := semver.Canonical(version) == version
	for i := len(versions) - 1; i >= 0; i-- {
		v := versions[i].Version
		if exact && semver.Compare(v, version) == 0 {
			return versions[i], nil
		}
		if !exact && (semver.MajorMinor(v) == version || semver.Major(v) == version) {
			return versions[i], nil
		}
	}
	return nil, fmt.Errorf("schema %s has no version %s", name, version)
}

// Versions lists the known versions of name in ascending order.
func (r *Registry) Versions(name string) []string {
	out := make([]string, 0, len(r.byName[name]))
	for _, s := range r.byName[name] {
		out = append(out, s.Version)
	}
	return out
}

// Names lists every registered schema name, sorted.
func (r *Registry) Names() []string {
	out := make([]string, 0, len(r.byName))
	for name := range r.byName {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// MustLatest returns the newest embedded version of name and panics when the
// embedded resources are broken. Intended for package defaults.
func MustLatest(name string) *llm.Schema {
	reg, err := Default()
	if err != nil {
		panic(fmt.Sprintf("schemas: %v", err))
	}
	s, err := reg.Latest(name)
	if err != nil {
		panic(fmt.Sprintf("schemas: %v", err))
	}
	return s
}
