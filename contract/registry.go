package contract

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"
)

// DefaultDir is where contract schema files live unless the caller says
// otherwise.
const DefaultDir = "contracts"

// Registry loads schemas by name from a directory and caches them for the
// rest of the run. Cached schemas are read-only and safe to share across
// concurrent tests.
type Registry struct {
	dir   string
	lock  sync.RWMutex
	cache map[string]*Schema
}

// NewRegistry creates a registry reading schema files from dir.
func NewRegistry(dir string) *Registry {
	if dir == "" {
		dir = DefaultDir
	}
	return &Registry{
		dir:   dir,
		cache: make(map[string]*Schema),
	}
}

// Get returns the schema with the given name, loading <dir>/<name>.yaml on
// first use.
func (r *Registry) Get(name string) (*Schema, error) {
	r.lock.RLock()
	cached := r.cache[name]
	r.lock.RUnlock()
	if cached != nil {
		return cached, nil
	}

	schema, err := r.load(name)
	if err != nil {
		return nil, err
	}

	r.lock.Lock()
	r.cache[name] = schema
	r.lock.Unlock()
	return schema, nil
}

func (r *Registry) load(name string) (*Schema, error) {
	path := filepath.Join(r.dir, name+".yaml")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &SchemaLoadError{Name: name, Reason: fmt.Sprintf("no such schema file (%s)", path)}
		}
		return nil, &SchemaLoadError{Name: name, Reason: "schema file could not be read", Err: err}
	}

	var schema Schema
	if err := yaml.Unmarshal(data, &schema); err != nil {
		return nil, &SchemaLoadError{Name: name, Reason: "schema file is not valid yaml", Err: err}
	}
	if schema.Name == "" {
		schema.Name = name
	} else if schema.Name != name {
		return nil, &SchemaLoadError{Name: name,
			Reason: fmt.Sprintf("schema file declares mismatched name %q", schema.Name)}
	}
	if err := schema.checkDefinition(); err != nil {
		return nil, err
	}
	return &schema, nil
}
