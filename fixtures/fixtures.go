// Package fixtures manages scoped setup/teardown of test preconditions: seed
// data, auth tokens, mock mappings, anything a test declares it needs.
//
// Fixtures are defined once in a Registry with an explicit dependency list.
// A Scope is created per test; fixtures are instantiated lazily on first use,
// memoized for the rest of the scope, and released in exact reverse
// acquisition order when the scope closes, no matter how the test ended. A
// fixture therefore never observes one of its dependencies already released.
package fixtures

import (
	"context"
	"fmt"
	"sync"

	"github.com/apiharness/service-contract-tests/framework"
)

// AcquireFunc produces the fixture's value. It may call scope.Get for its
// declared dependencies (already resolved by the time it runs) and should
// honor scope.Context for any blocking work.
type AcquireFunc func(scope *Scope) (interface{}, error)

// ReleaseFunc tears the fixture down. It receives the value the acquire phase
// produced.
type ReleaseFunc func(value interface{}) error

// Definition declares a fixture: its name, the fixtures it depends on, and
// its lifecycle functions. Release may be nil for fixtures with nothing to
// tear down.
type Definition struct {
	Name         string
	Dependencies []string
	Acquire      AcquireFunc
	Release      ReleaseFunc
}

// Registry holds fixture definitions. Definitions are registered during
// suite setup and read-only afterwards, so a single registry is shared by
// concurrent test scopes.
type Registry struct {
	lock sync.RWMutex
	defs map[string]Definition
}

// NewRegistry creates an empty fixture registry.
func NewRegistry() *Registry {
	return &Registry{defs: make(map[string]Definition)}
}

// Define registers a fixture. Redefining a name is a programming error in
// suite setup and fails immediately.
func (r *Registry) Define(def Definition) error {
	if def.Name == "" {
		return fmt.Errorf("fixture definition has no name")
	}
	if def.Acquire == nil {
		return fmt.Errorf("fixture %q has no acquire function", def.Name)
	}
	r.lock.Lock()
	defer r.lock.Unlock()
	if _, exists := r.defs[def.Name]; exists {
		return fmt.Errorf("fixture %q is already defined", def.Name)
	}
	r.defs[def.Name] = def
	return nil
}

// MustDefine is Define for suite initialization code, where a bad definition
// should stop the program.
func (r *Registry) MustDefine(def Definition) {
	if err := r.Define(def); err != nil {
		panic(err)
	}
}

func (r *Registry) definition(name string) (Definition, bool) {
	r.lock.RLock()
	defer r.lock.RUnlock()
	def, ok := r.defs[name]
	return def, ok
}

// NewScope creates a fixture scope bound to ctx. The context's deadline
// bounds all acquire-phase work in the scope; releases run even after the
// context is cancelled.
func (r *Registry) NewScope(ctx context.Context, logger framework.Logger) *Scope {
	if ctx == nil {
		ctx = context.Background()
	}
	if logger == nil {
		logger = framework.NullLogger()
	}
	return &Scope{
		registry:  r,
		ctx:       ctx,
		logger:    framework.Prefixed(logger, "fixtures"),
		instances: make(map[string]interface{}),
	}
}
