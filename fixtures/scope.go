package fixtures

import (
	"context"
	"fmt"

	"github.com/apiharness/service-contract-tests/framework"
)

type acquiredFixture struct {
	name    string
	value   interface{}
	release ReleaseFunc
}

// Scope is one test's view of the fixture registry. It is used from the
// test's own goroutine only; tests run concurrently get their own scopes.
type Scope struct {
	registry  *Registry
	ctx       context.Context
	logger    framework.Logger
	instances map[string]interface{}
	acquired  []acquiredFixture
	resolving []string
	closed    bool
}

// Context returns the context bounding this scope's acquire-phase work.
func (s *Scope) Context() context.Context {
	return s.ctx
}

// Get returns the fixture's value, acquiring it (and, depth-first, its
// declared dependencies) on first use within the scope. Repeated calls for
// the same name return the same instance.
func (s *Scope) Get(name string) (interface{}, error) {
	if s.closed {
		return nil, fmt.Errorf("fixture %q requested from a closed scope", name)
	}
	if value, ok := s.instances[name]; ok {
		return value, nil
	}

	for i, inProgress := range s.resolving {
		if inProgress == name {
			cycle := append(append([]string(nil), s.resolving[i:]...), name)
			return nil, &FixtureCycleError{Cycle: cycle}
		}
	}

	def, ok := s.registry.definition(name)
	if !ok {
		return nil, &UnknownFixtureError{Name: name}
	}

	s.resolving = append(s.resolving, name)
	defer func() { s.resolving = s.resolving[:len(s.resolving)-1] }()

	for _, dep := range def.Dependencies {
		if _, err := s.Get(dep); err != nil {
			return nil, err
		}
	}

	if err := s.ctx.Err(); err != nil {
		return nil, fmt.Errorf("fixture %q not acquired: %w", name, err)
	}

	s.logger.Printf("acquiring %q", name)
	value, err := def.Acquire(s)
	if err != nil {
		return nil, fmt.Errorf("acquiring fixture %q: %w", name, err)
	}

	s.instances[name] = value
	s.acquired = append(s.acquired, acquiredFixture{name: name, value: value, release: def.Release})
	return value, nil
}

// Close releases every acquired fixture in exact reverse acquisition order.
// It runs on every exit path, including after acquire failures and cancelled
// contexts, and is idempotent. Release errors are collected rather than
// stopping the teardown.
func (s *Scope) Close() []error {
	if s.closed {
		return nil
	}
	s.closed = true

	var errs []error
	for i := len(s.acquired) - 1; i >= 0; i-- {
		f := s.acquired[i]
		if f.release == nil {
			continue
		}
		s.logger.Printf("releasing %q", f.name)
		if err := releaseGuarded(f); err != nil {
			errs = append(errs, fmt.Errorf("releasing fixture %q: %w", f.name, err))
		}
	}
	s.acquired = nil
	return errs
}

func releaseGuarded(f acquiredFixture) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in release: %+v", r)
		}
	}()
	return f.release(f.value)
}
