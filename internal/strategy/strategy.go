// Package strategy defines the Strategy interface for trading strategies and
// provides a Registry of strategy descriptors with declared parameter
// schemas, validated eagerly at startup.
package strategy

import (
	"context"
	"fmt"
	"sort"

	"quantworker/internal/domain"
)

// AccountView exposes read-only broker state to a strategy. Strategies must
// query held position through this view rather than tracking a local copy,
// so that partial fills and rejected orders cannot desynchronize them.
type AccountView interface {
	// Cash returns the currently available cash.
	Cash() float64

	// Position returns the number of shares currently held.
	Position() int64

	// Value returns the mark-to-market portfolio value as of the last bar.
	Value() float64
}

// Strategy is the interface that all trading strategies must implement.
// A Strategy instance is built fresh for every simulation run and is never
// shared across runs.
type Strategy interface {
	// Name returns the human-readable strategy name reported in results.
	Name() string

	// Init performs one-time setup before the first bar. The account view
	// remains valid for the lifetime of the run.
	Init(ctx context.Context, acct AccountView) error

	// OnBar is called once per historical bar, in order. It returns zero or
	// more trading signals to be executed at that bar's close.
	OnBar(ctx context.Context, bar domain.Bar) ([]domain.Signal, error)
}

// Param is one declared strategy parameter with its default value. The
// default's dynamic type declares the parameter's type.
type Param struct {
	Name    string
	Default any
}

// Schema is the ordered parameter schema a strategy declares.
type Schema []Param

// Lookup returns the declared default for name.
func (s Schema) Lookup(name string) (any, bool) {
	for _, p := range s {
		if p.Name == name {
			return p.Default, true
		}
	}
	return nil, false
}

// Descriptor describes one registered strategy: its lookup key, declared
// parameter defaults, an optional explicit minimum bar count, and a
// constructor that builds a fresh instance from normalized parameters.
type Descriptor struct {
	Key      string
	Defaults Schema
	MinBars  int // 0 means derive from parameters, see EstimateMinBars
	New      func(params map[string]any) (Strategy, error)
}

// Registry holds a fixed collection of strategy descriptors for lookup and
// enumeration. It is built once at startup and validated eagerly.
type Registry struct {
	descriptors map[string]Descriptor
}

// NewRegistry creates a Registry from the given descriptors. It fails on the
// first malformed descriptor (empty key, duplicate key, nil constructor, or
// a schema with empty or duplicate parameter names) so that configuration
// mistakes surface at boot rather than at first task.
func NewRegistry(descriptors ...Descriptor) (*Registry, error) {
	r := &Registry{descriptors: make(map[string]Descriptor, len(descriptors))}
	for _, d := range descriptors {
		if d.Key == "" {
			return nil, fmt.Errorf("strategy descriptor with empty key")
		}
		if _, dup := r.descriptors[d.Key]; dup {
			return nil, fmt.Errorf("duplicate strategy key %q", d.Key)
		}
		if d.New == nil {
			return nil, fmt.Errorf("strategy %q has no constructor", d.Key)
		}
		seen := make(map[string]struct{}, len(d.Defaults))
		for _, p := range d.Defaults {
			if p.Name == "" {
				return nil, fmt.Errorf("strategy %q declares a parameter with empty name", d.Key)
			}
			if _, dup := seen[p.Name]; dup {
				return nil, fmt.Errorf("strategy %q declares parameter %q twice", d.Key, p.Name)
			}
			seen[p.Name] = struct{}{}
		}
		r.descriptors[d.Key] = d
	}
	return r, nil
}

// Get retrieves a descriptor by key. The error wraps domain.ErrUnknownStrategy
// and names the known keys, so it can be reported verbatim to the queue.
func (r *Registry) Get(key string) (Descriptor, error) {
	d, ok := r.descriptors[key]
	if !ok {
		return Descriptor{}, fmt.Errorf("%w: %q (available: %v)", domain.ErrUnknownStrategy, key, r.List())
	}
	return d, nil
}

// List returns a sorted slice of all registered strategy keys.
func (r *Registry) List() []string {
	keys := make([]string, 0, len(r.descriptors))
	for key := range r.descriptors {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
