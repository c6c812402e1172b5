// Package rpc holds the table of remotely callable procedures and the
// dispatcher that validates incoming calls against it.
package rpc

import (
	"errors"
	"fmt"
	"sort"

	"github.com/antchfx/xmlquery"
)

// Kind is the value type of one argument.
type Kind int

const (
	KindString Kind = iota
	KindInt
	KindBool
	KindList
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindInt:
		return "int"
	case KindBool:
		return "bool"
	case KindList:
		return "list"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// ArgSpec describes one named argument.
type ArgSpec struct {
	Name string
	Kind Kind
}

// Signature is the argument contract of a procedure. Argument order is
// the order handlers receive them in: required first, then optional.
type Signature struct {
	Name     string
	Required []ArgSpec
	Optional []ArgSpec
}

// Args returns required then optional argument specs.
func (s Signature) Args() []ArgSpec {
	out := make([]ArgSpec, 0, len(s.Required)+len(s.Optional))
	out = append(out, s.Required...)
	return append(out, s.Optional...)
}

// Validate reports an empty name or duplicated argument names.
func (s Signature) Validate() error {
	if s.Name == "" {
		return errors.New("procedure name is empty")
	}
	seen := make(map[string]bool)
	for _, a := range s.Args() {
		if a.Name == "" {
			return fmt.Errorf("%s: empty argument name", s.Name)
		}
		if seen[a.Name] {
			return fmt.Errorf("%s: duplicate argument %q", s.Name, a.Name)
		}
		seen[a.Name] = true
	}
	return nil
}

// Handler runs a procedure. args has one entry per Signature.Args() entry;
// absent optional arguments are nil. A nil result means no reply.
type Handler func(args []*xmlquery.Node) *xmlquery.Node

// Procedure binds a signature to its handler.
type Procedure struct {
	Signature
	Handler Handler
}

var (
	ErrFrozen    = errors.New("rpc: registry is frozen")
	ErrDuplicate = errors.New("rpc: procedure already registered")
)

// Registry maps procedure names to procedures. It is filled at startup
// and read-only once frozen.
type Registry struct {
	procs  map[string]Procedure
	frozen bool
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{procs: make(map[string]Procedure)}
}

// Register adds p after validating its signature.
func (r *Registry) Register(p Procedure) error {
	if r.frozen {
		return ErrFrozen
	}
	if err := p.Validate(); err != nil {
		return fmt.Errorf("rpc: %w", err)
	}
	if p.Handler == nil {
		return fmt.Errorf("rpc: %s has no handler", p.Name)
	}
	if _, ok := r.procs[p.Name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicate, p.Name)
	}
	r.procs[p.Name] = p
	return nil
}

// Freeze makes the registry read-only.
func (r *Registry) Freeze() {
	r.frozen = true
}

// Lookup finds a procedure by name.
func (r *Registry) Lookup(name string) (Procedure, bool) {
	p, ok := r.procs[name]
	return p, ok
}

// Names returns the registered names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.procs))
	for n := range r.procs {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
