package rpc

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/antchfx/xmlquery"

	"github.com/rox-desktop/rox-filer-sub001/internal/soap"
)

// Tristate is a boolean argument that may be left unspecified.
type Tristate int

const (
	Unset Tristate = iota
	True
	False
)

// Bool decodes a boolean argument. Absent or unrecognised text is Unset.
func Bool(n *xmlquery.Node) Tristate {
	if n == nil {
		return Unset
	}
	switch strings.ToLower(strings.TrimSpace(n.InnerText())) {
	case "true", "yes", "1":
		return True
	case "false", "no", "0":
		return False
	}
	return Unset
}

// Or resolves Unset to def.
func (t Tristate) Or(def bool) bool {
	switch t {
	case True:
		return true
	case False:
		return false
	}
	return def
}

// String decodes a string argument; a childless or absent node is "".
func String(n *xmlquery.Node) string {
	if n == nil || n.FirstChild == nil {
		return ""
	}
	return n.InnerText()
}

// Int decodes an integer argument, returning def for absent or malformed
// text.
func Int(n *xmlquery.Node, def int) int {
	if n == nil {
		return def
	}
	v, err := strconv.Atoi(strings.TrimSpace(n.InnerText()))
	if err != nil {
		return def
	}
	return v
}

// StringList decodes a list argument: one entry per child element.
func StringList(n *xmlquery.Node) []string {
	var out []string
	for _, c := range soap.Elements(n) {
		out = append(out, c.InnerText())
	}
	return out
}

// NewRequest checks values against sig and builds the outgoing call.
// Values are keyed by argument name and must match the argument kind.
func NewRequest(sig Signature, values map[string]any) (soap.Request, error) {
	known := make(map[string]ArgSpec)
	for _, a := range sig.Args() {
		known[a.Name] = a
	}
	for name := range values {
		if _, ok := known[name]; !ok {
			return soap.Request{}, fmt.Errorf("%s: unknown argument %q", sig.Name, name)
		}
	}

	req := soap.Request{Procedure: sig.Name}
	add := func(spec ArgSpec, v any) error {
		ok := false
		switch spec.Kind {
		case KindString:
			_, ok = v.(string)
		case KindInt:
			_, ok = v.(int)
		case KindBool:
			_, ok = v.(bool)
		case KindList:
			_, ok = v.([]string)
		}
		if !ok {
			return fmt.Errorf("%s: argument %s wants %s, got %T", sig.Name, spec.Name, spec.Kind, v)
		}
		req.Args = append(req.Args, soap.Arg{Name: spec.Name, Value: v})
		return nil
	}

	for _, spec := range sig.Required {
		v, ok := values[spec.Name]
		if !ok {
			return soap.Request{}, fmt.Errorf("%s: missing required argument %s", sig.Name, spec.Name)
		}
		if err := add(spec, v); err != nil {
			return soap.Request{}, err
		}
	}
	for _, spec := range sig.Optional {
		if v, ok := values[spec.Name]; ok {
			if err := add(spec, v); err != nil {
				return soap.Request{}, err
			}
		}
	}
	return req, nil
}
