package soap

import (
	"fmt"
	"strconv"

	"github.com/antchfx/xmlquery"
)

// ListEntry is the element name used for each entry of a list argument.
const ListEntry = "Path"

// Arg is one named argument of an outgoing call. Value must be a string,
// int, bool or []string.
type Arg struct {
	Name  string
	Value any
}

// Request is an outgoing procedure call.
type Request struct {
	Procedure string
	Args      []Arg
}

// Node renders the call element for r.
func (r Request) Node() (*xmlquery.Node, error) {
	call := NewElement(FilerNS, r.Procedure)
	for _, a := range r.Args {
		arg := NewElement(FilerNS, a.Name)
		switch v := a.Value.(type) {
		case string:
			if v != "" {
				AppendChild(arg, NewText(v))
			}
		case int:
			AppendChild(arg, NewText(strconv.Itoa(v)))
		case bool:
			AppendChild(arg, NewText(strconv.FormatBool(v)))
		case []string:
			for _, s := range v {
				entry := NewElement(FilerNS, ListEntry)
				AppendChild(entry, NewText(s))
				AppendChild(arg, entry)
			}
		default:
			return nil, fmt.Errorf("soap: argument %s of %s has unsupported type %T", a.Name, r.Procedure, a.Value)
		}
		AppendChild(call, arg)
	}
	return call, nil
}

// MarshalRequests renders one envelope containing all calls, in order.
func MarshalRequests(reqs ...Request) ([]byte, error) {
	nodes := make([]*xmlquery.Node, 0, len(reqs))
	for _, r := range reqs {
		n, err := r.Node()
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, n)
	}
	return Marshal(Envelope(nodes...)), nil
}
