// Package soap builds and parses the small SOAP-like documents exchanged
// between filer instances over the X side channel.
//
// A request envelope carries one or more call elements in FilerNS, each
// named after a procedure and holding one child element per argument. A
// reply envelope holds at most one <NameResponse> or Fault per call.
package soap

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"strings"

	"github.com/antchfx/xmlquery"
	"github.com/antchfx/xpath"
)

const (
	EnvelopeNS = "http://www.w3.org/2001/12/soap-envelope"
	RPCNS      = "http://www.w3.org/2001/12/soap-rpc"
	FilerNS    = "http://filer.rox-desktop.org/SOAP/Filer"
)

// Fault codes.
const (
	FaultProcedureNotPresent = "rpc:ProcedureNotPresent"
	FaultReceiver            = "env:Receiver"
)

var prefixes = map[string]string{
	EnvelopeNS: "env",
	RPCNS:      "rpc",
	FilerNS:    "filer",
}

var bodyExpr = xpath.MustCompile("*[local-name()='Body']")

// ErrMalformed is returned for documents that are not a usable envelope.
var ErrMalformed = errors.New("soap: malformed envelope")

// NewElement returns a detached element node in namespace ns.
func NewElement(ns, name string) *xmlquery.Node {
	return &xmlquery.Node{
		Type:         xmlquery.ElementNode,
		Data:         name,
		Prefix:       prefixes[ns],
		NamespaceURI: ns,
	}
}

// NewText returns a detached text node.
func NewText(text string) *xmlquery.Node {
	return &xmlquery.Node{Type: xmlquery.TextNode, Data: text}
}

// AppendChild links child as the last child of parent.
func AppendChild(parent, child *xmlquery.Node) {
	child.Parent = parent
	child.NextSibling = nil
	child.PrevSibling = parent.LastChild
	if parent.LastChild != nil {
		parent.LastChild.NextSibling = child
	} else {
		parent.FirstChild = child
	}
	parent.LastChild = child
}

// Elements returns the element children of n in document order.
func Elements(n *xmlquery.Node) []*xmlquery.Node {
	if n == nil {
		return nil
	}
	var out []*xmlquery.Node
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == xmlquery.ElementNode {
			out = append(out, c)
		}
	}
	return out
}

// Envelope wraps body entries in <env:Envelope><env:Body>.
func Envelope(entries ...*xmlquery.Node) *xmlquery.Node {
	env := NewElement(EnvelopeNS, "Envelope")
	body := NewElement(EnvelopeNS, "Body")
	AppendChild(env, body)
	for _, e := range entries {
		if e != nil {
			AppendChild(body, e)
		}
	}
	return env
}

// Reply builds <filer:NameResponse><rpc:result>text</rpc:result>.
func Reply(procedure, result string) *xmlquery.Node {
	resp := NewElement(FilerNS, procedure+"Response")
	res := NewElement(RPCNS, "result")
	if result != "" {
		AppendChild(res, NewText(result))
	}
	AppendChild(resp, res)
	return resp
}

// Fault builds an <env:Fault> carrying code and message.
func Fault(code, message string) *xmlquery.Node {
	fault := NewElement(EnvelopeNS, "Fault")
	c := NewElement("", "faultcode")
	AppendChild(c, NewText(code))
	s := NewElement("", "faultstring")
	AppendChild(s, NewText(message))
	AppendChild(fault, c)
	AppendChild(fault, s)
	return fault
}

// Parse checks that data is an envelope and returns the element children
// of its body.
func Parse(data []byte) ([]*xmlquery.Node, error) {
	doc, err := xmlquery.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	var env *xmlquery.Node
	for c := doc.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == xmlquery.ElementNode {
			env = c
			break
		}
	}
	if env == nil || env.Data != "Envelope" || env.NamespaceURI != EnvelopeNS {
		return nil, fmt.Errorf("%w: root is not an %s Envelope", ErrMalformed, EnvelopeNS)
	}
	for _, body := range xmlquery.QuerySelectorAll(env, bodyExpr) {
		if body.NamespaceURI == EnvelopeNS {
			return Elements(body), nil
		}
	}
	return nil, fmt.Errorf("%w: no Body", ErrMalformed)
}

// Marshal serializes a node tree. Every namespace used in the tree is
// declared on the top element.
func Marshal(root *xmlquery.Node) []byte {
	var buf bytes.Buffer
	buf.WriteString(`<?xml version="1.0"?>` + "\n")
	writeNode(&buf, root, collectNamespaces(root))
	buf.WriteByte('\n')
	return buf.Bytes()
}

type nsDecl struct {
	prefix string
	uri    string
}

func collectNamespaces(root *xmlquery.Node) []nsDecl {
	var decls []nsDecl
	seen := map[string]bool{}
	var walk func(n *xmlquery.Node)
	walk = func(n *xmlquery.Node) {
		if n.Type == xmlquery.ElementNode && n.NamespaceURI != "" && !seen[n.NamespaceURI] {
			seen[n.NamespaceURI] = true
			prefix := n.Prefix
			if prefix == "" {
				prefix = prefixes[n.NamespaceURI]
			}
			decls = append(decls, nsDecl{prefix: prefix, uri: n.NamespaceURI})
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return decls
}

func qualifiedName(n *xmlquery.Node) string {
	prefix := n.Prefix
	if prefix == "" && n.NamespaceURI != "" {
		prefix = prefixes[n.NamespaceURI]
	}
	if prefix == "" {
		return n.Data
	}
	return prefix + ":" + n.Data
}

func writeNode(buf *bytes.Buffer, n *xmlquery.Node, decls []nsDecl) {
	switch n.Type {
	case xmlquery.DocumentNode:
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			writeNode(buf, c, decls)
		}
	case xmlquery.ElementNode:
		name := qualifiedName(n)
		buf.WriteByte('<')
		buf.WriteString(name)
		for _, d := range decls {
			buf.WriteString(` xmlns:`)
			buf.WriteString(d.prefix)
			buf.WriteString(`="`)
			xml.EscapeText(buf, []byte(d.uri))
			buf.WriteByte('"')
		}
		if n.FirstChild == nil {
			buf.WriteString("/>")
			return
		}
		buf.WriteByte('>')
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			// Declarations only go on the outermost element.
			writeNode(buf, c, nil)
		}
		buf.WriteString("</")
		buf.WriteString(name)
		buf.WriteByte('>')
	case xmlquery.TextNode, xmlquery.CharDataNode:
		xml.EscapeText(buf, []byte(n.Data))
	}
}

// Result is one decoded entry of a reply envelope.
type Result struct {
	Procedure string // empty for faults
	Text      string
	Fault     *FaultInfo
}

// FaultInfo is a decoded fault record.
type FaultInfo struct {
	Code    string
	Message string
}

func (f *FaultInfo) Error() string {
	return f.Code + ": " + f.Message
}

// ParseReply decodes a reply envelope. An empty body yields no results.
func ParseReply(data []byte) ([]Result, error) {
	entries, err := Parse(data)
	if err != nil {
		return nil, err
	}
	out := make([]Result, 0, len(entries))
	for _, e := range entries {
		if e.Data == "Fault" && e.NamespaceURI == EnvelopeNS {
			info := &FaultInfo{}
			for _, c := range Elements(e) {
				switch c.Data {
				case "faultcode":
					info.Code = strings.TrimSpace(c.InnerText())
				case "faultstring":
					info.Message = c.InnerText()
				}
			}
			out = append(out, Result{Fault: info})
			continue
		}
		r := Result{Procedure: strings.TrimSuffix(e.Data, "Response")}
		for _, c := range Elements(e) {
			if c.Data == "result" {
				r.Text = c.InnerText()
				break
			}
		}
		out = append(out, r)
	}
	return out, nil
}
