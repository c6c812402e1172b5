package filer

import (
	"github.com/antchfx/xmlquery"

	"github.com/rox-desktop/rox-filer-sub001/internal/action"
	"github.com/rox-desktop/rox-filer-sub001/internal/rpc"
	"github.com/rox-desktop/rox-filer-sub001/internal/soap"
)

// fault turns a handler error into a fault reply; success sends nothing.
func (d *Desktop) fault(procedure string, err error) *xmlquery.Node {
	if err == nil {
		return nil
	}
	d.logger.Warn("procedure failed", "procedure", procedure, "error", err)
	return soap.Fault(soap.FaultReceiver, err.Error())
}

func (d *Desktop) handlers() map[string]rpc.Handler {
	return map[string]rpc.Handler{
		"Version": func([]*xmlquery.Node) *xmlquery.Node {
			return soap.Reply("Version", d.version)
		},
		"Run": func(a []*xmlquery.Node) *xmlquery.Node {
			return d.fault("Run", d.Run(rpc.String(a[0])))
		},
		"OpenDir": func(a []*xmlquery.Node) *xmlquery.Node {
			return d.fault("OpenDir", d.OpenDir(rpc.String(a[0]), rpc.String(a[1]), rpc.String(a[2]), rpc.String(a[3])))
		},
		"CloseDir": func(a []*xmlquery.Node) *xmlquery.Node {
			d.CloseDir(rpc.String(a[0]))
			return nil
		},
		"Examine": func(a []*xmlquery.Node) *xmlquery.Node {
			_, err := d.Examine(rpc.String(a[0]))
			return d.fault("Examine", err)
		},
		"Show": func(a []*xmlquery.Node) *xmlquery.Node {
			return d.fault("Show", d.Show(rpc.String(a[0]), rpc.String(a[1])))
		},
		"Pinboard": func(a []*xmlquery.Node) *xmlquery.Node {
			return d.fault("Pinboard", d.ShowPinboard(rpc.String(a[0])))
		},
		"Panel": func(a []*xmlquery.Node) *xmlquery.Node {
			side, err := ParseSide(rpc.String(a[0]))
			if err != nil {
				return d.fault("Panel", err)
			}
			return d.fault("Panel", d.ShowPanel(side, rpc.String(a[1])))
		},
		"FileType": func(a []*xmlquery.Node) *xmlquery.Node {
			mime, err := d.FileType(rpc.String(a[0]))
			if err != nil {
				return d.fault("FileType", err)
			}
			return soap.Reply("FileType", mime)
		},
		"Copy": d.transfer(action.Copy),
		"Move": d.transfer(action.Move),
		"Link": func(a []*xmlquery.Node) *xmlquery.Node {
			return d.fault("Link", d.StartAction(action.Request{
				Kind:  action.Link,
				Items: rpc.StringList(a[0]),
				Dest:  rpc.String(a[1]),
				Leaf:  rpc.String(a[2]),
			}))
		},
		"Mount": func(a []*xmlquery.Node) *xmlquery.Node {
			return d.fault("Mount", d.StartAction(action.Request{
				Kind:      action.Mount,
				Items:     rpc.StringList(a[0]),
				OpenAfter: rpc.Bool(a[1]).Or(false),
				Quiet:     rpc.Bool(a[2]).Or(false),
			}))
		},
		"SetBackdrop": func(a []*xmlquery.Node) *xmlquery.Node {
			return d.fault("SetBackdrop", d.SetBackdrop(rpc.String(a[0]), rpc.String(a[1]), rpc.String(a[2])))
		},
		"PinboardAdd": func(a []*xmlquery.Node) *xmlquery.Node {
			return d.fault("PinboardAdd", d.PinboardAdd(rpc.String(a[0]), rpc.Int(a[1], 0), rpc.Int(a[2], 0), rpc.String(a[3])))
		},
		"PanelAdd": func(a []*xmlquery.Node) *xmlquery.Node {
			side, err := ParseSide(rpc.String(a[0]))
			if err != nil {
				return d.fault("PanelAdd", err)
			}
			return d.fault("PanelAdd", d.PanelAdd(side, rpc.String(a[1]), rpc.String(a[2]), rpc.Bool(a[3]).Or(false)))
		},
		"Delete": func(a []*xmlquery.Node) *xmlquery.Node {
			return d.fault("Delete", d.StartAction(action.Request{
				Kind:  action.Delete,
				Items: rpc.StringList(a[0]),
				Quiet: rpc.Bool(a[1]).Or(false),
			}))
		},
	}
}

// transfer handles Copy and Move, which share their arguments.
func (d *Desktop) transfer(kind action.Kind) rpc.Handler {
	name := "Copy"
	if kind == action.Move {
		name = "Move"
	}
	return func(a []*xmlquery.Node) *xmlquery.Node {
		return d.fault(name, d.StartAction(action.Request{
			Kind:  kind,
			Items: rpc.StringList(a[0]),
			Dest:  rpc.String(a[1]),
			Leaf:  rpc.String(a[2]),
			Quiet: rpc.Bool(a[3]).Or(false),
		}))
	}
}
