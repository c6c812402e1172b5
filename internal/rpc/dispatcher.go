package rpc

import (
	"fmt"
	"log/slog"

	"github.com/antchfx/xmlquery"

	"github.com/rox-desktop/rox-filer-sub001/internal/soap"
)

// Dispatcher invokes registered procedures for incoming calls.
type Dispatcher struct {
	reg    *Registry
	logger *slog.Logger
}

// NewDispatcher returns a dispatcher over reg. A nil logger discards.
func NewDispatcher(reg *Registry, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Dispatcher{reg: reg, logger: logger}
}

// Invoke runs one call. Unknown procedures produce a fault; a call missing
// a required argument is dropped with a warning and produces no reply.
// Otherwise the handler's result is returned as is.
func (d *Dispatcher) Invoke(name string, args []*xmlquery.Node) *xmlquery.Node {
	proc, ok := d.reg.Lookup(name)
	if !ok {
		d.logger.Warn("unknown procedure", "procedure", name)
		return soap.Fault(soap.FaultProcedureNotPresent,
			fmt.Sprintf("No such SOAP method '%s'", name))
	}

	byName := make(map[string]*xmlquery.Node, len(args))
	for _, a := range args {
		if _, dup := byName[a.Data]; !dup {
			byName[a.Data] = a
		}
	}

	ordered := make([]*xmlquery.Node, 0, len(proc.Required)+len(proc.Optional))
	for _, spec := range proc.Required {
		n, ok := byName[spec.Name]
		if !ok {
			d.logger.Warn("missing required argument, call dropped",
				"procedure", name, "argument", spec.Name)
			return nil
		}
		ordered = append(ordered, n)
	}
	for _, spec := range proc.Optional {
		ordered = append(ordered, byName[spec.Name])
	}

	d.logger.Debug("dispatching", "procedure", name)
	return proc.Handler(ordered)
}

// HandleDocument dispatches every call in a request envelope and returns
// the reply envelope. Calls outside the filer namespace are skipped. A
// malformed envelope is rejected as a whole.
func (d *Dispatcher) HandleDocument(doc []byte) ([]byte, error) {
	calls, err := soap.Parse(doc)
	if err != nil {
		d.logger.Warn("dropping request", "error", err)
		return nil, err
	}

	var replies []*xmlquery.Node
	for _, call := range calls {
		if call.NamespaceURI != soap.FilerNS {
			d.logger.Warn("call in wrong namespace",
				"procedure", call.Data, "namespace", call.NamespaceURI)
			continue
		}
		if reply := d.Invoke(call.Data, soap.Elements(call)); reply != nil {
			replies = append(replies, reply)
		}
	}
	return soap.Marshal(soap.Envelope(replies...)), nil
}
