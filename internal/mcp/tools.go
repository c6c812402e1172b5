package mcp

import (
	"context"
	"fmt"
	"sort"
	"strings"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/rox-desktop/rox-filer-sub001/internal/filer"
	"github.com/rox-desktop/rox-filer-sub001/internal/rpc"
	"github.com/rox-desktop/rox-filer-sub001/internal/soap"
)

// convertArgs maps JSON-decoded values onto the Go types rpc.NewRequest
// expects for each argument kind.
func convertArgs(sig rpc.Signature, in map[string]any) (map[string]any, error) {
	kinds := make(map[string]rpc.Kind)
	for _, a := range sig.Args() {
		kinds[a.Name] = a.Kind
	}
	out := make(map[string]any, len(in))
	for name, v := range in {
		kind, ok := kinds[name]
		if !ok {
			return nil, fmt.Errorf("%s has no argument %q", sig.Name, name)
		}
		conv, err := convertValue(kind, v)
		if err != nil {
			return nil, fmt.Errorf("argument %s: %w", name, err)
		}
		out[name] = conv
	}
	return out, nil
}

func convertValue(kind rpc.Kind, v any) (any, error) {
	switch kind {
	case rpc.KindString:
		if s, ok := v.(string); ok {
			return s, nil
		}
	case rpc.KindInt:
		switch n := v.(type) {
		case float64:
			if n != float64(int(n)) {
				return nil, fmt.Errorf("%v is not a whole number", n)
			}
			return int(n), nil
		case int:
			return n, nil
		}
	case rpc.KindBool:
		switch b := v.(type) {
		case bool:
			return b, nil
		case string:
			switch strings.ToLower(b) {
			case "true", "yes", "1":
				return true, nil
			case "false", "no", "0":
				return false, nil
			}
		}
	case rpc.KindList:
		switch l := v.(type) {
		case string:
			return []string{l}, nil
		case []string:
			return l, nil
		case []any:
			out := make([]string, 0, len(l))
			for _, item := range l {
				s, ok := item.(string)
				if !ok {
					return nil, fmt.Errorf("list entries must be strings, got %T", item)
				}
				out = append(out, s)
			}
			return out, nil
		}
	}
	return nil, fmt.Errorf("want %s, got %T", kind, v)
}

func (s *Server) call(ctx context.Context, req soap.Request) ([]soap.Result, error) {
	doc, err := soap.MarshalRequests(req)
	if err != nil {
		return nil, err
	}
	reply, err := s.remote.Deliver(ctx, doc)
	if err != nil {
		s.logger.Warn("delivery failed", "procedure", req.Procedure, "error", err)
		return nil, deliveryError(err)
	}
	results, err := soap.ParseReply(reply)
	if err != nil {
		return nil, fmt.Errorf("bad reply from filer: %w", err)
	}
	return results, nil
}

func (s *Server) handleCall(ctx context.Context, _ *mcpsdk.CallToolRequest, args CallInput) (*mcpsdk.CallToolResult, CallOutput, error) {
	sig, ok := filer.Lookup(args.Procedure)
	if !ok {
		return nil, CallOutput{}, fmt.Errorf("unknown procedure %q; see filer_procedures", args.Procedure)
	}
	values, err := convertArgs(sig, args.Args)
	if err != nil {
		return nil, CallOutput{}, err
	}
	req, err := rpc.NewRequest(sig, values)
	if err != nil {
		return nil, CallOutput{}, err
	}

	results, err := s.call(ctx, req)
	if err != nil {
		return nil, CallOutput{}, err
	}
	out := CallOutput{Results: make([]CallResult, 0, len(results))}
	for _, r := range results {
		cr := CallResult{Procedure: r.Procedure, Result: r.Text}
		if r.Fault != nil {
			cr.Fault = r.Fault.Error()
		}
		out.Results = append(out.Results, cr)
	}
	s.logger.Info("call delivered", "procedure", sig.Name, "results", len(out.Results))
	return nil, out, nil
}

func (s *Server) handleVersion(ctx context.Context, _ *mcpsdk.CallToolRequest, _ VersionInput) (*mcpsdk.CallToolResult, VersionOutput, error) {
	results, err := s.call(ctx, soap.Request{Procedure: "Version"})
	if err != nil {
		return nil, VersionOutput{}, err
	}
	for _, r := range results {
		if r.Fault != nil {
			return nil, VersionOutput{}, r.Fault
		}
		if r.Procedure == "Version" {
			return nil, VersionOutput{Version: r.Text}, nil
		}
	}
	return nil, VersionOutput{}, fmt.Errorf("filer sent no version")
}

func (s *Server) handleProcedures(_ context.Context, _ *mcpsdk.CallToolRequest, _ ProceduresInput) (*mcpsdk.CallToolResult, ProceduresOutput, error) {
	out := ProceduresOutput{Procedures: make([]ProcedureInfo, 0, len(filer.Signatures))}
	for _, sig := range filer.Signatures {
		info := ProcedureInfo{Name: sig.Name}
		for _, a := range sig.Required {
			info.Arguments = append(info.Arguments, ArgumentInfo{Name: a.Name, Kind: a.Kind.String(), Required: true})
		}
		for _, a := range sig.Optional {
			info.Arguments = append(info.Arguments, ArgumentInfo{Name: a.Name, Kind: a.Kind.String()})
		}
		out.Procedures = append(out.Procedures, info)
	}
	sort.Slice(out.Procedures, func(i, j int) bool { return out.Procedures[i].Name < out.Procedures[j].Name })
	return nil, out, nil
}
