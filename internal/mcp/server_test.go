package mcp

import (
	"context"
	"errors"
	"slices"
	"strings"
	"testing"

	"github.com/antchfx/xmlquery"

	"github.com/rox-desktop/rox-filer-sub001/internal/filer"
	"github.com/rox-desktop/rox-filer-sub001/internal/remote"
	"github.com/rox-desktop/rox-filer-sub001/internal/rpc"
	"github.com/rox-desktop/rox-filer-sub001/internal/soap"
)

// dispatchDeliverer hands documents straight to a dispatcher, standing in
// for the running instance.
type dispatchDeliverer struct {
	disp *rpc.Dispatcher
	err  error
	sent int
}

func (d *dispatchDeliverer) Deliver(_ context.Context, request []byte) ([]byte, error) {
	d.sent++
	if d.err != nil {
		return nil, d.err
	}
	return d.disp.HandleDocument(request)
}

type copyCall struct {
	from  []string
	to    string
	quiet bool
}

func newTestServer(t *testing.T) (*Server, *dispatchDeliverer, *[]copyCall) {
	t.Helper()
	var copies []copyCall
	reg := rpc.NewRegistry()
	procs := []rpc.Procedure{
		{Signature: filer.MustLookup("Version"), Handler: func([]*xmlquery.Node) *xmlquery.Node {
			return soap.Reply("Version", "2.11")
		}},
		{Signature: filer.MustLookup("Copy"), Handler: func(a []*xmlquery.Node) *xmlquery.Node {
			copies = append(copies, copyCall{rpc.StringList(a[0]), rpc.String(a[1]), rpc.Bool(a[3]).Or(false)})
			return nil
		}},
		{Signature: filer.MustLookup("CloseDir"), Handler: func([]*xmlquery.Node) *xmlquery.Node {
			return soap.Fault(soap.FaultReceiver, "no such view")
		}},
	}
	for _, p := range procs {
		if err := reg.Register(p); err != nil {
			t.Fatal(err)
		}
	}
	reg.Freeze()
	d := &dispatchDeliverer{disp: rpc.NewDispatcher(reg, nil)}
	return NewServer(d, "2.11", nil), d, &copies
}

func TestHandleVersion(t *testing.T) {
	s, _, _ := newTestServer(t)
	_, out, err := s.handleVersion(context.Background(), nil, VersionInput{})
	if err != nil {
		t.Fatal(err)
	}
	if out.Version != "2.11" {
		t.Fatalf("Version = %q", out.Version)
	}
}

func TestHandleCallConvertsArguments(t *testing.T) {
	s, _, copies := newTestServer(t)
	_, out, err := s.handleCall(context.Background(), nil, CallInput{
		Procedure: "Copy",
		Args: map[string]any{
			"From":  []any{"/a", "/b"},
			"To":    "/dest",
			"Quiet": "yes",
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(out.Results) != 0 {
		t.Fatalf("results = %+v", out.Results)
	}
	if len(*copies) != 1 {
		t.Fatalf("copies = %+v", *copies)
	}
	got := (*copies)[0]
	if !slices.Equal(got.from, []string{"/a", "/b"}) || got.to != "/dest" || !got.quiet {
		t.Fatalf("copy = %+v", got)
	}
}

func TestHandleCallReportsFaults(t *testing.T) {
	s, _, _ := newTestServer(t)
	_, out, err := s.handleCall(context.Background(), nil, CallInput{
		Procedure: "CloseDir",
		Args:      map[string]any{"Filename": "/x"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(out.Results) != 1 || !strings.Contains(out.Results[0].Fault, "no such view") {
		t.Fatalf("results = %+v", out.Results)
	}
}

func TestHandleCallRejectsBadInput(t *testing.T) {
	tests := []struct {
		name string
		in   CallInput
	}{
		{"unknown procedure", CallInput{Procedure: "Frobnicate"}},
		{"unknown argument", CallInput{Procedure: "Copy", Args: map[string]any{"From": "/a", "To": "/b", "Colour": "red"}}},
		{"missing argument", CallInput{Procedure: "Copy", Args: map[string]any{"From": "/a"}}},
		{"wrong kind", CallInput{Procedure: "PinboardAdd", Args: map[string]any{"Path": "/a", "X": 1.5, "Y": 2.0}}},
		{"non-string list", CallInput{Procedure: "Copy", Args: map[string]any{"From": []any{1.0}, "To": "/b"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, d, _ := newTestServer(t)
			if _, _, err := s.handleCall(context.Background(), nil, tt.in); err == nil {
				t.Fatal("expected error")
			}
			if d.sent != 0 {
				t.Fatal("invalid calls must not be delivered")
			}
		})
	}
}

func TestNoRunningInstance(t *testing.T) {
	s, d, _ := newTestServer(t)
	d.err = remote.ErrNoInstance
	_, _, err := s.handleVersion(context.Background(), nil, VersionInput{})
	if err == nil || !strings.Contains(err.Error(), "no filer is running") {
		t.Fatalf("err = %v", err)
	}
	d.err = errors.New("boom")
	if _, _, err := s.handleVersion(context.Background(), nil, VersionInput{}); err == nil || err.Error() != "boom" {
		t.Fatalf("err = %v", err)
	}
}

func TestHandleProcedures(t *testing.T) {
	s, _, _ := newTestServer(t)
	_, out, err := s.handleProcedures(context.Background(), nil, ProceduresInput{})
	if err != nil {
		t.Fatal(err)
	}
	if len(out.Procedures) != len(filer.Signatures) {
		t.Fatalf("got %d procedures", len(out.Procedures))
	}
	for _, p := range out.Procedures {
		if p.Name != "Mount" {
			continue
		}
		if len(p.Arguments) != 3 || !p.Arguments[0].Required || p.Arguments[0].Kind != rpc.KindList.String() || p.Arguments[1].Required {
			t.Fatalf("Mount arguments = %+v", p.Arguments)
		}
		return
	}
	t.Fatal("Mount not listed")
}
