package filer

import (
	"fmt"

	"github.com/rox-desktop/rox-filer-sub001/internal/rpc"
)

func args(specs ...rpc.ArgSpec) []rpc.ArgSpec { return specs }

func str(name string) rpc.ArgSpec { return rpc.ArgSpec{Name: name, Kind: rpc.KindString} }
func num(name string) rpc.ArgSpec { return rpc.ArgSpec{Name: name, Kind: rpc.KindInt} }
func yesno(name string) rpc.ArgSpec { return rpc.ArgSpec{Name: name, Kind: rpc.KindBool} }
func list(name string) rpc.ArgSpec { return rpc.ArgSpec{Name: name, Kind: rpc.KindList} }

// Signatures is the remote interface of the filer.
var Signatures = []rpc.Signature{
	{Name: "Version"},
	{Name: "Run", Required: args(str("Filename"))},
	{Name: "OpenDir", Required: args(str("Filename")), Optional: args(str("Style"), str("Details"), str("Sort"))},
	{Name: "CloseDir", Required: args(str("Filename"))},
	{Name: "Examine", Required: args(str("Filename"))},
	{Name: "Show", Required: args(str("Directory"), str("Leafname"))},
	{Name: "Pinboard", Optional: args(str("Name"))},
	{Name: "Panel", Required: args(str("Side")), Optional: args(str("Name"))},
	{Name: "FileType", Required: args(str("Filename"))},
	{Name: "Copy", Required: args(list("From"), str("To")), Optional: args(str("Leafname"), yesno("Quiet"))},
	{Name: "Move", Required: args(list("From"), str("To")), Optional: args(str("Leafname"), yesno("Quiet"))},
	{Name: "Link", Required: args(list("From"), str("To")), Optional: args(str("Leafname"))},
	{Name: "Mount", Required: args(list("MountPoints")), Optional: args(yesno("OpenDir"), yesno("Quiet"))},
	{Name: "SetBackdrop", Required: args(str("App"), str("Path")), Optional: args(str("Style"))},
	{Name: "PinboardAdd", Required: args(str("Path"), num("X"), num("Y")), Optional: args(str("Label"))},
	{Name: "PanelAdd", Required: args(str("Side"), str("Path")), Optional: args(str("Label"), yesno("After"))},
	{Name: "Delete", Required: args(list("Filenames")), Optional: args(yesno("Quiet"))},
}

// Lookup returns the signature of a procedure.
func Lookup(name string) (rpc.Signature, bool) {
	for _, s := range Signatures {
		if s.Name == name {
			return s, true
		}
	}
	return rpc.Signature{}, false
}

// MustLookup is Lookup for names known at compile time.
func MustLookup(name string) rpc.Signature {
	s, ok := Lookup(name)
	if !ok {
		panic(fmt.Sprintf("filer: no procedure %q", name))
	}
	return s
}

// Register binds every procedure in Signatures to d.
func Register(reg *rpc.Registry, d *Desktop) error {
	handlers := d.handlers()
	for _, sig := range Signatures {
		h, ok := handlers[sig.Name]
		if !ok {
			return fmt.Errorf("filer: no handler for %s", sig.Name)
		}
		if err := reg.Register(rpc.Procedure{Signature: sig, Handler: h}); err != nil {
			return err
		}
	}
	return nil
}
