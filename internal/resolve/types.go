package resolve

import (
	"fmt"
	"strings"

	"github.com/jptrs93/troto/internal/diag"
	"github.com/jptrs93/troto/internal/ir"
	"github.com/jptrs93/troto/internal/wellknown"
)

// TypeRef is a fully resolved type. The set of implementations is closed;
// consumers switch over all of them and panic on anything else.
type TypeRef interface {
	fmt.Stringer
	isTypeRef()
}

type Primitive struct {
	Kind ir.Kind
}

// Named references an exported message interface declared in a source file.
type Named struct {
	Name       string
	ImportPath string
}

type Optional struct {
	Inner TypeRef
}

type Repeated struct {
	Elem TypeRef
}

type MapOf struct {
	Key   TypeRef
	Value TypeRef
}

// Extended is Ext<T, {...}>: Inner with field-level options attached.
type Extended struct {
	Inner   TypeRef
	Options []ir.Option
}

// UnionOf is a union of single-property records; each branch becomes one
// member of a oneof.
type UnionOf struct {
	Branches []*Field
}

type StreamOf struct {
	Inner TypeRef
}

// WellKnown references an external type from the wellknown provider.
type WellKnown struct {
	Type wellknown.Type
}

// Empty is void or the empty record type {}.
type Empty struct{}

func (Primitive) isTypeRef() {}
func (Named) isTypeRef()     {}
func (Optional) isTypeRef()  {}
func (Repeated) isTypeRef()  {}
func (MapOf) isTypeRef()     {}
func (Extended) isTypeRef()  {}
func (UnionOf) isTypeRef()   {}
func (StreamOf) isTypeRef()  {}
func (WellKnown) isTypeRef() {}
func (Empty) isTypeRef()     {}

func (t Primitive) String() string { return t.Kind.String() }
func (t Named) String() string     { return t.Name }
func (t Optional) String() string  { return "Opt<" + t.Inner.String() + ">" }
func (t Repeated) String() string  { return "Rep<" + t.Elem.String() + ">" }
func (t MapOf) String() string     { return "Map<" + t.Key.String() + ", " + t.Value.String() + ">" }
func (t Extended) String() string  { return "Ext<" + t.Inner.String() + ">" }
func (t StreamOf) String() string  { return "Stream<" + t.Inner.String() + ">" }
func (t WellKnown) String() string { return t.Type.FullName }
func (Empty) String() string       { return "{}" }

func (t UnionOf) String() string {
	parts := make([]string, len(t.Branches))
	for i, b := range t.Branches {
		parts[i] = "{ " + b.Name + ": " + b.Type.String() + " }"
	}
	return strings.Join(parts, " | ")
}

// File is one source file after resolution.
type File struct {
	Path          string
	OutPath       string
	Decls         []*Decl
	Options       []ir.Option
	ForcedImports []string
}

type DeclKind uint8

const (
	DeclMessage DeclKind = iota
	DeclService
)

// Decl is an exported, non-generic interface with its members fully
// instantiated: base members first, in extends order, then its own.
type Decl struct {
	Name    string
	Kind    DeclKind
	Fields  []*Field
	Methods []*Method
	Options []ir.Option
	Pos     diag.Pos
}

// Field is a property, a method parameter, or a union branch. Number is only
// meaningful when HasNumber is set.
type Field struct {
	Name      string
	Number    int
	HasNumber bool
	Optional  bool
	Type      TypeRef
	Options   []ir.Option
	Pos       diag.Pos
}

// Method is a service method. Result is Empty when the method declares no
// return type or returns void.
type Method struct {
	Name    string
	Params  []*Field
	Result  TypeRef
	Options []ir.Option
	Pos     diag.Pos
}
