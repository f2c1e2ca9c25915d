package parser

import "github.com/jptrs93/troto/internal/diag"

// File is the parsed form of one source file.
type File struct {
	Path       string
	Decls      []Decl
	Imports    []*Import
	Directives []*Directive
}

// Decl is either *Interface or *TypeAlias.
type Decl interface {
	DeclName() string
	DeclPos() diag.Pos
	isDecl()
}

type Interface struct {
	Name     string
	Exported bool
	Params   []*TypeParam
	Extends  []*TypeName
	Members  []Member
	Options  []Option
	Pos      diag.Pos
}

type TypeAlias struct {
	Name     string
	Exported bool
	Params   []*TypeParam
	Type     TypeExpr
	Options  []Option
	Pos      diag.Pos
}

func (d *Interface) DeclName() string  { return d.Name }
func (d *Interface) DeclPos() diag.Pos { return d.Pos }
func (*Interface) isDecl()             {}

func (d *TypeAlias) DeclName() string  { return d.Name }
func (d *TypeAlias) DeclPos() diag.Pos { return d.Pos }
func (*TypeAlias) isDecl()             {}

type TypeParam struct {
	Name string
	Pos  diag.Pos
}

// Member is either *Property or *Method.
type Member interface {
	MemberName() string
	MemberPos() diag.Pos
	isMember()
}

// Property is a field-shaped member. HasNumber is set when the name carried a
// `$N` suffix; `$0` is kept so it can be rejected later.
type Property struct {
	Name      string
	Number    int
	HasNumber bool
	Optional  bool
	Type      TypeExpr
	Options   []Option
	Pos       diag.Pos
}

type Method struct {
	Name    string
	Params  []*Property
	Result  TypeExpr
	Options []Option
	Pos     diag.Pos
}

func (m *Property) MemberName() string  { return m.Name }
func (m *Property) MemberPos() diag.Pos { return m.Pos }
func (*Property) isMember()             {}

func (m *Method) MemberName() string  { return m.Name }
func (m *Method) MemberPos() diag.Pos { return m.Pos }
func (*Method) isMember()             {}

type Import struct {
	Path     string
	Forced   bool
	TypeOnly bool
	Names    []*ImportName
	Pos      diag.Pos
}

type ImportName struct {
	Name  string
	Alias string
	Pos   diag.Pos
}

// Local is the name the import binds in the importing file.
func (n *ImportName) Local() string {
	if n.Alias != "" {
		return n.Alias
	}
	return n.Name
}

// Directive is a file-level call statement such as FileOpt('a', 'b').
type Directive struct {
	Name string
	Args []Literal
	Pos  diag.Pos
}

type Option struct {
	Name  string
	Value Literal
	Pos   diag.Pos
}

type LitKind uint8

const (
	LitString LitKind = iota
	LitNumber
	LitBool
	LitIdent
)

type Literal struct {
	Kind LitKind
	Text string
}

// TypeExpr is the syntactic form of a type: *TypeName, *ArrayType,
// *UnionType, *ObjectType or *LiteralType.
type TypeExpr interface {
	TypePos() diag.Pos
	isTypeExpr()
}

// TypeName is a possibly generic-applied name. Keywords such as any, void and
// unknown are also represented as names.
type TypeName struct {
	Name string
	Args []TypeExpr
	Pos  diag.Pos
}

type ArrayType struct {
	Elem TypeExpr
	Pos  diag.Pos
}

type UnionType struct {
	Branches []TypeExpr
	Pos      diag.Pos
}

type ObjectType struct {
	Members []*Property
	Pos     diag.Pos
}

type LiteralType struct {
	Value Literal
	Pos   diag.Pos
}

func (t *TypeName) TypePos() diag.Pos    { return t.Pos }
func (t *ArrayType) TypePos() diag.Pos   { return t.Pos }
func (t *UnionType) TypePos() diag.Pos   { return t.Pos }
func (t *ObjectType) TypePos() diag.Pos  { return t.Pos }
func (t *LiteralType) TypePos() diag.Pos { return t.Pos }

func (*TypeName) isTypeExpr()    {}
func (*ArrayType) isTypeExpr()   {}
func (*UnionType) isTypeExpr()   {}
func (*ObjectType) isTypeExpr()  {}
func (*LiteralType) isTypeExpr() {}
