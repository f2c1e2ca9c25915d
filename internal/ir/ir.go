package ir

import "github.com/jptrs93/troto/internal/diag"

// File is the schema for one output IDL document.
type File struct {
	Path    string
	Source  string
	Options []Option
	Imports []string
	Decls   []Decl
}

// Decl holds exactly one of Message or Service.
type Decl struct {
	Message *Message
	Service *Service
}

func (f *File) Messages() []*Message {
	var msgs []*Message
	for _, decl := range f.Decls {
		if decl.Message != nil {
			msgs = append(msgs, decl.Message)
		}
	}
	return msgs
}

func (f *File) Services() []*Service {
	var svcs []*Service
	for _, decl := range f.Decls {
		if decl.Service != nil {
			svcs = append(svcs, decl.Service)
		}
	}
	return svcs
}

type Option struct {
	Name  string
	Value Value
}

type ValueKind uint8

const (
	ValueString ValueKind = iota
	ValueNumber
	ValueBool
	ValueIdent
)

type Value struct {
	Kind ValueKind
	Text string
}

type Message struct {
	Name      string
	Fields    []*Field
	Oneofs    []*Oneof
	Options   []Option
	Synthetic bool
	Pos       diag.Pos
}

type Oneof struct {
	Name string
	Pos  diag.Pos
}

// Field is a message field. Number is zero until assigned unless Explicit.
// MessageFullName names the message or enum type when Kind is KindMessage or
// KindEnum; MapValueMessage does the same for map values.
type Field struct {
	Name            string
	Number          int
	Explicit        bool
	Kind            Kind
	IsRepeated      bool
	IsOptional      bool
	IsMap           bool
	MapKeyKind      Kind
	MapValueKind    Kind
	MapValueMessage string
	MessageFullName string
	Oneof           *Oneof
	Options         []Option
	Pos             diag.Pos
}

type Service struct {
	Name    string
	Methods []*Method
	Options []Option
	Pos     diag.Pos
}

type Method struct {
	Name            string
	InputType       string
	OutputType      string
	ClientStreaming bool
	ServerStreaming bool
	Options         []Option
	Pos             diag.Pos
}

type Kind int

const (
	KindBool Kind = iota
	KindInt32
	KindInt64
	KindUint32
	KindUint64
	KindSint32
	KindSint64
	KindFixed32
	KindFixed64
	KindSfixed32
	KindSfixed64
	KindFloat
	KindDouble
	KindString
	KindBytes
	KindMessage
	KindEnum
)

var scalarNames = [...]string{
	KindBool:     "bool",
	KindInt32:    "int32",
	KindInt64:    "int64",
	KindUint32:   "uint32",
	KindUint64:   "uint64",
	KindSint32:   "sint32",
	KindSint64:   "sint64",
	KindFixed32:  "fixed32",
	KindFixed64:  "fixed64",
	KindSfixed32: "sfixed32",
	KindSfixed64: "sfixed64",
	KindFloat:    "float",
	KindDouble:   "double",
	KindString:   "string",
	KindBytes:    "bytes",
	KindMessage:  "message",
	KindEnum:     "enum",
}

// String returns the proto keyword for scalar kinds.
func (k Kind) String() string {
	if k >= 0 && int(k) < len(scalarNames) {
		return scalarNames[k]
	}
	return "unknown"
}

func (k Kind) IsScalar() bool {
	return k >= KindBool && k <= KindBytes
}

// IsMapKey reports whether k may be used as a map key: any integral kind,
// bool or string.
func (k Kind) IsMapKey() bool {
	switch k {
	case KindFloat, KindDouble, KindBytes, KindMessage, KindEnum:
		return false
	}
	return k.IsScalar()
}

// ScalarKind looks up a scalar kind by its proto keyword.
func ScalarKind(name string) (Kind, bool) {
	for k := KindBool; k <= KindBytes; k++ {
		if scalarNames[k] == name {
			return k, true
		}
	}
	return 0, false
}
