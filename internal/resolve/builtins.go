package resolve

import (
	"github.com/jptrs93/troto/internal/ir"
	"github.com/jptrs93/troto/internal/wellknown"
)

// Generic helpers and their arity.
const (
	helperOpt    = "Opt"
	helperRep    = "Rep"
	helperArray  = "Array"
	helperMap    = "Map"
	helperRecord = "Record"
	helperExt    = "Ext"
	helperStream = "Stream"
)

var helperArity = map[string]int{
	helperOpt:    1,
	helperRep:    1,
	helperArray:  1,
	helperMap:    2,
	helperRecord: 2,
	helperExt:    2,
	helperStream: 1,
}

// primitives maps scalar keywords, including the JS spellings, to kinds.
var primitives = map[string]ir.Kind{
	"bool":     ir.KindBool,
	"boolean":  ir.KindBool,
	"double":   ir.KindDouble,
	"number":   ir.KindDouble,
	"float":    ir.KindFloat,
	"bytes":    ir.KindBytes,
	"string":   ir.KindString,
	"int32":    ir.KindInt32,
	"int64":    ir.KindInt64,
	"bigint":   ir.KindInt64,
	"uint32":   ir.KindUint32,
	"uint64":   ir.KindUint64,
	"sint32":   ir.KindSint32,
	"sint64":   ir.KindSint64,
	"fixed32":  ir.KindFixed32,
	"fixed64":  ir.KindFixed64,
	"sfixed32": ir.KindSfixed32,
	"sfixed64": ir.KindSfixed64,
}

// jsTypes maps JavaScript runtime types to their schema equivalent. Entries
// with a wellKnown name are looked up in the provider.
var jsTypes = map[string]struct {
	kind      ir.Kind
	repeated  bool
	wellKnown string
}{
	"any":            {wellKnown: wellknown.Any},
	"unknown":        {wellKnown: wellknown.Any},
	"Date":           {wellKnown: wellknown.Timestamp},
	"ArrayBuffer":    {kind: ir.KindBytes},
	"Uint8Array":     {kind: ir.KindBytes},
	"Int8Array":      {kind: ir.KindInt32, repeated: true},
	"Int16Array":     {kind: ir.KindInt32, repeated: true},
	"Int32Array":     {kind: ir.KindInt32, repeated: true},
	"Uint16Array":    {kind: ir.KindUint32, repeated: true},
	"Uint32Array":    {kind: ir.KindUint32, repeated: true},
	"Float32Array":   {kind: ir.KindFloat, repeated: true},
	"Float64Array":   {kind: ir.KindDouble, repeated: true},
	"BigInt64Array":  {kind: ir.KindInt64, repeated: true},
	"BigUint64Array": {kind: ir.KindUint64, repeated: true},
}

const keywordVoid = "void"
