package resolve

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jptrs93/troto/internal/diag"
	"github.com/jptrs93/troto/internal/ir"
	"github.com/jptrs93/troto/internal/parser"
)

type source struct {
	path string
	src  string
}

func resolveSources(t *testing.T, cfg Config, sources ...source) ([]*File, error) {
	t.Helper()
	var files []*parser.File
	for _, s := range sources {
		f, err := parser.Parse(s.path, []byte(s.src))
		require.NoError(t, err, s.path)
		files = append(files, f)
	}
	return Resolve(files, cfg)
}

func resolveOne(t *testing.T, src string) (*File, error) {
	t.Helper()
	files, err := resolveSources(t, Config{}, source{path: "a.ts", src: src})
	if err != nil {
		return nil, err
	}
	require.Len(t, files, 1)
	return files[0], nil
}

func decl(t *testing.T, f *File, name string) *Decl {
	t.Helper()
	for _, d := range f.Decls {
		if d.Name == name {
			return d
		}
	}
	t.Fatalf("no declaration %s", name)
	return nil
}

func fieldTypes(d *Decl) map[string]string {
	out := make(map[string]string, len(d.Fields))
	for _, f := range d.Fields {
		out[f.Name] = f.Type.String()
	}
	return out
}

func TestOutputPath(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "a/b.proto", OutputPath("a/b.ts"))
	assert.Equal(t, "x.proto", OutputPath("x"))
	assert.Equal(t, "a/b", ModuleKey("./a/b.ts"))
}

func TestGenericExtension(t *testing.T) {
	t.Parallel()

	f, err := resolveOne(t, `
interface Vector3<T> { x: T; y: T; z: T }
export interface Vector3f extends Vector3<float> {}
export interface Vector3i extends Vector3<int32> { w$9: string }
`)
	require.NoError(t, err)
	require.Len(t, f.Decls, 2)

	v3f := decl(t, f, "Vector3f")
	assert.Equal(t, DeclMessage, v3f.Kind)
	assert.Equal(t, map[string]string{"x": "float", "y": "float", "z": "float"}, fieldTypes(v3f))

	v3i := decl(t, f, "Vector3i")
	require.Len(t, v3i.Fields, 4)
	assert.Equal(t, "x", v3i.Fields[0].Name)
	assert.Equal(t, "int32", v3i.Fields[0].Type.String())
	assert.Equal(t, "w", v3i.Fields[3].Name)
	assert.Equal(t, 9, v3i.Fields[3].Number)

	// Each instantiation gets its own field values.
	assert.NotSame(t, v3f.Fields[0], v3i.Fields[0])
}

func TestExportedGenericIsNotEmitted(t *testing.T) {
	t.Parallel()

	f, err := resolveOne(t, `export interface Box<T> { value: T }`)
	require.NoError(t, err)
	assert.Empty(t, f.Decls)
}

func TestNestedGenericArguments(t *testing.T) {
	t.Parallel()

	f, err := resolveOne(t, `
interface Pair<A, B> { first: A; second: B }
interface Wrap<T> extends Pair<T[], Map<string, T>> {}
export interface W extends Wrap<int64> {}
`)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"first":  "Rep<int64>",
		"second": "Map<string, int64>",
	}, fieldTypes(decl(t, f, "W")))
}

func TestAliasInlining(t *testing.T) {
	t.Parallel()

	f, err := resolveOne(t, `
type Id = int64;
type List<T> = T[];
type Unused = { z: 4 };
export interface M { id: Id; ids: List<Id>; opt: Opt<string> }
`)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"id":  "int64",
		"ids": "Rep<int64>",
		"opt": "Opt<string>",
	}, fieldTypes(decl(t, f, "M")))
}

func TestJavaScriptTypes(t *testing.T) {
	t.Parallel()

	f, err := resolveOne(t, `
export interface M { a: number; b: boolean; c: Date; d: Uint8Array; e: Float32Array; f: any; g: bigint }
`)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"a": "double",
		"b": "bool",
		"c": "google.protobuf.Timestamp",
		"d": "bytes",
		"e": "Rep<float>",
		"f": "google.protobuf.Any",
		"g": "int64",
	}, fieldTypes(decl(t, f, "M")))
}

func TestLocalDeclarationShadowsBuiltin(t *testing.T) {
	t.Parallel()

	f, err := resolveOne(t, `
export interface Date { millis: int64 }
export interface M { at: Date }
`)
	require.NoError(t, err)
	at := decl(t, f, "M").Fields[0].Type
	assert.Equal(t, Named{Name: "Date", ImportPath: "a.proto"}, at)
}

func TestUnionFlattening(t *testing.T) {
	t.Parallel()

	f, err := resolveOne(t, `
type AB = { a: int32 } | { b: string };
interface Choice<T> { pick: T | { d: bool } }
export interface M extends Choice<AB | { c$7: float }> {}
`)
	require.NoError(t, err)
	m := decl(t, f, "M")
	require.Len(t, m.Fields, 1)
	union, ok := m.Fields[0].Type.(UnionOf)
	require.True(t, ok, "got %T", m.Fields[0].Type)

	var names []string
	for _, b := range union.Branches {
		names = append(names, b.Name)
	}
	assert.Equal(t, []string{"a", "b", "c", "d"}, names)
	assert.Equal(t, 7, union.Branches[2].Number)
}

func TestExtOptions(t *testing.T) {
	t.Parallel()

	f, err := resolveOne(t, `
type Opts = { deprecated: true; json_name: "n"; ctype: CORD; max: 3 };
export interface M { n: Ext<string, Opts> }
`)
	require.NoError(t, err)
	ext, ok := decl(t, f, "M").Fields[0].Type.(Extended)
	require.True(t, ok)
	assert.Equal(t, Primitive{Kind: ir.KindString}, ext.Inner)
	assert.Equal(t, []ir.Option{
		{Name: "deprecated", Value: ir.Value{Kind: ir.ValueBool, Text: "true"}},
		{Name: "json_name", Value: ir.Value{Kind: ir.ValueString, Text: "n"}},
		{Name: "ctype", Value: ir.Value{Kind: ir.ValueIdent, Text: "CORD"}},
		{Name: "max", Value: ir.Value{Kind: ir.ValueNumber, Text: "3"}},
	}, ext.Options)
}

func TestServiceClassification(t *testing.T) {
	t.Parallel()

	f, err := resolveOne(t, `
export interface Req { q: string }
export interface Api {
  get(req: Req): Req;
  ping(): void;
  watch(req: Req): Stream<Req>;
}
`)
	require.NoError(t, err)
	api := decl(t, f, "Api")
	assert.Equal(t, DeclService, api.Kind)
	require.Len(t, api.Methods, 3)
	assert.Equal(t, Empty{}, api.Methods[1].Result)
	assert.Equal(t, StreamOf{Inner: Named{Name: "Req", ImportPath: "a.proto"}}, api.Methods[2].Result)
}

func TestFileOptionsAndForcedImports(t *testing.T) {
	t.Parallel()

	f, err := resolveOne(t, `
import '?google/api/annotations.proto';
FileOpt("go_package", "example.com/x");
export interface M {}
`)
	require.NoError(t, err)
	assert.Equal(t, []string{"google/api/annotations.proto"}, f.ForcedImports)
	assert.Equal(t, []ir.Option{{Name: "go_package", Value: ir.Value{Kind: ir.ValueString, Text: "example.com/x"}}}, f.Options)
}

func TestCrossFileImports(t *testing.T) {
	t.Parallel()

	files, err := resolveSources(t, Config{},
		source{path: "app/main.ts", src: `
import type { Point as P } from './geo/point';
import type { Timestamp } from 'troto/types/google/protobuf/timestamp';
export interface Place { at: P; when: Timestamp }
`},
		source{path: "app/geo/point.ts", src: `export interface Point { x: double; y: double }`},
	)
	require.NoError(t, err)
	require.Len(t, files, 2)
	place := decl(t, files[0], "Place")
	assert.Equal(t, Named{Name: "Point", ImportPath: "app/geo/point.proto"}, place.Fields[0].Type)
	wk, ok := place.Fields[1].Type.(WellKnown)
	require.True(t, ok)
	assert.Equal(t, "google/protobuf/timestamp.proto", wk.Type.ImportPath)
}

func TestErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		src  string
		kind diag.Kind
	}{
		{
			name: "unknown type",
			src:  `export interface M { a: Nope }`,
			kind: diag.KindUnresolvedType,
		},
		{
			name: "too few type arguments",
			src:  "interface B<T, U> { a: T }\nexport interface M extends B<int32> {}",
			kind: diag.KindGenericArity,
		},
		{
			name: "helper arity",
			src:  `export interface M { a: Map<string> }`,
			kind: diag.KindGenericArity,
		},
		{
			name: "mixed members",
			src:  `export interface M { a: int32; f(): void }`,
			kind: diag.KindMixedMemberKind,
		},
		{
			name: "mixed through base",
			src:  "interface S { f(): void }\nexport interface M extends S { a: int32 }",
			kind: diag.KindMixedMemberKind,
		},
		{
			name: "union branch with two properties",
			src:  `export interface M { u: { a: int32; b: int32 } | { c: int32 } }`,
			kind: diag.KindInvalidUnionBranch,
		},
		{
			name: "union branch primitive",
			src:  `export interface M { u: { a: int32 } | string }`,
			kind: diag.KindInvalidUnionBranch,
		},
		{
			name: "alias cycle",
			src:  "type A = B;\ntype B = A;\nexport interface M { a: A }",
			kind: diag.KindCyclicDeclaration,
		},
		{
			name: "extends cycle",
			src:  "interface A extends B {}\ninterface B extends A {}",
			kind: diag.KindCyclicDeclaration,
		},
		{
			name: "duplicate declaration",
			src:  "export interface M {}\nexport interface M {}",
			kind: diag.KindDuplicateDeclaration,
		},
		{
			name: "duplicate member through base",
			src:  "interface B { a: int32 }\nexport interface M extends B { a: string }",
			kind: diag.KindDuplicateDeclaration,
		},
		{
			name: "non-exported field type",
			src:  "interface Hidden { a: int32 }\nexport interface M { h: Hidden }",
			kind: diag.KindInvalidType,
		},
		{
			name: "service as field type",
			src:  "export interface S { f(): void }\nexport interface M { s: S }",
			kind: diag.KindInvalidType,
		},
		{
			name: "unknown module",
			src:  "import type { X } from './missing';\nexport interface M {}",
			kind: diag.KindUnresolvedImport,
		},
		{
			name: "unknown wellknown type",
			src:  "import type { Nope } from 'troto/types/google/protobuf/timestamp';\nexport interface M {}",
			kind: diag.KindUnresolvedImport,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := resolveOne(t, tc.src)
			require.Error(t, err)
			assert.Equal(t, tc.kind, diag.KindOf(err), err.Error())
		})
	}
}

func TestImportOfNonExported(t *testing.T) {
	t.Parallel()

	_, err := resolveSources(t, Config{},
		source{path: "a.ts", src: "import type { B } from './b';\nexport interface A { b: B }"},
		source{path: "b.ts", src: "interface B { x: int32 }"},
	)
	require.Error(t, err)
	assert.Equal(t, diag.KindUnresolvedImport, diag.KindOf(err))
}

func TestForcedImportLookup(t *testing.T) {
	t.Parallel()

	src := source{path: "a.ts", src: "import '?vendor/x.proto';\nimport '?google/protobuf/empty.proto';\nimport '?b.proto';\nexport interface A {}"}
	other := source{path: "b.ts", src: "export interface B {}"}

	var asked []string
	_, err := resolveSources(t, Config{ProtoFileExists: func(p string) bool {
		asked = append(asked, p)
		return p == "vendor/x.proto"
	}}, src, other)
	require.NoError(t, err)
	// Well-known files and generated outputs never reach the callback.
	assert.Equal(t, []string{"vendor/x.proto"}, asked)

	_, err = resolveSources(t, Config{ProtoFileExists: func(string) bool { return false }}, src, other)
	require.Error(t, err)
	assert.Equal(t, diag.KindUnresolvedImport, diag.KindOf(err))
}

func TestFirstErrorFollowsFileOrder(t *testing.T) {
	t.Parallel()

	_, err := resolveSources(t, Config{},
		source{path: "one.ts", src: "export interface A { a: Missing }"},
		source{path: "two.ts", src: "export interface B { a: int32; f(): void }"},
	)
	require.Error(t, err)
	assert.Equal(t, diag.KindUnresolvedType, diag.KindOf(err))
	var de *diag.Error
	require.ErrorAs(t, err, &de)
	assert.Equal(t, "one.ts", de.Pos().File)
}
