package protogen

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jptrs93/troto/internal/generate"
	"github.com/jptrs93/troto/internal/ir"
	"github.com/jptrs93/troto/internal/testutil"
)

func str(s string) ir.Value   { return ir.Value{Kind: ir.ValueString, Text: s} }
func num(s string) ir.Value   { return ir.Value{Kind: ir.ValueNumber, Text: s} }
func ident(s string) ir.Value { return ir.Value{Kind: ir.ValueIdent, Text: s} }

func sampleFile() *ir.File {
	union := &ir.Oneof{Name: "union"}
	return &ir.File{
		Path:    "a.proto",
		Options: []ir.Option{{Name: "csharp_namespace", Value: str("Example.Test")}},
		Imports: []string{"google/protobuf/empty.proto", "google/protobuf/struct.proto"},
		Decls: []ir.Decl{
			{Message: &ir.Message{Name: "Vector3f", Fields: []*ir.Field{
				{Name: "x", Number: 1, Kind: ir.KindFloat},
			}}},
			{Message: &ir.Message{Name: "Marker"}},
			{Message: &ir.Message{
				Name:    "Name",
				Options: []ir.Option{{Name: "a", Value: str("b")}},
				Oneofs:  []*ir.Oneof{union},
				Fields: []*ir.Field{
					{Name: "opt1", Number: 1, Kind: ir.KindMessage, MessageFullName: "Vector3f", IsOptional: true},
					{Name: "map1", Number: 2, Kind: ir.KindMessage, IsMap: true, MapKeyKind: ir.KindString, MapValueKind: ir.KindMessage, MapValueMessage: "Vector3f"},
					{Name: "ext1", Number: 3, Kind: ir.KindMessage, MessageFullName: "Vector3f", Options: []ir.Option{{Name: "y", Value: num("4")}, {Name: "ctype", Value: ident("CORD")}}},
					{Name: "f", Number: 4, Kind: ir.KindMessage, MessageFullName: "Vector3f", Oneof: union},
					{Name: "d", Number: 5, Kind: ir.KindDouble, Oneof: union},
					{Name: "tags", Number: 6, Kind: ir.KindString, IsRepeated: true},
					{Name: "s", Number: 7, Kind: ir.KindMessage, MessageFullName: "google.protobuf.Struct"},
				},
			}},
			{Message: &ir.Message{Name: "MRequest", Synthetic: true, Fields: []*ir.Field{
				{Name: "v", Number: 1, Kind: ir.KindMessage, MessageFullName: "Vector3f"},
				{Name: "f", Number: 2, Kind: ir.KindFloat},
			}}},
			{Service: &ir.Service{Name: "S", Methods: []*ir.Method{
				{Name: "M", InputType: "MRequest", OutputType: "Vector3f", ServerStreaming: true},
				{Name: "Ping", InputType: "google.protobuf.Empty", OutputType: "google.protobuf.Empty",
					Options: []ir.Option{{Name: "deprecated", Value: ir.Value{Kind: ir.ValueBool, Text: "true"}}}},
				{Name: "Up", InputType: "Vector3f", OutputType: "Vector3f", ClientStreaming: true},
			}}},
		},
	}
}

const sampleWant = `syntax = "proto3";

option csharp_namespace = "Example.Test";

import "google/protobuf/empty.proto";
import "google/protobuf/struct.proto";

message Vector3f {
  float x = 1;
}

message Marker {}

message Name {
  option a = "b";

  optional Vector3f opt1 = 1;
  map<string, Vector3f> map1 = 2;
  Vector3f ext1 = 3 [y = 4, ctype = CORD];
  oneof union {
    Vector3f f = 4;
    double d = 5;
  }
  repeated string tags = 6;
  google.protobuf.Struct s = 7;
}

message MRequest {
  Vector3f v = 1;
  float f = 2;
}

service S {
  rpc M(MRequest) returns (stream Vector3f);
  rpc Ping(google.protobuf.Empty) returns (google.protobuf.Empty) {
    option deprecated = true;
  }
  rpc Up(stream Vector3f) returns (Vector3f);
}
`

func TestRender(t *testing.T) {
	t.Parallel()
	testutil.ExpectNoDiff(t, sampleWant, string(Render(sampleFile())))
}

func TestRenderIsDeterministic(t *testing.T) {
	t.Parallel()
	first := Render(sampleFile())
	for range 10 {
		assert.Equal(t, first, Render(sampleFile()))
	}
}

func TestRenderHeaderOnly(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "syntax = \"proto3\";\n", string(Render(&ir.File{Path: "x.proto"})))
}

func TestQuote(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{in: "plain", want: `"plain"`},
		{in: `a"b`, want: `"a\"b"`},
		{in: `back\slash`, want: `"back\\slash"`},
		{in: "line\nbreak\ttab", want: `"line\nbreak\ttab"`},
		{in: "bell\x07", want: `"bell\007"`},
		{in: "héllo", want: `"héllo"`},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, quote(tc.in), tc.in)
	}
}

func TestGenerator(t *testing.T) {
	t.Parallel()

	var g generate.Generator = Generator{}
	assert.Equal(t, "proto", g.Name())

	files := []*ir.File{{Path: "a/b.proto"}, {Path: "c.proto"}}
	outputs, err := g.Generate(files, generate.Options{})
	require.NoError(t, err)
	require.Len(t, outputs, 2)
	assert.Equal(t, "a/b.proto", outputs[0].Path)

	outputs, err = g.Generate(files, generate.Options{OutDir: "gen"})
	require.NoError(t, err)
	assert.Equal(t, "gen/a/b.proto", outputs[0].Path)
	assert.Equal(t, "gen/c.proto", outputs[1].Path)
}
