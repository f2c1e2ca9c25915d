// Package wellknown maps importable external type names to proto types.
package wellknown

import (
	"sort"
	"strings"

	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/reflect/protoregistry"
	"google.golang.org/protobuf/types/descriptorpb"
	"google.golang.org/protobuf/types/known/anypb"
	"google.golang.org/protobuf/types/known/apipb"
	"google.golang.org/protobuf/types/known/durationpb"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/fieldmaskpb"
	"google.golang.org/protobuf/types/known/sourcecontextpb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/timestamppb"
	"google.golang.org/protobuf/types/known/typepb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// ModulePrefix is prepended to a proto file path (minus its extension) to form
// the module name sources import well-known types from, e.g.
// troto/types/google/protobuf/struct.
const ModulePrefix = "troto/types/"

const (
	Any       = "google.protobuf.Any"
	Empty     = "google.protobuf.Empty"
	Timestamp = "google.protobuf.Timestamp"

	// EmptyFile is the import path declaring Empty.
	EmptyFile = "google/protobuf/empty.proto"
)

type Type struct {
	Module     string `yaml:"module"`
	Name       string `yaml:"name"`
	FullName   string `yaml:"proto"`
	ImportPath string `yaml:"import"`
	Enum       bool   `yaml:"enum,omitempty"`
}

// Provider is the read-only lookup the resolver uses for types that are not
// declared in any source file.
type Provider interface {
	Lookup(module, name string) (Type, bool)
	HasModule(module string) bool
	ByFullName(fullName string) (Type, bool)
	HasFile(importPath string) bool
}

type Table struct {
	byModule   map[string]map[string]Type
	byFullName map[string]Type
	files      map[string]bool
}

var _ Provider = (*Table)(nil)

func NewTable(types ...Type) *Table {
	t := &Table{
		byModule:   make(map[string]map[string]Type),
		byFullName: make(map[string]Type),
		files:      make(map[string]bool),
	}
	for _, ty := range types {
		t.Add(ty)
	}
	return t
}

// Default returns a table of the protobuf well-known types, built from the
// descriptors linked into the protobuf runtime.
func Default() *Table {
	t := NewTable()
	for _, fd := range []protoreflect.FileDescriptor{
		anypb.File_google_protobuf_any_proto,
		apipb.File_google_protobuf_api_proto,
		descriptorpb.File_google_protobuf_descriptor_proto,
		durationpb.File_google_protobuf_duration_proto,
		emptypb.File_google_protobuf_empty_proto,
		fieldmaskpb.File_google_protobuf_field_mask_proto,
		sourcecontextpb.File_google_protobuf_source_context_proto,
		structpb.File_google_protobuf_struct_proto,
		timestamppb.File_google_protobuf_timestamp_proto,
		typepb.File_google_protobuf_type_proto,
		wrapperspb.File_google_protobuf_wrappers_proto,
	} {
		t.AddFile(fd)
	}
	return t
}

// AddFile registers every top-level message and enum of fd under the module
// derived from its path.
func (t *Table) AddFile(fd protoreflect.FileDescriptor) {
	module := ModulePrefix + strings.TrimSuffix(fd.Path(), ".proto")
	msgs := fd.Messages()
	for i := 0; i < msgs.Len(); i++ {
		md := msgs.Get(i)
		t.Add(Type{
			Module:     module,
			Name:       string(md.Name()),
			FullName:   string(md.FullName()),
			ImportPath: fd.Path(),
		})
	}
	enums := fd.Enums()
	for i := 0; i < enums.Len(); i++ {
		ed := enums.Get(i)
		t.Add(Type{
			Module:     module,
			Name:       string(ed.Name()),
			FullName:   string(ed.FullName()),
			ImportPath: fd.Path(),
			Enum:       true,
		})
	}
	t.files[fd.Path()] = true
}

// Add registers ty, replacing any earlier entry with the same module and name.
func (t *Table) Add(ty Type) {
	names, ok := t.byModule[ty.Module]
	if !ok {
		names = make(map[string]Type)
		t.byModule[ty.Module] = names
	}
	names[ty.Name] = ty
	t.byFullName[ty.FullName] = ty
	if ty.ImportPath != "" {
		t.files[ty.ImportPath] = true
	}
}

func (t *Table) Lookup(module, name string) (Type, bool) {
	ty, ok := t.byModule[module][name]
	return ty, ok
}

func (t *Table) HasModule(module string) bool {
	_, ok := t.byModule[module]
	return ok
}

func (t *Table) ByFullName(fullName string) (Type, bool) {
	ty, ok := t.byFullName[fullName]
	return ty, ok
}

// HasFile reports whether importPath is provided by the table or by a file
// registered with the protobuf runtime.
func (t *Table) HasFile(importPath string) bool {
	if t.files[importPath] {
		return true
	}
	_, err := protoregistry.GlobalFiles.FindFileByPath(importPath)
	return err == nil
}

// Modules lists the registered module names in sorted order.
func (t *Table) Modules() []string {
	modules := make([]string, 0, len(t.byModule))
	for module := range t.byModule {
		modules = append(modules, module)
	}
	sort.Strings(modules)
	return modules
}
