// Package protocheck compiles emitted IDL with protocompile and verifies the
// resulting descriptors agree with the IR the IDL was rendered from.
package protocheck

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path/filepath"

	"github.com/bufbuild/protocompile"
	"github.com/bufbuild/protocompile/reporter"
	"github.com/spf13/afero"
	"google.golang.org/protobuf/reflect/protoreflect"

	"github.com/jptrs93/troto/internal/diag"
	"github.com/jptrs93/troto/internal/ir"
)

// Document is a rendered IR file.
type Document struct {
	File    *ir.File
	Content []byte
}

type Checker struct {
	// ProtoPaths are searched in order for imports that are not documents
	// of the same check.
	ProtoPaths []string
	Fs         afero.Fs
}

func (c *Checker) Check(ctx context.Context, docs []Document) error {
	if len(docs) == 0 {
		return nil
	}
	fsys := c.Fs
	if fsys == nil {
		fsys = afero.NewOsFs()
	}
	byPath := make(map[string]Document, len(docs))
	paths := make([]string, 0, len(docs))
	for _, doc := range docs {
		byPath[doc.File.Path] = doc
		paths = append(paths, doc.File.Path)
	}
	resolver := &protocompile.SourceResolver{
		Accessor: func(path string) (io.ReadCloser, error) {
			if doc, ok := byPath[path]; ok {
				return io.NopCloser(bytes.NewReader(doc.Content)), nil
			}
			for _, dir := range c.ProtoPaths {
				f, err := fsys.Open(filepath.Join(dir, filepath.FromSlash(path)))
				if err == nil {
					return f, nil
				}
				if !errors.Is(err, fs.ErrNotExist) {
					return nil, err
				}
			}
			return nil, fs.ErrNotExist
		},
	}
	compiler := protocompile.Compiler{
		Resolver: protocompile.WithStandardImports(resolver),
	}
	files, err := compiler.Compile(ctx, paths...)
	if err != nil {
		return compileError(err)
	}
	for _, file := range files {
		if err := verifyFile(byPath[file.Path()].File, file); err != nil {
			return err
		}
	}
	return nil
}

func compileError(err error) error {
	var withPos reporter.ErrorWithPos
	if errors.As(err, &withPos) {
		pos := withPos.GetPosition()
		return diag.Errorf(diag.KindOutputCheck, diag.Pos{File: pos.Filename, Line: pos.Line, Column: pos.Col},
			"emitted IDL does not compile: %v", withPos.Unwrap())
	}
	return diag.Errorf(diag.KindOutputCheck, diag.Pos{}, "emitted IDL does not compile: %v", err)
}

func verifyFile(f *ir.File, file protoreflect.FileDescriptor) error {
	if file.Syntax() != protoreflect.Proto3 {
		return diag.Errorf(diag.KindOutputCheck, diag.Pos{File: f.Path}, "%s is not proto3", f.Path)
	}
	for _, msg := range f.Messages() {
		desc := file.Messages().ByName(protoreflect.Name(msg.Name))
		if desc == nil {
			return mismatch(msg.Pos, "message %s is missing", msg.Name)
		}
		for _, field := range msg.Fields {
			if err := verifyField(msg, field, desc.Fields().ByName(protoreflect.Name(field.Name))); err != nil {
				return err
			}
		}
	}
	for _, svc := range f.Services() {
		desc := file.Services().ByName(protoreflect.Name(svc.Name))
		if desc == nil {
			return mismatch(svc.Pos, "service %s is missing", svc.Name)
		}
		for _, method := range svc.Methods {
			md := desc.Methods().ByName(protoreflect.Name(method.Name))
			switch {
			case md == nil:
				return mismatch(method.Pos, "%s.%s is missing", svc.Name, method.Name)
			case string(md.Input().FullName()) != method.InputType:
				return mismatch(method.Pos, "%s.%s takes %s, want %s", svc.Name, method.Name, md.Input().FullName(), method.InputType)
			case string(md.Output().FullName()) != method.OutputType:
				return mismatch(method.Pos, "%s.%s returns %s, want %s", svc.Name, method.Name, md.Output().FullName(), method.OutputType)
			case md.IsStreamingClient() != method.ClientStreaming || md.IsStreamingServer() != method.ServerStreaming:
				return mismatch(method.Pos, "%s.%s has the wrong streaming mode", svc.Name, method.Name)
			}
		}
	}
	return nil
}

func verifyField(msg *ir.Message, field *ir.Field, desc protoreflect.FieldDescriptor) error {
	name := msg.Name + "." + field.Name
	if desc == nil {
		return mismatch(field.Pos, "field %s is missing", name)
	}
	if int(desc.Number()) != field.Number {
		return mismatch(field.Pos, "field %s has number %d, want %d", name, desc.Number(), field.Number)
	}
	if desc.IsMap() != field.IsMap || desc.IsList() != field.IsRepeated {
		return mismatch(field.Pos, "field %s has the wrong cardinality", name)
	}
	if desc.HasOptionalKeyword() != field.IsOptional {
		return mismatch(field.Pos, "field %s has the wrong presence", name)
	}
	oneof := desc.ContainingOneof()
	if oneof != nil && oneof.IsSynthetic() {
		oneof = nil
	}
	switch {
	case field.Oneof == nil && oneof != nil:
		return mismatch(field.Pos, "field %s is in oneof %s", name, oneof.Name())
	case field.Oneof != nil && (oneof == nil || string(oneof.Name()) != field.Oneof.Name):
		return mismatch(field.Pos, "field %s is not in oneof %s", name, field.Oneof.Name)
	}
	if field.IsMap {
		key, err := kindFromField(desc.MapKey())
		if err != nil {
			return err
		}
		if key != field.MapKeyKind {
			return mismatch(field.Pos, "field %s has key kind %s, want %s", name, key, field.MapKeyKind)
		}
		return verifyKind(field.Pos, name, desc.MapValue(), field.MapValueKind, field.MapValueMessage)
	}
	return verifyKind(field.Pos, name, desc, field.Kind, field.MessageFullName)
}

func verifyKind(pos diag.Pos, name string, desc protoreflect.FieldDescriptor, want ir.Kind, wantType string) error {
	kind, err := kindFromField(desc)
	if err != nil {
		return err
	}
	if kind != want {
		return mismatch(pos, "field %s has kind %s, want %s", name, kind, want)
	}
	var got string
	switch kind {
	case ir.KindMessage:
		got = string(desc.Message().FullName())
	case ir.KindEnum:
		got = string(desc.Enum().FullName())
	default:
		return nil
	}
	if got != wantType {
		return mismatch(pos, "field %s has type %s, want %s", name, got, wantType)
	}
	return nil
}

func mismatch(pos diag.Pos, format string, args ...any) error {
	return diag.Errorf(diag.KindOutputCheck, pos, "emitted IDL disagrees with the schema: "+format, args...)
}

func kindFromField(field protoreflect.FieldDescriptor) (ir.Kind, error) {
	switch field.Kind() {
	case protoreflect.BoolKind:
		return ir.KindBool, nil
	case protoreflect.Int32Kind:
		return ir.KindInt32, nil
	case protoreflect.Int64Kind:
		return ir.KindInt64, nil
	case protoreflect.Uint32Kind:
		return ir.KindUint32, nil
	case protoreflect.Uint64Kind:
		return ir.KindUint64, nil
	case protoreflect.Sint32Kind:
		return ir.KindSint32, nil
	case protoreflect.Sint64Kind:
		return ir.KindSint64, nil
	case protoreflect.Fixed32Kind:
		return ir.KindFixed32, nil
	case protoreflect.Fixed64Kind:
		return ir.KindFixed64, nil
	case protoreflect.Sfixed32Kind:
		return ir.KindSfixed32, nil
	case protoreflect.Sfixed64Kind:
		return ir.KindSfixed64, nil
	case protoreflect.FloatKind:
		return ir.KindFloat, nil
	case protoreflect.DoubleKind:
		return ir.KindDouble, nil
	case protoreflect.StringKind:
		return ir.KindString, nil
	case protoreflect.BytesKind:
		return ir.KindBytes, nil
	case protoreflect.MessageKind:
		return ir.KindMessage, nil
	case protoreflect.EnumKind:
		return ir.KindEnum, nil
	default:
		return 0, fmt.Errorf("unsupported field kind: %s", field.Kind())
	}
}
