// Package lower turns resolved declarations into the IR the emitter renders.
package lower

import (
	"fmt"
	"sort"

	"github.com/jptrs93/troto/internal/diag"
	"github.com/jptrs93/troto/internal/ir"
	"github.com/jptrs93/troto/internal/resolve"
	"github.com/jptrs93/troto/internal/wellknown"
)

// responseField names the single field of a synthesized response message.
const responseField = "value"

type builder struct {
	file    *resolve.File
	out     *ir.File
	imports map[string]bool
	names   map[string]diag.Pos
}

// File builds the IR for one resolved file. Field numbers are left for
// ir.AssignNumbers.
func File(f *resolve.File) (*ir.File, error) {
	b := &builder{
		file:    f,
		out:     &ir.File{Path: f.OutPath, Source: f.Path, Options: mergeOptions(f.Options)},
		imports: make(map[string]bool),
		names:   make(map[string]diag.Pos, len(f.Decls)),
	}
	for _, imp := range f.ForcedImports {
		b.imports[imp] = true
	}
	for _, d := range f.Decls {
		b.names[d.Name] = d.Pos
	}
	for _, d := range f.Decls {
		switch d.Kind {
		case resolve.DeclMessage:
			msg, err := b.message(d)
			if err != nil {
				return nil, err
			}
			b.out.Decls = append(b.out.Decls, ir.Decl{Message: msg})
		case resolve.DeclService:
			synthesized, svc, err := b.service(d)
			if err != nil {
				return nil, err
			}
			for _, msg := range synthesized {
				b.out.Decls = append(b.out.Decls, ir.Decl{Message: msg})
			}
			b.out.Decls = append(b.out.Decls, ir.Decl{Service: svc})
		default:
			panic(fmt.Sprintf("unexpected declaration kind %d", d.Kind))
		}
	}
	for imp := range b.imports {
		b.out.Imports = append(b.out.Imports, imp)
	}
	sort.Strings(b.out.Imports)
	return b.out, nil
}

// mergeOptions applies file options in source order: a later value replaces
// an earlier one but keeps its position.
func mergeOptions(opts []ir.Option) []ir.Option {
	if len(opts) == 0 {
		return nil
	}
	index := make(map[string]int, len(opts))
	out := make([]ir.Option, 0, len(opts))
	for _, opt := range opts {
		if i, ok := index[opt.Name]; ok {
			out[i].Value = opt.Value
			continue
		}
		index[opt.Name] = len(out)
		out = append(out, opt)
	}
	return out
}

func (b *builder) useImport(importPath string) {
	if importPath != "" && importPath != b.file.OutPath {
		b.imports[importPath] = true
	}
}

// symbols holds the field and oneof names of one message, which share a
// scope in the emitted IDL.
type symbols map[string]diag.Pos

func (s symbols) declare(owner, name string, pos diag.Pos) error {
	if prev, ok := s[name]; ok {
		return diag.Errorf(diag.KindDuplicateDeclaration, pos,
			"%s.%s: name already used at %s", owner, name, prev)
	}
	s[name] = pos
	return nil
}

func (b *builder) message(d *resolve.Decl) (*ir.Message, error) {
	msg := &ir.Message{Name: d.Name, Options: d.Options, Pos: d.Pos}
	seen := make(symbols, len(d.Fields))
	for _, f := range d.Fields {
		if err := b.addField(msg, seen, f); err != nil {
			return nil, err
		}
	}
	return msg, nil
}

// peel strips the presence and option wrappers that may surround a field's
// type.
func peel(t resolve.TypeRef, optional bool, opts []ir.Option) (resolve.TypeRef, bool, []ir.Option) {
	opts = opts[:len(opts):len(opts)]
	for {
		switch v := t.(type) {
		case resolve.Optional:
			optional = true
			t = v.Inner
		case resolve.Extended:
			opts = append(opts, v.Options...)
			t = v.Inner
		default:
			return t, optional, opts
		}
	}
}

func (b *builder) addField(msg *ir.Message, seen symbols, f *resolve.Field) error {
	if !ir.IsIdent(f.Name) {
		return diag.Errorf(diag.KindInvalidType, f.Pos, "%s.%s: field name is not a valid identifier", msg.Name, f.Name)
	}
	if err := seen.declare(msg.Name, f.Name, f.Pos); err != nil {
		return err
	}
	t, optional, opts := peel(f.Type, f.Optional, f.Options)
	union, ok := t.(resolve.UnionOf)
	if !ok {
		field, err := b.field(msg.Name, f, nil)
		if err != nil {
			return err
		}
		msg.Fields = append(msg.Fields, field)
		return nil
	}
	switch {
	case optional:
		return diag.Errorf(diag.KindInvalidType, f.Pos, "%s.%s: a oneof cannot be optional", msg.Name, f.Name)
	case f.HasNumber:
		return diag.Errorf(diag.KindInvalidFieldNumber, f.Pos, "%s.%s: a oneof has no field number; number its members", msg.Name, f.Name)
	case len(opts) > 0:
		return diag.Errorf(diag.KindInvalidType, f.Pos, "%s.%s: options cannot be attached to a oneof", msg.Name, f.Name)
	}
	oneof := &ir.Oneof{Name: f.Name, Pos: f.Pos}
	msg.Oneofs = append(msg.Oneofs, oneof)
	for _, branch := range union.Branches {
		if !ir.IsIdent(branch.Name) {
			return diag.Errorf(diag.KindInvalidUnionBranch, branch.Pos, "%s.%s: branch name is not a valid identifier", msg.Name, branch.Name)
		}
		if err := seen.declare(msg.Name, branch.Name, branch.Pos); err != nil {
			return err
		}
		field, err := b.field(msg.Name, branch, oneof)
		if err != nil {
			return err
		}
		msg.Fields = append(msg.Fields, field)
	}
	return nil
}

// field lowers a non-union field, or a member of oneof when it is set.
func (b *builder) field(owner string, f *resolve.Field, oneof *ir.Oneof) (*ir.Field, error) {
	t, optional, opts := peel(f.Type, f.Optional, f.Options)
	out := &ir.Field{
		Name:       f.Name,
		Number:     f.Number,
		Explicit:   f.HasNumber,
		IsOptional: optional,
		Oneof:      oneof,
		Options:    opts,
		Pos:        f.Pos,
	}
	if len(out.Options) == 0 {
		out.Options = nil
	}
	invalid := func(format string, args ...any) error {
		return diag.Errorf(diag.KindInvalidType, f.Pos, "%s.%s: "+format, append([]any{owner, f.Name}, args...)...)
	}
	if oneof != nil && optional {
		return nil, invalid("oneof members cannot be optional")
	}
	switch v := t.(type) {
	case resolve.Repeated:
		if optional {
			return nil, invalid("repeated fields cannot be optional")
		}
		if oneof != nil {
			return nil, invalid("oneof members cannot be repeated")
		}
		out.IsRepeated = true
		if err := b.setSingular(out, v.Elem); err != nil {
			return nil, invalid("repeated element: %v", err)
		}
	case resolve.MapOf:
		if optional {
			return nil, invalid("map fields cannot be optional")
		}
		if oneof != nil {
			return nil, invalid("oneof members cannot be maps")
		}
		key, ok := v.Key.(resolve.Primitive)
		if !ok || !key.Kind.IsMapKey() {
			return nil, diag.Errorf(diag.KindInvalidMapKey, f.Pos,
				"%s.%s: %s cannot be a map key; use an integer type, bool or string", owner, f.Name, v.Key)
		}
		value := &ir.Field{}
		if err := b.setSingular(value, v.Value); err != nil {
			return nil, invalid("map value: %v", err)
		}
		out.IsMap = true
		out.Kind = ir.KindMessage
		out.MapKeyKind = key.Kind
		out.MapValueKind = value.Kind
		out.MapValueMessage = value.MessageFullName
	case resolve.UnionOf:
		return nil, invalid("unions are only allowed as a field's whole type")
	default:
		if err := b.setSingular(out, t); err != nil {
			return nil, invalid("%v", err)
		}
	}
	return out, nil
}

// nestingError describes a type that cannot appear where a single value is
// expected. It is wrapped by the caller into a positioned diagnostic.
type nestingError struct {
	t resolve.TypeRef
}

func (e nestingError) Error() string {
	switch e.t.(type) {
	case resolve.StreamOf:
		return "Stream is only allowed as a method parameter or result"
	case resolve.Empty:
		return "empty types have no fields; use google.protobuf.Empty"
	default:
		return fmt.Sprintf("%s cannot be nested here", e.t)
	}
}

// setSingular sets the kind of f from a type naming exactly one value.
func (b *builder) setSingular(f *ir.Field, t resolve.TypeRef) error {
	switch v := t.(type) {
	case resolve.Primitive:
		f.Kind = v.Kind
	case resolve.Named:
		f.Kind = ir.KindMessage
		f.MessageFullName = v.Name
		b.useImport(v.ImportPath)
	case resolve.WellKnown:
		f.Kind = ir.KindMessage
		if v.Type.Enum {
			f.Kind = ir.KindEnum
		}
		f.MessageFullName = v.Type.FullName
		b.useImport(v.Type.ImportPath)
	case resolve.Optional, resolve.Extended, resolve.Repeated, resolve.MapOf,
		resolve.UnionOf, resolve.StreamOf, resolve.Empty:
		return nestingError{t: t}
	default:
		panic(fmt.Sprintf("unexpected type %T", t))
	}
	return nil
}

func (b *builder) service(d *resolve.Decl) ([]*ir.Message, *ir.Service, error) {
	svc := &ir.Service{Name: d.Name, Options: d.Options, Pos: d.Pos}
	var synthesized []*ir.Message
	for _, m := range d.Methods {
		if !ir.IsIdent(m.Name) {
			return nil, nil, diag.Errorf(diag.KindInvalidType, m.Pos, "%s.%s: method name is not a valid identifier", d.Name, m.Name)
		}
		method := &ir.Method{Name: m.Name, Options: m.Options, Pos: m.Pos}

		input, streaming, req, err := b.request(m)
		if err != nil {
			return nil, nil, err
		}
		method.InputType, method.ClientStreaming = input, streaming

		output, streaming, resp, err := b.response(m)
		if err != nil {
			return nil, nil, err
		}
		method.OutputType, method.ServerStreaming = output, streaming

		for _, msg := range []*ir.Message{req, resp} {
			if msg == nil {
				continue
			}
			if prev, ok := b.names[msg.Name]; ok {
				return nil, nil, diag.Errorf(diag.KindDuplicateDeclaration, m.Pos,
					"%s.%s: synthesized message %s conflicts with the declaration at %s", d.Name, m.Name, msg.Name, prev)
			}
			b.names[msg.Name] = m.Pos
			synthesized = append(synthesized, msg)
		}
		svc.Methods = append(svc.Methods, method)
	}
	return synthesized, svc, nil
}

// messageName returns the message type name when t can be used directly as a
// method input or output.
func (b *builder) messageName(t resolve.TypeRef) (string, bool) {
	switch v := t.(type) {
	case resolve.Named:
		b.useImport(v.ImportPath)
		return v.Name, true
	case resolve.WellKnown:
		if v.Type.Enum {
			return "", false
		}
		b.useImport(v.Type.ImportPath)
		return v.Type.FullName, true
	case resolve.Empty:
		b.useImport(wellknown.EmptyFile)
		return wellknown.Empty, true
	}
	return "", false
}

func (b *builder) request(m *resolve.Method) (string, bool, *ir.Message, error) {
	if len(m.Params) == 0 {
		name, _ := b.messageName(resolve.Empty{})
		return name, false, nil, nil
	}
	params := m.Params
	streaming := false
	if stream, ok := m.Params[0].Type.(resolve.StreamOf); ok && len(m.Params) == 1 {
		streaming = true
		param := *m.Params[0]
		param.Type = stream.Inner
		params = []*resolve.Field{&param}
	}
	if len(params) == 1 {
		p := params[0]
		if !p.Optional && !p.HasNumber && len(p.Options) == 0 {
			if name, ok := b.messageName(p.Type); ok {
				return name, streaming, nil, nil
			}
		}
	}
	msg := &ir.Message{Name: ir.RequestName(m.Name), Synthetic: true, Pos: m.Pos}
	seen := make(symbols, len(params))
	for _, p := range params {
		if err := b.addField(msg, seen, p); err != nil {
			return "", false, nil, err
		}
	}
	return msg.Name, streaming, msg, nil
}

func (b *builder) response(m *resolve.Method) (string, bool, *ir.Message, error) {
	result := m.Result
	streaming := false
	if stream, ok := result.(resolve.StreamOf); ok {
		streaming = true
		result = stream.Inner
	}
	if name, ok := b.messageName(result); ok {
		return name, streaming, nil, nil
	}
	msg := &ir.Message{Name: ir.ResponseName(m.Name), Synthetic: true, Pos: m.Pos}
	value := &resolve.Field{Name: responseField, Type: result, Pos: m.Pos}
	if err := b.addField(msg, make(symbols, 1), value); err != nil {
		return "", false, nil, err
	}
	return msg.Name, streaming, msg, nil
}
