// Package resolve binds the names used in parsed source files to
// declarations, builtins and external types, instantiating generic bases and
// inlining type aliases along the way.
package resolve

import (
	"fmt"
	"path"
	"slices"
	"strings"

	"github.com/jptrs93/troto/internal/diag"
	"github.com/jptrs93/troto/internal/ir"
	"github.com/jptrs93/troto/internal/parser"
	"github.com/jptrs93/troto/internal/wellknown"
)

const sourceExt = ".ts"

type Config struct {
	Types wellknown.Provider
	// ProtoFileExists reports whether a forced import can be located. When
	// nil, every forced import is accepted.
	ProtoFileExists func(importPath string) bool
}

// OutputPath is the path of the IDL document generated for a source file; it
// is also the import path other documents use to refer to it.
func OutputPath(sourcePath string) string {
	return strings.TrimSuffix(sourcePath, path.Ext(sourcePath)) + ".proto"
}

// ModuleKey is the name a source file is imported by: its cleaned path
// without the .ts extension.
func ModuleKey(sourcePath string) string {
	return strings.TrimSuffix(path.Clean(sourcePath), sourceExt)
}

type resolver struct {
	cfg     Config
	scopes  []*scope
	modules map[string]*scope
	outputs map[string]bool
}

type scope struct {
	file    *parser.File
	outPath string
	decls   map[string]parser.Decl
	imports map[string]binding

	bound   bool
	bindErr error
}

// binding is what a name in a scope refers to: a source declaration or an
// external type.
type binding struct {
	scope    *scope
	decl     parser.Decl
	external *wellknown.Type
}

// env maps the type parameters of the declaration being instantiated to
// their arguments.
type env map[string]TypeRef

// Resolve resolves every file. Files are processed in the order given and the
// first error encountered is returned.
func Resolve(files []*parser.File, cfg Config) ([]*File, error) {
	if cfg.Types == nil {
		cfg.Types = wellknown.Default()
	}
	r := &resolver{
		cfg:     cfg,
		modules: make(map[string]*scope),
		outputs: make(map[string]bool),
	}
	for _, file := range files {
		if err := r.addFile(file); err != nil {
			return nil, err
		}
	}
	result := make([]*File, 0, len(r.scopes))
	for _, s := range r.scopes {
		file, err := r.resolveFile(s)
		if err != nil {
			return nil, err
		}
		result = append(result, file)
	}
	return result, nil
}

func (r *resolver) addFile(file *parser.File) error {
	key := ModuleKey(file.Path)
	if _, ok := r.modules[key]; ok {
		return diag.Errorf(diag.KindDuplicateDeclaration, diag.Pos{File: file.Path}, "module %q is defined twice", key)
	}
	s := &scope{
		file:    file,
		outPath: OutputPath(file.Path),
		decls:   make(map[string]parser.Decl, len(file.Decls)),
		imports: make(map[string]binding),
	}
	for _, decl := range file.Decls {
		if prev, ok := s.decls[decl.DeclName()]; ok {
			return diag.Errorf(diag.KindDuplicateDeclaration, decl.DeclPos(),
				"%s is already declared at %s", decl.DeclName(), prev.DeclPos())
		}
		s.decls[decl.DeclName()] = decl
	}
	r.scopes = append(r.scopes, s)
	r.modules[key] = s
	r.outputs[s.outPath] = true
	return nil
}

func (r *resolver) ensureBound(s *scope) error {
	if !s.bound {
		s.bound = true
		s.bindErr = r.bindImports(s)
	}
	return s.bindErr
}

func (r *resolver) bindImports(s *scope) error {
	for _, imp := range s.file.Imports {
		if imp.Forced {
			if !r.protoFileExists(imp.Path) {
				return diag.Errorf(diag.KindUnresolvedImport, imp.Pos, "cannot locate forced import %q", imp.Path)
			}
			continue
		}
		if target, ok := r.modules[r.moduleKey(s, imp.Path)]; ok {
			for _, name := range imp.Names {
				decl, ok := target.decls[name.Name]
				if !ok {
					return diag.Errorf(diag.KindUnresolvedImport, name.Pos,
						"module %q has no declaration named %s", imp.Path, name.Name)
				}
				if !isExported(decl) {
					return diag.Errorf(diag.KindUnresolvedImport, name.Pos,
						"%s is not exported by module %q", name.Name, imp.Path)
				}
				if err := s.bind(name, binding{scope: target, decl: decl}); err != nil {
					return err
				}
			}
			continue
		}
		if !r.cfg.Types.HasModule(imp.Path) {
			return diag.Errorf(diag.KindUnresolvedImport, imp.Pos, "cannot find module %q", imp.Path)
		}
		for _, name := range imp.Names {
			ty, ok := r.cfg.Types.Lookup(imp.Path, name.Name)
			if !ok {
				return diag.Errorf(diag.KindUnresolvedImport, name.Pos,
					"module %q has no type named %s", imp.Path, name.Name)
			}
			if err := s.bind(name, binding{external: &ty}); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *scope) bind(name *parser.ImportName, b binding) error {
	local := name.Local()
	if decl, ok := s.decls[local]; ok {
		return diag.Errorf(diag.KindDuplicateDeclaration, name.Pos,
			"import %s conflicts with the declaration at %s", local, decl.DeclPos())
	}
	if _, ok := s.imports[local]; ok {
		return diag.Errorf(diag.KindDuplicateDeclaration, name.Pos, "%s is imported twice", local)
	}
	s.imports[local] = b
	return nil
}

func (r *resolver) protoFileExists(importPath string) bool {
	if r.outputs[importPath] || r.cfg.Types.HasFile(importPath) {
		return true
	}
	return r.cfg.ProtoFileExists == nil || r.cfg.ProtoFileExists(importPath)
}

func (r *resolver) moduleKey(s *scope, importPath string) string {
	if strings.HasPrefix(importPath, "./") || strings.HasPrefix(importPath, "../") {
		return ModuleKey(path.Join(path.Dir(s.file.Path), importPath))
	}
	return ModuleKey(importPath)
}

func (r *resolver) lookup(s *scope, name string) (binding, bool, error) {
	if err := r.ensureBound(s); err != nil {
		return binding{}, false, err
	}
	if decl, ok := s.decls[name]; ok {
		return binding{scope: s, decl: decl}, true, nil
	}
	b, ok := s.imports[name]
	return b, ok, nil
}

func (r *resolver) resolveFile(s *scope) (*File, error) {
	if err := r.ensureBound(s); err != nil {
		return nil, err
	}
	out := &File{Path: s.file.Path, OutPath: s.outPath}
	for _, dir := range s.file.Directives {
		switch dir.Name {
		case parser.DirectiveFileOpt:
			out.Options = append(out.Options, ir.Option{
				Name:  dir.Args[0].Text,
				Value: literalValue(dir.Args[1]),
			})
		}
	}
	for _, imp := range s.file.Imports {
		if imp.Forced {
			out.ForcedImports = append(out.ForcedImports, imp.Path)
		}
	}
	for _, decl := range s.file.Decls {
		iface, ok := decl.(*parser.Interface)
		if !ok || len(iface.Params) > 0 {
			// Aliases are inlined where used and generic interfaces are
			// templates; neither is emitted.
			continue
		}
		fields, methods, err := r.members(s, iface, nil, nil)
		if err != nil {
			return nil, err
		}
		if !iface.Exported {
			continue
		}
		d := &Decl{
			Name:    iface.Name,
			Options: convertOptions(iface.Options),
			Pos:     iface.Pos,
		}
		if len(methods) > 0 {
			d.Kind = DeclService
			d.Methods = methods
		} else {
			d.Kind = DeclMessage
			d.Fields = fields
		}
		out.Decls = append(out.Decls, d)
	}
	return out, nil
}

func declKey(s *scope, name string) string {
	return s.file.Path + "#" + name
}

// enter pushes key onto the instantiation stack, failing if it is already
// being instantiated.
func enter(stack []string, key string, pos diag.Pos, what string) ([]string, error) {
	if slices.Contains(stack, key) {
		return nil, diag.Errorf(diag.KindCyclicDeclaration, pos, "%s refers to itself", what)
	}
	return append(stack[:len(stack):len(stack)], key), nil
}

// members instantiates iface under e: base members in extends order followed
// by its own. A fresh member list is built on every call so a base can be
// instantiated any number of times.
func (r *resolver) members(s *scope, iface *parser.Interface, e env, stack []string) ([]*Field, []*Method, error) {
	stack, err := enter(stack, declKey(s, iface.Name), iface.Pos, "interface "+iface.Name)
	if err != nil {
		return nil, nil, err
	}
	var fields []*Field
	var methods []*Method
	for _, base := range iface.Extends {
		baseFields, baseMethods, err := r.baseMembers(s, base, e, stack)
		if err != nil {
			return nil, nil, err
		}
		fields = append(fields, baseFields...)
		methods = append(methods, baseMethods...)
	}
	for _, member := range iface.Members {
		switch m := member.(type) {
		case *parser.Property:
			field, err := r.field(s, m, e, stack)
			if err != nil {
				return nil, nil, err
			}
			fields = append(fields, field)
		case *parser.Method:
			method, err := r.method(s, m, e, stack)
			if err != nil {
				return nil, nil, err
			}
			methods = append(methods, method)
		default:
			panic(fmt.Sprintf("unexpected member %T", member))
		}
	}
	if len(fields) > 0 && len(methods) > 0 {
		return nil, nil, diag.Errorf(diag.KindMixedMemberKind, iface.Pos,
			"interface %s mixes fields (%s) and methods (%s)", iface.Name, fields[0].Name, methods[0].Name)
	}
	if err := checkUniqueMembers(iface.Name, fields, methods); err != nil {
		return nil, nil, err
	}
	return fields, methods, nil
}

func checkUniqueMembers(owner string, fields []*Field, methods []*Method) error {
	seen := make(map[string]diag.Pos, len(fields)+len(methods))
	check := func(name string, pos diag.Pos) error {
		if prev, ok := seen[name]; ok {
			return diag.Errorf(diag.KindDuplicateDeclaration, pos,
				"%s.%s is already declared at %s", owner, name, prev)
		}
		seen[name] = pos
		return nil
	}
	for _, f := range fields {
		if err := check(f.Name, f.Pos); err != nil {
			return err
		}
	}
	for _, m := range methods {
		if err := check(m.Name, m.Pos); err != nil {
			return err
		}
	}
	return nil
}

// baseMembers instantiates the target of an extends clause. Arguments are
// resolved in the extending scope; the base's members in its own scope.
func (r *resolver) baseMembers(s *scope, base *parser.TypeName, e env, stack []string) ([]*Field, []*Method, error) {
	if _, ok := e[base.Name]; ok {
		return nil, nil, diag.Errorf(diag.KindInvalidType, base.Pos, "cannot extend type parameter %s", base.Name)
	}
	b, ok, err := r.lookup(s, base.Name)
	if err != nil {
		return nil, nil, err
	}
	if !ok {
		return nil, nil, diag.Errorf(diag.KindUnresolvedType, base.Pos, "unknown base type %s", base.Name)
	}
	if b.external != nil {
		return nil, nil, diag.Errorf(diag.KindInvalidType, base.Pos, "cannot extend external type %s", base.Name)
	}
	args, err := r.typeArgs(s, base.Args, e, stack)
	if err != nil {
		return nil, nil, err
	}
	switch decl := b.decl.(type) {
	case *parser.Interface:
		baseEnv, err := bindParams(base, decl.Params, args)
		if err != nil {
			return nil, nil, err
		}
		return r.members(b.scope, decl, baseEnv, stack)
	case *parser.TypeAlias:
		stack, err := enter(stack, declKey(b.scope, decl.Name), base.Pos, "type alias "+decl.Name)
		if err != nil {
			return nil, nil, err
		}
		aliasEnv, err := bindParams(base, decl.Params, args)
		if err != nil {
			return nil, nil, err
		}
		switch body := decl.Type.(type) {
		case *parser.ObjectType:
			fields := make([]*Field, 0, len(body.Members))
			for _, prop := range body.Members {
				field, err := r.field(b.scope, prop, aliasEnv, stack)
				if err != nil {
					return nil, nil, err
				}
				fields = append(fields, field)
			}
			return fields, nil, nil
		case *parser.TypeName:
			return r.baseMembers(b.scope, body, aliasEnv, stack)
		}
		return nil, nil, diag.Errorf(diag.KindInvalidType, base.Pos,
			"cannot extend %s: it is neither an interface nor an object type", base.Name)
	default:
		panic(fmt.Sprintf("unexpected declaration %T", b.decl))
	}
}

func bindParams(ref *parser.TypeName, params []*parser.TypeParam, args []TypeRef) (env, error) {
	if len(params) != len(args) {
		return nil, diag.Errorf(diag.KindGenericArity, ref.Pos,
			"%s expects %d type arguments, got %d", ref.Name, len(params), len(args))
	}
	if len(params) == 0 {
		return nil, nil
	}
	e := make(env, len(params))
	for i, param := range params {
		e[param.Name] = args[i]
	}
	return e, nil
}

func (r *resolver) typeArgs(s *scope, exprs []parser.TypeExpr, e env, stack []string) ([]TypeRef, error) {
	if len(exprs) == 0 {
		return nil, nil
	}
	args := make([]TypeRef, len(exprs))
	for i, expr := range exprs {
		arg, err := r.resolveType(s, expr, e, stack)
		if err != nil {
			return nil, err
		}
		args[i] = arg
	}
	return args, nil
}

func (r *resolver) field(s *scope, prop *parser.Property, e env, stack []string) (*Field, error) {
	t, err := r.resolveType(s, prop.Type, e, stack)
	if err != nil {
		return nil, err
	}
	return &Field{
		Name:      prop.Name,
		Number:    prop.Number,
		HasNumber: prop.HasNumber,
		Optional:  prop.Optional,
		Type:      t,
		Options:   convertOptions(prop.Options),
		Pos:       prop.Pos,
	}, nil
}

func (r *resolver) method(s *scope, m *parser.Method, e env, stack []string) (*Method, error) {
	out := &Method{
		Name:    m.Name,
		Options: convertOptions(m.Options),
		Pos:     m.Pos,
	}
	for _, param := range m.Params {
		field, err := r.field(s, param, e, stack)
		if err != nil {
			return nil, err
		}
		out.Params = append(out.Params, field)
	}
	if m.Result == nil {
		out.Result = Empty{}
		return out, nil
	}
	result, err := r.resolveType(s, m.Result, e, stack)
	if err != nil {
		return nil, err
	}
	out.Result = result
	return out, nil
}

// isService reports whether iface or any interface it extends has a method.
func (r *resolver) isService(s *scope, iface *parser.Interface, seen map[string]bool) bool {
	key := declKey(s, iface.Name)
	if seen[key] {
		return false
	}
	if seen == nil {
		seen = make(map[string]bool)
	}
	seen[key] = true
	for _, member := range iface.Members {
		if _, ok := member.(*parser.Method); ok {
			return true
		}
	}
	for _, base := range iface.Extends {
		b, ok, err := r.lookup(s, base.Name)
		if err != nil || !ok {
			continue
		}
		if baseIface, ok := b.decl.(*parser.Interface); ok && r.isService(b.scope, baseIface, seen) {
			return true
		}
	}
	return false
}

func isExported(decl parser.Decl) bool {
	switch d := decl.(type) {
	case *parser.Interface:
		return d.Exported
	case *parser.TypeAlias:
		return d.Exported
	default:
		panic(fmt.Sprintf("unexpected declaration %T", decl))
	}
}

func convertOptions(opts []parser.Option) []ir.Option {
	if len(opts) == 0 {
		return nil
	}
	out := make([]ir.Option, len(opts))
	for i, opt := range opts {
		out[i] = ir.Option{Name: opt.Name, Value: literalValue(opt.Value)}
	}
	return out
}

func literalValue(lit parser.Literal) ir.Value {
	switch lit.Kind {
	case parser.LitString:
		return ir.Value{Kind: ir.ValueString, Text: lit.Text}
	case parser.LitNumber:
		return ir.Value{Kind: ir.ValueNumber, Text: lit.Text}
	case parser.LitBool:
		return ir.Value{Kind: ir.ValueBool, Text: lit.Text}
	case parser.LitIdent:
		return ir.Value{Kind: ir.ValueIdent, Text: lit.Text}
	default:
		panic(fmt.Sprintf("unexpected literal kind %d", lit.Kind))
	}
}
