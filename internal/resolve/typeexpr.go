package resolve

import (
	"fmt"

	"github.com/jptrs93/troto/internal/diag"
	"github.com/jptrs93/troto/internal/ir"
	"github.com/jptrs93/troto/internal/parser"
)

// resolveType resolves expr in scope s. Names bound in e take precedence over
// declarations and imports, which in turn shadow builtins.
func (r *resolver) resolveType(s *scope, expr parser.TypeExpr, e env, stack []string) (TypeRef, error) {
	switch t := expr.(type) {
	case *parser.TypeName:
		return r.resolveName(s, t, e, stack)
	case *parser.ArrayType:
		elem, err := r.resolveType(s, t.Elem, e, stack)
		if err != nil {
			return nil, err
		}
		return Repeated{Elem: elem}, nil
	case *parser.UnionType:
		branches, err := r.unionBranches(s, t, e, stack)
		if err != nil {
			return nil, err
		}
		return UnionOf{Branches: branches}, nil
	case *parser.ObjectType:
		if len(t.Members) == 0 {
			return Empty{}, nil
		}
		return nil, diag.Errorf(diag.KindInvalidType, t.Pos,
			"object types are only allowed as union branches or extended bases")
	case *parser.LiteralType:
		return nil, diag.Errorf(diag.KindInvalidType, t.Pos,
			"literal %s cannot be used as a type here", t.Value.Text)
	default:
		panic(fmt.Sprintf("unexpected type expression %T", expr))
	}
}

func (r *resolver) resolveName(s *scope, t *parser.TypeName, e env, stack []string) (TypeRef, error) {
	if arg, ok := e[t.Name]; ok {
		if len(t.Args) > 0 {
			return nil, diag.Errorf(diag.KindGenericArity, t.Pos, "type parameter %s takes no type arguments", t.Name)
		}
		return arg, nil
	}
	b, ok, err := r.lookup(s, t.Name)
	if err != nil {
		return nil, err
	}
	if ok {
		return r.resolveBinding(s, t, b, e, stack)
	}
	if _, ok := helperArity[t.Name]; ok {
		return r.resolveHelper(s, t, e, stack)
	}
	if kind, ok := primitives[t.Name]; ok {
		if err := noArgs(t); err != nil {
			return nil, err
		}
		return Primitive{Kind: kind}, nil
	}
	if js, ok := jsTypes[t.Name]; ok {
		if err := noArgs(t); err != nil {
			return nil, err
		}
		if js.wellKnown != "" {
			ty, ok := r.cfg.Types.ByFullName(js.wellKnown)
			if !ok {
				return nil, diag.Errorf(diag.KindUnresolvedType, t.Pos, "%s needs %s, which is not available", t.Name, js.wellKnown)
			}
			return WellKnown{Type: ty}, nil
		}
		var ref TypeRef = Primitive{Kind: js.kind}
		if js.repeated {
			ref = Repeated{Elem: ref}
		}
		return ref, nil
	}
	if t.Name == keywordVoid {
		if err := noArgs(t); err != nil {
			return nil, err
		}
		return Empty{}, nil
	}
	return nil, diag.Errorf(diag.KindUnresolvedType, t.Pos, "unknown type %s", t.Name)
}

func noArgs(t *parser.TypeName) error {
	if len(t.Args) > 0 {
		return diag.Errorf(diag.KindGenericArity, t.Pos, "%s takes no type arguments, got %d", t.Name, len(t.Args))
	}
	return nil
}

func (r *resolver) resolveBinding(s *scope, t *parser.TypeName, b binding, e env, stack []string) (TypeRef, error) {
	if b.external != nil {
		if err := noArgs(t); err != nil {
			return nil, err
		}
		return WellKnown{Type: *b.external}, nil
	}
	switch decl := b.decl.(type) {
	case *parser.Interface:
		switch {
		case len(decl.Params) > 0:
			return nil, diag.Errorf(diag.KindInvalidType, t.Pos,
				"generic interface %s cannot be used as a type; extend it from an exported interface", t.Name)
		case len(t.Args) > 0:
			return nil, noArgs(t)
		case !decl.Exported:
			return nil, diag.Errorf(diag.KindInvalidType, t.Pos,
				"interface %s is not exported and so has no message", t.Name)
		case r.isService(b.scope, decl, nil):
			return nil, diag.Errorf(diag.KindInvalidType, t.Pos, "service %s cannot be used as a type", t.Name)
		}
		return Named{Name: decl.Name, ImportPath: b.scope.outPath}, nil
	case *parser.TypeAlias:
		stack, err := enter(stack, declKey(b.scope, decl.Name), t.Pos, "type alias "+decl.Name)
		if err != nil {
			return nil, err
		}
		args, err := r.typeArgs(s, t.Args, e, stack)
		if err != nil {
			return nil, err
		}
		aliasEnv, err := bindParams(t, decl.Params, args)
		if err != nil {
			return nil, err
		}
		return r.resolveType(b.scope, decl.Type, aliasEnv, stack)
	default:
		panic(fmt.Sprintf("unexpected declaration %T", b.decl))
	}
}

func (r *resolver) resolveHelper(s *scope, t *parser.TypeName, e env, stack []string) (TypeRef, error) {
	if want := helperArity[t.Name]; len(t.Args) != want {
		return nil, diag.Errorf(diag.KindGenericArity, t.Pos,
			"%s expects %d type arguments, got %d", t.Name, want, len(t.Args))
	}
	if t.Name == helperExt {
		inner, err := r.resolveType(s, t.Args[0], e, stack)
		if err != nil {
			return nil, err
		}
		opts, err := r.extOptions(s, t.Args[1], stack)
		if err != nil {
			return nil, err
		}
		return Extended{Inner: inner, Options: opts}, nil
	}
	args, err := r.typeArgs(s, t.Args, e, stack)
	if err != nil {
		return nil, err
	}
	switch t.Name {
	case helperOpt:
		return Optional{Inner: args[0]}, nil
	case helperRep, helperArray:
		return Repeated{Elem: args[0]}, nil
	case helperMap, helperRecord:
		return MapOf{Key: args[0], Value: args[1]}, nil
	case helperStream:
		return StreamOf{Inner: args[0]}, nil
	default:
		panic("unhandled helper " + t.Name)
	}
}

// extOptions reads the option record of Ext<T, {...}>. Every property must
// be a literal type or a bare identifier, which is emitted unquoted.
func (r *resolver) extOptions(s *scope, expr parser.TypeExpr, stack []string) ([]ir.Option, error) {
	obj, err := r.objectLiteral(s, expr, stack)
	if err != nil {
		return nil, err
	}
	opts := make([]ir.Option, 0, len(obj.Members))
	for _, prop := range obj.Members {
		var value ir.Value
		switch v := prop.Type.(type) {
		case *parser.LiteralType:
			value = literalValue(v.Value)
		case *parser.TypeName:
			if len(v.Args) > 0 {
				return nil, diag.Errorf(diag.KindInvalidType, v.Pos, "option %s must be a literal", prop.Name)
			}
			value = ir.Value{Kind: ir.ValueIdent, Text: v.Name}
		default:
			return nil, diag.Errorf(diag.KindInvalidType, prop.Type.TypePos(), "option %s must be a literal", prop.Name)
		}
		opts = append(opts, ir.Option{Name: prop.Name, Value: value})
	}
	return opts, nil
}

// objectLiteral returns expr as an object type, looking through
// non-generic aliases.
func (r *resolver) objectLiteral(s *scope, expr parser.TypeExpr, stack []string) (*parser.ObjectType, error) {
	switch t := expr.(type) {
	case *parser.ObjectType:
		return t, nil
	case *parser.TypeName:
		b, ok, err := r.lookup(s, t.Name)
		if err != nil {
			return nil, err
		}
		if alias, isAlias := b.decl.(*parser.TypeAlias); ok && isAlias && len(alias.Params) == 0 && len(t.Args) == 0 {
			stack, err := enter(stack, declKey(b.scope, alias.Name), t.Pos, "type alias "+alias.Name)
			if err != nil {
				return nil, err
			}
			return r.objectLiteral(b.scope, alias.Type, stack)
		}
	}
	return nil, diag.Errorf(diag.KindInvalidType, expr.TypePos(), "Ext options must be an object type")
}

// unionBranches flattens expr into oneof members. Nested unions, aliases of
// unions and type parameters bound to unions are spliced in place.
func (r *resolver) unionBranches(s *scope, expr parser.TypeExpr, e env, stack []string) ([]*Field, error) {
	switch b := expr.(type) {
	case *parser.UnionType:
		var out []*Field
		for _, branch := range b.Branches {
			fields, err := r.unionBranches(s, branch, e, stack)
			if err != nil {
				return nil, err
			}
			out = append(out, fields...)
		}
		return out, nil
	case *parser.ObjectType:
		if len(b.Members) != 1 {
			return nil, diag.Errorf(diag.KindInvalidUnionBranch, b.Pos,
				"union branch must have exactly one property, got %d", len(b.Members))
		}
		prop := b.Members[0]
		if prop.Optional {
			return nil, diag.Errorf(diag.KindInvalidUnionBranch, prop.Pos, "union branch property %s cannot be optional", prop.Name)
		}
		field, err := r.field(s, prop, e, stack)
		if err != nil {
			return nil, err
		}
		return []*Field{field}, nil
	case *parser.TypeName:
		if arg, ok := e[b.Name]; ok {
			if u, isUnion := arg.(UnionOf); isUnion && len(b.Args) == 0 {
				return u.Branches, nil
			}
			break
		}
		bd, ok, err := r.lookup(s, b.Name)
		if err != nil {
			return nil, err
		}
		alias, isAlias := bd.decl.(*parser.TypeAlias)
		if !ok || !isAlias {
			break
		}
		stack, err := enter(stack, declKey(bd.scope, alias.Name), b.Pos, "type alias "+alias.Name)
		if err != nil {
			return nil, err
		}
		args, err := r.typeArgs(s, b.Args, e, stack)
		if err != nil {
			return nil, err
		}
		aliasEnv, err := bindParams(b, alias.Params, args)
		if err != nil {
			return nil, err
		}
		return r.unionBranches(bd.scope, alias.Type, aliasEnv, stack)
	}
	return nil, diag.Errorf(diag.KindInvalidUnionBranch, expr.TypePos(),
		"union branch must be an object type with a single property")
}
