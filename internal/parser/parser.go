// Package parser reads the typed interface-definition dialect into a File AST.
package parser

import (
	"strconv"
	"strings"

	"fortio.org/safecast"

	"github.com/jptrs93/troto/internal/diag"
)

// DirectiveFileOpt sets a file-level option: FileOpt('name', value).
const DirectiveFileOpt = "FileOpt"

var directiveArity = map[string]int{
	DirectiveFileOpt: 2,
}

type parser struct {
	lex  *lexer
	tok  token
	path string
	// claimed is set once the pragmas of tok have been attached to a
	// declaration or member.
	claimed bool
}

// Parse parses src. It has no side effects; path is only used for positions.
func Parse(path string, src []byte) (*File, error) {
	lex, err := newLexer(path, src)
	if err != nil {
		return nil, err
	}
	p := &parser{lex: lex, path: path}
	if err := p.advance(); err != nil {
		return nil, err
	}
	file := &File{Path: path}
	for p.tok.kind != tEOF {
		if err := p.parseStatement(file); err != nil {
			return nil, err
		}
	}
	if err := p.checkPragmas(); err != nil {
		return nil, err
	}
	return file, nil
}

func (p *parser) advance() error {
	if err := p.checkPragmas(); err != nil {
		return err
	}
	tok, err := p.lex.next()
	if err != nil {
		return err
	}
	p.tok = tok
	p.claimed = false
	return nil
}

// claim takes the pragmas of the current token for the declaration or member
// starting at it.
func (p *parser) claim() []Option {
	p.claimed = true
	return p.tok.pragmas
}

// checkPragmas rejects pragmas that precede something other than a
// declaration or member.
func (p *parser) checkPragmas() error {
	if len(p.tok.pragmas) == 0 || p.claimed {
		return nil
	}
	return p.errorf(p.tok.pragmas[0].Pos, "@option pragma is not attached to a declaration or member")
}

func (p *parser) errorf(pos diag.Pos, format string, args ...any) error {
	return diag.Errorf(diag.KindSyntax, pos, format, args...)
}

func (p *parser) expect(punct string) error {
	if !p.tok.is(punct) {
		return p.errorf(p.tok.pos, "expected %q, got %s", punct, p.tok.describe())
	}
	return p.advance()
}

func (p *parser) expectIdent() (token, error) {
	tok := p.tok
	if tok.kind != tIdent {
		return token{}, p.errorf(tok.pos, "expected identifier, got %s", tok.describe())
	}
	return tok, p.advance()
}

// accept consumes punct if it is the current token.
func (p *parser) accept(punct string) (bool, error) {
	if !p.tok.is(punct) {
		return false, nil
	}
	return true, p.advance()
}

func (p *parser) skipTerminator() error {
	_, err := p.accept(";")
	return err
}

func (p *parser) parseStatement(file *File) error {
	tok := p.tok
	switch {
	case tok.is(";"):
		return p.advance()
	case tok.isIdent("import"):
		imp, err := p.parseImport()
		if err != nil {
			return err
		}
		file.Imports = append(file.Imports, imp)
		return nil
	case tok.isIdent("export"), tok.isIdent("interface"), tok.isIdent("type"):
		decl, err := p.parseDecl()
		if err != nil {
			return err
		}
		file.Decls = append(file.Decls, decl)
		return nil
	case tok.kind == tIdent:
		dir, err := p.parseDirective()
		if err != nil {
			return err
		}
		file.Directives = append(file.Directives, dir)
		return nil
	default:
		return p.errorf(tok.pos, "expected declaration, import or directive, got %s", tok.describe())
	}
}

func (p *parser) parseImport() (*Import, error) {
	imp := &Import{Pos: p.tok.pos}
	if err := p.advance(); err != nil {
		return nil, err
	}
	if p.tok.kind == tString {
		// import 'module'; or the forced form import '?path/file.proto';
		path := p.tok.text
		if forced, ok := strings.CutPrefix(path, "?"); ok {
			imp.Forced = true
			path = forced
		}
		if path == "" {
			return nil, p.errorf(p.tok.pos, "empty import path")
		}
		imp.Path = path
		if err := p.advance(); err != nil {
			return nil, err
		}
		return imp, p.skipTerminator()
	}
	if p.tok.isIdent("type") {
		imp.TypeOnly = true
		if err := p.advance(); err != nil {
			return nil, err
		}
	}
	if err := p.expect("{"); err != nil {
		return nil, err
	}
	for !p.tok.is("}") {
		nameTok, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		name := &ImportName{Name: nameTok.text, Pos: nameTok.pos}
		if p.tok.isIdent("as") {
			if err := p.advance(); err != nil {
				return nil, err
			}
			aliasTok, err := p.expectIdent()
			if err != nil {
				return nil, err
			}
			name.Alias = aliasTok.text
		}
		imp.Names = append(imp.Names, name)
		if ok, err := p.accept(","); err != nil {
			return nil, err
		} else if !ok {
			break
		}
	}
	if err := p.expect("}"); err != nil {
		return nil, err
	}
	if !p.tok.isIdent("from") {
		return nil, p.errorf(p.tok.pos, "expected 'from', got %s", p.tok.describe())
	}
	if err := p.advance(); err != nil {
		return nil, err
	}
	if p.tok.kind != tString {
		return nil, p.errorf(p.tok.pos, "expected module path string, got %s", p.tok.describe())
	}
	if strings.HasPrefix(p.tok.text, "?") {
		return nil, p.errorf(p.tok.pos, "forced import %q cannot bind names", p.tok.text)
	}
	imp.Path = p.tok.text
	if err := p.advance(); err != nil {
		return nil, err
	}
	return imp, p.skipTerminator()
}

func (p *parser) parseDirective() (*Directive, error) {
	nameTok := p.tok
	arity, ok := directiveArity[nameTok.text]
	if !ok {
		return nil, p.errorf(nameTok.pos, "unknown directive %q", nameTok.text)
	}
	if err := p.advance(); err != nil {
		return nil, err
	}
	if err := p.expect("("); err != nil {
		return nil, err
	}
	dir := &Directive{Name: nameTok.text, Pos: nameTok.pos}
	for !p.tok.is(")") {
		lit, err := p.parseValueLiteral()
		if err != nil {
			return nil, err
		}
		dir.Args = append(dir.Args, lit)
		if ok, err := p.accept(","); err != nil {
			return nil, err
		} else if !ok {
			break
		}
	}
	if err := p.expect(")"); err != nil {
		return nil, err
	}
	if len(dir.Args) != arity {
		return nil, p.errorf(dir.Pos, "%s expects %d arguments, got %d", dir.Name, arity, len(dir.Args))
	}
	if dir.Name == DirectiveFileOpt && dir.Args[0].Kind != LitString {
		return nil, p.errorf(dir.Pos, "%s option name must be a string literal", dir.Name)
	}
	return dir, p.skipTerminator()
}

// parseValueLiteral parses a string, (possibly negative) number, boolean or
// bare identifier.
func (p *parser) parseValueLiteral() (Literal, error) {
	tok := p.tok
	var lit Literal
	switch {
	case tok.kind == tString:
		lit = Literal{Kind: LitString, Text: tok.text}
	case tok.kind == tNumber:
		lit = Literal{Kind: LitNumber, Text: tok.text}
	case tok.is("-"):
		if err := p.advance(); err != nil {
			return Literal{}, err
		}
		if p.tok.kind != tNumber {
			return Literal{}, p.errorf(p.tok.pos, "expected number after '-', got %s", p.tok.describe())
		}
		lit = Literal{Kind: LitNumber, Text: "-" + p.tok.text}
	case tok.isIdent("true"), tok.isIdent("false"):
		lit = Literal{Kind: LitBool, Text: tok.text}
	case tok.kind == tIdent:
		lit = Literal{Kind: LitIdent, Text: tok.text}
	default:
		return Literal{}, p.errorf(tok.pos, "expected literal value, got %s", tok.describe())
	}
	return lit, p.advance()
}

func (p *parser) parseDecl() (Decl, error) {
	start := p.tok
	// Pragmas may precede either `export` or the keyword itself.
	options := p.claim()
	exported := false
	if start.isIdent("export") {
		exported = true
		if err := p.advance(); err != nil {
			return nil, err
		}
		options = append(options[:len(options):len(options)], p.claim()...)
	}
	switch {
	case p.tok.isIdent("interface"):
		return p.parseInterface(start.pos, exported, options)
	case p.tok.isIdent("type"):
		return p.parseTypeAlias(start.pos, exported, options)
	default:
		return nil, p.errorf(p.tok.pos, "expected 'interface' or 'type', got %s", p.tok.describe())
	}
}

func (p *parser) parseInterface(pos diag.Pos, exported bool, options []Option) (*Interface, error) {
	if err := p.advance(); err != nil {
		return nil, err
	}
	nameTok, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	decl := &Interface{Name: nameTok.text, Exported: exported, Options: options, Pos: pos}
	if decl.Params, err = p.parseTypeParams(); err != nil {
		return nil, err
	}
	if p.tok.isIdent("extends") {
		if err := p.advance(); err != nil {
			return nil, err
		}
		for {
			base, err := p.parseTypeName()
			if err != nil {
				return nil, err
			}
			decl.Extends = append(decl.Extends, base)
			if ok, err := p.accept(","); err != nil {
				return nil, err
			} else if !ok {
				break
			}
		}
	}
	if err := p.expect("{"); err != nil {
		return nil, err
	}
	for !p.tok.is("}") {
		if p.tok.kind == tEOF {
			return nil, p.errorf(p.tok.pos, "unterminated interface %s", decl.Name)
		}
		member, err := p.parseMember()
		if err != nil {
			return nil, err
		}
		decl.Members = append(decl.Members, member)
	}
	if err := p.advance(); err != nil {
		return nil, err
	}
	return decl, p.skipTerminator()
}

func (p *parser) parseTypeAlias(pos diag.Pos, exported bool, options []Option) (*TypeAlias, error) {
	if err := p.advance(); err != nil {
		return nil, err
	}
	nameTok, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	decl := &TypeAlias{Name: nameTok.text, Exported: exported, Options: options, Pos: pos}
	if decl.Params, err = p.parseTypeParams(); err != nil {
		return nil, err
	}
	if err := p.expect("="); err != nil {
		return nil, err
	}
	if decl.Type, err = p.parseType(); err != nil {
		return nil, err
	}
	return decl, p.skipTerminator()
}

// parseTypeParams parses an optional `<T, U extends X>` list. Constraints are
// accepted and discarded.
func (p *parser) parseTypeParams() ([]*TypeParam, error) {
	if !p.tok.is("<") {
		return nil, nil
	}
	if err := p.advance(); err != nil {
		return nil, err
	}
	var params []*TypeParam
	for !p.tok.is(">") {
		nameTok, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		params = append(params, &TypeParam{Name: nameTok.text, Pos: nameTok.pos})
		if p.tok.isIdent("extends") {
			if err := p.advance(); err != nil {
				return nil, err
			}
			if _, err := p.parseType(); err != nil {
				return nil, err
			}
		}
		if ok, err := p.accept(","); err != nil {
			return nil, err
		} else if !ok {
			break
		}
	}
	if err := p.expect(">"); err != nil {
		return nil, err
	}
	if len(params) == 0 {
		return nil, p.errorf(p.tok.pos, "empty type parameter list")
	}
	return params, nil
}

func (p *parser) parseMember() (Member, error) {
	options := p.claim()
	nameTok, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	if p.tok.is("(") {
		method, err := p.parseMethod(nameTok, options)
		if err != nil {
			return nil, err
		}
		return method, p.skipMemberSeparator()
	}
	if p.tok.is("<") {
		return nil, p.errorf(p.tok.pos, "generic method %s is not supported", nameTok.text)
	}
	prop, err := p.parseProperty(nameTok, options)
	if err != nil {
		return nil, err
	}
	return prop, p.skipMemberSeparator()
}

func (p *parser) skipMemberSeparator() error {
	if p.tok.is(";") || p.tok.is(",") {
		return p.advance()
	}
	return nil
}

// parseProperty parses the remainder of `name$N?: Type` after the name.
func (p *parser) parseProperty(nameTok token, options []Option) (*Property, error) {
	name, number, ok, err := p.splitFieldNumber(nameTok)
	if err != nil {
		return nil, err
	}
	prop := &Property{Name: name, Number: number, HasNumber: ok, Options: options, Pos: nameTok.pos}
	if prop.Optional, err = p.accept("?"); err != nil {
		return nil, err
	}
	if err := p.expect(":"); err != nil {
		return nil, err
	}
	if prop.Type, err = p.parseType(); err != nil {
		return nil, err
	}
	return prop, nil
}

func (p *parser) parseMethod(nameTok token, options []Option) (*Method, error) {
	method := &Method{Name: nameTok.text, Options: options, Pos: nameTok.pos}
	if err := p.expect("("); err != nil {
		return nil, err
	}
	for !p.tok.is(")") {
		options := p.claim()
		paramTok, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		param, err := p.parseProperty(paramTok, options)
		if err != nil {
			return nil, err
		}
		method.Params = append(method.Params, param)
		if ok, err := p.accept(","); err != nil {
			return nil, err
		} else if !ok {
			break
		}
	}
	if err := p.expect(")"); err != nil {
		return nil, err
	}
	if ok, err := p.accept(":"); err != nil {
		return nil, err
	} else if ok {
		if method.Result, err = p.parseType(); err != nil {
			return nil, err
		}
	}
	return method, nil
}

// splitFieldNumber splits a `name$N` member name into name and explicit field
// number. Names without a trailing all-digit `$` suffix are returned as-is
// with ok false.
func (p *parser) splitFieldNumber(tok token) (name string, number int, ok bool, err error) {
	idx := strings.LastIndexByte(tok.text, '$')
	if idx <= 0 || idx == len(tok.text)-1 {
		return tok.text, 0, false, nil
	}
	digits := tok.text[idx+1:]
	for _, c := range digits {
		if c < '0' || c > '9' {
			return tok.text, 0, false, nil
		}
	}
	n, err := strconv.ParseInt(digits, 10, 64)
	if err != nil {
		return "", 0, false, p.errorf(tok.pos, "invalid field number %q", digits)
	}
	n32, err := safecast.Conv[int32](n)
	if err != nil {
		return "", 0, false, p.errorf(tok.pos, "field number %s out of range", digits)
	}
	return tok.text[:idx], int(n32), true, nil
}

// parseType parses a union of postfix types. A leading `|` is permitted.
func (p *parser) parseType() (TypeExpr, error) {
	pos := p.tok.pos
	if _, err := p.accept("|"); err != nil {
		return nil, err
	}
	first, err := p.parsePostfixType()
	if err != nil {
		return nil, err
	}
	if !p.tok.is("|") {
		return first, nil
	}
	union := &UnionType{Branches: []TypeExpr{first}, Pos: pos}
	for p.tok.is("|") {
		if err := p.advance(); err != nil {
			return nil, err
		}
		branch, err := p.parsePostfixType()
		if err != nil {
			return nil, err
		}
		union.Branches = append(union.Branches, branch)
	}
	return union, nil
}

func (p *parser) parsePostfixType() (TypeExpr, error) {
	t, err := p.parsePrimaryType()
	if err != nil {
		return nil, err
	}
	for p.tok.is("[") {
		pos := p.tok.pos
		if err := p.advance(); err != nil {
			return nil, err
		}
		if err := p.expect("]"); err != nil {
			return nil, err
		}
		t = &ArrayType{Elem: t, Pos: pos}
	}
	return t, nil
}

func (p *parser) parsePrimaryType() (TypeExpr, error) {
	tok := p.tok
	switch {
	case tok.is("("):
		if err := p.advance(); err != nil {
			return nil, err
		}
		inner, err := p.parseType()
		if err != nil {
			return nil, err
		}
		return inner, p.expect(")")
	case tok.is("{"):
		return p.parseObjectType()
	case tok.kind == tString, tok.kind == tNumber, tok.is("-"), tok.isIdent("true"), tok.isIdent("false"):
		lit, err := p.parseValueLiteral()
		if err != nil {
			return nil, err
		}
		return &LiteralType{Value: lit, Pos: tok.pos}, nil
	case tok.kind == tIdent:
		return p.parseTypeName()
	default:
		return nil, p.errorf(tok.pos, "expected type, got %s", tok.describe())
	}
}

func (p *parser) parseTypeName() (*TypeName, error) {
	nameTok, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	name := &TypeName{Name: nameTok.text, Pos: nameTok.pos}
	if p.tok.is(".") {
		return nil, p.errorf(p.tok.pos, "qualified type names are not supported")
	}
	if !p.tok.is("<") {
		return name, nil
	}
	if err := p.advance(); err != nil {
		return nil, err
	}
	for {
		arg, err := p.parseType()
		if err != nil {
			return nil, err
		}
		name.Args = append(name.Args, arg)
		if ok, err := p.accept(","); err != nil {
			return nil, err
		} else if !ok {
			break
		}
	}
	return name, p.expect(">")
}

func (p *parser) parseObjectType() (*ObjectType, error) {
	obj := &ObjectType{Pos: p.tok.pos}
	if err := p.advance(); err != nil {
		return nil, err
	}
	for !p.tok.is("}") {
		options := p.claim()
		nameTok, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		if p.tok.is("(") {
			return nil, p.errorf(nameTok.pos, "method %s is not allowed in an object type", nameTok.text)
		}
		prop, err := p.parseProperty(nameTok, options)
		if err != nil {
			return nil, err
		}
		obj.Members = append(obj.Members, prop)
		if err := p.skipMemberSeparator(); err != nil {
			return nil, err
		}
	}
	return obj, p.advance()
}
