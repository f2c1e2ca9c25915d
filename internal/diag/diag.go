// Package diag defines the structured errors reported by every compiler stage.
package diag

import (
	"errors"
	"fmt"
)

type Kind uint8

const (
	KindUnknown Kind = iota
	KindSyntax
	KindUnresolvedType
	KindGenericArity
	KindMixedMemberKind
	KindInvalidUnionBranch
	KindInvalidMapKey
	KindDuplicateFieldNumber
	KindUnresolvedImport
	KindInvalidType
	KindDuplicateDeclaration
	KindCyclicDeclaration
	KindInvalidFieldNumber
	KindOutputCheck
)

func (k Kind) String() string {
	switch k {
	case KindSyntax:
		return "SyntaxError"
	case KindUnresolvedType:
		return "UnresolvedTypeError"
	case KindGenericArity:
		return "GenericArityError"
	case KindMixedMemberKind:
		return "MixedMemberKindError"
	case KindInvalidUnionBranch:
		return "InvalidUnionBranchError"
	case KindInvalidMapKey:
		return "InvalidMapKeyError"
	case KindDuplicateFieldNumber:
		return "DuplicateFieldNumberError"
	case KindUnresolvedImport:
		return "UnresolvedImportError"
	case KindInvalidType:
		return "InvalidTypeError"
	case KindDuplicateDeclaration:
		return "DuplicateDeclarationError"
	case KindCyclicDeclaration:
		return "CyclicDeclarationError"
	case KindInvalidFieldNumber:
		return "InvalidFieldNumberError"
	case KindOutputCheck:
		return "OutputCheckError"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// Pos is a 1-based line/column location in a source file. A zero Line means
// the position is unknown.
type Pos struct {
	File   string
	Line   int
	Column int
}

func (p Pos) String() string {
	switch {
	case p.File == "":
		return fmt.Sprintf("%d:%d", p.Line, p.Column)
	case p.Line == 0:
		return p.File
	default:
		return fmt.Sprintf("%s:%d:%d", p.File, p.Line, p.Column)
	}
}

func (p Pos) IsValid() bool {
	return p.Line > 0
}

type Error struct {
	kind    Kind
	pos     Pos
	message string
}

var _ error = (*Error)(nil)

func Errorf(kind Kind, pos Pos, format string, args ...any) *Error {
	return &Error{
		kind:    kind,
		pos:     pos,
		message: fmt.Sprintf(format, args...),
	}
}

func (err *Error) Error() string {
	if err.pos == (Pos{}) {
		return fmt.Sprintf("%s: %s", err.kind, err.message)
	}
	return fmt.Sprintf("%s: %s: %s", err.pos, err.kind, err.message)
}

func (err *Error) Kind() Kind {
	return err.kind
}

func (err *Error) Pos() Pos {
	return err.pos
}

func (err *Error) Message() string {
	return err.message
}

// KindOf returns the kind of the first *Error in err's chain, or KindUnknown.
func KindOf(err error) Kind {
	var dErr *Error
	if errors.As(err, &dErr) {
		return dErr.kind
	}
	return KindUnknown
}
